// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/relay"
)

// Tick runs one reconciliation pass over every hosted queue:
//
//  1. evict holding-area members whose confirmation deadline elapsed,
//  2. prompt and stage members newly inside the holding-area window,
//  3. broadcast full state for dirty queues, and
//  4. every resyncCycles-th pass, broadcast and announce positions for all
//     hosted queues regardless of dirty state, as a consistency backstop
//     against lost messages.
//
// Mirrored queues are never touched here; they change only on inbound
// update messages.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	ctx, span := startSpan(ctx, "vqueue.tick")
	defer span.End()

	m.mu.Lock()
	m.cycle++
	resync := m.resyncCycles > 0 && m.cycle%m.resyncCycles == 0
	queues := m.snapshotLocked()
	m.mu.Unlock()

	span.SetAttributes(
		attribute.Int("vqueue.queues", len(queues)),
		attribute.Bool("vqueue.resync", resync),
	)

	for _, q := range queues {
		if !q.HostedBy(m.server) {
			continue
		}
		m.evictExpired(q, now)
		m.stageHolding(q, now)

		m.mu.Lock()
		dirty := q.Line().Dirty()
		if dirty {
			q.Line().ClearDirty()
		}
		depth := q.Line().Len()
		m.mu.Unlock()

		if dirty || resync {
			m.broadcastUpdate(ctx, q)
			m.updateSigns(q)
		}
		if dirty {
			m.persistAsync(q)
		}
		if resync {
			m.announcePositions(q)
		}
		observability.SetQueueDepth(q.ID, depth)
	}
}

// evictExpired removes members whose holding-area confirmation deadline has
// passed. Expiry is an implicit leave and follows the same cleanup path.
func (m *Manager) evictExpired(q *Queue, now time.Time) {
	m.mu.Lock()
	expired := q.ExpiredHolding(now)
	for _, member := range expired {
		q.Line().Leave(member)
		q.ClearHolding(member)
	}
	m.mu.Unlock()

	for _, member := range expired {
		observability.RecordHoldingEviction(q.ID)
		m.notify(member, fmt.Sprintf("You didn't confirm in time and were removed from the queue for %s.", q.Name))
		slog.Info("holding-area confirmation expired", "queue", q.ID, "member", member)
	}
}

// stageHolding prompts members whose position has entered the holding-area
// window, then teleports every head member present on this server to the
// holding location. Presence counts as confirmation, so staging also covers
// remote members who confirmed and have since arrived. Staged members are
// flagged so a later pass does not teleport them twice.
func (m *Manager) stageHolding(q *Queue, now time.Time) {
	m.mu.Lock()
	head := q.Line().Head(q.HoldingArea)
	var prompt []string
	for _, member := range head {
		if q.InHolding(member) {
			continue
		}
		q.MarkHolding(member, now.Add(m.holdingWindow))
		prompt = append(prompt, member)
	}
	m.mu.Unlock()

	for _, member := range prompt {
		m.notify(member, fmt.Sprintf(
			"You're near the front of the queue for %s! Rejoin within %d seconds to confirm your spot.",
			q.Name, int(m.holdingWindow/time.Second)))
	}

	for _, member := range head {
		p, online := m.dir.Lookup(member)
		if !online {
			continue
		}
		m.mu.Lock()
		staged := q.Staged(member)
		if !staged {
			q.MarkStaged(member)
		}
		m.mu.Unlock()
		if !staged {
			p.Teleport(q.HoldingPos)
		}
	}
}

// broadcastUpdate serializes the queue's authoritative state and sends it to
// every process. A failure for one queue never blocks the rest of the tick.
func (m *Manager) broadcastUpdate(ctx context.Context, q *Queue) {
	m.mu.Lock()
	open := q.Line().Open()
	members := q.Line().Members()
	m.mu.Unlock()

	msg := relay.NewMessage(m.server, relay.KindUpdate)
	msg.QueueID = q.ID
	msg.Open = open
	msg.Members = members
	m.publish(ctx, msg)
}

// announcePositions messages every locally-online member their current
// position. Remote members hear from their own process when its mirror
// applies the accompanying update broadcast.
func (m *Manager) announcePositions(q *Queue) {
	m.mu.Lock()
	members := q.Line().Members()
	m.mu.Unlock()

	for i, member := range members {
		m.notify(member, fmt.Sprintf("You are number %d in line for %s.", i+1, q.Name))
	}
}
