// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/relay"
)

// DefaultTickInterval is the reconciliation loop period.
const DefaultTickInterval = time.Second

// Start subscribes to the relay and runs the reconciliation loop until ctx
// is cancelled. Callers should LoadPersisted first and Shutdown afterwards.
func (m *Manager) Start(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if err := m.relay.Subscribe(ctx, m.HandleMessage); err != nil {
		return oops.With("operation", "subscribe relay").Wrap(err)
	}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.Tick(ctx, now)
			}
		}
	}()

	slog.Info("virtual queue manager started", "server", m.server, "tick", tick.String())
	return nil
}

// LoadPersisted restores queue state from storage at startup.
//
// A persisted document recording this very server as host means the previous
// run died without a clean shutdown; its membership cannot be trusted, so the
// queue is force-removed (document deleted, removal broadcast) instead of
// resurrected. Documents for other hosts warm-start local mirrors.
func (m *Manager) LoadPersisted(ctx context.Context) error {
	docs, err := m.store.LoadAll(ctx)
	if err != nil {
		return oops.With("operation", "load queue documents").Wrap(err)
	}

	for _, doc := range docs {
		if doc.Server == m.server {
			slog.Warn("found own queue document at startup, removing stale queue",
				"queue", doc.QueueID)
			if err := m.store.Delete(ctx, doc.QueueID); err != nil {
				slog.Error("failed to delete stale queue document", "queue", doc.QueueID, "error", err)
			}
			msg := relay.NewMessage(m.server, relay.KindRemove)
			msg.QueueID = doc.QueueID
			m.publish(ctx, msg)
			continue
		}

		m.mu.Lock()
		if _, exists := m.queues[doc.QueueID]; !exists {
			q := New(doc.QueueID, doc.Name, doc.Server, doc.HoldingArea)
			q.Line().Replace(doc.Members)
			q.Line().SetOpen(doc.Open)
			q.Line().ClearDirty()
			m.queues[doc.QueueID] = q
		}
		m.mu.Unlock()
	}

	slog.Info("virtual queue state loaded", "documents", len(docs))
	return nil
}

// Shutdown drains every hosted queue: members are notified, persisted
// records deleted, and removals broadcast, so no orphaned host-authority
// record survives a clean restart. Mirrors are simply dropped.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	queues := m.snapshotLocked()
	// Member lists are copied under the lock: a tick that started before
	// the registry was cleared may still be mutating these lines.
	members := make(map[string][]string, len(queues))
	for _, q := range queues {
		if q.HostedBy(m.server) {
			members[q.ID] = q.Line().Members()
		}
	}
	m.queues = make(map[string]*Queue)
	m.builders = make(map[string]*Builder)
	m.mu.Unlock()

	for _, q := range queues {
		if !q.HostedBy(m.server) {
			continue
		}
		for _, member := range members[q.ID] {
			m.notify(member, fmt.Sprintf("The virtual queue for %s is closing. You have been removed from the line.", q.Name))
		}
		if err := m.store.Delete(ctx, q.ID); err != nil {
			slog.Error("failed to delete queue document during shutdown", "queue", q.ID, "error", err)
		}
		msg := relay.NewMessage(m.server, relay.KindRemove)
		msg.QueueID = q.ID
		m.publish(ctx, msg)
	}

	if err := m.relay.Close(); err != nil {
		slog.Warn("error closing relay", "error", err)
	}
	slog.Info("virtual queue manager shut down", "drained", len(queues))
}
