// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package vqueue implements virtual attraction queues shared across the
// server processes of a park network.
//
// Exactly one process is the host for a given queue id and holds write
// authority over its membership; every other process keeps a read-only
// mirror that is overwritten wholesale by update messages. Mutations
// attempted on a non-host process are relayed to the host instead of being
// applied locally. This single-writer discipline is the protocol's
// correctness mechanism.
package vqueue

import (
	"time"

	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/queue"
)

// Queue is one virtual queue as known to this process: authoritative when
// Server matches the local server name, a mirror otherwise.
type Queue struct {
	ID   string
	Name string
	// Server is the host process holding write authority.
	Server string

	// HoldingArea is how many front-of-line members are pre-staged at the
	// holding location before final admission.
	HoldingArea int
	HoldingPos  platform.Position
	AdmitPos    platform.Position

	// Optional status signs, kept in sync by the host on dirty ticks.
	AdvanceSign *platform.Position
	StateSign   *platform.Position

	line *queue.Line

	// holding tracks members who have been told they are about to be moved
	// to the holding area, with the deadline by which they must confirm.
	holding map[string]time.Time
	// staged flags members already teleported to the holding location so a
	// later scan does not teleport them again.
	staged map[string]bool
}

// New creates a virtual queue hosted by server.
func New(id, name, server string, holdingArea int) *Queue {
	return &Queue{
		ID:          id,
		Name:        name,
		Server:      server,
		HoldingArea: holdingArea,
		line:        queue.NewLine(),
		holding:     make(map[string]time.Time),
		staged:      make(map[string]bool),
	}
}

// Line exposes the membership mechanics.
func (q *Queue) Line() *queue.Line { return q.line }

// HostedBy reports whether server holds write authority for this queue.
func (q *Queue) HostedBy(server string) bool {
	return q.Server == server
}

// MarkHolding records that a member was prompted to confirm, with deadline.
func (q *Queue) MarkHolding(memberID string, deadline time.Time) {
	q.holding[memberID] = deadline
}

// InHolding reports whether the member has a pending holding-area prompt.
func (q *Queue) InHolding(memberID string) bool {
	_, ok := q.holding[memberID]
	return ok
}

// ClearHolding removes the member's pending prompt and staging flag.
func (q *Queue) ClearHolding(memberID string) {
	delete(q.holding, memberID)
	delete(q.staged, memberID)
}

// ExpiredHolding returns members whose confirmation deadline has passed.
// Staged members are exempt: being at the holding location is confirmation.
func (q *Queue) ExpiredHolding(now time.Time) []string {
	var expired []string
	for member, deadline := range q.holding {
		if q.staged[member] {
			continue
		}
		if now.After(deadline) {
			expired = append(expired, member)
		}
	}
	return expired
}

// MarkStaged flags a member as already teleported to the holding location.
func (q *Queue) MarkStaged(memberID string) { q.staged[memberID] = true }

// Staged reports whether the member was already teleported.
func (q *Queue) Staged(memberID string) bool { return q.staged[memberID] }

// HasSign reports whether pos is one of the queue's signs.
func (q *Queue) HasSign(pos platform.Position) bool {
	if q.AdvanceSign != nil && *q.AdvanceSign == pos {
		return true
	}
	if q.StateSign != nil && *q.StateSign == pos {
		return true
	}
	return false
}
