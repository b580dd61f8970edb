// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/platform"
)

// FastPassCharger deducts one FastPass from a member's balance.
// Deduct reports whether the member had a FastPass to spend.
type FastPassCharger interface {
	Deduct(ctx context.Context, memberID string) (bool, error)
}

// Manager is the per-park registry of physical ride queues. All mutation is
// serialized behind a single lock; the reconciliation tick snapshots the
// registry before iterating so handlers may register or remove queues while
// a scan is in flight.
type Manager struct {
	mu     sync.Mutex
	park   string
	queues map[string]*Queue

	dir     platform.Directory
	signs   platform.SignWriter
	charger FastPassCharger // nil disables FastPass charging
}

// NewManager creates a physical queue manager for a park.
func NewManager(park string, dir platform.Directory, signs platform.SignWriter, charger FastPassCharger) *Manager {
	return &Manager{
		park:    park,
		queues:  make(map[string]*Queue),
		dir:     dir,
		signs:   signs,
		charger: charger,
	}
}

// Park returns the park this manager serves.
func (m *Manager) Park() string { return m.park }

// Register adds a queue to the registry.
// Fails with QUEUE_EXISTS if the id is already registered.
func (m *Manager) Register(q *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[q.ID]; ok {
		return oops.Code("QUEUE_EXISTS").With("queue", q.ID).Errorf("queue id already registered")
	}
	q.Park = m.park
	m.queues[q.ID] = q
	return nil
}

// Get returns the queue with the given id.
func (m *Manager) Get(id string) (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	return q, ok
}

// BySign returns the queue owning a status sign at pos.
func (m *Manager) BySign(pos platform.Position) (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queues {
		if q.HasSign(pos) {
			return q, true
		}
	}
	return nil, false
}

// Remove deletes a queue from the registry and reports whether it existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[id]; !ok {
		return false
	}
	delete(m.queues, id)
	return true
}

// List returns queues whose id matches the glob pattern, sorted by id.
// An empty pattern matches everything.
func (m *Manager) List(pattern string) ([]*Queue, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.Code("BAD_PATTERN").With("pattern", pattern).Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Queue
	for id, q := range m.queues {
		if g.Match(id) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Join enqueues a member, charging a FastPass first when the queue requires
// one. Eligibility is checked before the charge so a rejected join never
// consumes a pass. The member is notified of the outcome either way.
func (m *Manager) Join(ctx context.Context, q *Queue, memberID string) error {
	m.mu.Lock()
	if !q.Line().Open() {
		m.mu.Unlock()
		return oops.Code("QUEUE_CLOSED").With("queue", q.ID).Errorf("queue is closed")
	}
	if q.Line().Contains(memberID) {
		m.mu.Unlock()
		return oops.Code("ALREADY_QUEUED").With("member", memberID).Errorf("already in queue")
	}
	m.mu.Unlock()

	if q.FastPass && m.charger != nil {
		ok, err := m.charger.Deduct(ctx, memberID)
		if err != nil {
			return oops.Code("FASTPASS_CHARGE_FAILED").With("member", memberID).Wrap(err)
		}
		if !ok {
			m.notify(memberID, fmt.Sprintf("You do not have a FastPass for %s.", q.Name))
			return oops.Code("FASTPASS_EXHAUSTED").With("member", memberID).Errorf("no FastPass balance")
		}
	}

	m.mu.Lock()
	err := q.Line().Join(memberID)
	pos := q.Line().Position(memberID)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.notify(memberID, fmt.Sprintf("You joined the queue for %s. You are number %d in line.", q.Name, pos))
	observability.RecordQueueJoin(q.ID)
	return nil
}

// Leave removes a member from the queue and notifies them.
func (m *Manager) Leave(q *Queue, memberID string) bool {
	m.mu.Lock()
	removed := q.Line().Leave(memberID)
	m.mu.Unlock()

	if removed {
		m.notify(memberID, fmt.Sprintf("You left the queue for %s.", q.Name))
		observability.RecordQueueLeave(q.ID)
	}
	return removed
}

// Position returns the member's 1-based place in the queue, or 0 when the
// member is not queued.
func (m *Manager) Position(q *Queue, memberID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return q.Line().Position(memberID)
}

// SetOpen opens or closes the queue, announcing the change to every queued
// member. Unchanged state is a no-op.
func (m *Manager) SetOpen(q *Queue, open bool) {
	m.mu.Lock()
	changed := q.Line().SetOpen(open)
	members := q.Line().Members()
	m.mu.Unlock()

	if !changed {
		return
	}
	state := "closed"
	if open {
		state = "open"
	}
	for _, member := range members {
		m.notify(member, fmt.Sprintf("The queue for %s is now %s.", q.Name, state))
	}
	m.updateSigns(q)
}

// Tick runs one admission pass over every queue. Admitted members are
// teleported to the ride station and notified; sign state is refreshed for
// any queue that changed.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	snapshot := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		snapshot = append(snapshot, q)
	}
	m.mu.Unlock()

	for _, q := range snapshot {
		m.mu.Lock()
		group := q.Tick(now)
		dirty := q.Line().Dirty()
		if dirty {
			q.Line().ClearDirty()
		}
		m.mu.Unlock()

		for _, member := range group {
			m.notify(member, fmt.Sprintf("It's your turn to ride %s!", q.Name))
			if p, ok := m.dir.Lookup(member); ok {
				p.Teleport(q.Station)
			}
			observability.RecordAdmission(q.ID)
		}
		if dirty || len(group) > 0 {
			m.updateSigns(q)
		}
	}
}

// updateSigns refreshes the queue's status signs. Sign failures are
// bookkeeping only and are logged, never surfaced to players.
func (m *Manager) updateSigns(q *Queue) {
	if m.signs == nil {
		return
	}
	state := "Closed"
	if q.Line().Open() {
		state = "Open"
	}
	lines := [4]string{
		q.Name,
		state,
		fmt.Sprintf("%d in line", q.Line().Len()),
		"",
	}
	for _, pos := range q.Signs {
		if err := m.signs.SetLines(pos, lines); err != nil {
			slog.Warn("queue sign update failed",
				"queue", q.ID,
				"pos", pos.String(),
				"error", err,
			)
		}
	}
}

func (m *Manager) notify(memberID, text string) {
	if p, ok := m.dir.Lookup(memberID); ok {
		p.Message(text)
	}
}
