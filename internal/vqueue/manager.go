// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/relay"
	"github.com/parkhaven/parkhaven/pkg/errutil"
)

var tracer = otel.Tracer("parkhaven/vqueue")

// Document is the persisted form of a host-side queue.
type Document struct {
	QueueID     string   `json:"queueId"`
	Name        string   `json:"queueName"`
	Server      string   `json:"server"`
	HoldingArea int      `json:"holdingArea"`
	Open        bool     `json:"open"`
	Members     []string `json:"queue"`
}

// Store persists host-side queue documents across restarts.
type Store interface {
	Save(ctx context.Context, doc Document) error
	Delete(ctx context.Context, queueID string) error
	LoadAll(ctx context.Context) ([]Document, error)
}

// Default protocol timing.
const (
	// DefaultHoldingWindow is how long a prompted member has to confirm
	// before being evicted from the queue.
	DefaultHoldingWindow = 15 * time.Second
	// DefaultResyncCycles is how many reconciliation cycles pass between
	// full position resyncs. With a 1s tick this is the every-8-seconds
	// consistency backstop against lost messages.
	DefaultResyncCycles = 8
)

// Manager is the process-wide registry of virtual queues: the authoritative
// copies it hosts plus mirrors of queues hosted elsewhere. It owns the
// reconciliation tick, persistence, and relay dispatch/receipt.
type Manager struct {
	server string

	mu       sync.Mutex
	queues   map[string]*Queue
	builders map[string]*Builder
	cycle    int

	relay relay.Relay
	store Store
	dir   platform.Directory
	signs platform.SignWriter

	holdingWindow time.Duration
	resyncCycles  int
}

// Option configures a Manager during construction.
type Option func(*Manager)

// WithSignWriter enables status sign updates.
func WithSignWriter(w platform.SignWriter) Option {
	return func(m *Manager) { m.signs = w }
}

// WithHoldingWindow overrides the holding-area confirmation window.
func WithHoldingWindow(d time.Duration) Option {
	return func(m *Manager) { m.holdingWindow = d }
}

// WithResyncCycles overrides the full-resync interval, in tick cycles.
func WithResyncCycles(n int) Option {
	return func(m *Manager) { m.resyncCycles = n }
}

// NewManager creates a virtual queue manager for the named server process.
func NewManager(server string, rel relay.Relay, st Store, dir platform.Directory, opts ...Option) *Manager {
	m := &Manager{
		server:        server,
		queues:        make(map[string]*Queue),
		builders:      make(map[string]*Builder),
		relay:         rel,
		store:         st,
		dir:           dir,
		holdingWindow: DefaultHoldingWindow,
		resyncCycles:  DefaultResyncCycles,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Server returns this process's server name.
func (m *Manager) Server() string { return m.server }

// Get returns the queue with the given id.
func (m *Manager) Get(id string) (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	return q, ok
}

// All returns every known queue, hosted and mirrored, sorted by id.
func (m *Manager) All() []*Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// BySign returns the queue owning a sign at pos.
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

// Create registers a queue hosted by this process, persists it, and
// announces it to the network so other processes register mirrors.
func (m *Manager) Create(ctx context.Context, q *Queue) error {
	m.mu.Lock()
	if _, exists := m.queues[q.ID]; exists {
		m.mu.Unlock()
		return oops.Code("QUEUE_EXISTS").With("queue", q.ID).Errorf("queue id already registered")
	}
	q.Server = m.server
	m.queues[q.ID] = q
	m.mu.Unlock()

	m.persistAsync(q)

	msg := relay.NewMessage(m.server, relay.KindCreate)
	msg.QueueID = q.ID
	msg.Name = q.Name
	msg.HoldingArea = q.HoldingArea
	msg.Server = m.server
	m.publish(ctx, msg)

	m.updateSigns(q)
	slog.Info("virtual queue created", "queue", q.ID, "server", m.server)
	return nil
}

// Remove deletes a hosted queue: members are notified, the persisted record
// is deleted, and a removal is broadcast so mirrors drop their copies.
// Removal of a mirrored queue is not permitted; the host must do it.
func (m *Manager) Remove(ctx context.Context, queueID string) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	if !ok {
		m.mu.Unlock()
		return oops.Code("QUEUE_NOT_FOUND").With("queue", queueID).Errorf("unknown queue")
	}
	if !q.HostedBy(m.server) {
		m.mu.Unlock()
		return oops.Code("NOT_HOST").With("queue", queueID).With("host", q.Server).
			Errorf("queue is hosted by %s", q.Server)
	}
	members := q.Line().Members()
	delete(m.queues, queueID)
	m.mu.Unlock()

	for _, member := range members {
		m.notify(member, fmt.Sprintf("The virtual queue for %s has been removed.", q.Name))
	}
	if err := m.store.Delete(ctx, queueID); err != nil {
		slog.Error("failed to delete queue document", "queue", queueID, "error", err)
	}

	msg := relay.NewMessage(m.server, relay.KindRemove)
	msg.QueueID = queueID
	m.publish(ctx, msg)

	slog.Info("virtual queue removed", "queue", queueID)
	return nil
}

// Join adds a member to a queue. On the host the membership changes
// immediately; elsewhere the join is relayed and local state is untouched.
// A member who re-joins while holding a pending holding-area prompt is
// confirming it and is dispatched to the host server instead.
func (m *Manager) Join(ctx context.Context, queueID, memberID string) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	if !ok {
		m.mu.Unlock()
		return oops.Code("QUEUE_NOT_FOUND").With("queue", queueID).Errorf("unknown queue")
	}

	if !q.HostedBy(m.server) {
		open := q.Line().Open()
		present := q.Line().Contains(memberID)
		m.mu.Unlock()
		// The mirror knows the open flag; reject locally for a faster answer.
		// The host re-checks on receipt, so a stale mirror is harmless. A
		// member already in the line is never rejected here: their rejoin is
		// a holding-area confirmation and must reach the host even while the
		// queue is closed for draining.
		if !open && !present {
			return oops.Code("QUEUE_CLOSED").With("queue", queueID).Errorf("queue is closed")
		}
		msg := relay.NewMessage(m.server, relay.KindPlayer)
		msg.QueueID = queueID
		msg.MemberID = memberID
		msg.Joining = true
		m.publish(ctx, msg)
		if present {
			m.notify(memberID, fmt.Sprintf("Confirming your spot in the line for %s...", q.Name))
		} else {
			m.notify(memberID, fmt.Sprintf("Joining the virtual queue for %s...", q.Name))
		}
		return nil
	}

	if q.InHolding(memberID) {
		m.mu.Unlock()
		m.dispatchToHost(ctx, q, memberID)
		return nil
	}

	err := q.Line().Join(memberID)
	pos := q.Line().Position(memberID)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	observability.RecordQueueJoin(queueID)
	m.notify(memberID, fmt.Sprintf("You joined the virtual queue for %s. You are number %d in line.", q.Name, pos))
	m.persistAsync(q)
	return nil
}

// Leave removes a member from a queue, relaying when not the host.
func (m *Manager) Leave(ctx context.Context, queueID, memberID string) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	if !ok {
		m.mu.Unlock()
		return oops.Code("QUEUE_NOT_FOUND").With("queue", queueID).Errorf("unknown queue")
	}

	if !q.HostedBy(m.server) {
		m.mu.Unlock()
		msg := relay.NewMessage(m.server, relay.KindPlayer)
		msg.QueueID = queueID
		msg.MemberID = memberID
		msg.Joining = false
		m.publish(ctx, msg)
		m.notify(memberID, fmt.Sprintf("Leaving the virtual queue for %s...", q.Name))
		return nil
	}

	removed := q.Line().Leave(memberID)
	q.ClearHolding(memberID)
	m.mu.Unlock()

	if !removed {
		return oops.Code("NOT_QUEUED").With("queue", queueID).With("member", memberID).
			Errorf("not in queue")
	}
	observability.RecordQueueLeave(queueID)
	m.notify(memberID, fmt.Sprintf("You left the virtual queue for %s.", q.Name))
	m.persistAsync(q)
	return nil
}

// Position returns a member's 1-based position, or 0 if not queued.
func (m *Manager) Position(queueID, memberID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueID]
	if !ok {
		return 0
	}
	return q.Line().Position(memberID)
}

// SetOpen opens or closes a hosted queue, announcing the change to members.
func (m *Manager) SetOpen(ctx context.Context, queueID string, open bool) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	if !ok {
		m.mu.Unlock()
		return oops.Code("QUEUE_NOT_FOUND").With("queue", queueID).Errorf("unknown queue")
	}
	if !q.HostedBy(m.server) {
		m.mu.Unlock()
		return oops.Code("NOT_HOST").With("queue", queueID).With("host", q.Server).
			Errorf("queue is hosted by %s", q.Server)
	}
	changed := q.Line().SetOpen(open)
	members := q.Line().Members()
	m.mu.Unlock()

	if !changed {
		return nil
	}
	state := "closed"
	if open {
		state = "open"
	}
	for _, member := range members {
		m.notify(member, fmt.Sprintf("The virtual queue for %s is now %s.", q.Name, state))
	}
	m.persistAsync(q)
	return nil
}

// Admit pops the front-of-line member of a hosted queue and moves them to
// the final admission location.
func (m *Manager) Admit(ctx context.Context, queueID string) error {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	if !ok {
		m.mu.Unlock()
		return oops.Code("QUEUE_NOT_FOUND").With("queue", queueID).Errorf("unknown queue")
	}
	if !q.HostedBy(m.server) {
		m.mu.Unlock()
		return oops.Code("NOT_HOST").With("queue", queueID).With("host", q.Server).
			Errorf("queue is hosted by %s", q.Server)
	}
	member, ok := q.Line().Admit()
	if ok {
		q.ClearHolding(member)
	}
	m.mu.Unlock()

	if !ok {
		return oops.Code("QUEUE_EMPTY").With("queue", queueID).Errorf("queue is empty")
	}
	m.notify(member, fmt.Sprintf("It's your turn for %s!", q.Name))
	if p, online := m.dir.Lookup(member); online {
		p.Teleport(q.AdmitPos)
	}
	m.persistAsync(q)
	return nil
}

// dispatchToHost moves a confirmed member toward the host server: a local
// player is transferred directly, anyone else via a send message for
// whichever process has them.
func (m *Manager) dispatchToHost(ctx context.Context, q *Queue, memberID string) {
	if p, online := m.dir.Lookup(memberID); online {
		if q.HostedBy(m.server) {
			// Already on the host: stage them at the holding area now.
			p.Teleport(q.HoldingPos)
			m.mu.Lock()
			q.MarkStaged(memberID)
			m.mu.Unlock()
			return
		}
		if err := p.Transfer(q.Server); err != nil {
			slog.Error("failed to transfer member to host server",
				"queue", q.ID, "member", memberID, "server", q.Server, "error", err)
		}
		return
	}

	msg := relay.NewMessage(m.server, relay.KindSend)
	msg.QueueID = q.ID
	msg.MemberID = memberID
	msg.Server = q.Server
	m.publish(ctx, msg)
}

// snapshotLocked copies the registry for iteration outside the lock.
// Callers must hold m.mu.
func (m *Manager) snapshotLocked() []*Queue {
	out := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// publish sends a relay message, logging failure. Messaging is best-effort:
// a failed publish never aborts the operation that produced it.
func (m *Manager) publish(ctx context.Context, msg relay.Message) {
	if err := m.relay.Publish(ctx, msg); err != nil {
		errutil.LogError(slog.Default(), "relay publish failed", err)
		return
	}
	observability.RecordRelayMessage("out", string(msg.Kind))
}

// persistAsync snapshots the queue document and writes it in the background.
// Writes must not be assumed complete before the next tick; failures are
// logged and the loop continues.
func (m *Manager) persistAsync(q *Queue) {
	m.mu.Lock()
	doc := Document{
		QueueID:     q.ID,
		Name:        q.Name,
		Server:      q.Server,
		HoldingArea: q.HoldingArea,
		Open:        q.Line().Open(),
		Members:     q.Line().Members(),
	}
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.Save(ctx, doc); err != nil {
			errutil.LogError(slog.Default(), "failed to persist queue document", err)
		}
	}()
}

func (m *Manager) notify(memberID, text string) {
	if p, ok := m.dir.Lookup(memberID); ok {
		p.Message(text)
	}
}

// updateSigns refreshes both status signs. Host-only; sign failures are
// internal bookkeeping and are logged, never surfaced.
func (m *Manager) updateSigns(q *Queue) {
	if m.signs == nil || !q.HostedBy(m.server) {
		return
	}

	m.mu.Lock()
	open := q.Line().Open()
	count := q.Line().Len()
	next := q.Line().Head(1)
	m.mu.Unlock()

	state := "Closed"
	if open {
		state = "Open"
	}
	if q.StateSign != nil {
		lines := [4]string{q.Name, state, fmt.Sprintf("%d in line", count), ""}
		if err := m.signs.SetLines(*q.StateSign, lines); err != nil {
			slog.Warn("state sign update failed", "queue", q.ID, "error", err)
		}
	}
	if q.AdvanceSign != nil {
		nextLine := "-"
		if len(next) > 0 {
			nextLine = m.displayName(next[0])
		}
		lines := [4]string{q.Name, "Now serving:", nextLine, ""}
		if err := m.signs.SetLines(*q.AdvanceSign, lines); err != nil {
			slog.Warn("advance sign update failed", "queue", q.ID, "error", err)
		}
	}
}

func (m *Manager) displayName(memberID string) string {
	if p, ok := m.dir.Lookup(memberID); ok {
		return p.Name()
	}
	return memberID
}

// trace helpers shared by tick and message handling.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
