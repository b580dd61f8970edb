// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/relay"
)

// HandleMessage applies one inbound protocol message. It runs on the relay's
// receive goroutine; all state changes go through the manager's lock, the
// same serialization point as the tick.
func (m *Manager) HandleMessage(msg relay.Message) {
	observability.RecordRelayMessage("in", string(msg.Kind))

	switch msg.Kind {
	case relay.KindCreate:
		m.handleCreate(msg)
	case relay.KindRemove:
		m.handleRemove(msg)
	case relay.KindUpdate:
		m.handleUpdate(msg)
	case relay.KindPlayer:
		m.handlePlayer(msg)
	case relay.KindSend:
		m.handleSend(msg)
	case relay.KindNotify:
		m.handleNotify(msg)
	default:
		slog.Warn("relay: unknown message kind", "kind", string(msg.Kind), "from", msg.From)
	}
}

// handleCreate registers a non-authoritative mirror for a queue announced by
// its host. A known id is left untouched.
func (m *Manager) handleCreate(msg relay.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[msg.QueueID]; exists {
		return
	}
	q := New(msg.QueueID, msg.Name, msg.Server, msg.HoldingArea)
	m.queues[msg.QueueID] = q
	slog.Info("registered queue mirror", "queue", msg.QueueID, "host", msg.Server)
}

// handleRemove deletes the local copy and tells local members.
func (m *Manager) handleRemove(msg relay.Message) {
	m.mu.Lock()
	q, ok := m.queues[msg.QueueID]
	if !ok {
		m.mu.Unlock()
		return
	}
	members := q.Line().Members()
	delete(m.queues, msg.QueueID)
	m.mu.Unlock()

	for _, member := range members {
		m.notify(member, fmt.Sprintf("The virtual queue for %s has been removed.", q.Name))
	}
	slog.Info("queue mirror removed", "queue", msg.QueueID, "from", msg.From)
}

// handleUpdate overwrites a mirror wholesale with the host's open flag and
// ordered membership, then tells locally-online members where they now
// stand. Updates for queues this process hosts are ignored: the local copy
// is authoritative.
func (m *Manager) handleUpdate(msg relay.Message) {
	m.mu.Lock()
	q, ok := m.queues[msg.QueueID]
	if !ok || q.HostedBy(m.server) {
		m.mu.Unlock()
		if !ok {
			slog.Debug("update for unknown queue, waiting for create", "queue", msg.QueueID)
		}
		return
	}
	q.Line().Replace(msg.Members)
	q.Line().SetOpen(msg.Open)
	q.Line().ClearDirty()
	holdingArea := q.HoldingArea
	name := q.Name
	m.mu.Unlock()

	for i, member := range msg.Members {
		p, online := m.dir.Lookup(member)
		if !online {
			continue
		}
		pos := i + 1
		if pos <= holdingArea {
			p.Message(fmt.Sprintf(
				"You are number %d in line for %s. Rejoin now to confirm your spot!", pos, name))
		} else {
			p.Message(fmt.Sprintf("You are number %d in line for %s.", pos, name))
		}
	}
}

// handlePlayer applies a join or leave requested by another process, if and
// only if this process hosts the queue. The host-side paths handle the
// holding-area confirm case identically to a local join.
func (m *Manager) handlePlayer(msg relay.Message) {
	m.mu.Lock()
	q, ok := m.queues[msg.QueueID]
	hosted := ok && q.HostedBy(m.server)
	var name string
	if ok {
		name = q.Name
	}
	m.mu.Unlock()
	if !hosted {
		return
	}

	ctx := context.Background()
	var err error
	if msg.Joining {
		err = m.Join(ctx, msg.QueueID, msg.MemberID)
	} else {
		err = m.Leave(ctx, msg.QueueID, msg.MemberID)
	}
	if err != nil {
		// The member's own process only said the request was on its way;
		// the refusal has to travel back for them to hear the outcome.
		slog.Debug("relayed player mutation rejected",
			"queue", msg.QueueID, "member", msg.MemberID, "joining", msg.Joining, "error", err)
		answer := relay.NewMessage(m.server, relay.KindNotify)
		answer.QueueID = msg.QueueID
		answer.MemberID = msg.MemberID
		answer.Text = rejectionText(err, name, msg.Joining)
		m.publish(ctx, answer)
	}
}

// rejectionText phrases a refused relayed mutation for the member who asked.
func rejectionText(err error, name string, joining bool) string {
	var code string
	if oerr, ok := oops.AsOops(err); ok {
		code, _ = oerr.Code().(string)
	}
	switch code {
	case "QUEUE_CLOSED":
		return fmt.Sprintf("The virtual queue for %s is closed.", name)
	case "ALREADY_QUEUED":
		return fmt.Sprintf("You are already in the virtual queue for %s.", name)
	case "NOT_QUEUED":
		return fmt.Sprintf("You are not in the virtual queue for %s.", name)
	}
	if joining {
		return fmt.Sprintf("Could not join the virtual queue for %s.", name)
	}
	return fmt.Sprintf("Could not leave the virtual queue for %s.", name)
}

// handleNotify delivers a host-authored answer to a member online here.
func (m *Manager) handleNotify(msg relay.Message) {
	if msg.MemberID == "" || msg.Text == "" {
		return
	}
	m.notify(msg.MemberID, msg.Text)
}

// handleSend transfers a member to the named server if they are online here.
func (m *Manager) handleSend(msg relay.Message) {
	p, online := m.dir.Lookup(msg.MemberID)
	if !online || msg.Server == m.server {
		return
	}
	if err := p.Transfer(msg.Server); err != nil {
		slog.Error("failed to transfer member",
			"member", msg.MemberID, "server", msg.Server, "error", err)
	}
}
