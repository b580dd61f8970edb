// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package relaytest provides an in-memory relay for tests.
package relaytest

import (
	"context"
	"sync"

	"github.com/parkhaven/parkhaven/internal/relay"
)

// Recorder is an in-memory relay.Relay that records published messages and
// lets tests inject inbound traffic.
type Recorder struct {
	mu        sync.Mutex
	published []relay.Message
	handler   relay.Handler

	// PublishErr, when set, is returned from every Publish call.
	PublishErr error
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, msg relay.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PublishErr != nil {
		return r.PublishErr
	}
	r.published = append(r.published, msg)
	return nil
}

func (r *Recorder) Subscribe(_ context.Context, h relay.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	return nil
}

func (r *Recorder) Close() error { return nil }

// Deliver feeds an inbound message to the subscribed handler.
func (r *Recorder) Deliver(msg relay.Message) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

// Subscribed reports whether a handler has been registered.
func (r *Recorder) Subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler != nil
}

// Published returns a copy of everything published so far.
func (r *Recorder) Published() []relay.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]relay.Message, len(r.published))
	copy(out, r.published)
	return out
}

// PublishedOfKind filters published messages by kind.
func (r *Recorder) PublishedOfKind(kind relay.Kind) []relay.Message {
	var out []relay.Message
	for _, m := range r.Published() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = nil
}

// Network wires Recorders together so that a publish on one is delivered to
// every other, approximating the pub/sub group in-process.
type Network struct {
	mu    sync.Mutex
	nodes []*networkNode
}

type networkNode struct {
	net     *Network
	server  string
	handler relay.Handler
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{}
}

// Node creates a relay endpoint for the named server.
func (n *Network) Node(server string) relay.Relay {
	n.mu.Lock()
	defer n.mu.Unlock()
	node := &networkNode{net: n, server: server}
	n.nodes = append(n.nodes, node)
	return node
}

func (n *networkNode) Publish(_ context.Context, msg relay.Message) error {
	if msg.From == "" {
		msg.From = n.server
	}
	n.net.mu.Lock()
	nodes := make([]*networkNode, len(n.net.nodes))
	copy(nodes, n.net.nodes)
	n.net.mu.Unlock()

	for _, other := range nodes {
		if other == n || other.handler == nil {
			continue
		}
		other.handler(msg)
	}
	return nil
}

func (n *networkNode) Subscribe(_ context.Context, h relay.Handler) error {
	n.net.mu.Lock()
	defer n.net.mu.Unlock()
	n.handler = h
	return nil
}

func (n *networkNode) Close() error { return nil }
