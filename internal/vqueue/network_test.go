// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/platform/platformtest"
	"github.com/parkhaven/parkhaven/internal/relay/relaytest"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// node is one server process wired into a shared in-memory relay network.
type node struct {
	dir   *platformtest.Directory
	store *memStore
	m     *vqueue.Manager
}

func newNode(t *testing.T, net *relaytest.Network, server string) *node {
	t.Helper()
	n := &node{
		dir:   platformtest.NewDirectory(),
		store: newMemStore(),
	}
	rel := net.Node(server)
	n.m = vqueue.NewManager(server, rel, n.store, n.dir)
	require.NoError(t, rel.Subscribe(context.Background(), n.m.HandleMessage))
	return n
}

// TestNetwork_TwoServerFlow walks a member through the full cross-server
// protocol: create on the host, join from a remote process, position updates
// on the remote mirror, holding-area confirmation, and transfer to the host.
func TestNetwork_TwoServerFlow(t *testing.T) {
	net := relaytest.NewNetwork()
	host := newNode(t, net, "hub1")
	remote := newNode(t, net, "hub2")
	ctx := context.Background()
	now := time.Now()

	alice := platformtest.NewPlayer("alice", "Alice")
	remote.dir.Add(alice)

	// Create on the host; the announcement registers a mirror on hub2.
	q := vqueue.New("castle-fp", "Castle FastPass", "hub1", 1)
	q.HoldingPos = platform.Position{World: "park", X: 1, Y: 64, Z: 1}
	q.AdmitPos = platform.Position{World: "park", X: 2, Y: 64, Z: 2}
	require.NoError(t, host.m.Create(ctx, q))
	require.NoError(t, host.m.SetOpen(ctx, "castle-fp", true))
	mirror, ok := remote.m.Get("castle-fp")
	require.True(t, ok)
	assert.False(t, mirror.HostedBy("hub2"))

	// The open flag reaches the mirror with the next dirty broadcast.
	host.m.Tick(ctx, now)
	assert.True(t, mirror.Line().Open())

	// Join from the remote process: the host applies it, and its broadcast
	// brings the mirror in line.
	require.NoError(t, remote.m.Join(ctx, "castle-fp", "alice"))
	assert.Equal(t, 1, host.m.Position("castle-fp", "alice"))

	now = now.Add(time.Second)
	host.m.Tick(ctx, now)
	assert.Equal(t, 1, remote.m.Position("castle-fp", "alice"))
	// Position 1 inside a holding area of 1: the mirror's update prompts
	// the member to confirm.
	assert.Contains(t, alice.LastMessage(), "Rejoin now to confirm your spot!")

	// Rejoining while prompted confirms; the host answers with a send
	// message, and hub2 transfers the member over.
	require.NoError(t, remote.m.Join(ctx, "castle-fp", "alice"))
	assert.Equal(t, []string{"hub1"}, alice.Transfers)

	// The member arrives on the host and is staged at the holding area.
	remote.dir.Remove("alice")
	host.dir.Add(alice)
	now = now.Add(time.Second)
	host.m.Tick(ctx, now)
	assert.Equal(t, q.HoldingPos, alice.LastTeleport())

	// Staged members outlast the confirmation window.
	now = now.Add(time.Minute)
	host.m.Tick(ctx, now)
	assert.Equal(t, 1, host.m.Position("castle-fp", "alice"))

	// Removal on the host drops the mirror everywhere.
	require.NoError(t, host.m.Remove(ctx, "castle-fp"))
	_, ok = remote.m.Get("castle-fp")
	assert.False(t, ok)
}

// TestNetwork_ConfirmWhileClosed walks a remote member through a holding
// confirmation after the host has closed the queue to drain it: the rejoin
// still reaches the host, the member is transferred and staged, and the
// deadline passes without evicting them.
func TestNetwork_ConfirmWhileClosed(t *testing.T) {
	net := relaytest.NewNetwork()
	host := newNode(t, net, "hub1")
	remote := newNode(t, net, "hub2")
	ctx := context.Background()
	now := time.Now()

	alice := platformtest.NewPlayer("alice", "Alice")
	remote.dir.Add(alice)

	q := vqueue.New("castle-fp", "Castle FastPass", "hub1", 1)
	q.HoldingPos = platform.Position{World: "park", X: 1, Y: 64, Z: 1}
	require.NoError(t, host.m.Create(ctx, q))
	require.NoError(t, host.m.SetOpen(ctx, "castle-fp", true))
	host.m.Tick(ctx, now)

	require.NoError(t, remote.m.Join(ctx, "castle-fp", "alice"))
	now = now.Add(time.Second)
	host.m.Tick(ctx, now) // prompts alice, deadline now+15s
	assert.Contains(t, alice.LastMessage(), "confirm your spot")

	// The host stops taking new riders while alice is mid-confirmation.
	require.NoError(t, host.m.SetOpen(ctx, "castle-fp", false))
	now = now.Add(time.Second)
	host.m.Tick(ctx, now)

	require.NoError(t, remote.m.Join(ctx, "castle-fp", "alice"))
	assert.Equal(t, []string{"hub1"}, alice.Transfers)

	remote.dir.Remove("alice")
	host.dir.Add(alice)
	now = now.Add(time.Second)
	host.m.Tick(ctx, now)
	assert.Equal(t, q.HoldingPos, alice.LastTeleport())

	now = now.Add(time.Minute)
	host.m.Tick(ctx, now)
	assert.Equal(t, 1, host.m.Position("castle-fp", "alice"),
		"a confirmed member outlasts the deadline even in a closed queue")
}

// TestNetwork_EvictionPropagates checks that a holding-area timeout on the
// host is reflected on remote mirrors by the following broadcast.
func TestNetwork_EvictionPropagates(t *testing.T) {
	net := relaytest.NewNetwork()
	host := newNode(t, net, "hub1")
	remote := newNode(t, net, "hub2")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, host.m.Create(ctx, vqueue.New("castle-fp", "Castle FastPass", "hub1", 1)))
	require.NoError(t, host.m.SetOpen(ctx, "castle-fp", true))
	require.NoError(t, remote.m.Join(ctx, "castle-fp", "alice"))

	host.m.Tick(ctx, now) // prompts alice, deadline now+15s
	assert.Equal(t, 1, remote.m.Position("castle-fp", "alice"))

	host.m.Tick(ctx, now.Add(16*time.Second))
	assert.Equal(t, 0, host.m.Position("castle-fp", "alice"))
	assert.Equal(t, 0, remote.m.Position("castle-fp", "alice"),
		"eviction reaches the mirror with the dirty broadcast")
}
