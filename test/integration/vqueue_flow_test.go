// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/platform/platformtest"
	"github.com/parkhaven/parkhaven/internal/relay"
	"github.com/parkhaven/parkhaven/internal/relay/relaytest"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// memoryDocStore is an in-memory vqueue.Store shared across restarts.
type memoryDocStore struct {
	mu   sync.Mutex
	docs map[string]vqueue.Document
}

func newMemoryDocStore() *memoryDocStore {
	return &memoryDocStore{docs: make(map[string]vqueue.Document)}
}

func (s *memoryDocStore) Save(_ context.Context, doc vqueue.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.QueueID] = doc
	return nil
}

func (s *memoryDocStore) Delete(_ context.Context, queueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, queueID)
	return nil
}

func (s *memoryDocStore) LoadAll(_ context.Context) ([]vqueue.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vqueue.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out, nil
}

// parkNode is one server process on the relay network.
type parkNode struct {
	server string
	dir    *platformtest.Directory
	store  *memoryDocStore
	rel    relay.Relay
	vm     *vqueue.Manager
}

func newParkNode(ctx context.Context, net *relaytest.Network, server string) *parkNode {
	n := &parkNode{
		server: server,
		dir:    platformtest.NewDirectory(),
		store:  newMemoryDocStore(),
		rel:    net.Node(server),
	}
	n.vm = vqueue.NewManager(server, n.rel, n.store, n.dir,
		vqueue.WithResyncCycles(4))
	Expect(n.rel.Subscribe(ctx, n.vm.HandleMessage)).To(Succeed())
	return n
}

var _ = Describe("Virtual queue across two servers", func() {
	var (
		ctx   context.Context
		net   *relaytest.Network
		hub   *parkNode // host
		plaza *parkNode // mirror
		now   time.Time
	)

	tick := func() {
		now = now.Add(time.Second)
		hub.vm.Tick(ctx, now)
		plaza.vm.Tick(ctx, now)
	}

	BeforeEach(func() {
		ctx = context.Background()
		net = relaytest.NewNetwork()
		hub = newParkNode(ctx, net, "hub1")
		plaza = newParkNode(ctx, net, "plaza1")
		now = time.Now()

		q := vqueue.New("castle-fp", "Castle FastPass", "hub1", 2)
		q.HoldingPos = platform.Position{World: "park", X: 1, Y: 64, Z: 1}
		q.AdmitPos = platform.Position{World: "park", X: 9, Y: 64, Z: 9}
		Expect(hub.vm.Create(ctx, q)).To(Succeed())
		Expect(hub.vm.SetOpen(ctx, "castle-fp", true)).To(Succeed())

		// One pass so the open flag reaches the mirror.
		tick()
	})

	It("mirrors creation and membership on the remote server", func() {
		mirror, ok := plaza.vm.Get("castle-fp")
		Expect(ok).To(BeTrue())
		Expect(mirror.HostedBy("plaza1")).To(BeFalse())
		Expect(mirror.Open()).To(BeTrue())

		zoe := platformtest.NewPlayer("zoe", "Zoe")
		plaza.dir.Add(zoe)
		Expect(plaza.vm.Join(ctx, "castle-fp", "zoe")).To(Succeed())

		// The join rides the relay to the host, which applies it and
		// broadcasts the updated membership on its next dirty tick.
		tick()
		Expect(hub.vm.Position("castle-fp", "zoe")).To(Equal(1))
		Expect(plaza.vm.Position("castle-fp", "zoe")).To(Equal(1))
	})

	It("prompts, transfers, and stages a remote member who confirms", func() {
		zoe := platformtest.NewPlayer("zoe", "Zoe")
		plaza.dir.Add(zoe)
		Expect(plaza.vm.Join(ctx, "castle-fp", "zoe")).To(Succeed())
		tick()

		// Front of line is within the holding area, so the broadcast
		// prompts Zoe on her own server.
		Expect(zoe.LastMessage()).To(ContainSubstring("Rejoin"))

		// Confirming while prompted re-joins, which the mirror turns into
		// a transfer request to the host.
		Expect(plaza.vm.Join(ctx, "castle-fp", "zoe")).To(Succeed())
		Expect(zoe.Transfers).To(ContainElement("hub1"))

		// Zoe arrives on the host; the next pass stages her at the
		// holding position and her deadline stops mattering.
		plaza.dir.Remove("zoe")
		hub.dir.Add(zoe)
		tick()
		Expect(zoe.LastTeleport()).To(Equal(platform.Position{World: "park", X: 1, Y: 64, Z: 1}))

		now = now.Add(time.Minute)
		tick()
		Expect(hub.vm.Position("castle-fp", "zoe")).To(Equal(1), "staged member must survive the deadline")

		// Admission teleports her to the ride and clears the line.
		Expect(hub.vm.Admit(ctx, "castle-fp")).To(Succeed())
		Expect(zoe.LastTeleport()).To(Equal(platform.Position{World: "park", X: 9, Y: 64, Z: 9}))
		tick()
		Expect(plaza.vm.Position("castle-fp", "zoe")).To(BeZero())
	})

	It("evicts a member who never confirms", func() {
		Expect(hub.vm.Join(ctx, "castle-fp", "ghost")).To(Succeed())
		tick()

		now = now.Add(16 * time.Second)
		tick()
		Expect(hub.vm.Position("castle-fp", "ghost")).To(BeZero())
		tick()
		Expect(plaza.vm.Position("castle-fp", "ghost")).To(BeZero())
	})

	It("self-heals its own stale queue after a crash", func() {
		// Persist the document the way the async writer would have.
		Expect(hub.store.Save(ctx, vqueue.Document{
			QueueID: "castle-fp",
			Name:    "Castle FastPass",
			Server:  "hub1",
			Open:    true,
			Members: []string{"zoe"},
		})).To(Succeed())

		// A new process on the same server and store must not resurrect
		// the queue it hosted before the crash.
		reborn := vqueue.NewManager("hub1", net.Node("hub1"), hub.store, platformtest.NewDirectory())
		Expect(reborn.LoadPersisted(ctx)).To(Succeed())

		_, ok := reborn.Get("castle-fp")
		Expect(ok).To(BeFalse())

		docs, err := hub.store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(BeEmpty())
	})

	It("drains hosted queues on shutdown and drops them from mirrors", func() {
		zoe := platformtest.NewPlayer("zoe", "Zoe")
		hub.dir.Add(zoe)
		Expect(hub.vm.Join(ctx, "castle-fp", "zoe")).To(Succeed())
		tick()

		shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		hub.vm.Shutdown(shutdownCtx)

		Expect(zoe.LastMessage()).To(ContainSubstring("closing"))
		_, ok := plaza.vm.Get("castle-fp")
		Expect(ok).To(BeFalse())
	})
})
