// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/command/handlers"
	"github.com/parkhaven/parkhaven/internal/platform/platformtest"
	"github.com/parkhaven/parkhaven/internal/queue"
)

// memoryLedger is an in-memory FastPass ledger covering both the charging
// and granting surfaces.
type memoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{balances: make(map[string]int)}
}

func (l *memoryLedger) Deduct(_ context.Context, memberID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[memberID] < 1 {
		return false, nil
	}
	l.balances[memberID]--
	return true, nil
}

func (l *memoryLedger) Grant(_ context.Context, memberID string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[memberID] += count
	return nil
}

func (l *memoryLedger) Balance(_ context.Context, memberID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[memberID], nil
}

const parkDoc = `{
  "park": "magic-kingdom",
  "queues": [
    {
      "id": "teacups",
      "name": "Teacups",
      "warp": "teacups",
      "group_size": 2,
      "delay_seconds": 30,
      "open": true,
      "station": {"world": "park", "x": 10, "y": 64, "z": 10}
    },
    {
      "id": "mountain",
      "name": "Space Mountain",
      "warp": "mountain",
      "group_size": 4,
      "delay_seconds": 60,
      "fastpass": true,
      "open": true,
      "station": {"world": "park", "x": 50, "y": 70, "z": -20}
    }
  ]
}`

var _ = Describe("Park file to ride admission", func() {
	var (
		dir    *platformtest.Directory
		ledger *memoryLedger
		qm     *queue.Manager
		disp   *command.Dispatcher
		svc    *command.Services
		alice  *platformtest.Player
		bob    *platformtest.Player
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		path := filepath.Join(GinkgoT().TempDir(), "magic-kingdom.json")
		Expect(os.WriteFile(path, []byte(parkDoc), 0o600)).To(Succeed())

		alice = platformtest.NewPlayer("alice", "Alice")
		bob = platformtest.NewPlayer("bob", "Bob")
		dir = platformtest.NewDirectory(alice, bob)
		ledger = newMemoryLedger()

		qm = queue.NewManager("magic-kingdom", dir, platformtest.NewSignWriter(), ledger)
		Expect(qm.LoadFile(path)).To(Succeed())

		reg := command.NewRegistry()
		handlers.RegisterAll(reg)
		var err error
		disp, err = command.NewDispatcher(reg, command.AllowAll{})
		Expect(err).NotTo(HaveOccurred())

		svc = &command.Services{Queues: qm, FastPass: ledger, Online: dir}
	})

	dispatch := func(player *platformtest.Player, input string) error {
		return disp.Dispatch(ctx, input, &command.Execution{
			MemberID:   player.ID(),
			MemberName: player.Name(),
			Output:     GinkgoWriter,
			Services:   svc,
		})
	}

	It("admits a full group to the station", func() {
		Expect(dispatch(alice, "queue join teacups")).To(Succeed())
		Expect(dispatch(bob, "queue join teacups")).To(Succeed())

		q, ok := qm.Get("teacups")
		Expect(ok).To(BeTrue())
		Expect(q.Line().Len()).To(Equal(2))

		qm.Tick(time.Now().Add(time.Minute))

		Expect(q.Line().Len()).To(BeZero())
		Expect(alice.Teleports).To(HaveLen(1))
		Expect(alice.Teleports[0].X).To(BeNumerically("==", 10))
		Expect(bob.Teleports).To(HaveLen(1))
		Expect(alice.LastMessage()).To(ContainSubstring("your turn"))
	})

	It("throttles the next group until the delay elapses", func() {
		Expect(dispatch(alice, "queue join teacups")).To(Succeed())
		base := time.Now().Add(time.Minute)
		qm.Tick(base)

		Expect(dispatch(bob, "queue join teacups")).To(Succeed())
		qm.Tick(base.Add(10 * time.Second))
		q, _ := qm.Get("teacups")
		Expect(q.Line().Len()).To(Equal(1), "second group admitted before the delay")

		qm.Tick(base.Add(31 * time.Second))
		Expect(q.Line().Len()).To(BeZero())
	})

	It("charges a FastPass on join and rejects a broke member", func() {
		Expect(ledger.Grant(ctx, "alice", 1)).To(Succeed())

		Expect(dispatch(alice, "queue join mountain")).To(Succeed())
		balance, err := ledger.Balance(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(balance).To(BeZero())

		err = dispatch(bob, "queue join mountain")
		Expect(err).To(HaveOccurred())
		Expect(bob.LastMessage()).To(ContainSubstring("FastPass"))

		q, _ := qm.Get("mountain")
		Expect(q.Line().Len()).To(Equal(1))
	})

	It("round-trips the park file with memberships excluded", func() {
		Expect(dispatch(alice, "queue join teacups")).To(Succeed())

		out := filepath.Join(GinkgoT().TempDir(), "out.json")
		Expect(qm.SaveFile(out)).To(Succeed())

		reloaded := queue.NewManager("magic-kingdom", dir, platformtest.NewSignWriter(), ledger)
		Expect(reloaded.LoadFile(out)).To(Succeed())

		q, ok := reloaded.Get("teacups")
		Expect(ok).To(BeTrue())
		Expect(q.Line().Open()).To(BeTrue())
		Expect(q.Line().Len()).To(BeZero(), "membership must never persist")
	})
})
