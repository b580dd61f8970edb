// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"bytes"
	"context"
	"sync"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/platform/platformtest"
	"github.com/parkhaven/parkhaven/internal/queue"
	"github.com/parkhaven/parkhaven/internal/relay/relaytest"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// memStore is an in-memory vqueue.Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	docs map[string]vqueue.Document
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]vqueue.Document)}
}

func (s *memStore) Save(_ context.Context, doc vqueue.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.QueueID] = doc
	return nil
}

func (s *memStore) Delete(_ context.Context, queueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, queueID)
	return nil
}

func (s *memStore) LoadAll(_ context.Context) ([]vqueue.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vqueue.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

// memLedger is an in-memory FastPass ledger for handler tests.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]int)}
}

func (l *memLedger) Grant(_ context.Context, memberID string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[memberID] += count
	return nil
}

func (l *memLedger) Balance(_ context.Context, memberID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[memberID], nil
}

// fixture wires a full command environment around fake platform services.
type fixture struct {
	dir    *platformtest.Directory
	signs  *platformtest.SignWriter
	relay  *relaytest.Recorder
	store  *memStore
	ledger *memLedger
	queues *queue.Manager
	vm     *vqueue.Manager
}

func newFixture(server string, players ...*platformtest.Player) *fixture {
	dir := platformtest.NewDirectory(players...)
	signs := platformtest.NewSignWriter()
	rec := relaytest.New()
	store := newMemStore()
	f := &fixture{
		dir:    dir,
		signs:  signs,
		relay:  rec,
		store:  store,
		ledger: newMemLedger(),
	}
	f.queues = queue.NewManager("magic-kingdom", dir, signs, nil)
	f.vm = vqueue.NewManager(server, rec, store, dir, vqueue.WithSignWriter(signs))
	return f
}

func (f *fixture) exec(memberID, memberName string) (*command.Execution, *bytes.Buffer) {
	var buf bytes.Buffer
	return &command.Execution{
		MemberID:   memberID,
		MemberName: memberName,
		Output:     &buf,
		Services: &command.Services{
			Queues:   f.queues,
			Virtual:  f.vm,
			FastPass: f.ledger,
			Online:   f.dir,
		},
	}, &buf
}
