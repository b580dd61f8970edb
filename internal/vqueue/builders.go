// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"context"

	"github.com/samber/oops"
)

// StartBuilder begins a creation wizard for a player. A player runs at most
// one wizard at a time.
func (m *Manager) StartBuilder(ownerID string) (*Builder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.builders[ownerID]; exists {
		return nil, oops.Code("BUILDER_EXISTS").With("owner", ownerID).
			Errorf("a queue wizard is already in progress")
	}
	b := NewBuilder(ownerID)
	m.builders[ownerID] = b
	return b, nil
}

// ActiveBuilder returns the player's in-progress wizard, if any.
func (m *Manager) ActiveBuilder(ownerID string) (*Builder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builders[ownerID]
	return b, ok
}

// CancelBuilder discards the player's wizard and reports whether one existed.
func (m *Manager) CancelBuilder(ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.builders[ownerID]; !ok {
		return false
	}
	delete(m.builders, ownerID)
	return true
}

// FinalizeBuilder converts a completed wizard into a live queue hosted by
// this process and registers it. The wizard is destroyed only on success.
func (m *Manager) FinalizeBuilder(ctx context.Context, ownerID string) (*Queue, error) {
	m.mu.Lock()
	b, ok := m.builders[ownerID]
	m.mu.Unlock()
	if !ok {
		return nil, oops.Code("BUILDER_NOT_FOUND").With("owner", ownerID).
			Errorf("no queue wizard in progress")
	}

	q, err := b.Build(m.server)
	if err != nil {
		return nil, err
	}
	if err := m.Create(ctx, q); err != nil {
		return nil, err
	}

	m.mu.Lock()
	delete(m.builders, ownerID)
	m.mu.Unlock()
	return q, nil
}
