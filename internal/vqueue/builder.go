// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package vqueue

import (
	"regexp"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/platform"
)

// Builder is a per-player, in-progress virtual queue whose fields are filled
// in one at a time through successive command invocations. It is not part of
// the manager's registry until finalized.
type Builder struct {
	// OwnerID is the player running the creation wizard.
	OwnerID string

	id          string
	name        string
	holdingArea int
	holdingPos  platform.Position
	admitPos    platform.Position
}

var queueIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NewBuilder starts a creation wizard for a player.
func NewBuilder(ownerID string) *Builder {
	return &Builder{OwnerID: ownerID}
}

// SetID sets the queue id. Ids are lowercase alphanumerics and dashes.
func (b *Builder) SetID(id string) error {
	if !queueIDPattern.MatchString(id) {
		return oops.Code("BUILDER_BAD_ID").With("id", id).
			Errorf("queue id must be lowercase letters, digits, and dashes")
	}
	b.id = id
	return nil
}

// SetName sets the display name.
func (b *Builder) SetName(name string) error {
	if name == "" {
		return oops.Code("BUILDER_BAD_NAME").Errorf("queue name cannot be empty")
	}
	b.name = name
	return nil
}

// SetHoldingArea sets the pre-staging capacity.
func (b *Builder) SetHoldingArea(n int) error {
	if n < 1 {
		return oops.Code("BUILDER_BAD_HOLDING").With("holding_area", n).
			Errorf("holding area must be at least 1")
	}
	b.holdingArea = n
	return nil
}

// SetHoldingPosition captures the holding-area teleport location.
func (b *Builder) SetHoldingPosition(pos platform.Position) error {
	if pos.IsZero() {
		return oops.Code("BUILDER_BAD_POSITION").Errorf("holding position cannot be empty")
	}
	b.holdingPos = pos
	return nil
}

// SetAdmitPosition captures the final admission teleport location.
func (b *Builder) SetAdmitPosition(pos platform.Position) error {
	if pos.IsZero() {
		return oops.Code("BUILDER_BAD_POSITION").Errorf("admission position cannot be empty")
	}
	b.admitPos = pos
	return nil
}

// Missing returns the name of the next unset field, or "" when the wizard is
// complete. The command surface prompts with this after every step.
func (b *Builder) Missing() string {
	switch {
	case b.id == "":
		return "id"
	case b.name == "":
		return "name"
	case b.holdingArea == 0:
		return "holding-area"
	case b.holdingPos.IsZero():
		return "holding-position"
	case b.admitPos.IsZero():
		return "admit-position"
	}
	return ""
}

// Build finalizes the wizard into a queue hosted by server.
// Fails with BUILDER_INCOMPLETE while any field is unset.
func (b *Builder) Build(server string) (*Queue, error) {
	if missing := b.Missing(); missing != "" {
		return nil, oops.Code("BUILDER_INCOMPLETE").With("missing", missing).
			Errorf("queue %q is missing %s", b.id, missing)
	}
	q := New(b.id, b.name, server, b.holdingArea)
	q.HoldingPos = b.holdingPos
	q.AdmitPos = b.admitPos
	return q, nil
}
