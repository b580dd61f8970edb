// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package platform defines the narrow adapter interfaces through which the
// queue core reaches the hosting game engine. Engine types never cross this
// boundary; queue logic sees only positions, message sinks, and teleports.
package platform

import "fmt"

// Position is an engine-agnostic world coordinate.
type Position struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw,omitempty"`
	Pitch float32 `json:"pitch,omitempty"`
}

// String returns a compact representation for logs and signs.
func (p Position) String() string {
	return fmt.Sprintf("%s(%.1f,%.1f,%.1f)", p.World, p.X, p.Y, p.Z)
}

// IsZero reports whether the position has not been set.
func (p Position) IsZero() bool {
	return p == Position{}
}

// Player is a connected player the engine can act on.
type Player interface {
	// ID returns the stable member identifier used in queue membership lists.
	ID() string
	// Name returns the display name.
	Name() string
	// Message sends a chat message to the player.
	Message(text string)
	// Teleport moves the player within this server process.
	Teleport(pos Position)
	// Transfer dispatches the player to another server process in the
	// network. Delivery is handled by the engine's proxy layer.
	Transfer(server string) error
}

// Directory resolves members to players connected to this server process.
// A member who is queued on a remote process is simply absent here.
type Directory interface {
	Lookup(memberID string) (Player, bool)
	Online() []Player
}

// SignWriter updates the four text lines of a physical sign. Writes are
// applied on the engine's next scheduler tick; the error reports only
// whether the write could be scheduled.
type SignWriter interface {
	SetLines(pos Position, lines [4]string) error
}

// EmptyDirectory is a Directory with no connected players. Headless
// coordinator processes use it; every member is simply remote.
type EmptyDirectory struct{}

// Lookup never finds anyone.
func (EmptyDirectory) Lookup(string) (Player, bool) { return nil, false }

// Online returns no players.
func (EmptyDirectory) Online() []Player { return nil }

// NopSignWriter discards sign updates. Used where no engine is attached.
type NopSignWriter struct{}

// SetLines does nothing.
func (NopSignWriter) SetLines(Position, [4]string) error { return nil }
