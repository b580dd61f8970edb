// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package platformtest provides in-memory fakes of the platform interfaces
// for use in tests.
package platformtest

import (
	"sync"

	"github.com/parkhaven/parkhaven/internal/platform"
)

// Player is an in-memory platform.Player that records everything done to it.
type Player struct {
	mu sync.Mutex

	PlayerID   string
	PlayerName string

	Messages  []string
	Teleports []platform.Position
	Transfers []string

	TransferErr error
}

// NewPlayer creates a fake player. If name is empty the ID is used.
func NewPlayer(id, name string) *Player {
	if name == "" {
		name = id
	}
	return &Player{PlayerID: id, PlayerName: name}
}

func (p *Player) ID() string   { return p.PlayerID }
func (p *Player) Name() string { return p.PlayerName }

func (p *Player) Message(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, text)
}

func (p *Player) Teleport(pos platform.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Teleports = append(p.Teleports, pos)
}

func (p *Player) Transfer(server string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TransferErr != nil {
		return p.TransferErr
	}
	p.Transfers = append(p.Transfers, server)
	return nil
}

// LastTeleport returns the most recent teleport target, or the zero position
// if the player was never moved.
func (p *Player) LastTeleport() platform.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Teleports) == 0 {
		return platform.Position{}
	}
	return p.Teleports[len(p.Teleports)-1]
}

// LastMessage returns the most recent message, or "" if none.
func (p *Player) LastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Messages) == 0 {
		return ""
	}
	return p.Messages[len(p.Messages)-1]
}

// Directory is an in-memory platform.Directory.
type Directory struct {
	mu      sync.Mutex
	players map[string]*Player
}

// NewDirectory creates a directory containing the given players.
func NewDirectory(players ...*Player) *Directory {
	d := &Directory{players: make(map[string]*Player)}
	for _, p := range players {
		d.players[p.PlayerID] = p
	}
	return d
}

// Add connects a player to the directory.
func (d *Directory) Add(p *Player) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.players[p.PlayerID] = p
}

// Remove disconnects a player.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.players, id)
}

func (d *Directory) Lookup(memberID string) (platform.Player, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.players[memberID]
	return p, ok
}

func (d *Directory) Online() []platform.Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]platform.Player, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	return out
}

// SignWriter records sign writes keyed by position.
type SignWriter struct {
	mu    sync.Mutex
	Lines map[platform.Position][4]string
	Err   error
}

// NewSignWriter creates an empty fake sign writer.
func NewSignWriter() *SignWriter {
	return &SignWriter{Lines: make(map[platform.Position][4]string)}
}

func (w *SignWriter) SetLines(pos platform.Position, lines [4]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Lines[pos] = lines
	return nil
}

// At returns the lines last written at pos.
func (w *SignWriter) At(pos platform.Position) ([4]string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines, ok := w.Lines[pos]
	return lines, ok
}
