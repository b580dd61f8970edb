// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package queue

import (
	"time"

	"github.com/parkhaven/parkhaven/internal/platform"
)

// Queue is a physical attraction queue: a single line on this server process
// that admits fixed-size groups after a per-queue delay.
type Queue struct {
	ID   string
	Name string
	Park string
	// Warp is the named warp point at the attraction entrance. Legacy park
	// files without an explicit id derive the queue id from it.
	Warp string

	GroupSize int
	Delay     time.Duration
	// FastPass marks the queue as chargeable against a FastPass balance.
	FastPass bool

	Signs   []platform.Position
	Station platform.Position
	Exit    platform.Position

	line      *Line
	lastAdmit time.Time
}

// New creates a physical queue with an empty closed line.
func New(id, name, park string) *Queue {
	return &Queue{ID: id, Name: name, Park: park, GroupSize: 1, line: NewLine()}
}

// Line exposes the membership mechanics.
func (q *Queue) Line() *Line { return q.line }

// Tick advances group admission. When the queue is open, non-empty, and the
// per-queue delay has elapsed since the last group, it pops up to GroupSize
// members and returns them for the manager to stage at the station.
func (q *Queue) Tick(now time.Time) []string {
	if !q.line.Open() || q.line.Len() == 0 {
		return nil
	}
	if now.Sub(q.lastAdmit) < q.Delay {
		return nil
	}

	size := q.GroupSize
	if size < 1 {
		size = 1
	}
	var group []string
	for len(group) < size {
		member, ok := q.line.Admit()
		if !ok {
			break
		}
		group = append(group, member)
	}
	if len(group) > 0 {
		q.lastAdmit = now
	}
	return group
}

// HasSign reports whether pos is one of the queue's status signs.
func (q *Queue) HasSign(pos platform.Position) bool {
	for _, s := range q.Signs {
		if s == pos {
			return true
		}
	}
	return false
}
