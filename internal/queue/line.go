// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package queue contains the attraction queue domain types: the shared line
// mechanics and the single-process physical ride queues.
package queue

import (
	"slices"

	"github.com/samber/oops"
)

// Line holds the ordered membership shared by physical and virtual queues.
// It is not safe for concurrent use; owners serialize access (managers hold
// their own lock around every mutation).
type Line struct {
	members []string
	open    bool
	dirty   bool
}

// NewLine creates an empty closed line.
func NewLine() *Line {
	return &Line{}
}

// Join appends a member to the end of the line.
// Fails with QUEUE_CLOSED if the line is closed and ALREADY_QUEUED if the
// member is present; a member appears at most once.
func (l *Line) Join(memberID string) error {
	if !l.open {
		return oops.Code("QUEUE_CLOSED").Errorf("queue is closed")
	}
	if l.Contains(memberID) {
		return oops.Code("ALREADY_QUEUED").With("member", memberID).Errorf("already in queue")
	}
	l.members = append(l.members, memberID)
	l.dirty = true
	return nil
}

// Leave removes a member and reports whether removal occurred.
func (l *Line) Leave(memberID string) bool {
	for i, m := range l.members {
		if m == memberID {
			l.members = append(l.members[:i], l.members[i+1:]...)
			l.dirty = true
			return true
		}
	}
	return false
}

// Position returns the 1-based position of a member, or 0 if absent.
// Callers must treat 0 as "not queued".
func (l *Line) Position(memberID string) int {
	for i, m := range l.members {
		if m == memberID {
			return i + 1
		}
	}
	return 0
}

// Admit pops the member at the front of the line.
// The second return is false when the line is empty.
func (l *Line) Admit() (string, bool) {
	if len(l.members) == 0 {
		return "", false
	}
	head := l.members[0]
	l.members = l.members[1:]
	l.dirty = true
	return head, true
}

// SetOpen sets the open flag and reports whether the state changed.
// Unchanged state is a no-op and does not mark the line dirty.
func (l *Line) SetOpen(open bool) bool {
	if l.open == open {
		return false
	}
	l.open = open
	l.dirty = true
	return true
}

// Open reports whether the line accepts joins.
func (l *Line) Open() bool { return l.open }

// Contains reports whether a member is in the line.
func (l *Line) Contains(memberID string) bool {
	return slices.Contains(l.members, memberID)
}

// Len returns the number of queued members.
func (l *Line) Len() int { return len(l.members) }

// Members returns a copy of the ordered membership.
func (l *Line) Members() []string {
	return slices.Clone(l.members)
}

// Head returns the first n members (fewer if the line is shorter).
func (l *Line) Head(n int) []string {
	if n > len(l.members) {
		n = len(l.members)
	}
	return slices.Clone(l.members[:n])
}

// Replace overwrites the membership wholesale. Mirrors apply authoritative
// update payloads through this; no partial merges.
func (l *Line) Replace(members []string) {
	l.members = slices.Clone(members)
}

// Dirty reports whether the line changed since the last ClearDirty.
func (l *Line) Dirty() bool { return l.dirty }

// MarkDirty flags the line for the next reconciliation broadcast.
func (l *Line) MarkDirty() { l.dirty = true }

// ClearDirty resets the dirty flag after a broadcast.
func (l *Line) ClearDirty() { l.dirty = false }
