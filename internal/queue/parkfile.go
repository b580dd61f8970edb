// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package queue

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/platform"
)

// parkFile is the on-disk document holding a park's queue definitions.
// These files are configuration input; membership is never persisted.
type parkFile struct {
	Park   string     `json:"park"`
	Queues []queueDoc `json:"queues"`
}

type queueDoc struct {
	// ID may be absent in legacy files; the loader derives it from Warp.
	ID           string              `json:"id,omitempty"`
	Name         string              `json:"name"`
	Warp         string              `json:"warp"`
	GroupSize    int                 `json:"group_size"`
	DelaySeconds int                 `json:"delay_seconds"`
	FastPass     bool                `json:"fastpass,omitempty"`
	Open         bool                `json:"open,omitempty"`
	Signs        []platform.Position `json:"signs,omitempty"`
	Station      platform.Position   `json:"station"`
	Exit         platform.Position   `json:"exit"`
}

// LoadFile reads a park file and registers its queues.
//
// Legacy files predate explicit queue ids, so two entries can resolve to the
// same id (both derived from the same warp). Later entries get a numeric
// suffix appended, starting at 2, until the id is unique: the second
// "mainstreet" becomes "mainstreet2". This rename rule is relied on by
// existing park data and must not change.
func (m *Manager) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("PARK_FILE_READ_FAILED").With("path", path).Wrap(err)
	}

	var doc parkFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return oops.Code("PARK_FILE_MALFORMED").With("path", path).Wrap(err)
	}

	for _, qd := range doc.Queues {
		id := qd.ID
		if id == "" {
			id = qd.Warp
		}
		if id == "" {
			// No id and no warp: nothing to key the queue on. Default-and-continue.
			slog.Warn("skipping queue with no id or warp", "path", path, "name", qd.Name)
			continue
		}
		id = m.uniqueID(id)

		q := New(id, qd.Name, doc.Park)
		q.Warp = qd.Warp
		q.GroupSize = qd.GroupSize
		q.Delay = time.Duration(qd.DelaySeconds) * time.Second
		q.FastPass = qd.FastPass
		q.Signs = qd.Signs
		q.Station = qd.Station
		q.Exit = qd.Exit
		q.Line().SetOpen(qd.Open)
		q.Line().ClearDirty()

		if err := m.Register(q); err != nil {
			// uniqueID guarantees registration succeeds; a failure here means
			// concurrent registration raced the load. Log and continue.
			slog.Warn("failed to register loaded queue", "queue", id, "error", err)
		}
	}
	return nil
}

// SaveFile writes the current queue definitions back to a park file.
func (m *Manager) SaveFile(path string) error {
	queues, err := m.List("")
	if err != nil {
		return err
	}

	doc := parkFile{Park: m.park}
	for _, q := range queues {
		doc.Queues = append(doc.Queues, queueDoc{
			ID:           q.ID,
			Name:         q.Name,
			Warp:         q.Warp,
			GroupSize:    q.GroupSize,
			DelaySeconds: int(q.Delay / time.Second),
			FastPass:     q.FastPass,
			Open:         q.Line().Open(),
			Signs:        q.Signs,
			Station:      q.Station,
			Exit:         q.Exit,
		})
	}
	sort.Slice(doc.Queues, func(i, j int) bool { return doc.Queues[i].ID < doc.Queues[j].ID })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return oops.Code("PARK_FILE_ENCODE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code("PARK_FILE_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// uniqueID appends a numeric suffix to id until it is not registered.
func (m *Manager) uniqueID(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.queues[id]; !taken {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + strconv.Itoa(n)
		if _, taken := m.queues[candidate]; !taken {
			slog.Warn("duplicate queue id in park data, renamed", "id", id, "renamed", candidate)
			return candidate
		}
	}
}
