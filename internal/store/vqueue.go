// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package store

import (
	"context"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// PostgresVirtualQueueStore implements vqueue.Store using PostgreSQL.
// Each queue is a single row; the member list is stored as a text array
// and overwritten wholesale on every save.
type PostgresVirtualQueueStore struct {
	pool poolIface
}

// NewPostgresVirtualQueueStore creates a new PostgreSQL virtual queue store.
func NewPostgresVirtualQueueStore(pool poolIface) *PostgresVirtualQueueStore {
	return &PostgresVirtualQueueStore{pool: pool}
}

// Save upserts the full state document for a queue.
func (s *PostgresVirtualQueueStore) Save(ctx context.Context, doc vqueue.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO virtual_queues (queue_id, name, server, holding_area, open, members, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (queue_id) DO UPDATE
		 SET name = $2, server = $3, holding_area = $4, open = $5, members = $6, updated_at = now()`,
		doc.QueueID, doc.Name, doc.Server, doc.HoldingArea, doc.Open, doc.Members)
	if err != nil {
		return oops.Code("VQUEUE_SAVE_FAILED").With("queue_id", doc.QueueID).Wrap(err)
	}
	return nil
}

// Delete removes a queue's state document. Deleting an absent queue is not
// an error; shutdown and crash recovery both delete unconditionally.
func (s *PostgresVirtualQueueStore) Delete(ctx context.Context, queueID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM virtual_queues WHERE queue_id = $1`, queueID)
	if err != nil {
		return oops.Code("VQUEUE_DELETE_FAILED").With("queue_id", queueID).Wrap(err)
	}
	return nil
}

// LoadAll returns every persisted queue document across all servers.
func (s *PostgresVirtualQueueStore) LoadAll(ctx context.Context) ([]vqueue.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT queue_id, name, server, holding_area, open, members FROM virtual_queues ORDER BY queue_id`)
	if err != nil {
		return nil, oops.Code("VQUEUE_LOAD_FAILED").With("operation", "query virtual queues").Wrap(err)
	}
	defer rows.Close()

	var docs []vqueue.Document
	for rows.Next() {
		var d vqueue.Document
		if err := rows.Scan(&d.QueueID, &d.Name, &d.Server, &d.HoldingArea, &d.Open, &d.Members); err != nil {
			return nil, oops.Code("VQUEUE_LOAD_FAILED").With("operation", "scan virtual queue row").Wrap(err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("VQUEUE_LOAD_FAILED").With("operation", "iterate virtual queues").Wrap(err)
	}
	return docs, nil
}
