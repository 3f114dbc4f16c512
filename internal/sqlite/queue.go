package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/repository"
)

// QueueRepository implements syncqueue.Repository for SQLite
type QueueRepository struct {
	db *DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Append stores item at the tail of the user's queue.
func (r *QueueRepository) Append(ctx context.Context, userID string, item syncqueue.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (
			id, user_id, kind, collection, document_id, payload,
			audit_time, attempts, enqueued_at, last_attempt_at, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID.String(),
		userID,
		item.Kind,
		item.Collection,
		item.DocumentID,
		string(item.Payload),
		item.AuditTime,
		item.Attempts,
		item.EnqueuedAt,
		item.LastAttemptAt,
		item.LastError,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to append queue item: %w", err)
	}
	return nil
}

// Update writes retry bookkeeping for item.
func (r *QueueRepository) Update(ctx context.Context, userID string, item syncqueue.Item) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET attempts = ?, last_attempt_at = ?, last_error = ?
		WHERE user_id = ? AND id = ?
	`, item.Attempts, item.LastAttemptAt, item.LastError, userID, item.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an item. Deleting an absent item is not an error.
func (r *QueueRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE user_id = ? AND id = ?`, userID, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}

// List returns the user's queue, oldest first.
func (r *QueueRepository) List(ctx context.Context, userID string) ([]syncqueue.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, collection, document_id, payload,
			audit_time, attempts, enqueued_at, last_attempt_at, last_error
		FROM sync_queue
		WHERE user_id = ?
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var items []syncqueue.Item
	for rows.Next() {
		var (
			it          syncqueue.Item
			id          string
			payload     string
			lastAttempt sql.NullTime
		)
		if err := rows.Scan(
			&id,
			&it.Kind,
			&it.Collection,
			&it.DocumentID,
			&payload,
			&it.AuditTime,
			&it.Attempts,
			&it.EnqueuedAt,
			&lastAttempt,
			&it.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid queue item id %q: %w", id, err)
		}
		it.ID = parsed
		it.Payload = []byte(payload)
		if lastAttempt.Valid {
			t := lastAttempt.Time
			it.LastAttemptAt = &t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue rows: %w", err)
	}
	return items, nil
}

// Users lists users with queued writes.
func (r *QueueRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sync_queue ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan queue user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
