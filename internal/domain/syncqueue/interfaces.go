package syncqueue

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists queued items per user.
type Repository interface {
	Append(ctx context.Context, userID string, item Item) error
	Update(ctx context.Context, userID string, item Item) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	List(ctx context.Context, userID string) ([]Item, error)
}

// Observer receives queue size changes and drain outcomes.
type Observer interface {
	QueueChanged(userID string, size int, state State)
	DrainFinished(userID string, report DrainReport)
}

// PersistFunc writes one item to the remote store.
type PersistFunc func(ctx context.Context, item Item) error
