package dailycache

import (
	"context"
	"time"
)

// Repository persists the latest snapshot per pet.
type Repository interface {
	// Load returns the snapshot for key if it describes the local day of now.
	Load(ctx context.Context, key Key, now time.Time) (Summary, bool, error)
	Save(ctx context.Context, key Key, s Summary) error
}
