package activity

import "context"

// Repository stores analytics events per user.
type Repository interface {
	Log(ctx context.Context, userID string, entry *ActivityEntry) error
	// List returns matching entries, newest first.
	List(ctx context.Context, userID string, opts ListActivityOptions) ([]ActivityEntry, error)
}
