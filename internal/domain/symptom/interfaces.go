package symptom

import (
	"context"

	"cloud.google.com/go/civil"
)

// Repository persists symptom days locally.
type Repository interface {
	Get(ctx context.Context, userID, petID string, date civil.Date) (*Day, error)
	Upsert(ctx context.Context, userID string, day Day) error
	Range(ctx context.Context, userID, petID string, start, end civil.Date) ([]Day, error)
}
