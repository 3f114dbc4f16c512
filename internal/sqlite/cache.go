package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/adherence/internal/domain/dailycache"
)

const todaySlot = "today"

// CacheRepository implements dailycache.Repository for SQLite
type CacheRepository struct {
	db *DB
}

// NewCacheRepository creates a new CacheRepository
func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Load returns the stored snapshot when it is for the local day of now.
func (r *CacheRepository) Load(ctx context.Context, key dailycache.Key, now time.Time) (dailycache.Summary, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_cache WHERE user_id = ? AND pet_id = ? AND slot = ?`,
		key.UserID, key.PetID, todaySlot,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dailycache.Summary{}, false, nil
	}
	if err != nil {
		return dailycache.Summary{}, false, fmt.Errorf("failed to load daily cache: %w", err)
	}
	return dailycache.Load([]byte(payload), now)
}

// Save replaces the stored snapshot.
func (r *CacheRepository) Save(ctx context.Context, key dailycache.Key, s dailycache.Summary) error {
	payload, err := dailycache.Encode(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_cache (user_id, pet_id, slot, date, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, pet_id, slot) DO UPDATE SET
			date = excluded.date,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, key.UserID, key.PetID, todaySlot, s.Date.String(), string(payload), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save daily cache: %w", err)
	}
	return nil
}

// Pets lists the pets of userID that have a stored snapshot.
func (r *CacheRepository) Pets(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pet_id FROM daily_cache WHERE user_id = ? AND slot = ? ORDER BY pet_id`,
		userID, todaySlot,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached pets: %w", err)
	}
	defer rows.Close()

	var pets []string
	for rows.Next() {
		var petID string
		if err := rows.Scan(&petID); err != nil {
			return nil, fmt.Errorf("failed to scan cached pet: %w", err)
		}
		pets = append(pets, petID)
	}
	return pets, rows.Err()
}
