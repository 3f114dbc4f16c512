package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/repository"
)

// SymptomRepository implements symptom.Repository for SQLite
type SymptomRepository struct {
	db *DB
}

// NewSymptomRepository creates a new SymptomRepository
func NewSymptomRepository(db *DB) *SymptomRepository {
	return &SymptomRepository{db: db}
}

func (r *SymptomRepository) Get(ctx context.Context, userID, petID string, date civil.Date) (*symptom.Day, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM symptom_days WHERE user_id = ? AND pet_id = ? AND date = ?`,
		userID, petID, date.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get symptom day: %w", err)
	}
	var day symptom.Day
	if err := json.Unmarshal([]byte(payload), &day); err != nil {
		return nil, fmt.Errorf("failed to decode symptom day: %w", err)
	}
	return &day, nil
}

func (r *SymptomRepository) Upsert(ctx context.Context, userID string, day symptom.Day) error {
	payload, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("failed to encode symptom day: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO symptom_days (user_id, pet_id, date, payload, symptom_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, pet_id, date) DO UPDATE SET
			payload = excluded.payload,
			symptom_count = excluded.symptom_count,
			updated_at = excluded.updated_at
	`, userID, day.PetID, day.Date.String(), string(payload), day.SymptomCount(), day.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save symptom day: %w", err)
	}
	return nil
}

// Range returns stored days between start and end inclusive, ascending.
func (r *SymptomRepository) Range(ctx context.Context, userID, petID string, start, end civil.Date) ([]symptom.Day, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM symptom_days
		WHERE user_id = ? AND pet_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, userID, petID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list symptom days: %w", err)
	}
	defer rows.Close()

	var days []symptom.Day
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan symptom day: %w", err)
		}
		var day symptom.Day
		if err := json.Unmarshal([]byte(payload), &day); err != nil {
			return nil, fmt.Errorf("failed to decode symptom day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symptom rows: %w", err)
	}
	return days, nil
}
