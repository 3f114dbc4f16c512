package symptom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/repository"
)

// ErrStaleUpdate is returned when the stored day was written after the update.
var ErrStaleUpdate = errors.New("symptom day has a newer update")

// RawEntry is an unparsed entry as received from a client.
type RawEntry struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// RecordRequest describes the symptoms observed on one day.
type RecordRequest struct {
	PetID   string
	Date    civil.Date
	Entries []RawEntry
	Notes   string
}

// Service handles symptom day operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new symptom service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// Build parses and validates a request without storing it.
func Build(req RecordRequest, now time.Time) (Day, error) {
	if !req.Date.IsValid() {
		return Day{}, fmt.Errorf("%w: date", ErrInvalidInput)
	}
	if req.Date.After(civil.DateOf(now)) {
		return Day{}, fmt.Errorf("%w: date %s is in the future", ErrInvalidInput, req.Date)
	}
	entries := make([]Entry, 0, len(req.Entries))
	for _, raw := range req.Entries {
		e, err := ParseEntry(raw.Kind, raw.Value)
		if err != nil {
			return Day{}, err
		}
		entries = append(entries, e)
	}
	return NewDay(req.PetID, req.Date, entries, req.Notes, now)
}

// Record replaces the symptom day for req.Date. A stored day with a later
// update time wins.
func (s *Service) Record(ctx context.Context, userID string, req RecordRequest, now time.Time) (Day, error) {
	if userID == "" {
		return Day{}, ErrInvalidInput
	}
	day, err := Build(req, now)
	if err != nil {
		return Day{}, err
	}

	existing, err := s.repo.Get(ctx, userID, day.PetID, day.Date)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return Day{}, fmt.Errorf("loading symptom day: %w", err)
	case existing.UpdatedAt.After(day.UpdatedAt):
		return Day{}, ErrStaleUpdate
	}

	if err := s.repo.Upsert(ctx, userID, day); err != nil {
		return Day{}, fmt.Errorf("saving symptom day: %w", err)
	}
	s.logger.Debug("symptom day recorded", "user_id", userID, "pet_id", day.PetID, "date", day.Date, "symptoms", day.SymptomCount())
	return day, nil
}

// Get returns the stored day, or nil when nothing was logged.
func (s *Service) Get(ctx context.Context, userID, petID string, date civil.Date) (*Day, error) {
	day, err := s.repo.Get(ctx, userID, petID, date)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading symptom day: %w", err)
	}
	return day, nil
}
