package aggregate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/symptom"
)

// DayReader loads stored symptom days in an inclusive range.
type DayReader interface {
	Range(ctx context.Context, userID, petID string, start, end civil.Date) ([]symptom.Day, error)
}

// Service derives summaries from stored symptom days.
type Service struct {
	days   DayReader
	logger *slog.Logger
}

// NewService creates a new aggregation service.
func NewService(days DayReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{days: days, logger: logger}
}

// Weekly returns the Monday..Sunday buckets for the week containing day.
func (s *Service) Weekly(ctx context.Context, userID, petID string, day civil.Date) ([]bucket.Bucket, error) {
	start := WeekStart(day)
	days, err := s.load(ctx, userID, petID, start, start.AddDays(6))
	if err != nil {
		return nil, err
	}
	return Weekly(day, days), nil
}

// Monthly returns the week segments of a month.
func (s *Service) Monthly(ctx context.Context, userID, petID string, year int, month time.Month) ([]bucket.Bucket, error) {
	days, err := s.load(ctx, userID, petID, civil.Date{Year: year, Month: month, Day: 1}, MonthEnd(year, month))
	if err != nil {
		return nil, err
	}
	return Monthly(year, month, days), nil
}

// Yearly returns the month buckets of year up to now.
func (s *Service) Yearly(ctx context.Context, userID, petID string, year int, now time.Time) ([]bucket.Bucket, error) {
	if year > now.Year() {
		return []bucket.Bucket{}, nil
	}
	days, err := s.load(ctx, userID, petID, civil.Date{Year: year, Month: time.January, Day: 1}, civil.Date{Year: year, Month: time.December, Day: 31})
	if err != nil {
		return nil, err
	}
	return Yearly(year, days, now), nil
}

func (s *Service) load(ctx context.Context, userID, petID string, start, end civil.Date) (DayRecords, error) {
	list, err := s.days.Range(ctx, userID, petID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading symptom days: %w", err)
	}
	out := make(DayRecords, len(list))
	for i := range list {
		out[list[i].Date] = &list[i]
	}
	return out, nil
}
