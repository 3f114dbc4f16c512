package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, tenantID string, entry *ActivityEntry) error {
	if entry == nil || entry.ActivityType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Log(ctx, tenantID, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Emit records an analytics event. Failures are logged and dropped so that
// analytics never affects the write path.
func (s *Service) Emit(ctx context.Context, tenantID string, entry ActivityEntry, details any) {
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("encoding activity details", "type", entry.ActivityType, "error", err)
		} else {
			entry.Details = string(b)
		}
	}
	if err := s.LogActivity(ctx, tenantID, &entry); err != nil {
		s.logger.Warn("dropping activity event", "type", entry.ActivityType, "tenant_id", tenantID, "error", err)
	}
}

// GetRecentActivity lists activity entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, tenantID string, opts ListActivityOptions) ([]ActivityEntry, error) {
	return s.repo.List(ctx, tenantID, opts)
}
