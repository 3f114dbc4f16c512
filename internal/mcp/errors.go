package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/rpggio/adherence/internal/remote"
)

var errInvalidParams = errors.New("invalid parameters")

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validation *treatment.ValidationError
	var dup *coordinator.DuplicateError
	var failed *syncqueue.SyncFailedError
	switch {
	case errors.As(err, &validation):
		return &APIError{
			Code:         "VALIDATION_FAILED",
			Message:      err.Error(),
			Details:      map[string]string{"field": validation.Field, "reason": validation.Reason},
			RecoveryHint: "Fix the named field and log again",
		}
	case errors.As(err, &dup):
		return &APIError{
			Code:    "DUPLICATE_DETECTED",
			Message: err.Error(),
			Details: map[string]any{
				"medication": dup.Medication,
				"scheduled":  dup.Scheduled,
				"window":     dup.Window.String(),
			},
			RecoveryHint: "Pass allow_duplicate=true if this dose was really given twice",
		}
	case errors.Is(err, syncqueue.ErrQueueFull):
		return &APIError{Code: "QUEUE_FULL", Message: "offline queue is full", RecoveryHint: "Reconnect and call drain_queue, or discard failed items"}
	case errors.As(err, &failed):
		return &APIError{Code: "SYNC_FAILED", Message: err.Error(), Details: map[string]int{"fail_count": failed.Count}, RecoveryHint: "Call retry_failed, or discard_queue_item for writes that cannot succeed"}
	case errors.Is(err, syncqueue.ErrItemNotFound):
		return &APIError{Code: "ITEM_NOT_FOUND", Message: "queue item not found", RecoveryHint: "Call get_queue_status for current item ids"}
	case errors.Is(err, symptom.ErrStaleUpdate):
		return &APIError{Code: "STALE_UPDATE", Message: err.Error(), RecoveryHint: "Reload the day before editing it"}
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return &APIError{Code: "REMOTE_UNAVAILABLE", Message: "remote store unavailable", RecoveryHint: "Retry once connectivity returns"}
	case errors.Is(err, symptom.ErrInvalidInput),
		errors.Is(err, symptom.ErrInvalidEntry),
		errors.Is(err, symptom.ErrUnknownKind),
		errors.Is(err, coordinator.ErrInvalidInput),
		errors.Is(err, syncqueue.ErrInvalidInput),
		errors.Is(err, errInvalidParams):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

func toAPIError(err error) *APIError {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return &APIError{Code: "INTERNAL", Message: err.Error()}
}
