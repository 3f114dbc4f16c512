package coordinator

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateDetected is matched by DuplicateError.
	ErrDuplicateDetected = errors.New("duplicate medication detected")

	// ErrInvalidInput is returned for requests missing required ids.
	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateError reports a medication already given near the requested time.
// It is informational: callers may update the existing record instead, or
// retry with AllowDuplicate.
type DuplicateError struct {
	Medication string
	Scheduled  time.Time
	Window     time.Duration
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already logged within %s of %s", e.Medication, e.Window, e.Scheduled.Format(time.RFC3339))
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateDetected
}
