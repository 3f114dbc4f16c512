package syncqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned when the queue is at its hard limit.
	ErrQueueFull = errors.New("offline queue is full")

	// ErrSyncFailed is matched by SyncFailedError.
	ErrSyncFailed = errors.New("queued writes exceeded retry ceiling")

	// ErrItemNotFound is returned when an item id is not queued.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
)

// SyncFailedError reports how many items are beyond the retry ceiling.
type SyncFailedError struct {
	Count int
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("%d queued write(s) exceeded retry ceiling", e.Count)
}

func (e *SyncFailedError) Is(target error) bool {
	return target == ErrSyncFailed
}
