package syncqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the type of write carried by a queue item.
type Kind string

const (
	KindMedicationSession Kind = "medication_session"
	KindFluidSession      Kind = "fluid_session"
	KindSymptomDay        Kind = "symptom_day"
)

// Item is a pending remote write.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	Kind          Kind            `json:"kind"`
	Collection    string          `json:"collection"`
	DocumentID    string          `json:"document_id"`
	Payload       json.RawMessage `json:"payload"`
	AuditTime     time.Time       `json:"audit_time"`
	Attempts      int             `json:"attempts"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// NewItem encodes payload into a fresh item.
func NewItem(kind Kind, collection, documentID string, payload any, auditTime, now time.Time) (Item, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Item{}, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return Item{
		ID:         uuid.New(),
		Kind:       kind,
		Collection: collection,
		DocumentID: documentID,
		Payload:    raw,
		AuditTime:  auditTime,
		EnqueuedAt: now,
	}, nil
}

// Limits are the capacity thresholds and retry ceiling.
type Limits struct {
	Soft        int `yaml:"soft_limit"`
	Hard        int `yaml:"hard_limit"`
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultLimits returns the stock thresholds.
func DefaultLimits() Limits {
	return Limits{Soft: 50, Hard: 200, MaxAttempts: 5}
}

// State is the backpressure level of a queue, derived from its size.
type State string

const (
	StateEmpty        State = "empty"
	StateAccumulating State = "accumulating"
	StateSoftWarning  State = "soft_warning"
	StateHardFull     State = "hard_full"
)

// StateFor maps a size to its state.
func StateFor(size int, l Limits) State {
	switch {
	case size <= 0:
		return StateEmpty
	case size >= l.Hard:
		return StateHardFull
	case size > l.Soft:
		return StateSoftWarning
	default:
		return StateAccumulating
	}
}

// Blocking reports whether new writes are refused.
func (s State) Blocking() bool {
	return s == StateHardFull
}

// EnqueueResult describes an accepted enqueue.
type EnqueueResult struct {
	Size    int
	State   State
	Warning bool
}
