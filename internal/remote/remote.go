// Package remote defines the document store the sync core persists to.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRemoteUnavailable is a transient failure; the write is queued.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrStaleWrite is returned when a stored document has a newer audit time.
	ErrStaleWrite = errors.New("stale write: remote document is newer")

	// ErrUnsupportedFilter is returned for an operator the store cannot evaluate.
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// Document is one entity in a collection. AuditTime orders competing writes.
type Document struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
	AuditTime  time.Time      `json:"audit_time"`
}

// Path is the full document path.
func (d Document) Path() string {
	return d.Collection + "/" + d.ID
}

// Op is a comparison operator in a query filter.
type Op string

const (
	OpEqual        Op = "=="
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a collection read.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Limit      int
}

// Store is the remote document store.
type Store interface {
	// Put writes doc unless the stored copy has a later AuditTime, in which
	// case it returns ErrStaleWrite and leaves the stored copy untouched.
	Put(ctx context.Context, doc Document) error
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Paths for per-pet collections.
func MedicationSessions(userID, petID string) string {
	return petPath(userID, petID) + "/medicationSessions"
}

func FluidSessions(userID, petID string) string {
	return petPath(userID, petID) + "/fluidSessions"
}

func SymptomDays(userID, petID string) string {
	return petPath(userID, petID) + "/symptomDays"
}

func petPath(userID, petID string) string {
	return fmt.Sprintf("users/%s/pets/%s", userID, petID)
}
