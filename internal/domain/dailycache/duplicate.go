package dailycache

import (
	"fmt"
	"time"
)

// DuplicateStatus is the outcome of a duplicate check.
type DuplicateStatus int

const (
	// DuplicateUnknown means the cache cannot answer authoritatively,
	// because it is stale or was never hydrated from remote history.
	DuplicateUnknown DuplicateStatus = iota
	NotDuplicate
	Duplicate
)

func (d DuplicateStatus) String() string {
	switch d {
	case NotDuplicate:
		return "not_duplicate"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (d DuplicateStatus) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a status name.
func (d *DuplicateStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unknown":
		*d = DuplicateUnknown
	case "not_duplicate":
		*d = NotDuplicate
	case "duplicate":
		*d = Duplicate
	default:
		return fmt.Errorf("unknown duplicate status %q", b)
	}
	return nil
}

// IsDuplicate reports whether a medication with name was already given within
// window of scheduled. The window is symmetric and inclusive.
func (s Summary) IsDuplicate(name string, scheduled time.Time, window time.Duration, now time.Time) DuplicateStatus {
	if !s.Hydrated || !s.IsValidFor(now) {
		return DuplicateUnknown
	}
	if window < 0 {
		window = -window
	}
	for _, t := range s.MedicationRecentTimes[name] {
		d := t.Sub(scheduled)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return Duplicate
		}
	}
	return NotDuplicate
}
