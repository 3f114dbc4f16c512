package dailycache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Encode serialises a snapshot for local persistence.
func Encode(s Summary) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding daily cache: %w", err)
	}
	return b, nil
}

// Load decodes a persisted snapshot. A snapshot for a day other than the
// local day of now is treated as absent.
func Load(raw []byte, now time.Time) (Summary, bool, error) {
	if len(raw) == 0 {
		return Summary{}, false, nil
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !s.IsValidFor(now) {
		return Summary{}, false, nil
	}
	return normalize(s), true, nil
}

func normalize(s Summary) Summary {
	out := s.clone()
	if out.MedicationNames == nil {
		out.MedicationNames = []string{}
	}
	if out.SessionIDs == nil {
		out.SessionIDs = []string{}
	}
	if out.PendingIDs == nil {
		out.PendingIDs = []string{}
	}
	return out
}
