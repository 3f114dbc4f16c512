package symptom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Kind identifies a tracked symptom.
type Kind string

const (
	KindVomiting              Kind = "vomiting"
	KindDiarrhea              Kind = "diarrhea"
	KindConstipation          Kind = "constipation"
	KindEnergy                Kind = "energy"
	KindSuppressedAppetite    Kind = "suppressedAppetite"
	KindInjectionSiteReaction Kind = "injectionSiteReaction"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{
	KindVomiting,
	KindDiarrhea,
	KindConstipation,
	KindEnergy,
	KindSuppressedAppetite,
	KindInjectionSiteReaction,
}

// MaxSeverity is the highest severity score any entry can derive.
const MaxSeverity = 3

// Entry is one observed symptom with its typed raw value.
// The concrete types in this package are the only implementations.
type Entry interface {
	Kind() Kind
	// Severity is a 0..3 score derived from the raw value.
	Severity() int
	// Raw returns the JSON-compatible raw measurement.
	Raw() any
	isEntry()
}

// Day is the symptom record for one pet on one calendar day.
type Day struct {
	PetID     string
	Date      civil.Date
	Entries   []Entry
	Notes     string
	UpdatedAt time.Time
}

// NewDay validates entries and builds a day record. A kind may appear once.
func NewDay(petID string, date civil.Date, entries []Entry, notes string, updatedAt time.Time) (Day, error) {
	if strings.TrimSpace(petID) == "" || !date.IsValid() {
		return Day{}, ErrInvalidInput
	}
	seen := make(map[Kind]bool, len(entries))
	for _, e := range entries {
		if e == nil {
			return Day{}, ErrInvalidInput
		}
		if seen[e.Kind()] {
			return Day{}, fmt.Errorf("%w: %s recorded twice", ErrInvalidEntry, e.Kind())
		}
		seen[e.Kind()] = true
	}
	return Day{PetID: petID, Date: date, Entries: entries, Notes: notes, UpdatedAt: updatedAt}, nil
}

// Entry returns the entry for kind, if recorded.
func (d *Day) Entry(kind Kind) (Entry, bool) {
	if d == nil {
		return nil, false
	}
	for _, e := range d.Entries {
		if e.Kind() == kind {
			return e, true
		}
	}
	return nil, false
}

// PresentKinds returns the kinds whose severity is above zero, sorted.
func (d *Day) PresentKinds() []Kind {
	if d == nil {
		return nil
	}
	var out []Kind
	for _, e := range d.Entries {
		if e.Severity() > 0 {
			out = append(out, e.Kind())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SymptomCount is the number of distinct symptoms present that day.
func (d *Day) SymptomCount() int {
	return len(d.PresentKinds())
}

// HasAnySymptoms reports whether any entry has a non-zero severity.
func (d *Day) HasAnySymptoms() bool {
	return d.SymptomCount() > 0
}

// MaxSeverity returns the worst severity recorded for the day.
func (d *Day) MaxSeverity() int {
	if d == nil {
		return 0
	}
	worst := 0
	for _, e := range d.Entries {
		if s := e.Severity(); s > worst {
			worst = s
		}
	}
	return worst
}

type wireEntry struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

type wireDay struct {
	PetID     string      `json:"pet_id"`
	Date      civil.Date  `json:"date"`
	Entries   []wireEntry `json:"entries"`
	Notes     string      `json:"notes,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MarshalJSON encodes the day with tagged entries.
func (d Day) MarshalJSON() ([]byte, error) {
	w := wireDay{PetID: d.PetID, Date: d.Date, Notes: d.Notes, UpdatedAt: d.UpdatedAt}
	w.Entries = make([]wireEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		raw, err := json.Marshal(e.Raw())
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", e.Kind(), err)
		}
		w.Entries = append(w.Entries, wireEntry{Kind: e.Kind(), Value: raw})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes tagged entries, rejecting unknown kinds.
func (d *Day) UnmarshalJSON(data []byte) error {
	var w wireDay
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	entries := make([]Entry, 0, len(w.Entries))
	for _, we := range w.Entries {
		e, err := ParseEntry(string(we.Kind), we.Value)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	*d = Day{PetID: w.PetID, Date: w.Date, Entries: entries, Notes: w.Notes, UpdatedAt: w.UpdatedAt}
	return nil
}
