package bucket

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
)

// Bucket aggregates per-day symptom data over an inclusive date range.
// Values are immutable; build them with a Builder.
type Bucket struct {
	Start               civil.Date     `json:"start"`
	End                 civil.Date     `json:"end"`
	Counts              map[string]int `json:"counts"`
	TotalCount          int            `json:"total_count"`
	DaysWithAnySymptoms int            `json:"days_with_any_symptoms"`
	DaysWithLogs        int            `json:"days_with_logs"`
}

// Contains reports whether d lies inside the bucket range, bounds included.
func (b Bucket) Contains(d civil.Date) bool {
	return !d.Before(b.Start) && !d.After(b.End)
}

// Days returns the number of calendar days covered by the bucket.
func (b Bucket) Days() int {
	return b.End.DaysSince(b.Start) + 1
}

// Count returns the count for a category; absent categories count zero.
func (b Bucket) Count(category string) int {
	return b.Counts[category]
}

// Categories returns the categories present in the bucket in sorted order.
func (b Bucket) Categories() []string {
	out := make([]string, 0, len(b.Counts))
	for category := range b.Counts {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Validate checks the structural invariants of a bucket.
func (b Bucket) Validate() error {
	if b.End.Before(b.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, b.End, b.Start)
	}
	sum := 0
	for category, count := range b.Counts {
		if count <= 0 {
			return fmt.Errorf("%w: category %q has count %d", ErrZeroCount, category, count)
		}
		sum += count
	}
	if sum != b.TotalCount {
		return fmt.Errorf("%w: total %d, sum of counts %d", ErrTotalMismatch, b.TotalCount, sum)
	}
	return nil
}
