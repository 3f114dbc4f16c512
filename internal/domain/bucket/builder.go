package bucket

import "cloud.google.com/go/civil"

// Builder accumulates counts for a single bucket.
type Builder struct {
	start        civil.Date
	end          civil.Date
	counts       map[string]int
	anySymptoms  int
	daysWithLogs int
}

// NewBuilder starts a bucket for the inclusive range [start, end].
// An end before start is clamped to start.
func NewBuilder(start, end civil.Date) *Builder {
	if end.Before(start) {
		end = start
	}
	return &Builder{start: start, end: end, counts: make(map[string]int)}
}

// Add increments category by n. Non-positive n is ignored.
func (b *Builder) Add(category string, n int) {
	if n <= 0 {
		return
	}
	b.counts[category] += n
}

// MarkLogged records that one day in the range had a record.
func (b *Builder) MarkLogged(anySymptoms bool) {
	b.daysWithLogs++
	if anySymptoms {
		b.anySymptoms++
	}
}

// Build returns the immutable bucket. TotalCount is derived from the counts.
func (b *Builder) Build() Bucket {
	counts := make(map[string]int, len(b.counts))
	total := 0
	for category, count := range b.counts {
		if count <= 0 {
			continue
		}
		counts[category] = count
		total += count
	}
	return Bucket{
		Start:               b.start,
		End:                 b.end,
		Counts:              counts,
		TotalCount:          total,
		DaysWithAnySymptoms: b.anySymptoms,
		DaysWithLogs:        b.daysWithLogs,
	}
}
