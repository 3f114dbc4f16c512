// Package aggregate folds per-day symptom records into week, month and year buckets.
//
// Every function is pure: the current time, when it matters, is an argument.
package aggregate

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/symptom"
)

// DayRecords maps a calendar day to its record. A nil record means nothing was logged.
type DayRecords map[civil.Date]*symptom.Day

// Weekly returns seven single-day buckets, Monday through Sunday, for the week containing day.
func Weekly(day civil.Date, days DayRecords) []bucket.Bucket {
	monday := WeekStart(day)
	out := make([]bucket.Bucket, 0, 7)
	for i := 0; i < 7; i++ {
		d := monday.AddDays(i)
		out = append(out, fold(d, d, days))
	}
	return out
}

// Monthly returns one bucket per calendar week segment of the month, clipped to the
// month boundaries. Days outside the month never contribute.
func Monthly(year int, month time.Month, days DayRecords) []bucket.Bucket {
	first := civil.Date{Year: year, Month: month, Day: 1}
	last := MonthEnd(year, month)

	var out []bucket.Bucket
	for start := first; !start.After(last); {
		end := start.AddDays(6 - mondayOffset(start))
		if end.After(last) {
			end = last
		}
		out = append(out, fold(start, end, days))
		start = end.AddDays(1)
	}
	return out
}

// Yearly returns one bucket per calendar month. For the year containing now the
// result stops at now's month; a year after now yields no buckets.
func Yearly(year int, days DayRecords, now time.Time) []bucket.Bucket {
	months := 12
	switch {
	case year > now.Year():
		return []bucket.Bucket{}
	case year == now.Year():
		months = int(now.Month())
	}

	out := make([]bucket.Bucket, 0, months)
	for m := 1; m <= months; m++ {
		month := time.Month(m)
		out = append(out, fold(civil.Date{Year: year, Month: month, Day: 1}, MonthEnd(year, month), days))
	}
	return out
}

// WeekStart returns the Monday on or before d.
func WeekStart(d civil.Date) civil.Date {
	return d.AddDays(-mondayOffset(d))
}

// MonthEnd returns the last day of the month, honouring leap years.
func MonthEnd(year int, month time.Month) civil.Date {
	return civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
}

func mondayOffset(d civil.Date) int {
	return (int(d.In(time.UTC).Weekday()) + 6) % 7
}

func fold(start, end civil.Date, days DayRecords) bucket.Bucket {
	b := bucket.NewBuilder(start, end)
	for d := start; !d.After(end); d = d.AddDays(1) {
		rec := days[d]
		if rec == nil {
			continue
		}
		b.MarkLogged(rec.HasAnySymptoms())
		for _, kind := range rec.PresentKinds() {
			b.Add(string(kind), 1)
		}
	}
	return b.Build()
}
