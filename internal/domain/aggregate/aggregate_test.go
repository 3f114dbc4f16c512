package aggregate_test

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/aggregate"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func sick(d civil.Date, entries ...symptom.Entry) *symptom.Day {
	return &symptom.Day{PetID: "pet1", Date: d, Entries: entries}
}

func requireValid(t *testing.T, buckets []bucket.Bucket) {
	t.Helper()
	for i, b := range buckets {
		require.NoError(t, b.Validate(), "bucket %d", i)
		if i > 0 {
			require.True(t, buckets[i-1].Start.Before(b.Start), "buckets not ascending at %d", i)
		}
	}
}

func TestWeekly_OneSymptomDay(t *testing.T) {
	// 2024-05-08 is a Wednesday.
	wed := date(2024, 5, 8)
	days := aggregate.DayRecords{
		date(2024, 5, 6): nil,
		date(2024, 5, 7): {PetID: "pet1", Date: date(2024, 5, 7), Entries: []symptom.Entry{symptom.Energy{Level: symptom.EnergyNormal}}},
		wed:              sick(wed, symptom.Vomiting{Episodes: 2}, symptom.Energy{Level: symptom.EnergyLow}),
	}

	out := aggregate.Weekly(wed, days)
	require.Len(t, out, 7)
	requireValid(t, out)
	require.Equal(t, date(2024, 5, 6), out[0].Start)
	require.Equal(t, date(2024, 5, 12), out[6].End)

	flagged := 0
	for _, b := range out {
		require.Equal(t, b.Start, b.End)
		require.LessOrEqual(t, b.DaysWithAnySymptoms, 1)
		flagged += b.DaysWithAnySymptoms
	}
	require.Equal(t, 1, flagged)
	require.Equal(t, 1, out[2].DaysWithAnySymptoms)
	require.Equal(t, 2, out[2].TotalCount)
	require.Equal(t, 1, out[1].DaysWithLogs)
	require.Zero(t, out[1].TotalCount)
	require.Empty(t, out[1].Counts)
}

func TestWeekly_SundayBelongsToPrecedingMonday(t *testing.T) {
	out := aggregate.Weekly(date(2024, 12, 29), nil)
	require.Equal(t, date(2024, 12, 23), out[0].Start)
	require.Equal(t, date(2024, 12, 29), out[6].Start)
}

func TestWeekly_CrossesYearBoundary(t *testing.T) {
	out := aggregate.Weekly(date(2025, 1, 1), nil)
	require.Equal(t, date(2024, 12, 30), out[0].Start)
	require.Equal(t, date(2025, 1, 5), out[6].End)
}

func TestMonthly_SegmentCounts(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  int
	}{
		{"february starting monday", 2021, time.February, 4},
		{"march 2024", 2024, time.March, 5},
		{"september starting sunday", 2024, time.September, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := aggregate.Monthly(tc.year, tc.month, nil)
			require.Len(t, out, tc.want)
			requireValid(t, out)
			require.Equal(t, 1, out[0].Start.Day)
			require.Equal(t, aggregate.MonthEnd(tc.year, tc.month), out[len(out)-1].End)

			covered := 0
			for _, b := range out {
				covered += b.Days()
			}
			require.Equal(t, aggregate.MonthEnd(tc.year, tc.month).Day, covered)
		})
	}
}

func TestMonthly_LeapFebruaryEndsOn29(t *testing.T) {
	out := aggregate.Monthly(2024, time.February, nil)
	require.Len(t, out, 5)
	require.Equal(t, date(2024, 2, 1), out[0].Start)
	require.Equal(t, date(2024, 2, 4), out[0].End)
	require.Equal(t, date(2024, 2, 26), out[4].Start)
	require.Equal(t, date(2024, 2, 29), out[4].End)
}

func TestMonthly_NoLeakageFromAdjacentMonths(t *testing.T) {
	days := aggregate.DayRecords{
		date(2024, 1, 31): sick(date(2024, 1, 31), symptom.Vomiting{Episodes: 1}, symptom.Energy{Level: symptom.EnergyLow}),
		date(2024, 2, 1):  sick(date(2024, 2, 1), symptom.Vomiting{Episodes: 1}),
		date(2024, 2, 14): sick(date(2024, 2, 14), symptom.Diarrhea{Quality: symptom.DiarrheaSoft}, symptom.Energy{Level: symptom.EnergyLow}),
		date(2024, 2, 29): sick(date(2024, 2, 29), symptom.Constipation{Level: symptom.ConstipationPainful}),
		date(2024, 2, 20): nil,
		date(2024, 3, 1):  sick(date(2024, 3, 1), symptom.Vomiting{Episodes: 4}),
	}

	want := 0
	for d, rec := range days {
		if d.Year == 2024 && d.Month == time.February {
			want += rec.SymptomCount()
		}
	}

	out := aggregate.Monthly(2024, time.February, days)
	requireValid(t, out)
	got := 0
	anyDays := 0
	for _, b := range out {
		got += b.TotalCount
		anyDays += b.DaysWithAnySymptoms
	}
	require.Equal(t, 4, want)
	require.Equal(t, want, got)
	require.Equal(t, 3, anyDays)
	// The first segment is Thu 1 to Sun 4; Mon 29 Jan to Wed 31 Jan must not count.
	require.Equal(t, map[string]int{"vomiting": 1}, out[0].Counts)
}

func TestYearly_CurrentYearStopsAtCurrentMonth(t *testing.T) {
	now := time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)
	out := aggregate.Yearly(2024, nil, now)
	require.Len(t, out, 5)
	requireValid(t, out)
	require.Equal(t, date(2024, 5, 1), out[4].Start)
	require.Equal(t, date(2024, 5, 31), out[4].End)
}

func TestYearly_PastYearHasTwelveMonths(t *testing.T) {
	now := time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)
	days := aggregate.DayRecords{
		date(2023, 2, 28): sick(date(2023, 2, 28), symptom.Vomiting{Episodes: 1}),
		date(2023, 3, 1):  sick(date(2023, 3, 1), symptom.Vomiting{Episodes: 1}, symptom.Energy{Level: symptom.EnergyVeryLow}),
	}

	out := aggregate.Yearly(2023, days, now)
	require.Len(t, out, 12)
	requireValid(t, out)
	require.Equal(t, date(2023, 2, 28), out[1].End)
	require.Equal(t, 1, out[1].TotalCount)
	require.Equal(t, 2, out[2].TotalCount)
	require.Equal(t, date(2023, 12, 31), out[11].End)
}

func TestYearly_LeapYearFebruary(t *testing.T) {
	out := aggregate.Yearly(2024, nil, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Len(t, out, 12)
	require.Equal(t, date(2024, 2, 29), out[1].End)
}

func TestYearly_JanuaryOfCurrentYear(t *testing.T) {
	out := aggregate.Yearly(2025, nil, time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC))
	require.Len(t, out, 1)
}

func TestYearly_FutureYearIsEmpty(t *testing.T) {
	out := aggregate.Yearly(2026, nil, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Empty(t, out)
}
