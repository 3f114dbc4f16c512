package dailycache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func medSession(id, name string, dose float64, at time.Time) treatment.Session {
	return treatment.Session{
		ID: id, PetID: "pet1", UserID: "user1",
		Kind:       treatment.KindMedication,
		DateTime:   at,
		CreatedAt:  at,
		Medication: &treatment.Medication{Name: name, Unit: "pill", DosageGiven: dose},
	}
}

func fluidSession(id string, volume float64, at time.Time) treatment.Session {
	return treatment.Session{
		ID: id, PetID: "pet1", UserID: "user1",
		Kind:      treatment.KindFluid,
		DateTime:  at,
		CreatedAt: at,
		Fluid:     &treatment.Fluid{VolumeGiven: volume},
	}
}

func TestMerge_FluidVolumesAccumulate(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true)
	s = s.Merge(fluidSession("f1", 100, day1))
	s = s.Merge(fluidSession("f2", 150, day1.Add(time.Hour)))
	s = s.Merge(fluidSession("f3", 75, day1.Add(2*time.Hour)))

	require.Equal(t, 3, s.FluidSessionCount)
	require.True(t, s.TotalFluidVolumeGiven.Equal(decimal.NewFromInt(325)))
	require.Zero(t, s.MedicationSessionCount)
}

func TestMerge_IsOrderIndependent(t *testing.T) {
	sessions := []treatment.Session{
		medSession("a", "Benazepril", 0.1, day1),
		medSession("b", "Benazepril", 0.2, day1.Add(time.Hour)),
		medSession("c", "Mirtazapine", 0.3, day1.Add(2*time.Hour)),
		fluidSession("d", 12.5, day1.Add(3*time.Hour)),
	}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}

	var first dailycache.Summary
	for i, order := range orders {
		s := dailycache.Empty(civil.DateOf(day1), true)
		for _, idx := range order {
			s = s.Merge(sessions[idx])
		}
		if i == 0 {
			first = s
			continue
		}
		require.Equal(t, first.MedicationSessionCount, s.MedicationSessionCount)
		require.Equal(t, first.FluidSessionCount, s.FluidSessionCount)
		require.Equal(t, first.MedicationNames, s.MedicationNames)
		require.Equal(t, first.SessionIDs, s.SessionIDs)
		require.True(t, first.TotalMedicationDosesGiven.Equal(s.TotalMedicationDosesGiven))
		require.True(t, first.TotalFluidVolumeGiven.Equal(s.TotalFluidVolumeGiven))
		require.Equal(t, first.MedicationRecentTimes, s.MedicationRecentTimes)
	}
	require.True(t, first.TotalMedicationDosesGiven.Equal(decimal.RequireFromString("0.6")))
	require.Equal(t, []string{"Benazepril", "Mirtazapine"}, first.MedicationNames)
}

func TestMerge_RollsOverToSessionDay(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true)
	s = s.Merge(medSession("a", "Benazepril", 1, day1))

	day2 := day1.AddDate(0, 0, 1)
	s = s.Merge(medSession("b", "Mirtazapine", 2, day2))

	require.Equal(t, civil.DateOf(day2), s.Date)
	require.Equal(t, 1, s.MedicationSessionCount)
	require.Equal(t, []string{"Mirtazapine"}, s.MedicationNames)
	require.True(t, s.TotalMedicationDosesGiven.Equal(decimal.NewFromInt(2)))
	require.True(t, s.Hydrated, "hydration carries across rollover")
}

func TestMerge_KnownSessionIsIgnored(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true)
	sess := medSession("a", "Benazepril", 1, day1)
	s = s.Merge(sess).Merge(sess)
	require.Equal(t, 1, s.MedicationSessionCount)

	amended := sess.Amend(&treatment.Medication{Name: "Benazepril", DosageGiven: 3}, nil, day1.Add(time.Hour))
	s = s.Merge(amended)
	require.True(t, s.TotalMedicationDosesGiven.Equal(decimal.NewFromInt(1)))
}

func TestMerge_SkipsIncompleteSessions(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true)
	s = s.Merge(medSession("a", "Benazepril", 0, day1))
	require.Zero(t, s.MedicationSessionCount)
	require.False(t, s.Contains("a"))
}

func TestMerge_DoesNotModifyReceiver(t *testing.T) {
	before := dailycache.Empty(civil.DateOf(day1), true).Merge(medSession("a", "Benazepril", 1, day1))
	after := before.Merge(medSession("b", "Benazepril", 1, day1.Add(time.Hour)))

	require.Equal(t, 1, before.MedicationSessionCount)
	require.Len(t, before.MedicationRecentTimes["Benazepril"], 1)
	require.Len(t, after.MedicationRecentTimes["Benazepril"], 2)
	require.Equal(t, []string{"a"}, before.SessionIDs)
}

func TestConfirm_ClearsPending(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true).Merge(medSession("a", "Benazepril", 1, day1))
	require.True(t, s.HasPending())

	confirmed := s.Confirm("a")
	require.False(t, confirmed.HasPending())
	require.True(t, s.HasPending())
	require.True(t, confirmed.Contains("a"))
	require.Equal(t, confirmed, confirmed.Confirm("missing"))
}

func TestHydrate_SeparatesConfirmedAndPending(t *testing.T) {
	date := civil.DateOf(day1)
	s := dailycache.Hydrate(date,
		[]treatment.Session{
			medSession("a", "Benazepril", 1, day1),
			medSession("old", "Benazepril", 1, day1.AddDate(0, 0, -1)),
		},
		[]treatment.Session{fluidSession("b", 100, day1)},
	)
	require.True(t, s.Hydrated)
	require.Equal(t, 1, s.MedicationSessionCount)
	require.Equal(t, 1, s.FluidSessionCount)
	require.Equal(t, []string{"b"}, s.PendingIDs)
	require.False(t, s.Contains("old"))
}

func TestInvalidateIfStale(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true).Merge(medSession("a", "Benazepril", 1, day1))

	same, reset := s.InvalidateIfStale(day1.Add(10 * time.Hour))
	require.False(t, reset)
	require.Equal(t, s, same)

	next := day1.AddDate(0, 0, 1)
	fresh, reset := s.InvalidateIfStale(next)
	require.True(t, reset)
	require.Equal(t, civil.DateOf(next), fresh.Date)
	require.Zero(t, fresh.MedicationSessionCount)
	require.True(t, fresh.IsValidFor(next))

	again, reset := fresh.InvalidateIfStale(next)
	require.False(t, reset)
	require.Equal(t, fresh, again)
}

func TestIsDuplicate_Window(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true).Merge(medSession("a", "Benazepril", 1, day1))
	now := day1.Add(time.Hour)
	window := dailycache.DefaultDuplicateWindow

	tests := []struct {
		name      string
		med       string
		scheduled time.Time
		want      dailycache.DuplicateStatus
	}{
		{"same time", "Benazepril", day1, dailycache.Duplicate},
		{"inside window after", "Benazepril", day1.Add(90 * time.Minute), dailycache.Duplicate},
		{"inside window before", "Benazepril", day1.Add(-90 * time.Minute), dailycache.Duplicate},
		{"exact boundary", "Benazepril", day1.Add(window), dailycache.Duplicate},
		{"outside window", "Benazepril", day1.Add(window + time.Second), dailycache.NotDuplicate},
		{"other medication", "Mirtazapine", day1, dailycache.NotDuplicate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := s.IsDuplicate(tc.med, tc.scheduled, window, now)
			require.Equal(t, tc.want, first)
			for i := 0; i < 3; i++ {
				require.Equal(t, first, s.IsDuplicate(tc.med, tc.scheduled, window, now))
			}
		})
	}

	require.Equal(t, dailycache.NotDuplicate, s.IsDuplicate("Benazepril", day1.Add(30*time.Minute), 10*time.Minute, now))
}

func TestRemove_UndoesMerge(t *testing.T) {
	base := dailycache.Empty(civil.DateOf(day1), true).
		Merge(medSession("a", "Benazepril", 1, day1)).
		Merge(fluidSession("f1", 100, day1))

	added := base.
		Merge(medSession("b", "Benazepril", 0.5, day1.Add(time.Hour))).
		Merge(medSession("c", "Mirtazapine", 2, day1))
	require.Equal(t, 3, added.MedicationSessionCount)

	removed := added.
		Remove(medSession("c", "Mirtazapine", 2, day1)).
		Remove(medSession("b", "Benazepril", 0.5, day1.Add(time.Hour)))
	require.Equal(t, base.MedicationSessionCount, removed.MedicationSessionCount)
	require.True(t, base.TotalMedicationDosesGiven.Equal(removed.TotalMedicationDosesGiven))
	require.Equal(t, base.MedicationNames, removed.MedicationNames)
	require.Equal(t, base.MedicationRecentTimes, removed.MedicationRecentTimes)
	require.Equal(t, base.SessionIDs, removed.SessionIDs)
	require.Equal(t, base.PendingIDs, removed.PendingIDs)
	require.Equal(t, 3, added.MedicationSessionCount, "receiver is unchanged")

	noFluid := removed.Remove(fluidSession("f1", 100, day1))
	require.Zero(t, noFluid.FluidSessionCount)
	require.True(t, noFluid.TotalFluidVolumeGiven.IsZero())

	require.Equal(t, removed, removed.Remove(medSession("missing", "Benazepril", 1, day1)))
}

func TestIsDuplicate_UnknownWhenNotAuthoritative(t *testing.T) {
	unhydrated := dailycache.Empty(civil.DateOf(day1), false).Merge(medSession("a", "Benazepril", 1, day1))
	require.Equal(t, dailycache.DuplicateUnknown,
		unhydrated.IsDuplicate("Benazepril", day1, time.Hour, day1))

	hydrated := dailycache.Empty(civil.DateOf(day1), true).Merge(medSession("a", "Benazepril", 1, day1))
	tomorrow := day1.AddDate(0, 0, 1)
	require.Equal(t, dailycache.DuplicateUnknown,
		hydrated.IsDuplicate("Benazepril", tomorrow, time.Hour, tomorrow))
}

func TestLoad(t *testing.T) {
	s := dailycache.Empty(civil.DateOf(day1), true).
		Merge(medSession("a", "Benazepril", 0.5, day1)).
		Merge(fluidSession("b", 100, day1))
	raw, err := dailycache.Encode(s)
	require.NoError(t, err)

	loaded, ok, err := dailycache.Load(raw, day1.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.Date, loaded.Date)
	require.Equal(t, s.SessionIDs, loaded.SessionIDs)
	require.True(t, loaded.TotalMedicationDosesGiven.Equal(decimal.RequireFromString("0.5")))
	require.Equal(t, dailycache.Duplicate, loaded.IsDuplicate("Benazepril", day1, time.Hour, day1))

	_, ok, err = dailycache.Load(raw, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = dailycache.Load([]byte("{not json"), day1)
	require.ErrorIs(t, err, dailycache.ErrCorruptSnapshot)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := dailycache.NewStore()
	key := dailycache.Key{UserID: "user1", PetID: "pet1"}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
				if !ok {
					cur = dailycache.Empty(civil.DateOf(day1), true)
				}
				return cur.Merge(fluidSession(fmt.Sprintf("f%d", i), 10, day1))
			})
		}()
	}
	wg.Wait()

	got, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, 20, got.FluidSessionCount)
	require.True(t, got.TotalFluidVolumeGiven.Equal(decimal.NewFromInt(200)))
	require.Equal(t, []dailycache.Key{key}, store.Keys())
}
