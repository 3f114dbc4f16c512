package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/rpggio/adherence/internal/remote"
	"github.com/rpggio/adherence/internal/repository/mocks"
	"github.com/rpggio/adherence/internal/sqlite"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	coord    *coordinator.Coordinator
	remote   *remote.MemoryStore
	queue    *syncqueue.Service
	activity *sqlite.ActivityRepository
}

func newHarness(t *testing.T, limits syncqueue.Limits, store remote.Store) *harness {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	mem := remote.NewMemoryStore()
	if store == nil {
		store = mem
	}
	queue := syncqueue.NewService(sqlite.NewQueueRepository(db), limits, nil)
	activityRepo := sqlite.NewActivityRepository(db)
	coord := coordinator.New(coordinator.Deps{
		Cache:    sqlite.NewCacheRepository(db),
		Queue:    queue,
		Remote:   store,
		Symptoms: symptom.NewService(sqlite.NewSymptomRepository(db), nil),
		Activity: activity.NewService(activityRepo, nil),
	}, coordinator.Config{
		DuplicateWindow: 2 * time.Hour,
		IndicatorDelay:  20 * time.Millisecond,
		PersistTimeout:  time.Second,
	})
	t.Cleanup(coord.Wait)
	return &harness{coord: coord, remote: mem, queue: queue, activity: activityRepo}
}

func typePtr(t activity.ActivityType) *activity.ActivityType { return &t }

func med(id string, at time.Time, name string, dose float64) treatment.Session {
	return treatment.Session{
		ID:         id,
		PetID:      "pet1",
		UserID:     "user1",
		Kind:       treatment.KindMedication,
		DateTime:   at,
		CreatedAt:  at,
		Medication: &treatment.Medication{Name: name, Unit: "pill", DosageGiven: dose},
	}
}

func fluid(id string, at time.Time, volume float64) treatment.Session {
	return treatment.Session{
		ID:        id,
		PetID:     "pet1",
		UserID:    "user1",
		Kind:      treatment.KindFluid,
		DateTime:  at,
		CreatedAt: at,
		Fluid:     &treatment.Fluid{VolumeGiven: volume, InjectionSite: treatment.SiteHipLeft},
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}

func logAndWait(t *testing.T, h *harness, s treatment.Session) (*coordinator.LogResult, coordinator.PersistResult) {
	t.Helper()
	res, err := h.coord.LogSession(context.Background(), coordinator.LogRequest{Session: s}, now)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pr, err := res.Persist.Wait(ctx)
	require.NoError(t, err)
	return res, pr
}

func TestLogSession_PersistsAndConfirms(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)

	res, pr := logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)
	require.Equal(t, 1, res.Summary.MedicationSessionCount)
	require.True(t, res.Summary.HasMedication("Benazepril"))

	doc, ok := h.remote.Get(remote.MedicationSessions("user1", "pet1"), "s1")
	require.True(t, ok)
	require.Equal(t, at(8, 0), doc.Fields["date_time"])

	summary := h.coord.DailySummary(context.Background(), "user1", "pet1", now)
	require.False(t, summary.HasPending())
	require.True(t, summary.Contains("s1"))
}

func TestLogSession_RejectsInvalidSession(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)

	s := med("s1", at(8, 0), "Benazepril", -2)
	_, err := h.coord.LogSession(context.Background(), coordinator.LogRequest{Session: s}, now)
	require.ErrorIs(t, err, treatment.ErrValidation)

	status, err := h.queue.Status(context.Background(), "user1")
	require.NoError(t, err)
	require.Zero(t, status.Reserved)
}

func TestDuplicateDetection(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()

	require.Equal(t, dailycache.DuplicateUnknown,
		h.coord.CheckDuplicate(ctx, "user1", "pet1", "Benazepril", at(8, 0), now))

	_, err := h.coord.Hydrate(ctx, "user1", "pet1", now)
	require.NoError(t, err)
	require.Equal(t, dailycache.NotDuplicate,
		h.coord.CheckDuplicate(ctx, "user1", "pet1", "Benazepril", at(8, 0), now))

	logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))

	tests := []struct {
		name      string
		scheduled time.Time
		want      dailycache.DuplicateStatus
	}{
		{"same time", at(8, 0), dailycache.Duplicate},
		{"inside window", at(9, 30), dailycache.Duplicate},
		{"window edge", at(10, 0), dailycache.Duplicate},
		{"outside window", at(10, 1), dailycache.NotDuplicate},
		{"previous day", time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC), dailycache.DuplicateUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, h.coord.CheckDuplicate(ctx, "user1", "pet1", "Benazepril", tc.scheduled, now))
		})
	}

	_, err = h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s2", at(9, 30), "Benazepril", 1)}, now)
	var dup *coordinator.DuplicateError
	require.ErrorAs(t, err, &dup)
	require.ErrorIs(t, err, coordinator.ErrDuplicateDetected)
	require.Equal(t, "Benazepril", dup.Medication)

	res, err := h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s2", at(9, 30), "Benazepril", 1), AllowDuplicate: true}, now)
	require.NoError(t, err)
	require.Equal(t, dailycache.Duplicate, res.Duplicate)
	require.Equal(t, 2, res.Summary.MedicationSessionCount)
}

func TestLogSession_UnhydratedCacheNeverBlocks(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)

	logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))
	res, _ := logAndWait(t, h, med("s2", at(8, 30), "Benazepril", 1))
	require.Equal(t, dailycache.DuplicateUnknown, res.Duplicate)
	require.Equal(t, 2, res.Summary.MedicationSessionCount)
}

func TestLogSession_OfflineQueuesAndDrainConfirms(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()
	h.remote.SetOffline(true)

	_, pr := logAndWait(t, h, fluid("f1", at(7, 0), 100))
	require.Equal(t, coordinator.OutcomeQueued, pr.Outcome)
	require.ErrorIs(t, pr.Cause, remote.ErrRemoteUnavailable)

	res, err := h.coord.LogSession(ctx, coordinator.LogRequest{Session: fluid("f2", at(8, 0), 150)}, now)
	require.NoError(t, err)
	require.NotNil(t, res.Queue)
	require.Equal(t, 2, res.Queue.Size)
	require.Equal(t, coordinator.OutcomeQueued, res.Persist.Result().Outcome)

	summary := h.coord.DailySummary(ctx, "user1", "pet1", now)
	require.Equal(t, 2, summary.FluidSessionCount)
	require.Equal(t, "250", summary.TotalFluidVolumeGiven.String())
	require.Equal(t, []string{"f1", "f2"}, summary.PendingIDs)

	h.remote.SetOffline(false)
	report, err := h.coord.Drain(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, syncqueue.DrainCompleted, report.Status)
	require.Len(t, report.Confirmed, 2)
	require.Equal(t, "f1", report.Confirmed[0].DocumentID)

	summary = h.coord.DailySummary(ctx, "user1", "pet1", now)
	require.False(t, summary.HasPending())
	require.Equal(t, 2, summary.FluidSessionCount)
	require.Equal(t, 2, h.remote.Puts())

	entries, err := h.activity.List(ctx, "user1", activity.ListActivityOptions{ActivityType: typePtr(activity.TypeQueueDrained)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDrain_SyncFailedAndRetry(t *testing.T) {
	h := newHarness(t, syncqueue.Limits{Soft: 50, Hard: 200, MaxAttempts: 1}, nil)
	ctx := context.Background()
	h.remote.SetOffline(true)
	logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))

	_, err := h.coord.Drain(ctx, "user1")
	require.NoError(t, err)

	report, err := h.coord.Drain(ctx, "user1")
	require.ErrorIs(t, err, syncqueue.ErrSyncFailed)
	var failed *syncqueue.SyncFailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, 1, failed.Count)
	require.Equal(t, syncqueue.DrainStopped, report.Status)

	report, err = h.coord.Drain(ctx, "user1")
	require.ErrorIs(t, err, syncqueue.ErrSyncFailed)
	require.Equal(t, syncqueue.DrainBlocked, report.Status)

	h.remote.SetOffline(false)
	report, err = h.coord.RetryFailed(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, report.Confirmed, 1)
	require.Zero(t, report.Remaining)
}

func TestDiscard_RemovesQueuedWrite(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()
	h.remote.SetOffline(true)
	logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))

	q, err := h.queue.Snapshot(ctx, "user1")
	require.NoError(t, err)
	head, ok := q.Head()
	require.True(t, ok)

	item, err := h.coord.Discard(ctx, "user1", head.ID)
	require.NoError(t, err)
	require.Equal(t, "s1", item.DocumentID)

	_, err = h.coord.Discard(ctx, "user1", head.ID)
	require.ErrorIs(t, err, syncqueue.ErrItemNotFound)
}

func TestLogSession_StaleWriteIsSuperseded(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	later := at(8, 45)
	require.NoError(t, h.remote.Put(context.Background(), remote.Document{
		Collection: remote.MedicationSessions("user1", "pet1"),
		ID:         "s1",
		Fields:     map[string]any{"kind": "medication_session"},
		AuditTime:  later,
	}))

	_, pr := logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))
	require.Equal(t, coordinator.OutcomeSuperseded, pr.Outcome)
	require.ErrorIs(t, pr.Cause, remote.ErrStaleWrite)

	doc, ok := h.remote.Get(remote.MedicationSessions("user1", "pet1"), "s1")
	require.True(t, ok)
	require.Equal(t, later, doc.AuditTime)

	status, err := h.queue.Status(context.Background(), "user1")
	require.NoError(t, err)
	require.Zero(t, status.Size)
	require.Zero(t, status.Reserved)
}

func TestLogSession_QueueFull(t *testing.T) {
	h := newHarness(t, syncqueue.Limits{Soft: 1, Hard: 3, MaxAttempts: 5}, nil)
	ctx := context.Background()
	h.remote.SetOffline(true)

	logAndWait(t, h, med("s1", at(6, 0), "Benazepril", 1))
	res, err := h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s2", at(7, 0), "Famotidine", 1)}, now)
	require.NoError(t, err)
	require.True(t, res.Queue.Warning)
	require.Equal(t, syncqueue.StateSoftWarning, res.Queue.State)

	res, err = h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s3", at(7, 30), "Maropitant", 1)}, now)
	require.NoError(t, err)
	require.Equal(t, syncqueue.StateHardFull, res.Queue.State)

	_, err = h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s4", at(8, 0), "Mirtazapine", 1)}, now)
	require.ErrorIs(t, err, syncqueue.ErrQueueFull)

	summary := h.coord.DailySummary(ctx, "user1", "pet1", now)
	require.True(t, summary.Contains("s3"))
	require.False(t, summary.Contains("s4"))

	entries, err := h.activity.List(ctx, "user1", activity.ListActivityOptions{ActivityType: typePtr(activity.TypeQueueFull)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLogSession_BackdatedSessionSkipsCache(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	yesterday := time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC)

	res, pr := logAndWait(t, h, med("old", yesterday, "Benazepril", 1))
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)
	require.Equal(t, dailycache.DuplicateUnknown, res.Duplicate)
	require.Equal(t, civil.DateOf(now), res.Summary.Date)
	require.Zero(t, res.Summary.MedicationSessionCount)

	_, ok := h.remote.Get(remote.MedicationSessions("user1", "pet1"), "old")
	require.True(t, ok)
}

type slowStore struct {
	remote.Store
	release chan struct{}
}

func (s *slowStore) Put(ctx context.Context, doc remote.Document) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Store.Put(ctx, doc)
}

func TestLogResult_ShowIndicator(t *testing.T) {
	slow := &slowStore{Store: remote.NewMemoryStore(), release: make(chan struct{})}
	h := newHarness(t, syncqueue.DefaultLimits(), slow)

	res, err := h.coord.LogSession(context.Background(), coordinator.LogRequest{Session: med("s1", at(8, 0), "Benazepril", 1)}, now)
	require.NoError(t, err)
	require.Equal(t, 1, res.Summary.MedicationSessionCount)
	require.Equal(t, coordinator.OutcomePending, res.Persist.Result().Outcome)
	require.True(t, res.ShowIndicator())

	close(slow.release)
	pr, err := res.Persist.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)
	require.False(t, res.ShowIndicator())
}

func TestHydrate_CombinesRemoteAndQueued(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()

	for _, s := range []treatment.Session{
		med("remote-today", at(6, 0), "Benazepril", 1),
		med("remote-yesterday", time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC), "Benazepril", 1),
	} {
		payload, err := json.Marshal(s)
		require.NoError(t, err)
		require.NoError(t, h.remote.Put(ctx, remote.Document{
			Collection: remote.MedicationSessions("user1", "pet1"),
			ID:         s.ID,
			Fields:     map[string]any{"payload": string(payload), "date_time": s.DateTime},
			AuditTime:  s.CreatedAt,
		}))
	}

	h.remote.SetOffline(true)
	logAndWait(t, h, fluid("queued", at(7, 0), 120))
	h.remote.SetOffline(false)

	summary, err := h.coord.Hydrate(ctx, "user1", "pet1", now)
	require.NoError(t, err)
	require.True(t, summary.Hydrated)
	require.Equal(t, []string{"queued", "remote-today"}, summary.SessionIDs)
	require.Equal(t, []string{"queued"}, summary.PendingIDs)
	require.Equal(t, 1, summary.MedicationSessionCount)
	require.Equal(t, 1, summary.FluidSessionCount)

	h.remote.SetOffline(true)
	_, err = h.coord.Hydrate(ctx, "user1", "pet1", now)
	require.ErrorIs(t, err, remote.ErrRemoteUnavailable)
}

func TestRefresh_RollsOverAtMidnight(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()
	_, err := h.coord.Hydrate(ctx, "user1", "pet1", now)
	require.NoError(t, err)
	logAndWait(t, h, med("s1", at(8, 0), "Benazepril", 1))

	summary, reset := h.coord.Refresh(ctx, "user1", "pet1", now)
	require.False(t, reset)
	require.Equal(t, 1, summary.MedicationSessionCount)

	tomorrow := now.Add(24 * time.Hour)
	summary, reset = h.coord.Refresh(ctx, "user1", "pet1", tomorrow)
	require.True(t, reset)
	require.Equal(t, civil.DateOf(tomorrow), summary.Date)
	require.Zero(t, summary.MedicationSessionCount)
	require.True(t, summary.Hydrated)

	_, reset = h.coord.Refresh(ctx, "user1", "pet1", tomorrow)
	require.False(t, reset)
}

func TestRecordSymptoms_PersistsDay(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()

	res, err := h.coord.RecordSymptoms(ctx, "user1", symptom.RecordRequest{
		PetID: "pet1",
		Date:  civil.DateOf(now),
		Entries: []symptom.RawEntry{
			{Kind: string(symptom.KindVomiting), Value: json.RawMessage(`2`)},
		},
	}, now)
	require.NoError(t, err)
	require.Equal(t, 1, res.Day.SymptomCount())

	pr, err := res.Persist.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)

	doc, ok := h.remote.Get(remote.SymptomDays("user1", "pet1"), "2024-05-01")
	require.True(t, ok)
	require.Equal(t, 1, doc.Fields["symptom_count"])

	_, err = h.coord.RecordSymptoms(ctx, "user1", symptom.RecordRequest{
		PetID: "pet1",
		Date:  civil.DateOf(now).AddDays(1),
	}, now)
	require.ErrorIs(t, err, symptom.ErrInvalidInput)
}

func TestLogSession_ConcurrentWritesAllCounted(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan *coordinator.LogResult, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.coord.LogSession(ctx, coordinator.LogRequest{Session: fluid(fmt.Sprintf("f%02d", i), at(8, i), 10)}, now)
			if err == nil {
				results <- res
			}
		}(i)
	}
	wg.Wait()
	close(results)

	for res := range results {
		_, err := res.Persist.Wait(ctx)
		require.NoError(t, err)
	}

	summary := h.coord.DailySummary(ctx, "user1", "pet1", now)
	require.Equal(t, 20, summary.FluidSessionCount)
	require.Equal(t, "200", summary.TotalFluidVolumeGiven.String())
	require.False(t, summary.HasPending())
}

func TestLogSession_AmendIsNotADuplicate(t *testing.T) {
	h := newHarness(t, syncqueue.DefaultLimits(), nil)
	ctx := context.Background()
	_, err := h.coord.Hydrate(ctx, "user1", "pet1", now)
	require.NoError(t, err)

	original := med("s1", at(8, 0), "Benazepril", 1)
	_, pr := logAndWait(t, h, original)
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)

	amended := original.Amend(&treatment.Medication{Name: "Benazepril", Unit: "pill", DosageGiven: 2}, nil, at(8, 50))
	res, pr := logAndWait(t, h, amended)
	require.Equal(t, coordinator.OutcomePersisted, pr.Outcome)
	require.Equal(t, dailycache.NotDuplicate, res.Duplicate)
	require.Equal(t, 1, res.Summary.MedicationSessionCount, "an amend is not counted twice")

	doc, ok := h.remote.Get(remote.MedicationSessions("user1", "pet1"), "s1")
	require.True(t, ok)
	require.True(t, at(8, 50).Equal(doc.AuditTime))
	var stored treatment.Session
	require.NoError(t, json.Unmarshal([]byte(doc.Fields["payload"].(string)), &stored))
	require.Equal(t, 2.0, stored.Medication.DosageGiven)

	tracked, ok := h.coord.Session("user1", "pet1", "s1", now)
	require.True(t, ok)
	require.Equal(t, 2.0, tracked.Medication.DosageGiven)

	// Replaying the original write loses to the amend.
	_, pr = logAndWait(t, h, original)
	require.Equal(t, coordinator.OutcomeSuperseded, pr.Outcome)
	doc, _ = h.remote.Get(remote.MedicationSessions("user1", "pet1"), "s1")
	require.True(t, at(8, 50).Equal(doc.AuditTime))
	tracked, _ = h.coord.Session("user1", "pet1", "s1", now)
	require.Equal(t, 2.0, tracked.Medication.DosageGiven)

	// A different session inside the window is still caught.
	_, err = h.coord.LogSession(ctx, coordinator.LogRequest{Session: med("s2", at(9, 0), "Benazepril", 1)}, now)
	require.ErrorIs(t, err, coordinator.ErrDuplicateDetected)
}

func TestLogSession_FailedEnqueueLeavesCacheUntouched(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	repo := &mocks.QueueRepository{}
	repo.On("List", mock.Anything, "user1").Return([]syncqueue.Item{}, nil)
	repo.On("Append", mock.Anything, "user1", mock.Anything).Return(errors.New("disk full")).Once()
	repo.On("Append", mock.Anything, "user1", mock.Anything).Return(nil).Once()
	repo.On("Append", mock.Anything, "user1", mock.Anything).Return(errors.New("disk full")).Once()

	mem := remote.NewMemoryStore()
	mem.SetOffline(true)
	coord := coordinator.New(coordinator.Deps{
		Cache:    sqlite.NewCacheRepository(db),
		Queue:    syncqueue.NewService(repo, syncqueue.DefaultLimits(), nil),
		Remote:   mem,
		Symptoms: symptom.NewService(sqlite.NewSymptomRepository(db), nil),
	}, coordinator.Config{IndicatorDelay: 20 * time.Millisecond, PersistTimeout: time.Second})
	t.Cleanup(coord.Wait)
	ctx := context.Background()

	wait := func(res *coordinator.LogResult) coordinator.PersistResult {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		pr, err := res.Persist.Wait(waitCtx)
		require.NoError(t, err)
		return pr
	}

	// Remote down and the queue cannot store the write.
	res, err := coord.LogSession(ctx, coordinator.LogRequest{Session: fluid("f1", at(7, 0), 100)}, now)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeFailed, wait(res).Outcome)
	summary := coord.DailySummary(ctx, "user1", "pet1", now)
	require.False(t, summary.Contains("f1"))
	require.Zero(t, summary.FluidSessionCount)
	_, tracked := coord.Session("user1", "pet1", "f1", now)
	require.False(t, tracked)

	res, err = coord.LogSession(ctx, coordinator.LogRequest{Session: fluid("f2", at(8, 0), 150)}, now)
	require.NoError(t, err)
	require.Equal(t, coordinator.OutcomeQueued, wait(res).Outcome)

	// Queue non-empty: the enqueue happens inline and its failure is returned.
	_, err = coord.LogSession(ctx, coordinator.LogRequest{Session: fluid("f3", at(9, 0), 250)}, now)
	require.Error(t, err)

	summary = coord.DailySummary(ctx, "user1", "pet1", now)
	require.False(t, summary.Contains("f3"))
	require.Equal(t, 1, summary.FluidSessionCount)
	require.Equal(t, "150", summary.TotalFluidVolumeGiven.String())
	require.Equal(t, []string{"f2"}, summary.PendingIDs)
	repo.AssertExpectations(t)
}
