// Package coordinator glues the daily cache, the offline queue and the remote
// store: a write is merged locally first, then persisted in the background,
// and queued when the remote store cannot take it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/rpggio/adherence/internal/remote"
)

// Config holds the timing knobs of the coordinator.
type Config struct {
	DuplicateWindow time.Duration
	IndicatorDelay  time.Duration
	PersistTimeout  time.Duration
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		DuplicateWindow: dailycache.DefaultDuplicateWindow,
		IndicatorDelay:  120 * time.Millisecond,
		PersistTimeout:  10 * time.Second,
	}
}

// Recorder receives coordinator metrics.
type Recorder interface {
	WriteLogged(kind, outcome string)
	DuplicateChecked(status dailycache.DuplicateStatus)
	CacheRolledOver()
	PersistObserved(d time.Duration, err error)
}

// Deps are the collaborators of a Coordinator. Activity and Recorder are optional.
type Deps struct {
	Cache    dailycache.Repository
	Queue    *syncqueue.Service
	Remote   remote.Store
	Symptoms *symptom.Service
	Activity *activity.Service
	Recorder Recorder
	Logger   *slog.Logger
}

// Coordinator is the single writer for every pet's cache and queue.
type Coordinator struct {
	cfg      Config
	store    *dailycache.Store
	caches   dailycache.Repository
	queue    *syncqueue.Service
	remote   remote.Store
	symptoms *symptom.Service
	activity *activity.Service
	recorder Recorder
	logger   *slog.Logger

	localMu sync.Mutex
	local   map[dailycache.Key]*localDay

	inflight sync.WaitGroup
	loops    sync.WaitGroup
}

// localDay holds sessions logged through this process for the cache's day,
// so a hydration racing with a write does not drop it.
type localDay struct {
	date     civil.Date
	sessions map[string]treatment.Session
}

// New creates a coordinator.
func New(deps Deps, cfg Config) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = dailycache.DefaultDuplicateWindow
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultConfig().PersistTimeout
	}
	return &Coordinator{
		cfg:      cfg,
		store:    dailycache.NewStore(),
		caches:   deps.Cache,
		queue:    deps.Queue,
		remote:   deps.Remote,
		symptoms: deps.Symptoms,
		activity: deps.Activity,
		recorder: recorder,
		logger:   logger,
		local:    make(map[dailycache.Key]*localDay),
	}
}

// Config returns the active configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// LogRequest is a new treatment session to record.
type LogRequest struct {
	Session        treatment.Session
	AllowDuplicate bool
}

// LogResult describes an accepted session. Summary already includes the
// session when it is dated today.
type LogResult struct {
	Session   treatment.Session
	Summary   dailycache.Summary
	Duplicate dailycache.DuplicateStatus
	Queue     *syncqueue.EnqueueResult
	Persist   *Persist

	indicatorDelay time.Duration
}

// ShowIndicator reports whether the remote write is still running after the
// configured indicator delay.
func (r *LogResult) ShowIndicator() bool {
	return r.Persist.ShowIndicator(r.indicatorDelay)
}

// LogSession validates, merges and persists a treatment session.
func (c *Coordinator) LogSession(ctx context.Context, req LogRequest, now time.Time) (*LogResult, error) {
	s := req.Session
	if err := treatment.Validate(s); err != nil {
		return nil, err
	}
	key := dailycache.Key{UserID: s.UserID, PetID: s.PetID}

	reservation, err := c.reserve(ctx, key)
	if err != nil {
		return nil, err
	}

	cur := c.current(ctx, key, now)
	today := civil.DateOf(now)

	// An amend of a session already in the cache cannot duplicate itself.
	status := dailycache.NotDuplicate
	if s.Kind == treatment.KindMedication && !cur.Contains(s.ID) {
		status = dailycache.DuplicateUnknown
		if s.Date() == today {
			status = cur.IsDuplicate(s.MedicationName(), s.DateTime, c.cfg.DuplicateWindow, now)
		}
		c.recorder.DuplicateChecked(status)
		if status == dailycache.Duplicate && !req.AllowDuplicate {
			reservation.Release()
			c.emit(ctx, key.UserID, activity.ActivityEntry{
				PetID:        key.PetID,
				SessionID:    &s.ID,
				ActivityType: activity.TypeDuplicateDetected,
				Summary:      fmt.Sprintf("%s already logged near %s", s.MedicationName(), s.DateTime.Format(time.Kitchen)),
			}, nil)
			return nil, &DuplicateError{Medication: s.MedicationName(), Scheduled: s.DateTime, Window: c.cfg.DuplicateWindow}
		}
	}

	item, err := sessionItem(s, now)
	if err != nil {
		reservation.Release()
		return nil, err
	}

	summary := cur
	var undo func()
	if s.Date() == today {
		added := false
		c.remember(key, s)
		summary = c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
			if ok && cur.Date != today {
				return cur
			}
			added = !cur.Contains(s.ID)
			return cur.Merge(s)
		})
		c.save(ctx, key, summary)
		if added {
			undo = func() { c.unmerge(context.Background(), key, s) }
		}
	}

	result := &LogResult{
		Session:        s,
		Summary:        summary,
		Duplicate:      status,
		indicatorDelay: c.cfg.IndicatorDelay,
	}
	result.Persist, result.Queue, err = c.dispatch(ctx, key, item, reservation, string(s.Kind), undo)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, key.UserID, activity.ActivityEntry{
		PetID:        key.PetID,
		SessionID:    &s.ID,
		ActivityType: activity.TypeSessionLogged,
		Summary:      describeSession(s),
	}, map[string]any{"kind": s.Kind, "amount": s.Amount(), "duplicate": status.String()})

	return result, nil
}

// SymptomResult describes an accepted symptom day.
type SymptomResult struct {
	Day     symptom.Day
	Queue   *syncqueue.EnqueueResult
	Persist *Persist
}

// RecordSymptoms stores a symptom day locally and persists it like a session.
func (c *Coordinator) RecordSymptoms(ctx context.Context, userID string, req symptom.RecordRequest, now time.Time) (*SymptomResult, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	key := dailycache.Key{UserID: userID, PetID: req.PetID}

	reservation, err := c.reserve(ctx, key)
	if err != nil {
		return nil, err
	}
	day, err := c.symptoms.Record(ctx, userID, req, now)
	if err != nil {
		reservation.Release()
		return nil, err
	}
	item, err := symptomItem(userID, day, now)
	if err != nil {
		reservation.Release()
		return nil, err
	}

	result := &SymptomResult{Day: day}
	result.Persist, result.Queue, err = c.dispatch(ctx, key, item, reservation, "symptoms", nil)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, userID, activity.ActivityEntry{
		PetID:        req.PetID,
		ActivityType: activity.TypeSymptomsRecorded,
		Summary:      fmt.Sprintf("Recorded %d symptom(s) for %s", day.SymptomCount(), day.Date),
	}, map[string]any{"date": day.Date.String(), "kinds": day.PresentKinds()})
	return result, nil
}

// CheckDuplicate answers whether name was already given within the duplicate
// window of scheduled, without any remote read.
func (c *Coordinator) CheckDuplicate(ctx context.Context, userID, petID, name string, scheduled, now time.Time) dailycache.DuplicateStatus {
	cur := c.current(ctx, dailycache.Key{UserID: userID, PetID: petID}, now)
	status := dailycache.DuplicateUnknown
	if civil.DateOf(scheduled) == civil.DateOf(now) {
		status = cur.IsDuplicate(name, scheduled, c.cfg.DuplicateWindow, now)
	}
	c.recorder.DuplicateChecked(status)
	return status
}

// DailySummary returns today's cache for a pet, rolling it over if stale.
func (c *Coordinator) DailySummary(ctx context.Context, userID, petID string, now time.Time) dailycache.Summary {
	return c.current(ctx, dailycache.Key{UserID: userID, PetID: petID}, now)
}

// Refresh re-checks cache validity, for app resume or screen focus. The bool
// reports whether the cache was reset.
func (c *Coordinator) Refresh(ctx context.Context, userID, petID string, now time.Time) (dailycache.Summary, bool) {
	key := dailycache.Key{UserID: userID, PetID: petID}
	var reset bool
	s := c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
		if !ok {
			cur = c.loadSnapshot(ctx, key, now)
		}
		next, r := cur.InvalidateIfStale(now)
		reset = r
		return next
	})
	if reset {
		c.rolledOver(ctx, key, s)
	}
	return s, reset
}

// Hydrate rebuilds today's cache from remote history and queued writes. Until
// a cache is hydrated its duplicate checks answer Unknown.
func (c *Coordinator) Hydrate(ctx context.Context, userID, petID string, now time.Time) (dailycache.Summary, error) {
	key := dailycache.Key{UserID: userID, PetID: petID}
	today := civil.DateOf(now)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	var confirmed []treatment.Session
	for _, coll := range []string{remote.MedicationSessions(userID, petID), remote.FluidSessions(userID, petID)} {
		docs, err := c.remote.Query(ctx, remote.Query{
			Collection: coll,
			Filters: []remote.Filter{
				{Field: fieldDateTime, Op: remote.OpGreaterEqual, Value: start},
				{Field: fieldDateTime, Op: remote.OpLess, Value: end},
			},
			OrderBy: fieldDateTime,
		})
		if err != nil {
			return dailycache.Summary{}, fmt.Errorf("querying %s: %w", coll, err)
		}
		for _, doc := range docs {
			s, err := sessionFromDocument(doc)
			if err != nil {
				c.logger.Warn("skipping unreadable remote session", "path", doc.Path(), "error", err)
				continue
			}
			confirmed = append(confirmed, s)
		}
	}

	q, err := c.queue.Snapshot(ctx, userID)
	if err != nil {
		return dailycache.Summary{}, fmt.Errorf("loading queue: %w", err)
	}
	var pending []treatment.Session
	for _, item := range q.Items() {
		s, ok, err := decodeSession(item)
		if err != nil {
			c.logger.Warn("skipping unreadable queued session", "item_id", item.ID, "error", err)
			continue
		}
		if ok && s.PetID == petID {
			pending = append(pending, s)
		}
	}

	summary := c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
		for _, s := range c.localSessions(key, today) {
			if ok && cur.Date == today && !slices.Contains(cur.PendingIDs, s.ID) {
				confirmed = append(confirmed, s)
			} else {
				pending = append(pending, s)
			}
		}
		return dailycache.Hydrate(today, confirmed, pending)
	})
	c.save(ctx, key, summary)

	c.emit(ctx, userID, activity.ActivityEntry{
		PetID:        petID,
		ActivityType: activity.TypeCacheHydrated,
		Summary:      fmt.Sprintf("Hydrated %s with %d session(s)", today, len(summary.SessionIDs)),
	}, map[string]any{"confirmed": len(confirmed), "pending": len(pending)})
	return summary, nil
}

// Wait blocks until background persists and loops have finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
	c.loops.Wait()
}

func (c *Coordinator) reserve(ctx context.Context, key dailycache.Key) (*syncqueue.Reservation, error) {
	reservation, err := c.queue.Reserve(ctx, key.UserID)
	if errors.Is(err, syncqueue.ErrQueueFull) {
		c.emit(ctx, key.UserID, activity.ActivityEntry{
			PetID:        key.PetID,
			ActivityType: activity.TypeQueueFull,
			Summary:      "Write refused: offline queue is full",
		}, nil)
	}
	return reservation, err
}

// dispatch queues item behind existing writes, or persists it in the
// background when the queue is empty.
// When the write can be neither persisted nor queued, undo (if set) takes
// its effect back out of the cache.
func (c *Coordinator) dispatch(ctx context.Context, key dailycache.Key, item syncqueue.Item, reservation *syncqueue.Reservation, kind string, undo func()) (*Persist, *syncqueue.EnqueueResult, error) {
	q, err := c.queue.Snapshot(ctx, key.UserID)
	if err != nil {
		reservation.Release()
		runUndo(undo)
		return nil, nil, err
	}
	if q.Len() > 0 {
		res, err := reservation.Enqueue(ctx, item)
		if err != nil {
			reservation.Release()
			runUndo(undo)
			return nil, nil, fmt.Errorf("queueing write: %w", err)
		}
		c.queued(ctx, key, item, res, kind)
		return settled(OutcomeQueued, nil), &res, nil
	}

	p := newPersist()
	c.inflight.Add(1)
	go c.persistInBackground(key, item, reservation, p, kind, undo)
	return p, nil, nil
}

func runUndo(undo func()) {
	if undo != nil {
		undo()
	}
}

func (c *Coordinator) persistInBackground(key dailycache.Key, item syncqueue.Item, reservation *syncqueue.Reservation, p *Persist, kind string, undo func()) {
	defer c.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PersistTimeout)
	defer cancel()

	err := c.put(ctx, key.UserID, item)
	switch {
	case err == nil:
		reservation.Release()
		c.confirm(context.Background(), key, item)
		c.recorder.WriteLogged(kind, string(OutcomePersisted))
		p.finish(OutcomePersisted, nil)
	case errors.Is(err, remote.ErrStaleWrite):
		reservation.Release()
		c.confirm(context.Background(), key, item)
		c.recorder.WriteLogged(kind, string(OutcomeSuperseded))
		p.finish(OutcomeSuperseded, err)
	default:
		c.logger.Info("remote persist failed, queueing", "user_id", key.UserID, "document_id", item.DocumentID, "error", err)
		res, qerr := reservation.Enqueue(context.Background(), item)
		if qerr != nil {
			reservation.Release()
			c.logger.Error("failed to queue write", "user_id", key.UserID, "document_id", item.DocumentID, "error", qerr)
			runUndo(undo)
			c.recorder.WriteLogged(kind, string(OutcomeFailed))
			p.finish(OutcomeFailed, qerr)
			return
		}
		c.queued(context.Background(), key, item, res, kind)
		p.finish(OutcomeQueued, err)
	}
}

// put writes one item to the remote store, recording latency. A stale write
// is reported as remote.ErrStaleWrite.
func (c *Coordinator) put(ctx context.Context, userID string, item syncqueue.Item) error {
	doc, err := documentFor(item)
	if err != nil {
		return err
	}
	started := time.Now()
	err = c.remote.Put(ctx, doc)
	c.recorder.PersistObserved(time.Since(started), err)
	if errors.Is(err, remote.ErrStaleWrite) {
		c.emit(ctx, userID, activity.ActivityEntry{
			ActivityType: activity.TypeWriteSuperseded,
			Summary:      fmt.Sprintf("Newer version of %s already stored", doc.Path()),
		}, map[string]any{"path": doc.Path(), "audit_time": item.AuditTime})
	}
	return err
}

func (c *Coordinator) queued(ctx context.Context, key dailycache.Key, item syncqueue.Item, res syncqueue.EnqueueResult, kind string) {
	c.recorder.WriteLogged(kind, string(OutcomeQueued))
	itemID := item.ID.String()
	c.emit(ctx, key.UserID, activity.ActivityEntry{
		PetID:        key.PetID,
		ItemID:       &itemID,
		ActivityType: activity.TypeSessionQueued,
		Summary:      fmt.Sprintf("Queued %s %s for sync", item.Kind, item.DocumentID),
	}, map[string]any{"size": res.Size, "state": res.State})
	if res.Warning {
		c.emit(ctx, key.UserID, activity.ActivityEntry{
			PetID:        key.PetID,
			ActivityType: activity.TypeQueueSoftWarning,
			Summary:      fmt.Sprintf("%d writes waiting to sync", res.Size),
		}, map[string]any{"size": res.Size})
	}
}

// confirm marks a persisted session in the cache and re-merges it so a
// queued write logged before a rollover or hydration is still counted.
func (c *Coordinator) confirm(ctx context.Context, key dailycache.Key, item syncqueue.Item) {
	s, ok, err := decodeSession(item)
	if err != nil {
		c.logger.Warn("cannot confirm session", "document_id", item.DocumentID, "error", err)
		return
	}
	if !ok {
		return
	}
	key.PetID = s.PetID
	changed := false
	summary := c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
		if !ok || cur.Date != s.Date() {
			return cur
		}
		next := cur.Merge(s).Confirm(s.ID)
		changed = true
		return next
	})
	if changed {
		c.save(ctx, key, summary)
	}
}

// current returns the cache for key, loading the persisted snapshot on first
// use and rolling it over when stale.
func (c *Coordinator) current(ctx context.Context, key dailycache.Key, now time.Time) dailycache.Summary {
	var reset bool
	s := c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
		if !ok {
			return c.loadSnapshot(ctx, key, now)
		}
		next, r := cur.InvalidateIfStale(now)
		reset = r
		return next
	})
	if reset {
		c.rolledOver(ctx, key, s)
	}
	return s
}

func (c *Coordinator) loadSnapshot(ctx context.Context, key dailycache.Key, now time.Time) dailycache.Summary {
	s, ok, err := c.caches.Load(ctx, key, now)
	if err != nil {
		c.logger.Warn("discarding unreadable cache snapshot", "user_id", key.UserID, "pet_id", key.PetID, "error", err)
	}
	if err != nil || !ok {
		return dailycache.Empty(civil.DateOf(now), false)
	}
	return s
}

func (c *Coordinator) rolledOver(ctx context.Context, key dailycache.Key, s dailycache.Summary) {
	c.recorder.CacheRolledOver()
	c.forget(key, s.Date)
	c.save(ctx, key, s)
	c.emit(ctx, key.UserID, activity.ActivityEntry{
		PetID:        key.PetID,
		ActivityType: activity.TypeCacheRollover,
		Summary:      fmt.Sprintf("Daily cache reset for %s", s.Date),
	}, nil)
}

func (c *Coordinator) save(ctx context.Context, key dailycache.Key, s dailycache.Summary) {
	if err := c.caches.Save(ctx, key, s); err != nil {
		c.logger.Error("failed to save cache snapshot", "user_id", key.UserID, "pet_id", key.PetID, "error", err)
	}
}

func (c *Coordinator) remember(key dailycache.Key, s treatment.Session) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	day, ok := c.local[key]
	if !ok || day.date != s.Date() {
		day = &localDay{date: s.Date(), sessions: make(map[string]treatment.Session)}
		c.local[key] = day
	}
	if prev, ok := day.sessions[s.ID]; ok && prev.AuditTime().After(s.AuditTime()) {
		return
	}
	day.sessions[s.ID] = s
}

func (c *Coordinator) forget(key dailycache.Key, keep civil.Date) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	if day, ok := c.local[key]; ok && day.date != keep {
		delete(c.local, key)
	}
}

// unmerge removes a session this process merged but could not deliver.
func (c *Coordinator) unmerge(ctx context.Context, key dailycache.Key, s treatment.Session) {
	changed := false
	summary := c.store.Update(key, func(cur dailycache.Summary, ok bool) dailycache.Summary {
		if !ok || cur.Date != s.Date() || !cur.Contains(s.ID) {
			return cur
		}
		changed = true
		return cur.Remove(s)
	})
	c.localMu.Lock()
	if day, ok := c.local[key]; ok && day.date == s.Date() {
		delete(day.sessions, s.ID)
	}
	c.localMu.Unlock()
	if changed {
		c.save(ctx, key, summary)
	}
}

// Session returns a treatment session logged through this process today.
func (c *Coordinator) Session(userID, petID, sessionID string, now time.Time) (treatment.Session, bool) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	day, ok := c.local[dailycache.Key{UserID: userID, PetID: petID}]
	if !ok || day.date != civil.DateOf(now) {
		return treatment.Session{}, false
	}
	s, ok := day.sessions[sessionID]
	return s, ok
}

func (c *Coordinator) localSessions(key dailycache.Key, date civil.Date) []treatment.Session {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	day, ok := c.local[key]
	if !ok || day.date != date {
		return nil
	}
	out := make([]treatment.Session, 0, len(day.sessions))
	for _, s := range day.sessions {
		out = append(out, s)
	}
	return out
}

func (c *Coordinator) emit(ctx context.Context, userID string, entry activity.ActivityEntry, details any) {
	if c.activity == nil {
		return
	}
	c.activity.Emit(ctx, userID, entry, details)
}

func describeSession(s treatment.Session) string {
	if s.Kind == treatment.KindFluid {
		return fmt.Sprintf("Fluids %.0f ml", s.Amount())
	}
	return fmt.Sprintf("%s %g %s", s.MedicationName(), s.Amount(), s.Medication.Unit)
}

type noopRecorder struct{}

func (noopRecorder) WriteLogged(string, string)                 {}
func (noopRecorder) DuplicateChecked(dailycache.DuplicateStatus) {}
func (noopRecorder) CacheRolledOver()                           {}
func (noopRecorder) PersistObserved(time.Duration, error)       {}
