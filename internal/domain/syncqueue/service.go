package syncqueue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DrainStatus summarises how a drain ended.
type DrainStatus string

const (
	DrainCompleted DrainStatus = "completed"
	DrainStopped   DrainStatus = "stopped"
	DrainBlocked   DrainStatus = "blocked"
	DrainSkipped   DrainStatus = "skipped"
)

// DrainReport is the outcome of one drain pass.
type DrainReport struct {
	Status    DrainStatus
	Confirmed []Item
	Failed    *Item
	Err       error
	Remaining int
	FailCount int
}

// Status is a point-in-time view of one user's queue.
type Status struct {
	Size      int
	State     State
	FailCount int
	Reserved  int
	Draining  bool
	Items     []Item
}

type userQueue struct {
	mu       sync.Mutex
	queue    Queue
	reserved int
	draining atomic.Bool
}

// Service owns the offline queue of every user.
type Service struct {
	repo     Repository
	limits   Limits
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*userQueue
}

// Option configures a Service.
type Option func(*Service)

// WithObserver reports size changes and drain outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the time source used for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a queue service.
func NewService(repo Repository, limits Limits, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{
		repo:   repo,
		limits: limits,
		logger: logger,
		now:    time.Now,
		users:  make(map[string]*userQueue),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the configured thresholds.
func (s *Service) Limits() Limits { return s.limits }

// Snapshot returns the current queue for userID.
func (s *Service) Snapshot(ctx context.Context, userID string) (Queue, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return Queue{}, err
	}
	uq.mu.Lock()
	defer uq.mu.Unlock()
	return uq.queue, nil
}

// Status reports size, state and failures for userID.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	uq.mu.Lock()
	defer uq.mu.Unlock()
	return Status{
		Size:      uq.queue.Len(),
		State:     uq.queue.State(s.limits),
		FailCount: uq.queue.FailCount(s.limits),
		Reserved:  uq.reserved,
		Draining:  uq.draining.Load(),
		Items:     uq.queue.Items(),
	}, nil
}

// Err returns a SyncFailedError when queued writes for userID are beyond
// the retry ceiling.
func (s *Service) Err(ctx context.Context, userID string) error {
	q, err := s.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	return q.Err(s.limits)
}

// Enqueue appends item to the queue of userID.
func (s *Service) Enqueue(ctx context.Context, userID string, item Item) (EnqueueResult, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return EnqueueResult{}, err
	}
	uq.mu.Lock()
	defer uq.mu.Unlock()
	return s.appendLocked(ctx, userID, uq, item, uq.reserved)
}

func (s *Service) appendLocked(ctx context.Context, userID string, uq *userQueue, item Item, reserved int) (EnqueueResult, error) {
	next, res, err := uq.queue.enqueue(item, s.limits, reserved)
	if err != nil {
		s.logger.Warn("offline queue full", "user_id", userID, "size", uq.queue.Len(), "reserved", reserved)
		return res, err
	}
	if err := s.repo.Append(ctx, userID, item); err != nil {
		return EnqueueResult{}, fmt.Errorf("persisting queue item: %w", err)
	}
	uq.queue = next
	if res.Warning {
		s.logger.Warn("offline queue above soft limit", "user_id", userID, "size", res.Size)
	}
	s.notify(userID, uq)
	return res, nil
}

// Reservation holds one slot of queue capacity for a write whose remote
// persist is still in flight.
type Reservation struct {
	svc    *Service
	userID string
	uq     *userQueue
	done   bool
}

// Reserve claims capacity for a write. It fails with ErrQueueFull when the
// queue plus outstanding reservations has reached the hard limit.
func (s *Service) Reserve(ctx context.Context, userID string) (*Reservation, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	uq.mu.Lock()
	defer uq.mu.Unlock()
	if uq.queue.Len()+uq.reserved >= s.limits.Hard {
		return nil, ErrQueueFull
	}
	uq.reserved++
	return &Reservation{svc: s, userID: userID, uq: uq}, nil
}

// Enqueue converts the reservation into a queued item.
func (r *Reservation) Enqueue(ctx context.Context, item Item) (EnqueueResult, error) {
	r.uq.mu.Lock()
	defer r.uq.mu.Unlock()
	reserved := r.uq.reserved
	if !r.done {
		reserved--
	}
	res, err := r.svc.appendLocked(ctx, r.userID, r.uq, item, reserved)
	if err != nil {
		return res, err
	}
	if !r.done {
		r.uq.reserved--
		r.done = true
	}
	return res, nil
}

// Release returns the slot without enqueuing. It is safe to call twice.
func (r *Reservation) Release() {
	r.uq.mu.Lock()
	defer r.uq.mu.Unlock()
	if r.done {
		return
	}
	r.uq.reserved--
	r.done = true
}

// Drain persists queued items in order. A failure stops the pass and leaves
// the item at the head. A head already beyond the retry ceiling is not
// retried; use Retry. A drain already running for userID makes this call a
// no-op with status DrainSkipped.
func (s *Service) Drain(ctx context.Context, userID string, persist PersistFunc) (DrainReport, error) {
	return s.drain(ctx, userID, persist, false)
}

// Retry clears retry bookkeeping and drains. It is the user-triggered
// recovery for SyncFailed.
func (s *Service) Retry(ctx context.Context, userID string, persist PersistFunc) (DrainReport, error) {
	return s.drain(ctx, userID, persist, true)
}

func (s *Service) drain(ctx context.Context, userID string, persist PersistFunc, reset bool) (DrainReport, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return DrainReport{}, err
	}
	if !uq.draining.CompareAndSwap(false, true) {
		s.logger.Debug("drain already running", "user_id", userID)
		return DrainReport{Status: DrainSkipped}, nil
	}
	defer uq.draining.Store(false)

	if reset {
		if err := s.resetAttempts(ctx, userID, uq); err != nil {
			return DrainReport{}, err
		}
	}

	report := DrainReport{Status: DrainCompleted}
	for {
		if err := ctx.Err(); err != nil {
			report.Status = DrainStopped
			report.Err = err
			break
		}

		uq.mu.Lock()
		head, ok := uq.queue.Head()
		uq.mu.Unlock()
		if !ok {
			break
		}
		if head.Attempts > s.limits.MaxAttempts {
			report.Status = DrainBlocked
			break
		}

		perr := persist(ctx, head)
		if perr == nil {
			if err := s.removeConfirmed(ctx, userID, uq, head.ID); err != nil {
				return report, err
			}
			report.Confirmed = append(report.Confirmed, head)
			continue
		}

		failed, err := s.recordFailure(ctx, userID, uq, head.ID, perr)
		if err != nil {
			return report, err
		}
		report.Status = DrainStopped
		report.Failed = failed
		report.Err = perr
		s.logger.Info("queue head failed to persist", "user_id", userID, "item_id", head.ID, "attempts", head.Attempts+1, "error", perr)
		break
	}

	uq.mu.Lock()
	report.Remaining = uq.queue.Len()
	report.FailCount = uq.queue.FailCount(s.limits)
	uq.mu.Unlock()

	if s.observer != nil {
		s.observer.DrainFinished(userID, report)
	}
	s.logger.Debug("drain finished", "user_id", userID, "status", report.Status, "confirmed", len(report.Confirmed), "remaining", report.Remaining)
	return report, nil
}

func (s *Service) removeConfirmed(ctx context.Context, userID string, uq *userQueue, id uuid.UUID) error {
	uq.mu.Lock()
	defer uq.mu.Unlock()
	next, ok := uq.queue.Remove(id)
	if !ok {
		return nil
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting queue item: %w", err)
	}
	uq.queue = next
	s.notify(userID, uq)
	return nil
}

func (s *Service) recordFailure(ctx context.Context, userID string, uq *userQueue, id uuid.UUID, cause error) (*Item, error) {
	uq.mu.Lock()
	defer uq.mu.Unlock()
	next, item, ok := uq.queue.MarkFailed(id, cause, s.now())
	if !ok {
		return nil, nil
	}
	if err := s.repo.Update(ctx, userID, item); err != nil {
		return nil, fmt.Errorf("updating queue item: %w", err)
	}
	uq.queue = next
	return &item, nil
}

func (s *Service) resetAttempts(ctx context.Context, userID string, uq *userQueue) error {
	uq.mu.Lock()
	defer uq.mu.Unlock()
	next := uq.queue.ResetAttempts()
	for _, it := range next.items {
		if err := s.repo.Update(ctx, userID, it); err != nil {
			return fmt.Errorf("resetting queue item: %w", err)
		}
	}
	uq.queue = next
	return nil
}

// Discard drops a queued write. It is the only path that loses queued data.
func (s *Service) Discard(ctx context.Context, userID string, id uuid.UUID) (Item, error) {
	uq, err := s.load(ctx, userID)
	if err != nil {
		return Item{}, err
	}
	uq.mu.Lock()
	defer uq.mu.Unlock()
	i := uq.queue.index(id)
	if i < 0 {
		return Item{}, ErrItemNotFound
	}
	item := uq.queue.items[i]
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return Item{}, fmt.Errorf("deleting queue item: %w", err)
	}
	uq.queue, _ = uq.queue.Remove(id)
	s.logger.Warn("queued write discarded", "user_id", userID, "item_id", id, "kind", item.Kind, "document_id", item.DocumentID)
	s.notify(userID, uq)
	return item, nil
}

// Users lists users with a loaded queue, sorted.
func (s *Service) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Service) load(ctx context.Context, userID string) (*userQueue, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if uq, ok := s.users[userID]; ok {
		return uq, nil
	}
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading queue: %w", err)
	}
	uq := &userQueue{queue: New(items...)}
	s.users[userID] = uq
	return uq, nil
}

func (s *Service) notify(userID string, uq *userQueue) {
	if s.observer != nil {
		s.observer.QueueChanged(userID, uq.queue.Len(), uq.queue.State(s.limits))
	}
}
