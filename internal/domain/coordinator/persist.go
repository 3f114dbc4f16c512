package coordinator

import (
	"context"
	"sync"
	"time"
)

// Outcome is how a logged write reached (or did not yet reach) the remote store.
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomePersisted  Outcome = "persisted"
	OutcomeQueued     Outcome = "queued"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeFailed     Outcome = "failed"
)

// PersistResult is the final state of a persist attempt. Cause carries the
// remote error behind a queued write, or the local error behind a failed one.
type PersistResult struct {
	Outcome Outcome
	Cause   error
}

// Persist tracks an asynchronous remote write.
type Persist struct {
	done   chan struct{}
	once   sync.Once
	result PersistResult
}

func newPersist() *Persist {
	return &Persist{done: make(chan struct{})}
}

func settled(outcome Outcome, cause error) *Persist {
	p := newPersist()
	p.finish(outcome, cause)
	return p
}

func (p *Persist) finish(outcome Outcome, cause error) {
	p.once.Do(func() {
		p.result = PersistResult{Outcome: outcome, Cause: cause}
		close(p.done)
	})
}

// Done is closed once the write is persisted, queued or failed.
func (p *Persist) Done() <-chan struct{} { return p.done }

// Result returns the current state without blocking.
func (p *Persist) Result() PersistResult {
	select {
	case <-p.done:
		return p.result
	default:
		return PersistResult{Outcome: OutcomePending}
	}
}

// Wait blocks until the write settles or ctx ends.
func (p *Persist) Wait(ctx context.Context) (PersistResult, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return PersistResult{Outcome: OutcomePending}, ctx.Err()
	}
}

// ShowIndicator waits up to delay and reports whether the write is still
// running, in which case a loading indicator is warranted.
func (p *Persist) ShowIndicator(delay time.Duration) bool {
	if delay <= 0 {
		return p.Result().Outcome == OutcomePending
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-p.done:
		return false
	case <-timer.C:
		return true
	}
}
