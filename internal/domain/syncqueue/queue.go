package syncqueue

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Queue is an ordered FIFO of pending writes. Like the daily cache it is a
// value: every operation returns a new Queue.
type Queue struct {
	items []Item
}

// New builds a queue holding items in order.
func New(items ...Item) Queue {
	return Queue{items: slices.Clone(items)}
}

func (q Queue) Len() int { return len(q.items) }

// Items returns a copy of the queued items, head first.
func (q Queue) Items() []Item {
	return slices.Clone(q.items)
}

// Head returns the oldest item.
func (q Queue) Head() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

func (q Queue) State(l Limits) State {
	return StateFor(len(q.items), l)
}

// Enqueue appends item. It fails closed at the hard limit and reports a
// warning once the resulting size exceeds the soft limit.
func (q Queue) Enqueue(item Item, l Limits) (Queue, EnqueueResult, error) {
	return q.enqueue(item, l, 0)
}

func (q Queue) enqueue(item Item, l Limits, reserved int) (Queue, EnqueueResult, error) {
	if len(q.items)+reserved >= l.Hard {
		return q, EnqueueResult{Size: len(q.items), State: StateHardFull}, ErrQueueFull
	}
	out := Queue{items: append(slices.Clone(q.items), item)}
	size := len(out.items)
	return out, EnqueueResult{
		Size:    size,
		State:   StateFor(size, l),
		Warning: size > l.Soft,
	}, nil
}

// FailCount counts items whose attempts exceed the retry ceiling.
func (q Queue) FailCount(l Limits) int {
	n := 0
	for _, it := range q.items {
		if it.Attempts > l.MaxAttempts {
			n++
		}
	}
	return n
}

// Err returns a SyncFailedError when any item is beyond the retry ceiling.
func (q Queue) Err(l Limits) error {
	if n := q.FailCount(l); n > 0 {
		return &SyncFailedError{Count: n}
	}
	return nil
}

// Remove drops the item with id.
func (q Queue) Remove(id uuid.UUID) (Queue, bool) {
	i := q.index(id)
	if i < 0 {
		return q, false
	}
	return Queue{items: slices.Delete(slices.Clone(q.items), i, i+1)}, true
}

// MarkFailed records a failed attempt on the item with id without moving it.
func (q Queue) MarkFailed(id uuid.UUID, cause error, at time.Time) (Queue, Item, bool) {
	i := q.index(id)
	if i < 0 {
		return q, Item{}, false
	}
	items := slices.Clone(q.items)
	it := items[i]
	it.Attempts++
	it.LastAttemptAt = &at
	if cause != nil {
		it.LastError = cause.Error()
	}
	items[i] = it
	return Queue{items: items}, it, true
}

// ResetAttempts clears retry bookkeeping on every item.
func (q Queue) ResetAttempts() Queue {
	items := slices.Clone(q.items)
	for i := range items {
		items[i].Attempts = 0
		items[i].LastError = ""
	}
	return Queue{items: items}
}

func (q Queue) index(id uuid.UUID) int {
	return slices.IndexFunc(q.items, func(it Item) bool { return it.ID == id })
}
