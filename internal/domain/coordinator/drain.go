package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/remote"
)

// Drain replays the user's queued writes in order. The error is a
// *syncqueue.SyncFailedError when items remain beyond the retry ceiling.
func (c *Coordinator) Drain(ctx context.Context, userID string) (syncqueue.DrainReport, error) {
	return c.drain(ctx, userID, false)
}

// RetryFailed resets retry bookkeeping and drains again.
func (c *Coordinator) RetryFailed(ctx context.Context, userID string) (syncqueue.DrainReport, error) {
	return c.drain(ctx, userID, true)
}

func (c *Coordinator) drain(ctx context.Context, userID string, retry bool) (syncqueue.DrainReport, error) {
	persist := func(ctx context.Context, item syncqueue.Item) error {
		pctx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
		defer cancel()
		err := c.put(pctx, userID, item)
		if errors.Is(err, remote.ErrStaleWrite) {
			return nil
		}
		return err
	}

	var (
		report syncqueue.DrainReport
		err    error
	)
	if retry {
		report, err = c.queue.Retry(ctx, userID, persist)
	} else {
		report, err = c.queue.Drain(ctx, userID, persist)
	}
	if err != nil {
		return report, err
	}

	for _, item := range report.Confirmed {
		c.confirm(ctx, dailycache.Key{UserID: userID}, item)
		c.recorder.WriteLogged(string(item.Kind), string(OutcomePersisted))
	}

	if len(report.Confirmed) > 0 {
		c.emit(ctx, userID, activity.ActivityEntry{
			ActivityType: activity.TypeQueueDrained,
			Summary:      fmt.Sprintf("Synced %d queued write(s), %d remaining", len(report.Confirmed), report.Remaining),
		}, map[string]any{"status": report.Status, "confirmed": len(report.Confirmed), "remaining": report.Remaining})
	}

	if report.FailCount > 0 {
		c.emit(ctx, userID, activity.ActivityEntry{
			ActivityType: activity.TypeSyncFailed,
			Summary:      fmt.Sprintf("%d queued write(s) could not be synced", report.FailCount),
		}, map[string]any{"fail_count": report.FailCount, "status": report.Status})
		return report, &syncqueue.SyncFailedError{Count: report.FailCount}
	}
	return report, nil
}

// Discard drops a queued write. The cache keeps counting the session; it
// stays pending until the day rolls over.
func (c *Coordinator) Discard(ctx context.Context, userID string, itemID uuid.UUID) (syncqueue.Item, error) {
	item, err := c.queue.Discard(ctx, userID, itemID)
	if err != nil {
		return syncqueue.Item{}, err
	}
	id := item.ID.String()
	c.emit(ctx, userID, activity.ActivityEntry{
		ItemID:       &id,
		ActivityType: activity.TypeQueueItemDiscard,
		Summary:      fmt.Sprintf("Discarded queued %s %s", item.Kind, item.DocumentID),
	}, map[string]any{"collection": item.Collection, "attempts": item.Attempts, "last_error": item.LastError})
	return item, nil
}

// Start drains every known queue on each tick until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.loops.Add(1)
	go func() {
		defer c.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.drainAll(ctx)
			}
		}
	}()
}

func (c *Coordinator) drainAll(ctx context.Context) {
	for _, userID := range c.queue.Users() {
		report, err := c.Drain(ctx, userID)
		switch {
		case errors.Is(err, syncqueue.ErrSyncFailed):
			c.logger.Debug("queue blocked on failed items", "user_id", userID, "fail_count", report.FailCount)
		case err != nil:
			c.logger.Error("background drain failed", "user_id", userID, "error", err)
		}
	}
}
