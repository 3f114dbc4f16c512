package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `adherence records pet treatments (medication doses, subcutaneous fluids, daily symptoms) local-first.

Core concepts:
- Every write lands in today's local cache immediately, then is persisted to the remote store in the background.
- When the remote store is unreachable the write is queued. Queued writes are replayed in order by drain_queue
  and by a periodic background drain.
- The queue warns above its soft limit and refuses new writes at its hard limit (QUEUE_FULL).
- A queued write that keeps failing is marked failed and blocks the writes behind it (SYNC_FAILED).
  Recover with retry_failed, or drop it with discard_queue_item.

Rules of engagement:
1) Before logging a medication, check_duplicate or get_daily_summary(hydrate=true) once per day.
   Until the cache is hydrated, duplicate checks answer "unknown" and never block.
2) log_medication rejects a dose of the same medication within the duplicate window (DUPLICATE_DETECTED).
   Only pass allow_duplicate=true when the user confirms a second dose.
3) show_indicator=true in a log result means the remote write is slow; the local summary is already updated.
4) If get_queue_status reports fail_count > 0, tell the user before logging more.

Docs:
- adherence://docs/sync (queue states and recovery)
- adherence://docs/symptoms (symptom kinds and values)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "adherence://docs/sync",
		Name:        "docs_sync",
		Title:       "Offline sync and recovery",
		Description: "Queue states, limits, retry ceiling and how to recover from SYNC_FAILED.",
		Content: `# Offline sync

## Write path

1. The session is validated and merged into today's cache.
2. If the queue is empty the write goes straight to the remote store.
3. If the queue is not empty, or the remote write fails, the write is appended to the queue.
   Writes never jump ahead of queued writes for the same user.

## Queue states

| state | meaning |
|---|---|
| empty | nothing waiting |
| accumulating | writes waiting, below the soft limit |
| soft_warning | above the soft limit; writes still accepted |
| hard_full | at the hard limit; new writes fail with QUEUE_FULL |

## Failures

Each failed replay increments the item's attempts. Past max_attempts the item is failed:
automatic drains stop at it and report SYNC_FAILED.

- retry_failed resets attempts and drains again.
- discard_queue_item drops one write. This is the only way queued data is lost.

## Conflicts

Remote writes are last-writer-wins by audit time (updated_at, else created_at).
A replayed write older than the stored document is dropped as superseded.
`,
	},
	{
		URI:         "adherence://docs/symptoms",
		Name:        "docs_symptoms",
		Title:       "Symptom kinds",
		Description: "Accepted symptom kinds and the value each expects.",
		Content: `# Symptoms

One record per pet per day; recording again replaces the day.

| kind | value |
|---|---|
| vomiting | episode count, 0-50 |
| diarrhea | normal, soft, loose, watery |
| constipation | normal, mildStraining, noStoolPassed, painful |
| energy | normal, slightlyReduced, low, veryLow |
| suppressedAppetite | all, threeQuarters, half, quarter, nothing |
| injectionSiteReaction | none, mildSwelling, visibleSwelling, redPainful |

get_symptom_summary groups days into buckets: the seven days of a week, the week segments of a month,
or the months of a year up to today.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
