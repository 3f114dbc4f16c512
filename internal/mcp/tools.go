package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
)

type toolset struct {
	services Services
	logger   *slog.Logger
	now      func() time.Time
}

func registerTools(server *sdkmcp.Server, t *toolset) {
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Writes
	addTool(server, t, "log_medication", "Log a medication dose. Rejected with DUPLICATE_DETECTED when the same medication was already given within the duplicate window, unless allow_duplicate is set. Passing the id of a session logged today amends it.", t.logMedication)
	addTool(server, t, "log_fluid", "Log a subcutaneous fluid session", t.logFluid)
	addTool(server, t, "record_symptoms", "Record the symptoms observed on one day, replacing that day's previous entry", t.recordSymptoms)

	// Reads
	addTool(server, t, "check_duplicate", "Check whether a medication was already given near a time today, using only the local cache", t.checkDuplicate)
	addTool(server, t, "get_daily_summary", "Get today's medication and fluid totals for a pet", t.dailySummary)
	addTool(server, t, "get_symptom_summary", "Get symptom buckets for the week, month or year containing a date", t.symptomSummary)
	addTool(server, t, "get_recent_activity", "Get recent sync and logging activity", t.recentActivity)

	// Queue
	addTool(server, t, "get_queue_status", "Get the offline queue size, backpressure state and failed items", t.queueStatus)
	addTool(server, t, "drain_queue", "Replay queued writes to the remote store in order", t.drainQueue)
	addTool(server, t, "retry_failed", "Reset retry counts on failed writes and drain again", t.retryFailed)
	addTool(server, t, "discard_queue_item", "Drop a queued write permanently. The write is lost.", t.discardItem)
}

func addTool[In any](server *sdkmcp.Server, t *toolset, name, description string, fn func(ctx context.Context, tenantID string, in In) (any, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			out, err := fn(ctx, getTenantID(ctx), in)
			if err != nil {
				apiErr := toAPIError(err)
				t.logger.Info("tool failed", "tool", name, "tenant_id", getTenantID(ctx), "session_id", getSessionID(ctx), "code", apiErr.Code, "error", err)
				return jsonResult(apiErr, true), nil, nil
			}
			return jsonResult(out, false), nil, nil
		})
}

func jsonResult(v any, isError bool) *sdkmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(&APIError{Code: "INTERNAL", Message: fmt.Sprintf("encoding result: %v", err)})
		isError = true
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}

func (t *toolset) logMedication(ctx context.Context, tenantID string, in LogMedicationParams) (any, error) {
	now := t.now()
	at, err := parseTime("date_time", in.DateTime, now)
	if err != nil {
		return nil, err
	}
	s := treatment.Session{
		ID:         sessionID(in.ID),
		PetID:      in.PetID,
		UserID:     tenantID,
		Kind:       treatment.KindMedication,
		DateTime:   at,
		CreatedAt:  now,
		ScheduleID: optional(in.ScheduleID),
		Medication: &treatment.Medication{
			Name:            strings.TrimSpace(in.Name),
			Unit:            in.Unit,
			DosageGiven:     in.DosageGiven,
			DosageScheduled: in.DosageScheduled,
			Notes:           in.Notes,
		},
	}
	return t.logSession(ctx, coordinator.LogRequest{Session: t.amend(ctx, s, now), AllowDuplicate: in.AllowDuplicate}, now)
}

func (t *toolset) logFluid(ctx context.Context, tenantID string, in LogFluidParams) (any, error) {
	now := t.now()
	at, err := parseTime("date_time", in.DateTime, now)
	if err != nil {
		return nil, err
	}
	s := treatment.Session{
		ID:         sessionID(in.ID),
		PetID:      in.PetID,
		UserID:     tenantID,
		Kind:       treatment.KindFluid,
		DateTime:   at,
		CreatedAt:  now,
		ScheduleID: optional(in.ScheduleID),
		Fluid: &treatment.Fluid{
			VolumeGiven:   in.VolumeGiven,
			VolumeTarget:  in.VolumeTarget,
			InjectionSite: treatment.InjectionSite(in.InjectionSite),
			StressLevel:   treatment.StressLevel(in.StressLevel),
			Notes:         in.Notes,
		},
	}
	return t.logSession(ctx, coordinator.LogRequest{Session: t.amend(ctx, s, now)}, now)
}

// amend turns a write for a session already logged today into an update of
// it. The original time and creation stamp are kept.
func (t *toolset) amend(ctx context.Context, s treatment.Session, now time.Time) treatment.Session {
	if known, ok := t.services.Sync.Session(s.UserID, s.PetID, s.ID, now); ok && known.Kind == s.Kind {
		return known.Amend(s.Medication, s.Fluid, now)
	}
	if t.services.Sync.DailySummary(ctx, s.UserID, s.PetID, now).Contains(s.ID) {
		s.UpdatedAt = &now
	}
	return s
}

func (t *toolset) logSession(ctx context.Context, req coordinator.LogRequest, now time.Time) (any, error) {
	res, err := t.services.Sync.LogSession(ctx, req, now)
	if err != nil {
		return nil, err
	}
	// Waits at most the indicator delay, so fast persists report their outcome.
	indicator := res.ShowIndicator()
	return LogSessionResponse{
		Session:       res.Session,
		Outcome:       res.Persist.Result().Outcome,
		Duplicate:     res.Duplicate,
		ShowIndicator: indicator,
		Queue:         newEnqueueResponse(res.Queue),
		Summary:       newSummaryResponse(req.Session.PetID, res.Summary),
	}, nil
}

func (t *toolset) recordSymptoms(ctx context.Context, tenantID string, in RecordSymptomsParams) (any, error) {
	now := t.now()
	date, err := parseDate(in.Date, now)
	if err != nil {
		return nil, err
	}
	entries := make([]symptom.RawEntry, 0, len(in.Entries))
	for _, e := range in.Entries {
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", errInvalidParams, e.Kind, err)
		}
		entries = append(entries, symptom.RawEntry{Kind: e.Kind, Value: raw})
	}
	res, err := t.services.Sync.RecordSymptoms(ctx, tenantID, symptom.RecordRequest{
		PetID:   in.PetID,
		Date:    date,
		Entries: entries,
		Notes:   in.Notes,
	}, now)
	if err != nil {
		return nil, err
	}
	res.Persist.ShowIndicator(t.services.Sync.Config().IndicatorDelay)
	return RecordSymptomsResponse{
		Day:     res.Day,
		Outcome: res.Persist.Result().Outcome,
		Queue:   newEnqueueResponse(res.Queue),
	}, nil
}

func (t *toolset) checkDuplicate(ctx context.Context, tenantID string, in CheckDuplicateParams) (any, error) {
	if in.PetID == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: pet_id and name are required", errInvalidParams)
	}
	now := t.now()
	at, err := parseTime("scheduled_at", in.ScheduledAt, now)
	if err != nil {
		return nil, err
	}
	status := t.services.Sync.CheckDuplicate(ctx, tenantID, in.PetID, strings.TrimSpace(in.Name), at, now)
	return DuplicateResponse{Status: status, Window: t.services.Sync.Config().DuplicateWindow.String()}, nil
}

func (t *toolset) dailySummary(ctx context.Context, tenantID string, in DailySummaryParams) (any, error) {
	if in.PetID == "" {
		return nil, fmt.Errorf("%w: pet_id is required", errInvalidParams)
	}
	now := t.now()
	if in.Hydrate {
		s, err := t.services.Sync.Hydrate(ctx, tenantID, in.PetID, now)
		if err != nil {
			return nil, err
		}
		return newSummaryResponse(in.PetID, s), nil
	}
	return newSummaryResponse(in.PetID, t.services.Sync.DailySummary(ctx, tenantID, in.PetID, now)), nil
}

func (t *toolset) symptomSummary(ctx context.Context, tenantID string, in SymptomSummaryParams) (any, error) {
	if in.PetID == "" {
		return nil, fmt.Errorf("%w: pet_id is required", errInvalidParams)
	}
	now := t.now()
	date, err := parseDate(in.Date, now)
	if err != nil {
		return nil, err
	}
	var buckets []bucket.Bucket
	switch in.Period {
	case "week":
		buckets, err = t.services.Summaries.Weekly(ctx, tenantID, in.PetID, date)
	case "month":
		buckets, err = t.services.Summaries.Monthly(ctx, tenantID, in.PetID, date.Year, date.Month)
	case "year":
		buckets, err = t.services.Summaries.Yearly(ctx, tenantID, in.PetID, date.Year, now)
	default:
		return nil, fmt.Errorf("%w: period must be week, month or year", errInvalidParams)
	}
	if err != nil {
		return nil, err
	}
	return SymptomSummaryResponse{PetID: in.PetID, Period: in.Period, Buckets: buckets}, nil
}

func (t *toolset) recentActivity(ctx context.Context, tenantID string, in GetRecentActivityParams) (any, error) {
	opts := activity.ListActivityOptions{PetID: in.PetID, Limit: in.Limit}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if in.Type != "" {
		at := activity.ActivityType(in.Type)
		opts.ActivityType = &at
	}
	entries, err := t.services.Activity.GetRecentActivity(ctx, tenantID, opts)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return ActivityResponse{Entries: entries}, nil
}

func (t *toolset) queueStatus(ctx context.Context, tenantID string, _ NoParams) (any, error) {
	st, err := t.services.Queue.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return newQueueStatusResponse(st, t.services.Queue.Limits()), nil
}

func (t *toolset) drainQueue(ctx context.Context, tenantID string, _ NoParams) (any, error) {
	return drainResult(t.services.Sync.Drain(ctx, tenantID))
}

func (t *toolset) retryFailed(ctx context.Context, tenantID string, _ NoParams) (any, error) {
	return drainResult(t.services.Sync.RetryFailed(ctx, tenantID))
}

func drainResult(report syncqueue.DrainReport, err error) (any, error) {
	if errors.Is(err, syncqueue.ErrSyncFailed) {
		apiErr := toAPIError(err)
		apiErr.Details = newDrainResponse(report)
		return nil, apiErr
	}
	if err != nil {
		return nil, err
	}
	return newDrainResponse(report), nil
}

func (t *toolset) discardItem(ctx context.Context, tenantID string, in DiscardParams) (any, error) {
	id, err := uuid.Parse(in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: item_id: %v", errInvalidParams, err)
	}
	item, err := t.services.Sync.Discard(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return DiscardResponse{ItemID: item.ID.String(), Kind: item.Kind, DocumentID: item.DocumentID}, nil
}

func parseTime(field, v string, now time.Time) (time.Time, error) {
	if v == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", errInvalidParams, field)
	}
	return t.In(now.Location()), nil
}

func parseDate(v string, now time.Time) (civil.Date, error) {
	if v == "" {
		return civil.DateOf(now), nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: date must be YYYY-MM-DD", errInvalidParams)
	}
	return d, nil
}

func sessionID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
