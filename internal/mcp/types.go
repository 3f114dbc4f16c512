package mcp

import (
	"time"

	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/bucket"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/shopspring/decimal"
)

type NoParams struct{}

type LogMedicationParams struct {
	ID              string   `json:"id,omitempty" jsonschema:"session id; generated when omitted"`
	PetID           string   `json:"pet_id" jsonschema:"pet the dose was given to"`
	Name            string   `json:"name" jsonschema:"medication name"`
	Unit            string   `json:"unit,omitempty" jsonschema:"dose unit, e.g. pill or ml"`
	DosageGiven     float64  `json:"dosage_given" jsonschema:"amount administered"`
	DosageScheduled *float64 `json:"dosage_scheduled,omitempty" jsonschema:"amount prescribed"`
	DateTime        string   `json:"date_time,omitempty" jsonschema:"RFC 3339 time given; defaults to now"`
	ScheduleID      string   `json:"schedule_id,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	AllowDuplicate  bool     `json:"allow_duplicate,omitempty" jsonschema:"log even when the same medication was given within the duplicate window"`
}

type LogFluidParams struct {
	ID            string   `json:"id,omitempty" jsonschema:"session id; generated when omitted"`
	PetID         string   `json:"pet_id" jsonschema:"pet the fluids were given to"`
	VolumeGiven   float64  `json:"volume_given" jsonschema:"volume administered in ml"`
	VolumeTarget  *float64 `json:"volume_target,omitempty" jsonschema:"prescribed volume in ml"`
	InjectionSite string   `json:"injection_site,omitempty" jsonschema:"shoulderBladeLeft, shoulderBladeRight, shoulderBladeMiddle, hipBonesLeft or hipBonesRight"`
	StressLevel   string   `json:"stress_level,omitempty" jsonschema:"low, medium or high"`
	DateTime      string   `json:"date_time,omitempty" jsonschema:"RFC 3339 time given; defaults to now"`
	ScheduleID    string   `json:"schedule_id,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type CheckDuplicateParams struct {
	PetID       string `json:"pet_id"`
	Name        string `json:"name" jsonschema:"medication name"`
	ScheduledAt string `json:"scheduled_at,omitempty" jsonschema:"RFC 3339 time to check; defaults to now"`
}

type DailySummaryParams struct {
	PetID   string `json:"pet_id"`
	Hydrate bool   `json:"hydrate,omitempty" jsonschema:"rebuild today's cache from remote history first"`
}

type SymptomEntryParams struct {
	Kind  string `json:"kind" jsonschema:"vomiting, diarrhea, constipation, energy, suppressedAppetite or injectionSiteReaction"`
	Value any    `json:"value" jsonschema:"episode count for vomiting, otherwise the level name"`
}

type RecordSymptomsParams struct {
	PetID   string               `json:"pet_id"`
	Date    string               `json:"date,omitempty" jsonschema:"YYYY-MM-DD; defaults to today"`
	Entries []SymptomEntryParams `json:"entries"`
	Notes   string               `json:"notes,omitempty"`
}

type SymptomSummaryParams struct {
	PetID  string `json:"pet_id"`
	Period string `json:"period" jsonschema:"week, month or year"`
	Date   string `json:"date,omitempty" jsonschema:"YYYY-MM-DD inside the period; defaults to today"`
}

type DiscardParams struct {
	ItemID string `json:"item_id" jsonschema:"queue item id from get_queue_status"`
}

type GetRecentActivityParams struct {
	PetID string `json:"pet_id,omitempty"`
	Type  string `json:"type,omitempty" jsonschema:"activity type to filter by"`
	Limit int    `json:"limit,omitempty"`
}

type SummaryResponse struct {
	PetID                     string          `json:"pet_id"`
	Date                      string          `json:"date"`
	Hydrated                  bool            `json:"hydrated"`
	MedicationSessionCount    int             `json:"medication_session_count"`
	FluidSessionCount         int             `json:"fluid_session_count"`
	MedicationNames           []string        `json:"medication_names"`
	TotalMedicationDosesGiven decimal.Decimal `json:"total_medication_doses_given"`
	TotalFluidVolumeGiven     decimal.Decimal `json:"total_fluid_volume_given"`
	PendingCount              int             `json:"pending_count"`
}

func newSummaryResponse(petID string, s dailycache.Summary) SummaryResponse {
	return SummaryResponse{
		PetID:                     petID,
		Date:                      s.Date.String(),
		Hydrated:                  s.Hydrated,
		MedicationSessionCount:    s.MedicationSessionCount,
		FluidSessionCount:         s.FluidSessionCount,
		MedicationNames:           s.MedicationNames,
		TotalMedicationDosesGiven: s.TotalMedicationDosesGiven,
		TotalFluidVolumeGiven:     s.TotalFluidVolumeGiven,
		PendingCount:              len(s.PendingIDs),
	}
}

type LogSessionResponse struct {
	Session       treatment.Session          `json:"session"`
	Outcome       coordinator.Outcome        `json:"outcome"`
	Duplicate     dailycache.DuplicateStatus `json:"duplicate"`
	ShowIndicator bool                       `json:"show_indicator"`
	Queue         *EnqueueResponse           `json:"queue,omitempty"`
	Summary       SummaryResponse            `json:"summary"`
}

type EnqueueResponse struct {
	Size    int             `json:"size"`
	State   syncqueue.State `json:"state"`
	Warning bool            `json:"warning"`
}

func newEnqueueResponse(r *syncqueue.EnqueueResult) *EnqueueResponse {
	if r == nil {
		return nil
	}
	return &EnqueueResponse{Size: r.Size, State: r.State, Warning: r.Warning}
}

type DuplicateResponse struct {
	Status dailycache.DuplicateStatus `json:"status"`
	Window string                     `json:"window"`
}

type RecordSymptomsResponse struct {
	Day     symptom.Day         `json:"day"`
	Outcome coordinator.Outcome `json:"outcome"`
	Queue   *EnqueueResponse    `json:"queue,omitempty"`
}

type SymptomSummaryResponse struct {
	PetID   string          `json:"pet_id"`
	Period  string          `json:"period"`
	Buckets []bucket.Bucket `json:"buckets"`
}

type QueueItemResponse struct {
	ID            string         `json:"id"`
	Kind          syncqueue.Kind `json:"kind"`
	DocumentID    string         `json:"document_id"`
	Attempts      int            `json:"attempts"`
	Failed        bool           `json:"failed"`
	LastError     string         `json:"last_error,omitempty"`
	EnqueuedAt    time.Time      `json:"enqueued_at"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty"`
}

type QueueStatusResponse struct {
	Size        int                 `json:"size"`
	State       syncqueue.State     `json:"state"`
	SoftLimit   int                 `json:"soft_limit"`
	HardLimit   int                 `json:"hard_limit"`
	MaxAttempts int                 `json:"max_attempts"`
	FailCount   int                 `json:"fail_count"`
	InFlight    int                 `json:"in_flight"`
	Draining    bool                `json:"draining"`
	Items       []QueueItemResponse `json:"items"`
}

func newQueueStatusResponse(st syncqueue.Status, l syncqueue.Limits) QueueStatusResponse {
	items := make([]QueueItemResponse, 0, len(st.Items))
	for _, it := range st.Items {
		items = append(items, QueueItemResponse{
			ID:            it.ID.String(),
			Kind:          it.Kind,
			DocumentID:    it.DocumentID,
			Attempts:      it.Attempts,
			Failed:        it.Attempts > l.MaxAttempts,
			LastError:     it.LastError,
			EnqueuedAt:    it.EnqueuedAt,
			LastAttemptAt: it.LastAttemptAt,
		})
	}
	return QueueStatusResponse{
		Size:        st.Size,
		State:       st.State,
		SoftLimit:   l.Soft,
		HardLimit:   l.Hard,
		MaxAttempts: l.MaxAttempts,
		FailCount:   st.FailCount,
		InFlight:    st.Reserved,
		Draining:    st.Draining,
		Items:       items,
	}
}

type DrainResponse struct {
	Status    syncqueue.DrainStatus `json:"status"`
	Confirmed int                   `json:"confirmed"`
	Remaining int                   `json:"remaining"`
	FailCount int                   `json:"fail_count"`
	LastError string                `json:"last_error,omitempty"`
}

func newDrainResponse(r syncqueue.DrainReport) DrainResponse {
	resp := DrainResponse{
		Status:    r.Status,
		Confirmed: len(r.Confirmed),
		Remaining: r.Remaining,
		FailCount: r.FailCount,
	}
	if r.Err != nil {
		resp.LastError = r.Err.Error()
	}
	return resp
}

type DiscardResponse struct {
	ItemID     string         `json:"item_id"`
	Kind       syncqueue.Kind `json:"kind"`
	DocumentID string         `json:"document_id"`
}

type ActivityResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}
