package activity

import "time"

// ActivityType represents the type of analytics event
type ActivityType string

const (
	TypeSessionLogged     ActivityType = "session_logged"
	TypeSessionPersisted  ActivityType = "session_persisted"
	TypeSessionQueued     ActivityType = "session_queued"
	TypeWriteSuperseded   ActivityType = "write_superseded"
	TypeDuplicateDetected ActivityType = "duplicate_detected"
	TypeSymptomsRecorded  ActivityType = "symptoms_recorded"
	TypeQueueSoftWarning  ActivityType = "queue_soft_warning"
	TypeQueueFull         ActivityType = "queue_full"
	TypeQueueDrained      ActivityType = "queue_drained"
	TypeQueueItemDiscard  ActivityType = "queue_item_discarded"
	TypeSyncFailed        ActivityType = "sync_failed"
	TypeCacheRollover     ActivityType = "cache_rollover"
	TypeCacheHydrated     ActivityType = "cache_hydrated"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	PetID        string       `json:"pet_id,omitempty"`
	SessionID    *string      `json:"session_id,omitempty"`
	ItemID       *string      `json:"item_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
