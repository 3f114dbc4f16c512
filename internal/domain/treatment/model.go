package treatment

import (
	"time"

	"cloud.google.com/go/civil"
)

// Kind distinguishes the session variants.
type Kind string

const (
	KindMedication Kind = "medication"
	KindFluid      Kind = "fluid"
)

// Administered amounts must exceed these floors for a session to count as complete.
const (
	MedicationDoseFloor = 0.0
	FluidVolumeFloor    = 0.0
)

// InjectionSite is where subcutaneous fluids were given.
type InjectionSite string

const (
	SiteShoulderLeft  InjectionSite = "shoulderBladeLeft"
	SiteShoulderRight InjectionSite = "shoulderBladeRight"
	SiteShoulderMid   InjectionSite = "shoulderBladeMiddle"
	SiteHipLeft       InjectionSite = "hipBonesLeft"
	SiteHipRight      InjectionSite = "hipBonesRight"
)

// InjectionSites lists accepted sites.
var InjectionSites = []InjectionSite{SiteShoulderLeft, SiteShoulderRight, SiteShoulderMid, SiteHipLeft, SiteHipRight}

// StressLevel is how the pet tolerated the fluid session.
type StressLevel string

const (
	StressLow    StressLevel = "low"
	StressMedium StressLevel = "medium"
	StressHigh   StressLevel = "high"
)

// Medication holds the medication variant fields.
type Medication struct {
	Name            string   `json:"name"`
	Unit            string   `json:"unit"`
	DosageGiven     float64  `json:"dosage_given"`
	DosageScheduled *float64 `json:"dosage_scheduled,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// Fluid holds the fluid-therapy variant fields.
type Fluid struct {
	VolumeGiven   float64       `json:"volume_given"`
	VolumeTarget  *float64      `json:"volume_target,omitempty"`
	InjectionSite InjectionSite `json:"injection_site,omitempty"`
	StressLevel   StressLevel   `json:"stress_level,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Session is an immutable record of one administered treatment.
type Session struct {
	ID         string      `json:"id"`
	PetID      string      `json:"pet_id"`
	UserID     string      `json:"user_id"`
	Kind       Kind        `json:"kind"`
	DateTime   time.Time   `json:"date_time"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  *time.Time  `json:"updated_at,omitempty"`
	ScheduleID *string     `json:"schedule_id,omitempty"`
	Medication *Medication `json:"medication,omitempty"`
	Fluid      *Fluid      `json:"fluid,omitempty"`
}

// Date is the local calendar day the treatment happened on.
func (s Session) Date() civil.Date {
	return civil.DateOf(s.DateTime)
}

// AuditTime is the last time the record was written.
func (s Session) AuditTime() time.Time {
	if s.UpdatedAt != nil {
		return *s.UpdatedAt
	}
	return s.CreatedAt
}

// Amount is the administered dose or volume.
func (s Session) Amount() float64 {
	switch s.Kind {
	case KindMedication:
		if s.Medication != nil {
			return s.Medication.DosageGiven
		}
	case KindFluid:
		if s.Fluid != nil {
			return s.Fluid.VolumeGiven
		}
	}
	return 0
}

// IsComplete reports whether the administered amount is above the kind's floor.
func (s Session) IsComplete() bool {
	switch s.Kind {
	case KindMedication:
		return s.Medication != nil && s.Medication.DosageGiven > MedicationDoseFloor
	case KindFluid:
		return s.Fluid != nil && s.Fluid.VolumeGiven > FluidVolumeFloor
	default:
		return false
	}
}

// MedicationName returns the medication name, or "" for fluid sessions.
func (s Session) MedicationName() string {
	if s.Medication == nil {
		return ""
	}
	return s.Medication.Name
}

// Amend returns a copy with updated variant fields and a new audit time.
func (s Session) Amend(med *Medication, fluid *Fluid, at time.Time) Session {
	out := s
	if med != nil {
		m := *med
		out.Medication = &m
	}
	if fluid != nil {
		f := *fluid
		out.Fluid = &f
	}
	out.UpdatedAt = &at
	return out
}
