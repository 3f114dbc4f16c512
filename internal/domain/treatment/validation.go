package treatment

import (
	"math"
	"slices"
	"strings"
)

const (
	maxMedicationDose = 1000
	maxFluidVolume    = 500
)

// Validate checks a session before it is merged or persisted.
func Validate(s Session) error {
	if strings.TrimSpace(s.ID) == "" {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(s.PetID) == "" {
		return invalid("pet_id", "is required")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return invalid("user_id", "is required")
	}
	if s.DateTime.IsZero() {
		return invalid("date_time", "is required")
	}
	if s.CreatedAt.IsZero() {
		return invalid("created_at", "is required")
	}
	if s.UpdatedAt != nil && s.UpdatedAt.Before(s.CreatedAt) {
		return invalid("updated_at", "precedes created_at")
	}

	switch s.Kind {
	case KindMedication:
		if s.Medication == nil || s.Fluid != nil {
			return invalid("medication", "must be the only variant")
		}
		return validateMedication(*s.Medication)
	case KindFluid:
		if s.Fluid == nil || s.Medication != nil {
			return invalid("fluid", "must be the only variant")
		}
		return validateFluid(*s.Fluid)
	default:
		return invalid("kind", "must be medication or fluid")
	}
}

func validateMedication(m Medication) error {
	if strings.TrimSpace(m.Name) == "" {
		return invalid("medication.name", "is required")
	}
	if err := checkAmount("medication.dosage_given", m.DosageGiven, maxMedicationDose); err != nil {
		return err
	}
	if m.DosageScheduled != nil {
		if err := checkAmount("medication.dosage_scheduled", *m.DosageScheduled, maxMedicationDose); err != nil {
			return err
		}
	}
	return nil
}

func validateFluid(f Fluid) error {
	if err := checkAmount("fluid.volume_given", f.VolumeGiven, maxFluidVolume); err != nil {
		return err
	}
	if f.VolumeTarget != nil {
		if err := checkAmount("fluid.volume_target", *f.VolumeTarget, maxFluidVolume); err != nil {
			return err
		}
	}
	if f.InjectionSite != "" && !slices.Contains(InjectionSites, f.InjectionSite) {
		return invalid("fluid.injection_site", "is not a known site")
	}
	switch f.StressLevel {
	case "", StressLow, StressMedium, StressHigh:
	default:
		return invalid("fluid.stress_level", "must be low, medium or high")
	}
	return nil
}

func checkAmount(field string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "is not a number")
	}
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	if v > limit {
		return invalid(field, "is above the accepted maximum")
	}
	return nil
}
