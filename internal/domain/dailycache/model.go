package dailycache

import (
	"maps"
	"slices"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/shopspring/decimal"
)

// DefaultDuplicateWindow is the symmetric tolerance used for duplicate checks.
const DefaultDuplicateWindow = 2 * time.Hour

// Summary is the per-pet aggregate for a single calendar day.
//
// A Summary is a value: operations return a new Summary and never modify
// the receiver, so a snapshot handed to a reader stays consistent.
type Summary struct {
	Date                      civil.Date             `json:"date"`
	MedicationSessionCount    int                    `json:"medication_session_count"`
	FluidSessionCount         int                    `json:"fluid_session_count"`
	MedicationNames           []string               `json:"medication_names"`
	TotalMedicationDosesGiven decimal.Decimal        `json:"total_medication_doses_given"`
	TotalFluidVolumeGiven     decimal.Decimal        `json:"total_fluid_volume_given"`
	MedicationRecentTimes     map[string][]time.Time `json:"medication_recent_times"`
	SessionIDs                []string               `json:"session_ids"`
	PendingIDs                []string               `json:"pending_ids"`
	Hydrated                  bool                   `json:"hydrated"`
}

// Empty returns a cache for date with no sessions folded in.
func Empty(date civil.Date, hydrated bool) Summary {
	return Summary{
		Date:                      date,
		MedicationNames:           []string{},
		TotalMedicationDosesGiven: decimal.Zero,
		TotalFluidVolumeGiven:     decimal.Zero,
		MedicationRecentTimes:     map[string][]time.Time{},
		SessionIDs:                []string{},
		PendingIDs:                []string{},
		Hydrated:                  hydrated,
	}
}

// Hydrate rebuilds an authoritative cache for date from remote history
// (confirmed) and writes still waiting in the offline queue (pending).
// Sessions for other days are ignored.
func Hydrate(date civil.Date, confirmed, pending []treatment.Session) Summary {
	out := Empty(date, true)
	for _, s := range confirmed {
		if s.Date() == date {
			out = out.fold(s, false)
		}
	}
	for _, s := range pending {
		if s.Date() == date {
			out = out.fold(s, true)
		}
	}
	return out
}

// IsValidFor reports whether the cache describes the local day of now.
func (s Summary) IsValidFor(now time.Time) bool {
	return s.Date == civil.DateOf(now)
}

// InvalidateIfStale returns an empty cache for today when the receiver is
// for another day. The second result reports whether a reset happened.
// Calling it again with the same now is a no-op.
func (s Summary) InvalidateIfStale(now time.Time) (Summary, bool) {
	if s.IsValidFor(now) {
		return s, false
	}
	return Empty(civil.DateOf(now), s.Hydrated), true
}

// Merge folds a completed session into the cache. A session dated on another
// day first resets the cache to that day. Sessions already folded in, and
// incomplete sessions, leave the counters untouched.
func (s Summary) Merge(session treatment.Session) Summary {
	return s.fold(session, true)
}

// Confirm marks a session as persisted remotely.
func (s Summary) Confirm(sessionID string) Summary {
	i, found := slices.BinarySearch(s.PendingIDs, sessionID)
	if !found {
		return s
	}
	out := s.clone()
	out.PendingIDs = slices.Delete(out.PendingIDs, i, i+1)
	return out
}

// Remove takes back a session folded in by Merge, restoring counters, sums
// and recent times. Unknown sessions leave the cache unchanged.
func (s Summary) Remove(session treatment.Session) Summary {
	i, found := slices.BinarySearch(s.SessionIDs, session.ID)
	if !found {
		return s
	}
	out := s.clone()
	out.SessionIDs = slices.Delete(out.SessionIDs, i, i+1)
	if j, pending := slices.BinarySearch(out.PendingIDs, session.ID); pending {
		out.PendingIDs = slices.Delete(out.PendingIDs, j, j+1)
	}

	amount := decimal.NewFromFloat(session.Amount())
	switch session.Kind {
	case treatment.KindMedication:
		name := session.MedicationName()
		out.MedicationSessionCount--
		out.TotalMedicationDosesGiven = out.TotalMedicationDosesGiven.Sub(amount)
		times := slices.Clone(out.MedicationRecentTimes[name])
		if k := slices.IndexFunc(times, session.DateTime.Equal); k >= 0 {
			times = slices.Delete(times, k, k+1)
		}
		if len(times) > 0 {
			out.MedicationRecentTimes[name] = times
			break
		}
		delete(out.MedicationRecentTimes, name)
		if k, ok := slices.BinarySearch(out.MedicationNames, name); ok {
			out.MedicationNames = slices.Delete(out.MedicationNames, k, k+1)
		}
	case treatment.KindFluid:
		out.FluidSessionCount--
		out.TotalFluidVolumeGiven = out.TotalFluidVolumeGiven.Sub(amount)
	}
	return out
}

// Contains reports whether a session id has been folded in.
func (s Summary) Contains(sessionID string) bool {
	_, found := slices.BinarySearch(s.SessionIDs, sessionID)
	return found
}

// HasPending reports whether merged sessions still wait for remote confirmation.
func (s Summary) HasPending() bool {
	return len(s.PendingIDs) > 0
}

// HasMedication reports whether name was logged on the cache's day.
func (s Summary) HasMedication(name string) bool {
	_, found := slices.BinarySearch(s.MedicationNames, name)
	return found
}

func (s Summary) fold(session treatment.Session, pending bool) Summary {
	if !session.IsComplete() {
		return s
	}
	base := s
	if session.Date() != s.Date {
		base = Empty(session.Date(), s.Hydrated)
	}
	if base.Contains(session.ID) {
		return base
	}

	out := base.clone()
	out.SessionIDs = insertSorted(out.SessionIDs, session.ID)
	if pending {
		out.PendingIDs = insertSorted(out.PendingIDs, session.ID)
	}

	amount := decimal.NewFromFloat(session.Amount())
	switch session.Kind {
	case treatment.KindMedication:
		name := session.MedicationName()
		out.MedicationSessionCount++
		out.TotalMedicationDosesGiven = out.TotalMedicationDosesGiven.Add(amount)
		out.MedicationNames = insertSorted(out.MedicationNames, name)
		times := append(slices.Clone(out.MedicationRecentTimes[name]), session.DateTime)
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		out.MedicationRecentTimes[name] = times
	case treatment.KindFluid:
		out.FluidSessionCount++
		out.TotalFluidVolumeGiven = out.TotalFluidVolumeGiven.Add(amount)
	}
	return out
}

func (s Summary) clone() Summary {
	out := s
	out.MedicationNames = slices.Clone(s.MedicationNames)
	out.SessionIDs = slices.Clone(s.SessionIDs)
	out.PendingIDs = slices.Clone(s.PendingIDs)
	out.MedicationRecentTimes = maps.Clone(s.MedicationRecentTimes)
	if out.MedicationRecentTimes == nil {
		out.MedicationRecentTimes = map[string][]time.Time{}
	}
	return out
}

func insertSorted(list []string, v string) []string {
	i, found := slices.BinarySearch(list, v)
	if found {
		return list
	}
	return slices.Insert(list, i, v)
}
