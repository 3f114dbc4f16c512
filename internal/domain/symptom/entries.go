package symptom

import (
	"encoding/json"
	"fmt"
)

// Vomiting counts episodes during the day.
type Vomiting struct {
	Episodes int
}

func (Vomiting) Kind() Kind { return KindVomiting }
func (v Vomiting) Raw() any  { return v.Episodes }
func (Vomiting) isEntry()    {}

func (v Vomiting) Severity() int {
	switch {
	case v.Episodes <= 0:
		return 0
	case v.Episodes >= MaxSeverity:
		return MaxSeverity
	default:
		return v.Episodes
	}
}

// DiarrheaQuality describes stool consistency.
type DiarrheaQuality string

const (
	DiarrheaNormal DiarrheaQuality = "normal"
	DiarrheaSoft   DiarrheaQuality = "soft"
	DiarrheaLoose  DiarrheaQuality = "loose"
	DiarrheaWatery DiarrheaQuality = "watery"
)

var diarrheaScale = []DiarrheaQuality{DiarrheaNormal, DiarrheaSoft, DiarrheaLoose, DiarrheaWatery}

type Diarrhea struct {
	Quality DiarrheaQuality
}

func (Diarrhea) Kind() Kind      { return KindDiarrhea }
func (d Diarrhea) Raw() any      { return string(d.Quality) }
func (d Diarrhea) Severity() int { return scaleIndex(diarrheaScale, d.Quality) }
func (Diarrhea) isEntry()        {}

// ConstipationLevel describes straining or absence of stool.
type ConstipationLevel string

const (
	ConstipationNormal        ConstipationLevel = "normal"
	ConstipationMildStraining ConstipationLevel = "mildStraining"
	ConstipationNoStool       ConstipationLevel = "noStoolPassed"
	ConstipationPainful       ConstipationLevel = "painful"
)

var constipationScale = []ConstipationLevel{ConstipationNormal, ConstipationMildStraining, ConstipationNoStool, ConstipationPainful}

type Constipation struct {
	Level ConstipationLevel
}

func (Constipation) Kind() Kind      { return KindConstipation }
func (c Constipation) Raw() any      { return string(c.Level) }
func (c Constipation) Severity() int { return scaleIndex(constipationScale, c.Level) }
func (Constipation) isEntry()        {}

// EnergyLevel is observed activity compared to the pet's normal.
type EnergyLevel string

const (
	EnergyNormal          EnergyLevel = "normal"
	EnergySlightlyReduced EnergyLevel = "slightlyReduced"
	EnergyLow             EnergyLevel = "low"
	EnergyVeryLow         EnergyLevel = "veryLow"
)

var energyScale = []EnergyLevel{EnergyNormal, EnergySlightlyReduced, EnergyLow, EnergyVeryLow}

type Energy struct {
	Level EnergyLevel
}

func (Energy) Kind() Kind      { return KindEnergy }
func (e Energy) Raw() any      { return string(e.Level) }
func (e Energy) Severity() int { return scaleIndex(energyScale, e.Level) }
func (Energy) isEntry()        {}

// AppetiteFraction is the share of the usual meal eaten.
type AppetiteFraction string

const (
	AppetiteAll           AppetiteFraction = "all"
	AppetiteThreeQuarters AppetiteFraction = "threeQuarters"
	AppetiteHalf          AppetiteFraction = "half"
	AppetiteQuarter       AppetiteFraction = "quarter"
	AppetiteNothing       AppetiteFraction = "nothing"
)

var appetiteSeverity = map[AppetiteFraction]int{
	AppetiteAll:           0,
	AppetiteThreeQuarters: 1,
	AppetiteHalf:          2,
	AppetiteQuarter:       2,
	AppetiteNothing:       3,
}

type SuppressedAppetite struct {
	Fraction AppetiteFraction
}

func (SuppressedAppetite) Kind() Kind      { return KindSuppressedAppetite }
func (s SuppressedAppetite) Raw() any      { return string(s.Fraction) }
func (s SuppressedAppetite) Severity() int { return appetiteSeverity[s.Fraction] }
func (SuppressedAppetite) isEntry()        {}

// InjectionSiteReactionLevel describes the fluid injection site.
type InjectionSiteReactionLevel string

const (
	ReactionNone            InjectionSiteReactionLevel = "none"
	ReactionMildSwelling    InjectionSiteReactionLevel = "mildSwelling"
	ReactionVisibleSwelling InjectionSiteReactionLevel = "visibleSwelling"
	ReactionRedPainful      InjectionSiteReactionLevel = "redPainful"
)

var reactionScale = []InjectionSiteReactionLevel{ReactionNone, ReactionMildSwelling, ReactionVisibleSwelling, ReactionRedPainful}

type InjectionSiteReaction struct {
	Reaction InjectionSiteReactionLevel
}

func (InjectionSiteReaction) Kind() Kind      { return KindInjectionSiteReaction }
func (r InjectionSiteReaction) Raw() any      { return string(r.Reaction) }
func (r InjectionSiteReaction) Severity() int { return scaleIndex(reactionScale, r.Reaction) }
func (InjectionSiteReaction) isEntry()        {}

// ParseEntry builds a typed entry from a kind name and its JSON raw value.
func ParseEntry(kind string, raw json.RawMessage) (Entry, error) {
	switch Kind(kind) {
	case KindVomiting:
		var episodes int
		if err := json.Unmarshal(raw, &episodes); err != nil {
			return nil, fmt.Errorf("%w: vomiting expects an episode count", ErrInvalidEntry)
		}
		if episodes < 0 || episodes > 50 {
			return nil, fmt.Errorf("%w: vomiting episodes %d out of range", ErrInvalidEntry, episodes)
		}
		return Vomiting{Episodes: episodes}, nil
	case KindDiarrhea:
		v, err := parseScale(kind, raw, diarrheaScale)
		if err != nil {
			return nil, err
		}
		return Diarrhea{Quality: v}, nil
	case KindConstipation:
		v, err := parseScale(kind, raw, constipationScale)
		if err != nil {
			return nil, err
		}
		return Constipation{Level: v}, nil
	case KindEnergy:
		v, err := parseScale(kind, raw, energyScale)
		if err != nil {
			return nil, err
		}
		return Energy{Level: v}, nil
	case KindSuppressedAppetite:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidEntry, kind)
		}
		fraction := AppetiteFraction(s)
		if _, ok := appetiteSeverity[fraction]; !ok {
			return nil, fmt.Errorf("%w: %s value %q", ErrInvalidEntry, kind, s)
		}
		return SuppressedAppetite{Fraction: fraction}, nil
	case KindInjectionSiteReaction:
		v, err := parseScale(kind, raw, reactionScale)
		if err != nil {
			return nil, err
		}
		return InjectionSiteReaction{Reaction: v}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func parseScale[T ~string](kind string, raw json.RawMessage, scale []T) (T, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s expects a string", ErrInvalidEntry, kind)
	}
	for _, v := range scale {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s value %q", ErrInvalidEntry, kind, s)
}

func scaleIndex[T comparable](scale []T, v T) int {
	for i, candidate := range scale {
		if candidate == v {
			return i
		}
	}
	return 0
}
