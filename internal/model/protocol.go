package model

import (
	"slices"
	"strings"
)

// Level is the ordinal pain or downtime level a protocol declares.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// ParseLevel maps a catalog label ("Low", "Very High", "mid") onto a Level.
// The second return is false for blank or unrecognized labels.
func ParseLevel(s string) (Level, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "none", "no", "zero":
		return LevelNone, true
	case "low", "minimal", "mild":
		return LevelLow, true
	case "medium", "mid", "moderate":
		return LevelMedium, true
	case "high":
		return LevelHigh, true
	case "very_high", "veryhigh", "severe":
		return LevelVeryHigh, true
	}
	return "", false
}

// PainValue places the level on the 0-100 pain tolerance scale.
func (l Level) PainValue() (int, bool) {
	switch l {
	case LevelNone:
		return 0, true
	case LevelLow:
		return 20, true
	case LevelMedium:
		return 50, true
	case LevelHigh:
		return 80, true
	case LevelVeryHigh:
		return 100, true
	}
	return 0, false
}

// DowntimeDays places the level on the 0-7 day downtime scale.
func (l Level) DowntimeDays() (int, bool) {
	switch l {
	case LevelNone:
		return 0, true
	case LevelLow:
		return 2, true
	case LevelMedium:
		return 4, true
	case LevelHigh, LevelVeryHigh:
		return 7, true
	}
	return 0, false
}

// PriceTier is a protocol's relative cost bracket.
type PriceTier string

const (
	PriceEconomy  PriceTier = "economy"
	PriceStandard PriceTier = "standard"
	PricePremium  PriceTier = "premium"
)

// ParsePriceTier maps a catalog label onto a PriceTier.
func ParsePriceTier(s string) (PriceTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "low", "budget", "$":
		return PriceEconomy, true
	case "standard", "mid", "medium", "$$":
		return PriceStandard, true
	case "premium", "high", "luxury", "$$$":
		return PricePremium, true
	}
	return "", false
}

// Value places the tier on the 0-100 budget scale.
func (t PriceTier) Value() (int, bool) {
	switch t {
	case PriceEconomy:
		return 20, true
	case PriceStandard:
		return 50, true
	case PricePremium:
		return 80, true
	}
	return 0, false
}

// Target layers that count as deep for the skin-fit axis.
const (
	LayerEpidermis  = "epidermis"
	LayerDermis     = "dermis"
	LayerSMAS       = "smas"
	LayerHypodermis = "hypodermis"
)

// RiskNote is a protocol-level caution tied to a patient risk flag. Level is
// kept raw and classified by the risk package at scoring time.
type RiskNote struct {
	Flag        string `json:"flag" yaml:"flag"`
	Level       string `json:"level" yaml:"level"`
	Description string `json:"description" yaml:"description"`
}

// DoctorRef identifies the doctor whose signature solution features a protocol.
type DoctorRef struct {
	DoctorID   string `json:"doctor_id" yaml:"doctor_id"`
	DoctorName string `json:"doctor_name" yaml:"doctor_name"`
	ClinicName string `json:"clinic_name,omitempty" yaml:"clinic_name"`
	SolutionID string `json:"solution_id,omitempty" yaml:"solution_id"`
	Solution   string `json:"solution,omitempty" yaml:"solution"`
}

// Protocol is a treatment offering from the candidate pool.
type Protocol struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	PrimaryGoal    Goal       `json:"primary_goal" yaml:"primary_goal"`
	SecondaryGoals []Goal     `json:"secondary_goals,omitempty" yaml:"secondary_goals"`
	PainLevel      Level      `json:"pain_level" yaml:"pain_level"`
	DowntimeLevel  Level      `json:"downtime_level" yaml:"downtime_level"`
	PriceTier      PriceTier  `json:"price_tier,omitempty" yaml:"price_tier"`
	TargetLayers   []string   `json:"target_layers,omitempty" yaml:"target_layers"`
	Indications    []string   `json:"indications,omitempty" yaml:"indications"`
	Devices        []string   `json:"devices,omitempty" yaml:"devices"`
	RiskNotes      []RiskNote `json:"risk_notes,omitempty" yaml:"risk_notes"`
	Mechanism      string     `json:"mechanism,omitempty" yaml:"mechanism"`
	Signature      *DoctorRef `json:"signature,omitempty" yaml:"signature"`
}

// Clone returns a deep copy of the protocol.
func (p Protocol) Clone() Protocol {
	c := p
	c.SecondaryGoals = slices.Clone(p.SecondaryGoals)
	c.TargetLayers = slices.Clone(p.TargetLayers)
	c.Indications = slices.Clone(p.Indications)
	c.Devices = slices.Clone(p.Devices)
	c.RiskNotes = slices.Clone(p.RiskNotes)
	if p.Signature != nil {
		sig := *p.Signature
		c.Signature = &sig
	}
	return c
}

// TargetsDeepLayer reports whether any target layer sits below the dermis.
func (p Protocol) TargetsDeepLayer() bool {
	for _, l := range p.TargetLayers {
		switch strings.ToLower(l) {
		case LayerSMAS, LayerHypodermis:
			return true
		}
	}
	return false
}
