package model

import (
	"slices"
)

// Goal is a canonical treatment goal.
type Goal string

const (
	GoalLifting      Goal = "lifting"
	GoalVolume       Goal = "volume"
	GoalTexture      Goal = "texture"
	GoalPigmentation Goal = "pigmentation"
	GoalAcne         Goal = "acne"
	GoalContour      Goal = "contour"
	GoalAntiAging    Goal = "antiaging"
	GoalGlow         Goal = "glow" // "Skin Improvement"; also the neutral default
)

// Goals lists every canonical goal in display order.
var Goals = []Goal{
	GoalLifting, GoalVolume, GoalTexture, GoalPigmentation,
	GoalAcne, GoalContour, GoalAntiAging, GoalGlow,
}

var goalLabels = map[Goal]string{
	GoalLifting:      "Lifting & Firming",
	GoalVolume:       "Volume Restoration",
	GoalTexture:      "Texture & Pores",
	GoalPigmentation: "Pigmentation & Tone",
	GoalAcne:         "Acne & Scars",
	GoalContour:      "Facial Contouring",
	GoalAntiAging:    "Anti-Aging",
	GoalGlow:         "Skin Improvement",
}

// Label returns the English display label of the goal.
func (g Goal) Label() string {
	if l, ok := goalLabels[g]; ok {
		return l
	}
	return string(g)
}

// Valid reports whether g is one of the canonical goals.
func (g Goal) Valid() bool {
	_, ok := goalLabels[g]
	return ok
}

// AgeBand is a coarse age bucket.
type AgeBand string

const (
	AgeUnder20 AgeBand = "under_20"
	Age20s     AgeBand = "20s"
	Age30s     AgeBand = "30s"
	Age40s     AgeBand = "40s"
	Age50s     AgeBand = "50s"
	Age60Plus  AgeBand = "60_plus"
	AgeUnknown AgeBand = "unknown"
)

// SkinThickness is the self-reported skin type used by the skin-fit axis.
type SkinThickness string

const (
	SkinThin   SkinThickness = "thin"
	SkinNormal SkinThickness = "normal"
	SkinThick  SkinThickness = "thick"
)

// Language selects presentation strings. It never influences scoring.
type Language string

const (
	LangEN Language = "EN"
	LangKO Language = "KO"
	LangJP Language = "JP"
	LangCN Language = "CN"
)

// Languages lists the supported presentation languages.
var Languages = []Language{LangEN, LangKO, LangJP, LangCN}

// Declared ranges and neutral defaults of the ordinal profile fields.
const (
	PainMin             = 0
	PainMax             = 100
	DowntimeMinDays     = 0
	DowntimeMaxDays     = 7 // 7 means "a week or more"
	BudgetMin           = 0
	BudgetMax           = 100
	NeutralPain         = 50
	NeutralDowntimeDays = 2
	NeutralBudget       = 50
)

// CanonicalProfile is the locale-independent numeric form of a patient's
// intake answers. Profiles are built by intake.Normalize and treated as
// read-only afterwards; use Clone before handing one to code that may retain it.
type CanonicalProfile struct {
	PatientID      string        `json:"patient_id"`
	PrimaryGoal    Goal          `json:"primary_goal"`
	SecondaryGoals []Goal        `json:"secondary_goals"`
	AgeBand        AgeBand       `json:"age_band"`
	PainTolerance  int           `json:"pain_tolerance"`
	DowntimeDays   int           `json:"downtime_days"`
	Budget         int           `json:"budget"`
	SkinThickness  SkinThickness `json:"skin_thickness"`
	RiskFlags      []string      `json:"risk_flags"`
	Locations      []string      `json:"locations"`
	Language       Language      `json:"language"`
	Defaulted      []string      `json:"defaulted,omitempty"`
}

// HasRiskFlag reports whether the profile carries the given risk flag slug.
func (p CanonicalProfile) HasRiskFlag(flag string) bool {
	_, found := slices.BinarySearch(p.RiskFlags, flag)
	return found
}

// HasSecondaryGoal reports whether g is among the secondary goals.
func (p CanonicalProfile) HasSecondaryGoal(g Goal) bool {
	return slices.Contains(p.SecondaryGoals, g)
}

// Clone returns a deep copy of the profile.
func (p CanonicalProfile) Clone() CanonicalProfile {
	c := p
	c.SecondaryGoals = slices.Clone(p.SecondaryGoals)
	c.RiskFlags = slices.Clone(p.RiskFlags)
	c.Locations = slices.Clone(p.Locations)
	c.Defaulted = slices.Clone(p.Defaulted)
	return c
}
