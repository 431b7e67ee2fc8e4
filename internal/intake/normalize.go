// Package intake turns raw, possibly localized questionnaire answers into a
// canonical patient profile.
package intake

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/connectingdocs/match-engine/internal/model"
)

// Field names recorded in CanonicalProfile.Defaulted.
const (
	FieldPatientID     = "patient_id"
	FieldPrimaryGoal   = "primary_goal"
	FieldAgeBand       = "age_band"
	FieldPainTolerance = "pain_tolerance"
	FieldDowntime      = "downtime"
	FieldBudget        = "budget"
	FieldSkinThickness = "skin_thickness"
	FieldLanguage      = "language"
)

// RawIntake holds questionnaire answers as submitted. Every field is free
// text; numbers may arrive as strings ("35", "2 days").
type RawIntake struct {
	PatientID      string   `json:"patient_id"`
	Language       string   `json:"language"`
	PrimaryGoal    string   `json:"primary_goal"`
	SecondaryGoals []string `json:"secondary_goals"`
	Age            string   `json:"age"`
	PainTolerance  string   `json:"pain_tolerance"`
	Downtime       string   `json:"downtime"`
	Budget         string   `json:"budget"`
	SkinThickness  string   `json:"skin_thickness"`
	RiskFlags      []string `json:"risk_flags"`
	Locations      []string `json:"locations"`
}

// ValidationError names a required intake field that has no safe default.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake: missing required field %s", e.Field)
}

var (
	folder    = cases.Fold()
	spaceRun  = regexp.MustCompile(`\s+`)
	firstInt  = regexp.MustCompile(`\d+`)
	slugStrip = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// fold produces the locale-invariant matching form of a label: NFKC
// normalized, case folded, whitespace collapsed.
func fold(s string) string {
	s = folder.String(norm.NFKC.String(s))
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Normalize converts raw answers into a CanonicalProfile. Unrecognized or
// missing answers fall back to a neutral default and are listed in
// Defaulted. Only a missing patient ID is an error.
func Normalize(raw RawIntake) (model.CanonicalProfile, error) {
	id := strings.TrimSpace(raw.PatientID)
	if id == "" {
		return model.CanonicalProfile{}, &ValidationError{Field: FieldPatientID}
	}

	n := normalizer{}
	p := model.CanonicalProfile{
		PatientID:     id,
		PrimaryGoal:   n.goal(raw.PrimaryGoal),
		AgeBand:       n.ageBand(raw.Age),
		PainTolerance: n.scale(FieldPainTolerance, raw.PainTolerance, painTable, model.PainMin, model.PainMax, model.NeutralPain),
		DowntimeDays:  n.scale(FieldDowntime, raw.Downtime, downtimeTable, model.DowntimeMinDays, model.DowntimeMaxDays, model.NeutralDowntimeDays),
		Budget:        n.scale(FieldBudget, raw.Budget, budgetTable, model.BudgetMin, model.BudgetMax, model.NeutralBudget),
		SkinThickness: n.skin(raw.SkinThickness),
		Language:      n.language(raw.Language),
		RiskFlags:     slugSet(raw.RiskFlags),
		Locations:     slugSet(raw.Locations),
	}
	p.SecondaryGoals = secondaryGoals(raw.SecondaryGoals, p.PrimaryGoal)
	p.Defaulted = n.defaulted

	if len(p.Defaulted) > 0 {
		zap.L().Debug("intake: fields defaulted",
			zap.String("patient_id", id),
			zap.Strings("fields", p.Defaulted),
		)
	}
	return p, nil
}

type normalizer struct {
	defaulted []string
}

func (n *normalizer) fallback(field string) {
	n.defaulted = append(n.defaulted, field)
}

func (n *normalizer) scale(field, raw string, table []entry[int], lo, hi, neutral int) int {
	label := fold(raw)
	if label == "" {
		n.fallback(field)
		return neutral
	}
	if v, ok := lookup(label, table); ok {
		return v
	}
	if m := firstInt.FindString(label); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			return clamp(v, lo, hi)
		}
	}
	n.fallback(field)
	return neutral
}

func (n *normalizer) goal(raw string) model.Goal {
	if g, ok := lookup(fold(raw), goalTable); ok {
		return g
	}
	n.fallback(FieldPrimaryGoal)
	return model.GoalGlow
}

func (n *normalizer) skin(raw string) model.SkinThickness {
	if s, ok := lookup(fold(raw), skinTable); ok {
		return s
	}
	n.fallback(FieldSkinThickness)
	return model.SkinNormal
}

func (n *normalizer) language(raw string) model.Language {
	label := fold(raw)
	for _, e := range languageTable {
		if slices.Contains(e.keys, label) {
			return e.value
		}
	}
	n.fallback(FieldLanguage)
	return model.LangEN
}

func (n *normalizer) ageBand(raw string) model.AgeBand {
	m := firstInt.FindString(fold(raw))
	age, err := strconv.Atoi(m)
	if m == "" || err != nil {
		n.fallback(FieldAgeBand)
		return model.AgeUnknown
	}
	switch {
	case age < 20:
		return model.AgeUnder20
	case age < 30:
		return model.Age20s
	case age < 40:
		return model.Age30s
	case age < 50:
		return model.Age40s
	case age < 60:
		return model.Age50s
	default:
		return model.Age60Plus
	}
}

func lookup[T any](label string, table []entry[T]) (T, bool) {
	var zero T
	if label == "" {
		return zero, false
	}
	for _, e := range table {
		for _, k := range e.keys {
			if strings.Contains(label, k) {
				return e.value, true
			}
		}
	}
	return zero, false
}

func secondaryGoals(raw []string, primary model.Goal) []model.Goal {
	out := []model.Goal{}
	for _, r := range raw {
		g, ok := lookup(fold(r), goalTable)
		if !ok || g == primary || slices.Contains(out, g) {
			continue
		}
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Slug folds a tag to its lower_snake matching form ("Keloid Prone" -> "keloid_prone").
func Slug(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(fold(s), "_"), "_")
}

// LookupGoal maps a goal label in any supported language onto a Goal.
func LookupGoal(label string) (model.Goal, bool) {
	return lookup(fold(label), goalTable)
}

// slugSet folds tags to lower_snake slugs, dropping blanks and duplicates.
func slugSet(raw []string) []string {
	out := []string{}
	for _, r := range raw {
		if s := Slug(r); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
