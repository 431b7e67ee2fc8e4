package intake

import (
	"fmt"
	"strings"
)

var localeSuffixes = []string{"", "_MASTER", "_EN", "_KO", "_JP", "_CN"}

// FromRecord builds a RawIntake from a questionnaire record as exported by the
// intake form backend. Localized answer columns (q6_pain_tolerance_EN,
// q6_pain_tolerance_KO, ...) are coalesced in EN, KO, JP, CN order.
func FromRecord(fields map[string]any) RawIntake {
	return RawIntake{
		PatientID:      coalesce(fields, "patient_id", "respondent_id", "id"),
		Language:       coalesce(fields, "language"),
		PrimaryGoal:    coalesce(fields, "primary_goal", "q1_primary_goal"),
		SecondaryGoals: list(fields, "secondary_goals", "q1_goal_secondary"),
		Age:            coalesce(fields, "age", "d_age"),
		PainTolerance:  coalesce(fields, "pain_tolerance", "q6_pain_tolerance"),
		Downtime:       coalesce(fields, "downtime", "q6_down_time"),
		Budget:         coalesce(fields, "budget", "q7_budget"),
		SkinThickness:  coalesce(fields, "skin_thickness", "q4_skin_thickness"),
		RiskFlags:      list(fields, "risk_flags", "q2_risk_flags"),
		Locations:      list(fields, "locations", "q_treatment_locations"),
	}
}

func coalesce(fields map[string]any, prefixes ...string) string {
	for _, p := range prefixes {
		for _, sfx := range localeSuffixes {
			if s := asString(fields[p+sfx]); s != "" {
				return s
			}
		}
	}
	return ""
}

func list(fields map[string]any, prefixes ...string) []string {
	for _, p := range prefixes {
		for _, sfx := range localeSuffixes {
			if vals := asList(fields[p+sfx]); len(vals) > 0 {
				return vals
			}
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
		return ""
	case []string:
		if len(t) > 0 {
			return strings.TrimSpace(t[0])
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// asList accepts arrays or a comma separated string.
func asList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, e := range t {
			out = append(out, asString(e))
		}
	case string:
		out = strings.Split(t, ",")
	}

	kept := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return kept
}
