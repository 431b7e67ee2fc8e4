package catalog

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
)

// Column names understood by FromFields. Spreadsheet exports and Airtable
// tables share them.
const (
	ColID             = "id"
	ColName           = "name"
	ColPrimaryGoal    = "primary_goal"
	ColSecondaryGoals = "secondary_goals"
	ColPainLevel      = "pain_level"
	ColDowntimeLevel  = "downtime_level"
	ColPriceTier      = "price_tier"
	ColTargetLayers   = "target_layers"
	ColIndications    = "indications"
	ColDevices        = "devices"
	ColRiskNotes      = "risk_notes"
	ColMechanism      = "mechanism"
	ColDoctorID       = "doctor_id"
	ColDoctorName     = "doctor_name"
	ColClinicName     = "clinic_name"
	ColSolutionID     = "solution_id"
	ColSolution       = "solution"
)

// HeaderKey folds a spreadsheet header ("Primary Goal", "PAIN-LEVEL") onto a
// column name.
func HeaderKey(h string) string {
	return intake.Slug(h)
}

// FromFields builds a protocol from a flat row of column values. Lists are
// comma separated; risk notes are "flag:LEVEL[:description]" entries
// separated by semicolons. Unknown pain, downtime or price labels are left
// blank, which makes the matching axis not applicable.
func FromFields(fields map[string]string) (model.Protocol, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	goal, ok := intake.LookupGoal(get(ColPrimaryGoal))
	if !ok {
		return model.Protocol{}, eris.Errorf("catalog: row %s has unknown primary goal %q", get(ColID), get(ColPrimaryGoal))
	}

	p := model.Protocol{
		ID:           get(ColID),
		Name:         get(ColName),
		PrimaryGoal:  goal,
		TargetLayers: splitList(get(ColTargetLayers), ","),
		Indications:  splitList(get(ColIndications), ","),
		Devices:      splitList(get(ColDevices), ","),
		Mechanism:    get(ColMechanism),
	}

	for _, s := range splitList(get(ColSecondaryGoals), ",") {
		if g, ok := intake.LookupGoal(s); ok {
			p.SecondaryGoals = append(p.SecondaryGoals, g)
		}
	}
	if l, ok := model.ParseLevel(get(ColPainLevel)); ok {
		p.PainLevel = l
	}
	if l, ok := model.ParseLevel(get(ColDowntimeLevel)); ok {
		p.DowntimeLevel = l
	}
	if t, ok := model.ParsePriceTier(get(ColPriceTier)); ok {
		p.PriceTier = t
	}

	notes, err := parseRiskNotes(get(ColRiskNotes))
	if err != nil {
		return model.Protocol{}, eris.Wrapf(err, "catalog: row %s", p.ID)
	}
	p.RiskNotes = notes

	if id := get(ColDoctorID); id != "" {
		p.Signature = &model.DoctorRef{
			DoctorID:   id,
			DoctorName: get(ColDoctorName),
			ClinicName: get(ColClinicName),
			SolutionID: get(ColSolutionID),
			Solution:   get(ColSolution),
		}
	}
	return Clean(p)
}

func parseRiskNotes(s string) ([]model.RiskNote, error) {
	var notes []model.RiskNote
	for _, entry := range splitList(s, ";") {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return nil, eris.Errorf("catalog: risk note %q must be flag:LEVEL", entry)
		}
		n := model.RiskNote{Flag: strings.TrimSpace(parts[0]), Level: strings.TrimSpace(parts[1])}
		if len(parts) == 3 {
			n.Description = strings.TrimSpace(parts[2])
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
