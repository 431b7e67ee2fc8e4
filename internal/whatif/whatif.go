// Package whatif approximates how a match score moves when a patient adjusts
// pain and downtime tolerance after the report was generated. It never
// re-runs the scoring engine; use scorer.Engine for exact scores.
package whatif

import (
	"math"

	"github.com/connectingdocs/match-engine/internal/model"
)

// Params holds the linear coefficients and output band of the approximator.
type Params struct {
	Version        string  `json:"version"`
	PainPerPoint   float64 `json:"pain_per_point"`
	DowntimePerDay float64 `json:"downtime_per_day"`
	Floor          int     `json:"floor"`
	Ceiling        int     `json:"ceiling"`
}

// ParamsV1 is the production parameter set. Raising pain tolerance by the
// full 100-point range moves a score by at most 8 points and the full 7-day
// downtime range by at most 11 (10.5 rounded away from zero).
var ParamsV1 = Params{
	Version:        "v1",
	PainPerPoint:   0.08,
	DowntimePerDay: 1.5,
	Floor:          60,
	Ceiling:        100,
}

// Input carries one resimulation request.
type Input struct {
	BaseScore        int `json:"base_score"`
	BaselinePain     int `json:"baseline_pain"`
	BaselineDowntime int `json:"baseline_downtime"`
	CurrentPain      int `json:"current_pain"`
	CurrentDowntime  int `json:"current_downtime"`
}

// Resimulate projects baseScore under the current tolerance values using
// ParamsV1.
func Resimulate(baseScore, baselinePain, baselineDowntime, currentPain, currentDowntime int) int {
	return ParamsV1.Apply(Input{
		BaseScore:        baseScore,
		BaselinePain:     baselinePain,
		BaselineDowntime: baselineDowntime,
		CurrentPain:      currentPain,
		CurrentDowntime:  currentDowntime,
	})
}

// Apply computes the projected score. Tolerances are clamped to their
// declared ranges; the deltas are added to the raw base score and only the
// sum is clamped into [Floor, Ceiling].
func (p Params) Apply(in Input) int {
	basePain := clamp(in.BaselinePain, model.PainMin, model.PainMax)
	curPain := clamp(in.CurrentPain, model.PainMin, model.PainMax)
	baseDays := clamp(in.BaselineDowntime, model.DowntimeMinDays, model.DowntimeMaxDays)
	curDays := clamp(in.CurrentDowntime, model.DowntimeMinDays, model.DowntimeMaxDays)

	painDelta := int(math.Round(float64(curPain-basePain) * p.PainPerPoint))
	downtimeDelta := int(math.Round(float64(curDays-baseDays) * p.DowntimePerDay))

	return clamp(in.BaseScore+painDelta+downtimeDelta, p.Floor, p.Ceiling)
}

// MaxDelta returns the largest absolute movement the parameters allow from
// each input.
func (p Params) MaxDelta() (pain, downtime int) {
	pain = int(math.Round(float64(model.PainMax-model.PainMin) * p.PainPerPoint))
	downtime = int(math.Round(float64(model.DowntimeMaxDays-model.DowntimeMinDays) * p.DowntimePerDay))
	return pain, downtime
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Slider labels shown next to the what-if controls.
const (
	PainLabelLow      = "Low"
	PainLabelModerate = "Moderate"
	PainLabelHigh     = "High"

	DowntimeLabelMinimal = "Minimal"
	DowntimeLabelShort   = "Short"
	DowntimeLabelLong    = "Long"
)

// PainLabel describes a pain tolerance slider position.
func PainLabel(v int) string {
	switch {
	case v <= 30:
		return PainLabelLow
	case v <= 70:
		return PainLabelModerate
	}
	return PainLabelHigh
}

// DowntimeLabel describes a downtime slider position in days.
func DowntimeLabel(days int) string {
	switch {
	case days <= 1:
		return DowntimeLabelMinimal
	case days <= 3:
		return DowntimeLabelShort
	}
	return DowntimeLabelLong
}
