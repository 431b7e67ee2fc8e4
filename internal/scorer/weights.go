// Package scorer computes protocol match scores against a canonical profile
// and ranks the results.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/model"
)

// Weights assigns each clinical axis its share of the overall score.
type Weights struct {
	Version  string  `json:"version"`
	Efficacy float64 `json:"efficacy"`
	Pain     float64 `json:"pain"`
	Downtime float64 `json:"downtime"`
	SkinFit  float64 `json:"skin_fit"`
	Budget   float64 `json:"budget"`
}

// WeightsV1 is the production weight table. Changing a weight means adding
// a new version, not editing this one.
var WeightsV1 = Weights{
	Version:  "v1",
	Efficacy: 0.35,
	Pain:     0.20,
	Downtime: 0.20,
	SkinFit:  0.15,
	Budget:   0.10,
}

var weightVersions = map[string]Weights{
	WeightsV1.Version: WeightsV1,
}

// WeightsFor returns the weight table registered under version.
func WeightsFor(version string) (Weights, error) {
	w, ok := weightVersions[version]
	if !ok {
		return Weights{}, eris.Errorf("scorer: unknown weights version %q", version)
	}
	return w, nil
}

// Sum returns the sum of all axis weights.
func (w Weights) Sum() float64 {
	return w.Efficacy + w.Pain + w.Downtime + w.SkinFit + w.Budget
}

// Axes lists the scoring axes in summation order.
var Axes = []string{
	model.AxisEfficacy,
	model.AxisPain,
	model.AxisDowntime,
	model.AxisSkinFit,
	model.AxisBudget,
}

func (w Weights) byAxis() map[string]float64 {
	return map[string]float64{
		model.AxisEfficacy: w.Efficacy,
		model.AxisPain:     w.Pain,
		model.AxisDowntime: w.Downtime,
		model.AxisSkinFit:  w.SkinFit,
		model.AxisBudget:   w.Budget,
	}
}

// ValidateWeights checks that a weight table is usable: non-negative weights
// summing to 1.
func ValidateWeights(w Weights) error {
	var errs []string

	byAxis := w.byAxis()
	for _, name := range Axes {
		if byAxis[name] < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1, got %.4f", sum))
	}
	if w.Version == "" {
		errs = append(errs, "version is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
