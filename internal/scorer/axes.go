package scorer

import (
	"slices"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/risk"
)

// Penalty coefficients. Pain and budget lose 1.25 points per point of excess
// so the full 80-point spread between a low tolerance and a very high
// protocol reaches zero; downtime reaches zero at the full 7-day spread.
const (
	painPenaltyPerPoint   = 1.25
	budgetPenaltyPerPoint = 1.25
	downtimePenaltyPerDay = 100.0 / model.DowntimeMaxDays
	thinDeepLayerPenalty  = 50
	cautionNotePenalty    = 25
)

// Goal alignment sub-scores.
const (
	goalExact     = 100
	goalCrossed   = 70
	goalSecondary = 40
)

// scoreEfficacy rates goal alignment: identical primaries, a primary that
// appears among the other side's secondaries, or any shared secondary goal.
func scoreEfficacy(p model.CanonicalProfile, proto model.Protocol) float64 {
	switch {
	case proto.PrimaryGoal == p.PrimaryGoal:
		return goalExact
	case slices.Contains(proto.SecondaryGoals, p.PrimaryGoal), p.HasSecondaryGoal(proto.PrimaryGoal):
		return goalCrossed
	}
	for _, g := range proto.SecondaryGoals {
		if p.HasSecondaryGoal(g) {
			return goalSecondary
		}
	}
	return 0
}

// scoreDirectional rates a protocol value against a patient limit: anything at
// or under the limit is a full match, excess loses perUnit points per unit.
func scoreDirectional(limit, value int, perUnit float64) float64 {
	excess := value - limit
	if excess <= 0 {
		return 100
	}
	return max(0, 100-float64(excess)*perUnit)
}

// scoreSkinFit starts from a full match and subtracts for deep-layer work on
// thin skin and for every caution note matching a patient flag. A matching
// danger note zeroes the axis.
func scoreSkinFit(p model.CanonicalProfile, proto model.Protocol, factors []risk.Factor) float64 {
	score := 100.0
	if p.SkinThickness == model.SkinThin && proto.TargetsDeepLayer() {
		score -= thinDeepLayerPenalty
	}
	for _, f := range factors {
		switch f.Tier {
		case risk.Danger:
			return 0
		case risk.Caution:
			score -= cautionNotePenalty
		}
	}
	return max(0, score)
}

// matchedFactors classifies the protocol's risk notes that apply to the
// patient's risk flags.
func matchedFactors(p model.CanonicalProfile, proto model.Protocol) ([]risk.Factor, error) {
	var raw []risk.RawFactor
	for _, n := range proto.RiskNotes {
		if p.HasRiskFlag(n.Flag) {
			raw = append(raw, risk.RawFactor{Factor: n.Flag, Level: n.Level, Description: n.Description})
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return risk.Classify(raw)
}
