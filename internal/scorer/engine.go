package scorer

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/risk"
)

// RangeViolationError reports a computed score outside [0,100]. It always
// indicates a coefficient or weight bug.
type RangeViolationError struct {
	ProtocolID string
	Axis       string
	Value      float64
}

func (e *RangeViolationError) Error() string {
	return fmt.Sprintf("scorer: %s score %.2f out of range for protocol %s", e.Axis, e.Value, e.ProtocolID)
}

// AxisOverall is the Axis of a RangeViolationError raised on the final score.
const AxisOverall = "overall"

// Engine scores protocols against a profile with a fixed weight table. It
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine validates w and returns an Engine using it.
func NewEngine(w Weights) (*Engine, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// Weights returns the engine's weight table.
func (e *Engine) Weights() Weights { return e.weights }

// Score rates every protocol against the profile. Output is ordered by
// protocol ID regardless of input order. A classification or range error on
// any protocol fails the whole call.
func (e *Engine) Score(p model.CanonicalProfile, protocols []model.Protocol) ([]model.ScoredCandidate, error) {
	ordered := slices.Clone(protocols)
	slices.SortStableFunc(ordered, func(a, b model.Protocol) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})

	out := make([]model.ScoredCandidate, 0, len(ordered))
	for _, proto := range ordered {
		c, err := e.ScoreOne(p, proto)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ScoreOne rates a single protocol.
func (e *Engine) ScoreOne(p model.CanonicalProfile, proto model.Protocol) (model.ScoredCandidate, error) {
	factors, err := matchedFactors(p, proto)
	if err != nil {
		zap.L().Error("scorer: unclassifiable risk note",
			zap.String("protocol_id", proto.ID),
			zap.Error(err),
		)
		return model.ScoredCandidate{}, err
	}

	components := map[string]float64{
		model.AxisEfficacy: scoreEfficacy(p, proto),
		model.AxisSkinFit:  scoreSkinFit(p, proto, factors),
	}
	if v, ok := proto.PainLevel.PainValue(); ok {
		components[model.AxisPain] = scoreDirectional(p.PainTolerance, v, painPenaltyPerPoint)
	}
	if v, ok := proto.DowntimeLevel.DowntimeDays(); ok {
		components[model.AxisDowntime] = scoreDirectional(p.DowntimeDays, v, downtimePenaltyPerDay)
	}
	if v, ok := proto.PriceTier.Value(); ok {
		components[model.AxisBudget] = scoreDirectional(p.Budget, v, budgetPenaltyPerPoint)
	}

	weights := e.weights.byAxis()
	subScores := make(map[string]int, len(components))
	var total, weightSum float64
	for _, axis := range Axes {
		raw, ok := components[axis]
		if !ok {
			continue
		}
		v, err := checkRange(proto.ID, axis, raw)
		if err != nil {
			return model.ScoredCandidate{}, err
		}
		subScores[axis] = v
		total += float64(v) * weights[axis]
		weightSum += weights[axis]
	}

	// Normalize over the axes that applied to this protocol.
	if weightSum > 0 {
		total /= weightSum
	}
	score, err := checkRange(proto.ID, AxisOverall, total)
	if err != nil {
		return model.ScoredCandidate{}, err
	}

	tiers := make([]risk.Tier, len(factors))
	for i, f := range factors {
		tiers[i] = f.Tier
	}

	return model.ScoredCandidate{
		Protocol:    proto,
		Score:       score,
		SubScores:   subScores,
		RiskTier:    risk.Max(tiers...),
		RiskFactors: factors,
	}, nil
}

// checkRange rounds v half away from zero and verifies it lies in [0,100].
// Out-of-range values are logged and returned as a RangeViolationError.
func checkRange(protocolID, axis string, v float64) (int, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		zap.L().Error("scorer: score out of range",
			zap.String("protocol_id", protocolID),
			zap.String("axis", axis),
			zap.Float64("value", v),
		)
		return 0, &RangeViolationError{ProtocolID: protocolID, Axis: axis, Value: v}
	}
	return int(math.Round(v)), nil
}
