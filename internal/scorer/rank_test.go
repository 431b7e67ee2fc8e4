package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/risk"
)

func cand(id string, score int) model.ScoredCandidate {
	return model.ScoredCandidate{
		Protocol: model.Protocol{ID: id, Name: "name-" + id},
		Score:    score,
		RiskTier: risk.Safe,
	}
}

func ids(cs []model.ScoredCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Protocol.ID
	}
	return out
}

func TestRank_TotalOrder(t *testing.T) {
	in := []model.ScoredCandidate{
		cand("C", 80), cand("A", 80), cand("D", 95), cand("B", 70), cand("E", 80),
	}

	got := Rank(in, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"D", "A", "C"}, ids(got))
	for i, c := range got {
		assert.Equal(t, i+1, c.Rank)
	}

	// Input untouched.
	assert.Equal(t, "C", in[0].Protocol.ID)
	assert.Equal(t, 0, in[0].Rank)

	// Reproducible regardless of input order.
	rev := []model.ScoredCandidate{in[4], in[3], in[2], in[1], in[0]}
	assert.Equal(t, got, Rank(rev, 3))
}

func TestRank_HigherScoreNeverBelowLower(t *testing.T) {
	in := []model.ScoredCandidate{
		cand("Z", 99), cand("A", 1), cand("M", 50), cand("B", 50), cand("Q", 75),
	}
	got := Rank(in, len(in))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRank_FewerThanN(t *testing.T) {
	got := Rank([]model.ScoredCandidate{cand("A", 10)}, 3)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Rank)

	assert.Empty(t, Rank(nil, 3))
}

func TestSelect_ExcludesDanger(t *testing.T) {
	danger := cand("X", 99)
	danger.RiskTier = risk.Danger
	danger.RiskFactors = []risk.Factor{
		{Factor: "keloid", Tier: risk.Danger},
		{Factor: "sun", Tier: risk.Safe},
	}
	caution := cand("Y", 60)
	caution.RiskTier = risk.Caution

	ranked, excluded := Select([]model.ScoredCandidate{danger, cand("A", 70), caution, cand("B", 90), cand("C", 40)})

	assert.Equal(t, []string{"B", "A", "Y"}, ids(ranked))
	require.Len(t, excluded, 1)
	assert.Equal(t, "X", excluded[0].ProtocolID)
	assert.Equal(t, 99, excluded[0].Score)
	assert.Equal(t, "contraindicated: keloid", excluded[0].Reason)
	assert.Equal(t, []risk.Factor{{Factor: "keloid", Tier: risk.Danger}}, excluded[0].Factors)
}

func TestScenario_PigmentationRanksGentleFirst(t *testing.T) {
	e := newTestEngine(t)

	pool := []model.Protocol{
		{
			ID: "P-HARSH", Name: "Deep Pigment Peel", PrimaryGoal: model.GoalPigmentation,
			PainLevel: model.LevelHigh, DowntimeLevel: model.LevelHigh, PriceTier: model.PriceStandard,
		},
		{
			ID: "P-GENTLE", Name: "Toning Laser", PrimaryGoal: model.GoalPigmentation,
			PainLevel: model.LevelLow, DowntimeLevel: model.LevelNone, PriceTier: model.PriceStandard,
		},
	}

	scored, err := e.Score(pigmentationProfile(), pool)
	require.NoError(t, err)
	ranked, excluded := Select(scored)
	require.Empty(t, excluded)
	require.Len(t, ranked, 2)

	assert.Equal(t, "P-GENTLE", ranked[0].Protocol.ID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.GreaterOrEqual(t, ranked[0].Score, 90)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}
