package scorer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/risk"
)

// compareCandidates is the total order used for ranking: higher score first,
// then protocol ID, then name.
func compareCandidates(a, b model.ScoredCandidate) int {
	return cmp.Or(
		cmp.Compare(b.Score, a.Score),
		cmp.Compare(a.Protocol.ID, b.Protocol.ID),
		cmp.Compare(a.Protocol.Name, b.Protocol.Name),
	)
}

// Rank returns the top n candidates with ranks 1..n assigned. The input is
// left untouched. Fewer than n candidates yields as many as exist.
func Rank(candidates []model.ScoredCandidate, n int) []model.ScoredCandidate {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, compareCandidates)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	for i := range sorted {
		sorted[i].Rank = i + 1
	}
	return sorted
}

// Select removes contraindicated candidates and ranks the remainder into the
// top SignatureCount recommendations.
func Select(candidates []model.ScoredCandidate) ([]model.ScoredCandidate, []model.Exclusion) {
	var eligible []model.ScoredCandidate
	var excluded []model.Exclusion
	for _, c := range candidates {
		if c.RiskTier == risk.Danger {
			factors := dangerFactors(c.RiskFactors)
			excluded = append(excluded, model.Exclusion{
				ProtocolID: c.Protocol.ID,
				Name:       c.Protocol.Name,
				Score:      c.Score,
				Reason:     exclusionReason(factors),
				Factors:    factors,
			})
			continue
		}
		eligible = append(eligible, c)
	}
	slices.SortFunc(excluded, func(a, b model.Exclusion) int {
		return cmp.Compare(a.ProtocolID, b.ProtocolID)
	})
	return Rank(eligible, model.SignatureCount), excluded
}

func dangerFactors(factors []risk.Factor) []risk.Factor {
	var out []risk.Factor
	for _, f := range factors {
		if f.Tier == risk.Danger {
			out = append(out, f)
		}
	}
	return out
}

func exclusionReason(danger []risk.Factor) string {
	flags := make([]string, 0, len(danger))
	for _, f := range danger {
		flags = append(flags, f.Factor)
	}
	return fmt.Sprintf("contraindicated: %s", strings.Join(flags, ", "))
}
