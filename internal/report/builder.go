// Package report assembles, persists and serves match reports.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/catalog"
	"github.com/connectingdocs/match-engine/internal/explain"
	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/monitoring"
	"github.com/connectingdocs/match-engine/internal/radar"
	"github.com/connectingdocs/match-engine/internal/risk"
	"github.com/connectingdocs/match-engine/internal/scorer"
)

// Builder turns a canonical profile into a complete report.
type Builder struct {
	Engine    *scorer.Engine
	Provider  catalog.Provider
	Explainer explain.Explainer
	Metrics   *monitoring.Metrics

	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder. A nil explainer uses the localized template.
func NewBuilder(engine *scorer.Engine, provider catalog.Provider, explainer explain.Explainer, metrics *monitoring.Metrics) *Builder {
	if explainer == nil {
		explainer = explain.TemplateExplainer{}
	}
	return &Builder{
		Engine:    engine,
		Provider:  provider,
		Explainer: explainer,
		Metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Build scores the full candidate pool against profile and assembles the
// report. Classification and range errors are returned unwrapped so callers
// can match them with errors.As.
func (b *Builder) Build(ctx context.Context, profile model.CanonicalProfile) (*model.Report, error) {
	protocols, err := b.Provider.ListProtocols(ctx, model.ProtocolFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "report: list protocols")
	}

	scored, err := b.Engine.Score(profile, protocols)
	if err != nil {
		b.recordScoreError(err)
		return nil, err
	}
	ranked, excluded := scorer.Select(scored)

	r := &model.Report{
		ID:            b.newID(),
		CreatedAt:     b.now().UTC(),
		EngineVersion: b.Engine.Weights().Version,
		Profile:       profile.Clone(),
		Candidates:    ranked,
		Excluded:      excluded,
		Baseline: model.Baseline{
			PainTolerance: profile.PainTolerance,
			DowntimeDays:  profile.DowntimeDays,
		},
	}
	if r.Candidates == nil {
		r.Candidates = []model.ScoredCandidate{}
	}

	r.RiskGroups = groupFactors(ranked, excluded)

	if top := r.Top(); top != nil {
		r.Status = model.ReportMatched
		r.AlignmentScore = top.Score
		r.Radar = radar.FromSubScores(top.SubScores, profile.Language)
	} else {
		r.Status = model.ReportNoMatch
		r.Radar = radar.FromProfile(profile, profile.Language)
	}

	r.Explanation = b.explain(ctx, r)

	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "report: assembled report is invalid")
	}

	b.Metrics.ObserveReport(r)
	zap.L().Info("report: built",
		zap.String("report_id", r.ID),
		zap.String("status", string(r.Status)),
		zap.Int("pool_size", len(protocols)),
		zap.Int("excluded", len(excluded)),
		zap.Int("alignment", r.AlignmentScore),
	)
	return r, nil
}

func (b *Builder) explain(ctx context.Context, r *model.Report) string {
	text, err := b.Explainer.Explain(ctx, r)
	if err != nil || text == "" {
		zap.L().Warn("report: explainer failed, using template",
			zap.String("report_id", r.ID),
			zap.Error(err),
		)
		return explain.Template(r)
	}
	return text
}

func (b *Builder) recordScoreError(err error) {
	var rv *scorer.RangeViolationError
	var ce *risk.ClassificationError
	switch {
	case errors.As(err, &rv):
		b.Metrics.RangeViolation(rv.Axis)
	case errors.As(err, &ce):
		b.Metrics.ClassificationError()
	}
}

// groupFactors buckets the factors of the recommended candidates together
// with the contraindications that excluded the rest. A factor shared by
// several protocols is listed once per tier.
func groupFactors(ranked []model.ScoredCandidate, excluded []model.Exclusion) risk.Groups {
	var factors []risk.Factor
	for _, c := range ranked {
		factors = append(factors, c.RiskFactors...)
	}
	for _, e := range excluded {
		factors = append(factors, e.Factors...)
	}
	seen := make(map[risk.Factor]bool, len(factors))
	uniq := factors[:0]
	for _, f := range factors {
		if seen[f] {
			continue
		}
		seen[f] = true
		uniq = append(uniq, f)
	}
	return risk.Group(uniq)
}
