package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/monitoring"
	"github.com/connectingdocs/match-engine/internal/store"
	"github.com/connectingdocs/match-engine/internal/whatif"
)

// ErrNoRecommendation is returned when unlocking a report without a match.
var ErrNoRecommendation = eris.New("report: no recommendation to unlock")

// Service builds reports, persists them and serves repeated reads from an
// in-process cache. Stored reports are never recomputed.
type Service struct {
	builder *Builder
	store   store.Store
	cache   *lru.Cache[string, *model.Report]
	metrics *monitoring.Metrics

	now   func() time.Time
	newID func() string
}

// NewService wires a Builder to a Store with a report cache of cacheSize
// entries.
func NewService(builder *Builder, st store.Store, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, *model.Report](cacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "report: create cache")
	}
	return &Service{
		builder: builder,
		store:   st,
		cache:   cache,
		metrics: builder.Metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Build assembles a report for profile without persisting it.
func (s *Service) Build(ctx context.Context, profile model.CanonicalProfile) (*model.Report, error) {
	return s.builder.Build(ctx, profile)
}

// Generate builds a report for profile and persists it.
func (s *Service) Generate(ctx context.Context, profile model.CanonicalProfile) (*model.Report, error) {
	r, err := s.builder.Build(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveReport(ctx, r); err != nil {
		return nil, eris.Wrapf(err, "report: save %s", r.ID)
	}
	s.cache.Add(r.ID, r.Clone())
	return r, nil
}

// Get returns a stored report. The result is a private copy; mutating it
// does not affect later reads.
func (s *Service) Get(ctx context.Context, id string) (*model.Report, error) {
	if r, ok := s.cache.Get(id); ok {
		return r.Clone(), nil
	}
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, r.Clone())
	return r, nil
}

// Unlock records a match between the patient and the report's top
// recommendation and credits the featured signature solution. An empty
// patientID defaults to the report's patient.
func (s *Service) Unlock(ctx context.Context, reportID, patientID string) (*model.Match, error) {
	r, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	top := r.Top()
	if top == nil {
		return nil, eris.Wrapf(ErrNoRecommendation, "report %s", reportID)
	}
	if patientID == "" {
		patientID = r.Profile.PatientID
	}

	m := &model.Match{
		ID:         s.newID(),
		ReportID:   r.ID,
		PatientID:  patientID,
		ProtocolID: top.Protocol.ID,
		Score:      top.Score,
		Status:     model.MatchStatusNew,
		CreatedAt:  s.now().UTC(),
	}
	sig := top.Protocol.Signature
	if sig != nil {
		m.DoctorID = sig.DoctorID
	}
	if err := s.store.CreateMatch(ctx, m); err != nil {
		return nil, eris.Wrapf(err, "report: create match for %s", reportID)
	}

	if sig != nil && sig.SolutionID != "" {
		if err := s.store.IncrementCounter(ctx, sig.SolutionID, model.EventMatch, 1); err != nil {
			zap.L().Warn("report: increment match counter",
				zap.String("solution_id", sig.SolutionID),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("report: unlocked",
		zap.String("report_id", r.ID),
		zap.String("match_id", m.ID),
		zap.String("protocol_id", m.ProtocolID),
	)
	return m, nil
}

// Resimulation is a what-if projection of a stored report.
type Resimulation struct {
	ReportID      string `json:"report_id,omitempty"`
	BaseScore     int    `json:"base_score"`
	Score         int    `json:"score"`
	PainLabel     string `json:"pain_label"`
	DowntimeLabel string `json:"downtime_label"`
}

// Resimulate projects a stored report's alignment under new tolerances,
// using the baseline the report was computed with.
func (s *Service) Resimulate(ctx context.Context, reportID string, pain, downtime int) (*Resimulation, error) {
	r, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Top() == nil {
		return nil, eris.Wrapf(ErrNoRecommendation, "report %s", reportID)
	}
	out := Project(whatif.Input{
		BaseScore:        r.AlignmentScore,
		BaselinePain:     r.Baseline.PainTolerance,
		BaselineDowntime: r.Baseline.DowntimeDays,
		CurrentPain:      pain,
		CurrentDowntime:  downtime,
	})
	out.ReportID = r.ID
	s.metrics.Resimulation()
	return out, nil
}

// Project runs the what-if approximation for a raw input.
func Project(in whatif.Input) *Resimulation {
	return &Resimulation{
		BaseScore:     in.BaseScore,
		Score:         whatif.ParamsV1.Apply(in),
		PainLabel:     whatif.PainLabel(in.CurrentPain),
		DowntimeLabel: whatif.DowntimeLabel(in.CurrentDowntime),
	}
}
