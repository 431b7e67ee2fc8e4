package model

import (
	"maps"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/risk"
)

// Axis keys shared by the scoring engine and the radar mapper.
const (
	AxisPain     = "pain"
	AxisDowntime = "downtime"
	AxisEfficacy = "efficacy"
	AxisSkinFit  = "skin_fit"
	AxisBudget   = "budget"
)

// SignatureCount is the number of ranked recommendations in a report.
const SignatureCount = 3

// ScoredCandidate pairs a protocol with its match result for one run.
type ScoredCandidate struct {
	Protocol    Protocol       `json:"protocol"`
	Score       int            `json:"score"`
	SubScores   map[string]int `json:"sub_scores"`
	Rank        int            `json:"rank"` // 0 while unranked
	RiskTier    risk.Tier      `json:"risk_tier"`
	RiskFactors []risk.Factor  `json:"risk_factors,omitempty"`
}

// ReportStatus distinguishes a report with recommendations from an empty one.
type ReportStatus string

const (
	ReportMatched ReportStatus = "matched"
	ReportNoMatch ReportStatus = "no_match"
)

// AxisValue is a single radar point.
type AxisValue struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Exclusion records a candidate removed before ranking.
type Exclusion struct {
	ProtocolID string `json:"protocol_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Reason     string `json:"reason"`
	// Factors are the danger-tier factors that caused the exclusion.
	Factors []risk.Factor `json:"factors,omitempty"`
}

// Baseline holds the tolerance values the report was computed with, for
// what-if resimulation.
type Baseline struct {
	PainTolerance int `json:"pain_tolerance"`
	DowntimeDays  int `json:"downtime_days"`
}

// Report is the persisted outcome of one matching run.
type Report struct {
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	Status         ReportStatus      `json:"status"`
	EngineVersion  string            `json:"engine_version"`
	Profile        CanonicalProfile  `json:"profile"`
	Candidates     []ScoredCandidate `json:"candidates"`
	Excluded       []Exclusion       `json:"excluded,omitempty"`
	RiskGroups     risk.Groups       `json:"risk_groups"`
	Radar          []AxisValue       `json:"radar"`
	AlignmentScore int               `json:"alignment_score"`
	Baseline       Baseline          `json:"baseline"`
	Explanation    string            `json:"explanation,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c ScoredCandidate) Clone() ScoredCandidate {
	out := c
	out.Protocol = c.Protocol.Clone()
	out.SubScores = maps.Clone(c.SubScores)
	out.RiskFactors = slices.Clone(c.RiskFactors)
	return out
}

// Clone returns a deep copy of the report. Cached reports are handed out as
// clones so callers cannot mutate shared state.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Profile = r.Profile.Clone()
	if r.Candidates != nil {
		c.Candidates = make([]ScoredCandidate, len(r.Candidates))
		for i, cand := range r.Candidates {
			c.Candidates[i] = cand.Clone()
		}
	}
	if r.Excluded != nil {
		c.Excluded = make([]Exclusion, len(r.Excluded))
		for i, e := range r.Excluded {
			e.Factors = slices.Clone(e.Factors)
			c.Excluded[i] = e
		}
	}
	c.RiskGroups = risk.Groups{
		Danger:  slices.Clone(r.RiskGroups.Danger),
		Caution: slices.Clone(r.RiskGroups.Caution),
		Safe:    slices.Clone(r.RiskGroups.Safe),
	}
	c.Radar = slices.Clone(r.Radar)
	return &c
}

// Top returns the rank-1 candidate, or nil for a no-match report.
func (r *Report) Top() *ScoredCandidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Validate checks the structural invariants of a report: at most
// SignatureCount candidates in strict rank order, every score in [0,100], and
// an alignment score equal to the top candidate's score (0 without one).
func (r *Report) Validate() error {
	if len(r.Candidates) > SignatureCount {
		return eris.Errorf("report: %d candidates exceeds %d", len(r.Candidates), SignatureCount)
	}
	for i, c := range r.Candidates {
		if c.Rank != i+1 {
			return eris.Errorf("report: candidate %s has rank %d at position %d", c.Protocol.ID, c.Rank, i+1)
		}
		if c.Score < 0 || c.Score > 100 {
			return eris.Errorf("report: candidate %s score %d out of range", c.Protocol.ID, c.Score)
		}
		if i > 0 && c.Score > r.Candidates[i-1].Score {
			return eris.Errorf("report: candidate %s outranks a higher score", c.Protocol.ID)
		}
	}

	switch r.Status {
	case ReportMatched:
		if len(r.Candidates) == 0 {
			return eris.New("report: matched report has no candidates")
		}
		if r.AlignmentScore != r.Candidates[0].Score {
			return eris.Errorf("report: alignment %d disagrees with top score %d",
				r.AlignmentScore, r.Candidates[0].Score)
		}
	case ReportNoMatch:
		if len(r.Candidates) != 0 {
			return eris.New("report: no_match report carries candidates")
		}
		if r.AlignmentScore != 0 {
			return eris.Errorf("report: no_match alignment must be 0, got %d", r.AlignmentScore)
		}
	default:
		return eris.Errorf("report: unknown status %q", r.Status)
	}
	return nil
}

// Match is the record created when a patient unlocks a report.
type Match struct {
	ID         string    `json:"id"`
	ReportID   string    `json:"report_id"`
	PatientID  string    `json:"patient_id"`
	ProtocolID string    `json:"protocol_id"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	Score      int       `json:"score"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// MatchStatusNew is the status of a freshly unlocked match.
const MatchStatusNew = "new"
