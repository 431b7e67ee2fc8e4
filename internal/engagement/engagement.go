// Package engagement converts a doctor's solution engagement counters into
// points and a gamified tier.
package engagement

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Tier is a named point threshold.
type Tier struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

// TierMax is the NextTier sentinel once the top tier is reached.
const TierMax = "Max"

// TiersV1 partitions the non-negative point totals. Thresholds ascend and the
// first starts at zero.
var TiersV1 = []Tier{
	{Name: "Bronze", Threshold: 0},
	{Name: "Silver", Threshold: 500},
	{Name: "Gold", Threshold: 2000},
	{Name: "Platinum", Threshold: 5000},
	{Name: "Diamond", Threshold: 10000},
}

// Points awarded per engagement event.
type Points struct {
	Save     int `json:"save"`
	Adoption int `json:"adoption"`
}

// PointsV1 is the production point table.
var PointsV1 = Points{Save: 10, Adoption: 50}

// Counters are the raw engagement counts for one doctor or solution.
type Counters struct {
	Clicks    int `json:"clicks"`
	Saves     int `json:"saves"`
	Adoptions int `json:"adoptions"`
	Matches   int `json:"matches"`
}

// Add returns the element-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Clicks:    c.Clicks + o.Clicks,
		Saves:     c.Saves + o.Saves,
		Adoptions: c.Adoptions + o.Adoptions,
		Matches:   c.Matches + o.Matches,
	}
}

// ValidationError reports a counter snapshot that cannot be scored.
type ValidationError struct {
	Counters Counters
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engagement: counters must be non-negative, got %+v", e.Counters)
}

// Validate rejects negative counters.
func (c Counters) Validate() error {
	if c.Clicks < 0 || c.Saves < 0 || c.Adoptions < 0 || c.Matches < 0 {
		return &ValidationError{Counters: c}
	}
	return nil
}

// TierResult is the derived standing for a counter snapshot.
type TierResult struct {
	Points          int     `json:"points"`
	Tier            string  `json:"tier"`
	NextTier        string  `json:"next_tier"`
	PointsToNext    int     `json:"points_to_next"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Engine computes tiers from counters with a fixed table and base offset.
type Engine struct {
	tiers      []Tier
	points     Points
	baseOffset int
}

// NewEngine validates the tier table and returns an Engine.
func NewEngine(tiers []Tier, points Points, baseOffset int) (*Engine, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	if points.Save < 0 || points.Adoption < 0 {
		return nil, eris.New("engagement: point values must be non-negative")
	}
	if baseOffset < 0 {
		return nil, eris.Errorf("engagement: base offset must be non-negative, got %d", baseOffset)
	}
	return &Engine{tiers: tiers, points: points, baseOffset: baseOffset}, nil
}

// ValidateTiers checks that thresholds start at 0 and strictly ascend.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return eris.New("engagement: tier table is empty")
	}
	if tiers[0].Threshold != 0 {
		return eris.Errorf("engagement: first tier %s must start at 0", tiers[0].Name)
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Threshold <= tiers[i-1].Threshold {
			return eris.Errorf("engagement: tier %s threshold %d does not ascend",
				tiers[i].Name, tiers[i].Threshold)
		}
	}
	return nil
}

// Points returns base offset plus weighted saves and adoptions.
func (e *Engine) Points(c Counters) int {
	return e.baseOffset + c.Saves*e.points.Save + c.Adoptions*e.points.Adoption
}

// Compute derives the tier standing of the counters.
func (e *Engine) Compute(c Counters) (TierResult, error) {
	if err := c.Validate(); err != nil {
		return TierResult{}, err
	}
	return e.ForPoints(e.Points(c)), nil
}

// ForPoints derives the tier standing of a point total.
func (e *Engine) ForPoints(points int) TierResult {
	idx := 0
	for i, t := range e.tiers {
		if points >= t.Threshold {
			idx = i
		}
	}
	cur := e.tiers[idx]

	if idx == len(e.tiers)-1 {
		return TierResult{
			Points:          points,
			Tier:            cur.Name,
			NextTier:        TierMax,
			PointsToNext:    0,
			ProgressPercent: 100,
		}
	}

	next := e.tiers[idx+1]
	progress := 100 * float64(points-cur.Threshold) / float64(next.Threshold-cur.Threshold)
	return TierResult{
		Points:          points,
		Tier:            cur.Name,
		NextTier:        next.Name,
		PointsToNext:    next.Threshold - points,
		ProgressPercent: math.Max(0, math.Min(100, math.Round(progress*100)/100)),
	}
}

// SolutionCounters are the counters of one signature solution.
type SolutionCounters struct {
	SolutionID string `json:"solution_id"`
	Name       string `json:"name"`
	Counters
}

// Snapshot is a doctor's engagement view, derived fresh from raw counters.
type Snapshot struct {
	DoctorID  string             `json:"doctor_id"`
	Solutions []SolutionCounters `json:"solutions"`
	Totals    Counters           `json:"totals"`
	Standing  TierResult         `json:"standing"`
}

// Aggregate sums per-solution counters.
func Aggregate(solutions []SolutionCounters) Counters {
	var total Counters
	for _, s := range solutions {
		total = total.Add(s.Counters)
	}
	return total
}

// Snapshot aggregates the solutions and computes the doctor's standing.
func (e *Engine) Snapshot(doctorID string, solutions []SolutionCounters) (*Snapshot, error) {
	for _, s := range solutions {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	totals := Aggregate(solutions)
	standing, err := e.Compute(totals)
	if err != nil {
		return nil, err
	}
	if solutions == nil {
		solutions = []SolutionCounters{}
	}
	return &Snapshot{
		DoctorID:  doctorID,
		Solutions: solutions,
		Totals:    totals,
		Standing:  standing,
	}, nil
}
