package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/store"
)

// MetricsSnapshot holds a point-in-time view of recent report output.
type MetricsSnapshot struct {
	ReportsTotal   int      `json:"reports_total"`
	ReportsMatched int      `json:"reports_matched"`
	ReportsNoMatch int      `json:"reports_no_match"`
	NoMatchRate    float64  `json:"no_match_rate"`
	AvgAlignment   float64  `json:"avg_alignment"`
	InvalidReports int      `json:"invalid_reports"`
	InvalidIDs     []string `json:"invalid_ids,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ReportLister is the slice of store.Store the collector reads.
type ReportLister interface {
	ListReports(ctx context.Context, filter store.ReportFilter) ([]model.Report, error)
}

// Collector gathers report statistics from the store.
type Collector struct {
	reports ReportLister
	limit   int
	now     func() time.Time
}

// NewCollector creates a collector reading from reports.
func NewCollector(reports ReportLister) *Collector {
	return &Collector{reports: reports, limit: 10000, now: time.Now}
}

// maxInvalidIDs caps the report IDs carried in a snapshot.
const maxInvalidIDs = 10

// Collect summarizes the reports created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	reports, err := c.reports.ListReports(ctx, store.ReportFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: c.limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list reports")
	}

	var alignment int
	for i := range reports {
		r := &reports[i]
		snap.ReportsTotal++
		switch r.Status {
		case model.ReportMatched:
			snap.ReportsMatched++
			alignment += r.AlignmentScore
		case model.ReportNoMatch:
			snap.ReportsNoMatch++
		}
		if err := r.Validate(); err != nil {
			snap.InvalidReports++
			if len(snap.InvalidIDs) < maxInvalidIDs {
				snap.InvalidIDs = append(snap.InvalidIDs, r.ID)
			}
		}
	}

	if snap.ReportsTotal > 0 {
		snap.NoMatchRate = float64(snap.ReportsNoMatch) / float64(snap.ReportsTotal)
	}
	if snap.ReportsMatched > 0 {
		snap.AvgAlignment = float64(alignment) / float64(snap.ReportsMatched)
	}
	return snap, nil
}
