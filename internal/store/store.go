package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/engagement"
	"github.com/connectingdocs/match-engine/internal/model"
)

// ErrNotFound is the root of every lookup miss returned by a Store.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	Status model.ReportStatus `json:"status,omitempty"`
	Since  time.Time          `json:"since,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the match engine.
type Store interface {
	// Reports
	SaveReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)

	// Matches
	CreateMatch(ctx context.Context, m *model.Match) error

	// Protocol catalog
	UpsertProtocols(ctx context.Context, protocols []model.Protocol) (int, error)
	ListProtocols(ctx context.Context, filter model.ProtocolFilter) ([]model.Protocol, error)

	// Signature solutions and engagement counters
	UpsertSolution(ctx context.Context, s model.Solution) error
	ListSolutions(ctx context.Context, doctorID string) ([]engagement.SolutionCounters, error)
	IncrementCounter(ctx context.Context, solutionID string, event model.EngagementEvent, n int) error
	GetCounters(ctx context.Context, solutionID string) (engagement.Counters, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// counterColumn maps an event onto its counter column. Column names never
// come from user input.
func counterColumn(event model.EngagementEvent) (string, error) {
	switch event {
	case model.EventClick:
		return "clicks", nil
	case model.EventSave:
		return "saves", nil
	case model.EventAdoption:
		return "adoptions", nil
	case model.EventMatch:
		return "matches", nil
	}
	return "", eris.Errorf("store: unknown engagement event %q", event)
}
