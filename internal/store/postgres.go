package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/db"
	"github.com/connectingdocs/match-engine/internal/engagement"
	"github.com/connectingdocs/match-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertReport = `INSERT INTO reports (id, patient_id, status, alignment_score, engine_version, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	sqlGetReport    = `SELECT payload FROM reports WHERE id = $1`
	sqlInsertMatch  = `INSERT INTO matches (id, report_id, patient_id, protocol_id, doctor_id, score, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	sqlUpsertSol    = `INSERT INTO solutions (id, doctor_id, name, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET doctor_id = EXCLUDED.doctor_id, name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`
	sqlListSols     = `SELECT id, name, clicks, saves, adoptions, matches FROM solutions WHERE doctor_id = $1 ORDER BY id`
	sqlGetCounters  = `SELECT clicks, saves, adoptions, matches FROM solutions WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the per-request store operations.
var preparedStatements = map[string]string{
	"insert_report":   sqlInsertReport,
	"get_report":      sqlGetReport,
	"insert_match":    sqlInsertMatch,
	"upsert_solution": sqlUpsertSol,
	"list_solutions":  sqlListSols,
	"get_counters":    sqlGetCounters,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	patient_id      TEXT NOT NULL,
	status          TEXT NOT NULL,
	alignment_score INTEGER NOT NULL,
	engine_version  TEXT NOT NULL,
	payload         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	patient_id  TEXT NOT NULL,
	protocol_id TEXT NOT NULL,
	doctor_id   TEXT NOT NULL DEFAULT '',
	score       INTEGER NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS protocols (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	doctor_id  TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS solutions (
	id         TEXT PRIMARY KEY,
	doctor_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	clicks     INTEGER NOT NULL DEFAULT 0,
	saves      INTEGER NOT NULL DEFAULT 0,
	adoptions  INTEGER NOT NULL DEFAULT 0,
	matches    INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_matches_report_id ON matches(report_id);
CREATE INDEX IF NOT EXISTS idx_protocols_doctor_id ON protocols(doctor_id);
CREATE INDEX IF NOT EXISTS idx_solutions_doctor_id ON solutions(doctor_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, r *model.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx, sqlInsertReport,
		r.ID, r.Profile.PatientID, string(r.Status), r.AlignmentScore, r.EngineVersion, payload, r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert report %s", r.ID)
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, sqlGetReport, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("report", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}
	return decodeReport(string(payload))
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT payload FROM reports WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argN)
		args = append(args, filter.Since)
		argN++
	}
	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argN)
		args = append(args, filter.Limit)
		argN++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argN)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		r, err := decodeReport(string(payload))
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: iterate reports")
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.Match) error {
	_, err := s.pool.Exec(ctx, sqlInsertMatch,
		m.ID, m.ReportID, m.PatientID, m.ProtocolID, m.DoctorID, m.Score, m.Status, m.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert match %s", m.ID)
}

// UpsertProtocols bulk-loads the catalog through a COPY staging table.
func (s *PostgresStore) UpsertProtocols(ctx context.Context, protocols []model.Protocol) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(protocols))
	for _, p := range protocols {
		payload, err := json.Marshal(p)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal protocol %s", p.ID)
		}
		rows = append(rows, []any{p.ID, p.Name, doctorOf(p), payload, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "protocols",
		Columns:      []string{"id", "name", "doctor_id", "payload", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert protocols")
	}
	return int(n), nil
}

func (s *PostgresStore) ListProtocols(ctx context.Context, filter model.ProtocolFilter) ([]model.Protocol, error) {
	query := `SELECT payload FROM protocols WHERE 1=1`
	var args []any
	argN := 1

	if len(filter.IDs) > 0 {
		query += fmt.Sprintf(` AND id = ANY($%d)`, argN)
		args = append(args, filter.IDs)
		argN++
	}
	if filter.DoctorID != "" {
		query += fmt.Sprintf(` AND doctor_id = $%d`, argN)
		args = append(args, filter.DoctorID)
		argN++
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argN)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list protocols")
	}
	defer rows.Close()

	protocols := []model.Protocol{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan protocol")
		}
		var p model.Protocol
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal protocol")
		}
		protocols = append(protocols, p)
	}
	return protocols, eris.Wrap(rows.Err(), "postgres: iterate protocols")
}

func (s *PostgresStore) UpsertSolution(ctx context.Context, sol model.Solution) error {
	_, err := s.pool.Exec(ctx, sqlUpsertSol, sol.ID, sol.DoctorID, sol.Name, time.Now().UTC())
	return eris.Wrapf(err, "postgres: upsert solution %s", sol.ID)
}

func (s *PostgresStore) ListSolutions(ctx context.Context, doctorID string) ([]engagement.SolutionCounters, error) {
	rows, err := s.pool.Query(ctx, sqlListSols, doctorID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list solutions for %s", doctorID)
	}
	defer rows.Close()

	out := []engagement.SolutionCounters{}
	for rows.Next() {
		var sc engagement.SolutionCounters
		if err := rows.Scan(&sc.SolutionID, &sc.Name, &sc.Clicks, &sc.Saves, &sc.Adoptions, &sc.Matches); err != nil {
			return nil, eris.Wrap(err, "postgres: scan solution")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate solutions")
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, solutionID string, event model.EngagementEvent, n int) error {
	col, err := counterColumn(event)
	if err != nil {
		return err
	}
	if n < 0 {
		return eris.Errorf("postgres: counter increment must be non-negative, got %d", n)
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE solutions SET %s = %s + $1, updated_at = $2 WHERE id = $3`, col, col),
		n, time.Now().UTC(), solutionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment %s for %s", col, solutionID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("solution", solutionID)
	}
	return nil
}

func (s *PostgresStore) GetCounters(ctx context.Context, solutionID string) (engagement.Counters, error) {
	var c engagement.Counters
	err := s.pool.QueryRow(ctx, sqlGetCounters, solutionID).Scan(&c.Clicks, &c.Saves, &c.Adoptions, &c.Matches)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, notFound("solution", solutionID)
	}
	return c, eris.Wrapf(err, "postgres: get counters %s", solutionID)
}
