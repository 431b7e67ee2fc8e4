package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/connectingdocs/match-engine/internal/engagement"
	"github.com/connectingdocs/match-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as unix milliseconds so range filters compare numerically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	patient_id      TEXT NOT NULL,
	status          TEXT NOT NULL,
	alignment_score INTEGER NOT NULL,
	engine_version  TEXT NOT NULL,
	payload         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	patient_id  TEXT NOT NULL,
	protocol_id TEXT NOT NULL,
	doctor_id   TEXT NOT NULL DEFAULT '',
	score       INTEGER NOT NULL,
	status      TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS protocols (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	doctor_id  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS solutions (
	id         TEXT PRIMARY KEY,
	doctor_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	clicks     INTEGER NOT NULL DEFAULT 0,
	saves      INTEGER NOT NULL DEFAULT 0,
	adoptions  INTEGER NOT NULL DEFAULT 0,
	matches    INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_matches_report_id ON matches(report_id);
CREATE INDEX IF NOT EXISTS idx_protocols_doctor_id ON protocols(doctor_id);
CREATE INDEX IF NOT EXISTS idx_solutions_doctor_id ON solutions(doctor_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *model.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, patient_id, status, alignment_score, engine_version, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Profile.PatientID, string(r.Status), r.AlignmentScore, r.EngineVersion, string(payload), r.CreatedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: insert report %s", r.ID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, notFound("report", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}
	return decodeReport(payload)
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT payload FROM reports WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixMilli())
	}
	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		r, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

func (s *SQLiteStore) CreateMatch(ctx context.Context, m *model.Match) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, report_id, patient_id, protocol_id, doctor_id, score, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ReportID, m.PatientID, m.ProtocolID, m.DoctorID, m.Score, m.Status, m.CreatedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: insert match %s", m.ID)
}

func (s *SQLiteStore) UpsertProtocols(ctx context.Context, protocols []model.Protocol) (int, error) {
	if len(protocols) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert protocols")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO protocols (id, name, doctor_id, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, doctor_id = excluded.doctor_id,
		 payload = excluded.payload, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert protocol")
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	for _, p := range protocols {
		payload, err := json.Marshal(p)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal protocol %s", p.ID)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, doctorOf(p), string(payload), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert protocol %s", p.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert protocols")
	}
	return len(protocols), nil
}

func (s *SQLiteStore) ListProtocols(ctx context.Context, filter model.ProtocolFilter) ([]model.Protocol, error) {
	query := `SELECT payload FROM protocols WHERE 1=1`
	var args []any

	if len(filter.IDs) > 0 {
		query += ` AND id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(filter.IDs)), ",") + `)`
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if filter.DoctorID != "" {
		query += ` AND doctor_id = ?`
		args = append(args, filter.DoctorID)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list protocols")
	}
	defer rows.Close()

	protocols := []model.Protocol{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan protocol")
		}
		var p model.Protocol
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal protocol")
		}
		protocols = append(protocols, p)
	}
	return protocols, eris.Wrap(rows.Err(), "sqlite: iterate protocols")
}

func (s *SQLiteStore) UpsertSolution(ctx context.Context, sol model.Solution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO solutions (id, doctor_id, name, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doctor_id = excluded.doctor_id, name = excluded.name,
		 updated_at = excluded.updated_at`,
		sol.ID, sol.DoctorID, sol.Name, time.Now().UTC().UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: upsert solution %s", sol.ID)
}

func (s *SQLiteStore) ListSolutions(ctx context.Context, doctorID string) ([]engagement.SolutionCounters, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, clicks, saves, adoptions, matches FROM solutions WHERE doctor_id = ? ORDER BY id`,
		doctorID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list solutions for %s", doctorID)
	}
	defer rows.Close()

	out := []engagement.SolutionCounters{}
	for rows.Next() {
		var sc engagement.SolutionCounters
		if err := rows.Scan(&sc.SolutionID, &sc.Name, &sc.Clicks, &sc.Saves, &sc.Adoptions, &sc.Matches); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan solution")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate solutions")
}

func (s *SQLiteStore) IncrementCounter(ctx context.Context, solutionID string, event model.EngagementEvent, n int) error {
	col, err := counterColumn(event)
	if err != nil {
		return err
	}
	if n < 0 {
		return eris.Errorf("sqlite: counter increment must be non-negative, got %d", n)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE solutions SET %s = %s + ?, updated_at = ? WHERE id = ?`, col, col),
		n, time.Now().UTC().UnixMilli(), solutionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment %s for %s", col, solutionID)
	}
	return checkRowsAffected(res, "solution", solutionID)
}

func (s *SQLiteStore) GetCounters(ctx context.Context, solutionID string) (engagement.Counters, error) {
	var c engagement.Counters
	err := s.db.QueryRowContext(ctx,
		`SELECT clicks, saves, adoptions, matches FROM solutions WHERE id = ?`, solutionID,
	).Scan(&c.Clicks, &c.Saves, &c.Adoptions, &c.Matches)
	if err == sql.ErrNoRows {
		return c, notFound("solution", solutionID)
	}
	return c, eris.Wrapf(err, "sqlite: get counters %s", solutionID)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func decodeReport(payload string) (*model.Report, error) {
	var r model.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal report")
	}
	return &r, nil
}

func doctorOf(p model.Protocol) string {
	if p.Signature == nil {
		return ""
	}
	return p.Signature.DoctorID
}
