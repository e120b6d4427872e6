// Package store persists pipeline runs to SQLite for the audit trail.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/bioeq/internal/pkfusion"
	"github.com/joelkehle/bioeq/internal/synopsis"
)

// Run is one recorded pipeline execution. The heavyweight artifacts
// (fusion provenance, derived numbers, LLM call records, source links)
// travel as JSON blobs.
type Run struct {
	ID          int64     `db:"id"`
	Query       string    `db:"query"`
	INN         string    `db:"inn"`
	ProtocolID  string    `db:"protocol_id"`
	Design      string    `db:"design"`
	CVIntraPct  float64   `db:"cvintra_pct"`
	NTotal      int       `db:"n_total"`
	FusionJSON  string    `db:"fusion_json"`
	DerivedJSON string    `db:"derived_json"`
	CallsJSON   string    `db:"calls_json"`
	SourcesJSON string    `db:"sources_json"`
	Markdown    string    `db:"markdown"`
	CreatedAt   time.Time `db:"created_at"`
}

// Fusion decodes the stored fusion result.
func (r *Run) Fusion() (pkfusion.FusionResult, error) {
	var out pkfusion.FusionResult
	err := json.Unmarshal([]byte(r.FusionJSON), &out)
	return out, err
}

type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query        TEXT NOT NULL,
	inn          TEXT NOT NULL,
	protocol_id  TEXT NOT NULL DEFAULT '',
	design       TEXT NOT NULL DEFAULT '',
	cvintra_pct  REAL NOT NULL DEFAULT 0,
	n_total      INTEGER NOT NULL DEFAULT 0,
	fusion_json  TEXT NOT NULL DEFAULT '{}',
	derived_json TEXT NOT NULL DEFAULT '{}',
	calls_json   TEXT NOT NULL DEFAULT '[]',
	sources_json TEXT NOT NULL DEFAULT '[]',
	markdown     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_inn ON runs (inn);
`

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a completed run and returns its id.
func (s *Store) SaveRun(ctx context.Context, query string, res synopsis.Result, markdown string) (int64, error) {
	design := string(res.Derived.Design.Design)
	nTotal := 0
	if res.Derived.SampleSize != nil {
		nTotal = res.Derived.SampleSize.NTotal
	}

	out, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(query, inn, protocol_id, design, cvintra_pct, n_total,
		 fusion_json, derived_json, calls_json, sources_json, markdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		query,
		res.Synopsis.INN,
		res.Synopsis.ProtocolID,
		design,
		res.Derived.CVIntraPct,
		nTotal,
		marshalJSON(res.Fusion),
		marshalJSON(res.Derived),
		marshalJSON(res.Calls),
		marshalJSON(res.Sources),
		markdown,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return out.LastInsertId()
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	var raw runRow
	err := s.db.GetContext(ctx, &raw, `SELECT * FROM runs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return raw.toRun()
}

// ListRuns returns recent runs, newest first. A non-empty inn filters by
// substance.
func (s *Store) ListRuns(ctx context.Context, inn string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var raws []runRow
	var err error
	if inn != "" {
		err = s.db.SelectContext(ctx, &raws,
			`SELECT * FROM runs WHERE inn = ? ORDER BY id DESC LIMIT ?`, inn, limit)
	} else {
		err = s.db.SelectContext(ctx, &raws,
			`SELECT * FROM runs ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]*Run, 0, len(raws))
	for i := range raws {
		r, err := raws[i].toRun()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// runRow is the raw scan target; created_at lands as RFC3339 text.
type runRow struct {
	ID          int64   `db:"id"`
	Query       string  `db:"query"`
	INN         string  `db:"inn"`
	ProtocolID  string  `db:"protocol_id"`
	Design      string  `db:"design"`
	CVIntraPct  float64 `db:"cvintra_pct"`
	NTotal      int     `db:"n_total"`
	FusionJSON  string  `db:"fusion_json"`
	DerivedJSON string  `db:"derived_json"`
	CallsJSON   string  `db:"calls_json"`
	SourcesJSON string  `db:"sources_json"`
	Markdown    string  `db:"markdown"`
	CreatedAt   string  `db:"created_at"`
}

func (r *runRow) toRun() (*Run, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
	}
	return &Run{
		ID:          r.ID,
		Query:       r.Query,
		INN:         r.INN,
		ProtocolID:  r.ProtocolID,
		Design:      r.Design,
		CVIntraPct:  r.CVIntraPct,
		NTotal:      r.NTotal,
		FusionJSON:  r.FusionJSON,
		DerivedJSON: r.DerivedJSON,
		CallsJSON:   r.CallsJSON,
		SourcesJSON: r.SourcesJSON,
		Markdown:    r.Markdown,
		CreatedAt:   created,
	}, nil
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
