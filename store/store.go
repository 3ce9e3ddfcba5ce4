// Package store keeps the history of crew runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/antgroup/datacrew/crew"
	"github.com/antgroup/datacrew/report"
	utilsjson "github.com/antgroup/datacrew/utils/json"
)

var _ crew.Store = (*Store)(nil)

// fixed width so created_at sorts as text
const _timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one stored crew run.
type Run struct {
	ID        string            `json:"id"`
	Query     string            `json:"query"`
	Process   string            `json:"process"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Analysis  string            `json:"analysis"`
	Blueprint string            `json:"blueprint,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Message   string            `json:"message,omitempty"`
	ChartType string            `json:"chart_type,omitempty"`
	Title     string            `json:"title,omitempty"`
	Note      string            `json:"note,omitempty"`
	ImagePath string            `json:"image_path,omitempty"`
	Image     []byte            `json:"-"`
	States    []string          `json:"states"`
	Errors    map[string]string `json:"errors,omitempty"`
	TimingsMS map[string]int64  `json:"timings_ms"`
	Duration  time.Duration     `json:"duration"`
	CreatedAt time.Time         `json:"created_at"`
}

// FromResult flattens a crew result for storage.
func FromResult(r *crew.Result) Run {
	run := Run{
		ID:        r.RunID,
		Query:     r.Query,
		Process:   string(r.Process),
		Status:    r.Status,
		Error:     r.Error,
		Analysis:  r.Analysis,
		Blueprint: r.Blueprint,
		States:    r.States,
		Errors:    r.Errors,
		TimingsMS: make(map[string]int64, len(r.Timings)),
		Duration:  r.Duration,
		CreatedAt: r.StartedAt,
	}
	for k, v := range r.Timings {
		run.TimingsMS[k] = v.Milliseconds()
	}
	if rep := r.Report; rep != nil {
		v := rep.Visualization
		run.Outcome = string(v.Status)
		run.Message = v.Message
		run.ChartType = v.Kind
		run.Title = v.Title
		run.Note = rep.Note
		if v.Image != nil {
			run.Image = v.Image.PNG
			run.ImagePath = v.Image.Path
		}
	}
	return run
}

// Report rebuilds the report of a stored run.
func (r *Run) Report() *report.Report {
	rep := report.NewAnalysis(r.Analysis)
	rep.Query = r.Query
	rep.Note = r.Note
	rep.CreatedAt = r.CreatedAt
	rep.Visualization = report.Outcome{
		Status:  report.Status(r.Outcome),
		Message: r.Message,
		Kind:    r.ChartType,
		Title:   r.Title,
	}
	if len(r.Image) > 0 {
		img := &report.Image{Source: report.SourceBlob, PNG: r.Image}
		if r.ImagePath != "" {
			img.Source, img.Path = report.SourceFile, r.ImagePath
		}
		rep.Visualization.Image = img
	}
	return rep
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the history database. modernc pragmas go in the
// DSN as _pragma=name(value).
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, ErrDisabled
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open run history %s", dsn)
	}
	// one connection, so :memory: databases are shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	process TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	analysis TEXT NOT NULL DEFAULT '',
	blueprint TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	chart_type TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT '',
	image_path TEXT NOT NULL DEFAULT '',
	image BLOB,
	states TEXT NOT NULL DEFAULT '[]',
	errors TEXT NOT NULL DEFAULT '{}',
	timings TEXT NOT NULL DEFAULT '{}',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
`)
	return errors.Wrap(err, "create runs table")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a finished crew run, replacing an earlier row with the same id.
func (s *Store) Save(ctx context.Context, r *crew.Result) error {
	if r == nil {
		return errors.New("nil result")
	}
	return s.Put(ctx, FromResult(r))
}

func (s *Store) Put(ctx context.Context, run Run) error {
	states, err := utilsjson.Marshal(run.States)
	if err != nil {
		return errors.Wrap(err, "marshal states")
	}
	errs, err := utilsjson.Marshal(run.Errors)
	if err != nil {
		return errors.Wrap(err, "marshal errors")
	}
	timings, err := utilsjson.Marshal(run.TimingsMS)
	if err != nil {
		return errors.Wrap(err, "marshal timings")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, query, process, status, error, analysis, blueprint, outcome, message,
	chart_type, title, note, image_path, image, states, errors, timings, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status=excluded.status,
	error=excluded.error,
	analysis=excluded.analysis,
	blueprint=excluded.blueprint,
	outcome=excluded.outcome,
	message=excluded.message,
	chart_type=excluded.chart_type,
	title=excluded.title,
	note=excluded.note,
	image_path=excluded.image_path,
	image=excluded.image,
	states=excluded.states,
	errors=excluded.errors,
	timings=excluded.timings,
	duration_ms=excluded.duration_ms
`, run.ID, run.Query, run.Process, run.Status, run.Error, run.Analysis, run.Blueprint, run.Outcome,
		run.Message, run.ChartType, run.Title, run.Note, run.ImagePath, run.Image, string(states),
		string(errs), string(timings), run.Duration.Milliseconds(), run.CreatedAt.UTC().Format(_timeLayout))
	return errors.Wrapf(err, "save run %s", run.ID)
}

const _selectRun = `SELECT id, query, process, status, error, analysis, blueprint, outcome, message,
	chart_type, title, note, image_path, image, states, errors, timings, duration_ms, created_at FROM runs`

func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, _selectRun+` WHERE id = ?`, id)
	run, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%q", id)
	}
	return run, err
}

// List returns the most recent runs first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, _selectRun+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()
	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (*Run, error) {
	var (
		run                   Run
		states, errs, timings string
		durationMS            int64
		created               string
	)
	if err := sc.Scan(&run.ID, &run.Query, &run.Process, &run.Status, &run.Error, &run.Analysis,
		&run.Blueprint, &run.Outcome, &run.Message, &run.ChartType, &run.Title, &run.Note,
		&run.ImagePath, &run.Image, &states, &errs, &timings, &durationMS, &created); err != nil {
		return nil, err
	}
	if err := utilsjson.Unmarshal([]byte(states), &run.States); err != nil {
		return nil, errors.Wrap(err, "decode states")
	}
	if err := utilsjson.Unmarshal([]byte(errs), &run.Errors); err != nil {
		return nil, errors.Wrap(err, "decode errors")
	}
	if err := utilsjson.Unmarshal([]byte(timings), &run.TimingsMS); err != nil {
		return nil, errors.Wrap(err, "decode timings")
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if ts, err := time.Parse(_timeLayout, created); err == nil {
		run.CreatedAt = ts
	}
	return &run, nil
}
