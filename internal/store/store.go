// Package store keeps a SQLite history of fit runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/fano_analyzer_go/internal/analysis"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

// Run is one stored fit.
type Run struct {
	ID                string
	CreatedAt         time.Time
	Source            string
	Points            int
	Params            analysis.FanoParameters
	Uncertainties     analysis.FanoParameters
	ChiSquared        float64
	ReducedChiSquared float64 // NaN when undefined
	Warnings          []string
}

// RunFilter narrows ListRuns. Zero values disable a filter.
type RunFilter struct {
	Source string
	Since  *time.Time
	Limit  int
}

// NewRun captures the fit in results under a fresh id.
func NewRun(results *analysis.AnalysisResults, now time.Time) (Run, error) {
	if results == nil || results.Fit == nil {
		return Run{}, fmt.Errorf("no fit results to record")
	}
	fit := results.Fit
	return Run{
		ID:                uuid.NewString(),
		CreatedAt:         now.UTC(),
		Source:            results.Source,
		Points:            fit.NumPoints,
		Params:            fit.Params,
		Uncertainties:     analysis.FanoParametersFromVector(fit.Uncertainties()),
		ChiSquared:        results.ChiSquared,
		ReducedChiSquared: fit.ReducedChiSquared,
		Warnings:          append([]string(nil), results.AnalysisErrors...),
	}, nil
}

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			source TEXT NOT NULL,
			points INTEGER NOT NULL,
			chi2 REAL NOT NULL,
			reduced_chi2 REAL,
			warnings TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_params (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			sigma REAL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a run and its parameters in one transaction.
func (s *Store) InsertRun(ctx context.Context, run Run) (err error) {
	if run.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, points, chi2, reduced_chi2, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		run.Source,
		run.Points,
		run.ChiSquared,
		nullable(run.ReducedChiSquared),
		strings.Join(run.Warnings, "\n"),
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_params (run_id, idx, name, value, sigma) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	values, sigmas := run.Params.Vector(), run.Uncertainties.Vector()
	for i, name := range analysis.ParamNames {
		if _, err = stmt.ExecContext(ctx, run.ID, i, name, values[i], nullable(sigmas[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, created_at, source, points, chi2, reduced_chi2, warnings
		FROM runs
		WHERE %s
		ORDER BY created_at DESC`, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := s.loadParams(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun returns the run with the given id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, points, chi2, reduced_chi2, warnings FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	if err := s.loadParams(ctx, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) loadParams(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, value, sigma FROM run_params WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	values := make([]float64, analysis.NumFanoParams)
	sigmas := make([]float64, analysis.NumFanoParams)
	for rows.Next() {
		var (
			idx   int
			value float64
			sigma sql.NullFloat64
		)
		if err := rows.Scan(&idx, &value, &sigma); err != nil {
			return err
		}
		if idx < 0 || idx >= analysis.NumFanoParams {
			return fmt.Errorf("run %s: parameter index %d out of range", run.ID, idx)
		}
		values[idx] = value
		sigmas[idx] = fromNullable(sigma)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	run.Params = analysis.FanoParametersFromVector(values)
	run.Uncertainties = analysis.FanoParametersFromVector(sigmas)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		createdAt string
		reduced   sql.NullFloat64
		warnings  string
	)
	if err := sc.Scan(&run.ID, &createdAt, &run.Source, &run.Points, &run.ChiSquared, &reduced, &warnings); err != nil {
		return Run{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = parsed
	run.ReducedChiSquared = fromNullable(reduced)
	if warnings != "" {
		run.Warnings = strings.Split(warnings, "\n")
	}
	return run, nil
}

// nullable maps NaN and Inf to SQL NULL; SQLite has no NaN.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
