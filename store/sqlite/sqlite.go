/*
Package sqlite provides a SQLite-backed history.Store.

PURPOSE:
  Keeps session assessment history in SQLite. The default DSN is ":memory:",
  so history lives exactly as long as the process, the same as the
  in-memory store, but queries and trimming happen in SQL.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the assessments table
  - DELETE only for Clear(), the per-session cap, and Sweep()

KEY TABLES:
  assessments: one row per computed assessment, keyed by id, grouped by
               session_id. Money columns are decimal strings; created_at is
               unix nanoseconds so ORDER BY sorts chronologically.

INDEXES:
  - idx_assessments_session_created: List / cap trimming (hot path)

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. A ":memory:" database
  is private to its connection, so the pool must never open a second one.

USAGE:
  store, err := sqlite.New(":memory:", 100)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - history/history.go: Store interface
  - history/memory.go: In-process implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/paye"
)

// Store implements history.Store using SQLite.
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	maxEntries int
}

var _ history.Store = (*Store)(nil)

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for an in-memory database. maxEntries <= 0 uses
// history.DefaultMaxEntries.
func New(dbPath string, maxEntries int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if maxEntries <= 0 {
		maxEntries = history.DefaultMaxEntries
	}
	store := &Store{db: db, maxEntries: maxEntries}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		employment_type TEXT NOT NULL,
		annual_gross_salary TEXT NOT NULL,
		band_amounts_json TEXT NOT NULL,
		annual_income_tax TEXT NOT NULL,
		monthly_income_tax TEXT NOT NULL,
		monthly_social_insurance TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_session_created
		ON assessments(session_id, created_at DESC, seq DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// history.Store
// =============================================================================

// Append inserts the result and trims the session to the cap, atomically.
func (s *Store) Append(ctx context.Context, session history.SessionID, r paye.AssessmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bandsJSON, err := json.Marshal(r.BandAmounts)
	if err != nil {
		return fmt.Errorf("failed to encode band amounts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessments
		(id, session_id, employment_type, annual_gross_salary, band_amounts_json,
		 annual_income_tax, monthly_income_tax, monthly_social_insurance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID),
		string(session),
		string(r.EmploymentType),
		r.AnnualGrossSalary.String(),
		string(bandsJSON),
		r.AnnualIncomeTax.String(),
		r.MonthlyIncomeTax.String(),
		r.MonthlySocialInsurance.String(),
		r.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return history.ErrDuplicateAssessment
		}
		return fmt.Errorf("failed to append assessment: %w", err)
	}

	// Cap is by insertion order: the oldest appended rows go first.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM assessments
		WHERE session_id = ? AND seq NOT IN (
			SELECT seq FROM assessments WHERE session_id = ?
			ORDER BY seq DESC LIMIT ?
		)`, string(session), string(session), s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to trim session history: %w", err)
	}

	return tx.Commit()
}

// List returns the session's results, most recent first.
func (s *Store) List(ctx context.Context, session history.SessionID) ([]paye.AssessmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employment_type, annual_gross_salary, band_amounts_json,
		       annual_income_tax, monthly_income_tax, monthly_social_insurance, created_at
		FROM assessments
		WHERE session_id = ?
		ORDER BY created_at DESC, seq DESC`, string(session))
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	results := []paye.AssessmentResult{}
	for rows.Next() {
		r, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Get returns one result or history.ErrNotFound.
func (s *Store) Get(ctx context.Context, session history.SessionID, id paye.AssessmentID) (paye.AssessmentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, employment_type, annual_gross_salary, band_amounts_json,
		       annual_income_tax, monthly_income_tax, monthly_social_insurance, created_at
		FROM assessments
		WHERE session_id = ? AND id = ?`, string(session), string(id))

	r, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return paye.AssessmentResult{}, history.ErrNotFound
	}
	return r, err
}

// Clear removes the session's history.
func (s *Store) Clear(ctx context.Context, session history.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE session_id = ?`, string(session)); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Sweep deletes sessions whose newest row is older than cutoff.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	idle := `SELECT session_id FROM assessments GROUP BY session_id HAVING MAX(created_at) < ?`

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+idle+`)`, cutoff.UnixNano()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count idle sessions: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE session_id IN (`+idle+`)`, cutoff.UnixNano()); err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row scanner) (paye.AssessmentResult, error) {
	var (
		id, empType, salary, bandsJSON string
		annual, monthly, nis           string
		createdAt                      int64
	)
	if err := row.Scan(&id, &empType, &salary, &bandsJSON, &annual, &monthly, &nis, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return paye.AssessmentResult{}, err
		}
		return paye.AssessmentResult{}, fmt.Errorf("failed to scan assessment: %w", err)
	}

	var bands []decimal.Decimal
	if err := json.Unmarshal([]byte(bandsJSON), &bands); err != nil {
		return paye.AssessmentResult{}, fmt.Errorf("failed to decode band amounts for %s: %w", id, err)
	}

	dec := decimalColumns{id: id}
	r := paye.AssessmentResult{
		ID:                     paye.AssessmentID(id),
		BandAmounts:            bands,
		AnnualIncomeTax:        dec.parse("annual_income_tax", annual),
		MonthlyIncomeTax:       dec.parse("monthly_income_tax", monthly),
		MonthlySocialInsurance: dec.parse("monthly_social_insurance", nis),
		AnnualGrossSalary:      dec.parse("annual_gross_salary", salary),
		EmploymentType:         paye.EmploymentType(empType),
		CreatedAt:              time.Unix(0, createdAt).UTC(),
	}
	if dec.err != nil {
		return paye.AssessmentResult{}, dec.err
	}
	return r, nil
}

// decimalColumns decodes the money columns of one row, keeping the first
// failure. A column that does not parse is an error, never a zero amount.
type decimalColumns struct {
	id  string
	err error
}

func (c *decimalColumns) parse(col, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("failed to decode %s for %s: %w", col, c.id, err)
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
