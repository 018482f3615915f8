/*
Package history keeps the per-session list of past assessments.

PURPOSE:
  The engine produces one immutable result per call and never looks at
  earlier ones. Showing "your previous assessments" is the presentation
  layer's job; this package is where it keeps them.

APPEND-ONLY CONTRACT:
  - Append(): the only way an entry gets in
  - No Update() exists; results are never modified
  - Entries leave only through Clear() (user asked), the per-session cap
    (oldest dropped first), or Sweep() (idle session expired)

ORDERING:
  List() returns most-recent-first by CreatedAt. Entries with the same
  CreatedAt come back newest-appended first.

IMPLEMENTATIONS:
  - memory.go:           In-process map, default
  - store/sqlite:        SQLite, ":memory:" unless configured otherwise
  - store/redis:         Redis lists with a session index

SEE ALSO:
  - sweeper.go: Periodic idle-session expiry
  - api/handlers.go: The only writer
*/
package history

import (
	"context"
	"errors"
	"time"

	"github.com/sajclarke/tax-calculator-app/paye"
)

// DefaultMaxEntries is the per-session cap used when none is configured.
const DefaultMaxEntries = 100

var (
	// ErrNotFound is returned when an assessment is not in the session.
	ErrNotFound = errors.New("assessment not found")

	// ErrDuplicateAssessment is returned when an ID is appended twice.
	ErrDuplicateAssessment = errors.New("duplicate assessment id")
)

// SessionID identifies one browser session's history.
type SessionID string

// Store persists assessment history, scoped by session.
type Store interface {
	// Append adds a result to the session. Oldest entries beyond the
	// store's cap are dropped.
	Append(ctx context.Context, session SessionID, r paye.AssessmentResult) error

	// List returns the session's results, most recent first.
	List(ctx context.Context, session SessionID) ([]paye.AssessmentResult, error)

	// Get returns one result or ErrNotFound.
	Get(ctx context.Context, session SessionID, id paye.AssessmentID) (paye.AssessmentResult, error)

	// Clear removes every entry for the session.
	Clear(ctx context.Context, session SessionID) error

	// Sweep drops sessions whose newest entry is older than cutoff and
	// returns how many sessions were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
