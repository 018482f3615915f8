package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sajclarke/tax-calculator-app/paye"
)

// =============================================================================
// MEMORY STORE - In-process implementation (default, and for tests)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	sessions   map[SessionID][]paye.AssessmentResult // append order
	maxEntries int
}

// NewMemory creates an empty store. maxEntries <= 0 uses DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		sessions:   make(map[SessionID][]paye.AssessmentResult),
		maxEntries: maxEntries,
	}
}

// Append adds a single result. Append-only.
func (m *Memory) Append(_ context.Context, session SessionID, r paye.AssessmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.sessions[session]
	for _, e := range entries {
		if e.ID == r.ID {
			return ErrDuplicateAssessment
		}
	}

	entries = append(entries, r.Clone())
	if over := len(entries) - m.maxEntries; over > 0 {
		entries = append([]paye.AssessmentResult(nil), entries[over:]...)
	}
	m.sessions[session] = entries
	return nil
}

func (m *Memory) List(_ context.Context, session SessionID) ([]paye.AssessmentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.sessions[session]
	result := make([]paye.AssessmentResult, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, entries[i].Clone())
	}
	SortRecentFirst(result)
	return result, nil
}

func (m *Memory) Get(_ context.Context, session SessionID, id paye.AssessmentID) (paye.AssessmentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.sessions[session] {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return paye.AssessmentResult{}, ErrNotFound
}

func (m *Memory) Clear(_ context.Context, session SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, session)
	return nil
}

func (m *Memory) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for session, entries := range m.sessions {
		if latest(entries).Before(cutoff) {
			delete(m.sessions, session)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Close() error { return nil }

// SortRecentFirst orders results newest CreatedAt first. The sort is
// stable, so callers that pass entries newest-appended first keep that
// order for equal timestamps.
func SortRecentFirst(results []paye.AssessmentResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

func latest(entries []paye.AssessmentResult) time.Time {
	var t time.Time
	for _, e := range entries {
		if e.CreatedAt.After(t) {
			t = e.CreatedAt
		}
	}
	return t
}
