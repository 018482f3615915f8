// Package historytest holds the behavior every history.Store must share.
package historytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/paye"
)

// Factory builds an empty store capped at maxEntries per session.
type Factory func(t *testing.T, maxEntries int) history.Store

var base = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// Result builds a plausible assessment with the given ID, created offset
// minutes after a fixed base time.
func Result(id string, offset int, salary int64) paye.AssessmentResult {
	return paye.AssessmentResult{
		ID:                     paye.AssessmentID(id),
		BandAmounts:            []decimal.Decimal{decimal.Zero, decimal.NewFromInt(1375), decimal.Zero},
		AnnualIncomeTax:        decimal.NewFromInt(1375),
		MonthlyIncomeTax:       decimal.NewFromInt(1375).Div(decimal.NewFromInt(12)),
		MonthlySocialInsurance: decimal.RequireFromString("333"),
		AnnualGrossSalary:      decimal.NewFromInt(salary),
		EmploymentType:         paye.Employed,
		CreatedAt:              base.Add(time.Duration(offset) * time.Minute),
	}
}

// Run exercises the shared Store contract.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("ListEmptySession", func(t *testing.T) {
		s := newStore(t, 10)
		got, err := s.List(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("AppendListMostRecentFirst", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("a", 0, 20000)))
		require.NoError(t, s.Append(ctx, "s1", Result("b", 1, 36000)))
		require.NoError(t, s.Append(ctx, "s1", Result("c", 2, 100000)))

		got, err := s.List(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, paye.AssessmentID("c"), got[0].ID)
		assert.Equal(t, paye.AssessmentID("b"), got[1].ID)
		assert.Equal(t, paye.AssessmentID("a"), got[2].ID)
	})

	t.Run("OrdersByCreatedAtNotAppendOrder", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("late", 5, 20000)))
		require.NoError(t, s.Append(ctx, "s1", Result("early", 1, 20000)))

		got, err := s.List(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, paye.AssessmentID("late"), got[0].ID)
	})

	t.Run("EqualTimestampsNewestAppendedFirst", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("first", 0, 20000)))
		require.NoError(t, s.Append(ctx, "s1", Result("second", 0, 20000)))

		got, err := s.List(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, paye.AssessmentID("second"), got[0].ID)
	})

	t.Run("RoundTripsFields", func(t *testing.T) {
		s := newStore(t, 10)
		want := Result("x", 3, 36000)
		want.EmploymentType = paye.SelfEmployed
		require.NoError(t, s.Append(ctx, "s1", want))

		got, err := s.Get(ctx, "s1", "x")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.EmploymentType, got.EmploymentType)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v vs %v", want.CreatedAt, got.CreatedAt)
		assert.True(t, want.AnnualGrossSalary.Equal(got.AnnualGrossSalary))
		assert.True(t, want.AnnualIncomeTax.Equal(got.AnnualIncomeTax))
		assert.True(t, want.MonthlyIncomeTax.Equal(got.MonthlyIncomeTax), "monthly %s vs %s", want.MonthlyIncomeTax, got.MonthlyIncomeTax)
		assert.True(t, want.MonthlySocialInsurance.Equal(got.MonthlySocialInsurance))
		require.Len(t, got.BandAmounts, len(want.BandAmounts))
		for i := range want.BandAmounts {
			assert.True(t, want.BandAmounts[i].Equal(got.BandAmounts[i]), "band %d", i)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("a", 0, 20000)))

		_, err := s.Get(ctx, "s1", "zzz")
		assert.ErrorIs(t, err, history.ErrNotFound)
		_, err = s.Get(ctx, "s2", "a")
		assert.ErrorIs(t, err, history.ErrNotFound)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("a", 0, 20000)))
		assert.ErrorIs(t, s.Append(ctx, "s1", Result("a", 1, 20000)), history.ErrDuplicateAssessment)
	})

	t.Run("SessionsIsolated", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("a", 0, 20000)))
		require.NoError(t, s.Append(ctx, "s2", Result("b", 0, 30000)))

		got, err := s.List(ctx, "s2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, paye.AssessmentID("b"), got[0].ID)
	})

	t.Run("CapDropsOldest", func(t *testing.T) {
		s := newStore(t, 3)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Append(ctx, "s1", Result(fmt.Sprintf("r%d", i), i, 20000)))
		}

		got, err := s.List(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, paye.AssessmentID("r4"), got[0].ID)
		assert.Equal(t, paye.AssessmentID("r2"), got[2].ID)
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "s1", Result("a", 0, 20000)))
		require.NoError(t, s.Append(ctx, "s2", Result("b", 0, 20000)))
		require.NoError(t, s.Clear(ctx, "s1"))

		got, err := s.List(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, got)
		got, err = s.List(ctx, "s2")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("SweepIdleSessions", func(t *testing.T) {
		s := newStore(t, 10)
		require.NoError(t, s.Append(ctx, "idle", Result("a", 0, 20000)))
		require.NoError(t, s.Append(ctx, "active", Result("b", 0, 20000)))
		require.NoError(t, s.Append(ctx, "active", Result("c", 30, 20000)))

		n, err := s.Sweep(ctx, base.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.List(ctx, "idle")
		require.NoError(t, err)
		assert.Empty(t, got)
		got, err = s.List(ctx, "active")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}
