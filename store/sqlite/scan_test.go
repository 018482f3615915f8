package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/history/historytest"
)

func TestScan_CorruptMoneyColumnIsAnError(t *testing.T) {
	// GIVEN: a stored assessment whose income tax column was damaged
	// WHEN: the session is read back
	// THEN: the read fails instead of reporting a zero tax
	ctx := context.Background()
	store, err := New(":memory:", 10)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, "s1", historytest.Result("a", 0, 36000)))
	_, err = store.db.Exec(`UPDATE assessments SET annual_income_tax = 'not-money' WHERE id = 'a'`)
	require.NoError(t, err)

	_, err = store.List(ctx, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "annual_income_tax")

	_, err = store.Get(ctx, "s1", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, history.ErrNotFound)
}
