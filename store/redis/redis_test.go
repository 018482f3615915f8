package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/history/historytest"
)

// newTestStore runs against REDIS_ADDR when it points at a disposable
// server, and against an in-process miniredis otherwise. The returned
// miniredis is nil on a real server.
func newTestStore(t *testing.T, opts Options) (*Store, *miniredis.Miniredis) {
	t.Helper()
	ctx := context.Background()
	opts.Prefix = "paye-test-" + uuid.NewString()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		opts.Addr = addr
		store, err := New(ctx, opts)
		require.NoError(t, err)
		t.Cleanup(func() {
			iter := store.client.Scan(ctx, 0, store.prefix+":*", 100).Iterator()
			for iter.Next(ctx) {
				store.client.Del(ctx, iter.Val())
			}
			store.Close()
		})
		return store, nil
	}

	mr := miniredis.RunT(t)
	store := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), opts)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestStore_StoreContract(t *testing.T) {
	historytest.Run(t, func(t *testing.T, maxEntries int) history.Store {
		store, _ := newTestStore(t, Options{MaxEntries: maxEntries, TTL: time.Hour})
		return store
	})
}

func TestStore_AppendSetsTTL(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Options{MaxEntries: 10, TTL: time.Hour})
	require.NoError(t, store.Append(ctx, "s1", historytest.Result("a", 0, 36000)))

	for _, key := range []string{store.historyKey("s1"), store.idsKey("s1")} {
		ttl, err := store.client.TTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0), key)
	}
}

func TestStore_ZeroTTLKeepsKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Options{MaxEntries: 10})
	require.NoError(t, store.Append(ctx, "s1", historytest.Result("a", 0, 36000)))

	ttl, err := store.client.TTL(ctx, store.historyKey("s1")).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestStore_TrimmedIDsLeaveIDSet(t *testing.T) {
	// GIVEN: a session capped at three entries
	// WHEN: five assessments are appended
	// THEN: the ID set holds only the three kept entries, and an evicted ID
	//       can be appended again
	ctx := context.Background()
	store, _ := newTestStore(t, Options{MaxEntries: 3})
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", historytest.Result(fmt.Sprintf("r%d", i), i, 20000)))
	}

	ids, err := store.client.SMembers(ctx, store.idsKey("s1")).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r2", "r3", "r4"}, ids)

	require.NoError(t, store.Append(ctx, "s1", historytest.Result("r0", 9, 20000)))
	ids, err = store.client.SMembers(ctx, store.idsKey("s1")).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r0", "r3", "r4"}, ids)
}

func TestStore_FailedAppendCanBeRetried(t *testing.T) {
	// GIVEN: a server that rejects every command
	// WHEN: an append fails and the server recovers
	// THEN: retrying the same result succeeds instead of reporting a duplicate
	ctx := context.Background()
	store, mr := newTestStore(t, Options{MaxEntries: 10})
	if mr == nil {
		t.Skip("needs the in-process server to inject failures")
	}
	require.NoError(t, store.Append(ctx, "warm", historytest.Result("w", 0, 36000)))
	r := historytest.Result("a", 0, 36000)

	mr.SetError("ERR injected failure")
	require.Error(t, store.Append(ctx, "s1", r))
	mr.SetError("")

	require.NoError(t, store.Append(ctx, "s1", r))
	got, err := store.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEncodeDecode_PreservesDecimalsAndTime(t *testing.T) {
	want := historytest.Result("a", 7, 100000)

	raw, err := encode(want)
	require.NoError(t, err)
	got, err := decode(raw)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.MonthlyIncomeTax.Equal(got.MonthlyIncomeTax))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Len(t, got.BandAmounts, 3)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := decode("{not json")
	assert.ErrorIs(t, err, errCorruptRecord)
}

func TestNewWithClient_Defaults(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	store := NewWithClient(client, Options{})
	defer store.Close()

	assert.Equal(t, DefaultPrefix, store.prefix)
	assert.Equal(t, history.DefaultMaxEntries, store.maxEntries)
	assert.Equal(t, "paye:session:abc:history", store.historyKey("abc"))
	assert.Equal(t, "paye:sessions", store.indexKey())
}
