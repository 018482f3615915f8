/*
Package redis provides a Redis-backed history.Store.

PURPOSE:
  Lets several API replicas share session history. Each session is a Redis
  list of JSON-encoded assessments, newest at the head (LPUSH), so LRANGE
  already yields most-recent-first for the common case.

KEYS:
  {prefix}:session:{id}:history   LIST of JSON records, newest first
  {prefix}:session:{id}:ids       SET of IDs currently in the list (duplicate guard)
  {prefix}:sessions               ZSET session -> newest created_at (unix ms)

RETENTION:
  LTRIM keeps at most maxEntries per session. Session keys also carry a
  Redis TTL when one is configured, so abandoned sessions expire even if
  the sweeper is not running.

SEE ALSO:
  - history/history.go: Store interface
  - store/sqlite/sqlite.go: Single-node alternative
*/
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/paye"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "paye"

// Store implements history.Store on Redis.
type Store struct {
	client     goredis.UniversalClient
	prefix     string
	maxEntries int
	ttl        time.Duration
}

var _ history.Store = (*Store)(nil)

// Options configures New.
type Options struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	MaxEntries int
	TTL        time.Duration // 0 disables key expiry
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client. Addr/Password/DB are ignored.
func NewWithClient(client goredis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = history.DefaultMaxEntries
	}
	return &Store{
		client:     client,
		prefix:     opts.Prefix,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) historyKey(session history.SessionID) string {
	return fmt.Sprintf("%s:session:%s:history", s.prefix, session)
}

func (s *Store) idsKey(session history.SessionID) string {
	return fmt.Sprintf("%s:session:%s:ids", s.prefix, session)
}

func (s *Store) indexKey() string {
	return s.prefix + ":sessions"
}

// =============================================================================
// history.Store
// =============================================================================

// Append pushes the result and trims the session to the cap in one
// optimistic transaction. The ID set is updated in the same EXEC, so a
// failed append never leaves a dangling ID, and IDs trimmed off the list
// leave the set with their records.
func (s *Store) Append(ctx context.Context, session history.SessionID, r paye.AssessmentResult) error {
	payload, err := encode(r)
	if err != nil {
		return err
	}

	histKey, idsKey := s.historyKey(session), s.idsKey(session)
	txf := func(tx *goredis.Tx) error {
		dup, err := tx.SIsMember(ctx, idsKey, string(r.ID)).Result()
		if err != nil {
			return fmt.Errorf("failed to check assessment id: %w", err)
		}
		if dup {
			return history.ErrDuplicateAssessment
		}

		// After LPUSH every current index shifts by one, so entries at
		// maxEntries-1 and beyond fall off in the LTRIM below.
		evicted, err := tx.LRange(ctx, histKey, int64(s.maxEntries-1), -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read evicted entries: %w", err)
		}

		score := float64(r.CreatedAt.UnixMilli())
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.LPush(ctx, histKey, payload)
			p.LTrim(ctx, histKey, 0, int64(s.maxEntries-1))
			p.SAdd(ctx, idsKey, string(r.ID))
			if ids := evictedIDs(evicted); len(ids) > 0 {
				p.SRem(ctx, idsKey, ids...)
			}
			// GT: only move the session's score forward.
			p.ZAddGT(ctx, s.indexKey(), goredis.Z{Score: score, Member: string(session)})
			if s.ttl > 0 {
				p.Expire(ctx, histKey, s.ttl)
				p.Expire(ctx, idsKey, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, histKey, idsKey)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, history.ErrDuplicateAssessment):
		return err
	default:
		return fmt.Errorf("failed to append assessment: %w", err)
	}
}

// maxAppendAttempts bounds retries when a concurrent append to the same
// session invalidates the WATCH.
const maxAppendAttempts = 3

func evictedIDs(raw []string) []any {
	ids := make([]any, 0, len(raw))
	for _, item := range raw {
		if r, err := decode(item); err == nil {
			ids = append(ids, string(r.ID))
		}
	}
	return ids
}

func (s *Store) List(ctx context.Context, session history.SessionID) ([]paye.AssessmentResult, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	results := make([]paye.AssessmentResult, 0, len(raw))
	for _, item := range raw {
		r, err := decode(item)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	history.SortRecentFirst(results)
	return results, nil
}

func (s *Store) Get(ctx context.Context, session history.SessionID, id paye.AssessmentID) (paye.AssessmentResult, error) {
	results, err := s.List(ctx, session)
	if err != nil {
		return paye.AssessmentResult{}, err
	}
	for _, r := range results {
		if r.ID == id {
			return r, nil
		}
	}
	return paye.AssessmentResult{}, history.ErrNotFound
}

func (s *Store) Clear(ctx context.Context, session history.SessionID) error {
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.historyKey(session), s.idsKey(session))
		p.ZRem(ctx, s.indexKey(), string(session))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	// Exclusive upper bound: a session touched exactly at cutoff survives.
	idle, err := s.client.ZRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find idle sessions: %w", err)
	}
	for _, session := range idle {
		if err := s.Clear(ctx, history.SessionID(session)); err != nil {
			return 0, err
		}
	}
	return len(idle), nil
}

// =============================================================================
// ENCODING
// =============================================================================

// record is the JSON shape stored in Redis. Decimals encode as strings.
type record struct {
	ID                     string            `json:"id"`
	BandAmounts            []decimal.Decimal `json:"band_amounts"`
	AnnualIncomeTax        decimal.Decimal   `json:"annual_income_tax"`
	MonthlyIncomeTax       decimal.Decimal   `json:"monthly_income_tax"`
	MonthlySocialInsurance decimal.Decimal   `json:"monthly_social_insurance"`
	AnnualGrossSalary      decimal.Decimal   `json:"annual_gross_salary"`
	EmploymentType         string            `json:"employment_type"`
	CreatedAt              time.Time         `json:"created_at"`
}

func encode(r paye.AssessmentResult) (string, error) {
	b, err := json.Marshal(record{
		ID:                     string(r.ID),
		BandAmounts:            r.BandAmounts,
		AnnualIncomeTax:        r.AnnualIncomeTax,
		MonthlyIncomeTax:       r.MonthlyIncomeTax,
		MonthlySocialInsurance: r.MonthlySocialInsurance,
		AnnualGrossSalary:      r.AnnualGrossSalary,
		EmploymentType:         string(r.EmploymentType),
		CreatedAt:              r.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode assessment %s: %w", r.ID, err)
	}
	return string(b), nil
}

var errCorruptRecord = errors.New("corrupt history record")

func decode(s string) (paye.AssessmentResult, error) {
	var rec record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return paye.AssessmentResult{}, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	return paye.AssessmentResult{
		ID:                     paye.AssessmentID(rec.ID),
		BandAmounts:            rec.BandAmounts,
		AnnualIncomeTax:        rec.AnnualIncomeTax,
		MonthlyIncomeTax:       rec.MonthlyIncomeTax,
		MonthlySocialInsurance: rec.MonthlySocialInsurance,
		AnnualGrossSalary:      rec.AnnualGrossSalary,
		EmploymentType:         paye.EmploymentType(rec.EmploymentType),
		CreatedAt:              rec.CreatedAt,
	}, nil
}
