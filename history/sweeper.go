package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "history")

// DefaultSweepSpec runs the sweep every five minutes (seconds field first).
const DefaultSweepSpec = "0 */5 * * * *"

// Sweeper expires idle sessions on a cron schedule.
//
// A session is idle once its newest assessment is older than TTL. Sessions
// are only ever held in memory-like backends by default, so without a
// sweep a long-running server would keep every visitor's history forever.
type Sweeper struct {
	Store Store
	Spec  string
	TTL   time.Duration

	now  func() time.Time
	cron *cron.Cron
	mu   sync.Mutex
}

// NewSweeper creates a sweeper; call Start to schedule it.
func NewSweeper(store Store, spec string, ttl time.Duration) *Sweeper {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	return &Sweeper{
		Store: store,
		Spec:  spec,
		TTL:   ttl,
		now:   time.Now,
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}
	if s.TTL <= 0 {
		log.Info("session TTL disabled, sweeper not started")
		return nil
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.Spec, s.run); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	c.Start()
	s.cron = c

	log.WithFields(logrus.Fields{"spec": s.Spec, "ttl": s.TTL}).Info("sweeper started")
	return nil
}

// Stop stops the runner and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	log.Info("sweeper stopped")
}

// RunOnce sweeps immediately and returns the number of expired sessions.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.TTL)
	n, err := s.Store.Sweep(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return n, nil
}

func (s *Sweeper) run() {
	n, err := s.RunOnce(context.Background())
	if err != nil {
		log.WithError(err).Warn("session sweep failed")
		return
	}
	if n > 0 {
		log.WithField("sessions", n).Info("expired idle sessions")
	}
}
