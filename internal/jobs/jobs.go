// Package jobs runs the recurring maintenance work: expired guest sessions,
// stale lock rows, and spent cache entries all age out on a schedule.
package jobs

import (
	"log"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/session"
)

// Sweeper removes expired entries and reports how many went away.
// The lock stores, counter stores, and classification cache all satisfy it.
type Sweeper interface {
	Sweep() (int, error)
}

// Opts names the stores the scheduler maintains. Nil entries are skipped.
type Opts struct {
	DB       *gorm.DB
	Locks    Sweeper
	Counters Sweeper
	Cache    Sweeper
}

// Schedules, 5-field cron expressions.
const (
	sessionCleanupSpec = "0 * * * *"   // hourly
	lockSweepSpec      = "* * * * *"   // every minute, locks are short-lived
	cacheSweepSpec     = "*/5 * * * *" // every 5 minutes
)

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	opts Opts
}

// New builds a scheduler with all maintenance jobs registered.
func New(opts Opts) (*Scheduler, error) {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	s := &Scheduler{cron: c, opts: opts}

	if opts.DB != nil {
		if _, err := c.AddFunc(sessionCleanupSpec, s.cleanupSessions); err != nil {
			return nil, err
		}
	}
	if opts.Locks != nil {
		if _, err := c.AddFunc(lockSweepSpec, func() { s.sweep("locks", opts.Locks) }); err != nil {
			return nil, err
		}
	}
	if opts.Counters != nil || opts.Cache != nil {
		if _, err := c.AddFunc(cacheSweepSpec, s.sweepCaches); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling. Jobs already in flight finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) cleanupSessions() {
	n, err := session.CleanupExpired(s.opts.DB)
	if err != nil {
		log.Printf("jobs: session cleanup: %v", err)
		return
	}
	if n > 0 {
		log.Printf("jobs: removed %d expired sessions", n)
	}
}

func (s *Scheduler) sweepCaches() {
	if s.opts.Counters != nil {
		s.sweep("counters", s.opts.Counters)
	}
	if s.opts.Cache != nil {
		s.sweep("cache", s.opts.Cache)
	}
}

func (s *Scheduler) sweep(name string, sw Sweeper) {
	n, err := sw.Sweep()
	if err != nil {
		log.Printf("jobs: sweep %s: %v", name, err)
		return
	}
	if n > 0 {
		log.Printf("jobs: swept %d expired %s entries", n, name)
	}
}
