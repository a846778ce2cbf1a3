package server

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/NabidKabir/kura-final-project/config"
	"github.com/NabidKabir/kura-final-project/internal/advisory"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

// Scheduler runs the background jobs: advisory refresh and query-result
// retention pruning. Job times come from cron expressions in config; a
// redis lock keeps replicas from running the same job twice.
type Scheduler struct {
	Cfg       config.SchedulerConfig
	Store     *store.Store
	Refresher *advisory.Refresher
	Rdb       *redis.Client
	Stop      chan struct{}

	logger        *log.Logger
	lastAdvisory  time.Time
	lastRetention time.Time
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if !s.Cfg.Enabled {
		s.logger.Printf("scheduler disabled")
		return
	}

	// Jobs are measured against process start, so a restart does not
	// immediately re-fire them.
	now := time.Now()
	s.lastAdvisory = now
	s.lastRetention = now

	s.logger.Printf("scheduler started (advisory %q, retention %q)",
		s.Cfg.AdvisoryRefreshCron, s.Cfg.RetentionCron)

	go func() {
		// jitter so restarted replicas do not contend for locks in lockstep
		if d := s.Cfg.MaxStartupDelay; d > 0 {
			select {
			case <-time.After(time.Duration(rand.Int63n(int64(d)))):
			case <-s.Stop:
				return
			}
		}
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	now := time.Now()
	if isDue(s.Cfg.AdvisoryRefreshCron, s.lastAdvisory, now) {
		// The slot is consumed even when another replica holds the lock,
		// otherwise this replica would re-fire the job at lock expiry.
		s.lastAdvisory = now
		if s.acquire("advisory") {
			s.refreshAdvisories()
		}
	}
	if isDue(s.Cfg.RetentionCron, s.lastRetention, now) {
		s.lastRetention = now
		if s.acquire("retention") {
			s.pruneResults()
		}
	}
}

// acquire takes the distributed lock for a job. Without redis the
// scheduler assumes a single instance and always proceeds.
func (s *Scheduler) acquire(job string) bool {
	if s.Rdb == nil {
		return true
	}
	ttl := s.Cfg.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	ok, err := s.Rdb.SetNX(context.Background(), "kura:sched:lock:"+job, "1", ttl).Result()
	if err != nil {
		s.logger.Printf("failed to acquire %s lock: %v", job, err)
		return false
	}
	return ok
}

func (s *Scheduler) refreshAdvisories() {
	if s.Refresher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := s.Refresher.Refresh(ctx); err != nil {
		s.logger.Printf("advisory refresh: %v", err)
	}
}

func (s *Scheduler) pruneResults() {
	if s.Store == nil || s.Cfg.RetentionDays <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.Store.PruneQueryResults(ctx, s.Cfg.RetentionDays)
	if err != nil {
		s.logger.Printf("retention prune: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("pruned %d query results older than %d days", n, s.Cfg.RetentionDays)
	}
}

// isDue reports whether a job with the given cron spec should run now,
// based on the last time it ran. Supports "@daily", "@hourly", and
// standard 5-field cron expressions; an invalid expression degrades to
// daily.
func isDue(cronSpec string, last, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return now.Sub(last) >= 24*time.Hour
		}
		return !expr.Next(last).After(now)
	}
}
