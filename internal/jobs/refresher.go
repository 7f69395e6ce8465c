package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"student-deals-admin-api/internal/cache"
	"student-deals-admin-api/internal/service"
)

const refreshTimeout = 15 * time.Second

// StatsRefresher recomputes the dashboard aggregate on a schedule and warms
// the stats cache, so dashboard loads right after the TTL expires don't pay
// for a full recomputation.
type StatsRefresher struct {
	cron       *cron.Cron
	service    *service.Service
	statsCache *cache.StatsCache
}

// NewStatsRefresher creates a refresher firing on the given cron spec
// (e.g. "@every 5m").
func NewStatsRefresher(svc *service.Service, statsCache *cache.StatsCache, spec string) (*StatsRefresher, error) {
	r := &StatsRefresher{
		cron:       cron.New(),
		service:    svc,
		statsCache: statsCache,
	}

	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return nil, fmt.Errorf("invalid stats refresh spec %q: %w", spec, err)
	}

	return r, nil
}

// Start begins the refresh schedule.
func (r *StatsRefresher) Start() {
	r.cron.Start()
}

// Stop stops the schedule and waits for a running refresh to finish.
func (r *StatsRefresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *StatsRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	stats, err := r.service.ComputeDashboardStats(ctx)
	if err != nil {
		log.Printf("stats refresh failed: %v", err)
		return
	}

	if err := r.statsCache.Set(ctx, stats); err != nil {
		log.Printf("stats refresh cache write failed: %v", err)
	}
}
