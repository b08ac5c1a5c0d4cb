/*
scheduler.go - Automated billing sweeps

PURPOSE:
  Periodically runs the two batch jobs the platform otherwise triggers by
  hand:
  1. Overdue sweep: flip elapsed PENDING payments to OVERDUE
  2. Generation sweep: materialize pending payments for any cycle
     thresholds crossed since the last run (safety net for attendance
     events whose inline generation failed)

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Both jobs are idempotent, so overlapping manual triggers are harmless
  - Per-row failures are logged and skipped, never fatal to the sweep

USAGE:
  scheduler := NewSweepScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SweepOverdue / GeneratePayments (manual triggers)
  - billing/reminder.go: Sweep implementation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweepScheduler runs the nightly billing sweeps.
type SweepScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a scheduler with a 24h interval.
func NewSweepScheduler(h *Handler) *SweepScheduler {
	return &SweepScheduler{
		Handler:  h,
		Interval: 24 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.Interval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with interval: %v", ss.Interval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()
	now := time.Now()

	swept, err := ss.Handler.Sweep.MarkOverduePayments(ctx, now)
	if err != nil {
		log.Printf("[Scheduler] Overdue sweep failed: %v", err)
	} else if swept > 0 {
		log.Printf("[Scheduler] Overdue sweep: %d payments transitioned", swept)
	}

	groups, err := ss.Handler.Store.ListGroups(ctx)
	if err != nil {
		log.Printf("[Scheduler] Generation sweep: listing groups failed: %v", err)
		return
	}

	created := 0
	for _, g := range groups {
		n, err := ss.Handler.Generator.GenerateForGroup(ctx, g.ID, "scheduler")
		if err != nil {
			log.Printf("[Scheduler] Generation sweep failed for group %s: %v", g.ID, err)
			continue
		}
		created += n
	}
	if created > 0 {
		log.Printf("[Scheduler] Generation sweep: %d payments created", created)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}
