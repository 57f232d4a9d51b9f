// Package scheduler runs the periodic overdue sweep. The sweep itself
// is a queued task; the scheduler only enqueues it on a cron schedule
// so the work survives restarts and retries like any other task.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bookstacks/catalog/internal/tasks"
)

// OverdueSweepScheduler enqueues overdue scans on a cron schedule.
type OverdueSweepScheduler struct {
	client   *tasks.Client
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewOverdueSweepScheduler creates a new scheduler instance.
func NewOverdueSweepScheduler(client *tasks.Client, schedule string) *OverdueSweepScheduler {
	return &OverdueSweepScheduler{
		client:   client,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *OverdueSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueueScan()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule overdue sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Overdue sweep scheduler: started with schedule '%s'", s.schedule)

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler.
func (s *OverdueSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		// Release the context-monitor goroutine started in Start.
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Overdue sweep scheduler: stopped")
}

// RunNow enqueues an immediate scan.
func (s *OverdueSweepScheduler) RunNow() {
	s.enqueueScan()
}

// IsRunning returns whether the scheduler is active.
func (s *OverdueSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will be enqueued.
func (s *OverdueSweepScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *OverdueSweepScheduler) enqueueScan() {
	ids, err := s.client.Add(tasks.OverdueScanTask{AsOf: time.Now().UTC()}).Save()
	if err != nil {
		log.Printf("Overdue sweep: failed to enqueue scan: %v", err)
		return
	}
	log.Printf("Overdue sweep: enqueued scan task %s", ids[0])
}
