package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/go-filegate/internal/pkg/id"
)

// JobStore persists deferred delivery jobs across restarts.
type JobStore interface {
	Put(ctx context.Context, j *domain.DeliveryJob) error
	ClaimFired(ctx context.Context, jobID string, at time.Time) (bool, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	ListScheduled(ctx context.Context) ([]domain.DeliveryJob, error)
}

// DeleteNotifier is the injected deletion-action collaborator.
type DeleteNotifier interface {
	NotifyDelete(ctx context.Context, userID, deliveryID string) error
}

// Options carries the scheduler's configuration.
type Options struct {
	Workers     int           // bound on concurrently firing jobs
	CallTimeout time.Duration // bound on store and notifier calls
}

// Scheduler runs deferred post-delivery deletion actions. A single
// dispatch loop sleeps until the earliest fire_at, fires everything due,
// and recomputes its wake time. Firing is at-most-once: the store's
// scheduled→fired transition is a single atomic claim.
type Scheduler struct {
	jobs     JobStore
	notifier DeleteNotifier
	clk      clock.Clock
	opts     Options

	mu      sync.Mutex
	queue   jobQueue
	entries map[string]*entry

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	sem     chan struct{}
	wg      sync.WaitGroup
	started bool
}

type entry struct {
	jobID      string
	userID     string
	deliveryID string
	fireAt     time.Time
	cancelled  bool
}

func New(jobs JobStore, notifier DeleteNotifier, clk clock.Clock, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Scheduler{
		jobs:     jobs,
		notifier: notifier,
		clk:      clk,
		opts:     opts,
		entries:  make(map[string]*entry),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		sem:      make(chan struct{}, opts.Workers),
	}
}

// Start reloads persisted scheduled jobs and launches the dispatch loop.
// Jobs whose fire_at already passed fire immediately — no job is silently
// lost across a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	persisted, err := s.jobs.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("reload scheduled jobs: %w", domain.ErrStoreUnavailable)
	}

	s.mu.Lock()
	for i := range persisted {
		j := persisted[i]
		e := &entry{jobID: j.JobID, userID: j.UserID, deliveryID: j.DeliveryID, fireAt: j.FireAt}
		s.entries[j.JobID] = e
		heap.Push(&s.queue, e)
	}
	n := s.queue.Len()
	s.started = true
	s.mu.Unlock()

	if n > 0 {
		slog.Info("reloaded scheduled deletion jobs", "count", n)
	}
	go s.dispatch()
	return nil
}

// Schedule records a job and arranges for the deletion action to run at
// now+delay. Returns immediately; the eventual action never blocks the
// caller.
func (s *Scheduler) Schedule(ctx context.Context, userID, deliveryID, itemID string, delay time.Duration) (*domain.DeliveryJob, error) {
	now := s.clk.Now()
	job := &domain.DeliveryJob{
		JobID:       id.New(),
		UserID:      userID,
		DeliveryID:  deliveryID,
		ItemID:      itemID,
		Status:      domain.JobScheduled,
		ScheduledAt: now,
		FireAt:      now.Add(delay),
	}

	putCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	if err := s.jobs.Put(putCtx, job); err != nil {
		return nil, fmt.Errorf("persist deletion job: %w", domain.ErrStoreUnavailable)
	}

	e := &entry{jobID: job.JobID, userID: userID, deliveryID: deliveryID, fireAt: job.FireAt}
	s.mu.Lock()
	s.entries[job.JobID] = e
	heap.Push(&s.queue, e)
	s.mu.Unlock()
	s.kick()

	return job, nil
}

// Cancel prevents a not-yet-started fire from starting; it does not
// interrupt an in-flight one. Reports whether cancellation took effect.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	ok, err := s.jobs.Cancel(storeCtx, jobID)
	if err != nil {
		return false, fmt.Errorf("cancel deletion job: %w", domain.ErrStoreUnavailable)
	}
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	if e, found := s.entries[jobID]; found {
		e.cancelled = true
		delete(s.entries, jobID)
	}
	s.mu.Unlock()
	return true, nil
}

// Stop drains the loop: jobs already due fire before exit; the rest stay
// scheduled in the store for catch-up on next startup.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stop)
	<-s.stopped
	s.wg.Wait()
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch() {
	defer close(s.stopped)
	const idleWait = time.Hour

	for {
		s.fireDue()

		s.mu.Lock()
		wait := idleWait
		if s.queue.Len() > 0 {
			if d := s.queue[0].fireAt.Sub(s.clk.Now()); d < wait {
				wait = d
			}
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		case <-s.stop:
			timer.Stop()
			s.fireDue()
			return
		}
	}
}

// fireDue pops every entry at or past its fire time and hands it to a
// worker slot. Bounded by the semaphore; one job's failure never blocks
// the rest.
func (s *Scheduler) fireDue() {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || s.queue[0].fireAt.After(s.clk.Now()) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.queue).(*entry)
		delete(s.entries, e.jobID)
		cancelled := e.cancelled
		s.mu.Unlock()

		if cancelled {
			continue
		}
		s.sem <- struct{}{}
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.fire(e)
		}(e)
	}
}

func (s *Scheduler) fire(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
	defer cancel()

	claimed, err := s.jobs.ClaimFired(ctx, e.jobID, s.clk.Now())
	if err != nil {
		// Claim failed transiently: leave the job scheduled in the store so
		// catch-up picks it up later.
		slog.Warn("could not claim deletion job", "job_id", e.jobID, "err", err)
		return
	}
	if !claimed {
		return
	}
	if err := s.notifier.NotifyDelete(ctx, e.userID, e.deliveryID); err != nil {
		// Best-effort notification: the job stays fired.
		slog.Warn("delete notification failed", "job_id", e.jobID,
			"user_id", e.userID, "delivery_id", e.deliveryID, "err", err)
		return
	}
	slog.Info("fired deletion job", "job_id", e.jobID, "delivery_id", e.deliveryID)
}

// jobQueue is a min-heap over fire_at.
type jobQueue []*entry

func (q jobQueue) Len() int            { return len(q) }
func (q jobQueue) Less(i, j int) bool  { return q[i].fireAt.Before(q[j].fireAt) }
func (q jobQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x interface{}) { *q = append(*q, x.(*entry)) }
func (q *jobQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
