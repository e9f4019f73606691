// Package scheduler executes callbacks at a future time with durable,
// cancelable handles. Jobs are persisted, so pending work survives a
// restart; firing is at-most-once per handle, enforced by a conditional
// status transition rather than timer bookkeeping.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/store"
)

// Payload identifies the activity a job should auto-finish.
type Payload struct {
	UserID     string
	ActivityID string
	Kind       string
}

// Callback is invoked when a job fires. It must treat the payload as
// possibly stale and re-validate against persisted state before acting.
type Callback func(ctx context.Context, p Payload)

// Scheduler arms one timer per pending job and fires the callback at
// the target time.
type Scheduler struct {
	store  *store.Store
	cb     Callback
	logger zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	baseCtx context.Context
	started bool
}

// New creates a Scheduler. The callback is fixed for the scheduler's
// lifetime; payloads distinguish jobs.
func New(st *store.Store, cb Callback, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:  st,
		cb:     cb,
		logger: logger.With().Str("component", "scheduler").Logger(),
		timers: make(map[string]*time.Timer),
	}
}

// Start rearms all pending jobs. Jobs whose fire time has passed while
// the process was down fire immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.started = true
	s.mu.Unlock()

	jobs, err := s.store.ListPendingJobs()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		s.arm(j.ID, time.Until(j.FireAt), Payload{UserID: j.UserID, ActivityID: j.ActivityID, Kind: j.Kind})
	}
	if len(jobs) > 0 {
		s.logger.Info().Int("jobs", len(jobs)).Msg("rearmed pending jobs")
	}
	return nil
}

// Stop drops all armed timers. Pending job rows stay untouched, so the
// next Start picks them up again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.started = false
}

// Schedule registers a callback at the target time and returns its
// durable handle.
func (s *Scheduler) Schedule(ctx context.Context, at time.Time, p Payload) (string, error) {
	job := &store.Job{
		ID:         uuid.New().String(),
		FireAt:     at,
		UserID:     p.UserID,
		ActivityID: p.ActivityID,
		Kind:       p.Kind,
	}
	if err := s.store.CreateJob(job); err != nil {
		return "", err
	}

	s.arm(job.ID, time.Until(at), p)

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("activity_id", p.ActivityID).
		Time("fire_at", at).
		Msg("job scheduled")
	return job.ID, nil
}

// Cancel revokes a pending job. Cancelling a job that already fired
// (or was cancelled) returns ErrAlreadyFired, a defined no-op for
// callers: correctness never depends on cancellation succeeding.
func (s *Scheduler) Cancel(ctx context.Context, handle string) error {
	s.mu.Lock()
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
	s.mu.Unlock()

	ok, err := s.store.CancelJob(handle)
	if err != nil {
		return err
	}
	if !ok {
		return botErrors.ErrAlreadyFired
	}
	return nil
}

// PendingCount returns the number of pending jobs, for metrics.
func (s *Scheduler) PendingCount() (int, error) {
	return s.store.CountPendingJobs()
}

func (s *Scheduler) arm(handle string, delay time.Duration, p Payload) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		// Schedule before Start: the job row exists and Start will arm it.
		return
	}
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.fire(handle, p)
	})
}

func (s *Scheduler) fire(handle string, p Payload) {
	s.mu.Lock()
	delete(s.timers, handle)
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	fired, err := s.store.MarkJobFired(handle)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", handle).Msg("job transition failed")
		return
	}
	if !fired {
		// Lost the race with Cancel, or a duplicate timer. Either way
		// the job must not run twice.
		return
	}

	s.cb(ctx, p)
}
