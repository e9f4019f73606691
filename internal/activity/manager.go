// Package activity implements the timed-activity lifecycle: starting,
// stopping and auto-finishing focus and rest intervals while keeping
// scheduled jobs consistent with persisted state.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/metrics"
	"github.com/focuslabs/focusbot/internal/scheduler"
	"github.com/focuslabs/focusbot/internal/store"
)

// Notifier delivers out-of-band notifications when an activity finishes
// on its own. Delivery failures are the notifier's problem; the
// lifecycle transition has already been persisted when it is called.
type Notifier interface {
	NotifyFocusFinished(ctx context.Context, userID string)
	NotifyRestFinished(ctx context.Context, userID string)
	NotifyFirstFocus(ctx context.Context, userID string)
}

// Manager enforces the one-focus-or-one-rest invariant and keeps
// auto-finish jobs consistent with activity state.
type Manager struct {
	store     *store.Store
	sched     *scheduler.Scheduler
	notifier  Notifier
	metrics   *metrics.Metrics
	countdown time.Duration // non-zero replaces real durations (dev mode)
	logger    zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCountdown replaces the user-configured durations with a fixed
// short countdown, for development and manual testing.
func WithCountdown(d time.Duration) Option {
	return func(m *Manager) { m.countdown = d }
}

// NewManager creates a Manager.
func NewManager(st *store.Store, sched *scheduler.Scheduler, notifier Notifier, mts *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		sched:    sched,
		notifier: notifier,
		metrics:  mts,
		logger:   logger.With().Str("component", "activity").Logger(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StartFocus begins a focus activity. Returns inProgress=true without
// touching anything when a focus activity is already running. Any
// running rest activity is stopped first.
func (m *Manager) StartFocus(ctx context.Context, user *store.User) (inProgress bool, err error) {
	if user.CurrentFocusID != "" {
		return true, nil
	}

	if _, _, err := m.StopAll(ctx, user); err != nil {
		return false, err
	}

	if err := m.begin(ctx, user, store.ActivityFocus, user.FocusLength); err != nil {
		return false, err
	}
	return false, nil
}

// StartRest begins a rest activity, stopping any running focus activity
// first. interrupted reports whether a focus activity was cut short, so
// the caller can tell the user.
func (m *Manager) StartRest(ctx context.Context, user *store.User) (inProgress, interrupted bool, err error) {
	if user.CurrentRestID != "" {
		return true, false, nil
	}

	focusStopped, _, err := m.StopAll(ctx, user)
	if err != nil {
		return false, false, err
	}

	if err := m.begin(ctx, user, store.ActivityRest, user.RestLength); err != nil {
		return false, focusStopped, err
	}
	return false, focusStopped, nil
}

// StopAll forcibly ends any in-progress focus or rest activity. The
// current pointers are cleared even when the activity record is missing,
// so a dangling pointer never survives. Returns which kinds actually
// transitioned to unfinished.
func (m *Manager) StopAll(ctx context.Context, user *store.User) (focusStopped, restStopped bool, err error) {
	focusStopped, err = m.stopCurrent(ctx, user, store.ActivityFocus)
	if err != nil {
		return false, false, err
	}
	restStopped, err = m.stopCurrent(ctx, user, store.ActivityRest)
	if err != nil {
		return focusStopped, false, err
	}
	return focusStopped, restStopped, nil
}

// StopFocus ends the current focus activity, if any.
func (m *Manager) StopFocus(ctx context.Context, user *store.User) (bool, error) {
	return m.stopCurrent(ctx, user, store.ActivityFocus)
}

// StopRest ends the current rest activity, if any.
func (m *Manager) StopRest(ctx context.Context, user *store.User) (bool, error) {
	return m.stopCurrent(ctx, user, store.ActivityRest)
}

// AutoFinish is the scheduler callback. The payload may be stale: the
// activity could have been stopped or superseded after the job was
// armed, and cancellation is only best-effort. It re-validates against
// the persisted current pointer before acting. A mismatch is an
// expected race, not an error.
func (m *Manager) AutoFinish(ctx context.Context, p scheduler.Payload) {
	user, err := m.store.GetUser(p.UserID)
	if errors.Is(err, botErrors.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", p.UserID).Msg("auto-finish user lookup failed")
		return
	}

	current := user.CurrentFocusID
	if p.Kind == store.ActivityRest {
		current = user.CurrentRestID
	}
	if current != p.ActivityID {
		return // superseded or already stopped
	}

	finished, err := m.store.FinishActivityIfStarted(p.ActivityID, store.ActivityFinished, time.Now())
	if err != nil {
		m.logger.Error().Err(err).Str("activity_id", p.ActivityID).Msg("auto-finish transition failed")
		return
	}

	// Clear the pointer even when the record was missing or already
	// terminal; a dangling pointer must not survive.
	if _, err := m.store.ClearCurrentActivityIf(user.ID, p.Kind, p.ActivityID); err != nil {
		m.logger.Error().Err(err).Str("activity_id", p.ActivityID).Msg("auto-finish pointer clear failed")
	}

	if !finished {
		return
	}

	if m.metrics != nil {
		m.metrics.ActivitiesFinished.WithLabelValues(p.Kind, store.ActivityFinished).Inc()
	}

	switch p.Kind {
	case store.ActivityFocus:
		if !user.FirstFocusDone {
			if err := m.store.SetFirstFocusDone(user.ID); err != nil {
				m.logger.Error().Err(err).Str("user_id", user.ID).Msg("first-focus flag update failed")
			} else if m.notifier != nil {
				m.notifier.NotifyFirstFocus(ctx, user.ID)
			}
		}
		if m.notifier != nil {
			m.notifier.NotifyFocusFinished(ctx, user.ID)
		}
	case store.ActivityRest:
		if m.notifier != nil {
			m.notifier.NotifyRestFinished(ctx, user.ID)
		}
	}
}

func (m *Manager) begin(ctx context.Context, user *store.User, kind string, duration time.Duration) error {
	a := &store.Activity{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Kind:      kind,
		ProjectID: user.CurrentProjectID,
		StartedAt: time.Now(),
		Duration:  duration,
	}
	if err := m.store.CreateActivity(a); err != nil {
		return err
	}

	countdown := duration
	if m.countdown > 0 {
		countdown = m.countdown
	}
	handle, err := m.sched.Schedule(ctx, time.Now().Add(countdown), scheduler.Payload{
		UserID:     user.ID,
		ActivityID: a.ID,
		Kind:       kind,
	})
	if err != nil {
		return fmt.Errorf("scheduling auto-finish: %w", err)
	}
	if err := m.store.SetActivityJob(a.ID, handle); err != nil {
		return err
	}

	if err := m.store.SetCurrentActivity(user.ID, kind, a.ID); err != nil {
		return err
	}
	if kind == store.ActivityFocus {
		user.CurrentFocusID = a.ID
	} else {
		user.CurrentRestID = a.ID
	}

	if m.metrics != nil {
		m.metrics.ActivitiesStarted.WithLabelValues(kind).Inc()
	}
	m.logger.Debug().
		Str("user_id", user.ID).
		Str("activity_id", a.ID).
		Str("kind", kind).
		Dur("countdown", countdown).
		Msg("activity started")
	return nil
}

func (m *Manager) stopCurrent(ctx context.Context, user *store.User, kind string) (bool, error) {
	current := user.CurrentFocusID
	if kind == store.ActivityRest {
		current = user.CurrentRestID
	}
	if current == "" {
		return false, nil
	}

	stopped := false
	a, err := m.store.GetActivity(current)
	switch {
	case errors.Is(err, botErrors.ErrNotFound):
		// Record vanished; fall through and clear the dangling pointer.
	case err != nil:
		return false, err
	default:
		stopped, err = m.store.FinishActivityIfStarted(a.ID, store.ActivityUnfinished, time.Now())
		if err != nil {
			return false, err
		}
		if a.JobID != "" {
			if cancelErr := m.sched.Cancel(ctx, a.JobID); cancelErr != nil && !errors.Is(cancelErr, botErrors.ErrAlreadyFired) {
				// Never fatal: AutoFinish re-validates before acting.
				m.logger.Warn().Err(cancelErr).Str("job_id", a.JobID).Msg("job cancellation failed")
			}
		}
		if stopped && m.metrics != nil {
			m.metrics.ActivitiesFinished.WithLabelValues(kind, store.ActivityUnfinished).Inc()
		}
	}

	if err := m.store.SetCurrentActivity(user.ID, kind, ""); err != nil {
		return stopped, err
	}
	if kind == store.ActivityFocus {
		user.CurrentFocusID = ""
	} else {
		user.CurrentRestID = ""
	}
	return stopped, nil
}
