package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

func newFocusActivity(t *testing.T, s *Store, userID, projectID string) *Activity {
	t.Helper()
	a := &Activity{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      ActivityFocus,
		ProjectID: projectID,
		StartedAt: time.Now(),
		Duration:  25 * time.Minute,
	}
	require.NoError(t, s.CreateActivity(a))
	return a
}

func TestActivity_CreateIncrementsProjectTotal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))
	p, err := s.GetOrCreateProject("u1", "Work")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		newFocusActivity(t, s, "u1", p.ID)
	}

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalFocus)
	assert.Equal(t, 0, got.TotalRest)
}

func TestActivity_FinishIfStarted(t *testing.T) {
	s := newTestStore(t)
	a := newFocusActivity(t, s, "u1", "")

	now := time.Now()
	ok, err := s.FinishActivityIfStarted(a.ID, ActivityFinished, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, ActivityFinished, got.Status)
	require.NotNil(t, got.EndedAt)

	// Second terminal transition loses: the activity stays finished.
	ok, err = s.FinishActivityIfStarted(a.ID, ActivityUnfinished, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, ActivityFinished, got.Status)
}

func TestActivity_FinishMissing(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.FinishActivityIfStarted("nope", ActivityFinished, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActivity_ReassignProject(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))
	work, err := s.GetOrCreateProject("u1", "Work")
	require.NoError(t, err)
	home, err := s.GetOrCreateProject("u1", "Home")
	require.NoError(t, err)

	var moved *Activity
	for i := 0; i < 3; i++ {
		moved = newFocusActivity(t, s, "u1", work.ID)
	}

	require.NoError(t, s.ReassignActivityProject(moved.ID, home.ID))

	gotWork, err := s.GetProject(work.ID)
	require.NoError(t, err)
	gotHome, err := s.GetProject(home.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gotWork.TotalFocus)
	assert.Equal(t, 1, gotHome.TotalFocus)

	// Reassigning to the same project changes nothing.
	require.NoError(t, s.ReassignActivityProject(moved.ID, home.ID))
	gotHome, err = s.GetProject(home.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotHome.TotalFocus)
}

func TestActivity_DeleteDecrementsTotal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))
	p, err := s.GetOrCreateProject("u1", "Work")
	require.NoError(t, err)
	a := newFocusActivity(t, s, "u1", p.ID)

	require.NoError(t, s.DeleteActivity(a.ID))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalFocus)

	_, err = s.GetActivity(a.ID)
	assert.ErrorIs(t, err, botErrors.ErrNotFound)
}

func TestActivity_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	a1 := newFocusActivity(t, s, "u1", "")
	newFocusActivity(t, s, "u2", "")

	_, err := s.FinishActivityIfStarted(a1.ID, ActivityFinished, time.Now())
	require.NoError(t, err)

	started, err := s.CountActivities(ActivityFocus, ActivityStarted)
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	mine, err := s.ListActivities(ActivityFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a1.ID, mine[0].ID)
}

func TestActivity_RealDuration(t *testing.T) {
	start := time.Now()
	end := start.Add(24*time.Minute + 30*time.Second + 200*time.Millisecond)
	a := &Activity{StartedAt: start, EndedAt: &end}
	assert.Equal(t, 24*time.Minute+30*time.Second, a.RealDuration())

	a.EndedAt = nil
	assert.Equal(t, time.Duration(0), a.RealDuration())
}
