package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/state"
)

func TestUser_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	u := &User{ID: "100", FirstName: "Ada", LastName: "Lovelace", Username: "ada"}
	require.NoError(t, s.CreateUser(u))

	got, err := s.GetUser("100")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name())
	assert.Equal(t, UserActive, got.Status)
	assert.Equal(t, DefaultFocusLength, got.FocusLength)
	assert.Equal(t, DefaultRestLength, got.RestLength)
	assert.Equal(t, DefaultBigRestLength, got.BigRestLength)
	assert.Equal(t, DefaultSessionCount, got.SessionCount)
	assert.False(t, got.FirstFocusDone)
	assert.Equal(t, state.Idle, got.Stack.Current())
}

func TestUser_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser("nope")
	assert.ErrorIs(t, err, botErrors.ErrNotFound)
}

func TestUser_StackPersistsImmediately(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	st := state.Stack{state.Settings, state.SettingsFocusLen}
	require.NoError(t, s.SetUserStack("u1", st))

	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, state.SettingsFocusLen, got.Stack.Current())
	assert.Equal(t, 2, got.Stack.Depth())
}

func TestUser_SetSettings(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	require.NoError(t, s.SetUserSettings("u1", 30*time.Minute, 7*time.Minute, 20*time.Minute, 6))

	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, got.FocusLength)
	assert.Equal(t, 7*time.Minute, got.RestLength)
	assert.Equal(t, 20*time.Minute, got.BigRestLength)
	assert.Equal(t, 6, got.SessionCount)
}

func TestUser_SetStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	require.NoError(t, s.SetUserStatus("u1", UserBanned))
	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, UserBanned, got.Status)

	assert.ErrorIs(t, s.SetUserStatus("missing", UserBanned), botErrors.ErrNotFound)
}

func TestUser_CurrentActivityPointer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	require.NoError(t, s.SetCurrentActivity("u1", ActivityFocus, "act-1"))
	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", got.CurrentFocusID)
	assert.Empty(t, got.CurrentRestID)

	require.NoError(t, s.SetCurrentActivity("u1", ActivityFocus, ""))
	got, err = s.GetUser("u1")
	require.NoError(t, err)
	assert.Empty(t, got.CurrentFocusID)
}

func TestUser_ClearCurrentActivityIf(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))
	require.NoError(t, s.SetCurrentActivity("u1", ActivityRest, "act-1"))

	// Stale activity ID does not clear the pointer.
	cleared, err := s.ClearCurrentActivityIf("u1", ActivityRest, "act-0")
	require.NoError(t, err)
	assert.False(t, cleared)

	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", got.CurrentRestID)

	// Matching ID clears it exactly once.
	cleared, err = s.ClearCurrentActivityIf("u1", ActivityRest, "act-1")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = s.ClearCurrentActivityIf("u1", ActivityRest, "act-1")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestUser_FirstFocusDone(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	require.NoError(t, s.SetFirstFocusDone("u1"))

	// The flag is durable and unrelated to the dialogue stack.
	require.NoError(t, s.SetUserStack("u1", state.Stack{}))
	got, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.True(t, got.FirstFocusDone)
}

func TestUser_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))
	require.NoError(t, s.CreateUser(&User{ID: "u2"}))
	require.NoError(t, s.SetUserStatus("u2", UserBanned))

	n, err := s.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := s.ListUsers(UserActive, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u1", active[0].ID)
}
