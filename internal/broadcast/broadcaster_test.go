package broadcast

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focuslabs/focusbot/internal/store"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    map[string][]string
	failFor map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]string), failFor: make(map[string]bool)}
}

func (r *recordingSender) Send(_ context.Context, user *store.User, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[user.ID] {
		return errors.New("boom")
	}
	r.sent[user.ID] = append(r.sent[user.ID], text)
	return nil
}

func (r *recordingSender) got(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[userID]
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "broadcast-test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDrainPending(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	require.NoError(t, st.CreateUser(&store.User{ID: "u2"}))

	bc := &store.Broadcast{Title: "Maintenance", Message: "Back in an hour"}
	require.NoError(t, st.CreateBroadcast(bc))

	sender := newRecordingSender()
	b := New(st, sender, 2, zerolog.Nop())
	require.NoError(t, b.DrainPending(context.Background()))

	for _, id := range []string{"u1", "u2"} {
		msgs := sender.got(id)
		require.Len(t, msgs, 1, "user %s", id)
		assert.Equal(t, "Maintenance\n\nBack in an hour", msgs[0])
	}

	got, err := st.GetBroadcast(bc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BroadcastSent, got.Status)
}

func TestDrainPending_SkipsBannedUsers(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	require.NoError(t, st.CreateUser(&store.User{ID: "u2"}))
	require.NoError(t, st.SetUserStatus("u2", store.UserBanned))

	bc := &store.Broadcast{Message: "hello"}
	require.NoError(t, st.CreateBroadcast(bc))

	sender := newRecordingSender()
	require.NoError(t, New(st, sender, 1, zerolog.Nop()).DrainPending(context.Background()))

	assert.Len(t, sender.got("u1"), 1)
	assert.Empty(t, sender.got("u2"))
}

func TestDrainPending_PerUserFailureDoesNotAbort(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	require.NoError(t, st.CreateUser(&store.User{ID: "u2"}))

	bc := &store.Broadcast{Message: "hello"}
	require.NoError(t, st.CreateBroadcast(bc))

	sender := newRecordingSender()
	sender.failFor["u1"] = true
	require.NoError(t, New(st, sender, 4, zerolog.Nop()).DrainPending(context.Background()))

	assert.Len(t, sender.got("u2"), 1)

	got, err := st.GetBroadcast(bc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BroadcastSent, got.Status, "partial failure still completes the broadcast")
}

func TestDrainPending_NothingToDo(t *testing.T) {
	st := newTestStore(t)
	sender := newRecordingSender()
	require.NoError(t, New(st, sender, 1, zerolog.Nop()).DrainPending(context.Background()))
	assert.Empty(t, sender.sent)
}
