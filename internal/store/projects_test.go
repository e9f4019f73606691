package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_GetOrCreate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	p1, err := s.GetOrCreateProject("u1", "Work")
	require.NoError(t, err)
	assert.NotEmpty(t, p1.ID)

	// Same name returns the existing project.
	p2, err := s.GetOrCreateProject("u1", "Work")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	// Names are scoped per user.
	p3, err := s.GetOrCreateProject("u2", "Work")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p3.ID)
}

func TestProject_ListOrderedByTotals(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(&User{ID: "u1"}))

	idle, err := s.GetOrCreateProject("u1", "idle")
	require.NoError(t, err)
	busy, err := s.GetOrCreateProject("u1", "busy")
	require.NoError(t, err)
	_ = idle

	for i := 0; i < 2; i++ {
		newFocusActivity(t, s, "u1", busy.ID)
	}

	projects, err := s.ListProjects("u1")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "busy", projects[0].Name)
	assert.Equal(t, 2, projects[0].TotalFocus)
}
