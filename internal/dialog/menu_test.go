package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focuslabs/focusbot/internal/state"
	"github.com/focuslabs/focusbot/internal/store"
)

func menuUser() *store.User {
	return &store.User{
		ID:               "u1",
		FocusLength:      25 * time.Minute,
		RestLength:       5 * time.Minute,
		BigRestLength:    15 * time.Minute,
		SessionCount:     4,
		CurrentProjectID: "p1",
	}
}

func TestRenderMenu_Idle(t *testing.T) {
	u := menuUser()
	projects := []*store.Project{{ID: "p1", Name: "default"}}

	m := RenderMenu(u, projects, false)
	require.Len(t, m.Rows, 3)
	assert.Equal(t, btnStartFocus, m.Rows[0][0].Text)
	assert.Equal(t, btnStartRest, m.Rows[0][1].Text)
	assert.Equal(t, btnProjects+": default", m.Rows[1][0].Text)
	assert.Equal(t, btnStats, m.Rows[1][1].Text)
}

func TestRenderMenu_IdleWithRunningFocus(t *testing.T) {
	u := menuUser()
	u.CurrentFocusID = "a1"

	m := RenderMenu(u, nil, false)
	assert.Equal(t, btnStopFocus, m.Rows[0][0].Text)
	assert.Equal(t, btnStartRest, m.Rows[0][1].Text)
}

func TestRenderMenu_IdleWithRunningRest(t *testing.T) {
	u := menuUser()
	u.CurrentRestID = "a1"

	m := RenderMenu(u, nil, false)
	assert.Equal(t, btnStartFocus, m.Rows[0][0].Text)
	assert.Equal(t, btnStopRest, m.Rows[0][1].Text)
}

func TestRenderMenu_AdminRowOnlyForAdmins(t *testing.T) {
	u := menuUser()

	m := RenderMenu(u, nil, true)
	require.Len(t, m.Rows, 4)
	assert.Equal(t, btnAdmin, m.Rows[3][0].Text)

	m = RenderMenu(u, nil, false)
	assert.Len(t, m.Rows, 3)
}

func TestRenderMenu_AdminStateForNonAdminFallsBack(t *testing.T) {
	u := menuUser()
	u.Stack = state.Stack{state.Admin}

	m := RenderMenu(u, nil, false)
	// Menu degrades to the idle layout rather than exposing admin rows.
	assert.Equal(t, btnStartFocus, m.Rows[0][0].Text)
}

func TestRenderMenu_Stats(t *testing.T) {
	u := menuUser()
	u.Stack = state.Stack{state.Stats}

	m := RenderMenu(u, nil, false)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, []string{btnStatsDay, btnStatsWeek, btnStatsMonth},
		[]string{m.Rows[0][0].Text, m.Rows[0][1].Text, m.Rows[0][2].Text})
	assert.Equal(t, btnBack, m.Rows[1][0].Text)
}

func TestRenderMenu_Settings(t *testing.T) {
	u := menuUser()
	u.Stack = state.Stack{state.Settings}

	m := RenderMenu(u, nil, false)
	require.Len(t, m.Rows, 5)
	assert.Equal(t, setFocusLenPrefix+"25", m.Rows[0][0].Text)
	assert.Equal(t, setRestLenPrefix+"5", m.Rows[1][0].Text)
	assert.Equal(t, setBigRestLenPrefix+"15", m.Rows[2][0].Text)
	assert.Equal(t, setSessionCntPrefix+"4", m.Rows[3][0].Text)
}

func TestRenderMenu_ProjectsChunksAndMarksCurrent(t *testing.T) {
	u := menuUser()
	u.Stack = state.Stack{state.Projects}
	projects := []*store.Project{
		{ID: "p1", Name: "default"},
		{ID: "p2", Name: "thesis"},
		{ID: "p3", Name: "garden"},
	}

	m := RenderMenu(u, projects, false)
	require.Len(t, m.Rows, 3, "two project rows plus the control row")
	assert.Equal(t, setProjectPrefix+" default"+currentProjectMarker, m.Rows[0][0].Text)
	assert.Equal(t, setProjectPrefix+" thesis", m.Rows[0][1].Text)
	assert.Equal(t, setProjectPrefix+" garden", m.Rows[1][0].Text)
	assert.Equal(t, btnNewProject, m.Rows[2][0].Text)
	assert.Equal(t, btnBack, m.Rows[2][1].Text)
}

func TestRenderMenu_PromptStatesShowOnlyBack(t *testing.T) {
	for _, s := range []state.State{
		state.Contact, state.NewProject,
		state.SettingsFocusLen, state.SettingsRestLen,
		state.SettingsBigRestLen, state.SettingsSessions,
	} {
		u := menuUser()
		u.Stack = state.Stack{s}
		m := RenderMenu(u, nil, false)
		require.Len(t, m.Rows, 1, "state %s", s)
		assert.Equal(t, btnBack, m.Rows[0][0].Text, "state %s", s)
	}
}
