package dialog

import (
	"strconv"
	"time"

	"github.com/focuslabs/focusbot/internal/state"
	"github.com/focuslabs/focusbot/internal/store"
	"github.com/focuslabs/focusbot/internal/transport"
)

var backRow = []transport.Button{{Text: btnBack}}

func minutesOf(d time.Duration) string {
	return strconv.Itoa(int(d.Minutes()))
}

// RenderMenu builds the reply keyboard for the user's current dialogue
// state. Pure: it only reads its arguments. Projects are expected in
// display order; the user's current project gets a marker.
func RenderMenu(user *store.User, projects []*store.Project, isAdmin bool) *transport.Menu {
	switch user.Stack.Current() {
	case state.Admin:
		if !isAdmin {
			break
		}
		return &transport.Menu{Rows: [][]transport.Button{
			{{Text: btnAdminStats}, {Text: btnAdminActive}},
			backRow,
		}}
	case state.Stats:
		return &transport.Menu{Rows: [][]transport.Button{
			{{Text: btnStatsDay}, {Text: btnStatsWeek}, {Text: btnStatsMonth}},
			backRow,
		}}
	case state.Contact, state.NewProject,
		state.SettingsFocusLen, state.SettingsRestLen,
		state.SettingsBigRestLen, state.SettingsSessions:
		return &transport.Menu{Rows: [][]transport.Button{backRow}}
	case state.Projects:
		return projectsMenu(user, projects)
	case state.Settings:
		return &transport.Menu{Rows: [][]transport.Button{
			{{Text: setFocusLenPrefix + minutesOf(user.FocusLength)}},
			{{Text: setRestLenPrefix + minutesOf(user.RestLength)}},
			{{Text: setBigRestLenPrefix + minutesOf(user.BigRestLength)}},
			{{Text: setSessionCntPrefix + strconv.Itoa(user.SessionCount)}},
			backRow,
		}}
	}
	return idleMenu(user, projects, isAdmin)
}

func idleMenu(user *store.User, projects []*store.Project, isAdmin bool) *transport.Menu {
	var first []transport.Button
	if user.CurrentFocusID != "" {
		first = []transport.Button{{Text: btnStopFocus}, {Text: btnStartRest}}
	} else {
		first = []transport.Button{{Text: btnStartFocus}}
		if user.CurrentRestID != "" {
			first = append(first, transport.Button{Text: btnStopRest})
		} else {
			first = append(first, transport.Button{Text: btnStartRest})
		}
	}

	projectsLabel := btnProjects
	if name := currentProjectName(user, projects); name != "" {
		projectsLabel += ": " + name
	}

	rows := [][]transport.Button{
		first,
		{{Text: projectsLabel}, {Text: btnStats}},
		{{Text: btnHelp}, {Text: btnContactUs}, {Text: btnSettings}},
	}
	if isAdmin {
		rows = append(rows, []transport.Button{{Text: btnAdmin}})
	}
	return &transport.Menu{Rows: rows}
}

func projectsMenu(user *store.User, projects []*store.Project) *transport.Menu {
	var rows [][]transport.Button

	// Two project buttons per row.
	var row []transport.Button
	for _, p := range projects {
		text := setProjectPrefix + " " + p.Name
		if p.ID == user.CurrentProjectID {
			text += currentProjectMarker
		}
		row = append(row, transport.Button{Text: text})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []transport.Button{{Text: btnNewProject}, {Text: btnBack}})
	return &transport.Menu{Rows: rows}
}

func currentProjectName(user *store.User, projects []*store.Project) string {
	for _, p := range projects {
		if p.ID == user.CurrentProjectID {
			return p.Name
		}
	}
	return ""
}
