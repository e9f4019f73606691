// Package state implements the per-user dialogue state stack.
// The topmost entry determines how the next inbound message is
// interpreted; an empty stack means the idle/home state.
package state

import (
	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// State names a dialogue context. The zero value means idle.
type State string

// Recognized dialogue states.
const (
	Idle               State = ""
	Admin              State = "admin"
	Stats              State = "stats"
	Projects           State = "projects"
	NewProject         State = "new_project"
	Contact            State = "contact"
	Settings           State = "settings"
	SettingsFocusLen   State = "settings_focus_length"
	SettingsRestLen    State = "settings_rest_length"
	SettingsBigRestLen State = "settings_big_rest_length"
	SettingsSessions   State = "settings_session_count"
)

// Known reports whether s is a recognized dialogue state. The
// interpreter clears the stack when it encounters an unknown value
// (e.g. a state persisted by an older build).
func (s State) Known() bool {
	switch s {
	case Admin, Stats, Projects, NewProject, Contact, Settings,
		SettingsFocusLen, SettingsRestLen, SettingsBigRestLen, SettingsSessions:
		return true
	}
	return false
}

// Stack is an ordered sequence of states, last element on top.
// It serializes as a plain JSON array, so it round-trips through the
// user record's state column unchanged.
type Stack []State

// Push appends s on top of the stack. Duplicates are allowed.
func (st *Stack) Push(s State) {
	*st = append(*st, s)
}

// Pop removes and returns the top state. Callers must branch on
// Current() first; popping an empty stack returns ErrEmptyStack.
func (st *Stack) Pop() (State, error) {
	if len(*st) == 0 {
		return Idle, botErrors.ErrEmptyStack
	}
	top := (*st)[len(*st)-1]
	*st = (*st)[:len(*st)-1]
	return top, nil
}

// Clear empties the stack, returning the user to idle.
func (st *Stack) Clear() {
	*st = (*st)[:0]
}

// Current peeks the top state without mutating. Idle means empty.
func (st Stack) Current() State {
	if len(st) == 0 {
		return Idle
	}
	return st[len(st)-1]
}

// Depth returns the number of states on the stack.
func (st Stack) Depth() int { return len(st) }
