// Package dialog turns inbound chat messages into state transitions,
// activity commands and replies. The conversation position lives in a
// persisted state stack; the menu rendered with every reply always
// matches the stack top.
package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/focuslabs/focusbot/internal/activity"
	"github.com/focuslabs/focusbot/internal/audio"
	"github.com/focuslabs/focusbot/internal/metrics"
	"github.com/focuslabs/focusbot/internal/state"
	"github.com/focuslabs/focusbot/internal/stats"
	"github.com/focuslabs/focusbot/internal/store"
	"github.com/focuslabs/focusbot/internal/transport"
)

const (
	minSettingValue = 1
	maxSettingValue = 60
)

// AdminNotifier tells the admins a user wrote in through the contact
// form. Delivery is best effort; the contact row is already persisted
// when it is called.
type AdminNotifier interface {
	NotifyNewContact(ctx context.Context, from *store.User, message string)
}

// Interpreter processes one inbound message at a time per call. It is
// safe for concurrent use across different users; per-user ordering is
// the caller's responsibility.
type Interpreter struct {
	store    *store.Store
	manager  *activity.Manager
	reporter *stats.Reporter
	sender   *Sender
	admins   AdminNotifier
	catalog  *audio.Catalog
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewInterpreter creates an Interpreter. admins may be nil when nobody
// should be told about new contact messages.
func NewInterpreter(st *store.Store, mgr *activity.Manager, rep *stats.Reporter, snd *Sender, admins AdminNotifier, cat *audio.Catalog, mts *metrics.Metrics, logger zerolog.Logger) *Interpreter {
	return &Interpreter{
		store:    st,
		manager:  mgr,
		reporter: rep,
		sender:   snd,
		admins:   admins,
		catalog:  cat,
		metrics:  mts,
		logger:   logger.With().Str("component", "interpreter").Logger(),
	}
}

// HandleInbound processes one message end to end. Failures never
// propagate: the user gets a generic error reply and the turn is
// logged; a failure of that reply is only logged. Panics are contained
// the same way so a broken turn cannot take down the worker.
func (i *Interpreter) HandleInbound(ctx context.Context, in transport.Inbound) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if i.metrics != nil {
			i.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
			i.metrics.TurnDuration.Observe(time.Since(start).Seconds())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			i.logger.Error().Interface("panic", r).Str("user_id", in.UserID).Str("text", in.Text).Msg("turn panicked")
			i.sender.notify(ctx, in.UserID, msgInternalError)
		}
	}()

	user, err := i.ensureUser(in)
	if err != nil {
		outcome = "error"
		i.logger.Error().Err(err).Str("user_id", in.UserID).Msg("user lookup failed")
		return
	}

	if err := i.dispatch(ctx, user, strings.TrimSpace(in.Text)); err != nil {
		outcome = "error"
		i.logger.Error().Err(err).Str("user_id", user.ID).Str("text", in.Text).Msg("turn failed")
		if sendErr := i.sender.Send(ctx, user, msgInternalError); sendErr != nil {
			i.logger.Error().Err(sendErr).Str("user_id", user.ID).Msg("error reply failed")
		}
	}
}

// ensureUser loads the user, creating it with defaults and a default
// project on first contact. Any inbound message reactivates a banned
// user: writing to us proves the bot is unblocked.
func (i *Interpreter) ensureUser(in transport.Inbound) (*store.User, error) {
	user, err := i.store.GetUser(in.UserID)
	if err == nil {
		if user.Status != store.UserActive {
			if err := i.store.SetUserStatus(user.ID, store.UserActive); err != nil {
				return nil, err
			}
			user.Status = store.UserActive
		}
		return user, nil
	}

	user = &store.User{
		ID:        in.UserID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Username:  in.Username,
	}
	if err := i.store.CreateUser(user); err != nil {
		return nil, err
	}
	project, err := i.store.GetOrCreateProject(user.ID, store.DefaultProjectName)
	if err != nil {
		return nil, err
	}
	if err := i.store.SetCurrentProject(user.ID, project.ID); err != nil {
		return nil, err
	}
	return i.store.GetUser(user.ID)
}

func (i *Interpreter) dispatch(ctx context.Context, user *store.User, text string) error {
	current := user.Stack.Current()

	if text == btnBack && current != state.Idle {
		if _, err := user.Stack.Pop(); err != nil {
			return err
		}
		if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
			return err
		}
		return i.sender.Send(ctx, user, msgMenu)
	}

	if current != state.Idle {
		return i.handleStateful(ctx, user, current, text)
	}
	return i.handleIdle(ctx, user, text)
}

func (i *Interpreter) handleIdle(ctx context.Context, user *store.User, text string) error {
	switch {
	case text == "/start" || text == "/help" || text == btnHelp:
		return i.sender.Send(ctx, user, msgWelcome)

	case text == btnStartFocus:
		return i.startFocus(ctx, user)

	case text == btnStopFocus:
		if user.CurrentFocusID == "" {
			return i.sender.Send(ctx, user, msgNoFocus)
		}
		if _, _, err := i.manager.StopAll(ctx, user); err != nil {
			return err
		}
		return i.sender.Send(ctx, user, msgFocusStopped)

	case text == btnStartRest:
		return i.startRest(ctx, user)

	case text == btnStopRest:
		if user.CurrentFocusID != "" {
			return i.sender.Send(ctx, user, msgFocusInProgress)
		}
		if _, _, err := i.manager.StopAll(ctx, user); err != nil {
			return err
		}
		return i.sender.Send(ctx, user, msgRestStopped)

	case text == btnStats:
		return i.pushAndPrompt(ctx, user, state.Stats, msgStatsSelect)

	case text == btnContactUs || text == "/contact":
		return i.pushAndPrompt(ctx, user, state.Contact, msgContactUs)

	case text == btnAdmin && i.sender.IsAdmin(user.ID):
		return i.pushAndPrompt(ctx, user, state.Admin, msgAdmin)

	case strings.HasPrefix(text, btnProjects):
		return i.pushAndPrompt(ctx, user, state.Projects, msgListProjects)

	case text == btnSettings:
		return i.pushAndPrompt(ctx, user, state.Settings, msgSettings)
	}
	return i.sender.Send(ctx, user, msgUnknownCommand)
}

func (i *Interpreter) handleStateful(ctx context.Context, user *store.User, current state.State, text string) error {
	switch current {
	case state.Admin:
		if !i.sender.IsAdmin(user.ID) {
			return i.clearAndComplain(ctx, user)
		}
		return i.handleAdmin(ctx, user, text)
	case state.Stats:
		return i.handleStats(ctx, user, text)
	case state.Projects:
		return i.handleProjects(ctx, user, text)
	case state.NewProject:
		return i.setProject(ctx, user, text, true)
	case state.Contact:
		return i.handleContact(ctx, user, text)
	case state.Settings:
		return i.handleSettings(ctx, user, text)
	case state.SettingsFocusLen, state.SettingsRestLen, state.SettingsBigRestLen, state.SettingsSessions:
		return i.handleSettingValue(ctx, user, current, text)
	}
	// Unknown state in the stack: recover by resetting the dialogue.
	return i.clearAndComplain(ctx, user)
}

func (i *Interpreter) startFocus(ctx context.Context, user *store.User) error {
	inProgress, err := i.manager.StartFocus(ctx, user)
	if err != nil {
		return err
	}
	if inProgress {
		return i.sender.Send(ctx, user, msgFocusInProgress)
	}
	if err := i.sender.Send(ctx, user, msgFocusStarted); err != nil {
		return err
	}
	if entry, ok := i.catalog.Pick(); ok {
		// Music is a nice-to-have; a failed send must not fail the turn.
		if err := i.sender.SendAudio(ctx, user, entry.FileID, entry.Category); err != nil {
			i.logger.Warn().Err(err).Str("user_id", user.ID).Msg("focus music delivery failed")
		}
	}
	return nil
}

func (i *Interpreter) startRest(ctx context.Context, user *store.User) error {
	inProgress, interrupted, err := i.manager.StartRest(ctx, user)
	if err != nil {
		return err
	}
	if inProgress {
		return i.sender.Send(ctx, user, msgRestInProgress)
	}
	if interrupted {
		if err := i.sender.Send(ctx, user, msgFocusStopped); err != nil {
			return err
		}
	}
	return i.sender.Send(ctx, user, msgRestStarted)
}

func (i *Interpreter) handleAdmin(ctx context.Context, user *store.User, text string) error {
	switch text {
	case btnAdminStats:
		users, err := i.store.CountUsers()
		if err != nil {
			return err
		}
		focus, err := i.store.CountActivities(store.ActivityFocus, "")
		if err != nil {
			return err
		}
		rest, err := i.store.CountActivities(store.ActivityRest, "")
		if err != nil {
			return err
		}
		report := strings.Join([]string{
			fmt.Sprintf(msgAdminCountFmt, "users", users),
			fmt.Sprintf(msgAdminCountFmt, "focus intervals", focus),
			fmt.Sprintf(msgAdminCountFmt, "rests", rest),
		}, "\n")
		return i.sender.Send(ctx, user, report)

	case btnAdminActive:
		focus, err := i.store.CountActivities(store.ActivityFocus, store.ActivityStarted)
		if err != nil {
			return err
		}
		rest, err := i.store.CountActivities(store.ActivityRest, store.ActivityStarted)
		if err != nil {
			return err
		}
		return i.sender.Send(ctx, user, fmt.Sprintf(msgAdminActiveFmt, focus, rest))
	}
	return i.clearAndComplain(ctx, user)
}

func (i *Interpreter) handleStats(ctx context.Context, user *store.User, text string) error {
	var period stats.Period
	switch text {
	case btnStatsDay:
		period = stats.PeriodDay
	case btnStatsWeek:
		period = stats.PeriodWeek
	case btnStatsMonth:
		period = stats.PeriodMonth
	default:
		return i.clearAndComplain(ctx, user)
	}

	reports, err := i.reporter.Report(user.ID, period, time.Now())
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return i.sender.Send(ctx, user, msgNoStats)
	}
	for _, r := range reports {
		name := r.ProjectName
		if name == "" {
			name = store.DefaultProjectName
		}
		text := fmt.Sprintf(msgStatsFmt, period, name,
			r.Finished, r.Unfinished, r.InProgress, r.Total, r.TotalDuration)
		if err := i.sender.Send(ctx, user, text); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) handleProjects(ctx context.Context, user *store.User, text string) error {
	switch {
	case strings.HasPrefix(text, setProjectPrefix):
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, setProjectPrefix), currentProjectMarker))
		if name == "" {
			return i.sender.Send(ctx, user, msgUnknownCommand)
		}
		return i.setProject(ctx, user, name, false)
	case text == btnNewProject:
		return i.pushAndPrompt(ctx, user, state.NewProject, msgNewProject)
	}
	// Stray input keeps the user in the projects state.
	return i.sender.Send(ctx, user, msgUnknownCommand)
}

// setProject makes the named project current. Selecting from the list
// pops back one level; naming a brand-new project resets the dialogue
// to idle.
func (i *Interpreter) setProject(ctx context.Context, user *store.User, name string, clearStack bool) error {
	project, err := i.store.GetOrCreateProject(user.ID, name)
	if err != nil {
		return err
	}
	if err := i.store.SetCurrentProject(user.ID, project.ID); err != nil {
		return err
	}
	user.CurrentProjectID = project.ID

	if clearStack {
		user.Stack.Clear()
	} else if _, err := user.Stack.Pop(); err != nil {
		return err
	}
	if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
		return err
	}
	return i.sender.Send(ctx, user, fmt.Sprintf(msgProjectSetFmt, project.Name))
}

func (i *Interpreter) handleContact(ctx context.Context, user *store.User, text string) error {
	if err := i.store.CreateContact(&store.Contact{
		UserID:  user.ID,
		Message: text,
	}); err != nil {
		return err
	}
	if i.admins != nil {
		i.admins.NotifyNewContact(ctx, user, text)
	}
	if _, err := user.Stack.Pop(); err != nil {
		return err
	}
	if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
		return err
	}
	return i.sender.Send(ctx, user, msgContactSent)
}

func (i *Interpreter) handleSettings(ctx context.Context, user *store.User, text string) error {
	switch {
	case strings.HasPrefix(text, setFocusLenPrefix):
		return i.pushAndPrompt(ctx, user, state.SettingsFocusLen,
			fmt.Sprintf(msgAskFocusLenFmt, int(user.FocusLength.Minutes())))
	case strings.HasPrefix(text, setRestLenPrefix):
		return i.pushAndPrompt(ctx, user, state.SettingsRestLen,
			fmt.Sprintf(msgAskRestLenFmt, int(user.RestLength.Minutes())))
	case strings.HasPrefix(text, setBigRestLenPrefix):
		return i.pushAndPrompt(ctx, user, state.SettingsBigRestLen,
			fmt.Sprintf(msgAskBigRestFmt, int(user.BigRestLength.Minutes())))
	case strings.HasPrefix(text, setSessionCntPrefix):
		return i.pushAndPrompt(ctx, user, state.SettingsSessions,
			fmt.Sprintf(msgAskSessionFmt, user.SessionCount))
	}
	return i.sender.Send(ctx, user, msgUnknownCommand)
}

// handleSettingValue parses the numeric reply for one of the four
// settings states. Invalid input re-prompts and leaves the stack
// unchanged; valid input applies the value and pops.
func (i *Interpreter) handleSettingValue(ctx context.Context, user *store.User, current state.State, text string) error {
	value, err := strconv.Atoi(text)
	if err != nil || value < minSettingValue || value > maxSettingValue {
		errMsg := msgBadMinutes
		if current == state.SettingsSessions {
			errMsg = msgBadCount
		}
		return i.sender.Send(ctx, user, errMsg)
	}

	var confirm string
	switch current {
	case state.SettingsFocusLen:
		user.FocusLength = time.Duration(value) * time.Minute
		confirm = fmt.Sprintf(msgFocusLenSetFmt, value)
	case state.SettingsRestLen:
		user.RestLength = time.Duration(value) * time.Minute
		confirm = fmt.Sprintf(msgRestLenSetFmt, value)
	case state.SettingsBigRestLen:
		user.BigRestLength = time.Duration(value) * time.Minute
		confirm = fmt.Sprintf(msgBigRestSetFmt, value)
	case state.SettingsSessions:
		user.SessionCount = value
		confirm = fmt.Sprintf(msgSessionCntSetFmt, value)
	}

	if err := i.store.SetUserSettings(user.ID, user.FocusLength, user.RestLength, user.BigRestLength, user.SessionCount); err != nil {
		return err
	}
	if _, err := user.Stack.Pop(); err != nil {
		return err
	}
	if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
		return err
	}
	return i.sender.Send(ctx, user, confirm)
}

func (i *Interpreter) pushAndPrompt(ctx context.Context, user *store.User, s state.State, prompt string) error {
	user.Stack.Push(s)
	if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
		return err
	}
	return i.sender.Send(ctx, user, prompt)
}

func (i *Interpreter) clearAndComplain(ctx context.Context, user *store.User) error {
	user.Stack.Clear()
	if err := i.store.SetUserStack(user.ID, user.Stack); err != nil {
		return err
	}
	return i.sender.Send(ctx, user, msgUnknownCommand)
}
