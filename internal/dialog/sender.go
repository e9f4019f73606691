package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/metrics"
	"github.com/focuslabs/focusbot/internal/retry"
	"github.com/focuslabs/focusbot/internal/store"
	"github.com/focuslabs/focusbot/internal/transport"
)

// Sender delivers replies with the menu for the user's current state
// attached. A blocked recipient is marked banned instead of failing the
// turn; delivery goes through the retry policy for transient transport
// errors.
type Sender struct {
	store     *store.Store
	transport transport.Transport
	metrics   *metrics.Metrics
	adminIDs  map[string]bool
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// NewSender creates a Sender.
func NewSender(st *store.Store, tr transport.Transport, mts *metrics.Metrics, adminIDs map[string]bool, logger zerolog.Logger) *Sender {
	return &Sender{
		store:     st,
		transport: tr,
		metrics:   mts,
		adminIDs:  adminIDs,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.With().Str("component", "sender").Logger(),
	}
}

// IsAdmin reports whether the user is on the admin allow-list.
func (s *Sender) IsAdmin(userID string) bool {
	return s.adminIDs[userID]
}

// Send delivers text to the user with the current menu attached.
func (s *Sender) Send(ctx context.Context, user *store.User, text string) error {
	projects, err := s.store.ListProjects(user.ID)
	if err != nil {
		return err
	}
	menu := RenderMenu(user, projects, s.IsAdmin(user.ID))
	return s.deliver(ctx, user, func(ctx context.Context) error {
		return s.transport.Send(ctx, user.ID, text, menu)
	})
}

// SendAudio delivers an audio attachment without a menu.
func (s *Sender) SendAudio(ctx context.Context, user *store.User, fileID, caption string) error {
	return s.deliver(ctx, user, func(ctx context.Context) error {
		return s.transport.SendAudio(ctx, user.ID, fileID, caption)
	})
}

func (s *Sender) deliver(ctx context.Context, user *store.User, send func(ctx context.Context) error) error {
	err := retry.Do(ctx, s.retryCfg, send)

	status := "ok"
	switch {
	case errors.Is(err, botErrors.ErrRecipientBlocked):
		status = "blocked"
		if banErr := s.store.SetUserStatus(user.ID, store.UserBanned); banErr != nil {
			s.logger.Error().Err(banErr).Str("user_id", user.ID).Msg("marking blocked user failed")
		} else {
			s.logger.Info().Str("user_id", user.ID).Msg("recipient blocked the bot, user banned")
		}
		err = nil
	case err != nil:
		status = "error"
	}

	if s.metrics != nil {
		s.metrics.MessagesSent.WithLabelValues(s.transport.Name(), status).Inc()
	}
	return err
}

// The three notifications below back the auto-finish callback; they
// reload the user so the menu reflects the already-cleared pointer.

func (s *Sender) NotifyFocusFinished(ctx context.Context, userID string) {
	s.notify(ctx, userID, msgFocusEnded)
}

func (s *Sender) NotifyRestFinished(ctx context.Context, userID string) {
	s.notify(ctx, userID, msgRestEnded)
}

func (s *Sender) NotifyFirstFocus(ctx context.Context, userID string) {
	s.notify(ctx, userID, msgFirstFocus)
}

// NotifyNewContact forwards a contact message to every configured admin
// who has talked to the bot. Admins who never wrote to the bot have no
// user record and are skipped.
func (s *Sender) NotifyNewContact(ctx context.Context, from *store.User, message string) {
	name := from.Name()
	if name == "" {
		name = from.ID
	}
	text := fmt.Sprintf(msgNewContactFmt, name, message)
	for adminID := range s.adminIDs {
		if adminID == from.ID {
			continue
		}
		s.notify(ctx, adminID, text)
	}
}

func (s *Sender) notify(ctx context.Context, userID, text string) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("notify user lookup failed")
		return
	}
	if user.Status != store.UserActive {
		return
	}
	if err := s.Send(ctx, user, text); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("notification delivery failed")
	}
}
