package transport

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

const slackName = "slack"

// SlackAPI abstracts the Slack API client for testing.
type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	AuthTest() (*slack.AuthTestResponse, error)
}

// Slack adapts the bot to Slack via Socket Mode. Users talk to the bot
// in direct messages; non-DM channels must be explicitly allow-listed,
// anything else is ignored. Slack has no reply keyboards, so the menu
// is rendered as a compact command footer under each reply.
type Slack struct {
	api     SlackAPI
	socket  *socketmode.Client
	out     chan<- Inbound
	allowed map[string]bool

	mu        sync.Mutex
	ims       map[string]string // user ID -> IM channel ID
	botUserID string

	logger zerolog.Logger
}

// NewSlack creates a Slack adapter.
func NewSlack(botToken, appToken string, allowedChannels []string, out chan<- Inbound, logger zerolog.Logger) *Slack {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))

	allowed := make(map[string]bool, len(allowedChannels))
	for _, ch := range allowedChannels {
		allowed[ch] = true
	}

	return &Slack{
		api:     api,
		socket:  socketmode.New(api),
		out:     out,
		allowed: allowed,
		ims:     make(map[string]string),
		logger:  logger.With().Str("component", "slack").Logger(),
	}
}

func (s *Slack) Name() string { return slackName }

// Run starts the Socket Mode event loop and blocks until the context
// is cancelled.
func (s *Slack) Run(ctx context.Context) error {
	auth, err := s.api.AuthTest()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.botUserID = auth.UserID
	s.mu.Unlock()

	go func() {
		for evt := range s.socket.Events {
			s.handleEvent(ctx, evt)
		}
	}()

	return s.socket.RunContext(ctx)
}

func (s *Slack) handleEvent(ctx context.Context, evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	// Slack requires the ack within 3 seconds.
	if evt.Request != nil {
		s.socket.Ack(*evt.Request)
	}

	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok || apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if ev.BotID != "" || ev.User == "" || ev.User == s.botUser() {
		return
	}
	if ev.ChannelType != "im" && !s.allowed[ev.Channel] {
		return // fail closed on unknown channels
	}

	if ev.ChannelType == "im" {
		s.mu.Lock()
		s.ims[ev.User] = ev.Channel
		s.mu.Unlock()
	}

	in := Inbound{
		Transport: slackName,
		UserID:    ev.User,
		Text:      strings.TrimSpace(ev.Text),
	}
	select {
	case s.out <- in:
	case <-ctx.Done():
	}
}

// Send posts text to the user's DM channel, with the menu rendered as
// a footer of available commands.
func (s *Slack) Send(ctx context.Context, userID, text string, menu *Menu) error {
	channel, err := s.imChannel(userID)
	if err != nil {
		return err
	}

	if menu != nil {
		if footer := menuFooter(menu); footer != "" {
			text += "\n\n" + footer
		}
	}

	_, _, err = s.api.PostMessage(channel, slack.MsgOptionText(text, false))
	return s.mapError(err)
}

// SendAudio posts the track reference as text; Slack cannot replay
// another provider's file IDs.
func (s *Slack) SendAudio(ctx context.Context, userID, fileID, caption string) error {
	channel, err := s.imChannel(userID)
	if err != nil {
		return err
	}
	_, _, err = s.api.PostMessage(channel, slack.MsgOptionText("🎵 "+caption, false))
	return s.mapError(err)
}

func (s *Slack) botUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.botUserID
}

func (s *Slack) imChannel(userID string) (string, error) {
	s.mu.Lock()
	if ch, ok := s.ims[userID]; ok {
		s.mu.Unlock()
		return ch, nil
	}
	s.mu.Unlock()

	channel, _, _, err := s.api.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", s.mapError(err)
	}

	s.mu.Lock()
	s.ims[userID] = channel.ID
	s.mu.Unlock()
	return channel.ID, nil
}

func (s *Slack) mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "user_not_found"), strings.Contains(msg, "channel_not_found"),
		strings.Contains(msg, "is_archived"):
		return botErrors.ErrRecipientBlocked
	case strings.Contains(msg, "rate_limited"), strings.Contains(msg, "ratelimited"):
		return botErrors.ErrRateLimit
	}
	return &botErrors.TransportError{Transport: slackName, Message: msg, Err: err}
}

func menuFooter(menu *Menu) string {
	var labels []string
	for _, row := range menu.Rows {
		for _, b := range row {
			labels = append(labels, b.Text)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	return "Commands: " + strings.Join(labels, " | ")
}
