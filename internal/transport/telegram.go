package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

const telegramName = "telegram"

// Telegram is both sides of the Telegram Bot API: a long-polling
// getUpdates source and a sendMessage/sendAudio transport. No webhook
// needed.
type Telegram struct {
	token   string
	baseURL string
	offset  int
	timeout int // long-poll timeout in seconds
	out     chan<- Inbound
	client  *http.Client
	logger  zerolog.Logger
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// TelegramWithPollTimeout sets the getUpdates long-poll timeout.
func TelegramWithPollTimeout(secs int) TelegramOption {
	return func(t *Telegram) { t.timeout = secs }
}

// TelegramWithBaseURL overrides the API endpoint, for tests.
func TelegramWithBaseURL(u string) TelegramOption {
	return func(t *Telegram) { t.baseURL = u }
}

// NewTelegram creates a Telegram adapter. Inbound messages are pushed
// into out while Run is active.
func NewTelegram(token string, out chan<- Inbound, logger zerolog.Logger, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:   token,
		baseURL: "https://api.telegram.org/bot" + token,
		timeout: 30,
		out:     out,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Telegram) Name() string { return telegramName }

// Run long-polls getUpdates until the context is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Error().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= t.offset {
				t.offset = upd.UpdateID + 1
			}
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}

			in := Inbound{
				Transport: telegramName,
				UserID:    strconv.FormatInt(upd.Message.From.ID, 10),
				FirstName: upd.Message.From.FirstName,
				LastName:  upd.Message.From.LastName,
				Username:  upd.Message.From.Username,
				Text:      upd.Message.Text,
			}
			select {
			case t.out <- in:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Send delivers text to the user's private chat. The menu becomes a
// reply keyboard; a nil menu removes the keyboard.
func (t *Telegram) Send(ctx context.Context, userID, text string, menu *Menu) error {
	payload := map[string]any{
		"chat_id": userID,
		"text":    text,
	}
	if menu != nil {
		keyboard := make([][]tgKeyboardButton, 0, len(menu.Rows))
		for _, row := range menu.Rows {
			buttons := make([]tgKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgKeyboardButton{Text: b.Text})
			}
			keyboard = append(keyboard, buttons)
		}
		payload["reply_markup"] = tgReplyKeyboard{Keyboard: keyboard, ResizeKeyboard: true}
	} else {
		payload["reply_markup"] = map[string]bool{"remove_keyboard": true}
	}
	return t.call(ctx, "sendMessage", payload)
}

// SendAudio sends an already-uploaded audio file by its file ID.
func (t *Telegram) SendAudio(ctx context.Context, userID, fileID, caption string) error {
	return t.call(ctx, "sendAudio", map[string]any{
		"chat_id": userID,
		"audio":   fileID,
		"caption": caption,
	})
}

// ---- Telegram API wire types ----

type tgGetUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message,omitempty"`
}

type tgMessage struct {
	MessageID int    `json:"message_id"`
	From      tgUser `json:"from"`
	Chat      tgChat `json:"chat"`
	Text      string `json:"text"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgKeyboardButton struct {
	Text string `json:"text"`
}

type tgReplyKeyboard struct {
	Keyboard       [][]tgKeyboardButton `json:"keyboard"`
	ResizeKeyboard bool                 `json:"resize_keyboard"`
}

type tgAPIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{
		"offset":          []string{strconv.Itoa(t.offset)},
		"timeout":         []string{strconv.Itoa(t.timeout)},
		"allowed_updates": []string{`["message"]`},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result tgGetUpdatesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram api returned ok=false")
	}
	return result.Result, nil
}

func (t *Telegram) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &botErrors.TransportError{Transport: telegramName, Message: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var apiResp tgAPIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if apiResp.OK {
		return nil
	}

	// 403 means the user blocked the bot.
	if apiResp.ErrorCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", apiResp.Description, botErrors.ErrRecipientBlocked)
	}
	return botErrors.NewTransportError(telegramName, apiResp.ErrorCode, apiResp.Description)
}
