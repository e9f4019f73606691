package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

type tgServer struct {
	mu       sync.Mutex
	requests []map[string]any
	updates  string // canned getUpdates body
	reply    func(method string) (int, string)
	srv      *httptest.Server
}

func newTGServer(t *testing.T) *tgServer {
	t.Helper()
	s := &tgServer{updates: `{"ok":true,"result":[]}`}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, s.updates)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		s.mu.Lock()
		s.requests = append(s.requests, payload)
		reply := s.reply
		s.mu.Unlock()

		if reply != nil {
			code, resp := reply(r.URL.Path)
			w.WriteHeader(code)
			io.WriteString(w, resp)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *tgServer) lastRequest(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func newTestTelegram(s *tgServer, out chan<- Inbound) *Telegram {
	return NewTelegram("test-token", out, zerolog.Nop(),
		TelegramWithBaseURL(s.srv.URL), TelegramWithPollTimeout(0))
}

func TestTelegramSend_ReplyKeyboard(t *testing.T) {
	s := newTGServer(t)
	tg := newTestTelegram(s, nil)

	menu := &Menu{Rows: [][]Button{
		{{Text: "a"}, {Text: "b"}},
		{{Text: "c"}},
	}}
	require.NoError(t, tg.Send(context.Background(), "42", "hello", menu))

	req := s.lastRequest(t)
	assert.Equal(t, "42", req["chat_id"])
	assert.Equal(t, "hello", req["text"])

	markup, ok := req["reply_markup"].(map[string]any)
	require.True(t, ok)
	keyboard, ok := markup["keyboard"].([]any)
	require.True(t, ok)
	assert.Len(t, keyboard, 2)
	assert.Equal(t, true, markup["resize_keyboard"])
}

func TestTelegramSend_NilMenuRemovesKeyboard(t *testing.T) {
	s := newTGServer(t)
	tg := newTestTelegram(s, nil)

	require.NoError(t, tg.Send(context.Background(), "42", "hello", nil))

	markup, ok := s.lastRequest(t)["reply_markup"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, markup["remove_keyboard"])
}

func TestTelegramSend_BlockedMapsToSentinel(t *testing.T) {
	s := newTGServer(t)
	s.reply = func(string) (int, string) {
		return http.StatusOK, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	}
	tg := newTestTelegram(s, nil)

	err := tg.Send(context.Background(), "42", "hello", nil)
	assert.ErrorIs(t, err, botErrors.ErrRecipientBlocked)
}

func TestTelegramSend_RateLimitIsRetryable(t *testing.T) {
	s := newTGServer(t)
	s.reply = func(string) (int, string) {
		return http.StatusOK, `{"ok":false,"error_code":429,"description":"Too Many Requests"}`
	}
	tg := newTestTelegram(s, nil)

	err := tg.Send(context.Background(), "42", "hello", nil)
	require.Error(t, err)
	assert.True(t, botErrors.IsRetryable(err))
}

func TestTelegramSendAudio(t *testing.T) {
	s := newTGServer(t)
	tg := newTestTelegram(s, nil)

	require.NoError(t, tg.SendAudio(context.Background(), "42", "file123", "lofi"))

	req := s.lastRequest(t)
	assert.Equal(t, "file123", req["audio"])
	assert.Equal(t, "lofi", req["caption"])
}

func TestTelegramRun_EmitsInbound(t *testing.T) {
	s := newTGServer(t)
	s.updates = `{"ok":true,"result":[
		{"update_id":7,"message":{"message_id":1,"from":{"id":42,"first_name":"Ada","last_name":"L","username":"ada"},"chat":{"id":42},"text":"/start"}},
		{"update_id":8}
	]}`

	out := make(chan Inbound, 4)
	tg := newTestTelegram(s, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tg.Run(ctx)

	select {
	case in := <-out:
		assert.Equal(t, "telegram", in.Transport)
		assert.Equal(t, "42", in.UserID)
		assert.Equal(t, "Ada", in.FirstName)
		assert.Equal(t, "/start", in.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound message emitted")
	}
}
