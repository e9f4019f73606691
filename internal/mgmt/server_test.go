package mgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focuslabs/focusbot/internal/store"
)

func newTestServer(t *testing.T, auth AuthConfig) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "mgmt-test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := NewServer(ServerConfig{Auth: auth}, st, nil, nil, nil, zerolog.Nop())
	return srv, st
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestProbes_OpenWithoutAuth(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{Mode: AuthAPIKey, APIKey: "secret"})

	resp, body := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = doRequest(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_APIKey(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{Mode: AuthAPIKey, APIKey: "secret"})

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/v1/users", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/v1/users", "secret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_JWT(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{Mode: AuthJWT, JWTSecret: "jwt-secret"})

	good, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/v1/users", good, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/v1/users", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/v1/users", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUsersEndpoints(t *testing.T) {
	srv, st := newTestServer(t, AuthConfig{Mode: AuthNone})
	require.NoError(t, st.CreateUser(&store.User{ID: "u1", FirstName: "Ada", Username: "ada"}))

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, body = doRequest(t, srv, http.MethodGet, "/api/v1/users/u1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", body["name"])
	assert.EqualValues(t, 25, body["focus_minutes"])

	resp, body = doRequest(t, srv, http.MethodGet, "/api/v1/users/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["type"])
}

func TestSummary(t *testing.T) {
	srv, st := newTestServer(t, AuthConfig{Mode: AuthNone})
	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	require.NoError(t, st.CreateActivity(&store.Activity{
		ID: "a1", UserID: "u1", Kind: store.ActivityFocus, StartedAt: time.Now(), Duration: 25 * time.Minute,
	}))

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/summary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["users"])
	assert.EqualValues(t, 1, body["focus"])
	assert.EqualValues(t, 1, body["active_focus"])
	assert.EqualValues(t, 0, body["rests"])
}

func TestActivitiesFilter(t *testing.T) {
	srv, st := newTestServer(t, AuthConfig{Mode: AuthNone})
	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	require.NoError(t, st.CreateActivity(&store.Activity{
		ID: "a1", UserID: "u1", Kind: store.ActivityFocus, StartedAt: time.Now(), Duration: 25 * time.Minute,
	}))
	require.NoError(t, st.CreateActivity(&store.Activity{
		ID: "a2", UserID: "u1", Kind: store.ActivityRest, StartedAt: time.Now(), Duration: 5 * time.Minute,
	}))

	resp, body := doRequest(t, srv, http.MethodGet, "/api/v1/activities?kind=rest", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

type captureAnswerer struct {
	userID string
	text   string
}

func (a *captureAnswerer) Send(_ context.Context, user *store.User, text string) error {
	a.userID = user.ID
	a.text = text
	return nil
}

func TestContactAnswerFlow(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "mgmt-contact.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	answerer := &captureAnswerer{}
	srv := NewServer(ServerConfig{Auth: AuthConfig{Mode: AuthNone}}, st, nil, nil, answerer, zerolog.Nop())

	require.NoError(t, st.CreateUser(&store.User{ID: "u1"}))
	contact := &store.Contact{UserID: "u1", Message: "please add dark mode"}
	require.NoError(t, st.CreateContact(contact))

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/v1/contacts/"+contact.ID+"/answer", "",
		map[string]string{"answer": "it is coming"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := st.GetContact(contact.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ContactAnswered, got.Status)
	assert.Equal(t, "it is coming", got.Answer)

	assert.Equal(t, "u1", answerer.userID)
	assert.Equal(t, "it is coming", answerer.text)

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/contacts/nope/answer", "",
		map[string]string{"answer": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/contacts/"+contact.ID+"/answer", "",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBroadcastEndpoints(t *testing.T) {
	srv, st := newTestServer(t, AuthConfig{Mode: AuthNone})

	resp, body := doRequest(t, srv, http.MethodPost, "/api/v1/broadcasts", "",
		map[string]string{"title": "Maint", "message": "back soon"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, store.BroadcastSending, body["status"])

	resp, body = doRequest(t, srv, http.MethodGet, "/api/v1/broadcasts/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "back soon", body["message"])

	b, err := st.GetBroadcast(id)
	require.NoError(t, err)
	assert.Equal(t, store.BroadcastSending, b.Status)

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/v1/broadcasts", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
