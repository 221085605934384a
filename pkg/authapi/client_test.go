package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokens struct {
	mu sync.Mutex
	s  *Session
}

func (m *memoryTokens) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *memoryTokens) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func (m *memoryTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		grant := r.URL.Query().Get("grant_type")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch grant {
		case "password":
			if body["password"] != "hunter2" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
		case "refresh_token":
			if body["refresh_token"] != "refresh-1" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u1", "email": "sam@example.com"},
		})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSignInWithPassword(t *testing.T) {
	srv := newTestServer(t)
	tokens := &memoryTokens{}
	c := NewClient(srv.URL, "anon-key", tokens)

	s, err := c.SignInWithPassword(context.Background(), "sam@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "access-1", s.AccessToken)
	assert.False(t, s.Expired())

	// Session was persisted through the token store.
	saved, err := tokens.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "access-1", saved.AccessToken)
}

func TestSignInBadPassword(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, "anon-key", nil)

	_, err := c.SignInWithPassword(context.Background(), "sam@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSessionNilWhenSignedOut(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, "anon-key", &memoryTokens{})

	s, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionLoadedFromTokenStore(t *testing.T) {
	srv := newTestServer(t)
	tokens := &memoryTokens{s: &Session{
		AccessToken: "persisted",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        User{ID: "u1"},
	}}
	c := NewClient(srv.URL, "anon-key", tokens)

	s, err := c.Session(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "persisted", s.AccessToken)
}

func TestSessionRefreshesExpiredToken(t *testing.T) {
	srv := newTestServer(t)
	tokens := &memoryTokens{s: &Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		User:         User{ID: "u1"},
	}}
	c := NewClient(srv.URL, "anon-key", tokens)

	s, err := c.Session(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "access-1", s.AccessToken)
}

func TestRefreshSession(t *testing.T) {
	srv := newTestServer(t)
	tokens := &memoryTokens{s: &Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         User{ID: "u1"},
	}}
	c := NewClient(srv.URL, "anon-key", tokens)

	s, err := c.RefreshSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "access-1", s.AccessToken, "refresh happens even before expiry")

	saved, _ := tokens.Load()
	assert.Equal(t, "access-1", saved.AccessToken)
}

func TestRefreshSessionWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, "anon-key", &memoryTokens{})

	s, err := c.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignOutClearsAndNotifies(t *testing.T) {
	srv := newTestServer(t)
	tokens := &memoryTokens{}
	c := NewClient(srv.URL, "anon-key", tokens)

	var events []*Session
	unsubscribe := c.OnSessionChange(func(s *Session) { events = append(events, s) })

	_, err := c.SignInWithPassword(context.Background(), "sam@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(context.Background()))

	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])

	saved, _ := tokens.Load()
	assert.Nil(t, saved)

	s, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)

	// After unsubscribe no further events arrive.
	unsubscribe()
	_, err = c.SignInWithPassword(context.Background(), "sam@example.com", "hunter2")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestOAuthURL(t *testing.T) {
	c := NewClient("https://auth.example.com", "anon-key", nil)

	u := c.OAuthURL("google", "https://app.example.com/callback")
	assert.Equal(t, "https://auth.example.com/authorize?provider=google&redirect_to=https%3A%2F%2Fapp.example.com%2Fcallback", u)

	u = c.OAuthURL("github", "")
	assert.Equal(t, "https://auth.example.com/authorize?provider=github", u)
}
