// Package authapi wraps the hosted authentication service: password and
// OAuth sign-in, session retrieval, sign-out, and session-change
// notifications. Sessions persist across restarts through a TokenStore.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// User is the authenticated identity returned by the auth service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session holds the tokens and identity of a signed-in user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has passed its expiry.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// TokenStore persists the session across process restarts.
type TokenStore interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// Client defines the auth service operations used by this application.
type Client interface {
	// Session returns the current session, nil when signed out.
	Session(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// RefreshSession forces a token refresh regardless of expiry. It
	// returns nil when there is no session to refresh.
	RefreshSession(ctx context.Context) (*Session, error)
	// OAuthURL builds the federated sign-in redirect URL for a provider.
	OAuthURL(provider, redirectTo string) string
	SignOut(ctx context.Context) error
	// OnSessionChange registers a callback fired after sign-in, refresh,
	// and sign-out. The returned func unsubscribes.
	OnSessionChange(fn func(*Session)) func()
}

// ClientOption configures the auth client.
type ClientOption func(*httpClient)

// WithHTTPClient overrides the transport used for API calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) { c.hc = hc }
}

// WithRateLimit overrides the default request throttle (10 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
	tokens  TokenStore

	mu      sync.Mutex
	session *Session
	subs    map[int]func(*Session)
	nextSub int
}

// NewClient creates an auth client for the service at baseURL. The
// TokenStore may be nil, in which case sessions live only in memory.
func NewClient(baseURL, apiKey string, tokens TokenStore, opts ...ClientOption) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(10, 10),
		tokens:  tokens,
		subs:    map[int]func(*Session){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) Session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil && c.tokens != nil {
		loaded, err := c.tokens.Load()
		if err != nil {
			return nil, eris.Wrap(err, "authapi: load session")
		}
		s = loaded
	}
	if s == nil {
		return nil, nil
	}
	if s.Expired() {
		if s.RefreshToken == "" {
			return nil, nil
		}
		refreshed, err := c.refresh(ctx, s.RefreshToken)
		if err != nil {
			return nil, err
		}
		return refreshed, nil
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s, nil
}

func (c *httpClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.tokenRequest(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	c.adopt(s)
	return s, nil
}

func (c *httpClient) RefreshSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil && c.tokens != nil {
		loaded, err := c.tokens.Load()
		if err != nil {
			return nil, eris.Wrap(err, "authapi: load session")
		}
		s = loaded
	}
	if s == nil || s.RefreshToken == "" {
		return nil, nil
	}
	return c.refresh(ctx, s.RefreshToken)
}

func (c *httpClient) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	s, err := c.tokenRequest(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	c.adopt(s)
	return s, nil
}

func (c *httpClient) tokenRequest(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "authapi: rate limit")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "authapi: marshal token request")
	}
	u := fmt.Sprintf("%s/token?grant_type=%s", c.baseURL, grant)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "authapi: build token request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "authapi: %s grant", grant)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, eris.Errorf("authapi: %s grant: status %d: %s", grant, resp.StatusCode, data)
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		User         User   `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "authapi: decode token response")
	}

	return &Session{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second),
		User:         raw.User,
	}, nil
}

func (c *httpClient) OAuthURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return fmt.Sprintf("%s/authorize?%s", c.baseURL, q.Encode())
}

func (c *httpClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s != nil {
		if err := c.wait(ctx); err != nil {
			return eris.Wrap(err, "authapi: rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
		if err != nil {
			return eris.Wrap(err, "authapi: build logout request")
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)

		resp, err := c.hc.Do(req)
		if err != nil {
			return eris.Wrap(err, "authapi: logout")
		}
		resp.Body.Close()
	}

	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			return eris.Wrap(err, "authapi: clear session")
		}
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.notify(nil)
	return nil
}

// adopt stores a fresh session, persists it, and notifies subscribers.
func (c *httpClient) adopt(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if c.tokens != nil {
		_ = c.tokens.Save(s)
	}
	c.notify(s)
}

func (c *httpClient) OnSessionChange(fn func(*Session)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *httpClient) notify(s *Session) {
	c.mu.Lock()
	fns := make([]func(*Session), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
