package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Environment names one of the two eBay host pairs the service can
// talk to. Tokens are cached independently per environment.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

const (
	productionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	sandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"

	oauthScope = "https://api.ebay.com/oauth/api_scope"

	// tokenSafetyMargin is subtracted from the provider-reported expiry
	// so a token near the edge is refreshed before the API rejects it.
	tokenSafetyMargin = 5 * time.Minute
)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func (c cachedToken) valid(now time.Time) bool {
	return c.token != "" && now.Before(c.expiresAt)
}

// TokenManager fetches and caches client-credentials bearer tokens for
// the eBay identity provider, one cache entry per environment.
// Concurrent cache-miss callers for the same environment share a single
// in-flight fetch. A failed fetch leaves the previous entry untouched.
type TokenManager struct {
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *slog.Logger
	now          func() time.Time

	mu    sync.Mutex
	cache map[Environment]cachedToken
	group singleflight.Group

	tokenURLs map[Environment]string
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithHTTPClient overrides the HTTP client used for token fetches.
func WithHTTPClient(c *http.Client) TokenManagerOption {
	return func(m *TokenManager) {
		m.client = c
	}
}

// WithTokenURL overrides the token endpoint for one environment.
func WithTokenURL(env Environment, u string) TokenManagerOption {
	return func(m *TokenManager) {
		m.tokenURLs[env] = u
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(f func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		m.now = f
	}
}

func NewTokenManager(clientID, clientSecret string, logger *slog.Logger, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger.With("component", "token_manager"),
		now:          time.Now,
		cache:        make(map[Environment]cachedToken),
		tokenURLs: map[Environment]string{
			EnvProduction: productionTokenURL,
			EnvSandbox:    sandboxTokenURL,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token returns a valid bearer token for env, fetching a new one only
// when the cached entry is missing or expired.
func (m *TokenManager) Token(ctx context.Context, env Environment) (string, error) {
	if m.clientID == "" || m.clientSecret == "" {
		return "", &Error{
			Kind:    KindAuthentication,
			Message: "missing eBay API credentials",
		}
	}

	if tok, ok := m.cached(env); ok {
		return tok, nil
	}

	v, err, _ := m.group.Do(string(env), func() (interface{}, error) {
		// A caller that was queued behind the fetch sees the fresh
		// entry here without a second round-trip.
		if tok, ok := m.cached(env); ok {
			return tok, nil
		}

		tok, expiresAt, err := m.FetchToken(ctx, env)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[env] = cachedToken{token: tok, expiresAt: expiresAt}
		m.mu.Unlock()

		m.logger.Info("token refreshed", "environment", env, "expires_at", expiresAt)
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *TokenManager) cached(env Environment) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.cache[env]
	if entry.valid(m.now()) {
		return entry.token, true
	}
	return "", false
}

// FetchToken performs one client-credentials exchange against the
// environment's identity endpoint and returns the token together with
// its margin-adjusted expiry. It does not touch the cache.
func (m *TokenManager) FetchToken(ctx context.Context, env Environment) (string, time.Time, error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {oauthScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURLs[env], strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create token request: %w", err)
	}

	creds := base64.StdEncoding.EncodeToString([]byte(m.clientID + ":" + m.clientSecret))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", time.Time{}, &Error{
			Kind:    KindAuthentication,
			Message: fmt.Sprintf("eBay authentication request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, &Error{
			Kind:       KindAuthentication,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    "eBay authentication failed",
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	expiresAt := m.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin)
	return tr.AccessToken, expiresAt, nil
}
