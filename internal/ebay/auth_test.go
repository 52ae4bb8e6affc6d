package ebay

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type tokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests int
	token    string
	fail     bool
}

func newTokenServer(t *testing.T, token string, expiresIn int) *tokenServer {
	t.Helper()

	ts := &tokenServer{token: token}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.requests++
		fail := ts.fail
		token := ts.token
		ts.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.NotEmpty(t, r.FormValue("scope"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"expires_in":%d,"token_type":"Application Access Token"}`, token, expiresIn)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) Requests() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.requests
}

func (ts *tokenServer) SetFail(fail bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.fail = fail
}

func TestTokenManager_Token(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("cache hit avoids network call", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		server := newTokenServer(t, "tok123", 7200)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL),
			WithNowFunc(clock.Now))

		tok, err := m.Token(ctx, EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "tok123", tok)
		assert.Equal(t, 1, server.Requests())

		// Well inside the 7200s - 5min cache window.
		clock.Advance(100 * time.Second)

		tok, err = m.Token(ctx, EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "tok123", tok)
		assert.Equal(t, 1, server.Requests())
	})

	t.Run("expiry triggers exactly one refetch", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		server := newTokenServer(t, "tok123", 7200)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL),
			WithNowFunc(clock.Now))

		_, err := m.Token(ctx, EnvProduction)
		require.NoError(t, err)

		server.mu.Lock()
		server.token = "tok456"
		server.mu.Unlock()

		// 7200s - 300s margin = 6900s window; one second past it.
		clock.Advance(6901 * time.Second)

		tok, err := m.Token(ctx, EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "tok456", tok)
		assert.Equal(t, 2, server.Requests())
	})

	t.Run("environments are isolated", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		prod := newTokenServer(t, "prod-token", 7200)
		sandbox := newTokenServer(t, "sandbox-token", 7200)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, prod.URL),
			WithTokenURL(EnvSandbox, sandbox.URL),
			WithNowFunc(clock.Now))

		prodTok, err := m.Token(ctx, EnvProduction)
		require.NoError(t, err)
		sandboxTok, err := m.Token(ctx, EnvSandbox)
		require.NoError(t, err)

		assert.Equal(t, "prod-token", prodTok)
		assert.Equal(t, "sandbox-token", sandboxTok)

		// Repeat lookups stay within their own cache entries.
		prodTok, err = m.Token(ctx, EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "prod-token", prodTok)
		assert.Equal(t, 1, prod.Requests())
		assert.Equal(t, 1, sandbox.Requests())
	})

	t.Run("missing credentials fail without network call", func(t *testing.T) {
		server := newTokenServer(t, "tok123", 7200)

		m := NewTokenManager("", "", logger,
			WithTokenURL(EnvProduction, server.URL))

		_, err := m.Token(ctx, EnvProduction)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAuthentication))
		assert.Equal(t, 0, server.Requests())
	})

	t.Run("provider rejection carries status and body", func(t *testing.T) {
		server := newTokenServer(t, "tok123", 7200)
		server.SetFail(true)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL))

		_, err := m.Token(ctx, EnvProduction)
		require.Error(t, err)

		var ebayErr *Error
		require.ErrorAs(t, err, &ebayErr)
		assert.Equal(t, KindAuthentication, ebayErr.Kind)
		assert.Equal(t, http.StatusUnauthorized, ebayErr.StatusCode)
		assert.Contains(t, ebayErr.Body, "invalid_client")
	})

	t.Run("failed refresh leaves previous entry untouched", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		server := newTokenServer(t, "tok123", 7200)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL),
			WithNowFunc(clock.Now))

		_, err := m.Token(ctx, EnvProduction)
		require.NoError(t, err)

		clock.Advance(7000 * time.Second)
		server.SetFail(true)

		_, err = m.Token(ctx, EnvProduction)
		require.Error(t, err)

		m.mu.Lock()
		entry := m.cache[EnvProduction]
		m.mu.Unlock()
		assert.Equal(t, "tok123", entry.token)
	})

	t.Run("concurrent cache misses share one fetch", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		server := newTokenServer(t, "tok123", 7200)

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL),
			WithNowFunc(clock.Now))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tok, err := m.Token(ctx, EnvProduction)
				assert.NoError(t, err)
				assert.Equal(t, "tok123", tok)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, server.Requests())
	})
}

func TestTokenManager_FetchToken(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("sends basic auth and applies safety margin", func(t *testing.T) {
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		var gotAuth string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok123","expires_in":7200}`)
		}))
		defer server.Close()

		m := NewTokenManager("abc", "xyz", logger,
			WithTokenURL(EnvProduction, server.URL),
			WithNowFunc(func() time.Time { return now }))

		tok, expiresAt, err := m.FetchToken(ctx, EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "tok123", tok)

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("abc:xyz"))
		assert.Equal(t, expected, gotAuth)

		// 7200s reported minus the 5 minute margin.
		assert.Equal(t, now.Add(6900*time.Second), expiresAt)
	})
}
