package health

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/ebay"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Result is the outcome of one health-check invocation. Status stays
// "OK" on auth/probe failures because the check itself functioned;
// "ERROR" is reserved for misconfiguration and internal faults.
type Result struct {
	Status        string `json:"status"`
	EbayAuth      bool   `json:"ebayAuth"`
	EbayAPIAccess bool   `json:"ebayApiAccess"`
	Error         string `json:"error,omitempty"`

	// HTTPStatus is the transport status the boundary should report.
	HTTPStatus int `json:"-"`
}

// TokenSource yields a bearer token for an environment.
type TokenSource interface {
	Token(ctx context.Context, env ebay.Environment) (string, error)
}

// Prober confirms API connectivity using an already-obtained token.
type Prober interface {
	Probe(ctx context.Context, token string) error
}

// Checker answers "is the eBay integration functional right now" and
// distinguishes why it is broken when it is. Every invocation is a
// fresh attempt; there are no retries and no persisted state.
type Checker struct {
	clientID     string
	clientSecret string
	env          ebay.Environment
	tokens       TokenSource
	prober       Prober
	logger       *slog.Logger
}

func NewChecker(clientID, clientSecret string, env ebay.Environment, tokens TokenSource, prober Prober, logger *slog.Logger) *Checker {
	return &Checker{
		clientID:     clientID,
		clientSecret: clientSecret,
		env:          env,
		tokens:       tokens,
		prober:       prober,
		logger:       logger.With("component", "health_checker"),
	}
}

// Check runs the linear pipeline: validate config, obtain a token,
// probe the Browse API. It short-circuits on the first failure.
func (c *Checker) Check(ctx context.Context) Result {
	if c.clientID == "" || c.clientSecret == "" {
		return Result{
			Status:     StatusError,
			HTTPStatus: http.StatusInternalServerError,
			Error:      "Server configuration error: Missing eBay API credentials",
		}
	}

	token, err := c.tokens.Token(ctx, c.env)
	if err != nil {
		c.logger.Error("token fetch failed", "environment", c.env, "error", err)
		return Result{
			Status:        StatusOK,
			EbayAuth:      !isAuthFailure(err),
			EbayAPIAccess: false,
			Error:         err.Error(),
			HTTPStatus:    http.StatusUnauthorized,
		}
	}

	if err := c.prober.Probe(ctx, token); err != nil {
		c.logger.Error("API probe failed", "environment", c.env, "error", err)
		return Result{
			Status:        StatusOK,
			EbayAuth:      true,
			EbayAPIAccess: false,
			Error:         err.Error(),
			HTTPStatus:    http.StatusUnauthorized,
		}
	}

	return Result{
		Status:        StatusOK,
		EbayAuth:      true,
		EbayAPIAccess: true,
		HTTPStatus:    http.StatusOK,
	}
}

// isAuthFailure classifies a token-fetch error for the ebayAuth flag.
// Tagged errors are authoritative; untagged ones fall back to the
// historical message-substring heuristic so the reported flag matches
// what monitors have always seen.
func isAuthFailure(err error) bool {
	if ebay.IsKind(err, ebay.KindAuthentication) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "credentials")
}
