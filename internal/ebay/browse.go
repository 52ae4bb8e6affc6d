package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	productionAPIBaseURL = "https://api.ebay.com"
	sandboxAPIBaseURL    = "https://api.sandbox.ebay.com"

	browseSearchPath = "/buy/browse/v1/item_summary/search"

	// Connectivity probe parameters. The probe is a throwaway search
	// used only to confirm the token is accepted by the Browse API.
	probeQuery           = "test"
	probeConditionFilter = "conditionIds:{3000}"
	probeLimit           = 1

	// DefaultSearchLimit and MaxSearchLimit bound price-check searches.
	DefaultSearchLimit = 25
	MaxSearchLimit     = 50
)

// TokenProvider supplies a valid bearer token for an environment.
type TokenProvider interface {
	Token(ctx context.Context, env Environment) (string, error)
}

// Money is an eBay monetary amount. Value is a decimal string as
// returned by the Browse API.
type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// ItemSummary is one active listing returned by a Browse search.
type ItemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	Price      Money  `json:"price"`
	Condition  string `json:"condition,omitempty"`
	ItemWebURL string `json:"itemWebUrl,omitempty"`
}

// SearchResult is the subset of the Browse search response the service
// consumes.
type SearchResult struct {
	Total         int           `json:"total"`
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

// BrowseClient calls the eBay Browse API for one environment.
type BrowseClient struct {
	tokens  TokenProvider
	env     Environment
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// BrowseOption configures a BrowseClient.
type BrowseOption func(*BrowseClient)

// WithBrowseBaseURL overrides the API host, for tests.
func WithBrowseBaseURL(u string) BrowseOption {
	return func(c *BrowseClient) {
		c.baseURL = u
	}
}

// WithBrowseHTTPClient overrides the HTTP client.
func WithBrowseHTTPClient(hc *http.Client) BrowseOption {
	return func(c *BrowseClient) {
		c.client = hc
	}
}

func NewBrowseClient(tokens TokenProvider, env Environment, logger *slog.Logger, opts ...BrowseOption) *BrowseClient {
	c := &BrowseClient{
		tokens:  tokens,
		env:     env,
		baseURL: productionAPIBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "browse_client"),
	}
	if env == EnvSandbox {
		c.baseURL = sandboxAPIBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs an item-summary search for query, capped at limit items.
func (c *BrowseClient) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	token, err := c.tokens.Token(ctx, c.env)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}

	body, err := c.get(ctx, token, params)
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &result, nil
}

// Probe issues the fixed connectivity-check search with the supplied
// token. It returns nil iff the Browse API accepted the call.
func (c *BrowseClient) Probe(ctx context.Context, token string) error {
	params := url.Values{
		"q":      {probeQuery},
		"filter": {probeConditionFilter},
		"limit":  {strconv.Itoa(probeLimit)},
	}

	_, err := c.get(ctx, token, params)
	return err
}

func (c *BrowseClient) get(ctx context.Context, token string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + browseSearchPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{
			Kind:    KindAPIAccess,
			Message: fmt.Sprintf("eBay API request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindAPIAccess,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    "eBay API access failed",
		}
	}

	return body, nil
}
