package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/cache"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/database"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/ebay"
)

const defaultHistoryLimit = 20

// Searcher runs a Browse item search (for testing).
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*ebay.SearchResult, error)
}

// Store persists price-check snapshots (for testing).
type Store interface {
	Insert(ctx context.Context, check *database.PriceCheck) error
	ListByQuery(ctx context.Context, query string, limit int) ([]*database.PriceCheck, error)
	ListRecent(ctx context.Context, limit int) ([]*database.PriceCheck, error)
}

// ResponseCache caches serialized check responses (for testing).
type ResponseCache interface {
	Get(ctx context.Context, query string) ([]byte, bool)
	Set(ctx context.Context, query string, payload []byte)
}

// Check is the result of comparing a listing query against current
// market asking prices.
type Check struct {
	CheckID   string             `json:"checkId"`
	Query     string             `json:"query"`
	Stats     ebay.PriceStats    `json:"stats"`
	Items     []ebay.ItemSummary `json:"items"`
	CheckedAt time.Time          `json:"checkedAt"`
	Cached    bool               `json:"cached"`
}

// Service orchestrates price checks: cache lookup, Browse search, stats
// computation, snapshot persistence.
type Service struct {
	search Searcher
	store  Store
	cache  ResponseCache
	logger *slog.Logger
}

func NewService(search Searcher, store Store, respCache ResponseCache, logger *slog.Logger) *Service {
	return &Service{
		search: search,
		store:  store,
		cache:  respCache,
		logger: logger.With("component", "price_service"),
	}
}

// CheckPrice answers a price check for query. Recent identical queries
// are served from cache without touching eBay. A snapshot of every
// fresh check is written to Postgres; snapshot persistence is
// best-effort and never fails the request.
func (s *Service) CheckPrice(ctx context.Context, query string, limit int) (*Check, error) {
	if payload, ok := s.cache.Get(ctx, query); ok {
		var check Check
		if err := json.Unmarshal(payload, &check); err == nil {
			check.Cached = true
			return &check, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "query", query)
	}

	result, err := s.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("price check search failed: %w", err)
	}

	stats := ebay.ComputePriceStats(result.ItemSummaries)

	snapshot := &database.PriceCheck{
		Query:      cache.NormalizeQuery(query),
		Average:    stats.Average,
		Median:     stats.Median,
		MinPrice:   stats.Min,
		MaxPrice:   stats.Max,
		SampleSize: stats.SampleSize,
		Currency:   stats.Currency,
	}
	if err := s.store.Insert(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist price check", "query", query, "error", err)
	}

	check := &Check{
		CheckID:   snapshot.ID.String(),
		Query:     query,
		Stats:     stats,
		Items:     result.ItemSummaries,
		CheckedAt: snapshot.CreatedAt,
	}

	if payload, err := json.Marshal(check); err == nil {
		s.cache.Set(ctx, query, payload)
	}

	s.logger.Info("price check completed",
		"query", query,
		"sample_size", stats.SampleSize,
		"average", stats.Average)

	return check, nil
}

// History returns recent snapshots, filtered by query when non-empty.
func (s *Service) History(ctx context.Context, query string, limit int) ([]*database.PriceCheck, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	if query != "" {
		return s.store.ListByQuery(ctx, cache.NormalizeQuery(query), limit)
	}
	return s.store.ListRecent(ctx, limit)
}
