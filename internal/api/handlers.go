package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/database"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/health"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/prices"
)

// HealthChecker runs one health-check invocation (for testing).
type HealthChecker interface {
	Check(ctx context.Context) health.Result
}

// PriceService answers price checks and history queries (for testing).
type PriceService interface {
	CheckPrice(ctx context.Context, query string, limit int) (*prices.Check, error)
	History(ctx context.Context, query string, limit int) ([]*database.PriceCheck, error)
}

type Handlers struct {
	health HealthChecker
	prices PriceService
	logger *slog.Logger
}

func NewHandlers(healthChecker HealthChecker, priceService PriceService, logger *slog.Logger) *Handlers {
	return &Handlers{
		health: healthChecker,
		prices: priceService,
		logger: logger,
	}
}

// Health adapts the health-check pipeline to HTTP. It owns its CORS
// headers and method gating so the response contract stays exact:
// every path yields the {status, ebayAuth, ebayApiAccess, error?} shape.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodGet {
		h.respondJSON(w, http.StatusMethodNotAllowed, health.Result{
			Status: health.StatusError,
			Error:  "Method not allowed",
		})
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("health check panicked", "panic", rec)
			h.respondJSON(w, http.StatusInternalServerError, health.Result{
				Status: health.StatusError,
				Error:  fmt.Sprintf("Internal server error: %v", rec),
			})
		}
	}()

	result := h.health.Check(r.Context())
	h.respondJSON(w, result.HTTPStatus, result)
}

// PriceCheckRequest asks for a market price comparison.
type PriceCheckRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// CheckPrice handles price comparison requests against live listings.
func (h *Handlers) CheckPrice(w http.ResponseWriter, r *http.Request) {
	var req PriceCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	check, err := h.prices.CheckPrice(r.Context(), req.Query, req.Limit)
	if err != nil {
		h.logger.Error("price check failed", "error", err, "query", req.Query)
		h.respondError(w, http.StatusBadGateway, "price check failed")
		return
	}

	h.respondJSON(w, http.StatusOK, check)
}

// PriceHistory handles retrieval of persisted price-check snapshots.
func (h *Handlers) PriceHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	checks, err := h.prices.History(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("failed to load price history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	h.respondJSON(w, http.StatusOK, checks)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
