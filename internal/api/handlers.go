package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Okay2121/vine-ledger/internal/ledger"
	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/performance"
)

// EventProcessor is the ingestion dependency for the events endpoint.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event models.TradeEvent, source string) (*ledger.Result, error)
}

// PositionStore is the read side for position listings.
type PositionStore interface {
	ListPositions(ctx context.Context, tokenName, status string, limit int) ([]*models.Position, error)
}

// Summarizer produces per-account performance summaries.
type Summarizer interface {
	Summarize(ctx context.Context, accountID int, from, to time.Time) (*performance.Summary, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	processor  EventProcessor
	positions  PositionStore
	summarizer Summarizer
}

// NewHandler creates a new Handler
func NewHandler(processor EventProcessor, positions PositionStore, summarizer Summarizer) *Handler {
	return &Handler{
		processor:  processor,
		positions:  positions,
		summarizer: summarizer,
	}
}

// PostEvent handles POST /api/v1/events
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var event models.TradeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.processor.ProcessEvent(r.Context(), event, "operator")
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateReference):
			respondError(w, http.StatusConflict, "transaction reference already processed")
		case errors.Is(err, models.ErrNoOpenPosition):
			respondError(w, http.StatusNotFound, "no open position to match this sell")
		case errors.Is(err, models.ErrSellBeforeBuy):
			respondError(w, http.StatusBadRequest, "sell timestamp precedes the matched buy")
		case errors.Is(err, models.ErrSettlementAlreadyRecorded):
			respondError(w, http.StatusConflict, "position already settled")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// GetPositions handles GET /api/v1/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	token := ledger.NormalizeToken(r.URL.Query().Get("token"))
	status := r.URL.Query().Get("status")
	if status != "" && status != models.PositionStatusOpen && status != models.PositionStatusClosed {
		respondError(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	positions, err := h.positions.ListPositions(r.Context(), token, status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetRecentTrades handles GET /api/v1/trades/recent
func (h *Handler) GetRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	trades, err := h.positions.ListPositions(r.Context(), "", models.PositionStatusClosed, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetPerformance handles GET /api/v1/accounts/{id}/performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID, err := strconv.Atoi(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	days := 30
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	summary, err := h.summarizer.Summarize(r.Context(), accountID, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
