// Package server exposes the command and query surface over JSON/HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/ledger"
	"BullionLedger/internal/query"
	"BullionLedger/internal/settlement"
	"BullionLedger/internal/trade"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Trades     *trade.Service
	TradeStore trade.Store
	Query      *query.Service
	Settlement *settlement.Job
}

type Server struct {
	addr string
	deps *Deps
	log  zerolog.Logger
}

func New(addr string, deps *Deps, log zerolog.Logger) *Server {
	return &Server{addr: addr, deps: deps, log: log}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/trades", s.handleExecuteTrade)
	mux.HandleFunc("GET /v1/trades/{id}", s.handleGetTrade)
	mux.HandleFunc("POST /v1/trades/{id}/confirm", s.handleConfirmTrade)
	mux.HandleFunc("POST /v1/trades/{id}/cancel", s.handleCancelTrade)
	mux.HandleFunc("POST /v1/trades/{id}/settle-position", s.handleSettlePosition)
	mux.HandleFunc("GET /v1/trades/{id}/activity", s.handleTradeActivity)

	mux.HandleFunc("POST /v1/adjustments", s.handleCreateAdjustment)
	mux.HandleFunc("DELETE /v1/adjustments/{id}", s.handleDeleteAdjustment)
	mux.HandleFunc("POST /v1/settlement/run", s.handleSettlementRun)

	mux.HandleFunc("GET /v1/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/positions", s.handlePositions)
	mux.HandleFunc("GET /v1/ledger/history", s.handleHistory)

	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type executeTradeRequest struct {
	ProductID    string          `json:"product_id"`
	Location     string          `json:"location"`
	Counterparty string          `json:"counterparty"`
	Direction    string          `json:"direction"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

type tradeResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          string          `json:"product_id"`
	Location           string          `json:"location"`
	Counterparty       string          `json:"counterparty"`
	Direction          string          `json:"direction"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Amount             decimal.Decimal `json:"amount"`
	CreatedOn          time.Time       `json:"created_on"`
	FinancialSettleOn  time.Time       `json:"financial_settle_on"`
	IsPositionSettled  bool            `json:"is_position_settled"`
	IsFinancialSettled bool            `json:"is_financial_settled"`
	ConfirmedOn        *time.Time      `json:"confirmed_on,omitempty"`
	CancelledOn        *time.Time      `json:"cancelled_on,omitempty"`
	RequiresReview     bool            `json:"requires_review"`
	ReviewReason       string          `json:"review_reason,omitempty"`
}

func toTradeResponse(t *trade.Trade) tradeResponse {
	return tradeResponse{
		ID:                 t.ID,
		ProductID:          t.ProductID,
		Location:           t.Location,
		Counterparty:       t.Counterparty,
		Direction:          string(t.Direction),
		Quantity:           t.Quantity,
		UnitPrice:          t.UnitPrice,
		Amount:             t.Amount,
		CreatedOn:          t.CreatedOnUTC,
		FinancialSettleOn:  t.FinancialSettleOn,
		IsPositionSettled:  t.IsPositionSettled,
		IsFinancialSettled: t.IsFinancialSettled,
		ConfirmedOn:        t.ConfirmedOnUTC,
		CancelledOn:        t.CancelledOnUTC,
		RequiresReview:     t.RequiresReview,
		ReviewReason:       t.ReviewReason,
	}
}

func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req executeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d := trade.Direction(req.Direction)
	if d != trade.DirectionBuy && d != trade.DirectionSell {
		writeError(w, http.StatusBadRequest, "direction must be buy or sell")
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	t, err := s.deps.Trades.Execute(r.Context(), trade.NewTradeRequest{
		ProductID:    req.ProductID,
		Location:     req.Location,
		Counterparty: req.Counterparty,
		Direction:    d,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTradeResponse(t))
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	t, err := s.deps.TradeStore.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeResponse(t))
}

func (s *Server) handleConfirmTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Trades.Confirm(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Trades.Cancel(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settlePositionRequest struct {
	PositionType string `json:"position_type"`
}

func (s *Server) handleSettlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req settlePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pt := ledger.PositionType(req.PositionType)
	if pt != ledger.PositionPhysical && pt != ledger.PositionForward {
		writeError(w, http.StatusBadRequest, "position_type must be physical or forward")
		return
	}

	if err := s.deps.Settlement.SettlePosition(r.Context(), id, pt); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTradeActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	entries, err := s.deps.Query.TradeActivity(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type createAdjustmentRequest struct {
	Date   string          `json:"date"` // YYYY-MM-DD
	Side   int32           `json:"side"` // 1 credit, -1 debit
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

func (s *Server) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req createAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	side := ledger.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be 1 or -1")
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must be non-negative")
		return
	}

	a, err := s.deps.Trades.CreateAdjustment(r.Context(), date, side, req.Amount, req.Note)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, adjustmentResponse{
		ID:        a.ID,
		Date:      a.Date.Format("2006-01-02"),
		Side:      a.Side,
		Amount:    a.Amount,
		Note:      a.Note,
		CreatedOn: a.CreatedOnUTC,
	})
}

func (s *Server) handleDeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid adjustment id")
		return
	}
	if err := s.deps.Trades.DeleteAdjustment(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustmentResponse struct {
	ID        uuid.UUID       `json:"id"`
	Date      string          `json:"date"`
	Side      int32           `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedOn time.Time       `json:"created_on"`
}

func (s *Server) handleSettlementRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Settlement.RunOnce(r.Context())
	var partial *settlement.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		s.writeDomainError(w, err)
		return
	}
	// A partial failure still returns the report; the failures are in it.
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.deps.Query.CurrentBalance(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.deps.Query.Positions(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key query parameter is required")
		return
	}

	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be RFC3339")
			return
		}
		asOf = &t
	}

	entries, err := s.deps.Query.RunningHistory(r.Context(), ledger.Key(key), asOf)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trade.ErrNotFound),
		errors.Is(err, trade.ErrAdjustmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, trade.ErrCancelled),
		errors.Is(err, trade.ErrSettled),
		errors.Is(err, trade.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientPosition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvalidMagnitude),
		errors.Is(err, ledger.ErrInvalidSide):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
