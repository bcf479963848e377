package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BullionLedger/internal/event"
	"BullionLedger/internal/observability"
	"BullionLedger/internal/trade"
)

// Hubs group notifications by topic for subscribers.
const (
	HubTransactions = "transactions"
	HubPositions    = "positions"
	HubTrades       = "trades"
)

// TradeLookup resolves the trade behind a transaction's source
// reference at dispatch time. Enrichment is read-only and never stored
// in the event.
type TradeLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*trade.Trade, error)
}

// Handlers maps domain events to notifications. Delivery is
// best-effort: a publish failure is logged and swallowed, never
// propagated back to the ledger mutation that already committed.
type Handlers struct {
	publisher Publisher
	trades    TradeLookup
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewHandlers(publisher Publisher, trades TradeLookup, log zerolog.Logger, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		publisher: publisher,
		trades:    trades,
		log:       log,
		metrics:   metrics,
	}
}

// Register wires every notification handler into the registry.
func (h *Handlers) Register(r *event.Registry) {
	r.Register(event.TypeTransactionCreated, event.HandlerFunc{HandlerName: "notify-transaction", Fn: h.onTransactionCreated})
	r.Register(event.TypePositionCreated, event.HandlerFunc{HandlerName: "notify-position", Fn: h.onPositionCreated})
	r.Register(event.TypeTradeFinancialSettled, event.HandlerFunc{HandlerName: "notify-financial-settled", Fn: h.onTradeFinancialSettled})
	r.Register(event.TypeTradePositionSettled, event.HandlerFunc{HandlerName: "notify-position-settled", Fn: h.onTradePositionSettled})
	r.Register(event.TypeTradeCancelled, event.HandlerFunc{HandlerName: "notify-trade-cancelled", Fn: h.onTradeCancelled})
}

func (h *Handlers) onTransactionCreated(ctx context.Context, e event.Event) error {
	evt, ok := e.(*event.TransactionCreated)
	if !ok {
		return nil
	}

	payload := map[string]interface{}{
		"entry_id":        evt.EntryID.String(),
		"ledger_key":      evt.LedgerKey,
		"side":            evt.Side,
		"amount":          evt.Amount.String(),
		"running_balance": evt.Balance.String(),
		"source_ref":      evt.SourceRef,
	}

	// Resolve the related trade when the source activity is one; an
	// adjustment reference simply yields no enrichment.
	if t, ok := h.lookupTrade(ctx, evt.SourceRef); ok {
		payload["trade_direction"] = string(t.Direction)
		payload["product_id"] = t.ProductID
		payload["counterparty"] = t.Counterparty
	}

	h.publish(ctx, HubTransactions, "transactionCreated", payload)
	return nil
}

func (h *Handlers) onPositionCreated(ctx context.Context, e event.Event) error {
	evt, ok := e.(*event.PositionCreated)
	if !ok {
		return nil
	}

	h.publish(ctx, HubPositions, "positionCreated", map[string]interface{}{
		"entry_id":        evt.EntryID.String(),
		"ledger_key":      evt.LedgerKey,
		"side":            evt.Side,
		"quantity":        evt.Quantity.String(),
		"running_balance": evt.Balance.String(),
		"source_ref":      evt.SourceRef,
	})
	return nil
}

func (h *Handlers) onTradeFinancialSettled(ctx context.Context, e event.Event) error {
	evt, ok := e.(*event.TradeFinancialSettled)
	if !ok {
		return nil
	}

	h.publish(ctx, HubTrades, "tradeFinancialSettled", map[string]interface{}{
		"trade_id": evt.TradeID.String(),
		"entry_id": evt.EntryID.String(),
	})
	return nil
}

func (h *Handlers) onTradePositionSettled(ctx context.Context, e event.Event) error {
	evt, ok := e.(*event.TradePositionSettled)
	if !ok {
		return nil
	}

	h.publish(ctx, HubTrades, "tradePositionSettled", map[string]interface{}{
		"trade_id": evt.TradeID.String(),
		"entry_id": evt.EntryID.String(),
	})
	return nil
}

func (h *Handlers) onTradeCancelled(ctx context.Context, e event.Event) error {
	evt, ok := e.(*event.TradeCancelled)
	if !ok {
		return nil
	}

	h.publish(ctx, HubTrades, "tradeCancelled", map[string]interface{}{
		"trade_id": evt.TradeID.String(),
	})
	return nil
}

func (h *Handlers) lookupTrade(ctx context.Context, sourceRef string) (*trade.Trade, bool) {
	id, err := uuid.Parse(sourceRef)
	if err != nil {
		return nil, false
	}
	t, err := h.trades.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, trade.ErrNotFound) {
			h.log.Warn().Err(err).Str("source_ref", sourceRef).Msg("trade enrichment lookup failed")
		}
		return nil, false
	}
	return t, true
}

func (h *Handlers) publish(ctx context.Context, hub, method string, payload interface{}) {
	if err := h.publisher.Publish(ctx, hub, method, payload); err != nil {
		h.log.Warn().Err(err).Str("hub", hub).Str("method", method).Msg("notification publish failed")
		if h.metrics != nil {
			h.metrics.NotificationDrops.WithLabelValues(hub).Inc()
		}
		return
	}
	if h.metrics != nil {
		h.metrics.NotificationsPublished.WithLabelValues(hub).Inc()
	}
}
