// Package inventory posts position entries into the per-location
// product ledgers on behalf of settlement flows.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/ledger"
)

// PositionService creates inventory position entries through the ledger
// service, one running balance per location+product+position-type key.
type PositionService struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

func NewPositionService(ledgerSvc *ledger.Service, log zerolog.Logger) *PositionService {
	return &PositionService{ledger: ledgerSvc, log: log}
}

// CreatePosition appends one position entry. A debit (outbound metal)
// that would drive the position negative is rejected with
// ErrInsufficientPosition before anything is written.
func (s *PositionService) CreatePosition(
	ctx context.Context,
	productID string,
	tradeID uuid.UUID,
	location string,
	positionType ledger.PositionType,
	side ledger.Side,
	quantity decimal.Decimal,
) (*ledger.AppendResult, error) {
	res, err := s.ledger.Append(ctx, ledger.AppendRequest{
		Key:       ledger.PositionKey(location, productID, positionType),
		Kind:      ledger.KindPositionEntry,
		Side:      side,
		Magnitude: quantity,
		SourceRef: tradeID.String(),
		Note:      fmt.Sprintf("position settlement for trade %s", tradeID),
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("trade_id", tradeID.String()).
		Str("product_id", productID).
		Str("location", location).
		Str("position_type", string(positionType)).
		Str("quantity", quantity.String()).
		Msg("position entry created")

	return res, nil
}
