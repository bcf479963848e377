package event

import (
	"encoding/json"
	"fmt"
)

// Marshal serializes an event payload for durable storage.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode rebuilds a typed event from its stored discriminator and
// payload, for reloading unprocessed events after a restart.
func Decode(t Type, data []byte) (Event, error) {
	var e Event
	switch t {
	case TypeTransactionCreated:
		e = &TransactionCreated{}
	case TypePositionCreated:
		e = &PositionCreated{}
	case TypeAdjustmentCreated:
		e = &AdjustmentCreated{}
	case TypeTradeConfirmed:
		e = &TradeConfirmed{}
	case TypeTradeCancelled:
		e = &TradeCancelled{}
	case TypeTradeFinancialSettled:
		e = &TradeFinancialSettled{}
	case TypeTradePositionSettled:
		e = &TradePositionSettled{}
	case TypeItemDeleted:
		e = &ItemDeleted{}
	default:
		return nil, fmt.Errorf("unknown event type %d", t)
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return e, nil
}
