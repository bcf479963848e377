package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"BullionLedger/internal/trade"
)

// TradeStore is the Postgres trade.Store.
type TradeStore struct {
	db *sql.DB
}

func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{db: db}
}

const tradeColumns = `
	id, product_id, location, counterparty, direction,
	quantity, unit_price, amount,
	created_on, financial_settle_on,
	is_position_settled, is_financial_settled,
	confirmed_on, cancelled_on,
	requires_review, review_reason
`

func (s *TradeStore) Insert(ctx context.Context, t *trade.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		t.ID, t.ProductID, t.Location, t.Counterparty, string(t.Direction),
		t.Quantity, t.UnitPrice, t.Amount,
		t.CreatedOnUTC, t.FinancialSettleOn,
		t.IsPositionSettled, t.IsFinancialSettled,
		t.ConfirmedOnUTC, t.CancelledOnUTC,
		t.RequiresReview, t.ReviewReason,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *TradeStore) Get(ctx context.Context, id uuid.UUID) (*trade.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE id = $1
	`, id)

	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trade.ErrNotFound
	}
	return t, err
}

func (s *TradeStore) Update(ctx context.Context, t *trade.Trade) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET
			is_position_settled = $2,
			is_financial_settled = $3,
			confirmed_on = $4,
			cancelled_on = $5,
			requires_review = $6,
			review_reason = $7
		WHERE id = $1
	`,
		t.ID,
		t.IsPositionSettled, t.IsFinancialSettled,
		t.ConfirmedOnUTC, t.CancelledOnUTC,
		t.RequiresReview, t.ReviewReason,
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return trade.ErrNotFound
	}
	return nil
}

func (s *TradeStore) DueFinancial(ctx context.Context, asOf time.Time) ([]*trade.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE cancelled_on IS NULL
		  AND is_financial_settled = FALSE
		  AND requires_review = FALSE
		  AND financial_settle_on <= $1
		ORDER BY financial_settle_on, created_on
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("query due trades: %w", err)
	}
	defer rows.Close()

	var due []*trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, t)
	}
	return due, rows.Err()
}

func (s *TradeStore) InsertAdjustment(ctx context.Context, a *trade.FinancialAdjustment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_adjustments (id, adjusted_on, side, amount, note, created_on)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.Date, a.Side, a.Amount, a.Note, a.CreatedOnUTC)
	if err != nil {
		return fmt.Errorf("insert adjustment %s: %w", a.ID, err)
	}
	return nil
}

func (s *TradeStore) GetAdjustment(ctx context.Context, id uuid.UUID) (*trade.FinancialAdjustment, error) {
	var a trade.FinancialAdjustment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, adjusted_on, side, amount, note, created_on
		FROM financial_adjustments
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Date, &a.Side, &a.Amount, &a.Note, &a.CreatedOnUTC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, trade.ErrAdjustmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get adjustment %s: %w", id, err)
	}
	return &a, nil
}

func (s *TradeStore) DeleteAdjustment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM financial_adjustments WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete adjustment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete adjustment %s: %w", id, err)
	}
	if n == 0 {
		return trade.ErrAdjustmentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*trade.Trade, error) {
	var t trade.Trade
	var direction string
	if err := row.Scan(
		&t.ID, &t.ProductID, &t.Location, &t.Counterparty, &direction,
		&t.Quantity, &t.UnitPrice, &t.Amount,
		&t.CreatedOnUTC, &t.FinancialSettleOn,
		&t.IsPositionSettled, &t.IsFinancialSettled,
		&t.ConfirmedOnUTC, &t.CancelledOnUTC,
		&t.RequiresReview, &t.ReviewReason,
	); err != nil {
		return nil, err
	}
	t.Direction = trade.Direction(direction)
	return &t, nil
}
