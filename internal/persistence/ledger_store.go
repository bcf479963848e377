// Package persistence holds the Postgres-backed stores, the durable
// event log with its batching worker, and the SQL migrator.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"BullionLedger/internal/ledger"
)

// LedgerStore is the Postgres ledger.Store.
//
// Append serializes per key with a transaction-scoped advisory lock, so
// the running-balance read and the insert happen in the same
// transaction even when several processes share the book. In-process,
// the lock manager already orders writers; the advisory lock is the
// database-level fallback the in-process manager cannot provide.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, e *ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, string(e.Key),
	); err != nil {
		return fmt.Errorf("advisory lock %q: %w", e.Key, err)
	}

	prev := decimal.Zero
	err = tx.QueryRowContext(ctx, `
		SELECT running_balance FROM ledger_entries
		WHERE ledger_key = $1
		ORDER BY ts DESC, seq DESC
		LIMIT 1
	`, string(e.Key)).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read prior balance for %q: %w", e.Key, err)
	}

	e.RunningBalance = prev.Add(e.SignedAmount())

	err = tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries
			(id, kind, ledger_key, ts, side, magnitude, running_balance, source_ref, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		e.ID, int32(e.Kind), string(e.Key), e.TimestampUTC,
		int32(e.Side), e.Magnitude, e.RunningBalance, e.SourceRef, e.Note,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return tx.Commit()
}

func (s *LedgerStore) LastBalance(ctx context.Context, key ledger.Key) (decimal.Decimal, bool, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT running_balance FROM ledger_entries
		WHERE ledger_key = $1
		ORDER BY ts DESC, seq DESC
		LIMIT 1
	`, string(key)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("read last balance for %q: %w", key, err)
	}
	return balance, true, nil
}

func (s *LedgerStore) History(ctx context.Context, key ledger.Key, asOf *time.Time) ([]*ledger.Entry, error) {
	query := `
		SELECT id, kind, ledger_key, ts, seq, side, magnitude, running_balance, source_ref, note
		FROM ledger_entries
		WHERE ledger_key = $1
	`
	args := []interface{}{string(key)}
	if asOf != nil {
		query += ` AND ts <= $2`
		args = append(args, *asOf)
	}
	query += ` ORDER BY ts, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for %q: %w", key, err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) Balances(ctx context.Context) (map[ledger.Key]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (ledger_key) ledger_key, running_balance
		FROM ledger_entries
		ORDER BY ledger_key, ts DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := make(map[ledger.Key]decimal.Decimal)
	for rows.Next() {
		var key string
		var balance decimal.Decimal
		if err := rows.Scan(&key, &balance); err != nil {
			return nil, err
		}
		out[ledger.Key(key)] = balance
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (*ledger.Entry, error) {
	var e ledger.Entry
	var kind, side int32
	var key string
	if err := rows.Scan(
		&e.ID, &kind, &key, &e.TimestampUTC, &e.Seq,
		&side, &e.Magnitude, &e.RunningBalance, &e.SourceRef, &e.Note,
	); err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = ledger.Kind(kind)
	e.Key = ledger.Key(key)
	e.Side = ledger.Side(side)
	return &e, nil
}
