// Package settlement runs the scheduled financial settlement batch and
// the per-trade position settlement flow.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/event"
	"BullionLedger/internal/ledger"
	"BullionLedger/internal/observability"
	"BullionLedger/internal/trade"
)

// Calendar is the external business-day collaborator.
type Calendar interface {
	IsBusinessDay(d time.Time) bool
	AddBusinessDays(d time.Time, n int) time.Time
	NextBusinessDay(d time.Time) time.Time
}

// PositionCreator is the inventory-position collaborator.
type PositionCreator interface {
	CreatePosition(ctx context.Context, productID string, tradeID uuid.UUID, location string, positionType ledger.PositionType, side ledger.Side, quantity decimal.Decimal) (*ledger.AppendResult, error)
}

// Failure records one trade that could not be settled in a run.
type Failure struct {
	TradeID uuid.UUID `json:"trade_id"`
	Err     error     `json:"-"`
	Reason  string    `json:"reason"`

	// Transient marks contention failures that stay eligible for the
	// next run. Business-rule rejections are permanent: the trade is
	// parked for review instead of being retried forever.
	Transient bool `json:"transient"`
}

// Report summarizes one settlement run. Partial success is the normal
// outcome, not an error: settled trades stay settled regardless of
// later failures in the same batch.
type Report struct {
	Selected int         `json:"selected"`
	Settled  []uuid.UUID `json:"settled"`
	Failures []Failure   `json:"failures,omitempty"`
}

// PartialFailureError aggregates the trade ids that failed in a run.
type PartialFailureError struct {
	TradeIDs []uuid.UUID
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, len(e.TradeIDs))
	for i, id := range e.TradeIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("settlement failed for %d trade(s): %s", len(ids), strings.Join(ids, ", "))
}

// Job scans unsettled trades past their settlement date and posts their
// actual cash transactions through the ledger service. It is
// schedule-agnostic: an external ticker calls RunOnce.
type Job struct {
	trades    trade.Store
	ledger    *ledger.Service
	calendar  Calendar
	positions PositionCreator
	queue     *event.Queue
	clock     func() time.Time
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewJob(trades trade.Store, ledgerSvc *ledger.Service, cal Calendar, positions PositionCreator, queue *event.Queue, log zerolog.Logger, metrics *observability.Metrics) *Job {
	return &Job{
		trades:    trades,
		ledger:    ledgerSvc,
		calendar:  cal,
		positions: positions,
		queue:     queue,
		clock:     func() time.Time { return time.Now().UTC() },
		log:       log,
		metrics:   metrics,
	}
}

// WithClock overrides the timestamp source. Tests only.
func (j *Job) WithClock(clock func() time.Time) *Job {
	j.clock = clock
	return j
}

// RunOnce settles every eligible trade, one at a time. A failure on one
// trade is recorded and the run continues with the next; when any trade
// failed, the report is returned together with a single
// PartialFailureError naming the failed ids. Successes are never rolled
// back. Re-running after a clean run selects zero trades: the settled
// flag is the single source of truth gating eligibility.
func (j *Job) RunOnce(ctx context.Context) (*Report, error) {
	start := j.clock()
	if j.metrics != nil {
		j.metrics.SettlementRuns.Inc()
		defer func() {
			j.metrics.SettlementRunDuration.Observe(j.clock().Sub(start).Seconds())
		}()
	}

	now := j.clock()
	due, err := j.trades.DueFinancial(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select due trades: %w", err)
	}

	report := &Report{Selected: 0}
	for _, t := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		// The target date rolls forward to the next business day.
		if j.calendar.NextBusinessDay(t.FinancialSettleOn).After(now) {
			continue
		}
		report.Selected++

		if err := j.settleFinancial(ctx, t); err != nil {
			f := Failure{TradeID: t.ID, Err: err, Reason: err.Error(), Transient: isTransient(err)}
			report.Failures = append(report.Failures, f)

			if !f.Transient {
				j.park(ctx, t, err)
			}

			class := "permanent"
			if f.Transient {
				class = "transient"
			}
			if j.metrics != nil {
				j.metrics.SettlementTradesFailed.WithLabelValues(class).Inc()
			}
			j.log.Error().
				Err(err).
				Str("trade_id", t.ID.String()).
				Bool("transient", f.Transient).
				Msg("trade settlement failed, continuing batch")
			continue
		}

		report.Settled = append(report.Settled, t.ID)
		if j.metrics != nil {
			j.metrics.SettlementTradesOK.Inc()
		}
	}

	j.log.Info().
		Int("selected", report.Selected).
		Int("settled", len(report.Settled)).
		Int("failed", len(report.Failures)).
		Msg("settlement run complete")

	if len(report.Failures) > 0 {
		agg := &PartialFailureError{}
		for _, f := range report.Failures {
			agg.TradeIDs = append(agg.TradeIDs, f.TradeID)
		}
		return report, agg
	}
	return report, nil
}

// settleFinancial posts the actual cash transaction for one trade and
// flips its settled flag. The flag update follows the ledger append; if
// the update fails the entry stands and the next run's MarkFinancialSettled
// guard prevents a double post only once the flag is durable, so the
// store update error propagates as a failure for this trade.
func (j *Job) settleFinancial(ctx context.Context, t *trade.Trade) error {
	if err := t.MarkFinancialSettled(); err != nil {
		return err
	}

	res, err := j.ledger.Append(ctx, ledger.AppendRequest{
		Key:       ledger.MoneyKey(ledger.DimensionActual),
		Kind:      ledger.KindFinancialTransaction,
		Side:      cashSide(t.Direction),
		Magnitude: t.Amount,
		SourceRef: t.ID.String(),
		Note:      "financial settlement",
	})
	if err != nil {
		return err
	}

	if err := j.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("persist settled flag: %w", err)
	}

	j.queue.Enqueue(res.Events...)
	j.queue.Enqueue(&event.TradeFinancialSettled{
		ID:       uuid.New(),
		TradeID:  t.ID,
		EntryID:  res.Entry.ID,
		RaisedAt: j.clock(),
	})
	return nil
}

// SettlePosition posts the inventory position entry for one trade
// through the position collaborator and flips the position flag.
// Invoked per trade when physical delivery is confirmed.
func (j *Job) SettlePosition(ctx context.Context, tradeID uuid.UUID, positionType ledger.PositionType) error {
	t, err := j.trades.Get(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := t.MarkPositionSettled(); err != nil {
		return err
	}

	res, err := j.positions.CreatePosition(ctx, t.ProductID, t.ID, t.Location, positionType, metalSide(t.Direction), t.Quantity)
	if err != nil {
		return err
	}

	if err := j.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("persist settled flag: %w", err)
	}

	j.queue.Enqueue(res.Events...)
	j.queue.Enqueue(&event.TradePositionSettled{
		ID:       uuid.New(),
		TradeID:  t.ID,
		EntryID:  res.Entry.ID,
		RaisedAt: j.clock(),
	})
	return nil
}

// park flags a trade for operator review so permanent rejections stop
// being reselected every run.
func (j *Job) park(ctx context.Context, t *trade.Trade, cause error) {
	t.IsFinancialSettled = false
	t.RequiresReview = true
	t.ReviewReason = cause.Error()
	if err := j.trades.Update(ctx, t); err != nil {
		j.log.Error().Err(err).Str("trade_id", t.ID.String()).Msg("park trade for review failed")
	}
}

// isTransient classifies failures for the retry policy: contention and
// cancellation are retried on the next run; everything else needs an
// operator.
func isTransient(err error) bool {
	return errors.Is(err, ledger.ErrLockTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func cashSide(d trade.Direction) ledger.Side {
	if d == trade.DirectionBuy {
		return ledger.SideDebit
	}
	return ledger.SideCredit
}

// metalSide is the inventory movement: buying metal increases the
// position, selling decreases it.
func metalSide(d trade.Direction) ledger.Side {
	if d == trade.DirectionBuy {
		return ledger.SideCredit
	}
	return ledger.SideDebit
}
