package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"equity-risk-engine/internal/broker"
	"equity-risk-engine/internal/compliance"
	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/monitoring"
	"equity-risk-engine/internal/risk"
	"equity-risk-engine/internal/store"
	"equity-risk-engine/pkg/types"
)

// Status is the terminal state of one signal execution.
type Status string

const (
	StatusSuccess            Status = "SUCCESS"
	StatusRejectedValidation Status = "REJECTED_VALIDATION"
	StatusRejectedCompliance Status = "REJECTED_COMPLIANCE"
	StatusRejectedRisk       Status = "REJECTED_RISK"
	StatusRejectedDryRun     Status = "REJECTED_DRY_RUN"
	StatusFailedOrder        Status = "FAILED_ORDER"
	StatusFailedBroker       Status = "FAILED_BROKER"
)

// ExecutionLog is the audit record for one signal, persisted on every exit
// path including failures.
type ExecutionLog struct {
	ID              string               `json:"id"`
	AccountID       string               `json:"account_id"`
	Symbol          string               `json:"symbol"`
	Side            types.SignalType     `json:"side"`
	Status          Status               `json:"status"`
	Message         string               `json:"message"`
	Signal          *types.TradingSignal `json:"signal"`
	Validation      *risk.Validation     `json:"validation,omitempty"`
	Order           *types.Order         `json:"order,omitempty"`
	DayTrade        bool                 `json:"day_trade,omitempty"`
	DryRun          bool                 `json:"dry_run,omitempty"`
	ExecutionTimeMs int64                `json:"execution_time_ms"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Executor turns approved signals into broker orders. Every run produces an
// audit record; nothing exits this pipeline unlogged.
type Executor struct {
	broker broker.Broker
	risk   *risk.Manager
	store  store.Store
	log    *logger.Logger
	health *monitoring.HealthChecker
}

// New creates an order executor. risk may be nil; execution then proceeds
// with a degraded warning instead of pre-trade checks.
func New(b broker.Broker, rm *risk.Manager, st store.Store, log *logger.Logger, health *monitoring.HealthChecker) *Executor {
	return &Executor{broker: b, risk: rm, store: st, log: log, health: health}
}

// ExecuteSignal runs the full pipeline for one signal: validate, place,
// record. HOLD and malformed signals reject before any broker contact.
func (e *Executor) ExecuteSignal(ctx context.Context, signal *types.TradingSignal, execCtx types.ExecutionContext) *ExecutionLog {
	started := time.Now()
	entry := &ExecutionLog{
		ID:        ulid.Make().String(),
		AccountID: execCtx.AccountID,
		Signal:    signal,
		DryRun:    execCtx.DryRun,
		CreatedAt: started,
	}
	if signal != nil {
		entry.Symbol = signal.Symbol
		entry.Side = signal.Type
	}

	if reason := validateSignal(signal, execCtx); reason != "" {
		return e.finalize(ctx, entry, StatusRejectedValidation, reason, started)
	}

	if e.risk != nil {
		// Hold the account lock across validate-and-place so two concurrent
		// signals cannot both pass a limit check and then both consume it.
		unlock := e.risk.LockAccount(execCtx.AccountID)
		defer unlock()

		validation := e.risk.ValidateTrade(ctx, execCtx.AccountID, signal)
		entry.Validation = validation
		if !validation.Approved {
			status := StatusRejectedRisk
			if validation.Compliance != nil && !validation.Compliance.CanProceed {
				status = StatusRejectedCompliance
				monitoring.RecordComplianceBlock(string(validation.Compliance.Result))
			}
			return e.finalize(ctx, entry, status, validation.Reason, started)
		}
		for _, advisory := range validation.Advisories {
			e.log.Risk("account %s %s: %s", execCtx.AccountID, signal.Symbol, advisory)
		}
		signal.Quantity = validation.RecommendedQty
	} else {
		e.log.Degraded("no risk manager wired, executing %s %s without pre-trade checks",
			signal.Type, signal.Symbol)
	}

	if execCtx.DryRun {
		msg := fmt.Sprintf("dry run: would %s %d %s", signal.Type, signal.Quantity, signal.Symbol)
		return e.finalize(ctx, entry, StatusRejectedDryRun, msg, started)
	}

	order, err := e.placeOrder(ctx, signal, execCtx)
	if err != nil {
		e.log.LogError("order placement failed", err)
		if e.health != nil {
			e.health.SetBrokerConnected(false)
			e.health.RecordFault(err.Error())
		}
		monitoring.RecordError("broker")
		return e.finalize(ctx, entry, StatusFailedBroker, err.Error(), started)
	}
	if e.health != nil {
		e.health.SetBrokerConnected(true)
	}

	entry.Order = order
	if order.Status == types.OrderStatusRejected {
		return e.finalize(ctx, entry, StatusFailedOrder,
			fmt.Sprintf("broker rejected order %s", order.ID), started)
	}

	e.recordFill(ctx, entry, signal, execCtx, order)

	msg := fmt.Sprintf("%s %d %s @ $%.2f (order %s)",
		signal.Type, order.Quantity, signal.Symbol, order.FillPrice, order.ID)
	e.log.Trade("account %s: %s", execCtx.AccountID, msg)
	return e.finalize(ctx, entry, StatusSuccess, msg, started)
}

// validateSignal returns a rejection reason, or "" when the signal is
// executable.
func validateSignal(signal *types.TradingSignal, execCtx types.ExecutionContext) string {
	switch {
	case signal == nil:
		return "nil signal"
	case execCtx.AccountID == "":
		return "missing account id"
	case signal.Symbol == "":
		return "missing symbol"
	case !signal.Type.Actionable():
		return fmt.Sprintf("signal type %s is not actionable", signal.Type)
	case signal.Price < 0:
		return "negative price"
	case signal.Quantity < 0:
		return "negative quantity"
	case signal.Confidence < 0 || signal.Confidence > 1:
		return fmt.Sprintf("confidence %.2f outside [0,1]", signal.Confidence)
	case execCtx.OrderType == types.OrderTypeLimit && execCtx.LimitPrice <= 0:
		return "limit order without a limit price"
	}
	return ""
}

func (e *Executor) placeOrder(ctx context.Context, signal *types.TradingSignal, execCtx types.ExecutionContext) (*types.Order, error) {
	if execCtx.OrderType == types.OrderTypeLimit {
		return e.broker.PlaceLimitOrder(ctx, execCtx.AccountID, signal.Symbol, signal.Type, signal.Quantity, execCtx.LimitPrice)
	}
	return e.broker.PlaceMarketOrder(ctx, execCtx.AccountID, signal.Symbol, signal.Type, signal.Quantity)
}

// recordFill persists settlement and frequency state for the fill and, for a
// sell, checks whether it closed a same-day round trip. Bookkeeping faults
// are logged, not fatal: the order already filled.
func (e *Executor) recordFill(ctx context.Context, entry *ExecutionLog, signal *types.TradingSignal, execCtx types.ExecutionContext, order *types.Order) {
	if e.risk == nil {
		return
	}
	now := time.Now()

	fundedByUnsettled := false
	if entry.Validation != nil && entry.Validation.Compliance != nil {
		if v, ok := entry.Validation.Compliance.Details["funded_by_unsettled"].(bool); ok {
			fundedByUnsettled = v
		}
	}

	if err := e.risk.Compliance.RecordFill(ctx, execCtx.AccountID, signal.Symbol, order.ID,
		signal.Type, order.Quantity, order.FillPrice, fundedByUnsettled, now); err != nil {
		e.log.LogError("settlement bookkeeping failed", err)
		monitoring.RecordError("storage")
	}

	if signal.Type == types.SignalSell {
		dt, err := e.risk.Compliance.DetectAndRecordDayTrade(ctx, execCtx.AccountID, signal.Symbol, order.ID, now)
		if err != nil {
			e.log.LogError("day-trade detection failed", err)
			monitoring.RecordError("storage")
		}
		entry.DayTrade = dt != nil
	}
}

// finalize stamps the entry, persists it, and emits metrics. Audit
// persistence failures are logged and swallowed; the decision stands either
// way.
func (e *Executor) finalize(ctx context.Context, entry *ExecutionLog, status Status, message string, started time.Time) *ExecutionLog {
	entry.Status = status
	entry.Message = message
	entry.ExecutionTimeMs = time.Since(started).Milliseconds()

	monitoring.RecordValidation(string(status))
	monitoring.RecordExecution(string(status), string(entry.Side), time.Since(started).Seconds())
	if e.health != nil {
		e.health.MarkExecution()
	}

	if status != StatusSuccess {
		e.log.Risk("account %s %s %s: %s - %s", entry.AccountID, entry.Side, entry.Symbol, status, message)
	}

	if e.store != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			e.log.LogError("audit payload encoding failed", err)
			payload = []byte("{}")
		}
		rec := store.AuditRecord{
			ID:        entry.ID,
			AccountID: entry.AccountID,
			Symbol:    entry.Symbol,
			Side:      string(entry.Side),
			Status:    string(status),
			Message:   message,
			CreatedAt: entry.CreatedAt,
			Payload:   payload,
		}
		if err := e.store.RecordAudit(ctx, rec); err != nil {
			e.log.LogError("audit record persistence failed", err)
			monitoring.RecordError("storage")
			if e.health != nil {
				e.health.SetStoreConnected(false)
			}
		}
	}

	return entry
}

// ComplianceBlocked reports whether the entry was stopped by a regulatory
// check rather than portfolio risk.
func (l *ExecutionLog) ComplianceBlocked() bool {
	if l.Status != StatusRejectedCompliance || l.Validation == nil || l.Validation.Compliance == nil {
		return false
	}
	switch l.Validation.Compliance.Result {
	case compliance.ResultBlockedPDT, compliance.ResultBlockedSettlement,
		compliance.ResultBlockedFrequency, compliance.ResultBlockedGFV:
		return true
	}
	return false
}
