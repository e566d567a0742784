package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount rejects non-positive amounts and amounts over the
	// per-transaction ceiling. Validation errors are never retried.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInsufficientFunds is a definitive rejection, not a transient condition.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrAccountFrozen rejects debits and non-system credits on frozen accounts.
	ErrAccountFrozen = errors.New("ledger: account frozen")
	// ErrAccountNotFound means the referenced account row does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrBalanceCapExceeded rejects credits that would push the destination
	// over the configured maximum balance.
	ErrBalanceCapExceeded = errors.New("ledger: balance cap exceeded")
	// ErrSameAccount rejects transfers from an account to itself.
	ErrSameAccount = errors.New("ledger: source and destination are the same account")
)

const dailyWindow = 24 * time.Hour

// Service is the ledger engine: it owns every balance mutation. A balance
// changes only inside one gateway transaction together with the append-only
// Transaction row that records it, so replaying the rows always reproduces
// the balance.
type Service struct {
	gw     *db.Gateway
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time

	maxTransfer decimal.Decimal
	maxBalance  decimal.Decimal
	dailyCap    decimal.Decimal
	suspicious  decimal.Decimal
	alert       bool
}

// NewService creates the ledger Service.
func NewService(gw *db.Gateway, auditSvc *audit.Service, cfg config.EconomyConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:          gw,
		audit:       auditSvc,
		logger:      logger,
		clock:       time.Now,
		maxTransfer: decimal.NewFromFloat(cfg.MaxTransferAmount),
		maxBalance:  decimal.NewFromFloat(cfg.MaxBalance),
		dailyCap:    decimal.NewFromFloat(cfg.MaxDailyTransfer),
		suspicious:  decimal.NewFromFloat(cfg.SuspiciousValue),
		alert:       cfg.AlertOnSuspicious,
	}
}

// Transfer atomically debits from, credits to, and appends the ledger row.
// Either all three commit or none do. Transfers over the anti-fraud
// thresholds still execute but emit a SUSPICIOUS_ACTIVITY audit event.
func (svc *Service) Transfer(ctx context.Context, from, to Account, amount decimal.Decimal, txType model.TransactionType, reason string) error {
	if err := svc.validateAmount(amount); err != nil {
		return err
	}
	if from.Ref() == to.Ref() {
		return ErrSameAccount
	}

	// The rolling outflow is read before the write so the alert covers the
	// window as of this transfer; it is advisory and never blocks.
	outflowBefore, err := svc.DailyOutflow(ctx, from)
	if err != nil {
		return err
	}

	err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.debit(tx, from, amount); err != nil {
			return err
		}
		if err := svc.credit(tx, to, amount, false); err != nil {
			return err
		}
		return svc.appendRow(tx, &from, &to, amount, txType, reason)
	})
	if err != nil {
		return err
	}

	svc.recordMoneyEvent(model.AuditMoneyTransfer, from, amount, txType, reason)
	svc.fraudCheck(from, amount, outflowBefore)
	return nil
}

// Deposit credits a system-originated amount with no source account.
// allowFrozen is reserved for system reversals, which are the only credits
// a frozen account accepts.
func (svc *Service) Deposit(ctx context.Context, to Account, amount decimal.Decimal, txType model.TransactionType, reason string) error {
	if err := svc.validateAmount(amount); err != nil {
		return err
	}
	systemSide := txType == model.TxSystemReward || txType == model.TxSystemPenalty
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.credit(tx, to, amount, systemSide); err != nil {
			return err
		}
		return svc.appendRow(tx, nil, &to, amount, txType, reason)
	})
	if err != nil {
		return err
	}
	svc.recordMoneyEvent(model.AuditMoneyDeposit, to, amount, txType, reason)
	return nil
}

// Withdraw debits a system-destined amount with no destination account.
func (svc *Service) Withdraw(ctx context.Context, from Account, amount decimal.Decimal, txType model.TransactionType, reason string) error {
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		return svc.WithdrawTx(tx, from, amount, txType, reason)
	})
	if err != nil {
		return err
	}
	svc.recordMoneyEvent(model.AuditMoneyWithdraw, from, amount, txType, reason)
	return nil
}

// WithdrawTx is Withdraw composed into a caller-owned transaction, so the
// debit and its ledger row commit or roll back together with whatever entity
// writes the caller makes. It emits no money audit event; the caller records
// its own after the commit.
func (svc *Service) WithdrawTx(tx *gorm.DB, from Account, amount decimal.Decimal, txType model.TransactionType, reason string) error {
	if err := svc.validateAmount(amount); err != nil {
		return err
	}
	if err := svc.debit(tx, from, amount); err != nil {
		return err
	}
	return svc.appendRow(tx, &from, nil, amount, txType, reason)
}

// Freeze marks the account so it rejects debits and non-system credits.
func (svc *Service) Freeze(ctx context.Context, acct Account) error {
	return svc.setFrozen(ctx, acct, true, model.AuditEconomyFreeze)
}

// Unfreeze lifts a freeze.
func (svc *Service) Unfreeze(ctx context.Context, acct Account) error {
	return svc.setFrozen(ctx, acct, false, model.AuditEconomyUnfreeze)
}

// Balance reads the account's committed balance.
func (svc *Service) Balance(ctx context.Context, acct Account) (decimal.Decimal, error) {
	balance, _, err := acct.load(svc.gw.DB().WithContext(ctx))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, err
}

// History returns the most recent ledger rows touching the account,
// newest first.
func (svc *Service) History(ctx context.Context, acct Account, limit int) ([]model.Transaction, error) {
	var rows []model.Transaction
	ref := acct.Ref()
	err := svc.gw.DB().WithContext(ctx).
		Where("from_id = ? OR to_id = ?", ref, ref).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DailyOutflow sums the account's outgoing transfers over the rolling
// 24-hour window ending now.
func (svc *Service) DailyOutflow(ctx context.Context, acct Account) (decimal.Decimal, error) {
	since := svc.clock().Add(-dailyWindow).UnixMilli()
	var out struct {
		Total decimal.Decimal
	}
	err := svc.gw.DB().WithContext(ctx).Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("from_id = ? AND timestamp > ?", acct.Ref(), since).
		Scan(&out).Error
	return out.Total, err
}

// Replay recomputes the account's balance from its full transaction history
// in timestamp order. Used by audits to verify the ledger invariant.
func (svc *Service) Replay(ctx context.Context, acct Account) (decimal.Decimal, error) {
	var rows []model.Transaction
	ref := acct.Ref()
	err := svc.gw.DB().WithContext(ctx).
		Where("from_id = ? OR to_id = ?", ref, ref).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		if row.ToID != nil && *row.ToID == ref {
			total = total.Add(row.Amount)
		}
		if row.FromID != nil && *row.FromID == ref {
			total = total.Sub(row.Amount)
		}
	}
	return total, nil
}

// ---- internals ----

func (svc *Service) validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(svc.maxTransfer) {
		return fmt.Errorf("%w: %s exceeds per-transaction ceiling %s",
			ErrInvalidAmount, amount, svc.maxTransfer)
	}
	// Amounts finer than the minimum currency unit would break replay.
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s is below the 0.01 currency unit", ErrInvalidAmount, amount)
	}
	return nil
}

func (svc *Service) debit(tx *gorm.DB, acct Account, amount decimal.Decimal) error {
	res := acct.debitQuery(tx, amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svc.classifyDebitFailure(tx, acct)
	}
	return nil
}

func (svc *Service) credit(tx *gorm.DB, acct Account, amount decimal.Decimal, allowFrozen bool) error {
	headroom := svc.maxBalance.Sub(amount)
	res := acct.creditQuery(tx, amount, headroom, allowFrozen)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svc.classifyCreditFailure(tx, acct, allowFrozen)
	}
	return nil
}

// classifyDebitFailure explains a zero-row guarded debit: the guard folds
// existence, frozen and funds checks into one statement, so the reason is
// recovered by a plain read afterwards.
func (svc *Service) classifyDebitFailure(tx *gorm.DB, acct Account) error {
	_, frozen, err := acct.load(tx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if frozen {
		return ErrAccountFrozen
	}
	return ErrInsufficientFunds
}

func (svc *Service) classifyCreditFailure(tx *gorm.DB, acct Account, allowFrozen bool) error {
	_, frozen, err := acct.load(tx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if frozen && !allowFrozen {
		return ErrAccountFrozen
	}
	return ErrBalanceCapExceeded
}

func (svc *Service) appendRow(tx *gorm.DB, from, to *Account, amount decimal.Decimal, txType model.TransactionType, reason string) error {
	row := &model.Transaction{
		Amount:    amount,
		Type:      txType,
		Reason:    reason,
		Timestamp: svc.clock().UnixMilli(),
	}
	if from != nil {
		ref := from.Ref()
		row.FromID = &ref
	}
	if to != nil {
		ref := to.Ref()
		row.ToID = &ref
	}
	return tx.Create(row).Error
}

func (svc *Service) setFrozen(ctx context.Context, acct Account, frozen bool, event model.AuditEventType) error {
	res := acct.setFrozen(svc.gw.DB().WithContext(ctx), frozen)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: optionalUUID(acct),
		EventType:  event,
		Details:    map[string]string{"account": acct.Ref()},
	})
	return nil
}

func (svc *Service) recordMoneyEvent(event model.AuditEventType, acct Account, amount decimal.Decimal, txType model.TransactionType, reason string) {
	svc.audit.Record(audit.Entry{
		PlayerUUID: optionalUUID(acct),
		EventType:  event,
		Details: map[string]string{
			"account": acct.Ref(),
			"amount":  amount.StringFixed(2),
			"type":    string(txType),
			"reason":  reason,
		},
	})
}

// fraudCheck emits SUSPICIOUS_ACTIVITY alerts after a committed transfer.
// Advisory only: the transfer has already succeeded.
func (svc *Service) fraudCheck(from Account, amount, outflowBefore decimal.Decimal) {
	if !svc.alert {
		return
	}
	if amount.GreaterThan(svc.suspicious) {
		svc.logger.Warn("suspicious transfer value",
			zap.String("account", from.Ref()),
			zap.String("amount", amount.StringFixed(2)))
		svc.audit.Record(audit.Entry{
			PlayerUUID: optionalUUID(from),
			EventType:  model.AuditSuspiciousActivity,
			Details: map[string]string{
				"account": from.Ref(),
				"check":   "single_transfer_threshold",
				"amount":  amount.StringFixed(2),
			},
		})
	}
	if outflowBefore.Add(amount).GreaterThan(svc.dailyCap) {
		svc.logger.Warn("daily outflow cap exceeded",
			zap.String("account", from.Ref()),
			zap.String("outflow", outflowBefore.Add(amount).StringFixed(2)))
		svc.audit.Record(audit.Entry{
			PlayerUUID: optionalUUID(from),
			EventType:  model.AuditSuspiciousActivity,
			Details: map[string]string{
				"account": from.Ref(),
				"check":   "daily_outflow_cap",
				"outflow": outflowBefore.Add(amount).StringFixed(2),
			},
		})
	}
}

func optionalUUID(acct Account) *string {
	if !acct.IsPlayer() {
		return nil
	}
	id := acct.PlayerUUID()
	return &id
}
