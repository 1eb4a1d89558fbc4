package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

// quantityScale is the number of decimal places purchased quantities are
// rounded to.
const quantityScale = 2

const topicTransactionCompleted = "transactions.completed"

// Notifier receives best-effort trade confirmations after a mutation has
// committed. Implementations swallow their own failures; the engine never
// rolls back a committed trade because a notification could not be sent.
type Notifier interface {
	NotifyPurchase(account *domain.Account, symbol string, quantity, amount decimal.Decimal)
	NotifySale(account *domain.Account, symbol string, quantity, profitOrLoss decimal.Decimal)
}

// EventPublisher emits a completed-transaction event to an external bus.
type EventPublisher interface {
	Publish(topic string, event any) error
}

// TransactionCompleted is the event published for every committed record.
type TransactionCompleted struct {
	RecordID        string                 `json:"record_id"`
	SourceAccountID string                 `json:"source_account_id"`
	TargetAccountID string                 `json:"target_account_id"`
	Amount          decimal.Decimal        `json:"amount"`
	Type            domain.TransactionType `json:"type"`
	AssetSymbol     string                 `json:"asset_symbol,omitempty"`
	OccurredAt      time.Time              `json:"occurred_at"`
}

// Oracle is the market price source the engine consults before trades.
// It must return an error on unknown symbols, never panic into the engine.
type Oracle interface {
	Quote(symbol string) (decimal.Decimal, error)
}

// Engine is the transactional core. Every balance or lot mutation funnels
// through it: interactive requests after a PIN check, scheduler paths
// pre-authorized. Each operation commits its mutation and exactly one
// transaction record in one store unit of work, under the owning account's
// lock. Price lookups and notifications happen outside the lock.
type Engine struct {
	store    repository.Store
	oracle   Oracle
	pins     *PinGuard
	notifier Notifier
	events   EventPublisher
	locks    *accountLocks
	logger   *slog.Logger
}

func NewEngine(
	store repository.Store,
	oracle Oracle,
	pins *PinGuard,
	notifier Notifier,
	events EventPublisher,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:    store,
		oracle:   oracle,
		pins:     pins,
		notifier: notifier,
		events:   events,
		locks:    newAccountLocks(),
		logger:   logger,
	}
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyPurchase(*domain.Account, string, decimal.Decimal, decimal.Decimal) {}
func (NopNotifier) NotifySale(*domain.Account, string, decimal.Decimal, decimal.Decimal)     {}

// VerifyPin exposes the PIN check to callers that gate non-engine actions,
// such as auto-invest enrollment.
func (e *Engine) VerifyPin(ctx context.Context, accountID, pin string) error {
	return e.pins.Verify(ctx, accountID, pin)
}

func (e *Engine) withAccountLock(accountID string, fn func() error) error {
	mu := e.locks.get(accountID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (e *Engine) getAccount(ctx context.Context, s repository.Store, id string) (*domain.Account, error) {
	account, err := s.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return account, nil
}

func (e *Engine) publish(rec *domain.TransactionRecord) {
	if e.events == nil {
		return
	}
	event := TransactionCompleted{
		RecordID:        rec.ID,
		SourceAccountID: rec.SourceAccountID,
		TargetAccountID: rec.TargetAccountID,
		Amount:          rec.Amount,
		Type:            rec.Type,
		AssetSymbol:     rec.AssetSymbol,
		OccurredAt:      rec.CreatedAt,
	}
	go func() {
		if err := e.events.Publish(topicTransactionCompleted, event); err != nil {
			e.logger.Warn("Event publish failed",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()))
		}
	}()
}

// Deposit credits the account and records a CASH_DEPOSIT.
func (e *Engine) Deposit(ctx context.Context, accountID, pin string, amount decimal.Decimal) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}

	rec := domain.NewTransactionRecord(domain.TypeCashDeposit, accountID, amount)
	err := e.withAccountLock(accountID, func() error {
		return e.store.InTx(ctx, func(s repository.Store) error {
			account, err := e.getAccount(ctx, s, accountID)
			if err != nil {
				return err
			}
			account.Balance = account.Balance.Add(amount)
			if err := s.Accounts().Update(ctx, account); err != nil {
				return fmt.Errorf("balance update: %w", err)
			}
			return s.Transactions().Save(ctx, rec)
		})
	})
	if err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "Deposit completed",
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()))
	e.publish(rec)
	return "Cash deposited successfully", nil
}

// Withdraw debits the account if the balance covers the amount and records a
// CASH_WITHDRAWAL. On ErrInsufficientFunds the balance is untouched.
func (e *Engine) Withdraw(ctx context.Context, accountID, pin string, amount decimal.Decimal) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}

	rec := domain.NewTransactionRecord(domain.TypeCashWithdrawal, accountID, amount)
	err := e.withAccountLock(accountID, func() error {
		return e.store.InTx(ctx, func(s repository.Store) error {
			account, err := e.getAccount(ctx, s, accountID)
			if err != nil {
				return err
			}
			if account.Balance.LessThan(amount) {
				return ErrInsufficientFunds
			}
			account.Balance = account.Balance.Sub(amount)
			if err := s.Accounts().Update(ctx, account); err != nil {
				return fmt.Errorf("balance update: %w", err)
			}
			return s.Transactions().Save(ctx, rec)
		})
	})
	if err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "Withdrawal completed",
		slog.String("account_id", accountID),
		slog.String("amount", amount.String()))
	e.publish(rec)
	return "Cash withdrawn successfully", nil
}

// Transfer moves amount from source to target atomically: both balance
// updates and the single CASH_TRANSFER record commit together. The PIN is
// checked against the source account only. Locks are taken in ascending
// account-id order. A transfer onto the sending account is rejected before
// any lock is taken.
func (e *Engine) Transfer(ctx context.Context, sourceID, pin, targetID string, amount decimal.Decimal) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}
	if sourceID == targetID {
		return "", ErrSameAccountTransfer
	}
	if err := e.pins.Verify(ctx, sourceID, pin); err != nil {
		return "", err
	}

	rec := domain.NewTransactionRecord(domain.TypeCashTransfer, sourceID, amount).WithTarget(targetID)
	unlock := e.locks.lockPair(sourceID, targetID)
	err := e.store.InTx(ctx, func(s repository.Store) error {
		source, err := e.getAccount(ctx, s, sourceID)
		if err != nil {
			return err
		}
		target, err := e.getAccount(ctx, s, targetID)
		if err != nil {
			return err
		}
		if source.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		source.Balance = source.Balance.Sub(amount)
		target.Balance = target.Balance.Add(amount)

		if err := s.Accounts().Update(ctx, source); err != nil {
			return fmt.Errorf("source update: %w", err)
		}
		if err := s.Accounts().Update(ctx, target); err != nil {
			return fmt.Errorf("target update: %w", err)
		}
		return s.Transactions().Save(ctx, rec)
	})
	unlock()
	if err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "Transfer completed",
		slog.String("source_account", sourceID),
		slog.String("target_account", targetID),
		slog.String("amount", amount.String()))
	e.publish(rec)
	return "Fund transferred successfully", nil
}

// BuyAsset spends cashAmount on symbol at the current market price after a
// PIN check. Each purchase appends its own lot; purchases are never merged.
func (e *Engine) BuyAsset(ctx context.Context, accountID, pin, symbol string, cashAmount decimal.Decimal) (string, error) {
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}
	return e.buyAsset(ctx, accountID, symbol, cashAmount)
}

// AutoBuy is the pre-authorized purchase path for the auto-invest bot. The
// account opted in at activation; no interactive PIN challenge.
func (e *Engine) AutoBuy(ctx context.Context, accountID, symbol string, cashAmount decimal.Decimal) error {
	_, err := e.buyAsset(ctx, accountID, symbol, cashAmount)
	return err
}

func (e *Engine) buyAsset(ctx context.Context, accountID, symbol string, cashAmount decimal.Decimal) (string, error) {
	if cashAmount.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}

	// Quote before taking the account lock: a slow price source must not
	// hold up every other mutation on this account.
	price, err := e.oracle.Quote(symbol)
	if err != nil {
		return "", err
	}

	quantity := cashAmount.Div(price).Round(quantityScale)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}

	rec := domain.NewTransactionRecord(domain.TypeAssetPurchase, accountID, cashAmount).WithSymbol(symbol)
	var buyer *domain.Account
	err = e.withAccountLock(accountID, func() error {
		return e.store.InTx(ctx, func(s repository.Store) error {
			account, err := e.getAccount(ctx, s, accountID)
			if err != nil {
				return err
			}
			if account.Balance.LessThan(cashAmount) {
				return ErrInsufficientFunds
			}

			account.Balance = account.Balance.Sub(cashAmount)
			if err := s.Accounts().Update(ctx, account); err != nil {
				return fmt.Errorf("balance update: %w", err)
			}

			lot := &domain.AssetLot{
				ID:            uuid.NewString(),
				AccountID:     accountID,
				Symbol:        symbol,
				Quantity:      quantity,
				PurchasePrice: price,
				PurchasedAt:   time.Now(),
			}
			if err := s.AssetLots().Save(ctx, lot); err != nil {
				return fmt.Errorf("lot save: %w", err)
			}

			buyer = account
			return s.Transactions().Save(ctx, rec)
		})
	})
	if err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "Asset purchase completed",
		slog.String("account_id", accountID),
		slog.String("symbol", symbol),
		slog.String("quantity", quantity.String()),
		slog.String("amount", cashAmount.String()))
	e.notifier.NotifyPurchase(buyer, symbol, quantity, cashAmount)
	e.publish(rec)
	return "Asset purchase successful", nil
}

// SellAsset sells quantity of symbol at the current market price after a PIN
// check, consuming lots oldest-first for the cost basis.
func (e *Engine) SellAsset(ctx context.Context, accountID, pin, symbol string, quantity decimal.Decimal) (string, error) {
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}
	return e.sellAsset(ctx, accountID, symbol, quantity)
}

// AutoSell is the pre-authorized sale path for the auto-invest bot.
func (e *Engine) AutoSell(ctx context.Context, accountID, symbol string, quantity decimal.Decimal) error {
	_, err := e.sellAsset(ctx, accountID, symbol, quantity)
	return err
}

func (e *Engine) sellAsset(ctx context.Context, accountID, symbol string, quantity decimal.Decimal) (string, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}

	price, err := e.oracle.Quote(symbol)
	if err != nil {
		return "", err
	}
	proceeds := quantity.Mul(price)

	var (
		seller    *domain.Account
		costBasis decimal.Decimal
	)
	rec := domain.NewTransactionRecord(domain.TypeAssetSell, accountID, proceeds).WithSymbol(symbol)
	err = e.withAccountLock(accountID, func() error {
		return e.store.InTx(ctx, func(s repository.Store) error {
			account, err := e.getAccount(ctx, s, accountID)
			if err != nil {
				return err
			}

			lots, err := s.AssetLots().GetByAccountAndSymbol(ctx, accountID, symbol)
			if err != nil {
				return fmt.Errorf("lot lookup: %w", err)
			}

			plan, basis, err := consumeLots(lots, quantity)
			if err != nil {
				return err
			}
			costBasis = basis

			for _, c := range plan {
				if c.Exhausts {
					if err := s.AssetLots().Delete(ctx, c.Lot.ID); err != nil {
						return fmt.Errorf("lot delete: %w", err)
					}
					continue
				}
				c.Lot.Quantity = c.Lot.Quantity.Sub(c.Quantity)
				if err := s.AssetLots().Update(ctx, c.Lot); err != nil {
					return fmt.Errorf("lot update: %w", err)
				}
			}

			account.Balance = account.Balance.Add(proceeds)
			if err := s.Accounts().Update(ctx, account); err != nil {
				return fmt.Errorf("balance update: %w", err)
			}

			seller = account
			return s.Transactions().Save(ctx, rec)
		})
	})
	if err != nil {
		return "", err
	}

	profit := proceeds.Sub(costBasis)
	e.logger.InfoContext(ctx, "Asset sale completed",
		slog.String("account_id", accountID),
		slog.String("symbol", symbol),
		slog.String("quantity", quantity.String()),
		slog.String("proceeds", proceeds.String()),
		slog.String("profit", profit.String()))
	e.notifier.NotifySale(seller, symbol, quantity, profit)
	e.publish(rec)
	return "Asset sale successful", nil
}

// TransactionHistory returns the records whose source is the account,
// oldest first.
func (e *Engine) TransactionHistory(ctx context.Context, accountID string) ([]*domain.TransactionRecord, error) {
	if _, err := e.getAccount(ctx, e.store, accountID); err != nil {
		return nil, err
	}
	records, err := e.store.Transactions().GetBySourceAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("history lookup: %w", err)
	}
	return records, nil
}

// TransactionsByPeriod returns every record created inside [from, to],
// across all accounts, oldest first.
func (e *Engine) TransactionsByPeriod(ctx context.Context, from, to time.Time) ([]*domain.TransactionRecord, error) {
	records, err := e.store.Transactions().GetByPeriod(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("period lookup: %w", err)
	}
	return records, nil
}

// ActiveAccounts lists every account still able to transact.
func (e *Engine) ActiveAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := e.store.Accounts().GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("account listing: %w", err)
	}
	return accounts, nil
}

// AccountInfo returns a snapshot of the account.
func (e *Engine) AccountInfo(ctx context.Context, accountID string) (*domain.Account, error) {
	return e.getAccount(ctx, e.store, accountID)
}

// Holdings aggregates lot quantities per symbol.
func (e *Engine) Holdings(ctx context.Context, accountID string) (map[string]decimal.Decimal, error) {
	if _, err := e.getAccount(ctx, e.store, accountID); err != nil {
		return nil, err
	}
	lots, err := e.store.AssetLots().GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lot lookup: %w", err)
	}

	holdings := make(map[string]decimal.Decimal)
	for _, lot := range lots {
		holdings[lot.Symbol] = holdings[lot.Symbol].Add(lot.Quantity)
	}
	return holdings, nil
}

// NetWorth is cash plus holdings marked to current market prices.
func (e *Engine) NetWorth(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := e.getAccount(ctx, e.store, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	holdings, err := e.Holdings(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	total := account.Balance
	for symbol, quantity := range holdings {
		price, err := e.oracle.Quote(symbol)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pricing %s: %w", symbol, err)
		}
		total = total.Add(quantity.Mul(price))
	}
	return total, nil
}
