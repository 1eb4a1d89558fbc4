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

// CreateSubscription registers a recurring charge after a PIN check. The
// account must cover the first charge at creation time.
func (e *Engine) CreateSubscription(ctx context.Context, accountID, pin string, amount decimal.Decimal, interval time.Duration) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}

	account, err := e.getAccount(ctx, e.store, accountID)
	if err != nil {
		return "", err
	}
	if account.Balance.LessThan(amount) {
		return "", ErrInsufficientFunds
	}

	sub := &domain.Subscription{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Interval:  interval,
		Active:    true,
		NextDueAt: time.Now().Add(interval),
	}
	if err := e.store.Subscriptions().Save(ctx, sub); err != nil {
		return "", fmt.Errorf("subscription save: %w", err)
	}

	e.logger.InfoContext(ctx, "Subscription created",
		slog.String("account_id", accountID),
		slog.String("subscription_id", sub.ID),
		slog.String("amount", amount.String()),
		slog.Duration("interval", interval))
	return "Subscription created successfully.", nil
}

// CancelSubscription deactivates every active subscription on the account
// after a PIN check. Returns a distinct message when none was active. The
// mutation runs under the account lock so a cancellation serializes with an
// in-flight scheduler charge on the same account.
func (e *Engine) CancelSubscription(ctx context.Context, accountID, pin string) (string, error) {
	if err := e.pins.Verify(ctx, accountID, pin); err != nil {
		return "", err
	}

	var canceled int
	err := e.withAccountLock(accountID, func() error {
		subs, err := e.store.Subscriptions().GetActiveByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("subscription lookup: %w", err)
		}
		for _, sub := range subs {
			sub.Active = false
			if err := e.store.Subscriptions().Update(ctx, sub); err != nil {
				return fmt.Errorf("subscription update: %w", err)
			}
		}
		canceled = len(subs)
		return nil
	})
	if err != nil {
		return "", err
	}
	if canceled == 0 {
		return "No active subscription found for the account.", nil
	}

	e.logger.InfoContext(ctx, "Subscriptions canceled",
		slog.String("account_id", accountID),
		slog.Int("count", canceled))
	return "Subscription canceled successfully.", nil
}

// ChargeSubscription settles one due subscription. It is pre-authorized: no
// PIN challenge. The caller passes a snapshot from a scheduler sweep, so the
// stored subscription is reloaded under the account lock first; if it was
// canceled or removed since the sweep, the charge is skipped without a debit
// or a record. The debit, the SUBSCRIPTION record, and the advanced due time
// commit as one unit. ErrInsufficientFunds leaves everything untouched; the
// scheduler deactivates the subscription.
func (e *Engine) ChargeSubscription(ctx context.Context, sub *domain.Subscription) error {
	var rec *domain.TransactionRecord
	err := e.withAccountLock(sub.AccountID, func() error {
		return e.store.InTx(ctx, func(s repository.Store) error {
			current, err := s.Subscriptions().GetByID(ctx, sub.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("subscription lookup: %w", err)
			}
			if !current.Active {
				return nil
			}

			account, err := e.getAccount(ctx, s, current.AccountID)
			if err != nil {
				return err
			}
			if account.Balance.LessThan(current.Amount) {
				return ErrInsufficientFunds
			}

			account.Balance = account.Balance.Sub(current.Amount)
			if err := s.Accounts().Update(ctx, account); err != nil {
				return fmt.Errorf("balance update: %w", err)
			}

			current.Advance(time.Now())
			if err := s.Subscriptions().Update(ctx, current); err != nil {
				return fmt.Errorf("subscription update: %w", err)
			}
			rec = domain.NewTransactionRecord(domain.TypeSubscription, current.AccountID, current.Amount)
			return s.Transactions().Save(ctx, rec)
		})
	})
	if err != nil {
		return err
	}
	if rec == nil {
		e.logger.InfoContext(ctx, "Subscription charge skipped, no longer active",
			slog.String("account_id", sub.AccountID),
			slog.String("subscription_id", sub.ID))
		return nil
	}

	e.logger.InfoContext(ctx, "Subscription charged",
		slog.String("account_id", sub.AccountID),
		slog.String("subscription_id", sub.ID),
		slog.String("amount", rec.Amount.String()))
	e.publish(rec)
	return nil
}

// DeactivateSubscription marks one subscription inactive without a charge.
// It reloads the stored row under the account lock so a stale snapshot never
// overwrites concurrent changes.
func (e *Engine) DeactivateSubscription(ctx context.Context, sub *domain.Subscription) error {
	err := e.withAccountLock(sub.AccountID, func() error {
		current, err := e.store.Subscriptions().GetByID(ctx, sub.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("subscription lookup: %w", err)
		}
		if !current.Active {
			return nil
		}
		current.Active = false
		if err := e.store.Subscriptions().Update(ctx, current); err != nil {
			return fmt.Errorf("subscription update: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Subscription deactivated",
		slog.String("account_id", sub.AccountID),
		slog.String("subscription_id", sub.ID))
	return nil
}

// CreatePin sets the account PIN; serialized with financial operations on
// the same account.
func (e *Engine) CreatePin(ctx context.Context, accountID, password, pin string) (string, error) {
	err := e.withAccountLock(accountID, func() error {
		return e.pins.CreatePin(ctx, accountID, password, pin)
	})
	if err != nil {
		return "", err
	}
	return "PIN created successfully", nil
}

// UpdatePin rotates the account PIN; serialized like CreatePin.
func (e *Engine) UpdatePin(ctx context.Context, accountID, oldPin, password, newPin string) (string, error) {
	err := e.withAccountLock(accountID, func() error {
		return e.pins.UpdatePin(ctx, accountID, oldPin, password, newPin)
	})
	if err != nil {
		return "", err
	}
	return "PIN updated successfully", nil
}
