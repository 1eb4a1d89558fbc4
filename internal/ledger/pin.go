package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"custodian/internal/repository"
	"custodian/pkg/crypto"
)

// PinGuard verifies the secret PIN before any financial mutation is allowed.
// Verify is read-only; CreatePin and UpdatePin mutate the account and are
// called by the engine under the owning account's lock so they serialize
// with financial operations.
type PinGuard struct {
	accounts repository.AccountRepository
	hasher   *crypto.Hasher
	logger   *slog.Logger
}

func NewPinGuard(accounts repository.AccountRepository, hasher *crypto.Hasher, logger *slog.Logger) *PinGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &PinGuard{accounts: accounts, hasher: hasher, logger: logger}
}

func (g *PinGuard) Verify(ctx context.Context, accountID, pin string) error {
	account, err := g.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return fmt.Errorf("pin lookup: %w", err)
	}

	if !account.PinSet() {
		return ErrPinNotSet
	}

	if err := g.hasher.Compare(account.HashedPin, pin); err != nil {
		if errors.Is(err, crypto.ErrHashMismatch) {
			return ErrInvalidPin
		}
		return fmt.Errorf("pin compare: %w", err)
	}

	return nil
}

// CreatePin sets the PIN after checking the account password.
func (g *PinGuard) CreatePin(ctx context.Context, accountID, password, pin string) error {
	account, err := g.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return fmt.Errorf("account lookup: %w", err)
	}

	if err := g.hasher.Compare(account.HashedPassword, password); err != nil {
		if errors.Is(err, crypto.ErrHashMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("password compare: %w", err)
	}

	hashed, err := g.hasher.Hash(pin)
	if err != nil {
		return fmt.Errorf("pin hash: %w", err)
	}

	account.HashedPin = hashed
	if err := g.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("pin save: %w", err)
	}

	g.logger.Info("PIN created", slog.String("account_id", accountID))
	return nil
}

// UpdatePin requires both the account password and the current PIN.
func (g *PinGuard) UpdatePin(ctx context.Context, accountID, oldPin, password, newPin string) error {
	account, err := g.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return fmt.Errorf("account lookup: %w", err)
	}

	if err := g.hasher.Compare(account.HashedPassword, password); err != nil {
		if errors.Is(err, crypto.ErrHashMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("password compare: %w", err)
	}

	if !account.PinSet() {
		return ErrPinNotSet
	}
	if err := g.hasher.Compare(account.HashedPin, oldPin); err != nil {
		if errors.Is(err, crypto.ErrHashMismatch) {
			return ErrInvalidPin
		}
		return fmt.Errorf("pin compare: %w", err)
	}

	hashed, err := g.hasher.Hash(newPin)
	if err != nil {
		return fmt.Errorf("pin hash: %w", err)
	}

	account.HashedPin = hashed
	if err := g.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("pin save: %w", err)
	}

	g.logger.Info("PIN updated", slog.String("account_id", accountID))
	return nil
}
