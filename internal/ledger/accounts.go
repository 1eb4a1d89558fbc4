package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"custodian/internal/domain"
)

// CreateAccount opens a new custodial account with a zero balance and no
// PIN. The password is hashed before it is stored; the clear text never
// leaves this call.
func (e *Engine) CreateAccount(ctx context.Context, password string) (*domain.Account, error) {
	hashed, err := e.pins.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}

	now := time.Now()
	account := &domain.Account{
		ID:             uuid.NewString(),
		Balance:        decimal.Zero,
		HashedPassword: hashed,
		Status:         domain.AccountActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := e.store.Accounts().Save(ctx, account); err != nil {
		return nil, fmt.Errorf("account save: %w", err)
	}

	e.logger.InfoContext(ctx, "Account created", slog.String("account_id", account.ID))
	return account, nil
}
