package repository

import (
	"context"
	"errors"
	"time"

	"custodian/internal/domain"
)

type AccountRepository interface {
	Save(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	GetAllActive(ctx context.Context) ([]*domain.Account, error)
}

type TransactionRepository interface {
	Save(ctx context.Context, record *domain.TransactionRecord) error
	GetBySourceAccount(ctx context.Context, accountID string) ([]*domain.TransactionRecord, error)
	GetByPeriod(ctx context.Context, from, to time.Time) ([]*domain.TransactionRecord, error)
}

// AssetLotRepository returns lots for one (account, symbol) pair ordered by
// purchase time ascending; that ordering is the FIFO cost-basis rule.
type AssetLotRepository interface {
	Save(ctx context.Context, lot *domain.AssetLot) error
	Update(ctx context.Context, lot *domain.AssetLot) error
	Delete(ctx context.Context, id string) error
	GetByAccountAndSymbol(ctx context.Context, accountID, symbol string) ([]*domain.AssetLot, error)
	GetByAccount(ctx context.Context, accountID string) ([]*domain.AssetLot, error)
}

type SubscriptionRepository interface {
	Save(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	GetActive(ctx context.Context) ([]*domain.Subscription, error)
	GetActiveByAccount(ctx context.Context, accountID string) ([]*domain.Subscription, error)
}

// Store bundles the repositories and supplies the unit-of-work boundary.
// InTx runs fn against a store whose mutations commit or roll back together;
// the memory store runs fn directly (the engine's per-account lock already
// serializes mutations and memory writes cannot partially fail after the
// engine has validated), the postgres store opens a database transaction.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	AssetLots() AssetLotRepository
	Subscriptions() SubscriptionRepository
	InTx(ctx context.Context, fn func(Store) error) error
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
