package memory

import (
	"context"

	"custodian/internal/repository"
)

var (
	_ repository.AccountRepository      = (*AccountRepository)(nil)
	_ repository.TransactionRepository  = (*TransactionRepository)(nil)
	_ repository.AssetLotRepository     = (*AssetLotRepository)(nil)
	_ repository.SubscriptionRepository = (*SubscriptionRepository)(nil)
	_ repository.Store                  = (*Store)(nil)
)

type Store struct {
	accounts      *AccountRepository
	transactions  *TransactionRepository
	assetLots     *AssetLotRepository
	subscriptions *SubscriptionRepository
}

func NewStore() *Store {
	return &Store{
		accounts:      NewAccountRepository(),
		transactions:  NewTransactionRepository(),
		assetLots:     NewAssetLotRepository(),
		subscriptions: NewSubscriptionRepository(),
	}
}

func (s *Store) Accounts() repository.AccountRepository           { return s.accounts }
func (s *Store) Transactions() repository.TransactionRepository   { return s.transactions }
func (s *Store) AssetLots() repository.AssetLotRepository         { return s.assetLots }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return s.subscriptions }

// InTx runs fn directly. The engine validates before mutating and holds the
// account lock for the whole unit, so in-memory writes cannot partially fail.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}
