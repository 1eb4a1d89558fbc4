package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}

	account.CreatedAt = time.Now()
	account.LastActivityAt = time.Now()
	cp := *account
	r.accounts[account.ID] = &cp

	return nil
}

// GetByID returns a copy so callers cannot mutate stored state outside Update.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	cp := *account
	return &cp, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, account.ID)
	}

	account.LastActivityAt = time.Now()
	cp := *account
	r.accounts[account.ID] = &cp

	return nil
}

func (r *AccountRepository) GetAllActive(ctx context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Account
	for _, account := range r.accounts {
		if account.Status == domain.AccountActive {
			cp := *account
			result = append(result, &cp)
		}
	}

	return result, nil
}
