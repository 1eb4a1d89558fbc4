package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

type SubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		subs: make(map[string]*domain.Subscription),
	}
}

func (r *SubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.ID]; exists {
		return fmt.Errorf("%w: subscription %s", repository.ErrDuplicate, sub.ID)
	}

	sub.CreatedAt = time.Now()
	cp := *sub
	r.subs[sub.ID] = &cp

	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.ID]; !exists {
		return fmt.Errorf("%w: subscription %s", repository.ErrNotFound, sub.ID)
	}

	cp := *sub
	r.subs[sub.ID] = &cp

	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subs[id]
	if !exists {
		return nil, fmt.Errorf("%w: subscription %s", repository.ErrNotFound, id)
	}

	cp := *sub
	return &cp, nil
}

func (r *SubscriptionRepository) GetActive(ctx context.Context) ([]*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Subscription
	for _, sub := range r.subs {
		if sub.Active {
			cp := *sub
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *SubscriptionRepository) GetActiveByAccount(ctx context.Context, accountID string) ([]*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Subscription
	for _, sub := range r.subs {
		if sub.Active && sub.AccountID == accountID {
			cp := *sub
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
