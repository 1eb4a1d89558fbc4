package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

type AssetLotRepository struct {
	mu   sync.RWMutex
	lots map[string]*domain.AssetLot
}

func NewAssetLotRepository() *AssetLotRepository {
	return &AssetLotRepository{
		lots: make(map[string]*domain.AssetLot),
	}
}

func (r *AssetLotRepository) Save(ctx context.Context, lot *domain.AssetLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lots[lot.ID]; exists {
		return fmt.Errorf("%w: asset lot %s", repository.ErrDuplicate, lot.ID)
	}

	cp := *lot
	r.lots[lot.ID] = &cp

	return nil
}

func (r *AssetLotRepository) Update(ctx context.Context, lot *domain.AssetLot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lots[lot.ID]; !exists {
		return fmt.Errorf("%w: asset lot %s", repository.ErrNotFound, lot.ID)
	}

	cp := *lot
	r.lots[lot.ID] = &cp

	return nil
}

func (r *AssetLotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lots[id]; !exists {
		return fmt.Errorf("%w: asset lot %s", repository.ErrNotFound, id)
	}

	delete(r.lots, id)
	return nil
}

// GetByAccountAndSymbol returns lots ordered by purchase time ascending,
// the order sales consume them in.
func (r *AssetLotRepository) GetByAccountAndSymbol(ctx context.Context, accountID, symbol string) ([]*domain.AssetLot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AssetLot
	for _, lot := range r.lots {
		if lot.AccountID == accountID && lot.Symbol == symbol {
			cp := *lot
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PurchasedAt.Before(result[j].PurchasedAt)
	})

	return result, nil
}

func (r *AssetLotRepository) GetByAccount(ctx context.Context, accountID string) ([]*domain.AssetLot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AssetLot
	for _, lot := range r.lots {
		if lot.AccountID == accountID {
			cp := *lot
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PurchasedAt.Before(result[j].PurchasedAt)
	})

	return result, nil
}
