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

type TransactionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.TransactionRecord
	bySrc   map[string][]string
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		records: make(map[string]*domain.TransactionRecord),
		bySrc:   make(map[string][]string),
	}
}

// Save appends an immutable record; an existing id is rejected, records are
// never updated or deleted.
func (r *TransactionRepository) Save(ctx context.Context, record *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, record.ID)
	}

	cp := *record
	r.records[record.ID] = &cp
	r.bySrc[record.SourceAccountID] = append(r.bySrc[record.SourceAccountID], record.ID)

	return nil
}

func (r *TransactionRepository) GetBySourceAccount(ctx context.Context, accountID string) ([]*domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySrc[accountID]
	result := make([]*domain.TransactionRecord, 0, len(ids))
	for _, id := range ids {
		cp := *r.records[id]
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *TransactionRepository) GetByPeriod(ctx context.Context, from, to time.Time) ([]*domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, rec := range r.records {
		if !rec.CreatedAt.Before(from) && !rec.CreatedAt.After(to) {
			cp := *rec
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
