package postgres

import (
	"context"
	"fmt"
	"time"

	"custodian/internal/domain"
)

type TransactionRepository struct {
	q queryer
}

// Save inserts one record; there is no update path, the table is
// append-only by construction.
func (r *TransactionRepository) Save(ctx context.Context, record *domain.TransactionRecord) error {
	const query = `INSERT INTO transactions
		(id, source_account_id, target_account_id, amount, type, asset_symbol, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	_, err := r.q.ExecContext(ctx, query,
		record.ID, record.SourceAccountID, record.TargetAccountID,
		record.Amount, record.Type, record.AssetSymbol, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetBySourceAccount(ctx context.Context, accountID string) ([]*domain.TransactionRecord, error) {
	const query = `SELECT id, source_account_id, target_account_id, amount, type,
		COALESCE(asset_symbol, ''), created_at
		FROM transactions WHERE source_account_id = $1
		ORDER BY created_at ASC`

	return r.queryRecords(ctx, query, accountID)
}

func (r *TransactionRepository) GetByPeriod(ctx context.Context, from, to time.Time) ([]*domain.TransactionRecord, error) {
	const query = `SELECT id, source_account_id, target_account_id, amount, type,
		COALESCE(asset_symbol, ''), created_at
		FROM transactions WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC`

	return r.queryRecords(ctx, query, from, to)
}

func (r *TransactionRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.TransactionRecord, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.SourceAccountID, &rec.TargetAccountID,
			&rec.Amount, &rec.Type, &rec.AssetSymbol, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
