package postgres

import (
	"context"
	"fmt"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

type AssetLotRepository struct {
	q queryer
}

func (r *AssetLotRepository) Save(ctx context.Context, lot *domain.AssetLot) error {
	const query = `INSERT INTO asset_lots
		(id, account_id, symbol, quantity, purchase_price, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.q.ExecContext(ctx, query,
		lot.ID, lot.AccountID, lot.Symbol, lot.Quantity, lot.PurchasePrice, lot.PurchasedAt)
	if err != nil {
		return fmt.Errorf("insert asset lot: %w", err)
	}
	return nil
}

func (r *AssetLotRepository) Update(ctx context.Context, lot *domain.AssetLot) error {
	const query = `UPDATE asset_lots SET quantity = $2 WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, lot.ID, lot.Quantity)
	if err != nil {
		return fmt.Errorf("update asset lot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset lot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: asset lot %s", repository.ErrNotFound, lot.ID)
	}
	return nil
}

func (r *AssetLotRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM asset_lots WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete asset lot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete asset lot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: asset lot %s", repository.ErrNotFound, id)
	}
	return nil
}

// GetByAccountAndSymbol orders by purchase time ascending, the FIFO
// consumption order.
func (r *AssetLotRepository) GetByAccountAndSymbol(ctx context.Context, accountID, symbol string) ([]*domain.AssetLot, error) {
	const query = `SELECT id, account_id, symbol, quantity, purchase_price, purchased_at
		FROM asset_lots WHERE account_id = $1 AND symbol = $2
		ORDER BY purchased_at ASC`

	return r.queryLots(ctx, query, accountID, symbol)
}

func (r *AssetLotRepository) GetByAccount(ctx context.Context, accountID string) ([]*domain.AssetLot, error) {
	const query = `SELECT id, account_id, symbol, quantity, purchase_price, purchased_at
		FROM asset_lots WHERE account_id = $1
		ORDER BY purchased_at ASC`

	return r.queryLots(ctx, query, accountID)
}

func (r *AssetLotRepository) queryLots(ctx context.Context, query string, args ...any) ([]*domain.AssetLot, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select asset lots: %w", err)
	}
	defer rows.Close()

	var result []*domain.AssetLot
	for rows.Next() {
		var lot domain.AssetLot
		if err := rows.Scan(
			&lot.ID, &lot.AccountID, &lot.Symbol,
			&lot.Quantity, &lot.PurchasePrice, &lot.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan asset lot: %w", err)
		}
		result = append(result, &lot)
	}
	return result, rows.Err()
}
