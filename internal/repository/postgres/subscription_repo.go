package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

type SubscriptionRepository struct {
	q queryer
}

func (r *SubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	const query = `INSERT INTO subscriptions
		(id, account_id, amount, interval_seconds, active, created_at, next_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	sub.CreatedAt = time.Now()
	_, err := r.q.ExecContext(ctx, query,
		sub.ID, sub.AccountID, sub.Amount, int64(sub.Interval/time.Second),
		sub.Active, sub.CreatedAt, sub.NextDueAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	const query = `UPDATE subscriptions
		SET amount = $2, active = $3, next_due_at = $4
		WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, sub.ID, sub.Amount, sub.Active, sub.NextDueAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: subscription %s", repository.ErrNotFound, sub.ID)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	const query = `SELECT id, account_id, amount, interval_seconds, active, created_at, next_due_at
		FROM subscriptions WHERE id = $1`

	var (
		sub     domain.Subscription
		seconds int64
	)
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.AccountID, &sub.Amount, &seconds,
		&sub.Active, &sub.CreatedAt, &sub.NextDueAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: subscription %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select subscription: %w", err)
	}
	sub.Interval = time.Duration(seconds) * time.Second
	return &sub, nil
}

func (r *SubscriptionRepository) GetActive(ctx context.Context) ([]*domain.Subscription, error) {
	const query = `SELECT id, account_id, amount, interval_seconds, active, created_at, next_due_at
		FROM subscriptions WHERE active ORDER BY created_at ASC`

	return r.querySubs(ctx, query)
}

func (r *SubscriptionRepository) GetActiveByAccount(ctx context.Context, accountID string) ([]*domain.Subscription, error) {
	const query = `SELECT id, account_id, amount, interval_seconds, active, created_at, next_due_at
		FROM subscriptions WHERE active AND account_id = $1 ORDER BY created_at ASC`

	return r.querySubs(ctx, query, accountID)
}

func (r *SubscriptionRepository) querySubs(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Subscription
	for rows.Next() {
		var (
			sub     domain.Subscription
			seconds int64
		)
		if err := rows.Scan(
			&sub.ID, &sub.AccountID, &sub.Amount, &seconds,
			&sub.Active, &sub.CreatedAt, &sub.NextDueAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Interval = time.Duration(seconds) * time.Second
		result = append(result, &sub)
	}
	return result, rows.Err()
}
