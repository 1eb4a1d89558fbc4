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

type AccountRepository struct {
	q queryer
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	const query = `INSERT INTO accounts
		(id, balance, hashed_pin, hashed_password, status, created_at, last_activity_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`

	now := time.Now()
	account.CreatedAt = now
	account.LastActivityAt = now

	_, err := r.q.ExecContext(ctx, query,
		account.ID, account.Balance, account.HashedPin, account.HashedPassword,
		account.Status, account.CreatedAt, account.LastActivityAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `SELECT id, balance, COALESCE(hashed_pin, ''), hashed_password,
		status, created_at, last_activity_at
		FROM accounts WHERE id = $1`

	var account domain.Account
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.Balance, &account.HashedPin, &account.HashedPassword,
		&account.Status, &account.CreatedAt, &account.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `UPDATE accounts
		SET balance = $2, hashed_pin = NULLIF($3, ''), status = $4, last_activity_at = $5
		WHERE id = $1`

	account.LastActivityAt = time.Now()
	res, err := r.q.ExecContext(ctx, query,
		account.ID, account.Balance, account.HashedPin, account.Status, account.LastActivityAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, account.ID)
	}
	return nil
}

func (r *AccountRepository) GetAllActive(ctx context.Context) ([]*domain.Account, error) {
	const query = `SELECT id, balance, COALESCE(hashed_pin, ''), hashed_password,
		status, created_at, last_activity_at
		FROM accounts WHERE status = $1`

	rows, err := r.q.QueryContext(ctx, query, domain.AccountActive)
	if err != nil {
		return nil, fmt.Errorf("select active accounts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID, &account.Balance, &account.HashedPin, &account.HashedPassword,
			&account.Status, &account.CreatedAt, &account.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, &account)
	}
	return result, rows.Err()
}
