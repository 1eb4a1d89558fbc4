// Package postgres implements the repository.Store contract on PostgreSQL.
//
// Expected schema:
//
//	accounts(id text pk, balance numeric, hashed_pin text null,
//	         hashed_password text, status text, created_at timestamptz,
//	         last_activity_at timestamptz)
//	transactions(id text pk, source_account_id text, target_account_id text,
//	         amount numeric, type text, asset_symbol text null,
//	         created_at timestamptz)
//	asset_lots(id text pk, account_id text, symbol text, quantity numeric,
//	         purchase_price numeric, purchased_at timestamptz)
//	subscriptions(id text pk, account_id text, amount numeric,
//	         interval_seconds bigint, active boolean, created_at timestamptz,
//	         next_due_at timestamptz)
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"custodian/internal/repository"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  queryer
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(db), nil
}

func (s *Store) Accounts() repository.AccountRepository           { return &AccountRepository{q: s.q} }
func (s *Store) Transactions() repository.TransactionRepository   { return &TransactionRepository{q: s.q} }
func (s *Store) AssetLots() repository.AssetLotRepository         { return &AssetLotRepository{q: s.q} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return &SubscriptionRepository{q: s.q} }

// InTx runs fn against transaction-backed repositories; everything commits
// or rolls back together.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, already := s.q.(*sql.Tx); already {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &Store{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)
