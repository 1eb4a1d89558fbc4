package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"custodian/internal/domain"
	"custodian/internal/repository"
)

func TestAccountRepository_SaveAndGetByID(t *testing.T) {
	repo := NewAccountRepository()
	account := &domain.Account{
		ID:      "acc1",
		Balance: decimal.NewFromInt(100),
		Status:  domain.AccountActive,
	}

	err := repo.Save(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.GetByID(context.Background(), "acc1")

	if err != nil {
		t.Fatalf("unexpected error on GetByID: %v", err)
	}
	if got.ID != account.ID || !got.Balance.Equal(account.Balance) {
		t.Errorf("expected account %+v, got %+v", account, got)
	}
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	repo := NewAccountRepository()

	_, err := repo.GetByID(context.Background(), "missing")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountRepository_GetByID_ReturnsCopy(t *testing.T) {
	repo := NewAccountRepository()
	_ = repo.Save(context.Background(), &domain.Account{ID: "acc1", Balance: decimal.NewFromInt(50), Status: domain.AccountActive})

	got, _ := repo.GetByID(context.Background(), "acc1")
	got.Balance = decimal.NewFromInt(9999)

	again, _ := repo.GetByID(context.Background(), "acc1")
	if !again.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("stored balance mutated through returned pointer: %s", again.Balance)
	}
}

func TestTransactionRepository_SaveIsAppendOnly(t *testing.T) {
	repo := NewTransactionRepository()
	rec := domain.NewTransactionRecord(domain.TypeCashDeposit, "acc1", decimal.NewFromInt(10))

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	err := repo.Save(context.Background(), rec)

	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate on re-save, got %v", err)
	}
}

func TestTransactionRepository_GetBySourceAccount_Ordering(t *testing.T) {
	repo := NewTransactionRepository()
	first := domain.NewTransactionRecord(domain.TypeCashDeposit, "acc1", decimal.NewFromInt(10))
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := domain.NewTransactionRecord(domain.TypeCashWithdrawal, "acc1", decimal.NewFromInt(5))
	_ = repo.Save(context.Background(), second)
	_ = repo.Save(context.Background(), first)

	got, err := repo.GetBySourceAccount(context.Background(), "acc1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != first.ID {
		t.Errorf("expected oldest record first, got %s", got[0].Type)
	}
}

func TestAssetLotRepository_FIFOOrdering(t *testing.T) {
	repo := NewAssetLotRepository()
	now := time.Now()
	newer := &domain.AssetLot{ID: "l2", AccountID: "acc1", Symbol: "AAPL", Quantity: decimal.NewFromInt(3), PurchasedAt: now}
	older := &domain.AssetLot{ID: "l1", AccountID: "acc1", Symbol: "AAPL", Quantity: decimal.NewFromInt(2), PurchasedAt: now.Add(-time.Hour)}
	_ = repo.Save(context.Background(), newer)
	_ = repo.Save(context.Background(), older)
	_ = repo.Save(context.Background(), &domain.AssetLot{ID: "l3", AccountID: "acc1", Symbol: "TSLA", Quantity: decimal.NewFromInt(1), PurchasedAt: now})

	lots, err := repo.GetByAccountAndSymbol(context.Background(), "acc1", "AAPL")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("expected 2 AAPL lots, got %d", len(lots))
	}
	if lots[0].ID != "l1" || lots[1].ID != "l2" {
		t.Errorf("expected purchase-time ascending order, got [%s %s]", lots[0].ID, lots[1].ID)
	}
}

func TestAssetLotRepository_Delete(t *testing.T) {
	repo := NewAssetLotRepository()
	_ = repo.Save(context.Background(), &domain.AssetLot{ID: "l1", AccountID: "acc1", Symbol: "AAPL", Quantity: decimal.NewFromInt(2)})

	if err := repo.Delete(context.Background(), "l1"); err != nil {
		t.Fatalf("unexpected error on Delete: %v", err)
	}
	lots, _ := repo.GetByAccountAndSymbol(context.Background(), "acc1", "AAPL")
	if len(lots) != 0 {
		t.Errorf("expected no lots after delete, got %d", len(lots))
	}
	if err := repo.Delete(context.Background(), "l1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestSubscriptionRepository_GetActive(t *testing.T) {
	repo := NewSubscriptionRepository()
	active := &domain.Subscription{ID: "s1", AccountID: "acc1", Amount: decimal.NewFromInt(10), Active: true}
	inactive := &domain.Subscription{ID: "s2", AccountID: "acc1", Amount: decimal.NewFromInt(20), Active: false}
	_ = repo.Save(context.Background(), active)
	_ = repo.Save(context.Background(), inactive)

	got, err := repo.GetActive(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("expected only the active subscription, got %+v", got)
	}
}

func TestSubscriptionRepository_UpdateDeactivates(t *testing.T) {
	repo := NewSubscriptionRepository()
	sub := &domain.Subscription{ID: "s1", AccountID: "acc1", Amount: decimal.NewFromInt(10), Active: true}
	_ = repo.Save(context.Background(), sub)

	sub.Active = false
	if err := repo.Update(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}

	got, _ := repo.GetActiveByAccount(context.Background(), "acc1")
	if len(got) != 0 {
		t.Errorf("expected no active subscriptions, got %d", len(got))
	}
}
