package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"custodian/internal/domain"
)

func makeLots(quantities []int64, prices []int64) []*domain.AssetLot {
	base := time.Now().Add(-time.Hour)
	lots := make([]*domain.AssetLot, len(quantities))
	for i := range quantities {
		lots[i] = &domain.AssetLot{
			ID:            "lot-" + string(rune('a'+i)),
			Quantity:      decimal.NewFromInt(quantities[i]),
			PurchasePrice: decimal.NewFromInt(prices[i]),
			PurchasedAt:   base.Add(time.Duration(i) * time.Minute),
		}
	}
	return lots
}

func TestConsumeLotsSpansLotBoundary(t *testing.T) {
	lots := makeLots([]int64{2, 3}, []int64{10, 20})

	plan, costBasis, err := consumeLots(lots, decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 at 10 plus 1 at 20.
	if !costBasis.Equal(decimal.NewFromInt(40)) {
		t.Errorf("cost basis = %s, want 40", costBasis)
	}
	if len(plan) != 2 {
		t.Fatalf("plan length = %d, want 2", len(plan))
	}
	if !plan[0].Exhausts {
		t.Error("first lot should be exhausted")
	}
	if plan[1].Exhausts {
		t.Error("second lot should be partially consumed")
	}
	if !plan[1].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("second lot consumption = %s, want 1", plan[1].Quantity)
	}
}

func TestConsumeLotsExactExhaustion(t *testing.T) {
	lots := makeLots([]int64{2, 3}, []int64{10, 20})

	plan, costBasis, err := consumeLots(lots, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !costBasis.Equal(decimal.NewFromInt(80)) {
		t.Errorf("cost basis = %s, want 80", costBasis)
	}
	for i, c := range plan {
		if !c.Exhausts {
			t.Errorf("lot %d should be exhausted", i)
		}
	}
}

func TestConsumeLotsInsufficientHoldings(t *testing.T) {
	lots := makeLots([]int64{2}, []int64{10})

	_, _, err := consumeLots(lots, decimal.NewFromInt(3))
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("error = %v, want ErrInsufficientHoldings", err)
	}
}

func TestConsumeLotsDoesNotMutateInput(t *testing.T) {
	lots := makeLots([]int64{2, 3}, []int64{10, 20})

	if _, _, err := consumeLots(lots, decimal.NewFromInt(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lots[0].Quantity.Equal(decimal.NewFromInt(2)) || !lots[1].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Error("consumeLots mutated its input lots")
	}
}

func TestLatestPurchasePrice(t *testing.T) {
	if _, ok := latestPurchasePrice(nil); ok {
		t.Error("empty lot list should report no reference price")
	}

	lots := makeLots([]int64{2, 3}, []int64{10, 20})
	price, ok := latestPurchasePrice(lots)
	if !ok {
		t.Fatal("expected a reference price")
	}
	if !price.Equal(decimal.NewFromInt(20)) {
		t.Errorf("reference price = %s, want 20 (most recent lot)", price)
	}
}
