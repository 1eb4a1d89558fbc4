package ledger

import (
	"github.com/shopspring/decimal"

	"custodian/internal/domain"
)

// lotConsumption describes how much of one lot a sale takes. A lot consumed
// entirely is deleted; a partially consumed lot is reduced, never duplicated.
type lotConsumption struct {
	Lot      *domain.AssetLot
	Quantity decimal.Decimal
	Exhausts bool
}

// consumeLots plans a FIFO sale of quantity across lots ordered by purchase
// time ascending. It is a pure function: no store access, no mutation of the
// input lots. Returns the per-lot plan and the cost basis of the consumed
// quantity, or ErrInsufficientHoldings when the lots cannot cover the sale.
func consumeLots(lots []*domain.AssetLot, quantity decimal.Decimal) ([]lotConsumption, decimal.Decimal, error) {
	held := decimal.Zero
	for _, lot := range lots {
		held = held.Add(lot.Quantity)
	}
	if held.LessThan(quantity) {
		return nil, decimal.Zero, ErrInsufficientHoldings
	}

	var plan []lotConsumption
	costBasis := decimal.Zero
	remaining := quantity

	for _, lot := range lots {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := lot.Quantity
		exhausts := true
		if take.GreaterThan(remaining) {
			take = remaining
			exhausts = false
		}
		plan = append(plan, lotConsumption{Lot: lot, Quantity: take, Exhausts: exhausts})
		costBasis = costBasis.Add(take.Mul(lot.PurchasePrice))
		remaining = remaining.Sub(take)
	}

	return plan, costBasis, nil
}

func totalQuantity(lots []*domain.AssetLot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Quantity)
	}
	return total
}

// latestPurchasePrice returns the most recent lot's purchase price, the
// reference the auto-invest thresholds compare against. Lots arrive ordered
// oldest-first.
func latestPurchasePrice(lots []*domain.AssetLot) (decimal.Decimal, bool) {
	if len(lots) == 0 {
		return decimal.Zero, false
	}
	return lots[len(lots)-1].PurchasePrice, true
}
