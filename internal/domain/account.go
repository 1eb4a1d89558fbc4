package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

// Account is the custodial account: cash balance plus asset lots.
// Balance is mutated only by the ledger engine.
type Account struct {
	ID             string          `json:"id"`
	Balance        decimal.Decimal `json:"balance"`
	HashedPin      string          `json:"-"`
	HashedPassword string          `json:"-"`
	Status         AccountStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

func (a *Account) PinSet() bool {
	return a.HashedPin != ""
}

// AssetLot is a single purchase of an asset. Lots for the same symbol form
// a FIFO queue ordered by PurchasedAt; sales consume them oldest-first.
// A lot whose quantity reaches zero is deleted, never kept at zero.
type AssetLot struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}
