package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeCashDeposit    TransactionType = "CASH_DEPOSIT"
	TypeCashWithdrawal TransactionType = "CASH_WITHDRAWAL"
	TypeCashTransfer   TransactionType = "CASH_TRANSFER"
	TypeAssetPurchase  TransactionType = "ASSET_PURCHASE"
	TypeAssetSell      TransactionType = "ASSET_SELL"
	TypeSubscription   TransactionType = "SUBSCRIPTION"
)

// TransactionRecord is the immutable, append-only record of one completed
// balance mutation. Target equals source for everything but transfers.
type TransactionRecord struct {
	ID              string          `json:"id"`
	SourceAccountID string          `json:"source_account_id"`
	TargetAccountID string          `json:"target_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	AssetSymbol     string          `json:"asset_symbol,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewTransactionRecord(t TransactionType, accountID string, amount decimal.Decimal) *TransactionRecord {
	return &TransactionRecord{
		ID:              uuid.NewString(),
		SourceAccountID: accountID,
		TargetAccountID: accountID,
		Amount:          amount,
		Type:            t,
		CreatedAt:       time.Now(),
	}
}

func (r *TransactionRecord) WithTarget(targetID string) *TransactionRecord {
	r.TargetAccountID = targetID
	return r
}

func (r *TransactionRecord) WithSymbol(symbol string) *TransactionRecord {
	r.AssetSymbol = symbol
	return r
}
