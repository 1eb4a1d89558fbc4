package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRequestValidator_ValidTransfer(t *testing.T) {
	v := NewRequestValidator()

	err := v.ValidateTransfer(uuid.NewString(), uuid.NewString(), decimal.NewFromInt(100))

	if err != nil {
		t.Fatalf("expected valid transfer, got err=%v", err)
	}
}

func TestRequestValidator_TransferToSameAccount(t *testing.T) {
	v := NewRequestValidator()
	id := uuid.NewString()

	err := v.ValidateTransfer(id, id, decimal.NewFromInt(100))

	if err == nil {
		t.Fatal("expected error for same-account transfer, got nil")
	}
}

func TestRequestValidator_NonPositiveAmount(t *testing.T) {
	v := NewRequestValidator()

	if err := v.ValidateAmount(decimal.Zero); err == nil {
		t.Fatal("expected error for zero amount, got nil")
	}
	if err := v.ValidateAmount(decimal.NewFromInt(-5)); err == nil {
		t.Fatal("expected error for negative amount, got nil")
	}
}

func TestRequestValidator_SymbolShape(t *testing.T) {
	v := NewRequestValidator()

	if err := v.ValidateSymbol("AAPL"); err != nil {
		t.Fatalf("expected AAPL to be valid, got %v", err)
	}
	if err := v.ValidateSymbol("aapl"); err == nil {
		t.Fatal("expected error for lowercase symbol, got nil")
	}
	if err := v.ValidateSymbol(""); err == nil {
		t.Fatal("expected error for empty symbol, got nil")
	}
}

func TestRequestValidator_Pin(t *testing.T) {
	v := NewRequestValidator()

	if err := v.ValidatePin("1234"); err != nil {
		t.Fatalf("expected 4-digit pin to be valid, got %v", err)
	}
	if err := v.ValidatePin(""); err == nil {
		t.Fatal("expected error for empty pin, got nil")
	}
	if err := v.ValidatePin("12ab"); err == nil {
		t.Fatal("expected error for non-numeric pin, got nil")
	}
}
