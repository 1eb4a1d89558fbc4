package validator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidSymbol    = errors.New("invalid asset symbol")
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrMissingPin       = errors.New("pin is required")
)

// RequestValidator checks request shapes before they reach the ledger engine.
// Domain-level checks (balance, holdings, PIN match) stay in the engine.
type RequestValidator struct {
	symbolRegex *regexp.Regexp
	pinRegex    *regexp.Regexp
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		symbolRegex: regexp.MustCompile(`^[A-Z]{1,6}$`),
		pinRegex:    regexp.MustCompile(`^\d{4,6}$`),
	}
}

func (v *RequestValidator) ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

func (v *RequestValidator) ValidateQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	return nil
}

func (v *RequestValidator) ValidateSymbol(symbol string) error {
	if !v.symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

func (v *RequestValidator) ValidateAccountID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAccountID, id)
	}
	return nil
}

func (v *RequestValidator) ValidatePin(pin string) error {
	if pin == "" {
		return ErrMissingPin
	}
	if !v.pinRegex.MatchString(pin) {
		return errors.New("pin must be 4 to 6 digits")
	}
	return nil
}

func (v *RequestValidator) ValidateTransfer(sourceID, targetID string, amount decimal.Decimal) error {
	var errs []error

	if err := v.ValidateAccountID(sourceID); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateAccountID(targetID); err != nil {
		errs = append(errs, err)
	}
	if sourceID == targetID {
		errs = append(errs, errors.New("cannot transfer to same account"))
	}
	if err := v.ValidateAmount(amount); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
