package ledger

import "errors"

// Domain failure taxonomy. All of these are recovered at the engine call
// boundary and returned as typed failures; none crashes a scheduler tick or
// a request goroutine. Store failures propagate separately, wrapped with %w.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrPinNotSet            = errors.New("pin not set for this account")
	ErrInvalidPin           = errors.New("invalid pin")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrSameAccountTransfer  = errors.New("source and target accounts must differ")
)
