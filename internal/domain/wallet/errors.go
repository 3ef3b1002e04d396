package wallet

import "errors"

var (
	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInsufficientBalance is returned when a debit exceeds the wallet balance
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrDuplicateReference is returned when a ledger entry with the same
	// (type, reference) already exists
	ErrDuplicateReference = errors.New("duplicate ledger reference")

	// ErrInvalidCommissionRate is returned for rates outside 0..100
	ErrInvalidCommissionRate = errors.New("commission rate must be between 0 and 100")

	// ErrTransactionNotFound is returned when a ledger entry does not exist
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrInternal = errors.New("internal error")
)
