package storage

import (
	"errors"

	"pumpswap-indexer/internal/domain"
)

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by backends that cannot express an idempotent
	// insert natively. TradeStore implementations translate it to Duplicate.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateTrade rejects trades that must never reach storage.
func ValidateTrade(t *domain.Trade) error {
	if t == nil || t.Signature == "" || t.Mint == "" || t.BaseDelta == 0 {
		return ErrInvalidInput
	}
	return nil
}
