// Package faults defines the failure kinds shared by the ledger and the
// marketplace. Every kind is a sentinel matched with errors.Is; a failed
// operation surfaces exactly one kind and leaves no partial state behind.
package faults

import "errors"

var (
	// ErrUnauthorized reports a caller lacking the operator, seller or
	// owner role required by the operation.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrNonceAlreadyUsed reports a replayed authorization nonce.
	ErrNonceAlreadyUsed = errors.New("authorization nonce already used")

	// ErrPriceBelowMinimum reports a mint requested below the price floor.
	ErrPriceBelowMinimum = errors.New("price must be higher than min")

	// ErrUnverifiedSource reports a listing attempt against a token
	// ledger that has not been verified for the marketplace.
	ErrUnverifiedSource = errors.New("not a verified derivative token ledger")

	// ErrInsufficientBalance reports a transfer exceeding the available
	// balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientListedAmount reports a request exceeding the
	// quantity currently listed on a market item.
	ErrInsufficientListedAmount = errors.New("insufficient listed amount")

	// ErrNotOwner reports a mutating market call from someone other than
	// the item's seller.
	ErrNotOwner = errors.New("caller is not the item seller")

	// ErrNotFound reports a lookup for an unknown item or record.
	ErrNotFound = errors.New("not found")
)
