// Package assets provides the standard fungible balance stores the core
// consumes: the stable-value payment asset purchases settle in, and the
// semi-fungible backing asset locked at mint time. Both are plain
// lookup/transfer ledgers with operator-gated issuance and delegated
// moves checked against the approval registry.
package assets

import (
	"fmt"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// FungibleLedger is a single-unit balance store, used for the payment
// asset. Amounts are in the asset's minor units.
type FungibleLedger struct {
	name      string
	symbol    string
	operators registry.OperatorRegistry
	approvals registry.Approvals

	mu       sync.Mutex
	balances map[identity.Address]uint64
	supply   uint64
}

// NewFungibleLedger creates an empty fungible ledger.
func NewFungibleLedger(name, symbol string, operators registry.OperatorRegistry, approvals registry.Approvals) *FungibleLedger {
	return &FungibleLedger{
		name:      name,
		symbol:    symbol,
		operators: operators,
		approvals: approvals,
		balances:  make(map[identity.Address]uint64),
	}
}

// Name returns the asset name.
func (l *FungibleLedger) Name() string { return l.name }

// Symbol returns the asset symbol.
func (l *FungibleLedger) Symbol() string { return l.symbol }

// Scope is the approval scope owners grant against for this ledger.
func (l *FungibleLedger) Scope() string { return "asset:" + l.symbol }

// BalanceOf returns the balance held by owner.
func (l *FungibleLedger) BalanceOf(owner identity.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner]
}

// TotalSupply returns the total issued amount.
func (l *FungibleLedger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// Mint issues amount to recipient. Operator-gated.
func (l *FungibleLedger) Mint(operator, to identity.Address, amount uint64) error {
	if !l.operators.IsOperator(operator) {
		return fmt.Errorf("mint %s: %w", l.symbol, faults.ErrUnauthorized)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	l.supply += amount
	return nil
}

// Transfer moves amount from the caller's own balance.
func (l *FungibleLedger) Transfer(from, to identity.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from an owner's balance on behalf of a
// delegate holding transfer rights for this ledger.
func (l *FungibleLedger) TransferFrom(delegate, from, to identity.Address, amount uint64) error {
	if !l.approvals.HasTransferRights(from, delegate, l.Scope()) {
		return fmt.Errorf("transfer %s from %s: %w", l.symbol, from, faults.ErrUnauthorized)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// move requires l.mu held.
func (l *FungibleLedger) move(from, to identity.Address, amount uint64) error {
	if l.balances[from] < amount {
		return fmt.Errorf("transfer %d %s from %s: %w", amount, l.symbol, from, faults.ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
