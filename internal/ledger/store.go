package ledger

import (
	"fmt"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// BalanceStore holds the (owner, unit id) balance map and per-unit total
// supply. Implementations must keep every mutation atomic with respect
// to concurrent readers; the service additionally serializes whole
// operations.
type BalanceStore interface {
	Balance(owner identity.Address, unit uint64) uint64
	TotalSupply(unit uint64) uint64

	// Credit adds amount to owner's balance without touching supply.
	Credit(owner identity.Address, unit, amount uint64)
	// Debit removes amount, failing with ErrInsufficientBalance when the
	// balance is short. No partial debit ever happens.
	Debit(owner identity.Address, unit, amount uint64) error
	// Issue credits owner and raises the unit's total supply, both in
	// one step.
	Issue(owner identity.Address, unit, amount uint64)
}

// MemoryBalanceStore is the in-process balance store.
type MemoryBalanceStore struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	supply   map[uint64]uint64
}

type balanceKey struct {
	owner identity.Address
	unit  uint64
}

// NewMemoryBalanceStore creates an empty store.
func NewMemoryBalanceStore() *MemoryBalanceStore {
	return &MemoryBalanceStore{
		balances: make(map[balanceKey]uint64),
		supply:   make(map[uint64]uint64),
	}
}

// Balance implements BalanceStore.
func (s *MemoryBalanceStore) Balance(owner identity.Address, unit uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey{owner: owner, unit: unit}]
}

// TotalSupply implements BalanceStore.
func (s *MemoryBalanceStore) TotalSupply(unit uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply[unit]
}

// Credit implements BalanceStore.
func (s *MemoryBalanceStore) Credit(owner identity.Address, unit, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{owner: owner, unit: unit}] += amount
}

// Debit implements BalanceStore.
func (s *MemoryBalanceStore) Debit(owner identity.Address, unit, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{owner: owner, unit: unit}
	if s.balances[key] < amount {
		return fmt.Errorf("debit %d from %s unit %d: %w", amount, owner, unit, faults.ErrInsufficientBalance)
	}
	s.balances[key] -= amount
	return nil
}

// Issue implements BalanceStore.
func (s *MemoryBalanceStore) Issue(owner identity.Address, unit, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{owner: owner, unit: unit}] += amount
	s.supply[unit] += amount
}
