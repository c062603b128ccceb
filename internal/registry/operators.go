package registry

import (
	"fmt"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// OperatorRegistry answers whether an identity may submit privileged
// calls (operator mint, delegated transfer, contract verification).
type OperatorRegistry interface {
	IsOperator(addr identity.Address) bool
}

// OperatorSet is the in-process operator registry. Membership changes
// are gated on the registry owner.
type OperatorSet struct {
	owner identity.Address

	mu      sync.RWMutex
	members map[identity.Address]struct{}
}

// NewOperatorSet creates a registry owned by owner, optionally seeded
// with initial operators.
func NewOperatorSet(owner identity.Address, initial ...identity.Address) *OperatorSet {
	members := make(map[identity.Address]struct{}, len(initial))
	for _, addr := range initial {
		members[addr] = struct{}{}
	}
	return &OperatorSet{owner: owner, members: members}
}

// IsOperator reports membership.
func (s *OperatorSet) IsOperator(addr identity.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[addr]
	return ok
}

// AddOperator registers addr as an operator. Owner-gated; idempotent.
func (s *OperatorSet) AddOperator(caller, addr identity.Address) error {
	if caller != s.owner {
		return fmt.Errorf("add operator: %w", faults.ErrUnauthorized)
	}
	if addr.IsZero() {
		return fmt.Errorf("add operator: zero address")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[addr] = struct{}{}
	return nil
}

// RemoveOperator revokes operator status. Owner-gated.
func (s *OperatorSet) RemoveOperator(caller, addr identity.Address) error {
	if caller != s.owner {
		return fmt.Errorf("remove operator: %w", faults.ErrUnauthorized)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, addr)
	return nil
}

// Operators returns the current membership, for diagnostics.
func (s *OperatorSet) Operators() []identity.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.Address, 0, len(s.members))
	for addr := range s.members {
		out = append(out, addr)
	}
	return out
}
