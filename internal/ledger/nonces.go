package ledger

import (
	"fmt"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// NonceScope separates the nonce space per operation kind. Mint and
// transfer authorizations draw from independent per-signer sets, so the
// same signer may use nonce 1 once for a mint and once for a transfer.
type NonceScope string

const (
	ScopeMint     NonceScope = "mint"
	ScopeTransfer NonceScope = "transfer"
)

// NonceRegistry guards signed authorizations against replay. Consume is
// an atomic check-and-mark: it either marks the nonce used and returns
// nil, or returns ErrNonceAlreadyUsed without changing anything. Once
// consumed a nonce is never reusable, even if the operation that
// consumed it later failed.
type NonceRegistry interface {
	Consume(signer identity.Address, scope NonceScope, nonce uint64) error
}

// MemoryNonceRegistry is the in-process nonce registry. The check and
// the mark happen under one lock, so two concurrent calls can never both
// observe a nonce as unused.
type MemoryNonceRegistry struct {
	mu       sync.Mutex
	consumed map[nonceKey]struct{}
}

type nonceKey struct {
	signer identity.Address
	scope  NonceScope
	nonce  uint64
}

// NewNonceRegistry creates an empty registry.
func NewNonceRegistry() *MemoryNonceRegistry {
	return &MemoryNonceRegistry{consumed: make(map[nonceKey]struct{})}
}

// Consume implements NonceRegistry.
func (r *MemoryNonceRegistry) Consume(signer identity.Address, scope NonceScope, nonce uint64) error {
	key := nonceKey{signer: signer, scope: scope, nonce: nonce}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, used := r.consumed[key]; used {
		return fmt.Errorf("%s nonce %d for %s: %w", scope, nonce, signer, faults.ErrNonceAlreadyUsed)
	}
	r.consumed[key] = struct{}{}
	return nil
}
