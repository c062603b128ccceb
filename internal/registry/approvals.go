package registry

import (
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Approvals answers whether an owner has granted a delegate the right to
// move their balance within a scope. A scope names one balance store
// (e.g. a token ledger identity or the payment asset), so a grant for
// one store never leaks into another.
type Approvals interface {
	HasTransferRights(owner, delegate identity.Address, scope string) bool
}

// ApprovalRegistry is the in-process capability store behind Approvals.
// Grants are explicit and revocable; there is no ambient approve-all
// state.
type ApprovalRegistry struct {
	mu     sync.RWMutex
	grants map[grantKey]struct{}
}

type grantKey struct {
	owner    identity.Address
	delegate identity.Address
	scope    string
}

// NewApprovalRegistry creates an empty registry.
func NewApprovalRegistry() *ApprovalRegistry {
	return &ApprovalRegistry{grants: make(map[grantKey]struct{})}
}

// Grant records that owner allows delegate to move owner's balance in
// scope. Idempotent. Only the owner themselves can grant, which callers
// enforce by passing the authenticated caller as owner.
func (r *ApprovalRegistry) Grant(owner, delegate identity.Address, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grantKey{owner: owner, delegate: delegate, scope: scope}] = struct{}{}
}

// Revoke removes a grant.
func (r *ApprovalRegistry) Revoke(owner, delegate identity.Address, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, grantKey{owner: owner, delegate: delegate, scope: scope})
}

// HasTransferRights reports whether the grant exists. An owner always
// holds rights over their own balance.
func (r *ApprovalRegistry) HasTransferRights(owner, delegate identity.Address, scope string) bool {
	if owner == delegate {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[grantKey{owner: owner, delegate: delegate, scope: scope}]
	return ok
}
