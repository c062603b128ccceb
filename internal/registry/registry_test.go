package registry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

func addr(t *testing.T, last byte) identity.Address {
	t.Helper()
	var a identity.Address
	a[identity.AddressLength-1] = last
	return a
}

func TestOperatorSetMembership(t *testing.T) {
	owner := addr(t, 1)
	op := addr(t, 2)
	stranger := addr(t, 3)

	set := NewOperatorSet(owner)
	assert.False(t, set.IsOperator(op))

	require.NoError(t, set.AddOperator(owner, op))
	assert.True(t, set.IsOperator(op))

	// Adding twice is idempotent.
	require.NoError(t, set.AddOperator(owner, op))
	assert.Len(t, set.Operators(), 1)

	err := set.AddOperator(stranger, stranger)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)
	assert.False(t, set.IsOperator(stranger))

	require.NoError(t, set.RemoveOperator(owner, op))
	assert.False(t, set.IsOperator(op))
}

func TestFeeManagerRateUpdates(t *testing.T) {
	owner := addr(t, 1)
	op := addr(t, 2)
	recipient := addr(t, 9)

	set := NewOperatorSet(owner, op)
	fees, err := NewFeeManager(set, recipient, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), fees.RatePerMille())
	assert.Equal(t, recipient, fees.Recipient())

	require.NoError(t, fees.SetRatePerMille(op, 25))
	assert.Equal(t, uint64(25), fees.RatePerMille())

	err = fees.SetRatePerMille(addr(t, 7), 30)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)

	assert.Error(t, fees.SetRatePerMille(op, 1001))

	_, err = NewFeeManager(set, recipient, 2000)
	assert.Error(t, err)
}

func TestFeeArithmetic(t *testing.T) {
	// 1% of 100 is exactly 1; counterparty share is exactly 99.
	assert.Equal(t, uint64(1), Fee(100, 10))
	// 1% of 1000 is exactly 10.
	assert.Equal(t, uint64(10), Fee(1000, 10))
	// Rounds down.
	assert.Equal(t, uint64(0), Fee(99, 10))
	assert.Equal(t, uint64(9_900_000), Fee(990_000_000, 10))

	// The product amount*rate exceeds 64 bits here; the share must stay
	// exact instead of wrapping to zero.
	assert.Equal(t, uint64(92_233_720_368_547_758), Fee(1<<63, 10))
	assert.Equal(t, uint64(184_467_440_737_095_516), Fee(math.MaxUint64, 10))
	assert.Equal(t, uint64(math.MaxUint64), Fee(math.MaxUint64, 1000))
	assert.Equal(t, uint64(0), Fee(math.MaxUint64, 0))
}

func TestApprovalScoping(t *testing.T) {
	owner := addr(t, 1)
	delegate := addr(t, 2)

	approvals := NewApprovalRegistry()
	assert.False(t, approvals.HasTransferRights(owner, delegate, "ledger-a"))

	approvals.Grant(owner, delegate, "ledger-a")
	assert.True(t, approvals.HasTransferRights(owner, delegate, "ledger-a"))
	// A grant never leaks across scopes.
	assert.False(t, approvals.HasTransferRights(owner, delegate, "ledger-b"))
	// Nor across delegates.
	assert.False(t, approvals.HasTransferRights(owner, addr(t, 3), "ledger-a"))

	// Owners always control their own balance.
	assert.True(t, approvals.HasTransferRights(owner, owner, "ledger-b"))

	approvals.Revoke(owner, delegate, "ledger-a")
	assert.False(t, approvals.HasTransferRights(owner, delegate, "ledger-a"))
}
