package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

func addr(last byte) identity.Address {
	var a identity.Address
	a[identity.AddressLength-1] = last
	return a
}

func TestFungibleLedgerTransfers(t *testing.T) {
	owner := addr(1)
	op := addr(2)
	alice := addr(3)
	bob := addr(4)
	market := addr(5)

	operators := registry.NewOperatorSet(owner, op)
	approvals := registry.NewApprovalRegistry()
	usd := NewFungibleLedger("Stable Dollar", "USD", operators, approvals)

	err := usd.Mint(alice, alice, 100)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)

	require.NoError(t, usd.Mint(op, alice, 1000))
	assert.Equal(t, uint64(1000), usd.BalanceOf(alice))
	assert.Equal(t, uint64(1000), usd.TotalSupply())

	require.NoError(t, usd.Transfer(alice, bob, 300))
	assert.Equal(t, uint64(700), usd.BalanceOf(alice))
	assert.Equal(t, uint64(300), usd.BalanceOf(bob))

	err = usd.Transfer(bob, alice, 301)
	assert.ErrorIs(t, err, faults.ErrInsufficientBalance)

	// Delegated move requires a grant for this ledger's scope.
	err = usd.TransferFrom(market, alice, bob, 100)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)

	approvals.Grant(alice, market, usd.Scope())
	require.NoError(t, usd.TransferFrom(market, alice, bob, 100))
	assert.Equal(t, uint64(600), usd.BalanceOf(alice))
}

func TestSemiFungibleLedgerUnits(t *testing.T) {
	owner := addr(1)
	op := addr(2)
	alice := addr(3)
	custodian := addr(6)

	operators := registry.NewOperatorSet(owner, op)
	approvals := registry.NewApprovalRegistry()
	voucher := NewSemiFungibleLedger("Carbon Voucher", "CVCH", operators, approvals)

	require.NoError(t, voucher.Mint(op, alice, 1, 100))
	require.NoError(t, voucher.Mint(op, alice, 2, 50))
	assert.Equal(t, uint64(100), voucher.BalanceOf(alice, 1))
	assert.Equal(t, uint64(50), voucher.BalanceOf(alice, 2))
	assert.Equal(t, uint64(100), voucher.TotalSupply(1))

	approvals.Grant(alice, custodian, voucher.Scope())
	require.NoError(t, voucher.TransferFrom(custodian, alice, custodian, 1, 40))
	assert.Equal(t, uint64(60), voucher.BalanceOf(alice, 1))
	assert.Equal(t, uint64(40), voucher.BalanceOf(custodian, 1))

	// Units do not mix.
	err := voucher.TransferFrom(custodian, alice, custodian, 2, 60)
	assert.ErrorIs(t, err, faults.ErrInsufficientBalance)
}
