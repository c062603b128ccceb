package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/assets"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/audit"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/events"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/ledger"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/signature"
)

const (
	testUnitID    = 1
	testUnitPrice = 10_000_000
)

// testMarket wires the full settlement stack: token ledger backed by
// voucher units, payment asset, and the escrow engine.
type testMarket struct {
	market    *Service
	ledger    *ledger.Service
	payment   *assets.FungibleLedger
	approvals *registry.ApprovalRegistry

	owner        identity.Address
	operator     identity.Address
	engineID     identity.Address
	feeCollector identity.Address

	seller *signature.Signer
	buyer  *signature.Signer
}

func newTestMarket(t *testing.T) *testMarket {
	t.Helper()

	var owner, operator, ledgerID, engineID, feeCollector identity.Address
	owner[19] = 0x01
	operator[19] = 0x02
	ledgerID[19] = 0xaa
	engineID[19] = 0xee
	feeCollector[19] = 0xfe

	seller, err := signature.NewSigner()
	require.NoError(t, err)
	buyer, err := signature.NewSigner()
	require.NoError(t, err)

	operators := registry.NewOperatorSet(owner, operator)
	approvals := registry.NewApprovalRegistry()
	fees, err := registry.NewFeeManager(operators, feeCollector, 10)
	require.NoError(t, err)

	backing := assets.NewSemiFungibleLedger("Carbon Voucher", "CVCH", operators, approvals)
	payment := assets.NewFungibleLedger("Settlement Dollar", "SUSD", operators, approvals)
	recorder := audit.NewMemoryRecorder()

	tokens := ledger.NewService(
		ledger.Config{
			ID:          ledgerID,
			Name:        "Carbon Derivative Credit",
			Symbol:      "CDC",
			UnitID:      testUnitID,
			BackingUnit: testUnitID,
			MinPrice:    10000,
		},
		ledger.NewMemoryBalanceStore(),
		ledger.NewNonceRegistry(),
		operators,
		fees,
		approvals,
		backing,
		recorder,
		zap.NewNop(),
	)

	market := NewService(engineID, operators, fees, payment, NewMemoryStore(),
		events.NopPublisher{}, recorder, zap.NewNop())
	market.RegisterLedger(tokens)

	// Seller's backing units and the grant that lets the ledger lock them.
	require.NoError(t, backing.Mint(operator, seller.Address(), testUnitID, 1000))
	approvals.Grant(seller.Address(), ledgerID, backing.Scope())

	// Seller lets the engine escrow tokens; buyer lets it pull payment.
	approvals.Grant(seller.Address(), engineID, tokens.Scope())
	approvals.Grant(buyer.Address(), engineID, payment.Scope())
	require.NoError(t, payment.Mint(operator, buyer.Address(), 2_000_000_000))

	return &testMarket{
		market:       market,
		ledger:       tokens,
		payment:      payment,
		approvals:    approvals,
		owner:        owner,
		operator:     operator,
		engineID:     engineID,
		feeCollector: feeCollector,
		seller:       seller,
		buyer:        buyer,
	}
}

// mintToSeller runs a signed mint and returns the net amount credited.
func (tm *testMarket) mintToSeller(t *testing.T, gross, nonce uint64) uint64 {
	t.Helper()
	digest := signature.MintDigest(tm.seller.Address(), gross, nonce, tm.ledger.ID())
	net, err := tm.ledger.Mint(context.Background(), tm.operator, ledger.MintRequest{
		Recipient:   tm.seller.Address(),
		GrossAmount: gross,
		Nonce:       nonce,
		Signature:   tm.seller.Sign(digest),
		Price:       20000,
	})
	require.NoError(t, err)
	return net
}

// placeAll verifies the ledger and lists the seller's full net balance.
func (tm *testMarket) placeAll(t *testing.T, amount uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))
	id, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount:    amount,
		LedgerID:  tm.ledger.ID(),
		UnitID:    testUnitID,
		UnitPrice: testUnitPrice,
	})
	require.NoError(t, err)
	return id
}

func TestVerifySourceRequiresOperator(t *testing.T) {
	tm := newTestMarket(t)
	ctx := context.Background()

	err := tm.market.VerifySource(ctx, tm.seller.Address(), tm.ledger.ID())
	assert.ErrorIs(t, err, faults.ErrUnauthorized)
	assert.Empty(t, tm.market.VerifiedSources())

	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))
	// Idempotent.
	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))
	assert.Len(t, tm.market.VerifiedSources(), 1)
}

func TestPlaceRejectsUnverifiedSource(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)

	_, err := tm.market.Place(context.Background(), tm.seller.Address(), PlaceRequest{
		Amount:    net,
		LedgerID:  tm.ledger.ID(),
		UnitID:    testUnitID,
		UnitPrice: testUnitPrice,
	})
	assert.ErrorIs(t, err, faults.ErrUnverifiedSource)
	// Nothing moved into escrow.
	assert.Equal(t, net, tm.ledger.BalanceOf(tm.seller.Address(), testUnitID))
}

func TestPlaceEscrowsListedAmount(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	assert.Equal(t, uint64(1), id)
	assert.Zero(t, tm.ledger.BalanceOf(tm.seller.Address(), testUnitID))
	assert.Equal(t, net, tm.ledger.BalanceOf(tm.engineID, testUnitID))

	item, err := tm.market.Item(id)
	require.NoError(t, err)
	assert.Equal(t, tm.seller.Address(), item.Seller)
	assert.Equal(t, net, item.Amount)
	assert.Equal(t, uint64(testUnitPrice), item.UnitPrice)
}

func TestPlaceIDsAreSequentialAcrossFailures(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 200, 1)
	require.NoError(t, tm.market.VerifySource(context.Background(), tm.operator, tm.ledger.ID()))

	ctx := context.Background()
	first, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: 50, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: testUnitPrice,
	})
	require.NoError(t, err)

	// A failed place (more than the seller holds) burns no id.
	_, err = tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: net * 10, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: testUnitPrice,
	})
	require.Error(t, err)

	second, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: 50, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: testUnitPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestUnPlaceReleasesEscrow(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)
	ctx := context.Background()

	require.NoError(t, tm.market.UnPlace(ctx, tm.seller.Address(), id, 40))
	assert.Equal(t, uint64(40), tm.ledger.BalanceOf(tm.seller.Address(), testUnitID))
	assert.Equal(t, net-40, tm.ledger.BalanceOf(tm.engineID, testUnitID))

	item, err := tm.market.Item(id)
	require.NoError(t, err)
	assert.Equal(t, net-40, item.Amount)
}

func TestUnPlaceOnlyBySeller(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	err := tm.market.UnPlace(context.Background(), tm.buyer.Address(), id, 10)
	assert.ErrorIs(t, err, faults.ErrNotOwner)
	assert.Equal(t, net, tm.ledger.BalanceOf(tm.engineID, testUnitID))
}

func TestUnPlaceRejectsExcessAmount(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	err := tm.market.UnPlace(context.Background(), tm.seller.Address(), id, net+1)
	assert.ErrorIs(t, err, faults.ErrInsufficientListedAmount)
}

func TestUnPlaceUnknownItem(t *testing.T) {
	tm := newTestMarket(t)
	err := tm.market.UnPlace(context.Background(), tm.seller.Address(), 42, 1)
	assert.ErrorIs(t, err, faults.ErrNotFound)
}

func TestPurchaseSettlesWithFeeSplit(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	require.Equal(t, uint64(99), net)
	id := tm.placeAll(t, net)

	receipt, err := tm.market.Purchase(context.Background(), tm.buyer.Address(), id, net)
	require.NoError(t, err)

	// 99 units at 10,000,000 each: 990,000,000 due, split 99%/1%.
	assert.Equal(t, uint64(990_000_000), receipt.TotalDue)
	assert.Equal(t, uint64(9_900_000), receipt.Fee)
	assert.Equal(t, uint64(980_100_000), receipt.NetProceeds)

	assert.Equal(t, uint64(980_100_000), tm.payment.BalanceOf(tm.seller.Address()))
	assert.Equal(t, uint64(9_900_000), tm.payment.BalanceOf(tm.feeCollector))
	assert.Equal(t, uint64(2_000_000_000-990_000_000), tm.payment.BalanceOf(tm.buyer.Address()))
	assert.Zero(t, tm.payment.BalanceOf(tm.engineID))

	assert.Equal(t, net, tm.ledger.BalanceOf(tm.buyer.Address(), testUnitID))
	assert.Zero(t, tm.ledger.BalanceOf(tm.engineID, testUnitID))

	item, err := tm.market.Item(id)
	require.NoError(t, err)
	assert.Zero(t, item.Amount)
}

func TestPurchasePartialAmount(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	receipt, err := tm.market.Purchase(context.Background(), tm.buyer.Address(), id, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), receipt.TotalDue)

	assert.Equal(t, uint64(10), tm.ledger.BalanceOf(tm.buyer.Address(), testUnitID))
	assert.Equal(t, net-10, tm.ledger.BalanceOf(tm.engineID, testUnitID))

	item, err := tm.market.Item(id)
	require.NoError(t, err)
	assert.Equal(t, net-10, item.Amount)
}

func TestPurchaseRejectsExcessAmount(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	_, err := tm.market.Purchase(context.Background(), tm.buyer.Address(), id, net+1)
	assert.ErrorIs(t, err, faults.ErrInsufficientListedAmount)
}

func TestPurchaseFailsWithoutPaymentGrant(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	// Revoke the buyer's payment grant: the pull fails and nothing moves.
	tm.approvals.Revoke(tm.buyer.Address(), tm.engineID, tm.payment.Scope())
	_, err := tm.market.Purchase(context.Background(), tm.buyer.Address(), id, net)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)

	assert.Equal(t, uint64(2_000_000_000), tm.payment.BalanceOf(tm.buyer.Address()))
	assert.Equal(t, net, tm.ledger.BalanceOf(tm.engineID, testUnitID))
	item, err := tm.market.Item(id)
	require.NoError(t, err)
	assert.Equal(t, net, item.Amount)
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)

	var pauper identity.Address
	pauper[19] = 0x77
	tm.approvals.Grant(pauper, tm.engineID, tm.payment.Scope())

	_, err := tm.market.Purchase(context.Background(), pauper, id, net)
	assert.ErrorIs(t, err, faults.ErrInsufficientBalance)
	assert.Zero(t, tm.ledger.BalanceOf(pauper, testUnitID))
}

func TestPurchaseOverflowGuard(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	ctx := context.Background()
	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))

	id, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount:    net,
		LedgerID:  tm.ledger.ID(),
		UnitID:    testUnitID,
		UnitPrice: ^uint64(0),
	})
	require.NoError(t, err)

	_, err = tm.market.Purchase(ctx, tm.buyer.Address(), id, net)
	require.Error(t, err)
	assert.Equal(t, uint64(2_000_000_000), tm.payment.BalanceOf(tm.buyer.Address()))
}

// The fee split must hold even when the settlement amount is large
// enough that amount*rate no longer fits in 64 bits.
func TestPurchaseFeeOnLargeSettlement(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	require.NotZero(t, net)
	ctx := context.Background()
	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))

	const unitPrice = uint64(1) << 63
	id, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: 1, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: unitPrice,
	})
	require.NoError(t, err)
	require.NoError(t, tm.payment.Mint(tm.operator, tm.buyer.Address(), unitPrice))

	receipt, err := tm.market.Purchase(ctx, tm.buyer.Address(), id, 1)
	require.NoError(t, err)

	// 1% of 2^63, rounded down.
	wantFee := uint64(92_233_720_368_547_758)
	assert.Equal(t, unitPrice, receipt.TotalDue)
	assert.Equal(t, wantFee, receipt.Fee)
	assert.Equal(t, unitPrice-wantFee, receipt.NetProceeds)

	assert.Equal(t, wantFee, tm.payment.BalanceOf(tm.feeCollector))
	assert.Equal(t, unitPrice-wantFee, tm.payment.BalanceOf(tm.seller.Address()))
	assert.Zero(t, tm.payment.BalanceOf(tm.engineID))
}

func TestSnapshotAggregates(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 100, 1)
	id := tm.placeAll(t, net)
	ctx := context.Background()

	stats := tm.market.Snapshot()
	assert.Equal(t, 1, stats.ActiveItems)
	assert.Equal(t, net, stats.ListedAmount)
	assert.Zero(t, stats.TradeCount)

	_, err := tm.market.Purchase(ctx, tm.buyer.Address(), id, net)
	require.NoError(t, err)

	stats = tm.market.Snapshot()
	assert.Zero(t, stats.ActiveItems)
	assert.Zero(t, stats.ListedAmount)
	assert.Equal(t, uint64(1), stats.TradeCount)
	assert.Equal(t, uint64(990_000_000), stats.Volume)
}

// The sold-out item stays on record as inert; a fresh listing gets a new
// id rather than reviving it.
func TestSoldOutItemStaysInert(t *testing.T) {
	tm := newTestMarket(t)
	net := tm.mintToSeller(t, 200, 1)
	ctx := context.Background()
	require.NoError(t, tm.market.VerifySource(ctx, tm.operator, tm.ledger.ID()))

	half := net / 2
	first, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: half, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: testUnitPrice,
	})
	require.NoError(t, err)
	_, err = tm.market.Purchase(ctx, tm.buyer.Address(), first, half)
	require.NoError(t, err)

	second, err := tm.market.Place(ctx, tm.seller.Address(), PlaceRequest{
		Amount: net - half, LedgerID: tm.ledger.ID(), UnitID: testUnitID, UnitPrice: testUnitPrice,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	item, err := tm.market.Item(first)
	require.NoError(t, err)
	assert.Zero(t, item.Amount)
	assert.Len(t, tm.market.Items(), 2)
}
