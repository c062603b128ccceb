package market

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/audit"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/events"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// TokenLedger is the slice of the token ledger the escrow engine needs:
// delegated balance moves gated on the approval registry.
type TokenLedger interface {
	ID() identity.Address
	TransferFrom(ctx context.Context, delegate, from, to identity.Address, unit, amount uint64) error
}

// PaymentAsset is the stable-value ledger purchases settle in.
type PaymentAsset interface {
	BalanceOf(owner identity.Address) uint64
	Transfer(from, to identity.Address, amount uint64) error
	TransferFrom(delegate, from, to identity.Address, amount uint64) error
}

// Service is the marketplace escrow engine. It holds listings, escrows
// seller balances under its own identity, and settles purchases in the
// payment asset with a fee split. Operations are serialized under one
// mutex; within an operation every balance movement either fully applies
// or is compensated, so escrow is never stranded and payment never moves
// without tokens.
type Service struct {
	engineID  identity.Address
	operators registry.OperatorRegistry
	fees      registry.FeePolicy
	payment   PaymentAsset
	store     Store
	events    events.Publisher
	audit     audit.Recorder
	logger    *zap.Logger

	mu         sync.Mutex
	ledgers    map[identity.Address]TokenLedger
	tradeCount uint64
	volume     uint64
}

// NewService creates a marketplace escrow engine.
func NewService(
	engineID identity.Address,
	operators registry.OperatorRegistry,
	fees registry.FeePolicy,
	payment PaymentAsset,
	store Store,
	publisher events.Publisher,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		engineID:  engineID,
		operators: operators,
		fees:      fees,
		payment:   payment,
		store:     store,
		events:    publisher,
		audit:     recorder,
		logger:    logger,
		ledgers:   make(map[identity.Address]TokenLedger),
	}
}

// EngineID returns the custody identity escrowed balances are held under.
func (s *Service) EngineID() identity.Address { return s.engineID }

// RegisterLedger makes a token ledger resolvable for listings. Wiring
// time only; verification for trading is the separate operator-gated
// VerifySource step.
func (s *Service) RegisterLedger(l TokenLedger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[l.ID()] = l
}

// VerifySource marks a token ledger as accepted for listing.
// Operator-gated and idempotent.
func (s *Service) VerifySource(ctx context.Context, operator, ledgerID identity.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.operators.IsOperator(operator) {
		return fmt.Errorf("verify source: %w", faults.ErrUnauthorized)
	}
	s.store.VerifySource(ledgerID)

	s.logger.Info("Token ledger verified for listing", zap.String("ledger", ledgerID.Hex()))
	s.audit.Record(ctx, operator.Hex(), audit.ActionVerifySource, map[string]any{
		"ledger": ledgerID.Hex(),
	})
	s.events.Publish(events.New(events.TypeSourceVerified, map[string]any{
		"ledger": ledgerID.Hex(),
	}))
	return nil
}

// Place escrows amount of the seller's balance and creates a listing.
// The seller must have granted the engine transfer rights on the source
// ledger beforehand. Returns the new item id. The id is allocated only
// after validation and the escrow pull succeed, so failed calls leave no
// gaps.
func (s *Service) Place(ctx context.Context, seller identity.Address, req PlaceRequest) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Amount == 0 {
		return 0, fmt.Errorf("place: amount must be positive")
	}
	if !s.store.IsVerified(req.LedgerID) {
		return 0, fmt.Errorf("place on %s: %w", req.LedgerID, faults.ErrUnverifiedSource)
	}
	l, ok := s.ledgers[req.LedgerID]
	if !ok {
		return 0, fmt.Errorf("place on unknown ledger %s: %w", req.LedgerID, faults.ErrUnverifiedSource)
	}

	// Pull the listed amount into engine custody.
	if err := l.TransferFrom(ctx, s.engineID, seller, s.engineID, req.UnitID, req.Amount); err != nil {
		return 0, fmt.Errorf("place: escrow pull: %w", err)
	}

	now := time.Now()
	item := &Item{
		ID:        s.store.NextID(),
		Seller:    seller,
		Ledger:    req.LedgerID,
		UnitID:    req.UnitID,
		Amount:    req.Amount,
		UnitPrice: req.UnitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.Put(item)

	s.logger.Info("Item placed",
		zap.Uint64("item_id", item.ID),
		zap.String("seller", seller.Hex()),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("unit_price", req.UnitPrice))
	s.audit.Record(ctx, seller.Hex(), audit.ActionPlace, item)
	s.events.Publish(events.New(events.TypeItemPlaced, map[string]any{
		"item_id":    item.ID,
		"seller":     seller.Hex(),
		"unit_id":    item.UnitID,
		"amount":     item.Amount,
		"unit_price": item.UnitPrice,
	}))

	return item.ID, nil
}

// UnPlace returns amount of the item's escrowed balance to the seller.
// Only the item's seller may call it; partial withdrawals are allowed.
func (s *Service) UnPlace(ctx context.Context, caller identity.Address, itemID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(itemID)
	if !ok {
		return fmt.Errorf("unplace item %d: %w", itemID, faults.ErrNotFound)
	}
	if caller != item.Seller {
		return fmt.Errorf("unplace item %d: %w", itemID, faults.ErrNotOwner)
	}
	if amount > item.Amount {
		return fmt.Errorf("unplace %d of %d listed: %w", amount, item.Amount, faults.ErrInsufficientListedAmount)
	}

	l, ok := s.ledgers[item.Ledger]
	if !ok {
		return fmt.Errorf("unplace item %d: ledger %s no longer registered", itemID, item.Ledger)
	}

	// Release escrow back to the seller; the item shrinks only after the
	// balance actually moved.
	if err := l.TransferFrom(ctx, s.engineID, s.engineID, item.Seller, item.UnitID, amount); err != nil {
		return fmt.Errorf("unplace: escrow release: %w", err)
	}
	item.Amount -= amount
	item.UpdatedAt = time.Now()
	s.store.Put(item)

	s.logger.Info("Item unplaced",
		zap.Uint64("item_id", itemID),
		zap.Uint64("amount", amount),
		zap.Uint64("remaining", item.Amount))
	s.audit.Record(ctx, caller.Hex(), audit.ActionUnPlace, map[string]any{
		"item_id":   itemID,
		"amount":    amount,
		"remaining": item.Amount,
	})
	s.events.Publish(events.New(events.TypeItemUnplaced, map[string]any{
		"item_id":   itemID,
		"seller":    item.Seller.Hex(),
		"amount":    amount,
		"remaining": item.Amount,
	}))

	return nil
}

// Purchase settles amount units of a listing in the payment asset. The
// buyer pays amount * unit price; the seller receives the proceeds net
// of the fee, the fee recipient receives the fee, and the escrowed
// tokens move to the buyer. The four movements apply together or not at
// all: proceeds stay in engine custody until the token release has
// succeeded, and the buyer is refunded if it does not.
func (s *Service) Purchase(ctx context.Context, buyer identity.Address, itemID, amount uint64) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(itemID)
	if !ok {
		return nil, fmt.Errorf("purchase item %d: %w", itemID, faults.ErrNotFound)
	}
	if amount == 0 {
		return nil, fmt.Errorf("purchase: amount must be positive")
	}
	if amount > item.Amount {
		return nil, fmt.Errorf("purchase %d of %d listed: %w", amount, item.Amount, faults.ErrInsufficientListedAmount)
	}

	l, ok := s.ledgers[item.Ledger]
	if !ok {
		return nil, fmt.Errorf("purchase item %d: ledger %s no longer registered", itemID, item.Ledger)
	}

	hi, totalDue := bits.Mul64(amount, item.UnitPrice)
	if hi != 0 {
		return nil, fmt.Errorf("purchase: total due overflows")
	}

	// Pull the full price into engine custody. Requires the buyer's
	// prior grant on the payment asset.
	if err := s.payment.TransferFrom(s.engineID, buyer, s.engineID, totalDue); err != nil {
		return nil, fmt.Errorf("purchase: payment pull: %w", err)
	}

	// Release the escrowed tokens. On failure the buyer is made whole
	// and nothing else has moved.
	if err := l.TransferFrom(ctx, s.engineID, s.engineID, buyer, item.UnitID, amount); err != nil {
		if refundErr := s.payment.Transfer(s.engineID, buyer, totalDue); refundErr != nil {
			s.logger.Error("Failed to refund buyer after aborted purchase",
				zap.Uint64("item_id", itemID),
				zap.String("buyer", buyer.Hex()),
				zap.Error(refundErr))
		}
		return nil, fmt.Errorf("purchase: escrow release: %w", err)
	}

	// Split the proceeds. The engine just received totalDue, so these
	// moves out of its own balance cannot come up short.
	fee := registry.Fee(totalDue, s.fees.RatePerMille())
	net := totalDue - fee
	if err := s.payment.Transfer(s.engineID, item.Seller, net); err != nil {
		return nil, fmt.Errorf("purchase: pay seller: %w", err)
	}
	if fee > 0 {
		if err := s.payment.Transfer(s.engineID, s.fees.Recipient(), fee); err != nil {
			return nil, fmt.Errorf("purchase: pay fee recipient: %w", err)
		}
	}

	item.Amount -= amount
	item.UpdatedAt = time.Now()
	s.store.Put(item)
	s.tradeCount++
	s.volume += totalDue

	receipt := &Receipt{
		ItemID:      itemID,
		Buyer:       buyer,
		Seller:      item.Seller,
		Amount:      amount,
		TotalDue:    totalDue,
		Fee:         fee,
		NetProceeds: net,
	}

	s.logger.Info("Item purchased",
		zap.Uint64("item_id", itemID),
		zap.String("buyer", buyer.Hex()),
		zap.Uint64("amount", amount),
		zap.Uint64("total_due", totalDue),
		zap.Uint64("fee", fee))
	s.audit.Record(ctx, buyer.Hex(), audit.ActionPurchase, receipt)
	s.events.Publish(events.New(events.TypeItemPurchased, map[string]any{
		"item_id":   itemID,
		"buyer":     buyer.Hex(),
		"seller":    item.Seller.Hex(),
		"amount":    amount,
		"total_due": totalDue,
		"remaining": item.Amount,
	}))

	return receipt, nil
}

// Item returns one listing.
func (s *Service) Item(id uint64) (*Item, error) {
	item, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, faults.ErrNotFound)
	}
	return item, nil
}

// Items returns all listings, inert ones included, ordered by id.
func (s *Service) Items() []*Item {
	return s.store.List()
}

// VerifiedSources returns the ledgers accepted for listing.
func (s *Service) VerifiedSources() []identity.Address {
	return s.store.Sources()
}

// Snapshot aggregates current market activity.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	tradeCount := s.tradeCount
	volume := s.volume
	s.mu.Unlock()

	stats := Stats{TradeCount: tradeCount, Volume: volume}
	for _, item := range s.store.List() {
		if item.Amount > 0 {
			stats.ActiveItems++
			stats.ListedAmount += item.Amount
		}
	}
	return stats
}
