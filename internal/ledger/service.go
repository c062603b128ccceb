package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/audit"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/registry"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/signature"
)

// BackingAsset is the collaborator ledger whose units are locked into
// this ledger's custody when derivative credits are minted against them.
type BackingAsset interface {
	TransferFrom(delegate, from, to identity.Address, unit, amount uint64) error
}

// Config fixes the identity and economic parameters of a ledger
// instance.
type Config struct {
	// ID is the ledger's own identity: it appears in every signed digest
	// and acts as custodian of locked backing units.
	ID     identity.Address
	Name   string
	Symbol string
	// UnitID is the fixed derivative unit all mints credit.
	UnitID uint64
	// BackingUnit is the backing-asset unit locked at mint time.
	BackingUnit uint64
	// MinPrice is the mint price floor in payment-asset minor units.
	MinPrice uint64
}

// Service is the signed-authorization token ledger. Every public
// state-changing operation runs to completion under one mutex, so
// balance entries and nonce sets never see interleaved mutation.
type Service struct {
	cfg       Config
	store     BalanceStore
	nonces    NonceRegistry
	operators registry.OperatorRegistry
	fees      registry.FeePolicy
	approvals registry.Approvals
	backing   BackingAsset
	audit     audit.Recorder
	logger    *zap.Logger

	mu sync.Mutex
}

// NewService creates a token ledger.
func NewService(
	cfg Config,
	store BalanceStore,
	nonces NonceRegistry,
	operators registry.OperatorRegistry,
	fees registry.FeePolicy,
	approvals registry.Approvals,
	backing BackingAsset,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		nonces:    nonces,
		operators: operators,
		fees:      fees,
		approvals: approvals,
		backing:   backing,
		audit:     recorder,
		logger:    logger,
	}
}

// ID returns the ledger identity.
func (s *Service) ID() identity.Address { return s.cfg.ID }

// Scope is the approval scope owners grant against for delegated moves
// on this ledger.
func (s *Service) Scope() string { return "ledger:" + s.cfg.ID.Hex() }

// Info returns the ledger description.
func (s *Service) Info() Info {
	return Info{
		ID:          s.cfg.ID,
		Name:        s.cfg.Name,
		Symbol:      s.cfg.Symbol,
		UnitID:      s.cfg.UnitID,
		BackingUnit: s.cfg.BackingUnit,
		MinPrice:    s.cfg.MinPrice,
	}
}

// BalanceOf returns owner's balance in unit.
func (s *Service) BalanceOf(owner identity.Address, unit uint64) uint64 {
	return s.store.Balance(owner, unit)
}

// TotalSupply returns the issued amount for unit.
func (s *Service) TotalSupply(unit uint64) uint64 {
	return s.store.TotalSupply(unit)
}

// Mint issues derivative credits against a signed authorization from the
// recipient. The submitting caller must be a registered operator. The
// gross amount of backing units is locked into the ledger's custody, the
// fee share is withheld (never issued), and the recipient is credited
// the net amount at the ledger's fixed unit id. Returns the net amount.
//
// The nonce is spent before the backing lock: an authorization, once
// presented past verification, is consumed even if the backing pull then
// fails.
func (s *Service) Mint(ctx context.Context, operator identity.Address, req MintRequest) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.operators.IsOperator(operator) {
		return 0, fmt.Errorf("mint: %w", faults.ErrUnauthorized)
	}

	digest := signature.MintDigest(req.Recipient, req.GrossAmount, req.Nonce, s.cfg.ID)
	if err := signature.Verify(req.Recipient, digest, req.Signature); err != nil {
		return 0, fmt.Errorf("mint: %w", err)
	}

	if req.Price < s.cfg.MinPrice {
		return 0, fmt.Errorf("mint at price %d (min %d): %w", req.Price, s.cfg.MinPrice, faults.ErrPriceBelowMinimum)
	}

	if err := s.nonces.Consume(req.Recipient, ScopeMint, req.Nonce); err != nil {
		return 0, fmt.Errorf("mint: %w", err)
	}

	// Lock the equivalent gross amount of backing units into custody.
	// Requires the recipient to have granted this ledger transfer rights
	// on the backing asset.
	if err := s.backing.TransferFrom(s.cfg.ID, req.Recipient, s.cfg.ID, s.cfg.BackingUnit, req.GrossAmount); err != nil {
		return 0, fmt.Errorf("mint: lock backing units: %w", err)
	}

	fee := registry.Fee(req.GrossAmount, s.fees.RatePerMille())
	net := req.GrossAmount - fee
	s.store.Issue(req.Recipient, s.cfg.UnitID, net)

	s.logger.Info("Derivative credits minted",
		zap.String("recipient", req.Recipient.Hex()),
		zap.Uint64("gross", req.GrossAmount),
		zap.Uint64("net", net),
		zap.Uint64("fee_withheld", fee),
		zap.Uint64("nonce", req.Nonce))
	s.audit.Record(ctx, operator.Hex(), audit.ActionMint, map[string]any{
		"recipient": req.Recipient.Hex(),
		"gross":     req.GrossAmount,
		"net":       net,
		"fee":       fee,
		"nonce":     req.Nonce,
		"price":     req.Price,
		"metadata":  req.Metadata,
	})

	return net, nil
}

// TransferWithSignature moves balance on behalf of a holder who signed
// the transfer but never submits the call themselves. Operator-gated.
func (s *Service) TransferWithSignature(ctx context.Context, operator identity.Address, req TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.operators.IsOperator(operator) {
		return fmt.Errorf("transfer: %w", faults.ErrUnauthorized)
	}

	digest := signature.TransferDigest(req.From, req.To, req.UnitID, req.Amount, req.Nonce, s.cfg.ID)
	if err := signature.Verify(req.From, digest, req.Signature); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	if err := s.nonces.Consume(req.From, ScopeTransfer, req.Nonce); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	if err := s.store.Debit(req.From, req.UnitID, req.Amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	s.store.Credit(req.To, req.UnitID, req.Amount)

	s.logger.Info("Delegated transfer applied",
		zap.String("from", req.From.Hex()),
		zap.String("to", req.To.Hex()),
		zap.Uint64("unit_id", req.UnitID),
		zap.Uint64("amount", req.Amount))
	s.audit.Record(ctx, operator.Hex(), audit.ActionTransfer, map[string]any{
		"from":    req.From.Hex(),
		"to":      req.To.Hex(),
		"unit_id": req.UnitID,
		"amount":  req.Amount,
		"nonce":   req.Nonce,
	})

	return nil
}

// TransferFrom moves balance on behalf of a delegate holding transfer
// rights for this ledger (the marketplace escrow pull/release path). A
// holder always has rights over their own balance.
func (s *Service) TransferFrom(ctx context.Context, delegate, from, to identity.Address, unit, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.approvals.HasTransferRights(from, delegate, s.Scope()) {
		return fmt.Errorf("transfer from %s: %w", from, faults.ErrUnauthorized)
	}

	if err := s.store.Debit(from, unit, amount); err != nil {
		return err
	}
	s.store.Credit(to, unit, amount)

	s.audit.Record(ctx, delegate.Hex(), audit.ActionDelegatedMove, map[string]any{
		"from":    from.Hex(),
		"to":      to.Hex(),
		"unit_id": unit,
		"amount":  amount,
	})
	return nil
}
