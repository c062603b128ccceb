package registry

import (
	"fmt"
	"math/bits"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/faults"
	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// FeePolicy supplies the proportional fee applied at mint and at
// purchase settlement, and the identity that collects it.
type FeePolicy interface {
	RatePerMille() uint64
	Recipient() identity.Address
}

// FeeManager is the in-process fee policy. Rate changes are gated on the
// operator registry.
type FeeManager struct {
	operators OperatorRegistry

	mu        sync.RWMutex
	rate      uint64
	recipient identity.Address
}

// NewFeeManager creates a fee policy with the given recipient and rate
// in parts per thousand (10 = 1%).
func NewFeeManager(operators OperatorRegistry, recipient identity.Address, ratePerMille uint64) (*FeeManager, error) {
	if ratePerMille > 1000 {
		return nil, fmt.Errorf("fee rate %d exceeds 1000 per mille", ratePerMille)
	}
	return &FeeManager{
		operators: operators,
		rate:      ratePerMille,
		recipient: recipient,
	}, nil
}

// RatePerMille returns the current fee rate in parts per thousand.
func (m *FeeManager) RatePerMille() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rate
}

// Recipient returns the fee collector identity.
func (m *FeeManager) Recipient() identity.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recipient
}

// SetRatePerMille updates the fee rate. Operator-gated.
func (m *FeeManager) SetRatePerMille(caller identity.Address, rate uint64) error {
	if !m.operators.IsOperator(caller) {
		return fmt.Errorf("set fee rate: %w", faults.ErrUnauthorized)
	}
	if rate > 1000 {
		return fmt.Errorf("fee rate %d exceeds 1000 per mille", rate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	return nil
}

// SetRecipient updates the fee collector. Operator-gated.
func (m *FeeManager) SetRecipient(caller, recipient identity.Address) error {
	if !m.operators.IsOperator(caller) {
		return fmt.Errorf("set fee recipient: %w", faults.ErrUnauthorized)
	}
	if recipient.IsZero() {
		return fmt.Errorf("set fee recipient: zero address")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipient = recipient
	return nil
}

// Fee computes the fee share of amount at the current rate, rounding
// down. The remainder (amount - fee) always goes to the counterparty, so
// the two shares sum exactly to amount. The intermediate product is kept
// at full 128-bit width, so the share stays exact for amounts near the
// uint64 ceiling. Requires ratePerMille <= 1000, which FeeManager
// enforces on every rate.
func Fee(amount, ratePerMille uint64) uint64 {
	hi, lo := bits.Mul64(amount, ratePerMille)
	// hi < ratePerMille <= 1000, so the division cannot overflow.
	fee, _ := bits.Div64(hi, lo, 1000)
	return fee
}
