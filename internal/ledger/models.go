package ledger

import "carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"

// MintRequest carries the parameters of a fee-adjusted, signature-gated
// mint. Signature covers (Recipient, GrossAmount, Nonce, ledger id); the
// operator submitting the call is not part of the signed tuple.
type MintRequest struct {
	// Recipient authorized the mint and receives the net amount.
	Recipient identity.Address `json:"recipient"`
	// GrossAmount is the requested issue amount before the fee share is
	// withheld.
	GrossAmount uint64 `json:"gross_amount"`
	// Nonce is caller-chosen and single-use per signer in the mint scope.
	Nonce uint64 `json:"nonce"`
	// Metadata is an opaque pass-through recorded in the audit trail.
	Metadata string `json:"metadata"`
	// Signature is the recipient's compact recoverable signature over
	// the canonical mint digest.
	Signature []byte `json:"signature"`
	// Price is the unit price backing this mint, checked against the
	// ledger's minimum so freshly minted supply never backs an
	// uneconomic listing.
	Price uint64 `json:"price"`
}

// TransferRequest carries the parameters of a delegated transfer: the
// holder signs, an operator submits.
type TransferRequest struct {
	From      identity.Address `json:"from"`
	To        identity.Address `json:"to"`
	UnitID    uint64           `json:"unit_id"`
	Amount    uint64           `json:"amount"`
	Nonce     uint64           `json:"nonce"`
	Signature []byte           `json:"signature"`
}

// Info describes the ledger instance.
type Info struct {
	ID          identity.Address `json:"id"`
	Name        string           `json:"name"`
	Symbol      string           `json:"symbol"`
	UnitID      uint64           `json:"unit_id"`
	BackingUnit uint64           `json:"backing_unit_id"`
	MinPrice    uint64           `json:"min_price"`
}
