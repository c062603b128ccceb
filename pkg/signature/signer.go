package signature

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Signer wraps a secp256k1 private key and produces compact recoverable
// signatures over canonical digests. Used by tooling and tests; the
// service itself only ever verifies.
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner generates a fresh random key.
func NewSigner() (*Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewSignerFromHex loads a signer from a 32-byte hex-encoded private key.
func NewSignerFromHex(s string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid private key length: got %d bytes, want 32", len(raw))
	}
	return &Signer{key: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// Address returns the account address controlled by this signer.
func (s *Signer) Address() identity.Address {
	return AddressFromPublicKey(s.key.PubKey())
}

// Sign produces a compact recoverable signature over the canonical
// digest, applying the same authorization prefix Verify expects.
func (s *Signer) Sign(digest []byte) []byte {
	return secpecdsa.SignCompact(s.key, signingHash(digest), false)
}
