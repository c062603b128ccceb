package signature

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Length is the required encoding size of a compact recoverable
// signature: 1 recovery byte followed by 32-byte R and S.
const Length = 65

var (
	// ErrMalformedSignature reports a signature whose encoding has the
	// wrong size or shape. Distinct from ErrInvalidSignature so callers
	// can tell an encoding bug from a forged or mismatched signature.
	ErrMalformedSignature = errors.New("invalid signature length")

	// ErrInvalidSignature reports a well-formed signature that does not
	// recover the expected signer.
	ErrInvalidSignature = errors.New("signature does not match expected signer")
)

// Recover returns the address that produced sig over the given canonical
// digest. The digest must come from one of the Digest constructors in
// this package.
func Recover(digest, sig []byte) (identity.Address, error) {
	if len(sig) != Length {
		return identity.ZeroAddress, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedSignature, len(sig), Length)
	}
	pub, _, err := secpecdsa.RecoverCompact(sig, signingHash(digest))
	if err != nil {
		return identity.ZeroAddress, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return AddressFromPublicKey(pub), nil
}

// Verify checks that sig over digest was produced by expectedSigner.
// Pure verification, no side effects.
func Verify(expectedSigner identity.Address, digest, sig []byte) error {
	recovered, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != expectedSigner {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrInvalidSignature, recovered, expectedSigner)
	}
	return nil
}

// AddressFromPublicKey derives the account address for a secp256k1
// public key: the last 20 bytes of keccak256 over the uncompressed point
// without its format prefix.
func AddressFromPublicKey(pub *secp256k1.PublicKey) identity.Address {
	raw := pub.SerializeUncompressed()
	return identity.FromBytes(keccak256(raw[1:]))
}
