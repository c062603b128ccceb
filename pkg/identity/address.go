package identity

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an account identity.
const AddressLength = 20

// Address identifies an account on the ledger and the marketplace. It is
// the last 20 bytes of the keccak256 hash of the account's secp256k1
// public key, rendered as 0x-prefixed hex.
type Address [AddressLength]byte

// ZeroAddress is the empty identity. It never holds balance and is not a
// valid participant in any operation.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed (or bare) 40-character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != AddressLength*2 {
		return a, fmt.Errorf("invalid address %q: expected %d hex characters", s, AddressLength*2)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// FromBytes builds an Address from a raw byte slice, taking the last 20
// bytes when the input is longer.
func FromBytes(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// Bytes returns the raw 20-byte form.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is the zero identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText implements encoding.TextMarshaler so addresses render as
// hex in JSON payloads.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
