package signature

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Each authorization kind has its own fixed schema, identified by a
// version byte and a kind tag packed ahead of the payload. Fields are
// packed at fixed widths (20-byte addresses, 8-byte big-endian integers)
// so a digest is never ambiguous across kinds or field boundaries.
const (
	schemaVersion byte = 0x01

	kindMint      byte = 0x01
	kindTransfer  byte = 0x02
	kindChallenge byte = 0x03
)

// authPrefix is prepended to every digest before signing, so a signed
// authorization can never be replayed as a signature over arbitrary
// application data.
const authPrefix = "\x19Carbon Derivative Authorization:\n32"

// MintDigest computes the canonical digest a recipient signs to authorize
// minting grossAmount derivative units against their backing balance on
// the ledger identified by ledgerID.
func MintDigest(recipient identity.Address, grossAmount, nonce uint64, ledgerID identity.Address) []byte {
	buf := make([]byte, 0, 2+identity.AddressLength*2+16)
	buf = append(buf, schemaVersion, kindMint)
	buf = append(buf, recipient.Bytes()...)
	buf = appendUint64(buf, grossAmount)
	buf = appendUint64(buf, nonce)
	buf = append(buf, ledgerID.Bytes()...)
	return keccak256(buf)
}

// TransferDigest computes the canonical digest the holder signs to
// authorize a delegated transfer of amount units of unitID from their
// balance to the recipient.
func TransferDigest(from, to identity.Address, unitID, amount, nonce uint64, ledgerID identity.Address) []byte {
	buf := make([]byte, 0, 2+identity.AddressLength*3+24)
	buf = append(buf, schemaVersion, kindTransfer)
	buf = append(buf, from.Bytes()...)
	buf = append(buf, to.Bytes()...)
	buf = appendUint64(buf, unitID)
	buf = appendUint64(buf, amount)
	buf = appendUint64(buf, nonce)
	buf = append(buf, ledgerID.Bytes()...)
	return keccak256(buf)
}

// ChallengeDigest computes the digest signed to prove control of an
// address during authentication. The challenge bytes are server-issued
// and single-use.
func ChallengeDigest(challenge []byte) []byte {
	buf := make([]byte, 0, 2+len(challenge))
	buf = append(buf, schemaVersion, kindChallenge)
	buf = append(buf, challenge...)
	return keccak256(buf)
}

// signingHash applies the authorization prefix to a 32-byte digest. Both
// signing and recovery go through this, never the bare digest.
func signingHash(digest []byte) []byte {
	buf := make([]byte, 0, len(authPrefix)+len(digest))
	buf = append(buf, authPrefix...)
	buf = append(buf, digest...)
	return keccak256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
