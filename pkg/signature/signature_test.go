package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

func TestVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	ledgerID, err := identity.ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	digest := MintDigest(signer.Address(), 100, 1, ledgerID)
	sig := signer.Sign(digest)

	assert.Len(t, sig, Length)
	assert.NoError(t, Verify(signer.Address(), digest, sig))

	recovered, err := Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestVerifyWrongSigner(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)
	other, err := NewSigner()
	require.NoError(t, err)

	digest := MintDigest(signer.Address(), 100, 1, identity.ZeroAddress)
	sig := other.Sign(digest)

	err = Verify(signer.Address(), digest, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyMalformedSignature(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	digest := MintDigest(signer.Address(), 100, 1, identity.ZeroAddress)

	for _, sig := range [][]byte{nil, {}, make([]byte, 64), make([]byte, 66)} {
		err := Verify(signer.Address(), digest, sig)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	}
}

func TestDigestsDistinguishOperationKinds(t *testing.T) {
	a, err := identity.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	b, err := identity.ParseAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	mint := MintDigest(a, 50, 7, b)
	transfer := TransferDigest(a, b, 1, 50, 7, b)

	assert.Len(t, mint, 32)
	assert.Len(t, transfer, 32)
	assert.NotEqual(t, mint, transfer)

	// Same fields, different nonce must change the digest.
	assert.NotEqual(t, mint, MintDigest(a, 50, 8, b))
	// Field boundaries are fixed-width, so shifting value between fields
	// cannot collide.
	assert.NotEqual(t, MintDigest(a, 50, 7, b), MintDigest(a, 7, 50, b))
}

func TestSignerFromHexDeterministic(t *testing.T) {
	const keyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	s1, err := NewSignerFromHex(keyHex)
	require.NoError(t, err)
	s2, err := NewSignerFromHex(keyHex)
	require.NoError(t, err)

	assert.Equal(t, s1.Address(), s2.Address())
	assert.False(t, s1.Address().IsZero())

	_, err = NewSignerFromHex("0xdead")
	assert.Error(t, err)
}
