package dh

import (
	"testing"

	"anon_messenger/internal/cryptographic/kdf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedSecretAgreement(t *testing.T) {
	aPriv, aPub, err := NewX25519KeyPair()
	require.NoError(t, err)
	bPriv, bPub, err := NewX25519KeyPair()
	require.NoError(t, err)

	aSecret, err := SharedSecret(aPriv, bPub)
	require.NoError(t, err)
	bSecret, err := SharedSecret(bPriv, aPub)
	require.NoError(t, err)

	assert.Equal(t, aSecret, bSecret)
}

func TestDerivedKeysAreDomainSeparated(t *testing.T) {
	aPriv, _, err := NewX25519KeyPair()
	require.NoError(t, err)
	_, bPub, err := NewX25519KeyPair()
	require.NoError(t, err)

	secret, err := SharedSecret(aPriv, bPub)
	require.NoError(t, err)

	k1, err := kdf.DeriveKey(secret, []byte("wrap"))
	require.NoError(t, err)
	k2, err := kdf.DeriveKey(secret, []byte("other"))
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}
