package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	sealed, err := Seal(key, []byte("hello"))
	require.NoError(t, err)

	plain, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plain)
}

func TestOpenRejectsTampering(t *testing.T) {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	sealed, err := Seal(key, []byte("hello"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Open(key, sealed)
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	var key, other [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	copy(other[:], "fedcba9876543210fedcba9876543210")

	sealed, err := Seal(key, []byte("hello"))
	require.NoError(t, err)

	_, err = Open(other, sealed)
	assert.Error(t, err)
}

func TestOpenRejectsTruncated(t *testing.T) {
	var key [32]byte
	_, err := Open(key, []byte{0x01, 0x02})
	assert.Error(t, err)
}
