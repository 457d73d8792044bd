package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey expands secret into a 32-byte key via HKDF-SHA256. info
// domain-separates keys derived from the same secret.
func DeriveKey(secret, info []byte) ([32]byte, error) {
	var key [32]byte
	h := hkdf.New(sha256.New, secret, nil, info)
	_, err := io.ReadFull(h, key[:])
	return key, err
}
