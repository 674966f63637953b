// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cnutil provides the CryptoNote key and address value types shared
// by the wallet packages.  The cryptographic primitives that operate on these
// types (key derivation, one-time keys, ring signatures) live behind the
// KeyGenerator and transaction builder interfaces and are supplied by the
// host.
package cnutil

import (
	"encoding/hex"
	"errors"

	"github.com/DCL2019/cash2/internal/zero"
)

// KeyLen is the length in bytes of public and secret keys.
const KeyLen = 32

// ErrKeyStrSize describes an error that indicates the caller specified a
// hex string that does not have the right number of characters for a key.
var ErrKeyStrSize = errors.New("key string must be 64 characters")

// PublicKey is a 32-byte curve point identifying a spend or view key.
type PublicKey [KeyLen]byte

// String returns the public key as a hexadecimal string.
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// NewPublicKeyFromStr parses a public key from its hexadecimal encoding.
func NewPublicKeyFromStr(s string) (PublicKey, error) {
	var k PublicKey
	if len(s) != hex.EncodedLen(KeyLen) {
		return k, ErrKeyStrSize
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

// SecretKey is a 32-byte scalar.  The zero value is the null key, which marks
// a tracking (watch-only) spend record.
type SecretKey [KeyLen]byte

// IsNull reports whether the secret key is the null key.
func (k *SecretKey) IsNull() bool {
	return *k == SecretKey{}
}

// Zero wipes the key material.
func (k *SecretKey) Zero() {
	zero.Bytea32((*[KeyLen]byte)(k))
}

// String returns the secret key as a hexadecimal string.
func (k SecretKey) String() string {
	return hex.EncodeToString(k[:])
}

// KeyPair couples a public key with its secret counterpart.
type KeyPair struct {
	Public PublicKey
	Secret SecretKey
}

// AccountAddress is the pair of public keys an address string encodes.
type AccountAddress struct {
	SpendPublicKey PublicKey
	ViewPublicKey  PublicKey
}

// KeyGenerator abstracts the curve operations needed to mint and validate
// keys.  Implementations are supplied by the host process.
type KeyGenerator interface {
	// GenerateKeys returns a fresh key pair.
	GenerateKeys() (PublicKey, SecretKey, error)

	// PublicFromSecret derives the public key matching a secret key.
	PublicFromSecret(*SecretKey) (PublicKey, error)

	// CheckKey reports whether the passed public key is a valid curve
	// point.
	CheckKey(PublicKey) bool
}
