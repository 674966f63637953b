// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snacl

import (
	"bytes"
	"testing"
)

var (
	password = []byte("sikrit")
	message  = []byte("this is a secret message of sorts")
)

func newTestKey(t *testing.T) *SecretKey {
	key, err := NewSecretKey(&password, DefaultN, DefaultR, DefaultP)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestMarshalUnmarshalSecretKey(t *testing.T) {
	key := newTestKey(t)
	params := key.Marshal()

	var sk SecretKey
	if err := sk.Unmarshal(params); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}

	if err := sk.DeriveKey(&password); err != nil {
		t.Fatalf("unexpected DeriveKey error: %v", err)
	}

	if !bytes.Equal(sk.Key[:], key.Key[:]) {
		t.Errorf("keys not equal")
	}

	p := []byte("wrong password")
	if err := sk.DeriveKey(&p); err != ErrInvalidPassword {
		t.Errorf("wrong password didn't fail")
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	var sk SecretKey
	if err := sk.Unmarshal(make([]byte, 10)); err != ErrMalformed {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := newTestKey(t)

	blob, err := key.Encrypt(message)
	if err != nil {
		t.Fatal(err)
	}

	decryptedMessage, err := key.Decrypt(blob)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(decryptedMessage, message) {
		t.Errorf("decryption failed")
	}

	// Corrupt a ciphertext byte and make sure the open fails.
	blob[len(blob)-15]++
	if _, err := key.Decrypt(blob); err == nil {
		t.Errorf("corrupt message decrypted")
	}

	// Truncated input must be rejected as malformed.
	if _, err := key.Decrypt(blob[:NonceSize-1]); err != ErrMalformed {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestZeroAndRederive(t *testing.T) {
	var zeroKey [KeySize]byte

	key := newTestKey(t)
	key.Zero()
	if !bytes.Equal(key.Key[:], zeroKey[:]) {
		t.Errorf("zero key failed")
	}

	if err := key.DeriveKey(&password); err != nil {
		t.Errorf("unexpected DeriveKey key failure: %v", err)
	}

	bogusPass := []byte("bogus")
	key.Zero()
	if err := key.DeriveKey(&bogusPass); err != ErrInvalidPassword {
		t.Errorf("unexpected DeriveKey key failure: %v", err)
	}
}
