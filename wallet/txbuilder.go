// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/txsync"
)

// GlobalOutput is one ring member referenced by its global per-amount index.
type GlobalOutput struct {
	OutputIndex uint32
	TargetKey   cnutil.PublicKey
}

// RealOutput locates the real spent output inside its ring and its source
// transaction.
type RealOutput struct {
	// TransactionPublicKey is the public key of the transaction that
	// created the output.
	TransactionPublicKey cnutil.PublicKey

	// TransactionIndex is the position of the real output within the
	// ring (the Outputs slice of its InputKeyInfo).
	TransactionIndex int

	// OutputInTransaction is the output's position within its source
	// transaction.
	OutputInTransaction uint32
}

// InputKeyInfo is the full ring description of one transaction input: the
// amount, the ring members sorted by global index ascending, and the real
// output's position among them.
type InputKeyInfo struct {
	Amount     uint64
	Outputs    []GlobalOutput
	RealOutput RealOutput
}

// TxBuilder assembles, signs, and serializes one transaction.  The
// implementation carries the CryptoNote cryptography (one-time keys, ring
// signatures) and the wire codec, both of which live outside this module.
// Builders are single-use and not safe for concurrent use.
type TxBuilder interface {
	// AddOutput appends a (receiver, amount) output.
	AddOutput(amount uint64, receiver cnutil.AccountAddress) error

	// AddInput appends an input spending the ring's real output with the
	// passed account keys and returns the input's position.
	AddInput(keys txsync.AccountKeys, input InputKeyInfo) (int, error)

	// SignInput produces the ring signature of the input at the given
	// position.  Every input must be signed exactly once, after all
	// outputs and inputs were added.
	SignInput(index int) error

	// SetUnlockTime sets the transaction unlock time.
	SetUnlockTime(unlockTime uint64)

	// AppendExtra appends bytes to the transaction extra field.
	AppendExtra(extra []byte) error

	// Hash returns the transaction hash.  Only valid once fully built.
	Hash() chainhash.Hash

	// SecretKey returns the transaction secret key.
	SecretKey() cnutil.SecretKey

	// Extra returns the transaction extra field.
	Extra() []byte

	// UnlockTime returns the transaction unlock time.
	UnlockTime() uint64

	// InputTotal and OutputTotal return the amount sums; their difference
	// is the fee.
	InputTotal() uint64
	OutputTotal() uint64

	// Bytes returns the serialized transaction.
	Bytes() ([]byte, error)
}

// TxFactory mints a fresh TxBuilder per transaction.
type TxFactory func() TxBuilder
