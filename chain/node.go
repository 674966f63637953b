// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines the contract between the wallet and the full node it
// talks to.  The node implementation (RPC transport, connection management)
// is supplied by the host process.
package chain

import (
	"github.com/DCL2019/cash2/cnutil"
)

// RandomOutEntry is one candidate ring member for a given amount.
type RandomOutEntry struct {
	// GlobalIndex is the output's position in the per-amount global
	// output set.
	GlobalIndex uint32

	// OutKey is the output's one-time public key.
	OutKey cnutil.PublicKey
}

// RandomOutsForAmount carries the sampled decoy outputs for one amount.
type RandomOutsForAmount struct {
	Amount uint64
	Outs   []RandomOutEntry
}

// Node is the subset of full-node RPC the wallet consumes.  The two
// long-running operations are asynchronous: they return immediately and
// invoke the callback exactly once, from an arbitrary goroutine, with the
// result or the transport error.
type Node interface {
	// LastKnownBlockHeight returns the node's current chain tip height.
	LastKnownBlockHeight() uint32

	// MinimalFee returns the minimum relay fee the node enforces.
	MinimalFee() uint64

	// GetRandomOutsByAmounts samples up to count random outputs for every
	// requested amount.
	GetRandomOutsByAmounts(amounts []uint64, count int,
		callback func([]RandomOutsForAmount, error))

	// RelayTransaction submits a serialized transaction to the node's
	// pool.
	RelayTransaction(txBlob []byte, callback func(error))
}
