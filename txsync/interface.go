// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsync defines the contracts of the blockchain/transfers
// synchronizer subsystem the wallet observes.  The synchronizer scans blocks
// with the shared view key, maintains one transfers container per
// subscription, and notifies its observer as transactions touching owned
// outputs appear, confirm, or vanish.
package txsync

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/cnutil"
)

// OutputFilter selects which output states a container query returns.
type OutputFilter uint8

const (
	// IncludeUnlocked selects outputs that are spendable now.
	IncludeUnlocked OutputFilter = 1 << iota

	// IncludeLocked selects outputs still under an unlock constraint.
	IncludeLocked

	// IncludeAll selects every known output.
	IncludeAll = IncludeUnlocked | IncludeLocked
)

// TransactionInformation is the container's view of one transaction.
type TransactionInformation struct {
	Hash          chainhash.Hash
	BlockHeight   uint32
	Timestamp     uint64
	UnlockTime    uint64
	TotalAmountIn uint64
	TotalAmountOut uint64
	Extra         []byte
}

// OutputInfo describes one owned transaction output.
type OutputInfo struct {
	Amount uint64

	// GlobalOutputIndex is the output's position in the per-amount global
	// output set, as assigned by the chain.
	GlobalOutputIndex uint32

	// OutputInTransaction is the output's position within its
	// transaction.
	OutputInTransaction uint32

	TransactionPublicKey cnutil.PublicKey
	OutputKey            cnutil.PublicKey
	TransactionHash      chainhash.Hash
}

// TransfersContainer is the per-subscription output set maintained by the
// synchronizer.  It is the source of truth for balances; the wallet only
// reads it.
type TransfersContainer interface {
	// Balance sums the amounts of the outputs selected by the filter.
	Balance(filter OutputFilter) uint64

	// Outputs returns the outputs selected by the filter.
	Outputs(filter OutputFilter) []OutputInfo

	// TransactionInformation returns the container's record of a
	// transaction together with the total amounts it spends and receives
	// for this subscription.  The boolean result reports whether the
	// container knows the transaction.
	TransactionInformation(hash chainhash.Hash) (TransactionInformation,
		uint64, uint64, bool)

	// TransactionOutputs returns the owned outputs a transaction created,
	// selected by the filter.
	TransactionOutputs(hash chainhash.Hash, filter OutputFilter) []OutputInfo

	// TransactionInputs returns the owned outputs a transaction spent.
	TransactionInputs(hash chainhash.Hash, filter OutputFilter) []OutputInfo
}

// SyncStart bounds the initial scan of a new subscription.
type SyncStart struct {
	Height    uint32
	Timestamp uint64
}

// AccountKeys is the full key set of one subscription.
type AccountKeys struct {
	Address        cnutil.AccountAddress
	ViewSecretKey  cnutil.SecretKey
	SpendSecretKey cnutil.SecretKey
}

// Subscription describes one address registered with the synchronizer.
type Subscription struct {
	Keys AccountKeys

	// SyncStart is the earliest point outputs for this address may
	// appear.
	SyncStart SyncStart

	// TransactionSpendableAge is the wallet's soft lock in blocks.
	TransactionSpendableAge uint32
}

// Observer receives synchronizer notifications.  Callbacks are delivered
// from the synchronizer's own goroutines; the wallet re-posts them onto its
// dispatcher.
type Observer interface {
	// OnBlocksAdded reports hashes of freshly processed blocks, in chain
	// order.
	OnBlocksAdded(hashes []chainhash.Hash)

	// OnBlockchainDetach reports a chain reorganization truncating the
	// known chain at the given height.
	OnBlockchainDetach(height uint32)

	// OnTransactionUpdated reports that a transaction touching the passed
	// containers appeared or changed.
	OnTransactionUpdated(hash chainhash.Hash, containers []TransfersContainer)

	// OnTransactionDeleted reports that an unconfirmed transaction was
	// dropped from the pool or un-mined by a reorganization.
	OnTransactionDeleted(hash chainhash.Hash, container TransfersContainer)

	// OnSynchronizationProgressUpdated reports scan progress in blocks.
	OnSynchronizationProgressUpdated(processed, total uint32)

	// OnSynchronizationCompleted reports that the scan caught up with the
	// chain tip.
	OnSynchronizationCompleted()
}

// Synchronizer is the command surface of the synchronizer subsystem.
type Synchronizer interface {
	// Start and Stop control block streaming.  Both are idempotent.
	Start()
	Stop()

	// SetObserver registers the single observer notified of sync events.
	// A nil observer detaches.
	SetObserver(observer Observer)

	// AddSubscription registers an address and returns its transfers
	// container.
	AddSubscription(sub Subscription) (TransfersContainer, error)

	// RemoveSubscription drops an address and its container.
	RemoveSubscription(address cnutil.AccountAddress) error

	// Subscriptions lists the registered addresses.
	Subscriptions() []cnutil.AccountAddress

	// ViewKeyKnownBlocks returns the hashes of all blocks already
	// processed for the given view key, in chain order.
	ViewKeyKnownBlocks(viewPublicKey cnutil.PublicKey) []chainhash.Hash

	// AddUnconfirmedTransaction makes the synchronizer track an outgoing
	// transaction before it is relayed so its outputs are recognized.
	AddUnconfirmedTransaction(hash chainhash.Hash, txBlob []byte) error

	// RemoveUnconfirmedTransaction forgets a tracked outgoing
	// transaction.
	RemoveUnconfirmedTransaction(hash chainhash.Hash) error
}
