// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/txsync"
	"github.com/DCL2019/cash2/wtxmgr"
)

// Compile-time check that the wallet observes the synchronizer.
var _ txsync.Observer = (*Wallet)(nil)

// OnBlocksAdded implements txsync.Observer.  The append runs on the
// dispatcher.
func (w *Wallet) OnBlocksAdded(hashes []chainhash.Hash) {
	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}
		w.appendBlockHashes(hashes)
	})
}

// OnBlockchainDetach implements txsync.Observer.
func (w *Wallet) OnBlockchainDetach(height uint32) {
	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}
		w.truncateBlockchain(height)
	})
}

// OnSynchronizationProgressUpdated implements txsync.Observer.
func (w *Wallet) OnSynchronizationProgressUpdated(processed, total uint32) {
	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}

		w.pushEvent(Event{
			Type:                EventSyncProgressUpdated,
			ProcessedBlockCount: processed,
			TotalBlockCount:     total,
		})

		// The last processed block may have matured pending outputs.
		w.unlockBalances(processed - 1)
	})
}

// OnSynchronizationCompleted implements txsync.Observer.
func (w *Wallet) OnSynchronizationCompleted() {
	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}
		w.pushEvent(Event{Type: EventSyncCompleted})
	})
}

// OnTransactionUpdated implements txsync.Observer.  The per-container
// amounts are gathered synchronously, while the containers are guaranteed to
// still hold the transaction, and the journal work is posted to the
// dispatcher.
func (w *Wallet) OnTransactionUpdated(hash chainhash.Hash,
	containers []txsync.TransfersContainer) {

	var (
		info    txsync.TransactionInformation
		found   bool
		amounts []containerAmounts
	)
	for _, container := range containers {
		containerInfo, in, out, ok := container.TransactionInformation(hash)
		if !ok {
			log.Warnf("Container reported transaction %v it does "+
				"not know", hash)
			continue
		}

		info = containerInfo
		found = true
		amounts = append(amounts, containerAmounts{
			container: container,
			input:     -int64(in),
			output:    int64(out),
		})
	}
	if !found {
		return
	}

	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}
		w.transactionUpdated(&info, amounts)
	})
}

// OnTransactionDeleted implements txsync.Observer.
func (w *Wallet) OnTransactionDeleted(hash chainhash.Hash,
	container txsync.TransfersContainer) {

	w.post(func() {
		w.mtx.Lock()
		defer w.mtx.Unlock()

		if w.state == stateNotInitialized {
			return
		}
		w.transactionDeleted(hash, container)
	})
}

// transactionUpdated reconciles the journal, the balances, and the unlock
// scheduler with a container notification.  The cooperative lock must be
// held.
func (w *Wallet) transactionUpdated(info *txsync.TransactionInformation,
	amounts []containerAmounts) {

	var totalAmount int64
	for _, ca := range amounts {
		totalAmount += ca.input + ca.output
	}

	var (
		index   int
		isNew   bool
		updated bool
	)
	if existing, ok := w.txStore.IndexByHash(&info.Hash); ok {
		index = existing
		metaUpdated, err := w.txStore.UpdateMeta(index, info, totalAmount)
		if err != nil {
			log.Errorf("Unable to update transaction %v: %v",
				info.Hash, err)
			return
		}
		updated = metaUpdated
	} else {
		isNew = true
		inserted, err := w.txStore.InsertConfirmed(info, totalAmount)
		if err != nil {
			log.Errorf("Unable to insert transaction %v: %v",
				info.Hash, err)
			return
		}
		index = inserted
	}

	confirmed := info.BlockHeight != wtxmgr.UnconfirmedHeight
	if confirmed {
		// A created transaction observed in a block no longer awaits
		// commit.
		delete(w.pending, index)
	}

	for _, ca := range amounts {
		w.updateBalance(ca.container)

		if confirmed {
			unlockHeight := info.BlockHeight + w.cfg.TransactionSoftLockTime
			if uint64(unlockHeight) < info.UnlockTime {
				unlockHeight = uint32(info.UnlockTime)
			}

			rec := w.recordByContainer(ca.container)
			if rec != nil {
				w.unlocks.Insert(wtxmgr.UnlockJob{
					Height:      unlockHeight,
					ContainerID: rec.ContainerID,
					Hash:        info.Hash,
				})
			}
		}
	}

	transfersUpdated := w.updateTransactionTransfers(index, amounts,
		-int64(info.TotalAmountIn), int64(info.TotalAmountOut))
	updated = updated || transfersUpdated

	switch {
	case isNew:
		w.pushEvent(Event{
			Type:             EventTransactionCreated,
			TransactionIndex: index,
		})
	case updated:
		w.pushEvent(Event{
			Type:             EventTransactionUpdated,
			TransactionIndex: index,
		})
	}
}

// transactionDeleted handles a pool eviction or un-mining of a transaction.
// The cooperative lock must be held.
func (w *Wallet) transactionDeleted(hash chainhash.Hash,
	container txsync.TransfersContainer) {

	index, ok := w.txStore.IndexByHash(&hash)
	if !ok {
		return
	}

	w.updateBalance(container)
	w.unlocks.RemoveByHash(&hash)

	updated, err := w.txStore.MarkCancelled(index)
	if err != nil {
		log.Errorf("Unable to cancel transaction %v: %v", hash, err)
		return
	}
	if updated {
		w.pushEvent(Event{
			Type:             EventTransactionUpdated,
			TransactionIndex: index,
		})
	}
}

// unlockBalances drains matured unlock jobs and refreshes the touched
// containers.  The cooperative lock must be held.
func (w *Wallet) unlockBalances(height uint32) {
	jobs := w.unlocks.PopThrough(height)
	if len(jobs) == 0 {
		return
	}

	for _, job := range jobs {
		if rec, ok := w.keys.ByContainer(job.ContainerID); ok {
			w.updateBalance(rec.Container)
		}
	}

	log.Debugf("Unlocked %d job(s) through height %d", len(jobs), height)
	w.pushEvent(Event{Type: EventBalanceUnlocked})
}

// updateTransactionTransfers rewrites a record's transfer legs so they agree
// with the per-container amounts, attributing anything beyond the owned
// addresses to the anonymous counterparty rows.  The cooperative lock must
// be held.
func (w *Wallet) updateTransactionTransfers(index int,
	amounts []containerAmounts, allInputs, allOutputs int64) bool {

	updated := false

	initial := w.txStore.KnownTransfersMap(index)

	myInputAddresses := make(map[string]struct{})
	myOutputAddresses := make(map[string]struct{})
	var myInputs, myOutputs int64
	for _, ca := range amounts {
		rec := w.recordByContainer(ca.container)
		if rec == nil {
			continue
		}
		address := w.addressString(rec)

		if w.updateAddressTransfers(index, address,
			initial[address].Input, ca.input) {

			updated = true
		}
		if w.updateAddressTransfers(index, address,
			initial[address].Output, ca.output) {

			updated = true
		}

		myInputs += ca.input
		myOutputs += ca.output
		if ca.input != 0 {
			myInputAddresses[address] = struct{}{}
		}
		if ca.output != 0 {
			myOutputAddresses[address] = struct{}{}
		}
	}

	var knownInputs, knownOutputs int64
	for _, inOut := range w.txStore.KnownTransfersMap(index) {
		knownInputs += inOut.Input
		knownOutputs += inOut.Output
	}

	if w.updateUnknownTransfers(index, myInputAddresses, knownInputs,
		myInputs, allInputs, false) {

		updated = true
	}
	if w.updateUnknownTransfers(index, myOutputAddresses, knownOutputs,
		myOutputs, allOutputs, true) {

		updated = true
	}

	return updated
}

// updateAddressTransfers brings one address' same-sign transfer rows from
// knownAmount to targetAmount.  The cooperative lock must be held.
func (w *Wallet) updateAddressTransfers(index int, address string,
	knownAmount, targetAmount int64) bool {

	if knownAmount == targetAmount {
		return false
	}

	switch {
	case knownAmount == 0:
		w.txStore.AppendTransfer(index, address, targetAmount)
		return true

	case targetAmount == 0:
		return w.txStore.EraseTransfersByAddress(index, address,
			knownAmount > 0)

	default:
		return w.txStore.AdjustTransfer(index, address, targetAmount)
	}
}

// updateUnknownTransfers reconciles the anonymous counterparty row of one
// sign with the declared transaction totals.  The cooperative lock must be
// held.
func (w *Wallet) updateUnknownTransfers(index int,
	myAddresses map[string]struct{}, knownAmount, myAmount,
	totalAmount int64, isOutput bool) bool {

	updated := false

	if abs64(knownAmount) > abs64(totalAmount) {
		// More attributed than the transaction declares: stale rows
		// of foreign addresses must go.
		if w.txStore.EraseForeignTransfers(index, myAddresses, isOutput) {
			updated = true
		}
		if totalAmount == myAmount {
			if w.txStore.EraseTransfersByAddress(index, "", isOutput) {
				updated = true
			}
		} else {
			if w.txStore.AdjustTransfer(index, "",
				totalAmount-myAmount) {

				updated = true
			}
		}
	} else if knownAmount == totalAmount {
		if w.txStore.EraseTransfersByAddress(index, "", isOutput) {
			updated = true
		}
	} else {
		if w.txStore.AdjustTransfer(index, "", totalAmount-knownAmount) {
			updated = true
		}
	}

	return updated
}

// abs64 returns the absolute value of a signed amount.
func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
