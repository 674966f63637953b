// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/wtxmgr"
)

// Transfer builds, persists, and immediately relays a transaction.  It
// returns the journal index and the transaction secret key.
func (w *Wallet) Transfer(params *TransactionParameters) (int, cnutil.SecretKey, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return 0, cnutil.SecretKey{}, err
	}

	index, err := w.doTransfer(params, true)
	if err != nil {
		return 0, cnutil.SecretKey{}, err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil || rec.SecretKey == nil {
		return index, cnutil.SecretKey{}, nil
	}
	return index, *rec.SecretKey, nil
}

// MakeTransaction builds and persists a transaction without relaying it.
// The result stays in the created state until CommitTransaction or
// RollbackUncommittedTransaction.
func (w *Wallet) MakeTransaction(params *TransactionParameters) (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return 0, err
	}

	return w.doTransfer(params, false)
}

// doTransfer runs the full construction pipeline.  The cooperative lock must
// be held.
func (w *Wallet) doTransfer(params *TransactionParameters, send bool) (int, error) {
	if err := w.validateTransactionParameters(params); err != nil {
		return 0, err
	}

	changeDestination, err := w.changeDestination(params.ChangeDestination,
		params.SourceAddresses)
	if err != nil {
		return 0, err
	}

	var wallets []walletOuts
	if len(params.SourceAddresses) != 0 {
		wallets, err = w.pickWallets(params.SourceAddresses)
		if err != nil {
			return 0, err
		}
	} else {
		wallets = w.pickWalletsWithMoney()
	}

	prepared, err := w.prepareTransaction(wallets, params.Destinations,
		params.Fee, params.Mixin, params.Extra, params.UnlockTimestamp,
		params.Donation, changeDestination)
	if err != nil {
		return 0, err
	}

	return w.validateSaveAndSendTransaction(prepared.tx,
		prepared.destinations, false, send)
}

// CommitTransaction relays a previously created transaction.  On success the
// record moves to the succeeded state and leaves the pending table; on
// failure it stays created so the caller may retry or roll back.
func (w *Wallet) CommitTransaction(index int) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil {
		return walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}

	pending, isPending := w.pending[index]
	if !isPending || rec.State != wtxmgr.TxCreated {
		return walletError(ErrTransferImpossible,
			fmt.Sprintf("transaction %d is not awaiting commit",
				index), nil)
	}

	if err := w.sendTransaction(pending.blob); err != nil {
		return err
	}

	w.updateTransactionStateAndPushEvent(index, wtxmgr.TxSucceeded)
	delete(w.pending, index)
	return nil
}

// RollbackUncommittedTransaction withdraws a created transaction from the
// synchronizer and drops its pending blob.  The journal entry remains; the
// synchronizer's deletion callback marks it cancelled.
func (w *Wallet) RollbackUncommittedTransaction(index int) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil {
		return walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}

	pending, isPending := w.pending[index]
	if !isPending || rec.State != wtxmgr.TxCreated {
		return walletError(ErrCancelImpossible,
			fmt.Sprintf("transaction %d cannot be rolled back",
				index), nil)
	}

	if err := w.removeUnconfirmedTransaction(&pending.hash); err != nil {
		return err
	}
	delete(w.pending, index)
	return nil
}

// validateSaveAndSendTransaction checks policy limits, persists the
// transaction as created, registers it with the synchronizer, and either
// relays it or parks it in the pending table.  Every step unwinds on a later
// failure.  The cooperative lock must be held.
func (w *Wallet) validateSaveAndSendTransaction(tx TxBuilder,
	destinations []wtxmgr.Transfer, isFusion, send bool) (int, error) {

	blob, err := tx.Bytes()
	if err != nil {
		return 0, walletError(ErrInternal,
			"unable to serialize created transaction", err)
	}

	if uint64(len(blob)) > w.upperTxSizeLimit {
		return 0, walletError(ErrTransactionSizeTooBig,
			fmt.Sprintf("transaction of %d bytes exceeds limit %d",
				len(blob), w.upperTxSizeLimit), nil)
	}

	if len(tx.Extra()) > w.cfg.Currency.MaxTxExtraSize {
		return 0, walletError(ErrExtraTooLarge,
			fmt.Sprintf("transaction extra of %d bytes exceeds "+
				"limit %d", len(tx.Extra()),
				w.cfg.Currency.MaxTxExtraSize), nil)
	}

	fee := tx.InputTotal() - tx.OutputTotal()
	hash := tx.Hash()
	secretKey := tx.SecretKey()

	index, err := w.txStore.InsertPending(&hash, fee, tx.Extra(),
		tx.UnlockTime(), &secretKey)
	if err != nil {
		return 0, walletError(ErrInternal,
			"unable to record created transaction", err)
	}
	w.pushEvent(Event{
		Type:             EventTransactionCreated,
		TransactionIndex: index,
	})

	w.fusionCache[index] = isFusion
	w.txStore.AppendOutgoingTransfers(index, destinations)

	// From here on every failure marks the record failed so the journal
	// keeps the attempt visible.
	if err := w.addUnconfirmedTransaction(&hash, blob); err != nil {
		w.updateTransactionStateAndPushEvent(index, wtxmgr.TxFailed)
		return 0, err
	}

	if send {
		if err := w.sendTransaction(blob); err != nil {
			w.removeUnconfirmedTransactionNoFail(&hash)
			w.updateTransactionStateAndPushEvent(index, wtxmgr.TxFailed)
			return 0, err
		}
		w.updateTransactionStateAndPushEvent(index, wtxmgr.TxSucceeded)
	} else {
		w.pending[index] = pendingTx{hash: hash, blob: blob}
	}

	return index, nil
}

// addUnconfirmedTransaction registers an outgoing transaction with the
// synchronizer so its outputs are recognized before confirmation.
func (w *Wallet) addUnconfirmedTransaction(hash *chainhash.Hash, blob []byte) error {
	if err := w.cfg.Synchronizer.AddUnconfirmedTransaction(*hash, blob); err != nil {
		return walletError(ErrInternal,
			"unable to register unconfirmed transaction", err)
	}
	return nil
}

// removeUnconfirmedTransaction withdraws an outgoing transaction from the
// synchronizer.
func (w *Wallet) removeUnconfirmedTransaction(hash *chainhash.Hash) error {
	if err := w.cfg.Synchronizer.RemoveUnconfirmedTransaction(*hash); err != nil {
		return walletError(ErrInternal,
			"unable to remove unconfirmed transaction", err)
	}
	return nil
}

// removeUnconfirmedTransactionNoFail is the undo variant: a failure leaves
// the transaction tracked as unconfirmed and it is dropped during the next
// pool synchronization.
func (w *Wallet) removeUnconfirmedTransactionNoFail(hash *chainhash.Hash) {
	if err := w.removeUnconfirmedTransaction(hash); err != nil {
		log.Warnf("Unable to withdraw unconfirmed transaction %v: %v",
			hash, err)
	}
}

// sendTransaction relays a serialized transaction and waits for the node's
// verdict.  The cooperative lock is held across the round-trip.
func (w *Wallet) sendTransaction(blob []byte) error {
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	done := make(chan error, 1)
	w.cfg.Node.RelayTransaction(blob, func(err error) {
		done <- err
	})

	if err := <-done; err != nil {
		return walletError(ErrInternal, "transaction relay failed", err)
	}
	return nil
}
