// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/keystore"
	"github.com/DCL2019/cash2/txsync"
)

// CreateAddress mints a fresh spend key pair and adds its address.
func (w *Wallet) CreateAddress() (string, error) {
	spendPub, spendSec, err := w.cfg.KeyGenerator.GenerateKeys()
	if err != nil {
		return "", walletError(ErrKeyGeneration,
			"unable to generate spend keys", err)
	}

	creationTime := uint64(w.clock.Now().Unix())

	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.doCreateAddress(spendPub, spendSec, creationTime)
}

// CreateAddressFromSecretKey adds the address of an imported spend secret
// key.  The synchronization start is left open so history is recovered.
func (w *Wallet) CreateAddressFromSecretKey(spendSecretKey cnutil.SecretKey) (string, error) {
	spendPub, err := w.cfg.KeyGenerator.PublicFromSecret(&spendSecretKey)
	if err != nil {
		return "", walletError(ErrKeyGeneration,
			"unable to derive spend public key", err)
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.doCreateAddress(spendPub, spendSecretKey, 0)
}

// CreateAddressFromPublicKey adds a tracking address.
func (w *Wallet) CreateAddressFromPublicKey(spendPublicKey cnutil.PublicKey) (string, error) {
	if !w.cfg.KeyGenerator.CheckKey(spendPublicKey) {
		return "", walletError(ErrWrongParameters,
			"wrong public key format", nil)
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.doCreateAddress(spendPublicKey, cnutil.SecretKey{}, 0)
}

// doCreateAddress adds a spend record and, when its creation timestamp lies
// far enough in the past, rewinds synchronization by cycling the wallet
// state through an in-memory snapshot.  The cooperative lock must be held.
func (w *Wallet) doCreateAddress(spendPub cnutil.PublicKey,
	spendSec cnutil.SecretKey, creationTime uint64) (string, error) {

	if err := w.checkInitialized(); err != nil {
		return "", err
	}
	if err := w.checkNotStopped(); err != nil {
		return "", err
	}

	w.stopSynchronizer()
	defer w.startSynchronizer()

	address, err := w.addWallet(spendPub, spendSec, creationTime)
	if err != nil {
		return "", err
	}

	// An address created far in the past requires a rescan from its
	// creation point: snapshot, tear down, and reload so every
	// subscription restarts from the rewound timestamp.
	now := uint64(w.clock.Now().Unix())
	if creationTime+w.cfg.Currency.BlockFutureTimeLimit < now {
		password := w.password

		var snapshot bytes.Buffer
		if err := w.save(&snapshot, true, false); err != nil {
			return "", err
		}
		w.doShutdown()
		if err := w.load(&snapshot, password); err != nil {
			return "", err
		}
	}

	return address, nil
}

// addWallet registers the subscription and the spend record.  The
// cooperative lock must be held.
func (w *Wallet) addWallet(spendPub cnutil.PublicKey, spendSec cnutil.SecretKey,
	creationTime uint64) (string, error) {

	// The mode discipline is checked up front so no subscription is
	// created for a record that cannot be added.
	mode := w.keys.Mode()
	tracking := spendSec.IsNull()
	if (mode == keystore.ModeTracking && !tracking) ||
		(mode == keystore.ModeSpending && tracking) {

		return "", walletError(ErrBadAddress,
			"tracking and spending addresses cannot be mixed", nil)
	}
	if w.keys.Contains(spendPub) {
		return "", walletError(ErrAddressAlreadyExists,
			fmt.Sprintf("address for spend key %v already exists",
				spendPub), nil)
	}

	syncTimestamp := uint64(0)
	if creationTime > w.cfg.Currency.AccountCreateTimeAccuracy {
		syncTimestamp = creationTime -
			w.cfg.Currency.AccountCreateTimeAccuracy
	}

	viewKeys := w.keys.ViewKeys()
	container, err := w.cfg.Synchronizer.AddSubscription(txsync.Subscription{
		Keys: txsync.AccountKeys{
			Address: cnutil.AccountAddress{
				SpendPublicKey: spendPub,
				ViewPublicKey:  viewKeys.Public,
			},
			ViewSecretKey:  viewKeys.Secret,
			SpendSecretKey: spendSec,
		},
		SyncStart: txsync.SyncStart{
			Height:    0,
			Timestamp: syncTimestamp,
		},
		TransactionSpendableAge: w.cfg.TransactionSoftLockTime,
	})
	if err != nil {
		return "", walletError(ErrInternal,
			"unable to subscribe address", err)
	}

	rec, err := w.keys.Add(spendPub, spendSec, creationTime, container)
	if err != nil {
		if rmErr := w.cfg.Synchronizer.RemoveSubscription(cnutil.AccountAddress{
			SpendPublicKey: spendPub,
			ViewPublicKey:  viewKeys.Public,
		}); rmErr != nil {
			log.Warnf("Unable to undo subscription: %v", rmErr)
		}
		return "", walletError(ErrInternal,
			"unable to add spend record", err)
	}

	if w.keys.Count() == 1 {
		w.setBlockchain(w.cfg.Synchronizer.ViewKeyKnownBlocks(
			viewKeys.Public))
	}

	return w.addressString(rec), nil
}

// DeleteAddress removes an owned address, its subscription, its unlock jobs,
// and every transfer attributed to it.
func (w *Wallet) DeleteAddress(address string) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return err
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	parsed, err := w.parseAddress(address)
	if err != nil {
		return err
	}
	rec, err := w.keys.Get(parsed.SpendPublicKey)
	if err != nil {
		return walletError(ErrObjectNotFound,
			fmt.Sprintf("address %q does not belong to the wallet",
				address), err)
	}

	w.stopSynchronizer()

	w.actualBalance -= rec.ActualBalance
	w.pendingBalance -= rec.PendingBalance

	if err := w.cfg.Synchronizer.RemoveSubscription(parsed); err != nil {
		log.Warnf("Unable to remove subscription of %q: %v", address, err)
	}

	w.unlocks.RemoveByContainer(rec.ContainerID)

	if _, err := w.keys.Remove(parsed.SpendPublicKey); err != nil {
		return walletError(ErrInternal, "unable to remove record", err)
	}

	// Rewrite transfers now that the address is foreign.
	updated, deleted := w.txStore.DeleteAddressTransfers(address,
		w.isMyAddress)
	for _, index := range deleted {
		delete(w.pending, index)
	}

	if w.keys.Count() != 0 {
		w.startSynchronizer()
	} else {
		w.resetBlockchain()
	}

	for _, index := range updated {
		w.pushEvent(Event{
			Type:             EventTransactionUpdated,
			TransactionIndex: index,
		})
	}

	return nil
}
