// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore owns the wallet's view identity and its ordered set of
// spend records.  Every record shares the single view key pair; a record
// without a spend secret key makes the whole store a tracking (watch-only)
// store, and the two kinds never mix.
package keystore

import (
	"fmt"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/txsync"
)

// Mode describes what kind of spend records a store holds.
type Mode uint8

const (
	// ModeNoAddresses is the mode of an empty store.
	ModeNoAddresses Mode = iota

	// ModeSpending holds full key pairs.
	ModeSpending

	// ModeTracking holds public spend keys only.
	ModeTracking
)

// SpendRecord is one owned address.  Balances are caches maintained by the
// wallet's balance view; the container remains the source of truth.
type SpendRecord struct {
	SpendPublicKey cnutil.PublicKey
	SpendSecretKey cnutil.SecretKey

	// ContainerID is the opaque registry handle of the record's transfers
	// container.
	ContainerID uint64

	// Container is the synchronizer-owned output set of this address.
	Container txsync.TransfersContainer

	ActualBalance  uint64
	PendingBalance uint64
	CreationTime   uint64
}

// KeyStore resolves addresses to spend records.  It is not safe for
// concurrent use; the wallet serializes access through its dispatcher.
type KeyStore struct {
	viewKeys cnutil.KeyPair

	records     []*SpendRecord
	byKey       map[cnutil.PublicKey]*SpendRecord
	byContainer map[uint64]*SpendRecord

	nextContainerID uint64
}

// New creates an empty store bound to the wallet's view identity.
func New(viewKeys cnutil.KeyPair) *KeyStore {
	return &KeyStore{
		viewKeys:    viewKeys,
		byKey:       make(map[cnutil.PublicKey]*SpendRecord),
		byContainer: make(map[uint64]*SpendRecord),
	}
}

// ViewKeys returns the wallet's view key pair.
func (ks *KeyStore) ViewKeys() cnutil.KeyPair {
	return ks.viewKeys
}

// Mode returns the store's tracking mode, determined by the first record.
func (ks *KeyStore) Mode() Mode {
	if len(ks.records) == 0 {
		return ModeNoAddresses
	}
	if ks.records[0].SpendSecretKey.IsNull() {
		return ModeTracking
	}
	return ModeSpending
}

// Count returns the number of records.
func (ks *KeyStore) Count() int {
	return len(ks.records)
}

// At returns the record at the given position in creation order.
func (ks *KeyStore) At(index int) (*SpendRecord, error) {
	if index < 0 || index >= len(ks.records) {
		return nil, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("record index %d out of range", index))
	}
	return ks.records[index], nil
}

// Get returns the record with the given spend public key.
func (ks *KeyStore) Get(spendPublicKey cnutil.PublicKey) (*SpendRecord, error) {
	rec, ok := ks.byKey[spendPublicKey]
	if !ok {
		return nil, storeError(ErrNotFound,
			fmt.Sprintf("no record for spend key %v", spendPublicKey))
	}
	return rec, nil
}

// Contains reports whether a record with the given spend public key exists.
func (ks *KeyStore) Contains(spendPublicKey cnutil.PublicKey) bool {
	_, ok := ks.byKey[spendPublicKey]
	return ok
}

// ByContainer returns the record owning the given container handle.
func (ks *KeyStore) ByContainer(containerID uint64) (*SpendRecord, bool) {
	rec, ok := ks.byContainer[containerID]
	return rec, ok
}

// Records returns the records in creation order.  The returned slice is
// shared; callers must not modify it.
func (ks *KeyStore) Records() []*SpendRecord {
	return ks.records
}

// Add creates a record for the given spend keys and registers its container
// under a fresh handle.  A null secret key adds a tracking record.
func (ks *KeyStore) Add(spendPublicKey cnutil.PublicKey,
	spendSecretKey cnutil.SecretKey, creationTime uint64,
	container txsync.TransfersContainer) (*SpendRecord, error) {

	mode := ks.Mode()
	tracking := spendSecretKey.IsNull()
	if (mode == ModeTracking && !tracking) ||
		(mode == ModeSpending && tracking) {

		return nil, storeError(ErrModeMismatch,
			"tracking and spending records cannot be mixed")
	}

	if _, ok := ks.byKey[spendPublicKey]; ok {
		return nil, storeError(ErrDuplicateKey,
			fmt.Sprintf("record for spend key %v already exists",
				spendPublicKey))
	}

	ks.nextContainerID++
	rec := &SpendRecord{
		SpendPublicKey: spendPublicKey,
		SpendSecretKey: spendSecretKey,
		ContainerID:    ks.nextContainerID,
		Container:      container,
		CreationTime:   creationTime,
	}

	ks.records = append(ks.records, rec)
	ks.byKey[spendPublicKey] = rec
	ks.byContainer[rec.ContainerID] = rec
	return rec, nil
}

// Remove drops the record with the given spend public key and returns it.
func (ks *KeyStore) Remove(spendPublicKey cnutil.PublicKey) (*SpendRecord, error) {
	rec, ok := ks.byKey[spendPublicKey]
	if !ok {
		return nil, storeError(ErrNotFound,
			fmt.Sprintf("no record for spend key %v", spendPublicKey))
	}

	for i, r := range ks.records {
		if r == rec {
			ks.records = append(ks.records[:i], ks.records[i+1:]...)
			break
		}
	}
	delete(ks.byKey, spendPublicKey)
	delete(ks.byContainer, rec.ContainerID)
	return rec, nil
}

// Clear wipes every record's secret key and empties the store.
func (ks *KeyStore) Clear() {
	for _, rec := range ks.records {
		rec.SpendSecretKey.Zero()
	}
	ks.records = nil
	ks.byKey = make(map[cnutil.PublicKey]*SpendRecord)
	ks.byContainer = make(map[uint64]*SpendRecord)
}
