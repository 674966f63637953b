// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the multi-address wallet core: transaction
// construction, balance tracking, and synchronization coordination over an
// external node and blockchain synchronizer.
//
// All wallet state is guarded by a single cooperative lock and mutated
// either by API calls or by synchronizer callbacks re-posted onto the
// wallet's dispatcher goroutine, so at most one mutating operation runs at a
// time.
package wallet

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/queue"

	"github.com/DCL2019/cash2/chain"
	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/currency"
	"github.com/DCL2019/cash2/keystore"
	"github.com/DCL2019/cash2/txsync"
	"github.com/DCL2019/cash2/wtxmgr"
)

// walletState is the lifecycle state of the wallet.
type walletState uint8

const (
	stateNotInitialized walletState = iota
	stateInitialized
)

// Config bundles the external collaborators and parameters of a wallet.
type Config struct {
	// Currency is the read-only currency parameter table.
	Currency *currency.Currency

	// Node is the full node the wallet requests mixins from and relays
	// transactions through.
	Node chain.Node

	// Synchronizer streams owned outputs and spends into per-address
	// containers.
	Synchronizer txsync.Synchronizer

	// KeyGenerator supplies the curve primitives for key creation.
	KeyGenerator cnutil.KeyGenerator

	// TxFactory mints transaction builders.
	TxFactory TxFactory

	// TransactionSoftLockTime is the wallet's additional confirmation
	// requirement in blocks before received outputs become spendable.
	TransactionSoftLockTime uint32

	// Clock supplies timestamps; nil falls back to the wall clock.
	Clock clock.Clock
}

// pendingTx is a created transaction awaiting relay.
type pendingTx struct {
	hash chainhash.Hash
	blob []byte
}

// containerAmounts carries one container's signed view of a transaction.
type containerAmounts struct {
	container txsync.TransfersContainer
	input     int64
	output    int64
}

// TransactionWithTransfers couples a journal record with its transfer legs.
type TransactionWithTransfers struct {
	Transaction wtxmgr.TxRecord
	Transfers   []wtxmgr.Transfer
}

// TransactionsInBlockInfo lists the successful transactions of one block.
type TransactionsInBlockInfo struct {
	BlockHash    chainhash.Hash
	Transactions []TransactionWithTransfers
}

// Wallet is the engine coordinating the key store, the transaction journal,
// the balance caches, and the synchronizer.
type Wallet struct {
	cfg   Config
	clock clock.Clock

	// mtx is the cooperative lock serializing every mutating operation.
	// It is held across node round-trips, exactly like the source's ready
	// event, so synchronizer work queued meanwhile runs afterwards.
	mtx sync.Mutex

	state    walletState
	password string

	keys    *keystore.KeyStore
	txStore *wtxmgr.Store
	unlocks *wtxmgr.UnlockScheduler

	// pending maps a CREATED record's index to its serialized blob.
	pending map[int]pendingTx

	// fusionCache memoizes fusion classification per record index.
	fusionCache map[int]bool

	// blockchain is the ordered list of seen block hashes; element 0 is
	// the genesis hash whenever the wallet is initialized.
	blockchain   []chainhash.Hash
	blockIndexes map[chainhash.Hash]uint32

	actualBalance  uint64
	pendingBalance uint64

	upperTxSizeLimit uint64
	syncStarted      bool

	rng *rand.Rand

	// stopMtx guards the stop flag and its wake channel so Stop never
	// waits behind the cooperative lock.
	stopMtx  sync.Mutex
	stopped  bool
	stopChan chan struct{}

	eventQueue *queue.ConcurrentQueue

	// tasks is the dispatcher feed: synchronizer callbacks are posted
	// here and drained by a single goroutine.
	tasks        *queue.ConcurrentQueue
	dispatchQuit chan struct{}
	wg           sync.WaitGroup
}

// New creates a wallet and starts its dispatcher.  The wallet is not usable
// until Initialize, InitializeWithViewKey, or Load succeeds.
func New(cfg Config) (*Wallet, error) {
	if cfg.Currency == nil || cfg.Node == nil || cfg.Synchronizer == nil ||
		cfg.KeyGenerator == nil || cfg.TxFactory == nil {

		return nil, walletError(ErrWrongParameters,
			"currency, node, synchronizer, key generator and tx "+
				"factory are required", nil)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	w := &Wallet{
		cfg:          cfg,
		clock:        clk,
		stopChan:     make(chan struct{}),
		eventQueue:   queue.NewConcurrentQueue(16),
		tasks:        queue.NewConcurrentQueue(16),
		dispatchQuit: make(chan struct{}),
		rng:          cryptoSeededRand(),
	}
	w.upperTxSizeLimit = cfg.Currency.BlockGrantedFullRewardZone*2 -
		cfg.Currency.MinerTxBlobReservedSize

	w.eventQueue.Start()
	w.tasks.Start()
	w.wg.Add(1)
	go w.dispatcher()

	return w, nil
}

// cryptoSeededRand returns a math/rand generator seeded from the system
// CSPRNG, as required for output shuffling.
func cryptoSeededRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("unable to seed rng: %v", err))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

// dispatcher drains posted synchronizer work.  Each task acquires the
// cooperative lock itself.
func (w *Wallet) dispatcher() {
	defer w.wg.Done()

	for {
		select {
		case task, ok := <-w.tasks.ChanOut():
			if !ok {
				return
			}
			task.(func())()

		case <-w.dispatchQuit:
			return
		}
	}
}

// post queues work onto the dispatcher.
func (w *Wallet) post(task func()) {
	select {
	case <-w.dispatchQuit:
	default:
		w.tasks.ChanIn() <- task
	}
}

// Close terminates the dispatcher and the event queue.  The wallet must not
// be used afterwards.
func (w *Wallet) Close() {
	close(w.dispatchQuit)
	w.tasks.Stop()
	w.eventQueue.Stop()
	w.wg.Wait()
}

// Initialize creates a fresh view identity and makes the wallet usable.
func (w *Wallet) Initialize(password string) error {
	viewPub, viewSec, err := w.cfg.KeyGenerator.GenerateKeys()
	if err != nil {
		return walletError(ErrKeyGeneration,
			"unable to generate view keys", err)
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.initWithKeys(viewPub, viewSec, password)
}

// InitializeWithViewKey derives the view public key from the passed secret
// and makes the wallet usable.
func (w *Wallet) InitializeWithViewKey(viewSecretKey cnutil.SecretKey,
	password string) error {

	viewPub, err := w.cfg.KeyGenerator.PublicFromSecret(&viewSecretKey)
	if err != nil {
		return walletError(ErrKeyGeneration,
			"unable to derive view public key", err)
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.initWithKeys(viewPub, viewSecretKey, password)
}

// initWithKeys installs the view identity.  The cooperative lock must be
// held.
func (w *Wallet) initWithKeys(viewPub cnutil.PublicKey,
	viewSec cnutil.SecretKey, password string) error {

	if w.state != stateNotInitialized {
		return walletError(ErrAlreadyInitialized,
			"wallet is already initialized", nil)
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	w.keys = keystore.New(cnutil.KeyPair{Public: viewPub, Secret: viewSec})
	w.txStore = wtxmgr.New(w.clock)
	w.unlocks = wtxmgr.NewUnlockScheduler()
	w.pending = make(map[int]pendingTx)
	w.fusionCache = make(map[int]bool)
	w.password = password
	w.resetBlockchain()

	w.cfg.Synchronizer.SetObserver(w)
	w.state = stateInitialized

	log.Infof("Wallet initialized with view key %v", viewPub)
	return nil
}

// Shutdown tears the wallet down to the uninitialized state.
func (w *Wallet) Shutdown() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return err
	}

	w.doShutdown()
	return nil
}

// doShutdown clears every cache and detaches from the synchronizer.  The
// cooperative lock must be held.
func (w *Wallet) doShutdown() {
	w.stopSynchronizer()
	w.cfg.Synchronizer.SetObserver(nil)

	for _, address := range w.cfg.Synchronizer.Subscriptions() {
		if err := w.cfg.Synchronizer.RemoveSubscription(address); err != nil {
			log.Warnf("Unable to remove subscription: %v", err)
		}
	}

	w.keys.Clear()
	w.txStore = wtxmgr.New(w.clock)
	w.unlocks = wtxmgr.NewUnlockScheduler()
	w.pending = make(map[int]pendingTx)
	w.fusionCache = make(map[int]bool)
	w.blockchain = nil
	w.blockIndexes = nil
	w.actualBalance = 0
	w.pendingBalance = 0

	// Drop queued events.
	w.eventQueue.Stop()
	w.eventQueue = queue.NewConcurrentQueue(16)
	w.eventQueue.Start()

	w.state = stateNotInitialized
}

// Start clears the stop flag set by a previous Stop.
func (w *Wallet) Start() {
	w.stopMtx.Lock()
	defer w.stopMtx.Unlock()

	if w.stopped {
		w.stopped = false
		w.stopChan = make(chan struct{})
	}
}

// Stop makes every pending and subsequent API call fail with
// ErrOperationCancelled and wakes a blocked GetEvent.
func (w *Wallet) Stop() {
	w.stopMtx.Lock()
	defer w.stopMtx.Unlock()

	if !w.stopped {
		w.stopped = true
		close(w.stopChan)
	}
}

// stopSignal returns the channel closed by Stop.
func (w *Wallet) stopSignal() <-chan struct{} {
	w.stopMtx.Lock()
	defer w.stopMtx.Unlock()
	return w.stopChan
}

// isStopped reports whether Stop was called without a newer Start.
func (w *Wallet) isStopped() bool {
	w.stopMtx.Lock()
	defer w.stopMtx.Unlock()
	return w.stopped
}

// ChangePassword swaps the wallet password.
func (w *Wallet) ChangePassword(oldPassword, newPassword string) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return err
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	if w.password != oldPassword {
		return walletError(ErrWrongPassword, "wrong password", nil)
	}

	w.password = newPassword
	return nil
}

// checkInitialized returns an error unless the wallet is initialized.  The
// cooperative lock must be held.
func (w *Wallet) checkInitialized() error {
	if w.state != stateInitialized {
		return walletError(ErrNotInitialized,
			"wallet is not initialized", nil)
	}
	return nil
}

// checkNotStopped returns an error if the wallet was stopped.
func (w *Wallet) checkNotStopped() error {
	if w.isStopped() {
		return walletError(ErrOperationCancelled,
			"wallet was stopped", nil)
	}
	return nil
}

// checkNotTracking returns an error if the wallet holds tracking records.
func (w *Wallet) checkNotTracking() error {
	if w.keys.Mode() == keystore.ModeTracking {
		return walletError(ErrTrackingMode,
			"operation requires spend secret keys", nil)
	}
	return nil
}

// checkGates runs the three standard mutator gates.  The cooperative lock
// must be held.
func (w *Wallet) checkGates(spending bool) error {
	if err := w.checkInitialized(); err != nil {
		return err
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}
	if spending {
		return w.checkNotTracking()
	}
	return nil
}

// startSynchronizer starts block streaming if there is anything to scan.
// The cooperative lock must be held.
func (w *Wallet) startSynchronizer() {
	if w.keys.Count() != 0 && !w.syncStarted {
		w.cfg.Synchronizer.Start()
		w.syncStarted = true
	}
}

// stopSynchronizer stops block streaming.  The cooperative lock must be
// held.
func (w *Wallet) stopSynchronizer() {
	if w.syncStarted {
		w.cfg.Synchronizer.Stop()
		w.syncStarted = false
	}
}

// resetBlockchain re-seeds the block hash chain with the genesis hash.
func (w *Wallet) resetBlockchain() {
	genesis := w.cfg.Currency.GenesisBlockHash
	w.blockchain = []chainhash.Hash{genesis}
	w.blockIndexes = map[chainhash.Hash]uint32{genesis: 0}
}

// appendBlockHashes extends the block hash chain.
func (w *Wallet) appendBlockHashes(hashes []chainhash.Hash) {
	for _, hash := range hashes {
		w.blockIndexes[hash] = uint32(len(w.blockchain))
		w.blockchain = append(w.blockchain, hash)
	}
}

// truncateBlockchain drops every block hash at and above the given height.
func (w *Wallet) truncateBlockchain(height uint32) {
	if height >= uint32(len(w.blockchain)) {
		return
	}
	for _, hash := range w.blockchain[height:] {
		delete(w.blockIndexes, hash)
	}
	w.blockchain = w.blockchain[:height]
}

// setBlockchain replaces the chain with hashes known to the synchronizer.
func (w *Wallet) setBlockchain(hashes []chainhash.Hash) {
	if len(hashes) == 0 {
		w.resetBlockchain()
		return
	}
	w.blockchain = nil
	w.blockIndexes = make(map[chainhash.Hash]uint32, len(hashes))
	w.appendBlockHashes(hashes)
}

// addressString renders a spend record's address.
func (w *Wallet) addressString(rec *keystore.SpendRecord) string {
	return w.cfg.Currency.FormatAddress(cnutil.AccountAddress{
		SpendPublicKey: rec.SpendPublicKey,
		ViewPublicKey:  w.keys.ViewKeys().Public,
	})
}

// parseAddress parses an address string of this currency.
func (w *Wallet) parseAddress(address string) (cnutil.AccountAddress, error) {
	parsed, ok := w.cfg.Currency.ParseAddress(address)
	if !ok {
		return cnutil.AccountAddress{}, walletError(ErrBadAddress,
			fmt.Sprintf("unable to parse address %q", address), nil)
	}
	return parsed, nil
}

// isMyAddress reports whether the address belongs to this wallet.
func (w *Wallet) isMyAddress(address string) bool {
	parsed, ok := w.cfg.Currency.ParseAddress(address)
	if !ok {
		return false
	}
	return parsed.ViewPublicKey == w.keys.ViewKeys().Public &&
		w.keys.Contains(parsed.SpendPublicKey)
}

// recordByContainer resolves the spend record owning a container.
func (w *Wallet) recordByContainer(container txsync.TransfersContainer) *keystore.SpendRecord {
	for _, rec := range w.keys.Records() {
		if rec.Container == container {
			return rec
		}
	}
	return nil
}

// updateBalance refreshes one container's cached balances under the delta
// rule: the aggregate shifts by the difference between the container's truth
// and the cache, then the cache is overwritten.
func (w *Wallet) updateBalance(container txsync.TransfersContainer) {
	rec := w.recordByContainer(container)
	if rec == nil {
		return
	}

	actual := container.Balance(txsync.IncludeUnlocked)
	pending := container.Balance(txsync.IncludeLocked)

	if actual >= rec.ActualBalance {
		w.actualBalance += actual - rec.ActualBalance
	} else {
		w.actualBalance -= rec.ActualBalance - actual
	}
	if pending >= rec.PendingBalance {
		w.pendingBalance += pending - rec.PendingBalance
	} else {
		w.pendingBalance -= rec.PendingBalance - pending
	}

	rec.ActualBalance = actual
	rec.PendingBalance = pending
}

// ActualBalance returns the aggregate spendable balance.
func (w *Wallet) ActualBalance() (uint64, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}
	return w.actualBalance, nil
}

// PendingBalance returns the aggregate locked balance.
func (w *Wallet) PendingBalance() (uint64, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}
	return w.pendingBalance, nil
}

// ActualBalanceOf returns one address' spendable balance.
func (w *Wallet) ActualBalanceOf(address string) (uint64, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	rec, err := w.recordForAddress(address)
	if err != nil {
		return 0, err
	}
	return rec.ActualBalance, nil
}

// PendingBalanceOf returns one address' locked balance.
func (w *Wallet) PendingBalanceOf(address string) (uint64, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	rec, err := w.recordForAddress(address)
	if err != nil {
		return 0, err
	}
	return rec.PendingBalance, nil
}

// recordForAddress gates and resolves an address to its spend record.  The
// cooperative lock must be held.
func (w *Wallet) recordForAddress(address string) (*keystore.SpendRecord, error) {
	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	parsed, err := w.parseAddress(address)
	if err != nil {
		return nil, err
	}

	rec, err := w.keys.Get(parsed.SpendPublicKey)
	if err != nil {
		return nil, walletError(ErrWalletNotFound,
			fmt.Sprintf("address %q does not belong to the wallet",
				address), err)
	}
	return rec, nil
}

// AddressCount returns the number of owned addresses.
func (w *Wallet) AddressCount() (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}
	return w.keys.Count(), nil
}

// Address returns the owned address at the given creation position.
func (w *Wallet) Address(index int) (string, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return "", err
	}
	if err := w.checkNotStopped(); err != nil {
		return "", err
	}

	rec, err := w.keys.At(index)
	if err != nil {
		return "", walletError(ErrIndexOutOfRange,
			fmt.Sprintf("address index %d out of range", index), err)
	}
	return w.addressString(rec), nil
}

// Addresses returns every owned address in creation order.
func (w *Wallet) Addresses() ([]string, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	addresses := make([]string, 0, w.keys.Count())
	for _, rec := range w.keys.Records() {
		addresses = append(addresses, w.addressString(rec))
	}
	return addresses, nil
}

// ViewKeyPair returns the wallet's view keys.
func (w *Wallet) ViewKeyPair() (cnutil.KeyPair, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return cnutil.KeyPair{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return cnutil.KeyPair{}, err
	}
	return w.keys.ViewKeys(), nil
}

// SpendKeyPair returns the spend keys of the address at the given position.
func (w *Wallet) SpendKeyPair(index int) (cnutil.KeyPair, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return cnutil.KeyPair{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return cnutil.KeyPair{}, err
	}

	rec, err := w.keys.At(index)
	if err != nil {
		return cnutil.KeyPair{}, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("address index %d out of range", index), err)
	}
	return cnutil.KeyPair{
		Public: rec.SpendPublicKey,
		Secret: rec.SpendSecretKey,
	}, nil
}

// SpendKeyPairOf returns the spend keys of the given address.
func (w *Wallet) SpendKeyPairOf(address string) (cnutil.KeyPair, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return cnutil.KeyPair{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return cnutil.KeyPair{}, err
	}

	parsed, err := w.parseAddress(address)
	if err != nil {
		return cnutil.KeyPair{}, err
	}
	rec, err := w.keys.Get(parsed.SpendPublicKey)
	if err != nil {
		return cnutil.KeyPair{}, walletError(ErrObjectNotFound,
			fmt.Sprintf("address %q does not belong to the wallet",
				address), err)
	}
	return cnutil.KeyPair{
		Public: rec.SpendPublicKey,
		Secret: rec.SpendSecretKey,
	}, nil
}

// BlockCount returns the length of the seen block hash chain.
func (w *Wallet) BlockCount() (uint32, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}
	return uint32(len(w.blockchain)), nil
}

// BlockHashes returns up to count seen block hashes starting at the given
// height.
func (w *Wallet) BlockHashes(startHeight uint32, count int) ([]chainhash.Hash, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	if startHeight >= uint32(len(w.blockchain)) {
		return nil, nil
	}
	end := uint64(startHeight) + uint64(count)
	if end > uint64(len(w.blockchain)) {
		end = uint64(len(w.blockchain))
	}
	return append([]chainhash.Hash(nil), w.blockchain[startHeight:end]...), nil
}

// TransactionCount returns the number of journal records.
func (w *Wallet) TransactionCount() (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}
	return w.txStore.Count(), nil
}

// Transaction returns the journal record at the given insertion index.
func (w *Wallet) Transaction(index int) (wtxmgr.TxRecord, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return wtxmgr.TxRecord{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return wtxmgr.TxRecord{}, err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil {
		return wtxmgr.TxRecord{}, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}
	return rec, nil
}

// TransactionByHash returns a record and its transfers by transaction hash.
func (w *Wallet) TransactionByHash(hash *chainhash.Hash) (TransactionWithTransfers, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return TransactionWithTransfers{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return TransactionWithTransfers{}, err
	}

	rec, index, err := w.txStore.TxByHash(hash)
	if err != nil {
		return TransactionWithTransfers{}, walletError(ErrObjectNotFound,
			fmt.Sprintf("transaction %v not found", hash), err)
	}
	return TransactionWithTransfers{
		Transaction: rec,
		Transfers:   w.txStore.Transfers(index),
	}, nil
}

// TransactionSecretKey returns the secret key of a locally built
// transaction.
func (w *Wallet) TransactionSecretKey(index int) (cnutil.SecretKey, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return cnutil.SecretKey{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return cnutil.SecretKey{}, err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil {
		return cnutil.SecretKey{}, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}
	if rec.SecretKey == nil {
		return cnutil.SecretKey{}, walletError(ErrObjectNotFound,
			"transaction secret key is not known", nil)
	}
	return *rec.SecretKey, nil
}

// TransactionTransferCount returns the number of transfer legs of a record.
func (w *Wallet) TransactionTransferCount(index int) (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return 0, err
	}
	if err := w.checkNotStopped(); err != nil {
		return 0, err
	}

	if _, err := w.txStore.Tx(index); err != nil {
		return 0, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}
	return w.txStore.TransferCount(index), nil
}

// TransactionTransfer returns one transfer leg of a record.
func (w *Wallet) TransactionTransfer(index, transferIndex int) (wtxmgr.Transfer, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return wtxmgr.Transfer{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return wtxmgr.Transfer{}, err
	}

	transfer, err := w.txStore.Transfer(index, transferIndex)
	if err != nil {
		return wtxmgr.Transfer{}, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transfer %d of transaction %d out of range",
				transferIndex, index), err)
	}
	return transfer, nil
}

// UnconfirmedTransactions returns every successful record still carrying
// the unconfirmed height sentinel, with transfers.
func (w *Wallet) UnconfirmedTransactions() ([]TransactionWithTransfers, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	var result []TransactionWithTransfers
	for _, index := range w.txStore.UnconfirmedIndexes() {
		rec, err := w.txStore.Tx(index)
		if err != nil {
			return nil, walletError(ErrInternal,
				"height index references missing record", err)
		}
		if rec.State != wtxmgr.TxSucceeded {
			continue
		}
		result = append(result, TransactionWithTransfers{
			Transaction: rec,
			Transfers:   w.txStore.Transfers(index),
		})
	}
	return result, nil
}

// DelayedTransactionIndexes returns the indexes of created transactions
// awaiting commit.
func (w *Wallet) DelayedTransactionIndexes() ([]int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(w.pending))
	for index := range w.pending {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes, nil
}

// GetTransactionsByHeight returns the successful transactions of up to
// count seen blocks starting at startHeight.
func (w *Wallet) GetTransactionsByHeight(startHeight uint32, count int) ([]TransactionsInBlockInfo, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}
	return w.transactionsInBlocks(startHeight, count)
}

// GetTransactionsByBlockHash returns the successful transactions of up to
// count seen blocks starting at the block with the given hash.
func (w *Wallet) GetTransactionsByBlockHash(hash *chainhash.Hash, count int) ([]TransactionsInBlockInfo, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return nil, err
	}
	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	height, ok := w.blockIndexes[*hash]
	if !ok {
		return nil, nil
	}
	return w.transactionsInBlocks(height, count)
}

// transactionsInBlocks collects per-block successful transactions.  The
// cooperative lock must be held.
func (w *Wallet) transactionsInBlocks(startHeight uint32, count int) ([]TransactionsInBlockInfo, error) {
	if count == 0 {
		return nil, walletError(ErrWrongParameters,
			"blocks count must be greater than zero", nil)
	}

	if startHeight >= uint32(len(w.blockchain)) {
		return nil, nil
	}

	stop := uint64(startHeight) + uint64(count)
	if stop > uint64(len(w.blockchain)) {
		stop = uint64(len(w.blockchain))
	}

	var result []TransactionsInBlockInfo
	for height := startHeight; uint64(height) < stop; height++ {
		info := TransactionsInBlockInfo{
			BlockHash: w.blockchain[height],
		}

		for _, index := range w.txStore.IndexesAtHeight(height) {
			rec, err := w.txStore.Tx(index)
			if err != nil {
				return nil, walletError(ErrInternal,
					"height index references missing record",
					err)
			}
			if rec.State != wtxmgr.TxSucceeded {
				continue
			}
			info.Transactions = append(info.Transactions,
				TransactionWithTransfers{
					Transaction: rec,
					Transfers:   w.txStore.Transfers(index),
				})
		}

		result = append(result, info)
	}
	return result, nil
}

// updateTransactionStateAndPushEvent rewrites a record's state and, when it
// changed, announces the update.  The cooperative lock must be held.
func (w *Wallet) updateTransactionStateAndPushEvent(index int, state wtxmgr.TxState) {
	updated, err := w.txStore.UpdateState(index, state)
	if err != nil {
		log.Errorf("Unable to update state of transaction %d: %v",
			index, err)
		return
	}
	if updated {
		w.pushEvent(Event{
			Type:             EventTransactionUpdated,
			TransactionIndex: index,
		})
	}
}
