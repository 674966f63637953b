// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/chain"
	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/txsync"
)

// fakeKeyGenerator mints deterministic keys.
type fakeKeyGenerator struct {
	counter byte
}

func (g *fakeKeyGenerator) GenerateKeys() (cnutil.PublicKey, cnutil.SecretKey, error) {
	g.counter++
	var pub cnutil.PublicKey
	var sec cnutil.SecretKey
	pub[0] = g.counter
	sec[0] = g.counter
	sec[1] = 0xfe
	return pub, sec, nil
}

func (g *fakeKeyGenerator) PublicFromSecret(sec *cnutil.SecretKey) (cnutil.PublicKey, error) {
	var pub cnutil.PublicKey
	pub[0] = sec[0]
	return pub, nil
}

func (g *fakeKeyGenerator) CheckKey(cnutil.PublicKey) bool {
	return true
}

// fakeNode implements chain.Node with canned responses.  Callbacks run
// synchronously.
type fakeNode struct {
	mu sync.Mutex

	height     uint32
	minimalFee uint64

	// randomOuts serves GetRandomOutsByAmounts; nil means mixin decoys
	// are generated with increasing global indexes.
	randomOuts func(amounts []uint64, count int) ([]chain.RandomOutsForAmount, error)

	relayErr error
	relayed  [][]byte
}

func (n *fakeNode) LastKnownBlockHeight() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

func (n *fakeNode) MinimalFee() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.minimalFee
}

func (n *fakeNode) GetRandomOutsByAmounts(amounts []uint64, count int,
	callback func([]chain.RandomOutsForAmount, error)) {

	n.mu.Lock()
	serve := n.randomOuts
	n.mu.Unlock()

	if serve == nil {
		serve = func(amounts []uint64, count int) ([]chain.RandomOutsForAmount, error) {
			result := make([]chain.RandomOutsForAmount, 0, len(amounts))
			for _, amount := range amounts {
				outs := make([]chain.RandomOutEntry, count)
				for i := range outs {
					outs[i] = chain.RandomOutEntry{
						GlobalIndex: uint32(1000 + i),
					}
				}
				result = append(result, chain.RandomOutsForAmount{
					Amount: amount,
					Outs:   outs,
				})
			}
			return result, nil
		}
	}

	outs, err := serve(amounts, count)
	callback(outs, err)
}

func (n *fakeNode) RelayTransaction(txBlob []byte, callback func(error)) {
	n.mu.Lock()
	err := n.relayErr
	if err == nil {
		n.relayed = append(n.relayed, txBlob)
	}
	n.mu.Unlock()

	callback(err)
}

func (n *fakeNode) relayCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.relayed)
}

// fakeContainer is a stateful stand-in for a synchronizer-owned transfers
// container.
type fakeContainer struct {
	unlocked []txsync.OutputInfo
	locked   []txsync.OutputInfo

	txs map[chainhash.Hash]fakeContainerTx
}

type fakeContainerTx struct {
	info    txsync.TransactionInformation
	in, out uint64
	inputs  []txsync.OutputInfo
	outputs []txsync.OutputInfo
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{txs: make(map[chainhash.Hash]fakeContainerTx)}
}

func (c *fakeContainer) Balance(filter txsync.OutputFilter) uint64 {
	var balance uint64
	if filter&txsync.IncludeUnlocked != 0 {
		for _, out := range c.unlocked {
			balance += out.Amount
		}
	}
	if filter&txsync.IncludeLocked != 0 {
		for _, out := range c.locked {
			balance += out.Amount
		}
	}
	return balance
}

func (c *fakeContainer) Outputs(filter txsync.OutputFilter) []txsync.OutputInfo {
	var outs []txsync.OutputInfo
	if filter&txsync.IncludeUnlocked != 0 {
		outs = append(outs, c.unlocked...)
	}
	if filter&txsync.IncludeLocked != 0 {
		outs = append(outs, c.locked...)
	}
	return outs
}

func (c *fakeContainer) TransactionInformation(hash chainhash.Hash) (txsync.TransactionInformation, uint64, uint64, bool) {
	tx, ok := c.txs[hash]
	if !ok {
		return txsync.TransactionInformation{}, 0, 0, false
	}
	return tx.info, tx.in, tx.out, true
}

func (c *fakeContainer) TransactionOutputs(hash chainhash.Hash,
	filter txsync.OutputFilter) []txsync.OutputInfo {

	return c.txs[hash].outputs
}

func (c *fakeContainer) TransactionInputs(hash chainhash.Hash,
	filter txsync.OutputFilter) []txsync.OutputInfo {

	return c.txs[hash].inputs
}

// creditUnlocked adds a spendable output.
func (c *fakeContainer) creditUnlocked(amount uint64, globalIndex uint32) {
	c.unlocked = append(c.unlocked, txsync.OutputInfo{
		Amount:            amount,
		GlobalOutputIndex: globalIndex,
	})
}

// creditLocked adds a locked output.
func (c *fakeContainer) creditLocked(amount uint64, globalIndex uint32) {
	c.locked = append(c.locked, txsync.OutputInfo{
		Amount:            amount,
		GlobalOutputIndex: globalIndex,
	})
}

// unlockAll moves every locked output to the unlocked set.
func (c *fakeContainer) unlockAll() {
	c.unlocked = append(c.unlocked, c.locked...)
	c.locked = nil
}

// fakeSynchronizer hands out fakeContainers per subscription.
type fakeSynchronizer struct {
	mu sync.Mutex

	observer   txsync.Observer
	subs       []cnutil.AccountAddress
	containers map[cnutil.PublicKey]*fakeContainer

	knownBlocks []chainhash.Hash

	started    bool
	startCount int
	stopCount  int

	unconfirmed map[chainhash.Hash][]byte

	addUnconfirmedErr error
}

func newFakeSynchronizer() *fakeSynchronizer {
	return &fakeSynchronizer{
		containers:  make(map[cnutil.PublicKey]*fakeContainer),
		unconfirmed: make(map[chainhash.Hash][]byte),
	}
}

func (s *fakeSynchronizer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.startCount++
}

func (s *fakeSynchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stopCount++
}

func (s *fakeSynchronizer) SetObserver(observer txsync.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

func (s *fakeSynchronizer) AddSubscription(sub txsync.Subscription) (txsync.TransfersContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spendPub := sub.Keys.Address.SpendPublicKey
	container, ok := s.containers[spendPub]
	if !ok {
		container = newFakeContainer()
		s.containers[spendPub] = container
	}
	s.subs = append(s.subs, sub.Keys.Address)
	return container, nil
}

func (s *fakeSynchronizer) RemoveSubscription(address cnutil.AccountAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub == address {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no subscription for %v", address.SpendPublicKey)
}

func (s *fakeSynchronizer) Subscriptions() []cnutil.AccountAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cnutil.AccountAddress(nil), s.subs...)
}

func (s *fakeSynchronizer) ViewKeyKnownBlocks(cnutil.PublicKey) []chainhash.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chainhash.Hash(nil), s.knownBlocks...)
}

func (s *fakeSynchronizer) AddUnconfirmedTransaction(hash chainhash.Hash,
	txBlob []byte) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.addUnconfirmedErr != nil {
		return s.addUnconfirmedErr
	}
	s.unconfirmed[hash] = txBlob
	return nil
}

func (s *fakeSynchronizer) RemoveUnconfirmedTransaction(hash chainhash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unconfirmed, hash)
	return nil
}

func (s *fakeSynchronizer) unconfirmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unconfirmed)
}

// fakeTxBuilder records the composed transaction instead of signing one.
type fakeTxBuilder struct {
	hash chainhash.Hash

	outputs []fakeTxOutput
	inputs  []fakeTxInput
	signed  map[int]int

	unlockTime uint64
	extra      []byte

	// blobSize overrides the reported serialized size; zero derives a
	// small size from the content.
	blobSize int
}

type fakeTxOutput struct {
	amount   uint64
	receiver cnutil.AccountAddress
}

type fakeTxInput struct {
	keys txsync.AccountKeys
	info InputKeyInfo
}

func (b *fakeTxBuilder) AddOutput(amount uint64, receiver cnutil.AccountAddress) error {
	b.outputs = append(b.outputs, fakeTxOutput{amount: amount, receiver: receiver})
	return nil
}

func (b *fakeTxBuilder) AddInput(keys txsync.AccountKeys, input InputKeyInfo) (int, error) {
	b.inputs = append(b.inputs, fakeTxInput{keys: keys, info: input})
	return len(b.inputs) - 1, nil
}

func (b *fakeTxBuilder) SignInput(index int) error {
	if b.signed == nil {
		b.signed = make(map[int]int)
	}
	b.signed[index]++
	return nil
}

func (b *fakeTxBuilder) SetUnlockTime(unlockTime uint64) {
	b.unlockTime = unlockTime
}

func (b *fakeTxBuilder) AppendExtra(extra []byte) error {
	b.extra = append(b.extra, extra...)
	return nil
}

func (b *fakeTxBuilder) Hash() chainhash.Hash {
	return b.hash
}

func (b *fakeTxBuilder) SecretKey() cnutil.SecretKey {
	var secret cnutil.SecretKey
	copy(secret[:], b.hash[:])
	secret[31] = 0x77
	return secret
}

func (b *fakeTxBuilder) Extra() []byte {
	return b.extra
}

func (b *fakeTxBuilder) UnlockTime() uint64 {
	return b.unlockTime
}

func (b *fakeTxBuilder) InputTotal() uint64 {
	var total uint64
	for _, input := range b.inputs {
		total += input.info.Amount
	}
	return total
}

func (b *fakeTxBuilder) OutputTotal() uint64 {
	var total uint64
	for _, output := range b.outputs {
		total += output.amount
	}
	return total
}

func (b *fakeTxBuilder) Bytes() ([]byte, error) {
	size := b.blobSize
	if size == 0 {
		size = 64 + 32*len(b.inputs) + 8*len(b.outputs) + len(b.extra)
	}
	blob := make([]byte, size)
	copy(blob, b.hash[:])
	return blob, nil
}

// fakeTxFactory mints builders with distinct hashes and remembers them.
type fakeTxFactory struct {
	mu       sync.Mutex
	counter  byte
	builders []*fakeTxBuilder

	// nextBlobSize seeds the blobSize of the next minted builder.
	nextBlobSize int
}

func (f *fakeTxFactory) factory() TxBuilder {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counter++
	var hash chainhash.Hash
	hash[0] = 0xf0
	hash[1] = f.counter

	builder := &fakeTxBuilder{
		hash:     hash,
		blobSize: f.nextBlobSize,
	}
	f.builders = append(f.builders, builder)
	return builder
}

// last returns the most recently minted builder.
func (f *fakeTxFactory) last() *fakeTxBuilder {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.builders) == 0 {
		return nil
	}
	return f.builders[len(f.builders)-1]
}
