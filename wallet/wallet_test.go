// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/DCL2019/cash2/chain"
	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/currency"
	"github.com/DCL2019/cash2/txsync"
	"github.com/DCL2019/cash2/wtxmgr"
)

var testWalletTime = time.Unix(1500000000, 0)

// testEnv wires a wallet to its fakes.
type testEnv struct {
	t       *testing.T
	w       *Wallet
	node    *fakeNode
	sync    *fakeSynchronizer
	factory *fakeTxFactory
	cur     *currency.Currency
}

func newTestEnv(t *testing.T) *testEnv {
	cur := currency.MainNet
	cur.DustThresholds = []currency.DustStep{{Height: 0, Threshold: 10}}
	cur.FusionTxMinInputCount = 3
	cur.FusionTxMinInOutRatio = 2

	env := &testEnv{
		t:       t,
		node:    &fakeNode{height: 100, minimalFee: 50},
		sync:    newFakeSynchronizer(),
		factory: &fakeTxFactory{},
		cur:     &cur,
	}

	w, err := New(Config{
		Currency:                &cur,
		Node:                    env.node,
		Synchronizer:            env.sync,
		KeyGenerator:            &fakeKeyGenerator{},
		TxFactory:               env.factory.factory,
		TransactionSoftLockTime: 10,
		Clock:                   clock.NewTestClock(testWalletTime),
	})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Initialize("test password"))
	env.w = w
	return env
}

// addAddress creates an address and returns it with its container.
func (e *testEnv) addAddress() (string, *fakeContainer) {
	e.t.Helper()

	address, err := e.w.CreateAddress()
	require.NoError(e.t, err)

	parsed, ok := e.cur.ParseAddress(address)
	require.True(e.t, ok)

	container := e.sync.containers[parsed.SpendPublicKey]
	require.NotNil(e.t, container)
	return address, container
}

// flush waits for the dispatcher to drain everything posted so far.
func (e *testEnv) flush() {
	done := make(chan struct{})
	e.w.post(func() { close(done) })
	<-done
}

// nextEvent pops one event, waiting for the dispatcher as needed.
func (e *testEnv) nextEvent() Event {
	e.t.Helper()

	event, err := e.w.GetEvent()
	require.NoError(e.t, err)
	return event
}

// requireNoEvent asserts the event queue stays empty.
func (e *testEnv) requireNoEvent() {
	e.t.Helper()
	e.flush()

	select {
	case event := <-e.w.eventQueue.ChanOut():
		e.t.Fatalf("unexpected event %v", event.(Event).Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func testTxHash(n byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = 0xcc
	h[1] = n
	return h
}

// externalAddress builds a parsable address that does not belong to the
// wallet.
func (e *testEnv) externalAddress(n byte) string {
	var spend, view cnutil.PublicKey
	spend[0] = 0xe0
	spend[1] = n
	view[0] = 0xee
	return e.cur.FormatAddress(cnutil.AccountAddress{
		SpendPublicKey: spend,
		ViewPublicKey:  view,
	})
}

// creditConfirmed records a coinbase-style credit in the container and
// delivers the synchronizer callback.  The output lands locked when locked
// is set, spendable otherwise.
func (e *testEnv) creditConfirmed(c *fakeContainer, hash chainhash.Hash,
	amount uint64, height uint32, locked bool) {

	out := txsync.OutputInfo{
		Amount:            amount,
		GlobalOutputIndex: uint32(len(c.unlocked) + len(c.locked) + 1),
		TransactionHash:   hash,
	}
	if locked {
		c.locked = append(c.locked, out)
	} else {
		c.unlocked = append(c.unlocked, out)
	}

	c.txs[hash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           hash,
			BlockHeight:    height,
			Timestamp:      1499990000,
			TotalAmountOut: amount,
		},
		out:     amount,
		outputs: []txsync.OutputInfo{out},
	}

	e.w.OnTransactionUpdated(hash, []txsync.TransfersContainer{c})
}

// TestCoinbaseCreditAndUnlock covers scenario 1: a confirmed coinbase output
// becomes spendable after the soft lock and fires BALANCE_UNLOCKED once.
func TestCoinbaseCreditAndUnlock(t *testing.T) {
	env := newTestEnv(t)
	_, container := env.addAddress()

	hash := testTxHash(1)
	env.creditConfirmed(container, hash, 1000000, 90, true)

	event := env.nextEvent()
	require.Equal(t, EventTransactionCreated, event.Type)

	pending, err := env.w.PendingBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(1000000), pending)
	actual, err := env.w.ActualBalance()
	require.NoError(t, err)
	require.Zero(t, actual)

	// The journal saw a coinbase transaction.
	rec, err := env.w.Transaction(event.TransactionIndex)
	require.NoError(t, err)
	require.True(t, rec.IsCoinbase)
	require.Equal(t, int64(1000000), rec.TotalAmount)

	// Soft lock is 10: the output matures at height 100, i.e. once 101
	// blocks are processed.
	container.unlockAll()
	env.w.OnSynchronizationProgressUpdated(101, 200)

	event = env.nextEvent()
	require.Equal(t, EventSyncProgressUpdated, event.Type)
	require.Equal(t, uint32(101), event.ProcessedBlockCount)

	event = env.nextEvent()
	require.Equal(t, EventBalanceUnlocked, event.Type)

	actual, err = env.w.ActualBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(1000000), actual)
	pending, err = env.w.PendingBalance()
	require.NoError(t, err)
	require.Zero(t, pending)

	// No further unlock event fires for the same job.
	env.w.OnSynchronizationProgressUpdated(102, 200)
	event = env.nextEvent()
	require.Equal(t, EventSyncProgressUpdated, event.Type)
	env.requireNoEvent()
}

// fundTwoAddresses credits two addresses with 500 spendable units each and
// drains the credit events.
func fundTwoAddresses(env *testEnv) (string, string, *fakeContainer, *fakeContainer) {
	addrA, containerA := env.addAddress()
	addrB, containerB := env.addAddress()

	env.creditConfirmed(containerA, testTxHash(1), 500, 50, false)
	env.creditConfirmed(containerB, testTxHash(2), 500, 50, false)
	env.nextEvent()
	env.nextEvent()

	return addrA, addrB, containerA, containerB
}

// TestTransferRequiresChangeAddress covers scenario 2.
func TestTransferRequiresChangeAddress(t *testing.T) {
	env := newTestEnv(t)
	addrA, addrB, _, _ := fundTwoAddresses(env)

	_, _, err := env.w.Transfer(&TransactionParameters{
		SourceAddresses: []string{addrA, addrB},
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee: 100,
	})
	require.True(t, IsError(err, ErrChangeAddressRequired))

	// An unrestricted transfer in a multi-address wallet is just as
	// ambiguous.
	_, _, err = env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee: 100,
	})
	require.True(t, IsError(err, ErrChangeAddressRequired))
}

// TestTransferWithChange covers scenario 3: one record, CREATED→SUCCEEDED,
// USUAL and CHANGE transfers, balances follow the spend.
func TestTransferWithChange(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, containerA, containerB := fundTwoAddresses(env)

	destination := env.externalAddress(1)
	index, secretKey, err := env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: destination, Amount: 800},
		},
		Fee:               100,
		ChangeDestination: addrA,
	})
	require.NoError(t, err)
	require.NotEqual(t, cnutil.SecretKey{}, secretKey)

	// The created and the success events, in order.
	event := env.nextEvent()
	require.Equal(t, EventTransactionCreated, event.Type)
	require.Equal(t, index, event.TransactionIndex)
	event = env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)
	require.Equal(t, index, event.TransactionIndex)

	rec, err := env.w.Transaction(index)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxSucceeded, rec.State)
	require.Equal(t, uint64(100), rec.Fee)

	transfers, err := env.w.TransactionByHash(&rec.Hash)
	require.NoError(t, err)
	require.Equal(t, []wtxmgr.Transfer{
		{Type: wtxmgr.TransferUsual, Address: destination, Amount: 800},
		{Type: wtxmgr.TransferChange, Address: addrA, Amount: 100},
	}, transfers.Transfers)

	// Exactly one relay, and nothing pending.
	require.Equal(t, 1, env.node.relayCount())
	delayed, err := env.w.DelayedTransactionIndexes()
	require.NoError(t, err)
	require.Empty(t, delayed)

	// Change conservation: inputs == outputs + fee.
	builder := env.factory.last()
	require.Equal(t, builder.InputTotal(), builder.OutputTotal()+100)

	// The chain observes the spend: A spent 500, got 100 change back
	// (locked), B spent 500.
	spendHash := builder.hash
	containerA.unlocked = nil
	containerA.locked = []txsync.OutputInfo{{Amount: 100, GlobalOutputIndex: 7}}
	containerA.txs[spendHash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           spendHash,
			BlockHeight:    150,
			TotalAmountIn:  1000,
			TotalAmountOut: 900,
		},
		in:  500,
		out: 100,
	}
	containerB.unlocked = nil
	containerB.txs[spendHash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           spendHash,
			BlockHeight:    150,
			TotalAmountIn:  1000,
			TotalAmountOut: 900,
		},
		in: 500,
	}
	env.w.OnTransactionUpdated(spendHash, []txsync.TransfersContainer{
		containerA, containerB,
	})

	event = env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)
	require.Equal(t, index, event.TransactionIndex)

	actual, err := env.w.ActualBalance()
	require.NoError(t, err)
	require.Zero(t, actual)
	pending, err := env.w.PendingBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(100), pending)

	// The input legs were reconciled into the journal.
	transfers, err = env.w.TransactionByHash(&rec.Hash)
	require.NoError(t, err)
	amounts := make(map[string]int64)
	for _, transfer := range transfers.Transfers {
		amounts[transfer.Address] += transfer.Amount
	}
	require.Equal(t, int64(800), amounts[destination])

	checkBalanceInvariant(t, env)
}

// TestTransferFeeTooSmall covers scenario 4.
func TestTransferFeeTooSmall(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, _, _ := fundTwoAddresses(env)

	before, err := env.w.TransactionCount()
	require.NoError(t, err)

	_, _, err = env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 100},
		},
		Fee:               10, // minimum is 50
		ChangeDestination: addrA,
	})
	require.True(t, IsError(err, ErrFeeTooSmall))

	after, err := env.w.TransactionCount()
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, env.node.relayCount())

	actual, err := env.w.ActualBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), actual)

	env.requireNoEvent()
}

// TestTransferNotEnoughMixins covers scenario 5.
func TestTransferNotEnoughMixins(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, _, _ := fundTwoAddresses(env)

	env.node.randomOuts = func(amounts []uint64, count int) ([]chain.RandomOutsForAmount, error) {
		result := make([]chain.RandomOutsForAmount, 0, len(amounts))
		for _, amount := range amounts {
			result = append(result, chain.RandomOutsForAmount{
				Amount: amount,
				Outs:   make([]chain.RandomOutEntry, 4),
			})
		}
		return result, nil
	}

	before, err := env.w.TransactionCount()
	require.NoError(t, err)

	_, _, err = env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee:               100,
		Mixin:             5,
		ChangeDestination: addrA,
	})
	require.True(t, IsError(err, ErrMixinCountTooBig))

	after, err := env.w.TransactionCount()
	require.NoError(t, err)
	require.Equal(t, before, after)

	delayed, err := env.w.DelayedTransactionIndexes()
	require.NoError(t, err)
	require.Empty(t, delayed)
}

// TestDeleteAddress covers scenario 6.
func TestDeleteAddress(t *testing.T) {
	env := newTestEnv(t)
	addrA, containerA := env.addAddress()
	addrB, containerB := env.addAddress()

	// One transaction credits both addresses with 500.
	hash := testTxHash(9)
	outA := txsync.OutputInfo{Amount: 500, GlobalOutputIndex: 1}
	outB := txsync.OutputInfo{Amount: 500, GlobalOutputIndex: 2}
	containerA.unlocked = []txsync.OutputInfo{outA}
	containerA.txs[hash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           hash,
			BlockHeight:    50,
			TotalAmountIn:  1100,
			TotalAmountOut: 1000,
		},
		out:     500,
		outputs: []txsync.OutputInfo{outA},
	}
	containerB.unlocked = []txsync.OutputInfo{outB}
	containerB.txs[hash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           hash,
			BlockHeight:    50,
			TotalAmountIn:  1100,
			TotalAmountOut: 1000,
		},
		out:     500,
		outputs: []txsync.OutputInfo{outB},
	}
	env.w.OnTransactionUpdated(hash, []txsync.TransfersContainer{
		containerA, containerB,
	})
	created := env.nextEvent()
	require.Equal(t, EventTransactionCreated, created.Type)

	require.NoError(t, env.w.DeleteAddress(addrA))

	event := env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)
	require.Equal(t, created.TransactionIndex, event.TransactionIndex)

	// The record survives with state SUCCEEDED; only B's leg remains.
	rec, err := env.w.Transaction(created.TransactionIndex)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxSucceeded, rec.State)

	transfers, err := env.w.TransactionByHash(&hash)
	require.NoError(t, err)
	for _, transfer := range transfers.Transfers {
		require.NotEqual(t, addrA, transfer.Address)
	}

	actual, err := env.w.ActualBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(500), actual)

	addresses, err := env.w.Addresses()
	require.NoError(t, err)
	require.Equal(t, []string{addrB}, addresses)

	checkBalanceInvariant(t, env)
}

// TestAnonymousCounterpartyRows verifies that amounts beyond what the wallet
// can attribute to its own addresses fold into anonymous rows, one per sign.
func TestAnonymousCounterpartyRows(t *testing.T) {
	env := newTestEnv(t)
	address, container := env.addAddress()

	// The transaction declares 1500 in and 1400 out, of which we own a
	// single 300 output.
	hash := testTxHash(0x77)
	out := txsync.OutputInfo{Amount: 300, GlobalOutputIndex: 3}
	container.unlocked = []txsync.OutputInfo{out}
	container.txs[hash] = fakeContainerTx{
		info: txsync.TransactionInformation{
			Hash:           hash,
			BlockHeight:    40,
			TotalAmountIn:  1500,
			TotalAmountOut: 1400,
		},
		out:     300,
		outputs: []txsync.OutputInfo{out},
	}
	env.w.OnTransactionUpdated(hash, []txsync.TransfersContainer{container})

	event := env.nextEvent()
	require.Equal(t, EventTransactionCreated, event.Type)

	rec, err := env.w.Transaction(event.TransactionIndex)
	require.NoError(t, err)
	require.Equal(t, int64(300), rec.TotalAmount)

	transfers, err := env.w.TransactionByHash(&hash)
	require.NoError(t, err)

	perAddress := make(map[string][]int64)
	for _, transfer := range transfers.Transfers {
		perAddress[transfer.Address] = append(
			perAddress[transfer.Address], transfer.Amount)
	}
	require.Equal(t, []int64{300}, perAddress[address])
	require.ElementsMatch(t, []int64{1100, -1500}, perAddress[""])

	checkBalanceInvariant(t, env)
}

// checkBalanceInvariant asserts the aggregate balances equal the per-address
// sums.
func checkBalanceInvariant(t *testing.T, env *testEnv) {
	t.Helper()

	addresses, err := env.w.Addresses()
	require.NoError(t, err)

	var actualSum, pendingSum uint64
	for _, address := range addresses {
		actual, err := env.w.ActualBalanceOf(address)
		require.NoError(t, err)
		actualSum += actual

		pending, err := env.w.PendingBalanceOf(address)
		require.NoError(t, err)
		pendingSum += pending
	}

	actual, err := env.w.ActualBalance()
	require.NoError(t, err)
	require.Equal(t, actualSum, actual)

	pending, err := env.w.PendingBalance()
	require.NoError(t, err)
	require.Equal(t, pendingSum, pending)
}

// TestCommitRollbackLifecycle covers the idempotent-commit law.
func TestCommitRollbackLifecycle(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, _, _ := fundTwoAddresses(env)

	index, err := env.w.MakeTransaction(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee:               100,
		ChangeDestination: addrA,
	})
	require.NoError(t, err)

	event := env.nextEvent()
	require.Equal(t, EventTransactionCreated, event.Type)

	rec, err := env.w.Transaction(index)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxCreated, rec.State)
	require.Zero(t, env.node.relayCount())
	require.Equal(t, 1, env.sync.unconfirmedCount())

	delayed, err := env.w.DelayedTransactionIndexes()
	require.NoError(t, err)
	require.Equal(t, []int{index}, delayed)

	require.NoError(t, env.w.CommitTransaction(index))
	require.Equal(t, 1, env.node.relayCount())

	event = env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)

	// Committing a succeeded transaction is impossible; so is rolling it
	// back.
	err = env.w.CommitTransaction(index)
	require.True(t, IsError(err, ErrTransferImpossible))
	err = env.w.RollbackUncommittedTransaction(index)
	require.True(t, IsError(err, ErrCancelImpossible))
}

// TestRollbackUncommitted rolls a created transaction back and lets the
// synchronizer's deletion callback cancel it.
func TestRollbackUncommitted(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, containerA, _ := fundTwoAddresses(env)

	index, err := env.w.MakeTransaction(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee:               100,
		ChangeDestination: addrA,
	})
	require.NoError(t, err)
	env.nextEvent()

	builder := env.factory.last()
	require.NoError(t, env.w.RollbackUncommittedTransaction(index))
	require.Zero(t, env.sync.unconfirmedCount())

	delayed, err := env.w.DelayedTransactionIndexes()
	require.NoError(t, err)
	require.Empty(t, delayed)

	// Rollback does not touch the state directly.
	rec, err := env.w.Transaction(index)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxCreated, rec.State)

	// The synchronizer reports the deletion.
	env.w.OnTransactionDeleted(builder.hash, containerA)
	event := env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)

	rec, err = env.w.Transaction(index)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxCancelled, rec.State)
	require.Equal(t, wtxmgr.UnconfirmedHeight, rec.BlockHeight)
}

// TestFailedRelayMarksFailed verifies the undo chain of transfer.
func TestFailedRelayMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	addrA, _, _, _ := fundTwoAddresses(env)

	env.node.relayErr = fmt.Errorf("pool rejected")

	_, _, err := env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 800},
		},
		Fee:               100,
		ChangeDestination: addrA,
	})
	require.Error(t, err)

	// The record exists, marked failed, and the unconfirmed registration
	// was undone.
	event := env.nextEvent()
	require.Equal(t, EventTransactionCreated, event.Type)
	event = env.nextEvent()
	require.Equal(t, EventTransactionUpdated, event.Type)

	rec, err := env.w.Transaction(event.TransactionIndex)
	require.NoError(t, err)
	require.Equal(t, wtxmgr.TxFailed, rec.State)
	require.Zero(t, env.sync.unconfirmedCount())

	delayed, err := env.w.DelayedTransactionIndexes()
	require.NoError(t, err)
	require.Empty(t, delayed)
}

// TestEventOrdering covers the callback-order law.
func TestEventOrdering(t *testing.T) {
	env := newTestEnv(t)
	env.addAddress()

	env.w.OnSynchronizationProgressUpdated(5, 10)
	env.w.OnSynchronizationProgressUpdated(6, 10)
	env.w.OnSynchronizationCompleted()

	event := env.nextEvent()
	require.Equal(t, EventSyncProgressUpdated, event.Type)
	require.Equal(t, uint32(5), event.ProcessedBlockCount)

	event = env.nextEvent()
	require.Equal(t, EventSyncProgressUpdated, event.Type)
	require.Equal(t, uint32(6), event.ProcessedBlockCount)

	event = env.nextEvent()
	require.Equal(t, EventSyncCompleted, event.Type)
}

// TestStopCancelsWaiters verifies stop/start semantics.
func TestStopCancelsWaiters(t *testing.T) {
	env := newTestEnv(t)
	env.addAddress()

	errCh := make(chan error, 1)
	go func() {
		_, err := env.w.GetEvent()
		errCh <- err
	}()

	// Give the waiter a moment to block, then stop.
	time.Sleep(20 * time.Millisecond)
	env.w.Stop()

	err := <-errCh
	require.True(t, IsError(err, ErrOperationCancelled))

	_, err = env.w.ActualBalance()
	require.True(t, IsError(err, ErrOperationCancelled))

	env.w.Start()
	_, err = env.w.ActualBalance()
	require.NoError(t, err)
}

// TestBlockHashChain covers block tracking callbacks.
func TestBlockHashChain(t *testing.T) {
	env := newTestEnv(t)
	env.addAddress()

	count, err := env.w.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(1), count) // genesis

	h1, h2 := testTxHash(0x51), testTxHash(0x52)
	env.w.OnBlocksAdded([]chainhash.Hash{h1, h2})
	env.flush()

	count, err = env.w.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	hashes, err := env.w.BlockHashes(1, 10)
	require.NoError(t, err)
	require.Equal(t, []chainhash.Hash{h1, h2}, hashes)

	env.w.OnBlockchainDetach(2)
	env.flush()

	count, err = env.w.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	// Removing the last address resets the chain to the genesis hash.
	addresses, err := env.w.Addresses()
	require.NoError(t, err)
	require.NoError(t, env.w.DeleteAddress(addresses[0]))

	count, err = env.w.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(1), count)
}

// TestTrackingWalletRefusesToSpend verifies the tracking gate.
func TestTrackingWalletRefusesToSpend(t *testing.T) {
	env := newTestEnv(t)

	var spendPub cnutil.PublicKey
	spendPub[0] = 0x42
	_, err := env.w.CreateAddressFromPublicKey(spendPub)
	require.NoError(t, err)

	_, _, err = env.w.Transfer(&TransactionParameters{
		Destinations: []TransferOrder{
			{Address: env.externalAddress(1), Amount: 1},
		},
		Fee: 100,
	})
	require.True(t, IsError(err, ErrTrackingMode))

	// Mixing in a spending address is rejected.
	var spendSec cnutil.SecretKey
	spendSec[0] = 0x43
	_, err = env.w.CreateAddressFromSecretKey(spendSec)
	require.True(t, IsError(err, ErrBadAddress))
}

// TestUninitializedGates verifies the NOT_INITIALIZED gate.
func TestUninitializedGates(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.w.Shutdown())

	_, err := env.w.ActualBalance()
	require.True(t, IsError(err, ErrNotInitialized))

	_, err = env.w.CreateAddress()
	require.True(t, IsError(err, ErrNotInitialized))

	err = env.w.Initialize("again")
	require.NoError(t, err)
}
