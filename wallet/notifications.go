// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "fmt"

// EventType identifies an observable wallet event.
type EventType uint8

const (
	// EventTransactionCreated reports a new journal record.
	EventTransactionCreated EventType = iota

	// EventTransactionUpdated reports an in-place change of a record or
	// its transfers.
	EventTransactionUpdated

	// EventBalanceUnlocked reports that previously locked outputs became
	// spendable.
	EventBalanceUnlocked

	// EventSyncProgressUpdated reports synchronization progress.
	EventSyncProgressUpdated

	// EventSyncCompleted reports that synchronization caught up with the
	// chain tip.
	EventSyncCompleted
)

// String returns the EventType as a human-readable name.
func (t EventType) String() string {
	switch t {
	case EventTransactionCreated:
		return "TRANSACTION_CREATED"
	case EventTransactionUpdated:
		return "TRANSACTION_UPDATED"
	case EventBalanceUnlocked:
		return "BALANCE_UNLOCKED"
	case EventSyncProgressUpdated:
		return "SYNC_PROGRESS_UPDATED"
	case EventSyncCompleted:
		return "SYNC_COMPLETED"
	}
	return fmt.Sprintf("unknown event (%d)", uint8(t))
}

// Event is one observable wallet event.  TransactionIndex is meaningful for
// the transaction events, the block counts for progress updates.
type Event struct {
	Type EventType

	TransactionIndex int

	ProcessedBlockCount uint32
	TotalBlockCount     uint32
}

// pushEvent appends an event to the queue.  The dispatcher lock must be
// held.
func (w *Wallet) pushEvent(event Event) {
	log.Tracef("Event %v (tx %d)", event.Type, event.TransactionIndex)
	w.eventQueue.ChanIn() <- event
}

// GetEvent blocks until an event is available or the wallet is stopped, in
// which case it fails with ErrOperationCancelled.
func (w *Wallet) GetEvent() (Event, error) {
	w.mtx.Lock()
	if err := w.checkInitialized(); err != nil {
		w.mtx.Unlock()
		return Event{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		w.mtx.Unlock()
		return Event{}, err
	}
	eventOut := w.eventQueue.ChanOut()
	w.mtx.Unlock()
	stopChan := w.stopSignal()

	select {
	case e, ok := <-eventOut:
		if !ok {
			return Event{}, walletError(ErrOperationCancelled,
				"wallet is shutting down", nil)
		}
		return e.(Event), nil

	case <-stopChan:
		return Event{}, walletError(ErrOperationCancelled,
			"wallet was stopped", nil)
	}
}
