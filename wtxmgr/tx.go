// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wtxmgr provides the wallet transaction journal: an append-only,
// multi-view container of wallet transactions and their per-address
// transfers.  Records are addressed by insertion index, by transaction hash,
// and by block height.  Transfers of one transaction form a contiguous run in
// a parallel sequence ordered by parent index.
package wtxmgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/txsync"
)

// UnconfirmedHeight is the sentinel block height of records not yet included
// in a block.
const UnconfirmedHeight uint32 = ^uint32(0)

// TxState describes the lifecycle state of a journal record.
type TxState uint8

const (
	// TxCreated is a locally built transaction not yet relayed.
	TxCreated TxState = iota

	// TxSucceeded is a relayed or chain-observed transaction.
	TxSucceeded

	// TxFailed is a locally built transaction whose send failed.
	TxFailed

	// TxCancelled is a transaction the synchronizer reported deleted.
	TxCancelled

	// TxDeleted is a transaction whose owning addresses were all removed.
	TxDeleted
)

// String returns the TxState as a human-readable name.
func (s TxState) String() string {
	switch s {
	case TxCreated:
		return "created"
	case TxSucceeded:
		return "succeeded"
	case TxFailed:
		return "failed"
	case TxCancelled:
		return "cancelled"
	case TxDeleted:
		return "deleted"
	}
	return fmt.Sprintf("unknown state (%d)", uint8(s))
}

// TxRecord is one journal entry.  Its insertion index is its public
// identifier; State, BlockHeight, Timestamp, TotalAmount, Extra and
// IsCoinbase are the only fields rewritten in place after insertion.
type TxRecord struct {
	State       TxState
	Hash        chainhash.Hash
	BlockHeight uint32
	Timestamp   uint64
	UnlockTime  uint64
	Fee         uint64

	// TotalAmount is the signed net effect of the transaction on owned
	// addresses.
	TotalAmount int64

	Extra        []byte
	CreationTime uint64
	IsCoinbase   bool

	// SecretKey is the transaction secret key, known only for locally
	// built transactions.
	SecretKey *cnutil.SecretKey
}

// TransferType tags the role of a transfer leg.
type TransferType uint8

const (
	// TransferUsual is a payment to a destination.
	TransferUsual TransferType = iota

	// TransferDonation is an automatic donation leg.
	TransferDonation

	// TransferChange returns the remainder to an owned address.
	TransferChange
)

// Transfer is one leg of a journal record.  Inputs carry negative amounts,
// outputs positive.  An empty address is the anonymous counterparty row.
type Transfer struct {
	Type    TransferType
	Address string
	Amount  int64
}

// TransferRow couples a transfer with its parent record index.
type TransferRow struct {
	TxIndex int
	Transfer
}

// InOut accumulates the known input and output amounts of one address within
// a transaction.
type InOut struct {
	Input  int64
	Output int64
}

// heightEntry is one element of the sorted block-height index.
type heightEntry struct {
	height uint32
	index  int
}

// Store is the journal.  It is not safe for concurrent use; the wallet
// serializes access through its dispatcher.
type Store struct {
	clock clock.Clock

	records []TxRecord

	// hashIndex maps a transaction hash to its insertion index.
	hashIndex map[chainhash.Hash]int

	// heightIndex orders record indexes by (blockHeight, index).  The
	// UnconfirmedHeight sentinel groups pending records at the end.
	heightIndex []heightEntry

	// transfers holds every transfer row ordered by parent index; rows of
	// one transaction are contiguous in append order.
	transfers []TransferRow
}

// New creates an empty journal.  A nil clk falls back to the wall clock.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Store{
		clock:     clk,
		hashIndex: make(map[chainhash.Hash]int),
	}
}

// Count returns the number of records.
func (s *Store) Count() int {
	return len(s.records)
}

// Tx returns a copy of the record at the given insertion index.
func (s *Store) Tx(index int) (TxRecord, error) {
	if index < 0 || index >= len(s.records) {
		return TxRecord{}, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index))
	}
	return s.records[index], nil
}

// IndexByHash returns the insertion index of the record with the given hash.
func (s *Store) IndexByHash(hash *chainhash.Hash) (int, bool) {
	index, ok := s.hashIndex[*hash]
	return index, ok
}

// TxByHash returns a copy of the record with the given hash together with
// its insertion index.
func (s *Store) TxByHash(hash *chainhash.Hash) (TxRecord, int, error) {
	index, ok := s.hashIndex[*hash]
	if !ok {
		return TxRecord{}, 0, storeError(ErrUnknownHash,
			fmt.Sprintf("transaction %v not found", hash))
	}
	return s.records[index], index, nil
}

// InsertConfirmed appends a record for a chain-observed transaction and
// returns its insertion index.
func (s *Store) InsertConfirmed(info *txsync.TransactionInformation,
	totalAmount int64) (int, error) {

	if _, ok := s.hashIndex[info.Hash]; ok {
		return 0, storeError(ErrDuplicateHash,
			fmt.Sprintf("transaction %v already recorded", info.Hash))
	}

	rec := TxRecord{
		State:        TxSucceeded,
		Hash:         info.Hash,
		BlockHeight:  info.BlockHeight,
		Timestamp:    info.Timestamp,
		UnlockTime:   info.UnlockTime,
		TotalAmount:  totalAmount,
		Extra:        append([]byte(nil), info.Extra...),
		CreationTime: info.Timestamp,
		IsCoinbase:   info.TotalAmountIn == 0,
	}
	if !rec.IsCoinbase {
		rec.Fee = info.TotalAmountIn - info.TotalAmountOut
	}

	return s.append(rec), nil
}

// InsertPending appends a CREATED record for a locally built transaction and
// returns its insertion index.  The caller keeps the serialized blob in its
// pending table.
func (s *Store) InsertPending(hash *chainhash.Hash, fee uint64, extra []byte,
	unlockTime uint64, secretKey *cnutil.SecretKey) (int, error) {

	if _, ok := s.hashIndex[*hash]; ok {
		return 0, storeError(ErrDuplicateHash,
			fmt.Sprintf("transaction %v already recorded", hash))
	}

	rec := TxRecord{
		State:        TxCreated,
		Hash:         *hash,
		BlockHeight:  UnconfirmedHeight,
		UnlockTime:   unlockTime,
		Fee:          fee,
		Extra:        append([]byte(nil), extra...),
		CreationTime: uint64(s.clock.Now().Unix()),
		SecretKey:    secretKey,
	}

	return s.append(rec), nil
}

// append adds rec to every view and returns its index.
func (s *Store) append(rec TxRecord) int {
	index := len(s.records)
	s.records = append(s.records, rec)
	s.hashIndex[rec.Hash] = index
	s.insertHeightEntry(rec.BlockHeight, index)
	return index
}

// UpdateState rewrites the state of a record.  The boolean result reports
// whether the stored state changed.
func (s *Store) UpdateState(index int, state TxState) (bool, error) {
	if index < 0 || index >= len(s.records) {
		return false, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index))
	}

	if s.records[index].State == state {
		return false, nil
	}
	s.records[index].State = state
	return true, nil
}

// UpdateMeta reconciles a record with the container's view of the
// transaction.  It rewrites block height, timestamp, total amount, the
// coinbase flag and a previously empty extra, and promotes the state to
// succeeded once the
// transaction was sent or confirmed.  The boolean result reports whether
// anything changed.
func (s *Store) UpdateMeta(index int, info *txsync.TransactionInformation,
	totalAmount int64) (bool, error) {

	if index < 0 || index >= len(s.records) {
		return false, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index))
	}

	rec := &s.records[index]
	updated := false

	if rec.BlockHeight != info.BlockHeight {
		s.moveHeightEntry(rec.BlockHeight, info.BlockHeight, index)
		rec.BlockHeight = info.BlockHeight
		updated = true
	}

	if rec.Timestamp != info.Timestamp {
		rec.Timestamp = info.Timestamp
		updated = true
	}

	// A transaction that was handed to the daemon can no longer be in the
	// created or failed states; once it is seen confirmed, or was
	// previously sent, it is succeeded even if a deletion marked it
	// cancelled in between.
	isSucceeded := rec.State == TxSucceeded
	wasSent := rec.State != TxCreated && rec.State != TxFailed
	isConfirmed := rec.BlockHeight != UnconfirmedHeight
	if !isSucceeded && (wasSent || isConfirmed) {
		rec.State = TxSucceeded
		updated = true
	}

	if rec.TotalAmount != totalAmount {
		rec.TotalAmount = totalAmount
		updated = true
	}

	if len(rec.Extra) == 0 && len(info.Extra) != 0 {
		rec.Extra = append([]byte(nil), info.Extra...)
		updated = true
	}

	isCoinbase := info.TotalAmountIn == 0
	if rec.IsCoinbase != isCoinbase {
		rec.IsCoinbase = isCoinbase
		updated = true
	}

	return updated, nil
}

// MarkCancelled moves a record to the cancelled state with the unconfirmed
// height sentinel, as reported by a synchronizer deletion.  The boolean
// result reports whether anything changed.
func (s *Store) MarkCancelled(index int) (bool, error) {
	if index < 0 || index >= len(s.records) {
		return false, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index))
	}

	rec := &s.records[index]
	updated := false

	if rec.State == TxCreated || rec.State == TxSucceeded {
		rec.State = TxCancelled
		updated = true
	}

	if rec.BlockHeight != UnconfirmedHeight {
		s.moveHeightEntry(rec.BlockHeight, UnconfirmedHeight, index)
		rec.BlockHeight = UnconfirmedHeight
		updated = true
	}

	return updated, nil
}

// AddToTotalAmount shifts the record's total amount by delta.
func (s *Store) AddToTotalAmount(index int, delta int64) error {
	if index < 0 || index >= len(s.records) {
		return storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index))
	}
	s.records[index].TotalAmount += delta
	return nil
}

// IndexesAtHeight returns the insertion indexes of records at the given
// block height, ascending.
func (s *Store) IndexesAtHeight(height uint32) []int {
	first := sort.Search(len(s.heightIndex), func(i int) bool {
		return s.heightIndex[i].height >= height
	})

	var indexes []int
	for i := first; i < len(s.heightIndex) && s.heightIndex[i].height == height; i++ {
		indexes = append(indexes, s.heightIndex[i].index)
	}
	return indexes
}

// UnconfirmedIndexes returns the insertion indexes of records carrying the
// unconfirmed height sentinel.
func (s *Store) UnconfirmedIndexes() []int {
	return s.IndexesAtHeight(UnconfirmedHeight)
}

// insertHeightEntry adds (height, index) keeping the height index sorted.
func (s *Store) insertHeightEntry(height uint32, index int) {
	pos := sort.Search(len(s.heightIndex), func(i int) bool {
		e := s.heightIndex[i]
		return e.height > height || (e.height == height && e.index > index)
	})
	s.heightIndex = append(s.heightIndex, heightEntry{})
	copy(s.heightIndex[pos+1:], s.heightIndex[pos:])
	s.heightIndex[pos] = heightEntry{height: height, index: index}
}

// moveHeightEntry rekeys a record in the height index.
func (s *Store) moveHeightEntry(oldHeight, newHeight uint32, index int) {
	pos := sort.Search(len(s.heightIndex), func(i int) bool {
		e := s.heightIndex[i]
		return e.height > oldHeight || (e.height == oldHeight && e.index >= index)
	})
	if pos < len(s.heightIndex) && s.heightIndex[pos].height == oldHeight &&
		s.heightIndex[pos].index == index {

		s.heightIndex = append(s.heightIndex[:pos], s.heightIndex[pos+1:]...)
	}
	s.insertHeightEntry(newHeight, index)
}

// TransfersRangeStart returns the position of the first transfer row of the
// given transaction in the row sequence.  If the transaction has no rows the
// result is the insertion position for its run.
func (s *Store) TransfersRangeStart(txIndex int) int {
	return sort.Search(len(s.transfers), func(i int) bool {
		return s.transfers[i].TxIndex >= txIndex
	})
}

// TransferCount returns the number of transfer rows of a transaction.
func (s *Store) TransferCount(txIndex int) int {
	first := s.TransfersRangeStart(txIndex)
	n := 0
	for i := first; i < len(s.transfers) && s.transfers[i].TxIndex == txIndex; i++ {
		n++
	}
	return n
}

// Transfer returns the i'th transfer of a transaction.
func (s *Store) Transfer(txIndex, i int) (Transfer, error) {
	first := s.TransfersRangeStart(txIndex)
	pos := first + i
	if i < 0 || pos >= len(s.transfers) || s.transfers[pos].TxIndex != txIndex {
		return Transfer{}, storeError(ErrIndexOutOfRange,
			fmt.Sprintf("transfer index %d out of range for transaction %d",
				i, txIndex))
	}
	return s.transfers[pos].Transfer, nil
}

// Transfers returns copies of all transfer rows of a transaction, in
// insertion order.
func (s *Store) Transfers(txIndex int) []Transfer {
	first := s.TransfersRangeStart(txIndex)

	var transfers []Transfer
	for i := first; i < len(s.transfers) && s.transfers[i].TxIndex == txIndex; i++ {
		transfers = append(transfers, s.transfers[i].Transfer)
	}
	return transfers
}

// AppendOutgoingTransfers appends the destination legs of a freshly created
// transaction.  The record must be the newest in the journal so the run
// lands at the end of the row sequence.
func (s *Store) AppendOutgoingTransfers(txIndex int, transfers []Transfer) {
	for _, t := range transfers {
		s.transfers = append(s.transfers, TransferRow{
			TxIndex:  txIndex,
			Transfer: t,
		})
	}
}

// AppendTransfer inserts a usual transfer row at the end of the
// transaction's run.
func (s *Store) AppendTransfer(txIndex int, address string, amount int64) {
	pos := sort.Search(len(s.transfers), func(i int) bool {
		return s.transfers[i].TxIndex > txIndex
	})

	row := TransferRow{
		TxIndex: txIndex,
		Transfer: Transfer{
			Type:    TransferUsual,
			Address: address,
			Amount:  amount,
		},
	}
	s.transfers = append(s.transfers, TransferRow{})
	copy(s.transfers[pos+1:], s.transfers[pos:])
	s.transfers[pos] = row
}

// AdjustTransfer rewrites the transaction's same-sign transfer to address so
// that exactly one row carries the passed amount: the first matching row is
// rewritten, any further matching rows are collapsed, and a missing row is
// appended.  amount must be non-zero; its sign selects input or output rows.
// The boolean result reports whether anything changed.
func (s *Store) AdjustTransfer(txIndex int, address string, amount int64) bool {
	updateOutputs := amount > 0

	updated := false
	found := false

	i := s.TransfersRangeStart(txIndex)
	for i < len(s.transfers) && s.transfers[i].TxIndex == txIndex {
		row := &s.transfers[i]
		rowIsOutput := row.Amount > 0
		if rowIsOutput == updateOutputs && row.Address == address {
			if found {
				s.transfers = append(s.transfers[:i], s.transfers[i+1:]...)
				updated = true
				continue
			}

			if row.Amount != amount {
				row.Amount = amount
				updated = true
			}
			found = true
		}
		i++
	}

	if !found {
		// i is one past the run; insert keeps the run contiguous.
		row := TransferRow{
			TxIndex: txIndex,
			Transfer: Transfer{
				Type:    TransferUsual,
				Address: address,
				Amount:  amount,
			},
		}
		s.transfers = append(s.transfers, TransferRow{})
		copy(s.transfers[i+1:], s.transfers[i:])
		s.transfers[i] = row
		updated = true
	}

	return updated
}

// EraseTransfers removes the transaction's transfer rows matched by the
// predicate.  The boolean result reports whether any row was removed.
func (s *Store) EraseTransfers(txIndex int,
	pred func(isOutput bool, address string) bool) bool {

	erased := false
	i := s.TransfersRangeStart(txIndex)
	for i < len(s.transfers) && s.transfers[i].TxIndex == txIndex {
		row := s.transfers[i]
		if pred(row.Amount > 0, row.Address) {
			s.transfers = append(s.transfers[:i], s.transfers[i+1:]...)
			erased = true
			continue
		}
		i++
	}
	return erased
}

// EraseTransfersByAddress removes the transaction's input or output rows of
// one address.
func (s *Store) EraseTransfersByAddress(txIndex int, address string,
	eraseOutputs bool) bool {

	return s.EraseTransfers(txIndex, func(isOutput bool, rowAddress string) bool {
		return isOutput == eraseOutputs && rowAddress == address
	})
}

// EraseForeignTransfers removes the transaction's input or output rows whose
// address is non-empty and not in knownAddresses.
func (s *Store) EraseForeignTransfers(txIndex int,
	knownAddresses map[string]struct{}, eraseOutputs bool) bool {

	return s.EraseTransfers(txIndex, func(isOutput bool, address string) bool {
		if isOutput != eraseOutputs || address == "" {
			return false
		}
		_, known := knownAddresses[address]
		return !known
	})
}

// KnownTransfersMap sums the transaction's named rows per address.  The
// anonymous counterparty row is excluded.
func (s *Store) KnownTransfersMap(txIndex int) map[string]InOut {
	known := make(map[string]InOut)

	first := s.TransfersRangeStart(txIndex)
	for i := first; i < len(s.transfers) && s.transfers[i].TxIndex == txIndex; i++ {
		row := s.transfers[i]
		if row.Address == "" {
			continue
		}

		inOut := known[row.Address]
		if row.Amount < 0 {
			inOut.Input += row.Amount
		} else {
			inOut.Output += row.Amount
		}
		known[row.Address] = inOut
	}

	return known
}

// AnonymousAmount returns the amount carried by the transaction's anonymous
// input or output row, or zero if there is none.
func (s *Store) AnonymousAmount(txIndex int, output bool) int64 {
	first := s.TransfersRangeStart(txIndex)
	for i := first; i < len(s.transfers) && s.transfers[i].TxIndex == txIndex; i++ {
		row := s.transfers[i]
		if row.Address == "" && (row.Amount > 0) == output {
			return row.Amount
		}
	}
	return 0
}

// DeleteAddressTransfers rewrites the journal after an address is removed
// from the wallet.  Output rows to the address are erased; input rows are
// folded into the anonymous counterparty row; each touched record's total
// amount is reduced accordingly.  Records left without any transfer to a
// still-owned address (per isMine) move to the deleted state.  It returns
// the indexes of updated records and, separately, of records marked
// deleted.
func (s *Store) DeleteAddressTransfers(address string,
	isMine func(string) bool) (updated, deleted []int) {

	// Walk the row sequence one transaction run at a time.  Runs are
	// rebuilt in place; row positions after the current run stay valid
	// because rewriting never crosses a run boundary.
	i := 0
	for i < len(s.transfers) {
		txIndex := s.transfers[i].TxIndex

		var (
			deletedInputs  int64
			deletedOutputs int64
			unknownInputs  int64
			transfersLeft  bool
		)

		// First pass over the run: classify.
		end := i
		for end < len(s.transfers) && s.transfers[end].TxIndex == txIndex {
			row := s.transfers[end]
			switch {
			case row.Address == address:
				if row.Amount >= 0 {
					deletedOutputs += row.Amount
				} else {
					deletedInputs += row.Amount
				}
			case row.Address == "":
				if row.Amount < 0 {
					unknownInputs += row.Amount
				}
			case isMine(row.Address):
				transfersLeft = true
			}
			end++
		}

		if deletedInputs == 0 && deletedOutputs == 0 {
			i = end
			continue
		}

		// Second pass: rebuild the run without the removed address.
		rebuilt := make([]TransferRow, 0, end-i)
		anonInserted := false
		anonAmount := unknownInputs + deletedInputs
		for _, row := range s.transfers[i:end] {
			switch {
			case row.Address == address:
				continue
			case row.Address == "" && row.Amount < 0:
				if anonAmount != 0 && !anonInserted {
					row.Amount = anonAmount
					anonInserted = true
					rebuilt = append(rebuilt, row)
				}
				continue
			}
			rebuilt = append(rebuilt, row)
		}
		if anonAmount != 0 && !anonInserted {
			rebuilt = append(rebuilt, TransferRow{
				TxIndex: txIndex,
				Transfer: Transfer{
					Type:    TransferUsual,
					Address: "",
					Amount:  anonAmount,
				},
			})
		}

		s.transfers = append(s.transfers[:i],
			append(rebuilt, s.transfers[end:]...)...)

		s.records[txIndex].TotalAmount -= deletedInputs + deletedOutputs
		if !transfersLeft {
			s.records[txIndex].State = TxDeleted
			deleted = append(deleted, txIndex)
		}
		updated = append(updated, txIndex)

		i += len(rebuilt)
	}

	if len(updated) != 0 {
		log.Debugf("Rewrote transfers of %d transaction(s) after "+
			"removing %s", len(updated), address)
	}

	return updated, deleted
}

// Records returns a copy of the record vector, for persistence.
func (s *Store) Records() []TxRecord {
	return append([]TxRecord(nil), s.records...)
}

// TransferRows returns a copy of the row sequence, for persistence.
func (s *Store) TransferRows() []TransferRow {
	return append([]TransferRow(nil), s.transfers...)
}

// FilteredSnapshot returns copies of the records and rows with every record
// matched by omit dropped and the parent indexes of the surviving rows
// re-numbered to the compacted record vector.
func (s *Store) FilteredSnapshot(omit func(*TxRecord) bool) ([]TxRecord, []TransferRow) {
	var (
		records []TxRecord
		rows    []TransferRow
	)

	omittedBefore := make([]int, len(s.records))
	omitted := 0
	for i := range s.records {
		omittedBefore[i] = omitted
		if omit(&s.records[i]) {
			omitted++
			continue
		}
		records = append(records, s.records[i])
	}

	for _, row := range s.transfers {
		if omit(&s.records[row.TxIndex]) {
			continue
		}
		row.TxIndex -= omittedBefore[row.TxIndex]
		rows = append(rows, row)
	}

	return records, rows
}

// LoadSnapshot replaces the journal contents with a persisted snapshot and
// rebuilds the secondary indexes.
func (s *Store) LoadSnapshot(records []TxRecord, rows []TransferRow) error {
	hashIndex := make(map[chainhash.Hash]int, len(records))
	heightIndex := make([]heightEntry, 0, len(records))
	for i, rec := range records {
		if _, ok := hashIndex[rec.Hash]; ok {
			return storeError(ErrMalformedSnapshot,
				fmt.Sprintf("duplicate transaction %v in snapshot",
					rec.Hash))
		}
		hashIndex[rec.Hash] = i
		heightIndex = append(heightIndex, heightEntry{
			height: rec.BlockHeight,
			index:  i,
		})
	}
	sort.Slice(heightIndex, func(i, j int) bool {
		a, b := heightIndex[i], heightIndex[j]
		return a.height < b.height ||
			(a.height == b.height && a.index < b.index)
	})

	for i, row := range rows {
		if row.TxIndex < 0 || row.TxIndex >= len(records) {
			return storeError(ErrMalformedSnapshot,
				fmt.Sprintf("transfer row %d references missing "+
					"transaction %d", i, row.TxIndex))
		}
		if i > 0 && rows[i-1].TxIndex > row.TxIndex {
			return storeError(ErrMalformedSnapshot,
				"transfer rows not ordered by parent index")
		}
	}

	s.records = records
	s.hashIndex = hashIndex
	s.heightIndex = heightIndex
	s.transfers = rows
	return nil
}
