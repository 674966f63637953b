// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/tlv"

	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/snacl"
	"github.com/DCL2019/cash2/wtxmgr"
)

// Snapshot format: a fixed header with the scrypt parameters in the clear,
// followed by a secretbox-sealed tlv stream.
var snapshotMagic = [8]byte{'c', 'a', 's', 'h', '2', 'w', 'l', 't'}

const snapshotVersion uint32 = 1

// tlv record types of the snapshot payload.
const (
	typeViewPublicKey tlv.Type = 1
	typeViewSecretKey tlv.Type = 2
	typeSoftLockTime  tlv.Type = 3
	typeSpendRecords  tlv.Type = 4
	typeTxRecords     tlv.Type = 5
	typeTransferRows  tlv.Type = 6
	typeUnlockJobs    tlv.Type = 7
	typePendingTxs    tlv.Type = 8
	typeBlockHashes   tlv.Type = 9
	typeBalances      tlv.Type = 10
)

// snapshotData is the decoded plaintext payload.
type snapshotData struct {
	viewPub      [32]byte
	viewSec      [32]byte
	softLockTime uint32

	spendRecords []persistedSpendRecord
	hasBalances  bool

	txRecords    []wtxmgr.TxRecord
	transferRows []wtxmgr.TransferRow
	unlockJobs   []persistedUnlockJob
	pendingTxs   []persistedPendingTx
	blockHashes  []chainhash.Hash

	actualBalance  uint64
	pendingBalance uint64
}

// persistedSpendRecord is the on-disk form of a spend record.
type persistedSpendRecord struct {
	spendPub       cnutil.PublicKey
	spendSec       cnutil.SecretKey
	creationTime   uint64
	actualBalance  uint64
	pendingBalance uint64
}

// persistedUnlockJob rekeys an unlock job by owner spend key, since
// container handles are assigned afresh on load.
type persistedUnlockJob struct {
	height   uint32
	hash     chainhash.Hash
	spendPub cnutil.PublicKey
}

// persistedPendingTx is the on-disk form of one pending blob.
type persistedPendingTx struct {
	index uint64
	hash  chainhash.Hash
	blob  []byte
}

// Save writes an encrypted snapshot of the wallet.  The synchronizer is
// stopped for the duration so the snapshot is consistent.  includeDetails
// selects the journal; includeCache selects balances, pending blobs, unlock
// jobs, and the block hash chain.
func (w *Wallet) Save(dst io.Writer, includeDetails, includeCache bool) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return err
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	w.stopSynchronizer()
	defer w.startSynchronizer()

	return w.save(dst, includeDetails, includeCache)
}

// save serializes under the held cooperative lock.
func (w *Wallet) save(dst io.Writer, includeDetails, includeCache bool) error {
	var data snapshotData
	viewKeys := w.keys.ViewKeys()
	data.viewPub = viewKeys.Public
	data.viewSec = viewKeys.Secret
	data.softLockTime = w.cfg.TransactionSoftLockTime
	data.hasBalances = includeCache

	for _, rec := range w.keys.Records() {
		data.spendRecords = append(data.spendRecords, persistedSpendRecord{
			spendPub:       rec.SpendPublicKey,
			spendSec:       rec.SpendSecretKey,
			creationTime:   rec.CreationTime,
			actualBalance:  rec.ActualBalance,
			pendingBalance: rec.PendingBalance,
		})
	}

	if includeDetails {
		var omit func(*wtxmgr.TxRecord) bool
		if includeCache {
			omit = func(rec *wtxmgr.TxRecord) bool {
				return rec.State == wtxmgr.TxDeleted
			}
		} else {
			omit = func(rec *wtxmgr.TxRecord) bool {
				return rec.State == wtxmgr.TxCreated ||
					rec.State == wtxmgr.TxDeleted
			}
		}
		data.txRecords, data.transferRows = w.txStore.FilteredSnapshot(omit)
	}

	if includeCache {
		for _, job := range w.unlocks.Jobs() {
			rec, ok := w.keys.ByContainer(job.ContainerID)
			if !ok {
				continue
			}
			data.unlockJobs = append(data.unlockJobs, persistedUnlockJob{
				height:   job.Height,
				hash:     job.Hash,
				spendPub: rec.SpendPublicKey,
			})
		}

		if includeDetails {
			for index, pending := range w.pending {
				data.pendingTxs = append(data.pendingTxs,
					persistedPendingTx{
						index: uint64(index),
						hash:  pending.hash,
						blob:  pending.blob,
					})
			}
		}

		data.blockHashes = append([]chainhash.Hash(nil), w.blockchain...)
		data.actualBalance = w.actualBalance
		data.pendingBalance = w.pendingBalance
	}

	payload, err := encodeSnapshot(&data)
	if err != nil {
		return walletError(ErrInternal, "unable to encode snapshot", err)
	}

	password := []byte(w.password)
	key, err := snacl.NewSecretKey(&password, snacl.DefaultN, snacl.DefaultR,
		snacl.DefaultP)
	if err != nil {
		return walletError(ErrInternal, "unable to derive snapshot key",
			err)
	}
	defer key.Zero()

	sealed, err := key.Encrypt(payload)
	if err != nil {
		return walletError(ErrInternal, "unable to seal snapshot", err)
	}

	keyParams := key.Marshal()
	if _, err := dst.Write(snapshotMagic[:]); err != nil {
		return walletError(ErrInternal, "unable to write snapshot", err)
	}
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], snapshotVersion)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(keyParams)))
	if _, err := dst.Write(header); err != nil {
		return walletError(ErrInternal, "unable to write snapshot", err)
	}
	if _, err := dst.Write(keyParams); err != nil {
		return walletError(ErrInternal, "unable to write snapshot", err)
	}
	if _, err := dst.Write(sealed); err != nil {
		return walletError(ErrInternal, "unable to write snapshot", err)
	}
	return nil
}

// Load restores a wallet from an encrypted snapshot.  The wallet must not be
// initialized.
func (w *Wallet) Load(src io.Reader, password string) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if w.state != stateNotInitialized {
		return walletError(ErrWrongState,
			"wallet is already initialized", nil)
	}
	if err := w.checkNotStopped(); err != nil {
		return err
	}

	return w.load(src, password)
}

// load restores under the held cooperative lock.
func (w *Wallet) load(src io.Reader, password string) error {
	raw, err := io.ReadAll(src)
	if err != nil {
		return walletError(ErrInternal, "unable to read snapshot", err)
	}

	if len(raw) < len(snapshotMagic)+8 ||
		!bytes.Equal(raw[:len(snapshotMagic)], snapshotMagic[:]) {

		return walletError(ErrInternal, "not a wallet snapshot", nil)
	}
	raw = raw[len(snapshotMagic):]

	version := binary.LittleEndian.Uint32(raw[0:4])
	if version != snapshotVersion {
		return walletError(ErrInternal,
			fmt.Sprintf("unsupported snapshot version %d", version),
			nil)
	}
	paramsLen := int(binary.LittleEndian.Uint32(raw[4:8]))
	raw = raw[8:]
	if len(raw) < paramsLen {
		return walletError(ErrInternal, "snapshot truncated", nil)
	}

	var key snacl.SecretKey
	if err := key.Unmarshal(raw[:paramsLen]); err != nil {
		return walletError(ErrInternal, "malformed snapshot key", err)
	}
	defer key.Zero()

	passwordBytes := []byte(password)
	if err := key.DeriveKey(&passwordBytes); err != nil {
		if err == snacl.ErrInvalidPassword {
			return walletError(ErrWrongPassword, "wrong password", nil)
		}
		return walletError(ErrInternal, "unable to derive snapshot key",
			err)
	}

	payload, err := key.Decrypt(raw[paramsLen:])
	if err != nil {
		return walletError(ErrInternal, "unable to open snapshot", err)
	}

	var data snapshotData
	if err := decodeSnapshot(payload, &data); err != nil {
		return walletError(ErrInternal, "unable to decode snapshot", err)
	}

	// Install the view identity, then rebuild every subsystem.
	if err := w.initWithKeys(data.viewPub, data.viewSec, password); err != nil {
		return err
	}
	w.cfg.TransactionSoftLockTime = data.softLockTime

	for _, prec := range data.spendRecords {
		if _, err := w.addWallet(prec.spendPub, prec.spendSec,
			prec.creationTime); err != nil {

			w.doShutdown()
			return err
		}

		rec, err := w.keys.Get(prec.spendPub)
		if err != nil {
			w.doShutdown()
			return walletError(ErrInternal,
				"record missing after load", err)
		}
		if data.hasBalances {
			rec.ActualBalance = prec.actualBalance
			rec.PendingBalance = prec.pendingBalance
		} else if rec.Container != nil {
			w.updateBalance(rec.Container)
		}
	}
	if data.hasBalances {
		w.actualBalance = data.actualBalance
		w.pendingBalance = data.pendingBalance
	}

	if err := w.txStore.LoadSnapshot(data.txRecords, data.transferRows); err != nil {
		w.doShutdown()
		return walletError(ErrInternal, "unable to load journal", err)
	}

	var jobs []wtxmgr.UnlockJob
	for _, pjob := range data.unlockJobs {
		rec, err := w.keys.Get(pjob.spendPub)
		if err != nil {
			continue
		}
		jobs = append(jobs, wtxmgr.UnlockJob{
			Height:      pjob.height,
			ContainerID: rec.ContainerID,
			Hash:        pjob.hash,
		})
	}
	w.unlocks.Load(jobs)

	for _, ppending := range data.pendingTxs {
		index := int(ppending.index)
		rec, err := w.txStore.Tx(index)
		if err != nil || rec.State != wtxmgr.TxCreated {
			continue
		}
		w.pending[index] = pendingTx{
			hash: ppending.hash,
			blob: ppending.blob,
		}
	}

	if len(data.blockHashes) != 0 {
		w.setBlockchain(data.blockHashes)
	} else if w.keys.Count() != 0 {
		w.setBlockchain(w.cfg.Synchronizer.ViewKeyKnownBlocks(data.viewPub))
	}

	w.startSynchronizer()
	return nil
}

// encodeSnapshot renders the payload as a tlv stream.
func encodeSnapshot(data *snapshotData) ([]byte, error) {
	spendRecords := encodeSpendRecords(data.spendRecords, data.hasBalances)
	txRecords := encodeTxRecords(data.txRecords)
	transferRows := encodeTransferRows(data.transferRows)
	unlockJobs := encodeUnlockJobs(data.unlockJobs)
	pendingTxs := encodePendingTxs(data.pendingTxs)
	blockHashes := encodeBlockHashes(data.blockHashes)

	balances := make([]byte, 16)
	binary.LittleEndian.PutUint64(balances[0:8], data.actualBalance)
	binary.LittleEndian.PutUint64(balances[8:16], data.pendingBalance)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeViewPublicKey, &data.viewPub),
		tlv.MakePrimitiveRecord(typeViewSecretKey, &data.viewSec),
		tlv.MakePrimitiveRecord(typeSoftLockTime, &data.softLockTime),
		tlv.MakePrimitiveRecord(typeSpendRecords, &spendRecords),
		tlv.MakePrimitiveRecord(typeTxRecords, &txRecords),
		tlv.MakePrimitiveRecord(typeTransferRows, &transferRows),
		tlv.MakePrimitiveRecord(typeUnlockJobs, &unlockJobs),
		tlv.MakePrimitiveRecord(typePendingTxs, &pendingTxs),
		tlv.MakePrimitiveRecord(typeBlockHashes, &blockHashes),
		tlv.MakePrimitiveRecord(typeBalances, &balances),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot parses a tlv stream payload.
func decodeSnapshot(payload []byte, data *snapshotData) error {
	var (
		spendRecords []byte
		txRecords    []byte
		transferRows []byte
		unlockJobs   []byte
		pendingTxs   []byte
		blockHashes  []byte
		balances     []byte
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeViewPublicKey, &data.viewPub),
		tlv.MakePrimitiveRecord(typeViewSecretKey, &data.viewSec),
		tlv.MakePrimitiveRecord(typeSoftLockTime, &data.softLockTime),
		tlv.MakePrimitiveRecord(typeSpendRecords, &spendRecords),
		tlv.MakePrimitiveRecord(typeTxRecords, &txRecords),
		tlv.MakePrimitiveRecord(typeTransferRows, &transferRows),
		tlv.MakePrimitiveRecord(typeUnlockJobs, &unlockJobs),
		tlv.MakePrimitiveRecord(typePendingTxs, &pendingTxs),
		tlv.MakePrimitiveRecord(typeBlockHashes, &blockHashes),
		tlv.MakePrimitiveRecord(typeBalances, &balances),
	)
	if err != nil {
		return err
	}

	if err := stream.Decode(bytes.NewReader(payload)); err != nil {
		return err
	}

	data.spendRecords, data.hasBalances, err = decodeSpendRecords(spendRecords)
	if err != nil {
		return err
	}
	if data.txRecords, err = decodeTxRecords(txRecords); err != nil {
		return err
	}
	if data.transferRows, err = decodeTransferRows(transferRows); err != nil {
		return err
	}
	if data.unlockJobs, err = decodeUnlockJobs(unlockJobs); err != nil {
		return err
	}
	if data.pendingTxs, err = decodePendingTxs(pendingTxs); err != nil {
		return err
	}
	if data.blockHashes, err = decodeBlockHashes(blockHashes); err != nil {
		return err
	}

	if len(balances) == 16 {
		data.actualBalance = binary.LittleEndian.Uint64(balances[0:8])
		data.pendingBalance = binary.LittleEndian.Uint64(balances[8:16])
	}
	return nil
}

// blobWriter accumulates the nested section encodings.
type blobWriter struct {
	buf bytes.Buffer
}

func (w *blobWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *blobWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *blobWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *blobWriter) bytes32(v [32]byte) {
	w.buf.Write(v[:])
}

func (w *blobWriter) varBytes(v []byte) {
	w.u32(uint32(len(v)))
	w.buf.Write(v)
}

// blobReader walks a nested section encoding.
type blobReader struct {
	buf []byte
	pos int
	err error
}

func (r *blobReader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("snapshot section truncated at %d", r.pos)
	}
}

func (r *blobReader) u8() uint8 {
	if r.err != nil || r.pos+1 > len(r.buf) {
		r.fail()
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *blobReader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *blobReader) u64() uint64 {
	if r.err != nil || r.pos+8 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *blobReader) bytes32() [32]byte {
	var v [32]byte
	if r.err != nil || r.pos+32 > len(r.buf) {
		r.fail()
		return v
	}
	copy(v[:], r.buf[r.pos:])
	r.pos += 32
	return v
}

func (r *blobReader) varBytes() []byte {
	n := int(r.u32())
	if r.err != nil || r.pos+n > len(r.buf) {
		r.fail()
		return nil
	}
	v := append([]byte(nil), r.buf[r.pos:r.pos+n]...)
	r.pos += n
	return v
}

func encodeSpendRecords(records []persistedSpendRecord, withBalances bool) []byte {
	var w blobWriter
	if withBalances {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u32(uint32(len(records)))
	for _, rec := range records {
		w.bytes32(rec.spendPub)
		w.bytes32(rec.spendSec)
		w.u64(rec.creationTime)
		if withBalances {
			w.u64(rec.actualBalance)
			w.u64(rec.pendingBalance)
		}
	}
	return w.buf.Bytes()
}

func decodeSpendRecords(blob []byte) ([]persistedSpendRecord, bool, error) {
	r := blobReader{buf: blob}
	withBalances := r.u8() == 1
	count := r.u32()

	var records []persistedSpendRecord
	for i := uint32(0); i < count && r.err == nil; i++ {
		var rec persistedSpendRecord
		rec.spendPub = r.bytes32()
		rec.spendSec = r.bytes32()
		rec.creationTime = r.u64()
		if withBalances {
			rec.actualBalance = r.u64()
			rec.pendingBalance = r.u64()
		}
		records = append(records, rec)
	}
	return records, withBalances, r.err
}

func encodeTxRecords(records []wtxmgr.TxRecord) []byte {
	var w blobWriter
	w.u32(uint32(len(records)))
	for _, rec := range records {
		w.u8(uint8(rec.State))
		w.bytes32(rec.Hash)
		w.u32(rec.BlockHeight)
		w.u64(rec.Timestamp)
		w.u64(rec.UnlockTime)
		w.u64(rec.Fee)
		w.u64(uint64(rec.TotalAmount))
		w.u64(rec.CreationTime)
		if rec.IsCoinbase {
			w.u8(1)
		} else {
			w.u8(0)
		}
		if rec.SecretKey != nil {
			w.u8(1)
			w.bytes32(*rec.SecretKey)
		} else {
			w.u8(0)
		}
		w.varBytes(rec.Extra)
	}
	return w.buf.Bytes()
}

func decodeTxRecords(blob []byte) ([]wtxmgr.TxRecord, error) {
	r := blobReader{buf: blob}
	count := r.u32()

	var records []wtxmgr.TxRecord
	for i := uint32(0); i < count && r.err == nil; i++ {
		var rec wtxmgr.TxRecord
		rec.State = wtxmgr.TxState(r.u8())
		rec.Hash = r.bytes32()
		rec.BlockHeight = r.u32()
		rec.Timestamp = r.u64()
		rec.UnlockTime = r.u64()
		rec.Fee = r.u64()
		rec.TotalAmount = int64(r.u64())
		rec.CreationTime = r.u64()
		rec.IsCoinbase = r.u8() == 1
		if r.u8() == 1 {
			secret := cnutil.SecretKey(r.bytes32())
			rec.SecretKey = &secret
		}
		rec.Extra = r.varBytes()
		records = append(records, rec)
	}
	return records, r.err
}

func encodeTransferRows(rows []wtxmgr.TransferRow) []byte {
	var w blobWriter
	w.u32(uint32(len(rows)))
	for _, row := range rows {
		w.u64(uint64(row.TxIndex))
		w.u8(uint8(row.Type))
		w.u64(uint64(row.Amount))
		w.varBytes([]byte(row.Address))
	}
	return w.buf.Bytes()
}

func decodeTransferRows(blob []byte) ([]wtxmgr.TransferRow, error) {
	r := blobReader{buf: blob}
	count := r.u32()

	var rows []wtxmgr.TransferRow
	for i := uint32(0); i < count && r.err == nil; i++ {
		var row wtxmgr.TransferRow
		row.TxIndex = int(r.u64())
		row.Type = wtxmgr.TransferType(r.u8())
		row.Amount = int64(r.u64())
		row.Address = string(r.varBytes())
		rows = append(rows, row)
	}
	return rows, r.err
}

func encodeUnlockJobs(jobs []persistedUnlockJob) []byte {
	var w blobWriter
	w.u32(uint32(len(jobs)))
	for _, job := range jobs {
		w.u32(job.height)
		w.bytes32(job.hash)
		w.bytes32(job.spendPub)
	}
	return w.buf.Bytes()
}

func decodeUnlockJobs(blob []byte) ([]persistedUnlockJob, error) {
	r := blobReader{buf: blob}
	count := r.u32()

	var jobs []persistedUnlockJob
	for i := uint32(0); i < count && r.err == nil; i++ {
		var job persistedUnlockJob
		job.height = r.u32()
		job.hash = r.bytes32()
		job.spendPub = r.bytes32()
		jobs = append(jobs, job)
	}
	return jobs, r.err
}

func encodePendingTxs(pendingTxs []persistedPendingTx) []byte {
	var w blobWriter
	w.u32(uint32(len(pendingTxs)))
	for _, pending := range pendingTxs {
		w.u64(pending.index)
		w.bytes32(pending.hash)
		w.varBytes(pending.blob)
	}
	return w.buf.Bytes()
}

func decodePendingTxs(blob []byte) ([]persistedPendingTx, error) {
	r := blobReader{buf: blob}
	count := r.u32()

	var pendingTxs []persistedPendingTx
	for i := uint32(0); i < count && r.err == nil; i++ {
		var pending persistedPendingTx
		pending.index = r.u64()
		pending.hash = r.bytes32()
		pending.blob = r.varBytes()
		pendingTxs = append(pendingTxs, pending)
	}
	return pendingTxs, r.err
}

func encodeBlockHashes(hashes []chainhash.Hash) []byte {
	var w blobWriter
	w.u32(uint32(len(hashes)))
	for _, hash := range hashes {
		w.bytes32(hash)
	}
	return w.buf.Bytes()
}

func decodeBlockHashes(blob []byte) ([]chainhash.Hash, error) {
	r := blobReader{buf: blob}
	count := r.u32()

	var hashes []chainhash.Hash
	for i := uint32(0); i < count && r.err == nil; i++ {
		hashes = append(hashes, chainhash.Hash(r.bytes32()))
	}
	return hashes, r.err
}
