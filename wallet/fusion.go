// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"sort"

	"github.com/DCL2019/cash2/chain"
	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/txsync"
	"github.com/DCL2019/cash2/wtxmgr"
)

// maxFusionOutputCount caps the outputs of a fusion transaction.
const maxFusionOutputCount = 4

// EstimateResult reports how much of the wallet is consolidatable.
type EstimateResult struct {
	// FusionReadyCount is the number of outputs sitting in decimal
	// buckets large enough to fuse.
	FusionReadyCount int

	// TotalOutputCount is the number of spendable outputs considered.
	TotalOutputCount int
}

// EstimateFusion counts outputs that could take part in a fusion transaction
// with the given threshold.
func (w *Wallet) EstimateFusion(threshold uint64) (EstimateResult, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return EstimateResult{}, err
	}
	if err := w.checkNotStopped(); err != nil {
		return EstimateResult{}, err
	}

	var result EstimateResult

	height := w.cfg.Node.LastKnownBlockHeight()
	var bucketSizes [maxAmountBuckets]int
	for _, wallet := range w.pickWalletsWithMoney() {
		for _, out := range wallet.outs {
			power, ok := w.cfg.Currency.IsAmountApplicableInFusionTransactionInput(
				out.Amount, threshold, height)
			if ok {
				bucketSizes[power]++
			}
		}
		result.TotalOutputCount += len(wallet.outs)
	}

	for _, size := range bucketSizes {
		if size >= w.cfg.Currency.FusionTxMinInputCount {
			result.FusionReadyCount += size
		}
	}

	return result, nil
}

// maxAmountBuckets is the number of decimal-order buckets a uint64 amount
// can fall into.
const maxAmountBuckets = 20

// CreateFusionTransaction consolidates small same-decade inputs into fewer
// outputs paid back to the wallet's first address, with zero fee.  It
// returns the journal index of the created and relayed transaction.
func (w *Wallet) CreateFusionTransaction(threshold uint64, mixin int) (int, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkGates(true); err != nil {
		return 0, err
	}

	dustThreshold := w.cfg.Currency.DustThreshold(
		w.cfg.Node.LastKnownBlockHeight())
	if threshold <= dustThreshold {
		return 0, walletError(ErrWrongParameters,
			fmt.Sprintf("threshold must be greater than %d",
				dustThreshold), nil)
	}

	if w.keys.Count() == 0 {
		return 0, walletError(ErrWrongState,
			"fusion requires at least one address", nil)
	}

	estimatedInputs := w.cfg.Currency.ApproximateMaximumInputCount(
		w.cfg.Currency.FusionTxMaxSize, maxFusionOutputCount, mixin)
	if estimatedInputs > w.cfg.Currency.FusionTxMaxInputCount {
		estimatedInputs = w.cfg.Currency.FusionTxMaxInputCount
	}
	if estimatedInputs < w.cfg.Currency.FusionTxMinInputCount {
		return 0, walletError(ErrMixinCountTooBig,
			fmt.Sprintf("mixin %d leaves no room for %d inputs",
				mixin, w.cfg.Currency.FusionTxMinInputCount), nil)
	}

	fusionInputs := w.pickRandomFusionInputs(threshold,
		w.cfg.Currency.FusionTxMinInputCount, estimatedInputs)
	if len(fusionInputs) < w.cfg.Currency.FusionTxMinInputCount {
		return 0, walletError(ErrTransferImpossible,
			"nothing to optimize", nil)
	}

	var (
		mixinResult []chain.RandomOutsForAmount
		err         error
	)
	if mixin != 0 {
		mixinResult, err = w.requestMixinOuts(fusionInputs, mixin)
		if err != nil {
			return 0, err
		}
	}

	keysInfo := prepareInputs(fusionInputs, mixinResult, mixin)

	// Shrink the input set until the serialized transaction fits.
	var (
		tx   TxBuilder
		blob []byte
	)
	for {
		var inputsAmount uint64
		for _, input := range fusionInputs {
			inputsAmount += input.out.Amount
		}

		decomposed := w.decomposeFusionOutputs(inputsAmount)

		tx, err = w.makeTransaction([]ReceiverAmounts{decomposed},
			keysInfo, nil, 0)
		if err != nil {
			return 0, err
		}

		blob, err = tx.Bytes()
		if err != nil {
			return 0, walletError(ErrInternal,
				"unable to serialize fusion transaction", err)
		}

		if uint64(len(blob)) <= w.cfg.Currency.FusionTxMaxSize {
			break
		}

		fusionInputs = fusionInputs[:len(fusionInputs)-1]
		keysInfo = keysInfo[:len(keysInfo)-1]
		if len(fusionInputs) < w.cfg.Currency.FusionTxMinInputCount {
			return 0, walletError(ErrInternal,
				"unable to create fusion transaction", nil)
		}
	}

	return w.validateSaveAndSendTransaction(tx, nil, true, true)
}

// decomposeFusionOutputs decomposes the consolidated amount for the first
// address with no dust and ascending amounts.
func (w *Wallet) decomposeFusionOutputs(inputsAmount uint64) ReceiverAmounts {
	first := w.keys.Records()[0]

	amounts := w.cfg.Currency.DecomposeAmount(inputsAmount, 0)
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	return ReceiverAmounts{
		Receiver: cnutil.AccountAddress{
			SpendPublicKey: first.SpendPublicKey,
			ViewPublicKey:  w.keys.ViewKeys().Public,
		},
		Amounts: amounts,
	}
}

// pickRandomFusionInputs gathers fusion-applicable outputs, picks a random
// decimal bucket holding at least minInputs of them, and returns up to
// maxInputs outputs of that bucket sorted by amount ascending.
func (w *Wallet) pickRandomFusionInputs(threshold uint64, minInputs,
	maxInputs int) []outputToTransfer {

	height := w.cfg.Node.LastKnownBlockHeight()

	var allFusionReady []outputToTransfer
	var bucketSizes [maxAmountBuckets]int
	for _, wallet := range w.pickWalletsWithMoney() {
		for _, out := range wallet.outs {
			power, ok := w.cfg.Currency.IsAmountApplicableInFusionTransactionInput(
				out.Amount, threshold, height)
			if !ok {
				continue
			}
			allFusionReady = append(allFusionReady, outputToTransfer{
				out:    out,
				record: wallet.record,
			})
			bucketSizes[power]++
		}
	}

	// Pick a random bucket with enough members.
	bucketNumbers := w.rng.Perm(maxAmountBuckets)
	selectedBucket := -1
	for _, bucket := range bucketNumbers {
		if bucketSizes[bucket] >= minInputs {
			selectedBucket = bucket
			break
		}
	}
	if selectedBucket < 0 {
		return nil
	}

	lowerBound := uint64(1)
	for i := 0; i < selectedBucket; i++ {
		lowerBound *= 10
	}
	upperBound := uint64(0) // no bound for the top bucket
	if selectedBucket < maxAmountBuckets-1 {
		upperBound = lowerBound * 10
	}

	var selected []outputToTransfer
	for _, candidate := range allFusionReady {
		amount := candidate.out.Amount
		if amount >= lowerBound && (upperBound == 0 || amount < upperBound) {
			selected = append(selected, candidate)
		}
	}

	byAmount := func(outs []outputToTransfer) {
		sort.Slice(outs, func(i, j int) bool {
			return outs[i].out.Amount < outs[j].out.Amount
		})
	}

	if len(selected) <= maxInputs {
		byAmount(selected)
		return selected
	}

	// Uniform sample without replacement, then canonical order.
	trimmed := make([]outputToTransfer, 0, maxInputs)
	for _, pos := range w.rng.Perm(len(selected))[:maxInputs] {
		trimmed = append(trimmed, selected[pos])
	}
	byAmount(trimmed)
	return trimmed
}

// IsFusionTransaction reports whether the journal record at index is a
// fusion transaction.  Classification is a pure function of the record and
// its containers' data, memoized per index.
func (w *Wallet) IsFusionTransaction(index int) (bool, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.checkInitialized(); err != nil {
		return false, err
	}
	if err := w.checkNotStopped(); err != nil {
		return false, err
	}

	rec, err := w.txStore.Tx(index)
	if err != nil {
		return false, walletError(ErrIndexOutOfRange,
			fmt.Sprintf("transaction index %d out of range", index),
			err)
	}

	if cached, ok := w.fusionCache[index]; ok {
		return cached, nil
	}

	result := w.isFusionTransactionRecord(&rec)
	w.fusionCache[index] = result
	return result, nil
}

// isFusionTransactionRecord classifies a record from container data.  The
// cooperative lock must be held.
func (w *Wallet) isFusionTransactionRecord(rec *wtxmgr.TxRecord) bool {
	if rec.Fee != 0 {
		return false
	}

	var (
		inputsSum  uint64
		outputsSum uint64
		inputs     []uint64
		outputs    []uint64
		txInfo     txsync.TransactionInformation
		gotTx      bool
	)

	for _, wallet := range w.keys.Records() {
		for _, out := range wallet.Container.TransactionOutputs(rec.Hash,
			txsync.IncludeAll) {

			for uint32(len(outputs)) <= out.OutputInTransaction {
				outputs = append(outputs, 0)
			}
			outputs[out.OutputInTransaction] = out.Amount
			outputsSum += out.Amount
		}

		for _, in := range wallet.Container.TransactionInputs(rec.Hash,
			txsync.IncludeAll) {

			inputsSum += in.Amount
			inputs = append(inputs, in.Amount)
		}

		if !gotTx {
			info, _, _, ok := wallet.Container.TransactionInformation(
				rec.Hash)
			if ok {
				txInfo = info
				gotTx = true
			}
		}
	}

	if !gotTx {
		return false
	}

	if outputsSum != inputsSum || outputsSum != txInfo.TotalAmountOut ||
		inputsSum != txInfo.TotalAmountIn {

		return false
	}

	// Size is unknown from wallet data alone; amounts decide.
	return w.cfg.Currency.IsFusionTransaction(inputs, outputs, 0,
		w.cfg.Node.LastKnownBlockHeight())
}
