// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"math"
	"sort"

	"github.com/DCL2019/cash2/chain"
	"github.com/DCL2019/cash2/cnutil"
	"github.com/DCL2019/cash2/keystore"
	"github.com/DCL2019/cash2/txsync"
	"github.com/DCL2019/cash2/wtxmgr"
)

// TransferOrder is one requested destination of a transfer.
type TransferOrder struct {
	Address string
	Amount  uint64
}

// DonationSettings enables an automatic donation leg: whenever the change
// can spare canonical denominations up to Threshold, they are redirected to
// Address.  Both fields must be set together.
type DonationSettings struct {
	Address   string
	Threshold uint64
}

// TransactionParameters describes a requested transfer.
type TransactionParameters struct {
	// SourceAddresses restricts input selection to the listed owned
	// addresses.  Empty means all addresses with spendable funds.
	SourceAddresses []string

	Destinations []TransferOrder

	Fee uint64

	// Mixin is the number of decoy ring members per input.
	Mixin int

	Extra []byte

	UnlockTimestamp uint64

	Donation DonationSettings

	// ChangeDestination receives the change.  It may be left empty only
	// when the change destination is unambiguous: a single source
	// address, or a wallet with a single address.
	ChangeDestination string
}

// walletOuts couples a spend record with its spendable outputs.
type walletOuts struct {
	record *keystore.SpendRecord
	outs   []txsync.OutputInfo
}

// outputToTransfer is one selected input candidate.
type outputToTransfer struct {
	out    txsync.OutputInfo
	record *keystore.SpendRecord
}

// inputInfo couples a ring description with the record that can sign it.
type inputInfo struct {
	keyInfo InputKeyInfo
	record  *keystore.SpendRecord
}

// ReceiverAmounts is one destination with its decomposed amounts.
type ReceiverAmounts struct {
	Receiver cnutil.AccountAddress
	Amounts  []uint64
}

// preparedTransaction is the output of input selection and composition,
// ready for validation and persistence.
type preparedTransaction struct {
	tx           TxBuilder
	destinations []wtxmgr.Transfer
	neededMoney  uint64
	changeAmount uint64
}

// validateTransactionParameters rejects malformed transfer requests before
// any state is touched.  The cooperative lock must be held.
func (w *Wallet) validateTransactionParameters(params *TransactionParameters) error {
	if len(params.Destinations) == 0 {
		return walletError(ErrZeroDestination,
			"transfer has no destinations", nil)
	}

	minimalFee := w.cfg.Node.MinimalFee()
	if params.Fee < minimalFee {
		return walletError(ErrFeeTooSmall,
			fmt.Sprintf("fee %s is less than minimum fee %s",
				w.cfg.Currency.FormatAmount(params.Fee),
				w.cfg.Currency.FormatAmount(minimalFee)), nil)
	}

	if (params.Donation.Address == "") != (params.Donation.Threshold == 0) {
		return walletError(ErrWrongParameters,
			"donation address and threshold must be set together",
			nil)
	}

	for _, source := range params.SourceAddresses {
		if !w.cfg.Currency.ValidateAddress(source) {
			return walletError(ErrBadAddress,
				fmt.Sprintf("unable to parse source address %q",
					source), nil)
		}
		if !w.isMyAddress(source) {
			return walletError(ErrBadAddress,
				fmt.Sprintf("source address %q does not belong "+
					"to the wallet", source), nil)
		}
	}

	for _, order := range params.Destinations {
		if !w.cfg.Currency.ValidateAddress(order.Address) {
			return walletError(ErrBadAddress,
				fmt.Sprintf("unable to parse destination "+
					"address %q", order.Address), nil)
		}
		if order.Amount >= math.MaxInt64 {
			return walletError(ErrWrongAmount,
				fmt.Sprintf("order amount %d is out of range",
					order.Amount), nil)
		}
	}

	if params.ChangeDestination == "" {
		if len(params.SourceAddresses) > 1 {
			return walletError(ErrChangeAddressRequired,
				"change destination is required with multiple "+
					"source addresses", nil)
		}
		if len(params.SourceAddresses) == 0 && w.keys.Count() > 1 {
			return walletError(ErrChangeAddressRequired,
				"change destination is required for a "+
					"multi-address wallet", nil)
		}
		return nil
	}

	if !w.cfg.Currency.ValidateAddress(params.ChangeDestination) {
		return walletError(ErrBadAddress,
			"unable to parse change destination address", nil)
	}
	if !w.isMyAddress(params.ChangeDestination) {
		return walletError(ErrChangeAddressNotFound,
			"change destination address does not belong to the "+
				"wallet", nil)
	}

	return nil
}

// changeDestination resolves the change address per the validation rules.
// The cooperative lock must be held.
func (w *Wallet) changeDestination(changeAddress string,
	sourceAddresses []string) (cnutil.AccountAddress, error) {

	if changeAddress != "" {
		return w.parseAddress(changeAddress)
	}

	if w.keys.Count() == 1 {
		rec, err := w.keys.At(0)
		if err != nil {
			return cnutil.AccountAddress{}, err
		}
		return cnutil.AccountAddress{
			SpendPublicKey: rec.SpendPublicKey,
			ViewPublicKey:  w.keys.ViewKeys().Public,
		}, nil
	}

	return w.parseAddress(sourceAddresses[0])
}

// convertOrdersToTransfers renders orders as positive usual transfers.
func convertOrdersToTransfers(orders []TransferOrder) ([]wtxmgr.Transfer, error) {
	transfers := make([]wtxmgr.Transfer, 0, len(orders))
	for _, order := range orders {
		if order.Amount > math.MaxInt64 {
			return nil, walletError(ErrWrongAmount,
				fmt.Sprintf("order amount %d is out of range",
					order.Amount), nil)
		}
		transfers = append(transfers, wtxmgr.Transfer{
			Type:    wtxmgr.TransferUsual,
			Address: order.Address,
			Amount:  int64(order.Amount),
		})
	}
	return transfers, nil
}

// countNeededMoney sums the destinations and the fee with overflow checks.
func countNeededMoney(destinations []wtxmgr.Transfer, fee uint64) (uint64, error) {
	var needed uint64
	for _, destination := range destinations {
		if destination.Amount == 0 {
			return 0, walletError(ErrZeroDestination,
				"destination amount is zero", nil)
		}
		if destination.Amount < 0 {
			return 0, walletError(ErrWrongAmount,
				"destination amount is negative", nil)
		}

		amount := uint64(destination.Amount)
		needed += amount
		if needed < amount {
			return 0, walletError(ErrSumOverflow,
				"destination amounts overflow", nil)
		}
	}

	needed += fee
	if needed < fee {
		return 0, walletError(ErrSumOverflow,
			"destination amounts and fee overflow", nil)
	}
	return needed, nil
}

// pickWallet loads one address' spendable outputs.  The cooperative lock
// must be held.
func (w *Wallet) pickWallet(address string) (walletOuts, error) {
	rec, err := w.recordForAddress(address)
	if err != nil {
		return walletOuts{}, err
	}
	return walletOuts{
		record: rec,
		outs:   rec.Container.Outputs(txsync.IncludeUnlocked),
	}, nil
}

// pickWallets loads the spendable outputs of the listed addresses, skipping
// empty ones.  The cooperative lock must be held.
func (w *Wallet) pickWallets(addresses []string) ([]walletOuts, error) {
	wallets := make([]walletOuts, 0, len(addresses))
	for _, address := range addresses {
		wallet, err := w.pickWallet(address)
		if err != nil {
			return nil, err
		}
		if len(wallet.outs) != 0 {
			wallets = append(wallets, wallet)
		}
	}
	return wallets, nil
}

// pickWalletsWithMoney loads the spendable outputs of every address with a
// non-zero actual balance.  The cooperative lock must be held.
func (w *Wallet) pickWalletsWithMoney() []walletOuts {
	var wallets []walletOuts
	for _, rec := range w.keys.Records() {
		if rec.ActualBalance == 0 {
			continue
		}
		wallets = append(wallets, walletOuts{
			record: rec,
			outs:   rec.Container.Outputs(txsync.IncludeUnlocked),
		})
	}
	return wallets
}

// selectTransfers picks spendable outputs covering neededMoney: a uniformly
// random wallet, then a uniformly random output of it, accepting dust at
// most once and only when dustAllowed.  The found total may fall short; the
// caller decides.
func (w *Wallet) selectTransfers(neededMoney uint64, dustAllowed bool,
	dustThreshold uint64, wallets []walletOuts) (uint64, []outputToTransfer) {

	var (
		found    uint64
		selected []outputToTransfer
	)

	for found < neededMoney && len(wallets) != 0 {
		walletIndex := w.rng.Intn(len(wallets))
		outs := wallets[walletIndex].outs

		outIndex := w.rng.Intn(len(outs))
		out := outs[outIndex]

		if out.Amount > dustThreshold || dustAllowed {
			if out.Amount <= dustThreshold {
				dustAllowed = false
			}

			found += out.Amount
			selected = append(selected, outputToTransfer{
				out:    out,
				record: wallets[walletIndex].record,
			})
		}

		wallets[walletIndex].outs = append(outs[:outIndex],
			outs[outIndex+1:]...)
		if len(wallets[walletIndex].outs) == 0 {
			wallets = append(wallets[:walletIndex],
				wallets[walletIndex+1:]...)
		}
	}

	if !dustAllowed {
		return found, selected
	}

	// Dust was allowed but never used: one final pass adds a single dust
	// output if any remains, whether or not found already covers
	// neededMoney.
	for _, wallet := range wallets {
		for _, out := range wallet.outs {
			if out.Amount <= dustThreshold {
				found += out.Amount
				selected = append(selected, outputToTransfer{
					out:    out,
					record: wallet.record,
				})
				return found, selected
			}
		}
	}

	return found, selected
}

// requestMixinOuts asks the node for mixin decoys covering every selected
// input amount.  The cooperative lock is held across the round-trip; the
// completion re-enters through a channel.
func (w *Wallet) requestMixinOuts(selected []outputToTransfer,
	mixin int) ([]chain.RandomOutsForAmount, error) {

	amounts := make([]uint64, 0, len(selected))
	for _, input := range selected {
		amounts = append(amounts, input.out.Amount)
	}

	if err := w.checkNotStopped(); err != nil {
		return nil, err
	}

	type mixinResult struct {
		outs []chain.RandomOutsForAmount
		err  error
	}
	done := make(chan mixinResult, 1)

	w.cfg.Node.GetRandomOutsByAmounts(amounts, mixin,
		func(outs []chain.RandomOutsForAmount, err error) {
			done <- mixinResult{outs: outs, err: err}
		})

	result := <-done
	if result.err != nil {
		return nil, walletError(ErrInternal,
			"random outputs request failed", result.err)
	}

	if err := checkIfEnoughMixins(result.outs, mixin); err != nil {
		return nil, err
	}

	return result.outs, nil
}

// checkIfEnoughMixins verifies the node returned at least mixin decoys for
// every amount.
func checkIfEnoughMixins(outs []chain.RandomOutsForAmount, mixin int) error {
	if mixin == 0 {
		return nil
	}

	for _, perAmount := range outs {
		if len(perAmount.Outs) < mixin {
			return walletError(ErrMixinCountTooBig,
				fmt.Sprintf("node returned %d mixins for "+
					"amount %d, need %d",
					len(perAmount.Outs), perAmount.Amount,
					mixin), nil)
		}
	}
	return nil
}

// prepareInputs assembles one ring per selected input: the decoys sorted by
// global index ascending with the real output spliced in preserving the
// order.  Inputs keep the selection order.
func prepareInputs(selected []outputToTransfer,
	mixinResult []chain.RandomOutsForAmount, mixin int) []inputInfo {

	keysInfo := make([]inputInfo, 0, len(selected))

	for i, input := range selected {
		keyInfo := InputKeyInfo{
			Amount: input.out.Amount,
		}

		if len(mixinResult) != 0 {
			fakes := mixinResult[i].Outs
			sort.Slice(fakes, func(a, b int) bool {
				return fakes[a].GlobalIndex < fakes[b].GlobalIndex
			})

			for _, fake := range fakes {
				if fake.GlobalIndex == input.out.GlobalOutputIndex {
					continue
				}
				keyInfo.Outputs = append(keyInfo.Outputs,
					GlobalOutput{
						OutputIndex: fake.GlobalIndex,
						TargetKey:   fake.OutKey,
					})
				if len(keyInfo.Outputs) >= mixin {
					break
				}
			}
		}

		// Splice the real output into its index-ordered position.
		pos := sort.Search(len(keyInfo.Outputs), func(j int) bool {
			return keyInfo.Outputs[j].OutputIndex >=
				input.out.GlobalOutputIndex
		})
		keyInfo.Outputs = append(keyInfo.Outputs, GlobalOutput{})
		copy(keyInfo.Outputs[pos+1:], keyInfo.Outputs[pos:])
		keyInfo.Outputs[pos] = GlobalOutput{
			OutputIndex: input.out.GlobalOutputIndex,
			TargetKey:   input.out.OutputKey,
		}

		keyInfo.RealOutput = RealOutput{
			TransactionPublicKey: input.out.TransactionPublicKey,
			TransactionIndex:     pos,
			OutputInTransaction:  input.out.OutputInTransaction,
		}

		keysInfo = append(keysInfo, inputInfo{
			keyInfo: keyInfo,
			record:  input.record,
		})
	}

	return keysInfo
}

// splitAmount decomposes one destination amount.
func (w *Wallet) splitAmount(amount uint64, destination cnutil.AccountAddress,
	dustThreshold uint64) ReceiverAmounts {

	return ReceiverAmounts{
		Receiver: destination,
		Amounts:  w.cfg.Currency.DecomposeAmount(amount, dustThreshold),
	}
}

// splitDestinations decomposes every destination independently.
func (w *Wallet) splitDestinations(destinations []wtxmgr.Transfer,
	dustThreshold uint64) ([]ReceiverAmounts, error) {

	decomposed := make([]ReceiverAmounts, 0, len(destinations))
	for _, destination := range destinations {
		address, err := w.parseAddress(destination.Address)
		if err != nil {
			return nil, err
		}
		decomposed = append(decomposed,
			w.splitAmount(uint64(destination.Amount), address,
				dustThreshold))
	}
	return decomposed, nil
}

// calculateDonationAmount greedily packs decomposed denominations of the
// free amount under the donation threshold.
func (w *Wallet) calculateDonationAmount(freeAmount, donationThreshold,
	dustThreshold uint64) uint64 {

	decomposed := w.cfg.Currency.DecomposeAmount(freeAmount, dustThreshold)
	sort.Slice(decomposed, func(i, j int) bool {
		return decomposed[i] > decomposed[j]
	})

	var donation uint64
	for _, amount := range decomposed {
		if amount <= donationThreshold-donation {
			donation += amount
		}
	}
	return donation
}

// pushDonationTransferIfPossible appends a donation leg when the settings
// allow one, returning the donated amount.
func (w *Wallet) pushDonationTransferIfPossible(donation DonationSettings,
	freeAmount, dustThreshold uint64,
	destinations []wtxmgr.Transfer) ([]wtxmgr.Transfer, uint64, error) {

	if donation.Address == "" || donation.Threshold == 0 {
		return destinations, 0, nil
	}

	if donation.Threshold > math.MaxInt64 {
		return nil, 0, walletError(ErrWrongAmount,
			fmt.Sprintf("donation threshold %d is out of range",
				donation.Threshold), nil)
	}

	amount := w.calculateDonationAmount(freeAmount, donation.Threshold,
		dustThreshold)
	if amount != 0 {
		destinations = append(destinations, wtxmgr.Transfer{
			Type:    wtxmgr.TransferDonation,
			Address: donation.Address,
			Amount:  int64(amount),
		})
	}

	return destinations, amount, nil
}

// makeAccountKeys bundles the signing keys of one spend record.
func (w *Wallet) makeAccountKeys(rec *keystore.SpendRecord) txsync.AccountKeys {
	return txsync.AccountKeys{
		Address: cnutil.AccountAddress{
			SpendPublicKey: rec.SpendPublicKey,
			ViewPublicKey:  w.keys.ViewKeys().Public,
		},
		ViewSecretKey:  w.keys.ViewKeys().Secret,
		SpendSecretKey: rec.SpendSecretKey,
	}
}

// makeTransaction builds and signs a transaction from decomposed outputs and
// prepared ring inputs.  Outputs are shuffled with the crypto-seeded rng for
// unlinkability, then stable-sorted by amount for a canonical wire order.
func (w *Wallet) makeTransaction(decomposedOutputs []ReceiverAmounts,
	keysInfo []inputInfo, extra []byte, unlockTime uint64) (TxBuilder, error) {

	tx := w.cfg.TxFactory()

	type amountToAddress struct {
		address *cnutil.AccountAddress
		amount  uint64
	}
	var outputs []amountToAddress
	for i := range decomposedOutputs {
		receiver := &decomposedOutputs[i].Receiver
		for _, amount := range decomposedOutputs[i].Amounts {
			outputs = append(outputs, amountToAddress{
				address: receiver,
				amount:  amount,
			})
		}
	}

	w.rng.Shuffle(len(outputs), func(i, j int) {
		outputs[i], outputs[j] = outputs[j], outputs[i]
	})
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].amount < outputs[j].amount
	})

	for _, output := range outputs {
		if err := tx.AddOutput(output.amount, *output.address); err != nil {
			return nil, walletError(ErrInternal,
				"unable to add transaction output", err)
		}
	}

	tx.SetUnlockTime(unlockTime)
	if len(extra) != 0 {
		if err := tx.AppendExtra(extra); err != nil {
			return nil, walletError(ErrInternal,
				"unable to append transaction extra", err)
		}
	}

	inputIndexes := make([]int, 0, len(keysInfo))
	for i := range keysInfo {
		index, err := tx.AddInput(w.makeAccountKeys(keysInfo[i].record),
			keysInfo[i].keyInfo)
		if err != nil {
			return nil, walletError(ErrInternal,
				"unable to add transaction input", err)
		}
		inputIndexes = append(inputIndexes, index)
	}

	for _, index := range inputIndexes {
		if err := tx.SignInput(index); err != nil {
			return nil, walletError(ErrInternal,
				"unable to sign transaction input", err)
		}
	}

	return tx, nil
}

// prepareTransaction selects inputs, requests mixins, resolves donation and
// change, and composes the signed transaction.  The cooperative lock must be
// held.
func (w *Wallet) prepareTransaction(wallets []walletOuts,
	orders []TransferOrder, fee uint64, mixin int, extra []byte,
	unlockTime uint64, donation DonationSettings,
	changeDestination cnutil.AccountAddress) (*preparedTransaction, error) {

	destinations, err := convertOrdersToTransfers(orders)
	if err != nil {
		return nil, err
	}

	neededMoney, err := countNeededMoney(destinations, fee)
	if err != nil {
		return nil, err
	}

	dustThreshold := w.cfg.Currency.DustThreshold(
		w.cfg.Node.LastKnownBlockHeight())

	foundMoney, selected := w.selectTransfers(neededMoney, mixin == 0,
		dustThreshold, wallets)
	if foundMoney < neededMoney {
		return nil, walletError(ErrWrongAmount,
			fmt.Sprintf("found %s, need %s",
				w.cfg.Currency.FormatAmount(foundMoney),
				w.cfg.Currency.FormatAmount(neededMoney)), nil)
	}

	var mixinResult []chain.RandomOutsForAmount
	if mixin != 0 {
		mixinResult, err = w.requestMixinOuts(selected, mixin)
		if err != nil {
			return nil, err
		}
	}

	keysInfo := prepareInputs(selected, mixinResult, mixin)

	destinations, donationAmount, err := w.pushDonationTransferIfPossible(
		donation, foundMoney-neededMoney, dustThreshold, destinations)
	if err != nil {
		return nil, err
	}
	changeAmount := foundMoney - neededMoney - donationAmount

	decomposedOutputs, err := w.splitDestinations(destinations, dustThreshold)
	if err != nil {
		return nil, err
	}
	if changeAmount != 0 {
		destinations = append(destinations, wtxmgr.Transfer{
			Type:    wtxmgr.TransferChange,
			Address: w.cfg.Currency.FormatAddress(changeDestination),
			Amount:  int64(changeAmount),
		})
		decomposedOutputs = append(decomposedOutputs,
			w.splitAmount(changeAmount, changeDestination,
				dustThreshold))
	}

	tx, err := w.makeTransaction(decomposedOutputs, keysInfo, extra,
		unlockTime)
	if err != nil {
		return nil, err
	}

	return &preparedTransaction{
		tx:           tx,
		destinations: destinations,
		neededMoney:  neededMoney,
		changeAmount: changeAmount,
	}, nil
}
