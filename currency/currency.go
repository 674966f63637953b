// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package currency holds the read-only currency parameter table consulted by
// the wallet: genesis hash, dust policy, amount decomposition, fusion
// predicates, and the account address codec.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/DCL2019/cash2/cnutil"
)

// maxAmountDigits is the number of decimal digits a uint64 amount can carry.
const maxAmountDigits = 20

// checksumLen is the number of checksum bytes appended to the address
// payload before base58 encoding.
const checksumLen = 4

// DustStep is one height-threshold entry of the dust policy table.
type DustStep struct {
	Height    uint32
	Threshold uint64
}

// Currency is the parameter table for one network.  All methods are pure
// reads; a Currency value is safe for concurrent use.
type Currency struct {
	// Name is the human-readable network name.
	Name string

	// GenesisBlockHash is the hash of block 0.
	GenesisBlockHash chainhash.Hash

	// AddressPrefix tags the base58 address payload.
	AddressPrefix byte

	// DisplayDecimalPoint is the number of fractional digits shown by
	// FormatAmount.
	DisplayDecimalPoint uint

	// MinimumFee is the fall-back relay fee when the node cannot be
	// asked.
	MinimumFee uint64

	// BlockGrantedFullRewardZone and MinerTxBlobReservedSize bound the
	// serialized size of a standard transaction.
	BlockGrantedFullRewardZone uint64
	MinerTxBlobReservedSize    uint64

	// BlockFutureTimeLimit is the tolerated clock skew of block
	// timestamps, in seconds.
	BlockFutureTimeLimit uint64

	// AccountCreateTimeAccuracy widens the synchronization start point of
	// a freshly added address, in seconds.
	AccountCreateTimeAccuracy uint64

	// MaxTxExtraSize caps the extra field of a relayed transaction.
	MaxTxExtraSize int

	// Fusion transaction policy.
	FusionTxMaxSize         uint64
	FusionTxMinInputCount   int
	FusionTxMaxInputCount   int
	FusionTxMinInOutRatio   int

	// DustThresholds maps activation heights to dust thresholds, ordered
	// by ascending height.
	DustThresholds []DustStep
}

// DustThreshold returns the dust threshold in effect at the given height.
func (c *Currency) DustThreshold(height uint32) uint64 {
	threshold := uint64(0)
	for _, step := range c.DustThresholds {
		if height < step.Height {
			break
		}
		threshold = step.Threshold
	}
	return threshold
}

// DecomposeAmount splits amount into canonical denominations: one summand of
// the form d*10^k per non-zero decimal digit, except that the low-order digits
// are folded into a single leading dust summand for as long as their running
// sum stays at or below dustThreshold.  The dust summand therefore never
// exceeds dustThreshold.  The summands add up to amount exactly.
func (c *Currency) DecomposeAmount(amount, dustThreshold uint64) []uint64 {
	var (
		decomposed []uint64
		dust       uint64
		order      uint64 = 1
	)

	for amount != 0 {
		digit := amount % 10
		amount /= 10

		chunk := digit * order
		order *= 10
		if chunk == 0 {
			continue
		}

		if dust+chunk <= dustThreshold {
			dust += chunk
		} else {
			decomposed = append(decomposed, chunk)
		}
	}

	if dust != 0 {
		decomposed = append([]uint64{dust}, decomposed...)
	}

	return decomposed
}

// IsCanonicalAmount reports whether amount is a single canonical denomination
// d*10^k with 1 <= d <= 9, and returns the power of ten k.
func IsCanonicalAmount(amount uint64) (uint8, bool) {
	if amount == 0 {
		return 0, false
	}

	var powerOfTen uint8
	for amount%10 == 0 {
		amount /= 10
		powerOfTen++
	}
	return powerOfTen, amount <= 9
}

// IsAmountApplicableInFusionTransactionInput reports whether an output of
// the given amount may be consolidated by a fusion transaction with the
// passed threshold, and if so in which decimal-order bucket it belongs.
func (c *Currency) IsAmountApplicableInFusionTransactionInput(amount, threshold uint64, height uint32) (uint8, bool) {
	if amount >= threshold {
		return 0, false
	}

	if amount <= c.DustThreshold(height) {
		return 0, false
	}

	powerOfTen, canonical := IsCanonicalAmount(amount)
	if !canonical {
		return 0, false
	}

	return powerOfTen, true
}

// IsFusionTransaction reports whether a transaction with the given input and
// output amounts qualifies as a fusion transaction under the currency policy.
// A size of zero skips the size check (used when only amounts are known).
func (c *Currency) IsFusionTransaction(inputs, outputs []uint64, size uint64, height uint32) bool {
	if size != 0 && size > c.FusionTxMaxSize {
		return false
	}

	if len(inputs) < c.FusionTxMinInputCount {
		return false
	}

	if len(inputs) < len(outputs)*c.FusionTxMinInOutRatio {
		return false
	}

	var inputsTotal uint64
	for _, amount := range inputs {
		inputsTotal += amount
	}

	for _, amount := range inputs {
		if _, ok := c.IsAmountApplicableInFusionTransactionInput(amount, inputsTotal, height); !ok {
			return false
		}
	}

	expected := c.DecomposeAmount(inputsTotal, 0)
	sortAmounts(expected)
	if len(expected) != len(outputs) {
		return false
	}
	for i, amount := range expected {
		if outputs[i] != amount {
			return false
		}
	}

	return true
}

// ApproximateMaximumInputCount estimates how many inputs with the given
// mixin fit into a transaction of transactionSize bytes with outputCount
// outputs.
func (c *Currency) ApproximateMaximumInputCount(transactionSize uint64, outputCount, mixin int) int {
	const (
		keyImageSize       = 32
		outputKeySize      = 32
		amountSize         = 8 + 1 // varint
		globalIndexesSize  = 1 + 4
		signatureSize      = 64
		inputTagSize       = 1
		outputTagSize      = 1
		publicKeySize      = 32
		headerSize         = 1 + (8 + 1) + 1 + publicKeySize
		globalIndexDelta   = 4
	)

	outputsSize := uint64(outputCount) * (outputTagSize + outputKeySize + amountSize)
	inputSize := uint64(inputTagSize + amountSize + keyImageSize + signatureSize + globalIndexesSize)
	inputSize += uint64(mixin) * (globalIndexDelta + signatureSize)

	if transactionSize < headerSize+outputsSize {
		return 0
	}

	return int((transactionSize - headerSize - outputsSize) / inputSize)
}

// FormatAmount renders an atomic amount with the currency's decimal point.
func (c *Currency) FormatAmount(amount uint64) string {
	s := fmt.Sprintf("%0*d", c.DisplayDecimalPoint+1, amount)
	point := len(s) - int(c.DisplayDecimalPoint)
	return s[:point] + "." + s[point:]
}

// FormatAddress encodes the account address in the currency's base58check
// address format.
func (c *Currency) FormatAddress(address cnutil.AccountAddress) string {
	payload := make([]byte, 0, 1+2*cnutil.KeyLen+checksumLen)
	payload = append(payload, c.AddressPrefix)
	payload = append(payload, address.SpendPublicKey[:]...)
	payload = append(payload, address.ViewPublicKey[:]...)

	checksum := chainhash.DoubleHashB(payload)[:checksumLen]
	payload = append(payload, checksum...)

	return base58.Encode(payload)
}

// ParseAddress decodes an address string produced by FormatAddress.  The
// boolean result reports whether the string is a well-formed address of this
// currency.
func (c *Currency) ParseAddress(s string) (cnutil.AccountAddress, bool) {
	var address cnutil.AccountAddress

	if s == "" || strings.ContainsAny(s, " \t\n") {
		return address, false
	}

	payload := base58.Decode(s)
	if len(payload) != 1+2*cnutil.KeyLen+checksumLen {
		return address, false
	}

	if payload[0] != c.AddressPrefix {
		return address, false
	}

	body := payload[:len(payload)-checksumLen]
	checksum := payload[len(payload)-checksumLen:]
	expected := chainhash.DoubleHashB(body)[:checksumLen]
	for i := range checksum {
		if checksum[i] != expected[i] {
			return address, false
		}
	}

	copy(address.SpendPublicKey[:], payload[1:1+cnutil.KeyLen])
	copy(address.ViewPublicKey[:], payload[1+cnutil.KeyLen:1+2*cnutil.KeyLen])
	return address, true
}

// ValidateAddress reports whether s parses as an address of this currency.
func (c *Currency) ValidateAddress(s string) bool {
	_, ok := c.ParseAddress(s)
	return ok
}

// sortAmounts sorts an amount slice ascending in place.
func sortAmounts(amounts []uint64) {
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
}
