// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package currency

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// mainNetGenesisHash is the hash of the main network genesis block.
var mainNetGenesisHash = mustHash(
	"b6fd6fc48f993d3df7f4bbc0ec3bd9c7b9054b5d54ef6b599b82a15a7ef489b1")

// MainNet is the parameter table of the production network.
var MainNet = Currency{
	Name:                       "mainnet",
	GenesisBlockHash:           mainNetGenesisHash,
	AddressPrefix:              0x06,
	DisplayDecimalPoint:        12,
	MinimumFee:                 1000000,
	BlockGrantedFullRewardZone: 100000,
	MinerTxBlobReservedSize:    600,
	BlockFutureTimeLimit:       60 * 60 * 2,
	AccountCreateTimeAccuracy:  60 * 60 * 24,
	MaxTxExtraSize:             1024,
	FusionTxMaxSize:            100000 * 30 / 100,
	FusionTxMinInputCount:      12,
	FusionTxMaxInputCount:      100,
	FusionTxMinInOutRatio:      4,
	DustThresholds: []DustStep{
		{Height: 0, Threshold: 1000000},
	},
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}
