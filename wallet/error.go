// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific WalletError.
const (
	// ErrNotInitialized indicates a call on a wallet that has not been
	// initialized or loaded yet.
	ErrNotInitialized ErrorCode = iota

	// ErrAlreadyInitialized indicates a second initialization attempt.
	ErrAlreadyInitialized

	// ErrWrongState indicates an operation that is invalid in the
	// wallet's current lifecycle state.
	ErrWrongState

	// ErrOperationCancelled indicates the wallet was stopped while the
	// operation was pending or before it started.
	ErrOperationCancelled

	// ErrWrongPassword indicates a password mismatch.
	ErrWrongPassword

	// ErrKeyGeneration indicates the key generator failed to derive or
	// mint a key.
	ErrKeyGeneration

	// ErrBadAddress indicates an unparsable address, a foreign source
	// address, or an attempt to mix tracking and spending addresses.
	ErrBadAddress

	// ErrAddressAlreadyExists indicates the spend key is already present.
	ErrAddressAlreadyExists

	// ErrObjectNotFound indicates the requested entity is not known to
	// the wallet.
	ErrObjectNotFound

	// ErrWalletNotFound indicates no spend record matches the request.
	ErrWalletNotFound

	// ErrIndexOutOfRange indicates a transaction or transfer index beyond
	// the journal.
	ErrIndexOutOfRange

	// ErrWrongParameters indicates malformed request parameters.
	ErrWrongParameters

	// ErrWrongAmount indicates an amount that is zero where forbidden,
	// out of range, or short of the requested total.
	ErrWrongAmount

	// ErrZeroDestination indicates a transfer without destinations or
	// with a zero-amount destination.
	ErrZeroDestination

	// ErrSumOverflow indicates the destination amounts overflow.
	ErrSumOverflow

	// ErrFeeTooSmall indicates a fee below the node's minimum.
	ErrFeeTooSmall

	// ErrChangeAddressRequired indicates an ambiguous change destination.
	ErrChangeAddressRequired

	// ErrChangeAddressNotFound indicates a change destination that does
	// not belong to the wallet.
	ErrChangeAddressNotFound

	// ErrMixinCountTooBig indicates the node cannot supply enough decoy
	// outputs for the requested mixin.
	ErrMixinCountTooBig

	// ErrTransactionSizeTooBig indicates the built transaction exceeds
	// the relay size limit.
	ErrTransactionSizeTooBig

	// ErrExtraTooLarge indicates the extra payload exceeds the limit.
	ErrExtraTooLarge

	// ErrTransferImpossible indicates a commit of a transaction that is
	// not pending in the created state.
	ErrTransferImpossible

	// ErrCancelImpossible indicates a rollback of a transaction that is
	// not pending in the created state.
	ErrCancelImpossible

	// ErrTrackingMode indicates a spending operation on a tracking
	// wallet.
	ErrTrackingMode

	// ErrInternal indicates an inconsistency the wallet cannot recover
	// from.
	ErrInternal
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrNotInitialized:        "ErrNotInitialized",
	ErrAlreadyInitialized:    "ErrAlreadyInitialized",
	ErrWrongState:            "ErrWrongState",
	ErrOperationCancelled:    "ErrOperationCancelled",
	ErrWrongPassword:         "ErrWrongPassword",
	ErrKeyGeneration:         "ErrKeyGeneration",
	ErrBadAddress:            "ErrBadAddress",
	ErrAddressAlreadyExists:  "ErrAddressAlreadyExists",
	ErrObjectNotFound:        "ErrObjectNotFound",
	ErrWalletNotFound:        "ErrWalletNotFound",
	ErrIndexOutOfRange:       "ErrIndexOutOfRange",
	ErrWrongParameters:       "ErrWrongParameters",
	ErrWrongAmount:           "ErrWrongAmount",
	ErrZeroDestination:       "ErrZeroDestination",
	ErrSumOverflow:           "ErrSumOverflow",
	ErrFeeTooSmall:           "ErrFeeTooSmall",
	ErrChangeAddressRequired: "ErrChangeAddressRequired",
	ErrChangeAddressNotFound: "ErrChangeAddressNotFound",
	ErrMixinCountTooBig:      "ErrMixinCountTooBig",
	ErrTransactionSizeTooBig: "ErrTransactionSizeTooBig",
	ErrExtraTooLarge:         "ErrExtraTooLarge",
	ErrTransferImpossible:    "ErrTransferImpossible",
	ErrCancelImpossible:      "ErrCancelImpossible",
	ErrTrackingMode:          "ErrTrackingMode",
	ErrInternal:              "ErrInternal",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// WalletError provides a single type for errors that can happen during
// wallet operation.
type WalletError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e WalletError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e WalletError) Unwrap() error {
	return e.Err
}

// walletError creates a WalletError given a set of arguments.
func walletError(c ErrorCode, desc string, err error) WalletError {
	return WalletError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a WalletError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	werr, ok := err.(WalletError)
	return ok && werr.ErrorCode == code
}
