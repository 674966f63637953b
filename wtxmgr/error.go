// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrDuplicateHash indicates an attempt to insert a transaction whose
	// hash is already recorded in the store.
	ErrDuplicateHash ErrorCode = iota

	// ErrUnknownHash indicates that the requested transaction hash is not
	// known to the store.
	ErrUnknownHash

	// ErrIndexOutOfRange indicates that the requested transaction index
	// does not address a stored record.
	ErrIndexOutOfRange

	// ErrMalformedSnapshot indicates that a snapshot being loaded is
	// internally inconsistent.
	ErrMalformedSnapshot
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateHash:     "ErrDuplicateHash",
	ErrUnknownHash:       "ErrUnknownHash",
	ErrIndexOutOfRange:   "ErrIndexOutOfRange",
	ErrMalformedSnapshot: "ErrMalformedSnapshot",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during store
// operation.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	return e.Description
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string) StoreError {
	return StoreError{ErrorCode: c, Description: desc}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	serr, ok := err.(StoreError)
	return ok && serr.ErrorCode == code
}
