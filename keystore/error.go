// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific KeyStoreError.
const (
	// ErrDuplicateKey indicates an attempt to add a spend record whose
	// public key is already present.
	ErrDuplicateKey ErrorCode = iota

	// ErrModeMismatch indicates an attempt to mix tracking and spending
	// records in one store.
	ErrModeMismatch

	// ErrNotFound indicates that no record matches the requested key.
	ErrNotFound

	// ErrIndexOutOfRange indicates that the requested record index does
	// not address a record.
	ErrIndexOutOfRange
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateKey:    "ErrDuplicateKey",
	ErrModeMismatch:    "ErrModeMismatch",
	ErrNotFound:        "ErrNotFound",
	ErrIndexOutOfRange: "ErrIndexOutOfRange",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// KeyStoreError provides a single type for errors that can happen during
// key store operation.
type KeyStoreError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e KeyStoreError) Error() string {
	return e.Description
}

// storeError creates a KeyStoreError given a set of arguments.
func storeError(c ErrorCode, desc string) KeyStoreError {
	return KeyStoreError{ErrorCode: c, Description: desc}
}

// IsError returns whether the error is a KeyStoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	kerr, ok := err.(KeyStoreError)
	return ok && kerr.ErrorCode == code
}
