// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Provides a single instance of errors to allow easy comparison
// without having to resort to partial string matches
package fault

// error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	AddressChecksumFailed      = InvalidError("address checksum failed")
	AddressIsTooShort          = InvalidError("address is too short")
	AlreadyInitialised         = ProcessError("already initialised")
	ChannelNotConnected        = ProcessError("channel not connected")
	ConnectionRefused          = ProcessError("connection refused")
	DatabaseVersionMismatch    = InvalidError("database version mismatch")
	DomainOverloaded           = ProcessError("domain overloaded")
	DomainStopped              = ProcessError("domain stopped")
	InvalidConnectionAddress   = InvalidError("invalid connection address")
	InvalidCount               = InvalidError("invalid count")
	InvalidLoggerChannel       = InvalidError("invalid logger channel")
	InvalidPrivateKey          = InvalidError("invalid private key")
	InvalidPublicKey           = InvalidError("invalid public key")
	MessageIsMalformed         = InvalidError("message is malformed")
	NotInitialised             = ProcessError("not initialised")
	RateLimiting               = ProcessError("rate limiting")
	SessionAlreadyStarted      = ProcessError("session already started")
	SessionNotStarted          = ProcessError("session not started")
	TransactionAlreadyExists   = ExistsError("transaction already exists")
	TransactionAlreadyIndexed  = ExistsError("transaction already indexed")
	TransactionEvicted         = ProcessError("transaction evicted")
	TransactionIsMalformed     = InvalidError("transaction is malformed")
	TransactionIsNotInThePool  = NotFoundError("transaction is not in the pool")
	WrongLengthForChecksum     = InvalidError("wrong length for checksum")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// IsErrExists - determine if an error is of the exists class
func IsErrExists(e error) bool { _, ok := e.(ExistsError); return ok }

// IsErrInvalid - determine if an error is of the invalid class
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

// IsErrNotFound - determine if an error is of the not found class
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }

// IsErrProcess - determine if an error is of the process class
func IsErrProcess(e error) bool { _, ok := e.(ProcessError); return ok }
