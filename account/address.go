// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package account - payment addresses
//
// An address is the 20 byte hash of an owner's public key, presented
// externally as Base58 with a 4 byte SHA3-256 checksum.
package account

import (
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/fullnoded/fault"
)

// AddressLength - number of bytes in the binary address
const AddressLength = 20

const checksumLength = 4

// Address - binary form of a payment address
type Address [AddressLength]byte

// AddressFromBase58 - decode and checksum-verify an address string
func AddressFromBase58(s string) (Address, error) {

	address := Address{}

	decoded, err := base58.Decode(s)
	if nil != err {
		return address, fault.AddressIsTooShort
	}
	if AddressLength+checksumLength != len(decoded) {
		return address, fault.AddressIsTooShort
	}

	payload := decoded[:AddressLength]
	digest := sha3.Sum256(payload)
	check := decoded[AddressLength:]
	for i := 0; i < checksumLength; i += 1 {
		if digest[i] != check[i] {
			return address, fault.AddressChecksumFailed
		}
	}

	copy(address[:], payload)
	return address, nil
}

// AddressFromBytes - build an address from raw bytes
func AddressFromBytes(buffer []byte) (Address, error) {
	address := Address{}
	if AddressLength != len(buffer) {
		return address, fault.AddressIsTooShort
	}
	copy(address[:], buffer)
	return address, nil
}

// String - Base58 representation with checksum, for the fmt package (for %s)
func (address Address) String() string {
	digest := sha3.Sum256(address[:])
	buffer := make([]byte, 0, AddressLength+checksumLength)
	buffer = append(buffer, address[:]...)
	buffer = append(buffer, digest[:checksumLength]...)
	return base58.Encode(buffer)
}

// GoString - representation for the fmt package (for %#v)
func (address Address) GoString() string {
	return "<address:" + address.String() + ">"
}

// Bytes - the binary address
func (address Address) Bytes() []byte {
	return address[:]
}
