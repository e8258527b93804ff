// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package history - address history rows and the asynchronous lookup
// combining confirmed rows from storage with unconfirmed rows from
// the transaction indexer
package history

import (
	"encoding/binary"
	"fmt"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
)

// Kind - what a row records about an address
type Kind byte

const (
	RowOutput Kind = iota // the address received an output
	RowSpend              // the address spent an output
)

// UnconfirmedHeight - height value for rows still in the memory pool
const UnconfirmedHeight = 0

// Row - one entry in an address's history
type Row struct {
	Kind   Kind
	Point  transactionrecord.OutPoint
	Height uint64
	Value  uint64
}

// String - console row format
func (row Row) String() string {
	tag := "OUTPUT:"
	if RowSpend == row.Kind {
		tag = "SPEND: "
	}
	return fmt.Sprintf("%s %s:%d %d %d", tag, row.Point.TxId, row.Point.Index, row.Height, row.Value)
}

// storage layout for one confirmed row
//
// key:   address || txid || index || kind
// value: height || value
const (
	keyLength   = account.AddressLength + transactionrecord.DigestLength + 4 + 1
	valueLength = 8 + 8
)

// PackKey - the History pool key for a row of this address
func PackKey(address account.Address, row Row) []byte {
	key := make([]byte, 0, keyLength)
	key = append(key, address[:]...)
	key = append(key, row.Point.TxId[:]...)

	index := make([]byte, 4)
	binary.BigEndian.PutUint32(index, row.Point.Index)
	key = append(key, index...)

	return append(key, byte(row.Kind))
}

// PackValue - the History pool value for a row
func PackValue(row Row) []byte {
	value := make([]byte, valueLength)
	binary.BigEndian.PutUint64(value[:8], row.Height)
	binary.BigEndian.PutUint64(value[8:], row.Value)
	return value
}

// UnpackRow - rebuild a row from a History pool element
//
// the key must already have the address prefix removed
func UnpackRow(key []byte, value []byte) (Row, error) {

	row := Row{}

	if keyLength-account.AddressLength != len(key) || valueLength != len(value) {
		return row, fault.MessageIsMalformed
	}

	n := copy(row.Point.TxId[:], key)
	row.Point.Index = binary.BigEndian.Uint32(key[n:])
	row.Kind = Kind(key[n+4])

	row.Height = binary.BigEndian.Uint64(value[:8])
	row.Value = binary.BigEndian.Uint64(value[8:])

	return row, nil
}
