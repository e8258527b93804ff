// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transactionrecord - the transaction as seen on the wire
//
// Only the structure needed by the admission pipeline is modelled
// here: inputs referencing previous outputs and outputs assigning
// value to addresses.  A transaction is identified everywhere by the
// SHA3-256 digest of its packed bytes.
package transactionrecord

import (
	"encoding/binary"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/fault"
)

// OutPoint - reference to one output of an earlier transaction
type OutPoint struct {
	TxId  Digest
	Index uint32
}

// Input - spend of a previous output
//
// Owner is the address the previous output paid to; the wire protocol
// resolves it before delivery so the indexer never needs a lookup
type Input struct {
	PreviousOutput OutPoint
	Owner          account.Address
}

// Output - value assigned to an address
type Output struct {
	Value uint64
	Owner account.Address
}

// Transaction - a transaction observed on the network
type Transaction struct {
	Inputs  []Input
	Outputs []Output
}

// packed field sizes
const (
	countSize    = 2
	outPointSize = DigestLength + 4
	inputSize    = outPointSize + account.AddressLength
	outputSize   = 8 + account.AddressLength
)

// Pack - serialise to the canonical byte form used for digests and storage
func (tx *Transaction) Pack() []byte {

	buffer := make([]byte, 0, 2*countSize+len(tx.Inputs)*inputSize+len(tx.Outputs)*outputSize)

	count := make([]byte, countSize)
	binary.BigEndian.PutUint16(count, uint16(len(tx.Inputs)))
	buffer = append(buffer, count...)

	for _, input := range tx.Inputs {
		buffer = append(buffer, input.PreviousOutput.TxId[:]...)
		index := make([]byte, 4)
		binary.BigEndian.PutUint32(index, input.PreviousOutput.Index)
		buffer = append(buffer, index...)
		buffer = append(buffer, input.Owner[:]...)
	}

	binary.BigEndian.PutUint16(count, uint16(len(tx.Outputs)))
	buffer = append(buffer, count...)

	for _, output := range tx.Outputs {
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, output.Value)
		buffer = append(buffer, value...)
		buffer = append(buffer, output.Owner[:]...)
	}

	return buffer
}

// Unpack - decode a packed transaction
func Unpack(buffer []byte) (*Transaction, error) {

	if len(buffer) < 2*countSize {
		return nil, fault.TransactionIsMalformed
	}

	n := 0
	inputCount := int(binary.BigEndian.Uint16(buffer[n:]))
	n += countSize

	if len(buffer) < n+inputCount*inputSize+countSize {
		return nil, fault.TransactionIsMalformed
	}

	tx := &Transaction{
		Inputs: make([]Input, inputCount),
	}

	for i := 0; i < inputCount; i += 1 {
		copy(tx.Inputs[i].PreviousOutput.TxId[:], buffer[n:])
		n += DigestLength
		tx.Inputs[i].PreviousOutput.Index = binary.BigEndian.Uint32(buffer[n:])
		n += 4
		copy(tx.Inputs[i].Owner[:], buffer[n:])
		n += account.AddressLength
	}

	outputCount := int(binary.BigEndian.Uint16(buffer[n:]))
	n += countSize

	if len(buffer) != n+outputCount*outputSize {
		return nil, fault.TransactionIsMalformed
	}

	tx.Outputs = make([]Output, outputCount)
	for i := 0; i < outputCount; i += 1 {
		tx.Outputs[i].Value = binary.BigEndian.Uint64(buffer[n:])
		n += 8
		copy(tx.Outputs[i].Owner[:], buffer[n:])
		n += account.AddressLength
	}

	return tx, nil
}

// Addresses - the unique set of addresses this transaction affects
//
// order follows first appearance: inputs then outputs
func (tx *Transaction) Addresses() []account.Address {

	seen := make(map[account.Address]struct{})
	addresses := make([]account.Address, 0, len(tx.Inputs)+len(tx.Outputs))

	add := func(a account.Address) {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			addresses = append(addresses, a)
		}
	}

	for _, input := range tx.Inputs {
		add(input.Owner)
	}
	for _, output := range tx.Outputs {
		add(output.Owner)
	}

	return addresses
}
