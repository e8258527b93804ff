// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txindex_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/fixtures"
	"github.com/bitmark-inc/fullnoded/history"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
	"github.com/bitmark-inc/fullnoded/txindex"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

func makeAddress(fill byte) account.Address {
	var a account.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func makeTransaction(alice account.Address, bob account.Address, value uint64) *transactionrecord.Transaction {
	return &transactionrecord.Transaction{
		Inputs: []transactionrecord.Input{
			{
				PreviousOutput: transactionrecord.OutPoint{
					TxId:  transactionrecord.NewDigest([]byte{byte(value)}),
					Index: 0,
				},
				Owner: alice,
			},
		},
		Outputs: []transactionrecord.Output{
			{
				Value: value,
				Owner: bob,
			},
		},
	}
}

// run a sentinel task so all prior tasks have completed
func drain(t *testing.T, mem *domain.Domain) {
	done := make(chan struct{})
	err := mem.Submit(func() { close(done) })
	assert.NoError(t, err, "drain submit")
	<-done
}

func TestIndexAndFetch(t *testing.T) {
	mem := domain.New("memory", 1)
	defer func() { mem.Stop(); mem.Join() }()

	alice := makeAddress(0x11)
	bob := makeAddress(0x22)
	tx := makeTransaction(alice, bob, 9000)
	digest := tx.Digest()

	ix := txindex.New(mem)
	ix.Index(tx, func(err error) {
		assert.NoError(t, err, "index")
	})

	var bobRows []history.Row
	ix.FetchHistory(bob, func(err error, rows []history.Row) {
		assert.NoError(t, err, "fetch")
		bobRows = rows
	})
	drain(t, mem)

	if assert.Equal(t, 1, len(bobRows), "bob row count") {
		assert.Equal(t, history.RowOutput, bobRows[0].Kind, "kind")
		assert.Equal(t, digest, bobRows[0].Point.TxId, "txid")
		assert.Equal(t, uint32(0), bobRows[0].Point.Index, "index")
		assert.Equal(t, uint64(history.UnconfirmedHeight), bobRows[0].Height, "height")
		assert.Equal(t, uint64(9000), bobRows[0].Value, "value")
	}

	var aliceRows []history.Row
	ix.FetchHistory(alice, func(err error, rows []history.Row) {
		assert.NoError(t, err, "fetch")
		aliceRows = rows
	})
	drain(t, mem)

	if assert.Equal(t, 1, len(aliceRows), "alice row count") {
		assert.Equal(t, history.RowSpend, aliceRows[0].Kind, "kind")
		assert.Equal(t, digest, aliceRows[0].Point.TxId, "txid")
	}
}

func TestDoubleIndex(t *testing.T) {
	mem := domain.New("memory", 1)
	defer func() { mem.Stop(); mem.Join() }()

	tx := makeTransaction(makeAddress(0x31), makeAddress(0x32), 1)

	ix := txindex.New(mem)
	ix.Index(tx, func(err error) {
		assert.NoError(t, err, "first index")
	})
	ix.Index(tx, func(err error) {
		assert.Equal(t, fault.TransactionAlreadyIndexed, err, "second index")
	})
	drain(t, mem)
}

func TestDeindexRemovesRows(t *testing.T) {
	mem := domain.New("memory", 1)
	defer func() { mem.Stop(); mem.Join() }()

	bob := makeAddress(0x42)
	keep := makeTransaction(makeAddress(0x41), bob, 2)
	gone := makeTransaction(makeAddress(0x41), bob, 3)

	ix := txindex.New(mem)
	ix.Index(keep, func(err error) { assert.NoError(t, err, "index keep") })
	ix.Index(gone, func(err error) { assert.NoError(t, err, "index gone") })
	ix.Deindex(gone, func(err error) { assert.NoError(t, err, "deindex") })

	var rows []history.Row
	ix.FetchHistory(bob, func(err error, r []history.Row) {
		assert.NoError(t, err, "fetch")
		rows = r
	})
	drain(t, mem)

	if assert.Equal(t, 1, len(rows), "row count") {
		assert.Equal(t, keep.Digest(), rows[0].Point.TxId, "surviving row")
	}

	// index is free to accept the transaction again
	ix.Index(gone, func(err error) { assert.NoError(t, err, "reindex") })
	drain(t, mem)
}

func TestDeindexAbsentIsNoOp(t *testing.T) {
	mem := domain.New("memory", 1)
	defer func() { mem.Stop(); mem.Join() }()

	tx := makeTransaction(makeAddress(0x51), makeAddress(0x52), 4)

	ix := txindex.New(mem)
	ix.Deindex(tx, func(err error) {
		assert.NoError(t, err, "deindex absent")
	})
	drain(t, mem)
}

func TestFetchUnknownAddress(t *testing.T) {
	mem := domain.New("memory", 1)
	defer func() { mem.Stop(); mem.Join() }()

	ix := txindex.New(mem)
	ix.FetchHistory(makeAddress(0x61), func(err error, rows []history.Row) {
		assert.NoError(t, err, "fetch")
		assert.Equal(t, 0, len(rows), "rows")
	})
	drain(t, mem)
}
