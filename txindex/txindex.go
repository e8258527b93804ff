// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txindex - correlate memory pool transactions with the
// addresses they affect
//
// The index answers history queries for transactions that are not yet
// in a block.  Every mutation runs as a task on the one-worker memory
// domain, so the maps need no locking.
//
// A transaction is never indexed twice without an intervening deindex;
// deindexing an absent transaction is a no-op, not an error, because
// confirmation may race admission and arrive first.
package txindex

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/history"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
)

// Indexer - the in-memory address index
type Indexer struct {
	log     *logger.L
	mem     *domain.Domain
	rows    map[account.Address][]history.Row
	indexed map[transactionrecord.Digest][]account.Address
}

// New - create an indexer bound to the memory domain
func New(mem *domain.Domain) *Indexer {
	return &Indexer{
		log:     logger.New("txindex"),
		mem:     mem,
		rows:    make(map[account.Address][]history.Row),
		indexed: make(map[transactionrecord.Digest][]account.Address),
	}
}

// Index - add rows for every address the transaction affects
//
// handler runs on the memory domain
func (ix *Indexer) Index(tx *transactionrecord.Transaction, handler func(error)) {
	err := ix.mem.Submit(func() {
		handler(ix.doIndex(tx))
	})
	if nil != err {
		handler(err)
	}
}

// Deindex - remove all rows belonging to the transaction
//
// handler runs on the memory domain
func (ix *Indexer) Deindex(tx *transactionrecord.Transaction, handler func(error)) {
	err := ix.mem.Submit(func() {
		handler(ix.doDeindex(tx))
	})
	if nil != err {
		handler(err)
	}
}

// FetchHistory - unconfirmed rows for one address
//
// handler runs on the memory domain and receives a private copy
func (ix *Indexer) FetchHistory(address account.Address, handler func(error, []history.Row)) {
	err := ix.mem.Submit(func() {
		rows := make([]history.Row, len(ix.rows[address]))
		copy(rows, ix.rows[address])
		handler(nil, rows)
	})
	if nil != err {
		handler(err, nil)
	}
}

// memory domain only
func (ix *Indexer) doIndex(tx *transactionrecord.Transaction) error {

	digest := tx.Digest()

	if _, ok := ix.indexed[digest]; ok {
		ix.log.Errorf("double index: %s", digest)
		return fault.TransactionAlreadyIndexed
	}

	addresses := make([]account.Address, 0, len(tx.Inputs)+len(tx.Outputs))

	for i, input := range tx.Inputs {
		row := history.Row{
			Kind: history.RowSpend,
			Point: transactionrecord.OutPoint{
				TxId:  digest,
				Index: uint32(i),
			},
			Height: history.UnconfirmedHeight,
		}
		ix.rows[input.Owner] = append(ix.rows[input.Owner], row)
		addresses = append(addresses, input.Owner)
	}

	for i, output := range tx.Outputs {
		row := history.Row{
			Kind: history.RowOutput,
			Point: transactionrecord.OutPoint{
				TxId:  digest,
				Index: uint32(i),
			},
			Height: history.UnconfirmedHeight,
			Value:  output.Value,
		}
		ix.rows[output.Owner] = append(ix.rows[output.Owner], row)
		addresses = append(addresses, output.Owner)
	}

	ix.indexed[digest] = addresses
	ix.log.Debugf("indexed: %s", digest)
	return nil
}

// memory domain only
func (ix *Indexer) doDeindex(tx *transactionrecord.Transaction) error {

	digest := tx.Digest()

	addresses, ok := ix.indexed[digest]
	if !ok {
		// never indexed, or already deindexed: tolerated
		ix.log.Debugf("deindex of absent transaction: %s", digest)
		return nil
	}

	for _, address := range addresses {
		kept := ix.rows[address][:0]
		for _, row := range ix.rows[address] {
			if row.Point.TxId != digest {
				kept = append(kept, row)
			}
		}
		if 0 == len(kept) {
			delete(ix.rows, address)
		} else {
			ix.rows[address] = kept
		}
	}

	delete(ix.indexed, digest)
	ix.log.Debugf("deindexed: %s", digest)
	return nil
}
