// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package history

import (
	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/storage"
)

// PoolFetcher - source of unconfirmed rows, satisfied by the
// transaction indexer
type PoolFetcher interface {
	FetchHistory(address account.Address, handler func(error, []Row))
}

// Fetch - asynchronous address history lookup
//
// confirmed rows are read from storage on the disk domain, then the
// indexer appends rows for transactions still in the memory pool;
// the handler runs on the indexer's domain
//
// no internal state: this is a thin pass-through
func Fetch(disk *domain.Domain, pool PoolFetcher, address account.Address, handler func(error, []Row)) {

	err := disk.Submit(func() {

		confirmed, err := fetchConfirmed(address)
		if nil != err {
			handler(err, nil)
			return
		}

		pool.FetchHistory(address, func(err error, unconfirmed []Row) {
			if nil != err {
				handler(err, nil)
				return
			}
			handler(nil, merge(confirmed, unconfirmed))
		})
	})
	if nil != err {
		handler(err, nil)
	}
}

// read all confirmed rows for one address
func fetchConfirmed(address account.Address) ([]Row, error) {

	elements := storage.Pool.History.Scan(address[:])

	rows := make([]Row, 0, len(elements))
	for _, element := range elements {
		row, err := UnpackRow(element.Key[account.AddressLength:], element.Value)
		if nil != err {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// append pool rows, skipping any that duplicate a confirmed entry
//
// a pool transaction races its own confirmation: once the block is
// processed the same point appears in storage, so the pool copy of
// that row must not be reported twice
func merge(confirmed []Row, unconfirmed []Row) []Row {

	rows := confirmed

pool:
	for _, row := range unconfirmed {
		for _, existing := range confirmed {
			if existing.Kind == row.Kind && existing.Point == row.Point {
				continue pool
			}
		}
		rows = append(rows, row)
	}
	return rows
}
