// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool - hold transactions awaiting confirmation
//
// The pool keeps every accepted transaction together with the confirm
// callback supplied at store time.  All map access runs as tasks on
// the one-worker memory domain.  A background process evicts entries
// that have waited too long, firing their confirm callback with
// fault.TransactionEvicted so downstream bookkeeping is undone.
package mempool

import (
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/background"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
)

// DefaultExpiry - how long a transaction may stay unconfirmed
const DefaultExpiry = time.Hour

// lower bound for the expiry scan interval
const minimumCheckInterval = 10 * time.Millisecond

type entry struct {
	tx      *transactionrecord.Transaction
	confirm func(error)
	arrival time.Time
}

// Pool - the unconfirmed transaction store
type Pool struct {
	log        *logger.L
	mem        *domain.Domain
	expiry     time.Duration
	entries    map[transactionrecord.Digest]*entry
	background *background.T
}

// New - create a pool bound to the memory domain
//
// expiry of zero selects DefaultExpiry
func New(mem *domain.Domain, expiry time.Duration) *Pool {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Pool{
		log:     logger.New("mempool"),
		mem:     mem,
		expiry:  expiry,
		entries: make(map[transactionrecord.Digest]*entry),
	}
}

// Start - begin the expiry background process
func (p *Pool) Start() {
	p.log.Info("starting…")
	processes := background.Processes{p}
	p.background = background.Start(processes, nil)
}

// Stop - end the expiry background process
//
// queued Store and Confirm tasks still run until the memory domain
// itself stops
func (p *Pool) Stop() {
	p.background.Stop()
	p.log.Info("finished")
}

// Store - admit a transaction
//
// admission and confirm run on the memory domain; unconfirmed lists
// the indices of inputs whose previous transaction is itself still
// in the pool
func (p *Pool) Store(
	tx *transactionrecord.Transaction,
	confirm func(error),
	admission func(error, []int, *transactionrecord.Transaction),
) {
	err := p.mem.Submit(func() {
		p.doStore(tx, confirm, admission)
	})
	if nil != err {
		admission(err, nil, tx)
	}
}

// Confirm - fire the stored confirm callback and drop the entry
//
// confirming an absent digest is ignored, so eviction racing a late
// block confirmation is harmless
func (p *Pool) Confirm(digest transactionrecord.Digest, result error) {
	err := p.mem.Submit(func() {
		e, ok := p.entries[digest]
		if !ok {
			p.log.Debugf("confirm of absent transaction: %s", digest)
			return
		}
		delete(p.entries, digest)
		p.log.Infof("confirmed: %s", digest)
		e.confirm(result)
	})
	if nil != err {
		p.log.Warnf("confirm dropped: %s  error: %s", digest, err)
	}
}

// memory domain only
func (p *Pool) doStore(
	tx *transactionrecord.Transaction,
	confirm func(error),
	admission func(error, []int, *transactionrecord.Transaction),
) {
	digest := tx.Digest()

	if _, ok := p.entries[digest]; ok {
		admission(fault.TransactionAlreadyExists, nil, tx)
		return
	}
	if 0 == len(tx.Outputs) {
		admission(fault.TransactionIsMalformed, nil, tx)
		return
	}

	var unconfirmed []int
	for i, input := range tx.Inputs {
		if _, ok := p.entries[input.PreviousOutput.TxId]; ok {
			unconfirmed = append(unconfirmed, i)
		}
	}

	p.entries[digest] = &entry{
		tx:      tx,
		confirm: confirm,
		arrival: time.Now(),
	}

	p.log.Debugf("stored: %s", digest)
	admission(nil, unconfirmed, tx)
}

// Run - periodic eviction loop (implements background.Process)
func (p *Pool) Run(args interface{}, shutdown <-chan struct{}) {

	interval := p.expiry / 10
	if interval < minimumCheckInterval {
		interval = minimumCheckInterval
	}

	for {
		select {
		case <-shutdown:
			return
		case <-time.After(interval):
			err := p.mem.Submit(p.expire)
			if nil != err {
				return
			}
		}
	}
}

// memory domain only
func (p *Pool) expire() {
	cutoff := time.Now().Add(-p.expiry)
	for digest, e := range p.entries {
		if e.arrival.Before(cutoff) {
			delete(p.entries, digest)
			p.log.Warnf("evicted: %s", digest)
			e.confirm(fault.TransactionEvicted)
		}
	}
}
