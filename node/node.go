// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node - assemble and run the full node
//
// The node owns the three concurrency domains and wires the transport,
// memory pool and transaction indexer into the admission pipeline:
// connection events subscribe a transaction handler on each new
// channel, accepted transactions are indexed, confirmed or evicted
// transactions are deindexed.  Start and Stop bracket the whole
// aggregate; Stop is idempotent and blocks until every domain worker
// has exited.
package node

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/history"
	"github.com/bitmark-inc/fullnoded/storage"
	"github.com/bitmark-inc/fullnoded/subscription"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
	"github.com/bitmark-inc/fullnoded/util"
)

// fixed domain sizes: storage wants parallel reads, the network and
// memory domains rely on single-worker serialization
const (
	networkWorkers = 1
	diskWorkers    = 4
	memoryWorkers  = 1
)

// Channel - one peer connection able to announce transactions
type Channel interface {
	SubscribeTransaction(subscription.Handler)
}

// Transport - the connection source
type Transport interface {
	SubscribeChannel(subscription.Handler)
	Start(completion func(error))
	Stop(completion func(error))
}

// TransactionPool - unconfirmed transaction store
type TransactionPool interface {
	Start()
	Stop()
	Store(tx *transactionrecord.Transaction, confirm func(error),
		admission func(error, []int, *transactionrecord.Transaction))
}

// Indexer - address bookkeeping for pool transactions
type Indexer interface {
	Index(tx *transactionrecord.Transaction, handler func(error))
	Deindex(tx *transactionrecord.Transaction, handler func(error))
	FetchHistory(address account.Address, handler func(error, []history.Row))
}

// Domains - the three execution contexts every collaborator runs on
type Domains struct {
	Network *domain.Domain
	Disk    *domain.Domain
	Memory  *domain.Domain
}

// NewDomains - create the fixed-size domains
func NewDomains() Domains {
	return Domains{
		Network: domain.New("network", networkWorkers),
		Disk:    domain.New("disk", diskWorkers),
		Memory:  domain.New("memory", memoryWorkers),
	}
}

// Node - the assembled full node
type Node struct {
	log          *logger.L
	databasePath string
	domains      Domains
	transport    Transport
	pool         TransactionPool
	indexer      Indexer
	stopOnce     sync.Once
}

// New - wire an aggregate from explicit collaborators
func New(databasePath string, domains Domains, transport Transport, pool TransactionPool, indexer Indexer) *Node {
	return &Node{
		log:          logger.New("node"),
		databasePath: databasePath,
		domains:      domains,
		transport:    transport,
		pool:         pool,
		indexer:      indexer,
	}
}

// Start - bring the aggregate up in dependency order
//
// a storage failure is fatal and is returned for the caller to report;
// transport startup failures are logged but do not stop the node
func (n *Node) Start() error {

	n.log.Info("starting…")

	// must be registered before the transport can deliver connections
	n.transport.SubscribeChannel(n.connectionStarted)

	err := storage.Initialise(n.databasePath)
	if nil != err {
		n.log.Criticalf("storage initialise error: %s", err)
		return err
	}

	n.pool.Start()

	n.transport.Start(func(err error) {
		if nil != err {
			n.log.Errorf("transport start error: %s", err)
		}
	})

	n.log.Info("running")
	return nil
}

// Stop - shut everything down and wait for it
//
// safe to call more than once; must run on a caller goroutine, never
// as a domain task, since it joins the domains
func (n *Node) Stop() {
	n.stopOnce.Do(n.stop)
}

func (n *Node) stop() {

	n.log.Info("stopping…")

	completion := util.NewCompletion()
	n.transport.Stop(completion.Signal)
	err := completion.Wait()
	if nil != err {
		n.log.Errorf("transport stop error: %s", err)
	}

	n.pool.Stop()
	storage.Finalise()

	n.domains.Network.Stop()
	n.domains.Disk.Stop()
	n.domains.Memory.Stop()

	n.domains.Network.Join()
	n.domains.Disk.Join()
	n.domains.Memory.Join()

	n.log.Info("finished")
}

// Indexer - for the query interface
func (n *Node) Indexer() Indexer {
	return n.indexer
}

// DiskDomain - for the query interface
func (n *Node) DiskDomain() *domain.Domain {
	return n.domains.Disk
}

// connection event: subscribe for transactions on the new channel
//
// the connection registration always renews, so later peers still get
// their channels even after one fails
func (n *Node) connectionStarted(err error, item interface{}) subscription.Directive {

	if nil != err {
		n.log.Warnf("connection failed: %s", err)
		return subscription.Renew
	}

	channel, ok := item.(Channel)
	if !ok {
		n.log.Errorf("connection event is not a channel: %v", item)
		return subscription.Renew
	}

	n.log.Info("channel connected")
	channel.SubscribeTransaction(n.receiveTransaction)
	return subscription.Renew
}

// transaction event: feed the pool
//
// renewal is unconditional: a malformed announcement must not mute
// the channel for well-formed ones that follow
func (n *Node) receiveTransaction(err error, item interface{}) subscription.Directive {

	if nil != err {
		n.log.Errorf("transaction receive error: %s", err)
		return subscription.Renew
	}

	tx, ok := item.(*transactionrecord.Transaction)
	if !ok {
		n.log.Errorf("transaction event is not a transaction: %v", item)
		return subscription.Renew
	}

	digest := tx.Digest()
	n.pool.Store(tx,
		func(err error) {
			n.transactionConfirmed(digest, tx, err)
		},
		n.transactionAccepted)

	return subscription.Renew
}

// admission result: index on acceptance, warn on rejection
func (n *Node) transactionAccepted(err error, unconfirmed []int, tx *transactionrecord.Transaction) {

	digest := tx.Digest()

	if nil != err {
		n.log.Warnf("rejected transaction [%v]  error: %s", digest, err)
		return
	}

	suffix := ""
	if 0 != len(unconfirmed) {
		suffix = fmt.Sprintf(" with unconfirmed inputs (%s)", joinIndices(unconfirmed))
	}
	n.log.Infof("Accepted transaction [%v]%s", digest, suffix)

	n.indexer.Index(tx, func(err error) {
		if nil != err {
			n.log.Errorf("index error: %s  transaction: %s", err, digest)
		}
	})
}

// confirmation or eviction: the pool entry is gone, undo the index
func (n *Node) transactionConfirmed(digest transactionrecord.Digest, tx *transactionrecord.Transaction, err error) {

	if nil != err {
		n.log.Warnf("transaction [%v] left the pool with error: %s", digest, err)
	} else {
		n.log.Infof("confirmed transaction [%v]", digest)
	}

	n.indexer.Deindex(tx, func(err error) {
		if nil != err {
			n.log.Errorf("deindex error: %s  transaction: %s", err, digest)
		}
	})
}

func joinIndices(indices []int) string {
	s := make([]string, len(indices))
	for i, index := range indices {
		s[i] = fmt.Sprintf("%d", index)
	}
	return strings.Join(s, ",")
}
