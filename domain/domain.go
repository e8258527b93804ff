// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package domain - isolated pools of worker goroutines
//
// A node partitions its work into three independent domains: network,
// disk and memory.  Each domain owns a fixed number of workers draining
// a single task queue, so a one-worker domain serialises every task
// submitted to it.  All memory pool and index mutation is confined to
// the one-worker memory domain instead of using fine grained locks.
package domain

import (
	"sync"
	"sync/atomic"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/fault"
)

// queue must absorb bursts from the network without blocking the poller
const taskQueueSize = 1000

// Domain - a fixed set of workers with a shared task queue
type Domain struct {
	sync.Mutex // to protect stopping

	log      *logger.L
	name     string
	tasks    chan func()
	active   int32
	stopping bool
	wg       sync.WaitGroup
}

// New - create a domain and start its workers
func New(name string, workers int) *Domain {

	d := &Domain{
		log:   logger.New("domain-" + name),
		name:  name,
		tasks: make(chan func(), taskQueueSize),
	}

	d.log.Infof("starting %d workers…", workers)

	d.wg.Add(workers)
	for i := 0; i < workers; i += 1 {
		go d.worker(i)
	}
	return d
}

// Name - the name given at creation
func (d *Domain) Name() string {
	return d.name
}

// Submit - queue a task for execution by one of the workers
//
// tasks submitted from a single goroutine execute in submission order
// on a one-worker domain; returns fault.DomainStopped after Stop and
// fault.DomainOverloaded when the queue is full
//
// never blocks, so a task may submit to its own domain
func (d *Domain) Submit(task func()) error {
	d.Lock()
	defer d.Unlock()

	if d.stopping {
		return fault.DomainStopped
	}
	select {
	case d.tasks <- task:
		return nil
	default:
		return fault.DomainOverloaded
	}
}

// Stop - refuse further submissions and let queued tasks drain
//
// in-flight and queued work is never interrupted
func (d *Domain) Stop() {
	d.Lock()
	defer d.Unlock()

	if d.stopping {
		return
	}
	d.stopping = true
	close(d.tasks)
	d.log.Info("stopping…")
}

// Join - block until every worker has exited
//
// must only be called after Stop and never from a task running on
// this domain, as that would deadlock the wait
func (d *Domain) Join() {
	d.wg.Wait()
	d.log.Info("finished")
}

// ActiveWorkers - number of workers that have not yet exited
func (d *Domain) ActiveWorkers() int {
	return int(atomic.LoadInt32(&d.active))
}

// task execution loop
func (d *Domain) worker(n int) {
	atomic.AddInt32(&d.active, 1)
	defer atomic.AddInt32(&d.active, -1)
	defer d.wg.Done()

	d.log.Debugf("worker: %d starting…", n)

	for task := range d.tasks {
		task()
	}

	d.log.Debugf("worker: %d finished", n)
}
