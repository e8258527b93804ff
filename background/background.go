// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package background - run a set of background processes with a
// common shutdown signal
package background

// T - handle for the started set
type T struct {
	s []shutdown
}

type shutdown struct {
	shutdown chan struct{}
	finished chan struct{}
}

// Process - one long-running background loop
//
// Run must return promptly after the shutdown channel is closed
type Process interface {
	Run(args interface{}, shutdown <-chan struct{})
}

// Processes - list of processes to start
type Processes []Process

// Start - run each process in its own goroutine
func Start(processes Processes, args interface{}) *T {

	register := new(T)
	register.s = make([]shutdown, len(processes))

	for i, p := range processes {
		shutdown := make(chan struct{})
		finished := make(chan struct{})
		register.s[i].shutdown = shutdown
		register.s[i].finished = finished
		go func(p Process, shutdown <-chan struct{}, finished chan<- struct{}) {
			p.Run(args, shutdown)
			close(finished)
		}(p, shutdown, finished)
	}
	return register
}

// Stop - signal shutdown and wait for all processes to finish
func (t *T) Stop() {

	if nil == t {
		return
	}

	for _, shutdown := range t.s {
		close(shutdown.shutdown)
	}

	for _, shutdown := range t.s {
		<-shutdown.finished
	}
}
