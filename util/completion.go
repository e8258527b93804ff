// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package util - small helpers shared across the node
package util

import "sync"

// Completion - a one-shot signal carrying the outcome of an
// asynchronous operation
//
// single producer, single consumer: the lifecycle manager hands
// Signal to a subsystem as its stop callback and blocks on Wait
// until that callback fires
type Completion struct {
	once sync.Once
	ch   chan error
}

// NewCompletion - create an unsignalled completion
func NewCompletion() *Completion {
	return &Completion{
		ch: make(chan error, 1),
	}
}

// Signal - deliver the outcome; calls after the first are ignored
func (c *Completion) Signal(err error) {
	c.once.Do(func() {
		c.ch <- err
	})
}

// Wait - block until Signal has been called and return its error
func (c *Completion) Wait() error {
	return <-c.ch
}
