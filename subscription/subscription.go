// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package subscription - one-shot event registrations that renew
// themselves on demand
//
// A registration is consumed by the event that fires it.  Instead of
// requiring the handler to resubscribe as its last action, the handler
// returns a directive: Renew keeps the registration alive for the next
// event, Drop retires it.  This makes the renew-on-every-path versus
// renew-on-success-only distinction an explicit return value.
package subscription

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/domain"
)

// Directive - a handler's decision about its own registration
type Directive int

const (
	Renew Directive = iota // stay subscribed for the next event
	Drop                   // retire the registration
)

// Handler - receives one event from the source
//
// err and item come from the event source: exactly one of them is
// meaningful, never both
type Handler func(err error, item interface{}) Directive

// Registry - the subscription point for one event source
//
// at most one registration is live at any time; events that arrive
// while the handler is out on the domain are queued behind it, events
// delivered while nothing is registered are discarded
type Registry struct {
	sync.Mutex // to protect handler, busy and pending

	log     *logger.L
	name    string
	dom     *domain.Domain
	handler Handler
	busy    bool
	pending []event
}

// an event held back while the registration is checked out
type event struct {
	err  error
	item interface{}
}

// NewRegistry - create a registry whose handlers run as tasks on
// the given domain
func NewRegistry(name string, dom *domain.Domain) *Registry {
	return &Registry{
		log:  logger.New("subscription-" + name),
		name: name,
		dom:  dom,
	}
}

// Subscribe - register the handler for the next event
//
// replaces any live registration; replacing is a programming error
// and is logged
func (r *Registry) Subscribe(handler Handler) {
	r.Lock()
	if nil != r.handler || r.busy {
		r.log.Error("replacing a live registration")
	}
	r.handler = handler
	r.Unlock()
}

// IsSubscribed - true while a registration is live, including while
// its handler is running
func (r *Registry) IsSubscribed() bool {
	r.Lock()
	defer r.Unlock()
	return nil != r.handler || r.busy
}

// Deliver - hand one event to the live registration
//
// the registration is consumed before the handler runs; events that
// arrive while it is out are queued and replayed in delivery order
// after the handler renews, so a burst of deliveries loses nothing
func (r *Registry) Deliver(err error, item interface{}) {

	r.Lock()
	if r.busy {
		r.pending = append(r.pending, event{err: err, item: item})
		r.Unlock()
		return
	}
	handler := r.handler
	if nil == handler {
		r.Unlock()
		r.log.Warnf("dropped event: error: %v", err)
		return
	}
	r.handler = nil
	r.busy = true
	r.Unlock()

	r.dispatch(handler, event{err: err, item: item})
}

// run one handler invocation as a domain task
func (r *Registry) dispatch(handler Handler, ev event) {
	submitErr := r.dom.Submit(func() {
		r.finish(handler, handler(ev.err, ev.item))
	})
	if nil != submitErr {
		r.Lock()
		r.busy = false
		dropped := len(r.pending)
		r.pending = nil
		r.Unlock()
		r.log.Warnf("deliver abandoned: %s  queued events lost: %d", submitErr, dropped)
	}
}

// reinstate or retire the registration and replay queued events
//
// a handler subscribed while this one was out keeps the slot; the
// renewal never overwrites it
func (r *Registry) finish(handler Handler, directive Directive) {
	r.Lock()
	if Renew == directive && nil == r.handler {
		r.handler = handler
	}

	next := r.handler
	if nil == next || 0 == len(r.pending) {
		r.busy = false
		dropped := len(r.pending)
		r.pending = nil
		r.Unlock()
		if 0 < dropped {
			r.log.Warnf("dropped %d queued events", dropped)
		}
		return
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	r.handler = nil
	r.Unlock()

	r.dispatch(next, ev)
}
