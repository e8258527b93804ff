// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/fixtures"
	"github.com/bitmark-inc/fullnoded/subscription"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()
	m.Run()
}

// drain the domain so all delivered handlers have run
func drain(t *testing.T, d *domain.Domain) {
	done := make(chan struct{})
	err := d.Submit(func() { close(done) })
	if nil != err {
		t.Fatalf("submit error: %s", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("domain did not drain")
	}
}

// a renewing handler sees every event
func TestRenew(t *testing.T) {

	d := domain.New("renew", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("renew", d)

	received := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		received += 1
		return subscription.Renew
	})

	for i := 0; i < 5; i += 1 {
		r.Deliver(nil, i)
		drain(t, d)
	}

	assert.Equal(t, 5, received, "events lost")
	assert.True(t, r.IsSubscribed(), "registration not renewed")
}

// consecutive deliveries must all reach a renewing handler even when
// they arrive before the first one has run
func TestBackToBackDeliveries(t *testing.T) {

	d := domain.New("burst", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("burst", d)

	events := make(chan interface{}, 4)
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		events <- item
		return subscription.Renew
	})

	r.Deliver(nil, "first")
	r.Deliver(nil, "second") // arrives while the handler is out

	for _, expected := range []string{"first", "second"} {
		select {
		case item := <-events:
			assert.Equal(t, expected, item, "events out of order")
		case <-time.After(time.Second):
			t.Fatalf("event %q lost", expected)
		}
	}

	drain(t, d)
	assert.True(t, r.IsSubscribed(), "registration not renewed")
}

// a handler subscribed while the previous one is running keeps the
// slot; the renewal must not overwrite it
func TestSubscribeDuringDelivery(t *testing.T) {

	d := domain.New("replace", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("replace", d)

	entered := make(chan struct{})
	release := make(chan struct{})
	oldEvents := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		oldEvents += 1
		close(entered)
		<-release
		return subscription.Renew
	})

	r.Deliver(nil, "held")
	<-entered

	newEvents := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		newEvents += 1
		return subscription.Renew
	})
	close(release)
	drain(t, d)

	r.Deliver(nil, "next")
	drain(t, d)

	assert.Equal(t, 1, oldEvents, "renewal overwrote the replacement")
	assert.Equal(t, 1, newEvents, "replacement never saw an event")
}

// renewal must be unconditional across error deliveries when the
// handler says so
func TestRenewOnErrorPath(t *testing.T) {

	d := domain.New("renew-error", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("renew-error", d)

	errors := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		if nil != err {
			errors += 1
		}
		return subscription.Renew
	})

	// seven consecutive malformed deliveries…
	for i := 0; i < 7; i += 1 {
		r.Deliver(fault.MessageIsMalformed, nil)
		drain(t, d)
	}

	// …and the source is still subscribed for the next one
	assert.Equal(t, 7, errors, "error deliveries lost")
	assert.True(t, r.IsSubscribed(), "channel permanently muted")
}

// a dropping handler retires the registration
func TestDrop(t *testing.T) {

	d := domain.New("drop", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("drop", d)

	received := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		received += 1
		return subscription.Drop
	})

	r.Deliver(nil, "one")
	drain(t, d)
	r.Deliver(nil, "two") // nobody listening: discarded
	drain(t, d)

	assert.Equal(t, 1, received, "event after drop was delivered")
	assert.False(t, r.IsSubscribed(), "registration still live after drop")
}

// delivery with no live registration is discarded, not queued
func TestDeliverUnsubscribed(t *testing.T) {

	d := domain.New("unsub", 1)
	defer func() { d.Stop(); d.Join() }()

	r := subscription.NewRegistry("unsub", d)
	r.Deliver(nil, "lost")
	drain(t, d)

	received := 0
	r.Subscribe(func(err error, item interface{}) subscription.Directive {
		received += 1
		return subscription.Drop
	})
	drain(t, d)

	assert.Equal(t, 0, received, "discarded event was replayed")
}
