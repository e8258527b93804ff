// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package network_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/fixtures"
	"github.com/bitmark-inc/fullnoded/network"
	"github.com/bitmark-inc/fullnoded/subscription"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

func TestKeyPairRoundTrip(t *testing.T) {
	publicKey, privateKey, err := network.MakeKeyPair()
	assert.NoError(t, err, "make key pair")

	pub, err := network.ReadPublicKey(publicKey)
	assert.NoError(t, err, "read public")
	assert.Equal(t, 32, len(pub), "public length")

	prv, err := network.ReadPrivateKey(privateKey)
	assert.NoError(t, err, "read private")
	assert.Equal(t, 32, len(prv), "private length")
}

func TestReadKeyRejectsBadInput(t *testing.T) {
	_, err := network.ReadPublicKey("not hex")
	assert.Equal(t, fault.InvalidPublicKey, err, "bad hex")

	_, err = network.ReadPublicKey("01020304")
	assert.Equal(t, fault.InvalidPublicKey, err, "short key")

	_, err = network.ReadPrivateKey("01020304")
	assert.Equal(t, fault.InvalidPrivateKey, err, "short private key")
}

func testConfiguration(t *testing.T, peers []network.Peer) network.Configuration {
	publicKey, privateKey, err := network.MakeKeyPair()
	assert.NoError(t, err, "make key pair")
	return network.Configuration{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		Connect:    peers,
	}
}

func TestNewSessionValidation(t *testing.T) {
	net := domain.New("network", 1)
	defer func() { net.Stop(); net.Join() }()

	cfg := testConfiguration(t, nil)

	good := cfg
	_, err := network.NewSession(net, good)
	assert.NoError(t, err, "valid configuration")

	bad := cfg
	bad.PrivateKey = "zz"
	_, err = network.NewSession(net, bad)
	assert.Equal(t, fault.InvalidPrivateKey, err, "bad private key")

	bad = cfg
	bad.Connect = []network.Peer{{Address: "", PublicKey: cfg.PublicKey}}
	_, err = network.NewSession(net, bad)
	assert.Equal(t, fault.InvalidConnectionAddress, err, "empty peer address")

	bad = cfg
	bad.Connect = []network.Peer{{Address: "tcp://127.0.0.1:12345", PublicKey: "0102"}}
	_, err = network.NewSession(net, bad)
	assert.Equal(t, fault.InvalidPublicKey, err, "bad peer key")
}

func TestSessionLifecycle(t *testing.T) {
	net := domain.New("network", 1)
	defer func() { net.Stop(); net.Join() }()

	session, err := network.NewSession(net, testConfiguration(t, nil))
	assert.NoError(t, err, "new session")

	session.Start(func(err error) {
		assert.NoError(t, err, "start")
	})
	session.Start(func(err error) {
		assert.Equal(t, fault.SessionAlreadyStarted, err, "second start")
	})

	session.Stop(func(err error) {
		assert.NoError(t, err, "stop")
	})
	session.Stop(func(err error) {
		assert.Equal(t, fault.SessionNotStarted, err, "second stop")
	})
}

func TestStopBeforeStart(t *testing.T) {
	net := domain.New("network", 1)
	defer func() { net.Stop(); net.Join() }()

	session, err := network.NewSession(net, testConfiguration(t, nil))
	assert.NoError(t, err, "new session")

	session.Stop(func(err error) {
		assert.Equal(t, fault.SessionNotStarted, err, "stop before start")
	})
}

func TestConnectionEvents(t *testing.T) {
	net := domain.New("network", 1)
	defer func() { net.Stop(); net.Join() }()

	serverPublicKey, _, err := network.MakeKeyPair()
	assert.NoError(t, err, "server key pair")

	cfg := testConfiguration(t, []network.Peer{
		{Address: "tcp://127.0.0.1:19137", PublicKey: serverPublicKey},
	})

	session, err := network.NewSession(net, cfg)
	assert.NoError(t, err, "new session")

	connected := make(chan interface{}, 1)
	session.SubscribeChannel(func(err error, item interface{}) subscription.Directive {
		assert.NoError(t, err, "connection event")
		connected <- item
		return subscription.Renew
	})

	session.Start(func(err error) {
		assert.NoError(t, err, "start")
	})
	defer session.Stop(func(error) {})

	item := <-connected
	ch, ok := item.(*network.Channel)
	if assert.True(t, ok, "event carries a channel") {
		assert.Equal(t, "tcp://127.0.0.1:19137", ch.Address(), "peer address")
		assert.False(t, ch.IsSubscribed(), "no transaction handler yet")
	}
}

// every configured peer must produce a connection event and end up
// with a live transaction subscription, even though the events are
// delivered back to back during start
func TestConnectionEventPerPeer(t *testing.T) {
	net := domain.New("network", 1)
	defer func() { net.Stop(); net.Join() }()

	serverPublicKey, _, err := network.MakeKeyPair()
	assert.NoError(t, err, "server key pair")

	cfg := testConfiguration(t, []network.Peer{
		{Address: "tcp://127.0.0.1:19138", PublicKey: serverPublicKey},
		{Address: "tcp://127.0.0.1:19139", PublicKey: serverPublicKey},
	})

	session, err := network.NewSession(net, cfg)
	assert.NoError(t, err, "new session")

	connected := make(chan *network.Channel, 2)
	session.SubscribeChannel(func(err error, item interface{}) subscription.Directive {
		if assert.NoError(t, err, "connection event") {
			ch := item.(*network.Channel)
			ch.SubscribeTransaction(func(error, interface{}) subscription.Directive {
				return subscription.Renew
			})
			connected <- ch
		}
		return subscription.Renew
	})

	session.Start(func(err error) {
		assert.NoError(t, err, "start")
	})
	defer session.Stop(func(error) {})

	channels := make([]*network.Channel, 0, 2)
	for i := 0; i < 2; i += 1 {
		select {
		case ch := <-connected:
			channels = append(channels, ch)
		case <-time.After(time.Second):
			t.Fatal("connection event lost")
		}
	}

	for _, ch := range channels {
		assert.True(t, ch.IsSubscribed(), "channel muted: %s", ch.Address())
	}
}
