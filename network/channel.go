// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package network

import (
	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/subscription"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
)

// transaction announcement frame: [transactionCommand, packed bytes]
const transactionCommand = "transaction"

// Channel - one connected peer
//
// carries the transaction registry for that peer; handlers run on the
// network domain
type Channel struct {
	log          *logger.L
	address      string
	socket       *zmq.Socket
	transactions *subscription.Registry
	limiter      *rate.Limiter
}

// open a CURVE client SUB socket connected to one peer
func newChannel(
	dom *domain.Domain,
	log *logger.L,
	privateKey []byte,
	publicKey []byte,
	serverPublicKey []byte,
	address string,
	limiter *rate.Limiter,
) (*Channel, error) {

	socket, err := zmq.NewSocket(zmq.SUB)
	if nil != err {
		return nil, err
	}

	err = socket.SetCurveServer(0)
	if nil != err {
		goto failure
	}
	err = socket.SetCurvePublickey(string(publicKey))
	if nil != err {
		goto failure
	}
	err = socket.SetCurveSecretkey(string(privateKey))
	if nil != err {
		goto failure
	}
	err = socket.SetCurveServerkey(string(serverPublicKey))
	if nil != err {
		goto failure
	}

	err = socket.SetLinger(0)
	if nil != err {
		goto failure
	}

	// empty prefix receives everything
	err = socket.SetSubscribe("")
	if nil != err {
		goto failure
	}

	err = socket.Connect(address)
	if nil != err {
		goto failure
	}

	return &Channel{
		log:          log,
		address:      address,
		socket:       socket,
		transactions: subscription.NewRegistry("transactions: "+address, dom),
		limiter:      limiter,
	}, nil

failure:
	socket.Close()
	return nil, err
}

// Address - the peer this channel is connected to
func (ch *Channel) Address() string {
	return ch.address
}

// SubscribeTransaction - register for the next transaction event
func (ch *Channel) SubscribeTransaction(handler subscription.Handler) {
	ch.transactions.Subscribe(handler)
}

// IsSubscribed - true while a transaction registration is live
func (ch *Channel) IsSubscribed() bool {
	return ch.transactions.IsSubscribed()
}

// one multipart message from the wire
//
// rate limited messages are dropped; malformed messages become error
// events so the pipeline can renew its registration
func (ch *Channel) deliver(data [][]byte) {

	if !ch.limiter.Allow() {
		ch.log.Warnf("rate limited: %q", ch.address)
		return
	}

	if 2 != len(data) || transactionCommand != string(data[0]) {
		ch.log.Warnf("malformed message from %q", ch.address)
		ch.transactions.Deliver(fault.MessageIsMalformed, nil)
		return
	}

	tx, err := transactionrecord.Unpack(data[1])
	if nil != err {
		ch.transactions.Deliver(err, nil)
		return
	}

	ch.log.Debugf("transaction from %q", ch.address)
	ch.transactions.Deliver(nil, tx)
}

func (ch *Channel) close() {
	ch.socket.Close()
}
