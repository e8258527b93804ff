// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package network - subscribe to transaction announcements from a
// static list of peers
//
// Each peer is a CURVE encrypted zmq SUB connection carrying
// multipart frames.  A single background poller drains every socket
// and delivers events through per-channel registries whose handlers
// run on the network domain.  Shutdown is signalled over an inproc
// push/pull pair so the poller never blocks on a dead socket.
package network

import (
	"sync"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/fullnoded/background"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fault"
	"github.com/bitmark-inc/fullnoded/subscription"
)

const sessionSignal = "inproc://fullnoded-session-signal"

const (
	defaultRateLimit = 100 // messages per second per channel
	defaultRateBurst = 32
)

// Peer - one subscription target
type Peer struct {
	Address   string // zmq endpoint, e.g. "tcp://203.0.113.1:2136"
	PublicKey string // hex encoded CURVE server key
}

// Configuration - session settings
type Configuration struct {
	PrivateKey string // hex encoded CURVE client secret key
	PublicKey  string // hex encoded CURVE client public key
	Connect    []Peer
	RateLimit  float64 // per-channel messages per second, 0 = default
	RateBurst  int     // 0 = default
}

// Session - the set of peer channels plus the poller that feeds them
type Session struct {
	sync.Mutex
	log         *logger.L
	dom         *domain.Domain
	privateKey  []byte
	publicKey   []byte
	peers       []Peer
	rateLimit   rate.Limit
	rateBurst   int
	connections *subscription.Registry
	channels    []*Channel
	push        *zmq.Socket
	pull        *zmq.Socket
	background  *background.T
	started     bool
	stopped     bool
}

// NewSession - validate keys and peer list; sockets open on Start
func NewSession(dom *domain.Domain, cfg Configuration) (*Session, error) {

	log := logger.New("network")
	if nil == log {
		return nil, fault.InvalidLoggerChannel
	}

	privateKey, err := ReadPrivateKey(cfg.PrivateKey)
	if nil != err {
		return nil, err
	}
	publicKey, err := ReadPublicKey(cfg.PublicKey)
	if nil != err {
		return nil, err
	}

	for _, peer := range cfg.Connect {
		if "" == peer.Address {
			return nil, fault.InvalidConnectionAddress
		}
		if _, err := ReadPublicKey(peer.PublicKey); nil != err {
			return nil, err
		}
	}

	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	return &Session{
		log:         log,
		dom:         dom,
		privateKey:  privateKey,
		publicKey:   publicKey,
		peers:       cfg.Connect,
		rateLimit:   limit,
		rateBurst:   burst,
		connections: subscription.NewRegistry("connections", dom),
	}, nil
}

// SubscribeChannel - register for the next connection event
func (s *Session) SubscribeChannel(handler subscription.Handler) {
	s.connections.Subscribe(handler)
}

// Start - open peer sockets and run the poller
//
// one connection event is delivered per configured peer: the channel
// on success, an error event on failure; completion(nil) follows even
// when individual peers failed, a setup error goes to completion
func (s *Session) Start(completion func(error)) {
	s.Lock()
	defer s.Unlock()

	if s.started {
		completion(fault.SessionAlreadyStarted)
		return
	}

	s.log.Info("starting…")

	push, pull, err := newSignalPair(sessionSignal)
	if nil != err {
		completion(err)
		return
	}
	s.push = push
	s.pull = pull
	s.started = true

	for i, peer := range s.peers {
		serverPublicKey, _ := ReadPublicKey(peer.PublicKey) // validated in NewSession

		limiter := rate.NewLimiter(s.rateLimit, s.rateBurst)
		ch, err := newChannel(s.dom, s.log, s.privateKey, s.publicKey, serverPublicKey, peer.Address, limiter)
		if nil != err {
			s.log.Errorf("connect[%d]=%q  error: %s", i, peer.Address, err)
			s.connections.Deliver(err, nil)
			continue
		}
		s.log.Infof("connect[%d]=%q", i, peer.Address)
		s.channels = append(s.channels, ch)
		s.connections.Deliver(nil, ch)
	}

	s.background = background.Start(background.Processes{s}, nil)
	completion(nil)
}

// Stop - signal the poller, wait for it, close everything
//
// one-shot: a second stop reports fault.SessionNotStarted
func (s *Session) Stop(completion func(error)) {
	s.Lock()
	if !s.started || s.stopped {
		s.Unlock()
		completion(fault.SessionNotStarted)
		return
	}
	s.stopped = true
	s.Unlock()

	s.background.Stop()
	s.log.Info("finished")
	completion(nil)
}

// Run - the poller (implements background.Process)
//
// sockets belong to this goroutine once polling starts; the shutdown
// channel only sends the inproc stop message
func (s *Session) Run(args interface{}, shutdown <-chan struct{}) {

	log := s.log
	log.Info("poller starting…")

	done := make(chan struct{})

	go func() {
		defer close(done)

		bySocket := make(map[*zmq.Socket]*Channel, len(s.channels))

		poller := zmq.NewPoller()
		for _, ch := range s.channels {
			poller.Add(ch.socket, zmq.POLLIN)
			bySocket[ch.socket] = ch
		}
		poller.Add(s.pull, zmq.POLLIN)

	loop:
		for {
			sockets, _ := poller.Poll(-1)
			for _, polled := range sockets {
				switch socket := polled.Socket; socket {
				case s.pull:
					socket.Recv(0)
					break loop
				default:
					data, err := socket.RecvMessageBytes(0)
					if nil != err {
						log.Errorf("receive error: %s", err)
						continue
					}
					if ch, ok := bySocket[socket]; ok {
						ch.deliver(data)
					}
				}
			}
		}

		s.pull.Close()
		for _, ch := range s.channels {
			ch.close()
		}
	}()

	<-shutdown
	s.push.SendMessage("stop")
	s.push.Close()
	<-done
	log.Info("poller finished")
}

// connected push/pull pair for shutdown signalling
func newSignalPair(signal string) (*zmq.Socket, *zmq.Socket, error) {

	push, err := zmq.NewSocket(zmq.PUSH)
	if nil != err {
		return nil, nil, err
	}
	push.SetLinger(0)
	err = push.Bind(signal)
	if nil != err {
		push.Close()
		return nil, nil, err
	}

	pull, err := zmq.NewSocket(zmq.PULL)
	if nil != err {
		push.Close()
		return nil, nil, err
	}
	pull.SetLinger(0)
	err = pull.Connect(signal)
	if nil != err {
		push.Close()
		pull.Close()
		return nil, nil, err
	}

	return push, pull, nil
}
