// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package network

import (
	"encoding/hex"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/fullnoded/fault"
)

const (
	publicKeyLength  = 32
	privateKeyLength = 32
)

// ReadPublicKey - decode a hex encoded CURVE public key
func ReadPublicKey(key string) ([]byte, error) {
	h, err := hex.DecodeString(key)
	if nil != err || publicKeyLength != len(h) {
		return nil, fault.InvalidPublicKey
	}
	return h, nil
}

// ReadPrivateKey - decode a hex encoded CURVE private key
func ReadPrivateKey(key string) ([]byte, error) {
	h, err := hex.DecodeString(key)
	if nil != err || privateKeyLength != len(h) {
		return nil, fault.InvalidPrivateKey
	}
	return h, nil
}

// MakeKeyPair - generate a fresh CURVE keypair as hex strings
func MakeKeyPair() (publicKey string, privateKey string, err error) {
	pub, prv, err := zmq.NewCurveKeypair()
	if nil != err {
		return "", "", err
	}
	publicKey = hex.EncodeToString([]byte(zmq.Z85decode(pub)))
	privateKey = hex.EncodeToString([]byte(zmq.Z85decode(prv)))
	return publicKey, privateKey, nil
}
