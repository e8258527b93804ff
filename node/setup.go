// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"time"

	"github.com/bitmark-inc/fullnoded/mempool"
	"github.com/bitmark-inc/fullnoded/network"
	"github.com/bitmark-inc/fullnoded/txindex"
)

// Configuration - settings for the default aggregate
type Configuration struct {
	Database      string
	MempoolExpiry time.Duration
	Network       network.Configuration
}

// NewDefault - build the node from the concrete subsystems
//
// domains first, then the collaborators bound to them, the session
// last so nothing can deliver before the pipeline exists
func NewDefault(cfg Configuration) (*Node, error) {

	domains := NewDomains()

	session, err := network.NewSession(domains.Network, cfg.Network)
	if nil != err {
		domains.Network.Stop()
		domains.Disk.Stop()
		domains.Memory.Stop()
		domains.Network.Join()
		domains.Disk.Join()
		domains.Memory.Join()
		return nil, err
	}

	pool := mempool.New(domains.Memory, cfg.MempoolExpiry)
	indexer := txindex.New(domains.Memory)

	return New(cfg.Database, domains, session, pool, indexer), nil
}
