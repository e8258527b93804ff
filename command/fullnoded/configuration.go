// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/configuration"
	"github.com/bitmark-inc/fullnoded/network"
	"github.com/bitmark-inc/fullnoded/util"
)

// basic defaults (directories and files are relative to the
// "data_directory" from the configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultDatabase     = "blockchain"
	defaultLogDirectory = "log"
	defaultLogFile      = "fullnoded.log"
	defaultLogCount     = 10          // number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultExpiryMinutes = 60 // unconfirmed transaction lifetime
)

var defaultLogLevels = map[string]string{
	logger.DefaultTag: "error",
}

// server public key and address of one subscription peer
type Connection struct {
	PublicKey string `gluamapper:"public_key" json:"public_key"`
	Address   string `gluamapper:"address" json:"address"`
}

// client keys and the peers to subscribe to
type PeerType struct {
	PrivateKey string       `gluamapper:"private_key" json:"private_key"`
	PublicKey  string       `gluamapper:"public_key" json:"public_key"`
	Connect    []Connection `gluamapper:"connect" json:"connect"`
	RateLimit  float64      `gluamapper:"rate_limit" json:"rate_limit"`
	RateBurst  int          `gluamapper:"rate_burst" json:"rate_burst"`
}

type Configuration struct {
	DataDirectory string               `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string               `gluamapper:"pidfile" json:"pidfile"`
	Database      string               `gluamapper:"database" json:"database"`
	ExpiryMinutes int                  `gluamapper:"expiry_minutes" json:"expiry_minutes"`
	Peering       PeerType             `gluamapper:"peering" json:"peering"`
	Logging       logger.Configuration `gluamapper:"logging" json:"logging"`
}

// read, decode and verify the configuration
func getConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		Database:      defaultDatabase,
		ExpiryMinutes: defaultExpiryMinutes,

		Peering: PeerType{},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := configuration.ParseConfigurationFile(configurationFileName, options); err != nil {
		return nil, err
	}

	if options.ExpiryMinutes <= 0 {
		options.ExpiryMinutes = defaultExpiryMinutes
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	}
	options.DataDirectory = filepath.Clean(options.DataDirectory)

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Database,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = util.EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = util.EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// fail if the log file is not a simple file name
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("files: %q is not a plain name", options.Logging.File)
	}

	// create the log directory if it does not already exist
	if err := os.MkdirAll(options.Logging.Directory, 0700); nil != err {
		return nil, err
	}

	// done
	return options, nil
}

// the network session settings derived from the peering block
func (c *Configuration) networkConfiguration() network.Configuration {

	connect := make([]network.Peer, len(c.Peering.Connect))
	for i, peer := range c.Peering.Connect {
		connect[i] = network.Peer{
			Address:   peer.Address,
			PublicKey: peer.PublicKey,
		}
	}

	return network.Configuration{
		PrivateKey: c.Peering.PrivateKey,
		PublicKey:  c.Peering.PublicKey,
		Connect:    connect,
		RateLimit:  c.Peering.RateLimit,
		RateBurst:  c.Peering.RateBurst,
	}
}
