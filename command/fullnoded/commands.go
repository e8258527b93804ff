// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/fullnoded/network"
)

// setup command handler
//
// commands that run before the configuration file is read; they
// cannot access the database or any node state
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {

	case "gen-peer-identity", "peer":
		publicKey, privateKey, err := network.MakeKeyPair()
		if nil != err {
			fmt.Printf("generate keypair error: %s\n", err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("public_key = %q\n", publicKey)
		fmt.Printf("private_key = %q\n", privateKey)

	case "version":
		fmt.Printf("%s\n", version)

	case "help":
		fmt.Printf("usage: %s [--help] [--quiet] [--version] --config-file=FILE [command]\n", program)
		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                 (h)       - display this message\n")
		fmt.Printf("  version              (v)       - display version\n")
		fmt.Printf("  gen-peer-identity    (peer)    - generate a CURVE keypair for the peering section\n\n")
		fmt.Printf("with a configuration file the daemon reads addresses from stdin,\n")
		fmt.Printf("one per line; the line %q or end of file shuts it down\n", stopCommand)

	default:
		// not a setup command, main continues
		return false
	}

	return true
}
