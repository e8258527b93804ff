// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/history"
	"github.com/bitmark-inc/fullnoded/node"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// stdin line that shuts the node down
const stopCommand = "stop"

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// commands that do not need the configuration
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")

	// the banner goes to every severity so each level's tail shows
	// where this run began
	banner := "================== startup =================="
	log.Debug(banner)
	log.Info(banner)
	log.Warn(banner)
	log.Error(banner)
	log.Critical(banner)

	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Infof("database: %q", theConfiguration.Database)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	fullNode, err := node.NewDefault(node.Configuration{
		Database:      theConfiguration.Database,
		MempoolExpiry: time.Duration(theConfiguration.ExpiryMinutes) * time.Minute,
		Network:       theConfiguration.networkConfiguration(),
	})
	if nil != err {
		log.Criticalf("node setup error: %s", err)
		exitwithstatus.Message("%s: node setup error: %s", program, err)
	}

	err = fullNode.Start()
	if nil != err {
		log.Criticalf("node start error: %s", err)
		exitwithstatus.Message("%s: node start error: %s", program, err)
	}
	defer fullNode.Stop()

	quiet := len(options["quiet"]) > 0
	if !quiet {
		fmt.Printf("reading addresses from stdin, %q or EOF shuts down…\n", stopCommand)
	}

	// stdin queries until "stop"/EOF; SIGINT/SIGTERM also shut down
	finished := make(chan struct{})
	go func() {
		queryLoop(log, os.Stdin, os.Stdout, fullNode.DiskDomain(), fullNode.Indexer())
		close(finished)
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-ch:
		log.Infof("received signal: %v", sig)
		if !quiet {
			fmt.Printf("\nreceived signal: %v\nshutting down…\n", sig)
		}
	case <-finished:
	}

	log.Info("shutting down…")
}

// read addresses one per line and print their histories
//
// a bad address only logs an error, the loop keeps reading
func queryLoop(log *logger.L, in io.Reader, out io.Writer, disk *domain.Domain, pool history.PoolFetcher) {

	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if "" == line {
			continue
		}
		if stopCommand == line {
			break
		}

		address, err := account.AddressFromBase58(line)
		if nil != err {
			log.Errorf("invalid address: %q  error: %s", line, err)
			continue
		}

		done := make(chan struct{})
		history.Fetch(disk, pool, address,
			func(err error, rows []history.Row) {
				defer close(done)
				if nil != err {
					log.Errorf("history error: %s", err)
					return
				}
				for _, row := range rows {
					fmt.Fprintln(out, row)
				}
				log.Info("Query fine.")
			})
		<-done
	}

	if err := scanner.Err(); nil != err {
		log.Errorf("stdin error: %s", err)
	}
}
