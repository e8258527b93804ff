// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/fullnoded/account"
	"github.com/bitmark-inc/fullnoded/domain"
	"github.com/bitmark-inc/fullnoded/fixtures"
	"github.com/bitmark-inc/fullnoded/history"
	"github.com/bitmark-inc/fullnoded/transactionrecord"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

type fixedPool struct {
	rows map[account.Address][]history.Row
}

func (p *fixedPool) FetchHistory(address account.Address, handler func(error, []history.Row)) {
	handler(nil, p.rows[address])
}

func runQueryLoop(t *testing.T, input string, pool history.PoolFetcher) string {
	disk := domain.New("disk", 4)
	defer func() { disk.Stop(); disk.Join() }()

	out := &bytes.Buffer{}
	queryLoop(logger.New("test"), strings.NewReader(input), out, disk, pool)
	return out.String()
}

func TestQueryLoopSurvivesBadAddress(t *testing.T) {

	var address account.Address
	for i := range address {
		address[i] = 0x5a
	}

	row := history.Row{
		Kind: history.RowOutput,
		Point: transactionrecord.OutPoint{
			TxId:  transactionrecord.NewDigest([]byte{0x01}),
			Index: 3,
		},
		Height: history.UnconfirmedHeight,
		Value:  750,
	}

	pool := &fixedPool{
		rows: map[account.Address][]history.Row{address: {row}},
	}

	// an invalid line followed by a valid address
	input := "not-a-valid-address!\n" + address.String() + "\n"

	output := runQueryLoop(t, input, pool)

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if assert.Equal(t, 1, len(lines), "printed lines") {
		assert.Equal(t, row.String(), lines[0], "history row")
	}
}

func TestQueryLoopStopsOnCommand(t *testing.T) {

	var address account.Address
	for i := range address {
		address[i] = 0x5b
	}

	pool := &fixedPool{
		rows: map[account.Address][]history.Row{
			address: {{
				Kind: history.RowOutput,
				Point: transactionrecord.OutPoint{
					TxId: transactionrecord.NewDigest([]byte{0x02}),
				},
				Value: 1,
			}},
		},
	}

	// nothing after "stop" is processed
	input := "stop\n" + address.String() + "\n"
	output := runQueryLoop(t, input, pool)
	assert.Equal(t, "", output, "output after stop")
}

func TestQueryLoopEndsOnEOF(t *testing.T) {
	output := runQueryLoop(t, "", &fixedPool{})
	assert.Equal(t, "", output, "output")
}
