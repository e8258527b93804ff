// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - LevelDB backed persistent store
//
// The database is split into prefixed pools, one per record kind.
// All pools share a single LevelDB handle; a small expiring cache
// sits in front of reads.
//
// The query primitives are safe for concurrent use; the node expects
// them to be exercised from the disk domain.
package storage

import (
	"reflect"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/fullnoded/fault"
)

// exported storage pools
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Transactions *PoolHandle `prefix:"T"`
	History      *PoolHandle `prefix:"H"`
}

// Pool - the set of exported pools
var Pool pools

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

// holds the database handle
var poolData struct {
	sync.RWMutex
	db    *leveldb.DB
	cache Cache
}

// Initialise - open up the database connection
//
// this must be called before any pool is accessed; failure leaves no
// partial state behind
func Initialise(database string) error {
	poolData.Lock()
	defer poolData.Unlock()

	if nil != poolData.db {
		return fault.AlreadyInitialised
	}

	ok := false
	defer func() {
		if !ok {
			dbClose()
		}
	}()

	db, err := openDB(database)
	if nil != err {
		return err
	}
	poolData.db = db

	version, err := getVersion(db)
	if nil != err {
		return err
	}

	switch {
	case 0 == version:
		// database was empty so tag with the current version
		if err := putVersion(db, currentDBVersion); nil != err {
			return err
		}
	case currentDBVersion != version:
		logger.Criticalf("database version: %d  expected: %d", version, currentDBVersion)
		return fault.DatabaseVersionMismatch
	}

	poolData.cache = newCache()

	// this will be a struct type
	poolType := reflect.TypeOf(Pool)
	poolValue := reflect.ValueOf(&Pool).Elem()

	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)
		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			logger.Panicf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		handle := &PoolHandle{
			prefix: prefixTag[0],
		}
		poolValue.Field(i).Set(reflect.ValueOf(handle))
	}

	ok = true
	return nil
}

// Finalise - close the database connection
func Finalise() {
	poolData.Lock()
	defer poolData.Unlock()
	dbClose()
}

// IsInitialised - for the lifecycle manager's sanity checks
func IsInitialised() bool {
	poolData.RLock()
	defer poolData.RUnlock()
	return nil != poolData.db
}

// open the underlying LevelDB, failing rather than creating on a
// corrupted store
func openDB(database string) (*leveldb.DB, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}
	return leveldb.OpenFile(database, opt)
}

func dbClose() {
	if nil != poolData.db {
		poolData.db.Close()
		poolData.db = nil
	}
	if nil != poolData.cache {
		poolData.cache.Clear()
		poolData.cache = nil
	}
}

func getVersion(db *leveldb.DB) (int, error) {
	value, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return 0, nil
	}
	if nil != err {
		return 0, err
	}
	if 2 != len(value) {
		return 0, fault.DatabaseVersionMismatch
	}
	return int(value[0])<<8 + int(value[1]), nil
}

func putVersion(db *leveldb.DB, version int) error {
	value := []byte{
		byte(version >> 8),
		byte(version),
	}
	return db.Put(versionKey, value, nil)
}
