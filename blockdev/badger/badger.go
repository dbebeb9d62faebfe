/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Thu Apr 12 15:02:48 2018 mstenber
 * Edit time:     171 min
 *
 */

package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
)

// badgerBackend keeps each store in its own badger directory.
//
// - key "c" -> number of blocks
// - key "b" + block index (big-endian uint32) -> block data
//
// badger's own directory lock is not reliable within single process,
// so the directories in use are also tracked here.
type badgerBackend struct {
}

var _ blockdev.Backend = &badgerBackend{}

var countKey = []byte("c")
var blockPrefix = []byte("b")

var inUse = make(map[string]bool)
var inUseLock util.MutexLocked

func NewBadgerBackend() blockdev.Backend {
	return &badgerBackend{}
}

func blockKey(index uint32) []byte {
	return append(append([]byte(nil), blockPrefix...), util.Uint32Bytes(index)...)
}

func reserve(dir string) error {
	defer inUseLock.Locked()()
	if inUse[dir] {
		return fmt.Errorf("%w: %s", blockdev.ErrBusy, dir)
	}
	inUse[dir] = true
	return nil
}

func release(dir string) {
	defer inUseLock.Locked()()
	delete(inUse, dir)
}

func open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	return badger.Open(opts)
}

// replaceable checks that dir is missing, empty, or a badger store.
func replaceable(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", blockdev.ErrNotStore, dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.Name() == badger.ManifestFilename && e.Type().IsRegular() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not empty and has no %s", blockdev.ErrNotStore, dir, badger.ManifestFilename)
}

func (self *badgerBackend) Create(dir string, blocks uint32) error {
	if err := blockdev.CheckCreate(dir, blocks); err != nil {
		return err
	}
	if err := reserve(dir); err != nil {
		return err
	}
	defer release(dir)
	mlog.Printf2("blockdev/badger/badger", "badger.Create %s %d", dir, blocks)
	if err := replaceable(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	db, err := open(dir)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(countKey, util.Uint32Bytes(blocks))
	})
}

func (self *badgerBackend) Open(dir string) (blockdev.Device, error) {
	if dir == "" {
		return nil, blockdev.ErrInvalidName
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blockdev.ErrNotExist, dir)
	}
	if err := reserve(dir); err != nil {
		return nil, err
	}
	db, err := open(dir)
	if err != nil {
		release(dir)
		return nil, err
	}
	dev := &badgerDevice{db: db, dir: dir}
	v, err := dev.get(countKey)
	if err == badger.ErrKeyNotFound {
		err = fmt.Errorf("%w: %s has no block count", blockdev.ErrNotExist, dir)
	} else if err == nil && len(v) != 4 {
		err = fmt.Errorf("%w: %s has invalid block count", blockdev.ErrNotExist, dir)
	}
	if err != nil {
		dev.Close()
		return nil, err
	}
	dev.count = binary.BigEndian.Uint32(v)
	mlog.Printf2("blockdev/badger/badger", "badger.Open %s - %d blocks", dir, dev.count)
	return dev, nil
}

type badgerDevice struct {
	db    *badger.DB
	dir   string
	count uint32
}

func (self *badgerDevice) get(k []byte) (v []byte, err error) {
	err = self.db.View(func(txn *badger.Txn) error {
		i, err := txn.Get(k)
		if err == nil {
			v, err = i.ValueCopy(nil)
		}
		return err
	})
	return
}

func (self *badgerDevice) BlockCount() uint32 {
	return self.count
}

func (self *badgerDevice) ReadBlock(index uint32, buf []byte) error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	v, err := self.get(blockKey(index))
	if err == badger.ErrKeyNotFound {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return err
	}
	copy(buf, v)
	return nil
}

func (self *badgerDevice) WriteBlock(index uint32, buf []byte) error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	mlog.Printf2("blockdev/badger/badger", "bd.WriteBlock #%d", index)
	data := append([]byte(nil), buf...)
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(index), data)
	})
}

func (self *badgerDevice) Close() error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	db := self.db
	self.db = nil
	defer release(self.dir)
	return db.Close()
}
