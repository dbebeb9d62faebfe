/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 22:49:15 2018 mstenber
 * Last modified: Thu Apr 12 14:22:09 2018 mstenber
 * Edit time:     51 min
 *
 */

package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	bbolt "github.com/coreos/bbolt"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
)

var metaKey = []byte("meta")
var blocksKey = []byte("blocks")
var countKey = []byte("count")

// lockTimeout is how long we wait for the database file lock before
// declaring the store busy.
const lockTimeout = 100 * time.Millisecond

// boltBackend keeps each store in its own bbolt database file.
//
// - bucket meta: count -> number of blocks
// - bucket blocks: block index (big-endian uint32) -> block data
//
// Blocks are written only when written to, so missing keys are zero
// blocks.
type boltBackend struct {
}

var _ blockdev.Backend = &boltBackend{}

func NewBoltBackend() blockdev.Backend {
	return &boltBackend{}
}

func open(name string) (*bbolt.DB, error) {
	db, err := bbolt.Open(name, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err == bbolt.ErrTimeout {
		return nil, fmt.Errorf("%w: %s", blockdev.ErrBusy, name)
	}
	return db, err
}

func (self *boltBackend) Create(name string, blocks uint32) error {
	if err := blockdev.CheckCreate(name, blocks); err != nil {
		return err
	}
	mlog.Printf2("blockdev/bolt/bolt", "bolt.Create %s %d", name, blocks)
	db, err := open(name)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(func(tx *bbolt.Tx) error {
		for _, k := range [][]byte{metaKey, blocksKey} {
			if tx.Bucket(k) != nil {
				if err := tx.DeleteBucket(k); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(k); err != nil {
				return err
			}
		}
		return tx.Bucket(metaKey).Put(countKey, util.Uint32Bytes(blocks))
	})
}

func (self *boltBackend) Open(name string) (blockdev.Device, error) {
	if name == "" {
		return nil, blockdev.ErrInvalidName
	}
	_, err := os.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blockdev.ErrNotExist, name)
	}
	db, err := open(name)
	if err != nil {
		return nil, err
	}
	var count uint32
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaKey)
		if b == nil {
			return fmt.Errorf("%w: %s has no metadata", blockdev.ErrNotExist, name)
		}
		v := b.Get(countKey)
		if len(v) != 4 {
			return fmt.Errorf("%w: %s has no block count", blockdev.ErrNotExist, name)
		}
		count = binary.BigEndian.Uint32(v)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	mlog.Printf2("blockdev/bolt/bolt", "bolt.Open %s - %d blocks", name, count)
	return &boltDevice{db: db, count: count}, nil
}

type boltDevice struct {
	db    *bbolt.DB
	count uint32
}

func (self *boltDevice) BlockCount() uint32 {
	return self.count
}

func (self *boltDevice) ReadBlock(index uint32, buf []byte) error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	return self.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(blocksKey).Get(util.Uint32Bytes(index))
		if v == nil {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		// v is valid only within the transaction
		copy(buf, v)
		return nil
	})
}

func (self *boltDevice) WriteBlock(index uint32, buf []byte) error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	mlog.Printf2("blockdev/bolt/bolt", "bd.WriteBlock #%d", index)
	data := append([]byte(nil), buf...)
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blocksKey).Put(util.Uint32Bytes(index), data)
	})
}

func (self *boltDevice) Close() error {
	if self.db == nil {
		return blockdev.ErrClosed
	}
	db := self.db
	self.db = nil
	return db.Close()
}
