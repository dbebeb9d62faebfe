/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 17 22:20:08 2017 mstenber
 * Last modified: Thu Apr 12 12:20:45 2018 mstenber
 * Edit time:     81 min
 *
 */

package inmemory

import (
	"fmt"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
)

// store is one named in-memory store. Blocks are allocated lazily;
// nil block reads as zeros.
type store struct {
	blocks [][]byte
	open   bool
}

// inMemoryBackend provides in-memory stores, shared by name within
// the process so that stores outlive the devices opened on them (as
// files would). Mostly useful for tests.
type inMemoryBackend struct{}

var _ blockdev.Backend = &inMemoryBackend{}

var lock util.MutexLocked
var name2Store = make(map[string]*store)

func NewInMemoryBackend() blockdev.Backend {
	return &inMemoryBackend{}
}

func (self *inMemoryBackend) Create(name string, blocks uint32) error {
	if err := blockdev.CheckCreate(name, blocks); err != nil {
		return err
	}
	defer lock.Locked()()
	if st := name2Store[name]; st != nil && st.open {
		return fmt.Errorf("%w: %s", blockdev.ErrBusy, name)
	}
	mlog.Printf2("blockdev/inmemory/inmemory", "im.Create %s %d", name, blocks)
	name2Store[name] = &store{blocks: make([][]byte, blocks)}
	return nil
}

func (self *inMemoryBackend) Open(name string) (blockdev.Device, error) {
	defer lock.Locked()()
	st := name2Store[name]
	if st == nil {
		return nil, fmt.Errorf("%w: %s", blockdev.ErrNotExist, name)
	}
	if st.open {
		return nil, fmt.Errorf("%w: %s", blockdev.ErrBusy, name)
	}
	st.open = true
	mlog.Printf2("blockdev/inmemory/inmemory", "im.Open %s", name)
	return &device{name: name, st: st}, nil
}

// Remove forgets the named store; it is the in-memory equivalent of
// removing the backing file.
func Remove(name string) {
	defer lock.Locked()()
	delete(name2Store, name)
}

type device struct {
	name string
	st   *store
}

func (self *device) BlockCount() uint32 {
	if self.st == nil {
		return 0
	}
	return uint32(len(self.st.blocks))
}

func (self *device) ReadBlock(index uint32, buf []byte) error {
	if self.st == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.BlockCount(), index, buf); err != nil {
		return err
	}
	b := self.st.blocks[index]
	if b == nil {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, b)
	return nil
}

func (self *device) WriteBlock(index uint32, buf []byte) error {
	if self.st == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.BlockCount(), index, buf); err != nil {
		return err
	}
	b := self.st.blocks[index]
	if b == nil {
		b = make([]byte, blockdev.BlockSize)
		self.st.blocks[index] = b
	}
	copy(b, buf)
	return nil
}

func (self *device) Close() error {
	if self.st == nil {
		return blockdev.ErrClosed
	}
	defer lock.Locked()()
	mlog.Printf2("blockdev/inmemory/inmemory", "im.Close %s", self.name)
	self.st.open = false
	self.st = nil
	return nil
}
