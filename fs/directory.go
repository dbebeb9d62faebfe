/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr 13 12:40:02 2018 mstenber
 * Last modified: Sat Apr 14 10:02:51 2018 mstenber
 * Edit time:     71 min
 *
 */

package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"strings"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
)

const dirEntrySize = 40

const flagInUse = 1

// diskEntry is the on-disk directory entry.
type diskEntry struct {
	Flags    uint8
	NameLen  uint8
	Name     [MaxFilenameLen + 1]byte
	Size     uint64
	Head     uint32
	Blocks   uint32
	Reserved [6]byte
}

// dirEntry is one directory slot in memory. The slot index is the
// identity of the file while mounted.
type dirEntry struct {
	inUse  bool
	name   string
	size   int64
	head   uint32
	blocks uint32

	// refs is the number of open handles; it is not persisted.
	refs int
}

type directory struct {
	entries []dirEntry
}

func (self directory) Init(maxFiles int) *directory {
	self.entries = make([]dirEntry, maxFiles)
	return &self
}

func validName(name string) error {
	if name == "" || len(name) > MaxFilenameLen || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: bad file name", ErrInvalidArgument)
	}
	return nil
}

// find returns the slot of name, or -1.
func (self *directory) find(name string) int {
	for i := range self.entries {
		e := &self.entries[i]
		if e.inUse && e.name == name {
			return i
		}
	}
	return -1
}

func (self *directory) create(name string) (int, error) {
	if err := validName(name); err != nil {
		return -1, err
	}
	if self.find(name) >= 0 {
		return -1, ErrAlreadyExists
	}
	for i := range self.entries {
		e := &self.entries[i]
		if !e.inUse {
			*e = dirEntry{inUse: true, name: name, head: noBlock}
			mlog.Printf2("fs/directory", "dir.create %s at #%d", name, i)
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: directory full", ErrOutOfSpace)
}

// remove clears the slot; the caller has released the blocks.
func (self *directory) remove(slot int) {
	mlog.Printf2("fs/directory", "dir.remove #%d", slot)
	self.entries[slot] = dirEntry{}
}

func (self *directory) count() (n int) {
	for _, e := range self.entries {
		if e.inUse {
			n++
		}
	}
	return
}

// encode writes the in-use entries in slot order as compact array to
// buf, which covers the whole directory region. It returns the number
// of entries written.
func (self *directory) encode(buf []byte) int {
	for i := range buf {
		buf[i] = 0
	}
	var b bytes.Buffer
	n := 0
	for _, e := range self.entries {
		if !e.inUse {
			continue
		}
		de := diskEntry{Flags: flagInUse, NameLen: uint8(len(e.name)),
			Size: uint64(e.size), Head: e.head, Blocks: e.blocks}
		copy(de.Name[:], e.name)
		if err := binary.Write(&b, binary.BigEndian, &de); err != nil {
			log.Panic(err)
		}
		n++
	}
	copy(buf, b.Bytes())
	return n
}

// decode loads n entries from buf to the first n slots.
func (self *directory) decode(buf []byte, n int, dataBlocks uint32) error {
	if n > len(self.entries) || n*dirEntrySize > len(buf) {
		return corruptf("%d directory entries do not fit", n)
	}
	r := bytes.NewReader(buf[:n*dirEntrySize])
	for i := 0; i < n; i++ {
		var de diskEntry
		if err := binary.Read(r, binary.BigEndian, &de); err != nil {
			return corruptf("directory entry #%d: %v", i, err)
		}
		if de.Flags&flagInUse == 0 {
			return corruptf("directory entry #%d not in use", i)
		}
		if int(de.NameLen) > MaxFilenameLen {
			return corruptf("directory entry #%d name length %d", i, de.NameLen)
		}
		name := string(de.Name[:de.NameLen])
		if validName(name) != nil {
			return corruptf("directory entry #%d name %q", i, name)
		}
		if self.find(name) >= 0 {
			return corruptf("duplicate name %q", name)
		}
		if de.Head != noBlock && de.Head >= dataBlocks {
			return corruptf("%q head %d out of range", name, de.Head)
		}
		self.entries[i] = dirEntry{inUse: true, name: name,
			size: int64(de.Size), head: de.Head, blocks: de.Blocks}
		if err := self.entries[i].check(); err != nil {
			return err
		}
	}
	mlog.Printf2("fs/directory", "dir.decode %d entries", n)
	return nil
}

// check verifies the size/block count invariants of the entry.
func (self *dirEntry) check() error {
	bs := int64(self.blocks) * blockdev.BlockSize
	switch {
	case self.size < 0 || self.size > bs:
		return corruptf("%q size %d > %d blocks", self.name, self.size, self.blocks)
	case self.blocks > 0 && self.size <= bs-blockdev.BlockSize:
		return corruptf("%q size %d leaves block unused (%d blocks)", self.name, self.size, self.blocks)
	case (self.head == noBlock) != (self.blocks == 0):
		return corruptf("%q head %d with %d blocks", self.name, self.head, self.blocks)
	}
	return nil
}

// FileInfo describes a file.
type FileInfo struct {
	Name   string `codec:"name"`
	Size   int64  `codec:"size"`
	Blocks uint32 `codec:"blocks"`

	// Head is data region relative first block (NoBlock if none).
	Head      uint32 `codec:"head"`
	OpenCount int    `codec:"open"`
}

func (self *dirEntry) info() FileInfo {
	return FileInfo{Name: self.name, Size: self.size, Blocks: self.blocks,
		Head: self.head, OpenCount: self.refs}
}
