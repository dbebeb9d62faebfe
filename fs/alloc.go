/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sat Apr 14 10:10:12 2018 mstenber
 * Last modified: Sat Apr 14 14:40:33 2018 mstenber
 * Edit time:     112 min
 *
 */

package fs

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
)

// NoBlock is the 'none' block address.
const NoBlock = 0xFFFFFFFF

const noBlock uint32 = NoBlock

const mapEntrySize = 4
const mapEntriesPerBlock = blockdev.BlockSize / mapEntrySize

// Map entry values; anything else is next block + 1.
const (
	mapFree     uint32 = 0
	mapChainEnd uint32 = 0xFFFFFFFF
)

// allocator manages the data region. The map has one entry per data
// block, forming singly linked chain for each file; the order of file
// blocks is the chain order, not address order.
//
// Block addresses are data region relative.
type allocator struct {
	dev      blockdev.Device
	mapStart uint32
	count    uint32
	entries  []uint32

	// free is the set of free addresses, dirty the set of map
	// blocks (relative to mapStart) that need to be written.
	free, dirty *roaring.Bitmap
}

func (self allocator) Init(dev blockdev.Device, sb *superblock) *allocator {
	self.dev = dev
	self.mapStart = sb.MapStart
	self.count = sb.DataBlocks
	self.entries = make([]uint32, sb.MapBlocks*mapEntriesPerBlock)
	self.free = roaring.New()
	self.free.AddRange(0, uint64(self.count))
	self.dirty = roaring.New()
	return &self
}

func (self *allocator) mapBlocks() uint32 {
	return uint32(len(self.entries) / mapEntriesPerBlock)
}

// format marks everything free and dirty.
func (self *allocator) format() {
	for i := range self.entries {
		self.entries[i] = mapFree
	}
	self.free.Clear()
	self.free.AddRange(0, uint64(self.count))
	self.dirty.AddRange(0, uint64(self.mapBlocks()))
}

// load reads the map from the device.
func (self *allocator) load(buf []byte) error {
	for i := uint32(0); i < self.mapBlocks(); i++ {
		if err := self.dev.ReadBlock(self.mapStart+i, buf); err != nil {
			return err
		}
		for j := 0; j < mapEntriesPerBlock; j++ {
			self.entries[int(i)*mapEntriesPerBlock+j] = binary.BigEndian.Uint32(buf[j*mapEntrySize:])
		}
	}
	self.free.Clear()
	for a, v := range self.entries {
		switch {
		case v == mapFree:
			if uint32(a) < self.count {
				self.free.Add(uint32(a))
			}
		case uint32(a) >= self.count:
			return corruptf("map entry %d beyond data region in use", a)
		case v != mapChainEnd && v-1 >= self.count:
			return corruptf("map entry %d points to %d", a, v-1)
		}
	}
	self.dirty.Clear()
	mlog.Printf2("fs/alloc", "alloc.load - %d/%d free", self.free.GetCardinality(), self.count)
	return nil
}

// flush writes the dirty map blocks.
func (self *allocator) flush(buf []byte) error {
	for _, i := range self.dirty.ToArray() {
		mlog.Printf2("fs/alloc", "alloc.flush #%d", i)
		for j := 0; j < mapEntriesPerBlock; j++ {
			binary.BigEndian.PutUint32(buf[j*mapEntrySize:], self.entries[int(i)*mapEntriesPerBlock+j])
		}
		if err := self.dev.WriteBlock(self.mapStart+i, buf); err != nil {
			return err
		}
	}
	self.dirty.Clear()
	return nil
}

func (self *allocator) set(a, v uint32) {
	self.entries[a] = v
	self.dirty.Add(a / mapEntriesPerBlock)
}

func (self *allocator) freeCount() uint32 {
	return uint32(self.free.GetCardinality())
}

// allocate returns the lowest free address, marked as end of chain.
func (self *allocator) allocate() (uint32, error) {
	if self.free.IsEmpty() {
		return noBlock, fmt.Errorf("%w: no free data blocks", ErrOutOfSpace)
	}
	a := self.free.Minimum()
	self.free.Remove(a)
	self.set(a, mapChainEnd)
	mlog.Printf2("fs/alloc", "alloc.allocate %d", a)
	return a, nil
}

// link makes next follow prev in its chain.
func (self *allocator) link(prev, next uint32) {
	self.set(prev, next+1)
}

func (self *allocator) next(a uint32) (uint32, bool) {
	v := self.entries[a]
	switch v {
	case mapChainEnd:
		return noBlock, false
	case mapFree:
		mlog.Panicf("alloc.next of free block %d", a)
	}
	return v - 1, true
}

// nth returns the n:th (zero-based) block of chain starting at head.
func (self *allocator) nth(head uint32, n uint32) uint32 {
	a := head
	for i := uint32(0); i < n; i++ {
		var ok bool
		a, ok = self.next(a)
		if !ok {
			mlog.Panicf("alloc.nth %d/%d: chain from %d too short", i, n, head)
		}
	}
	return a
}

// freeChain releases the whole chain starting at head.
func (self *allocator) freeChain(head uint32) {
	a := head
	ok := a != noBlock
	for ok {
		var next uint32
		next, ok = self.next(a)
		mlog.Printf2("fs/alloc", "alloc.free %d", a)
		self.set(a, mapFree)
		self.free.Add(a)
		a = next
	}
}

// cut makes a the end of its chain, releasing whatever followed it.
func (self *allocator) cut(a uint32) {
	next, ok := self.next(a)
	self.set(a, mapChainEnd)
	if ok {
		self.freeChain(next)
	}
}

// check verifies that the chains starting at heads (with the given
// lengths) own exactly the allocated blocks, once each.
func (self *allocator) check(heads, lengths []uint32) error {
	owned := roaring.New()
	for i, head := range heads {
		a := head
		n := uint32(0)
		for a != noBlock {
			if a >= self.count {
				return corruptf("chain %d: block %d out of range", i, a)
			}
			if owned.Contains(a) {
				return corruptf("chain %d: block %d owned twice", i, a)
			}
			if self.entries[a] == mapFree {
				return corruptf("chain %d: block %d is free", i, a)
			}
			owned.Add(a)
			n++
			if n > lengths[i] {
				break
			}
			a, _ = self.next(a)
		}
		if n != lengths[i] {
			return corruptf("chain %d: %d blocks, expected %d", i, n, lengths[i])
		}
	}
	used := roaring.New()
	used.AddRange(0, uint64(self.count))
	used.AndNot(self.free)
	if !used.Equals(owned) {
		return corruptf("%d blocks allocated, %d owned by files",
			used.GetCardinality(), owned.GetCardinality())
	}
	for a := uint32(0); a < self.count; a++ {
		if (self.entries[a] == mapFree) != self.free.Contains(a) {
			return corruptf("block %d free state inconsistent", a)
		}
	}
	return nil
}
