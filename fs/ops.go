/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Mon Dec 25 01:08:16 2017 mstenber
 * Last modified: Sun Apr 15 13:42:18 2018 mstenber
 * Edit time:     233 min
 *
 */

package fs

import (
	"fmt"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
)

// Create creates new empty file.
func (self *Fs) Create(name string) error {
	defer self.lock.Locked()()
	mlog.Printf2("fs/ops", "fs.Create %s", name)
	if err := self.checkMounted(); err != nil {
		return nameError("create", name, err)
	}
	_, err := self.dir.create(name)
	return nameError("create", name, err)
}

// Delete removes file (and releases its blocks). Files with open
// handles cannot be removed.
func (self *Fs) Delete(name string) error {
	defer self.lock.Locked()()
	mlog.Printf2("fs/ops", "fs.Delete %s", name)
	if err := self.checkMounted(); err != nil {
		return nameError("delete", name, err)
	}
	slot := self.dir.find(name)
	if slot < 0 {
		return nameError("delete", name, ErrNotFound)
	}
	e := &self.dir.entries[slot]
	if e.refs > 0 {
		return nameError("delete", name, fmt.Errorf("%w: %d handles", ErrBusy, e.refs))
	}
	if e.head != noBlock {
		self.alloc.freeChain(e.head)
	}
	self.dir.remove(slot)
	return nil
}

// Open opens file, with cursor at the start.
func (self *Fs) Open(name string) (Handle, error) {
	defer self.lock.Locked()()
	mlog.Printf2("fs/ops", "fs.Open %s", name)
	if err := self.checkMounted(); err != nil {
		return NoHandle, nameError("open", name, err)
	}
	slot := self.dir.find(name)
	if slot < 0 {
		return NoHandle, nameError("open", name, ErrNotFound)
	}
	h, err := self.fds.open(slot)
	if err != nil {
		return NoHandle, nameError("open", name, err)
	}
	self.dir.entries[slot].refs++
	return h, nil
}

func (self *Fs) Close(h Handle) error {
	defer self.lock.Locked()()
	mlog.Printf2("fs/ops", "fs.Close %d", h)
	if err := self.checkMounted(); err != nil {
		return handleError("close", h, err)
	}
	slot, err := self.fds.close(h)
	if err != nil {
		return handleError("close", h, err)
	}
	self.dir.entries[slot].refs--
	return nil
}

// handle must be called with lock held.
func (self *Fs) handle(op string, h Handle) (*descriptor, *dirEntry, error) {
	if err := self.checkMounted(); err != nil {
		return nil, nil, handleError(op, h, err)
	}
	fd, err := self.fds.get(h)
	if err != nil {
		return nil, nil, handleError(op, h, err)
	}
	return fd, &self.dir.entries[fd.slot], nil
}

func (self *Fs) dataBlock(a uint32) uint32 {
	return self.sb.DataStart + a
}

// Read reads up to len(buf) bytes from the cursor on. Zero with nil
// error means end of file.
func (self *Fs) Read(h Handle, buf []byte) (int, error) {
	defer self.lock.Locked()()
	fd, e, err := self.handle("read", h)
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, handleError("read", h, fmt.Errorf("%w: empty buffer", ErrInvalidArgument))
	}
	n := int(util.I64Min(int64(len(buf)), e.size-fd.cursor))
	mlog.Printf2("fs/ops", "fs.Read %d: %d bytes at %d", h, n, fd.cursor)
	if n <= 0 {
		return 0, nil
	}
	a := self.alloc.nth(e.head, uint32(fd.cursor/blockdev.BlockSize))
	ofs := int(fd.cursor % blockdev.BlockSize)
	done := 0
	for {
		if err = self.dev.ReadBlock(self.dataBlock(a), self.buf); err != nil {
			return done, handleError("read", h, err)
		}
		c := copy(buf[done:n], self.buf[ofs:])
		done += c
		fd.cursor += int64(c)
		if done == n {
			return n, nil
		}
		ofs = 0
		a, _ = self.alloc.next(a)
	}
}

// Write writes buf at the cursor, growing the file as needed. If the
// volume runs out of space, the prefix that was written is kept and
// its length returned along with ErrOutOfSpace.
func (self *Fs) Write(h Handle, buf []byte) (int, error) {
	defer self.lock.Locked()()
	fd, e, err := self.handle("write", h)
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, handleError("write", h, fmt.Errorf("%w: empty buffer", ErrInvalidArgument))
	}
	mlog.Printf2("fs/ops", "fs.Write %d: %d bytes at %d", h, len(buf), fd.cursor)
	bi := uint32(fd.cursor / blockdev.BlockSize)
	prev, cur := noBlock, noBlock
	if bi < e.blocks {
		cur = self.alloc.nth(e.head, bi)
	} else if e.blocks > 0 {
		prev = self.alloc.nth(e.head, e.blocks-1)
	}
	done := 0
	for done < len(buf) {
		ofs := int(fd.cursor % blockdev.BlockSize)
		left := len(buf) - done
		fresh := cur == noBlock
		if fresh {
			cur, err = self.alloc.allocate()
			if err != nil {
				return done, handleError("write", h, err)
			}
			if prev == noBlock {
				e.head = cur
			} else {
				self.alloc.link(prev, cur)
			}
			e.blocks++
			for i := range self.buf {
				self.buf[i] = 0
			}
		} else if ofs != 0 || left < blockdev.BlockSize {
			if err = self.dev.ReadBlock(self.dataBlock(cur), self.buf); err != nil {
				return done, handleError("write", h, err)
			}
		}
		c := copy(self.buf[ofs:], buf[done:])
		if err = self.dev.WriteBlock(self.dataBlock(cur), self.buf); err != nil {
			if fresh {
				self.unextend(e, prev, cur)
			}
			return done, handleError("write", h, err)
		}
		done += c
		fd.cursor += int64(c)
		if fd.cursor > e.size {
			e.size = fd.cursor
		}
		prev = cur
		cur, _ = self.alloc.next(cur)
	}
	return done, nil
}

// unextend releases block cur that was just appended after prev.
func (self *Fs) unextend(e *dirEntry, prev, cur uint32) {
	if prev == noBlock {
		self.alloc.freeChain(cur)
		e.head = noBlock
	} else {
		self.alloc.cut(prev)
	}
	e.blocks--
}

// Seek moves the cursor; offset must be within [0, size].
func (self *Fs) Seek(h Handle, offset int64) error {
	defer self.lock.Locked()()
	fd, e, err := self.handle("lseek", h)
	if err != nil {
		return err
	}
	if offset < 0 || offset > e.size {
		return handleError("lseek", h, fmt.Errorf("%w: offset %d not within [0, %d]", ErrInvalidArgument, offset, e.size))
	}
	mlog.Printf2("fs/ops", "fs.Seek %d: %d", h, offset)
	fd.cursor = offset
	return nil
}

// Tell returns the cursor.
func (self *Fs) Tell(h Handle) (int64, error) {
	defer self.lock.Locked()()
	fd, _, err := self.handle("tell", h)
	if err != nil {
		return 0, err
	}
	return fd.cursor, nil
}

// Truncate shrinks the file to length bytes. Cursors of all handles
// on the file are limited to the new size.
func (self *Fs) Truncate(h Handle, length int64) error {
	defer self.lock.Locked()()
	fd, e, err := self.handle("truncate", h)
	if err != nil {
		return err
	}
	if length < 0 || length > e.size {
		return handleError("truncate", h, fmt.Errorf("%w: length %d not within [0, %d]", ErrInvalidArgument, length, e.size))
	}
	keep := uint32(util.CeilDiv(length, blockdev.BlockSize))
	mlog.Printf2("fs/ops", "fs.Truncate %d: %d -> %d (%d -> %d blocks)", h, e.size, length, e.blocks, keep)
	if keep == 0 {
		if e.head != noBlock {
			self.alloc.freeChain(e.head)
		}
		e.head = noBlock
	} else if keep < e.blocks {
		self.alloc.cut(self.alloc.nth(e.head, keep-1))
	}
	e.blocks = keep
	e.size = length
	self.fds.clamp(fd.slot, length)
	return nil
}

func (self *Fs) FileSize(h Handle) (int64, error) {
	defer self.lock.Locked()()
	_, e, err := self.handle("get_filesize", h)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Stat returns information about the named file.
func (self *Fs) Stat(name string) (FileInfo, error) {
	defer self.lock.Locked()()
	if err := self.checkMounted(); err != nil {
		return FileInfo{}, nameError("stat", name, err)
	}
	slot := self.dir.find(name)
	if slot < 0 {
		return FileInfo{}, nameError("stat", name, ErrNotFound)
	}
	return self.dir.entries[slot].info(), nil
}

func (self *Fs) list() []FileInfo {
	l := make([]FileInfo, 0, self.dir.count())
	for i := range self.dir.entries {
		e := &self.dir.entries[i]
		if e.inUse {
			l = append(l, e.info())
		}
	}
	return l
}

// List returns the files in directory slot order.
func (self *Fs) List() ([]FileInfo, error) {
	defer self.lock.Locked()()
	if err := self.checkMounted(); err != nil {
		return nil, nameError("list", self.name, err)
	}
	return self.list(), nil
}
