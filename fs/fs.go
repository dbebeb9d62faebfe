/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 11:20:29 2017 mstenber
 * Last modified: Sun Apr 15 11:20:02 2018 mstenber
 * Edit time:     402 min
 *
 */

// fs package implements simple flat file system on top of a
// blockdev.Device.
//
// The volume consists of superblock (block 0), directory region,
// allocation map, and data region. While mounted, the directory and
// the map are kept in memory, and they are written back on Sync and
// Unmount only; file data is written through immediately.
//
// Only one volume may be mounted within the process at a time.
package fs

import (
	"fmt"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/blockdev/factory"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
)

type Fs struct {
	lock  util.MutexLocked
	name  string
	dev   blockdev.Device
	sb    superblock
	dir   *directory
	alloc *allocator
	fds   *fdTable

	// buf is scratch block for metadata and data I/O
	buf []byte
}

var mountLock util.MutexLocked
var mounted *Fs

// Mounted returns the currently mounted volume, if any.
func Mounted() *Fs {
	defer mountLock.Locked()()
	return mounted
}

func openDevice(name string, opts Options) (blockdev.Device, error) {
	be, err := factory.New(opts.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	dev, err := be.Open(name)
	if err != nil {
		return nil, err
	}
	return factory.WrapDevice(dev, opts.crypto()), nil
}

// MakeFs creates new empty volume called name. An existing store of
// that name is overwritten.
func MakeFs(name string, opts Options) error {
	mlog.Printf2("fs/fs", "MakeFs %s %v", name, opts.Config)
	if name == "" {
		return nameError("make_fs", name, fmt.Errorf("%w: empty name", ErrInvalidArgument))
	}
	sb, err := opts.Config.layout()
	if err != nil {
		return nameError("make_fs", name, err)
	}
	sb.UUID = uuid.New()
	be, err := factory.New(opts.Backend)
	if err != nil {
		return nameError("make_fs", name, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	if err = be.Create(name, sb.TotalBlocks); err != nil {
		return nameError("make_fs", name, err)
	}
	dev, err := openDevice(name, opts)
	if err != nil {
		return nameError("make_fs", name, err)
	}
	self := &Fs{name: name, dev: dev, sb: *sb,
		buf: make([]byte, blockdev.BlockSize)}
	self.dir = directory{}.Init(int(sb.MaxFiles))
	self.alloc = allocator{}.Init(dev, sb)
	self.alloc.format()
	err = self.sync()
	if cerr := dev.Close(); err == nil {
		err = cerr
	}
	return nameError("make_fs", name, err)
}

// MountFs mounts the volume called name.
func MountFs(name string, opts Options) (*Fs, error) {
	mlog.Printf2("fs/fs", "MountFs %s", name)
	if name == "" {
		return nil, nameError("mount_fs", name, fmt.Errorf("%w: empty name", ErrInvalidArgument))
	}
	defer mountLock.Locked()()
	if mounted != nil {
		return nil, nameError("mount_fs", name, fmt.Errorf("%w: %s is mounted", ErrAlreadyMounted, mounted.name))
	}
	dev, err := openDevice(name, opts)
	if err != nil {
		return nil, nameError("mount_fs", name, err)
	}
	self := &Fs{name: name, dev: dev, buf: make([]byte, blockdev.BlockSize)}
	if err = self.load(); err != nil {
		dev.Close()
		return nil, nameError("mount_fs", name, err)
	}
	mounted = self
	return self, nil
}

func (self *Fs) load() error {
	if err := self.dev.ReadBlock(0, self.buf); err != nil {
		return err
	}
	sb, err := decodeSuperblock(self.buf)
	if err != nil {
		return err
	}
	if sb.TotalBlocks > self.dev.BlockCount() {
		return corruptf("%d blocks in superblock, device has %d", sb.TotalBlocks, self.dev.BlockCount())
	}
	self.sb = *sb

	dirbuf := make([]byte, int(sb.DirBlocks)*blockdev.BlockSize)
	for i := 0; i < int(sb.DirBlocks); i++ {
		err = self.dev.ReadBlock(sb.DirStart+uint32(i), dirbuf[i*blockdev.BlockSize:(i+1)*blockdev.BlockSize])
		if err != nil {
			return err
		}
	}
	if sha256.Sum256(dirbuf) != sb.DirSum {
		return corruptf("directory checksum mismatch")
	}
	self.dir = directory{}.Init(int(sb.MaxFiles))
	if err = self.dir.decode(dirbuf, int(sb.DirLen), sb.DataBlocks); err != nil {
		return err
	}
	self.alloc = allocator{}.Init(self.dev, sb)
	if err = self.alloc.load(self.buf); err != nil {
		return err
	}
	if err = self.check(); err != nil {
		return err
	}
	self.fds = fdTable{}.Init(int(sb.MaxDescriptors))
	mlog.Printf2("fs/fs", " mounted %s: %d files, %d/%d blocks free", self.name,
		sb.DirLen, self.alloc.freeCount(), sb.DataBlocks)
	return nil
}

// sync writes directory, dirty map blocks and superblock (in that
// order).
func (self *Fs) sync() error {
	mlog.Printf2("fs/fs", "fs.sync")
	dirbuf := make([]byte, int(self.sb.DirBlocks)*blockdev.BlockSize)
	n := self.dir.encode(dirbuf)
	for i := 0; i < int(self.sb.DirBlocks); i++ {
		err := self.dev.WriteBlock(self.sb.DirStart+uint32(i), dirbuf[i*blockdev.BlockSize:(i+1)*blockdev.BlockSize])
		if err != nil {
			return err
		}
	}
	if err := self.alloc.flush(self.buf); err != nil {
		return err
	}
	self.sb.DirLen = uint32(n)
	self.sb.DirSum = sha256.Sum256(dirbuf)
	self.sb.encode(self.buf)
	return self.dev.WriteBlock(0, self.buf)
}

// checkMounted must be called with lock held.
func (self *Fs) checkMounted() error {
	if self.dev == nil {
		return ErrNotMounted
	}
	return nil
}

// Sync writes the metadata to the device without unmounting.
func (self *Fs) Sync() error {
	defer self.lock.Locked()()
	if err := self.checkMounted(); err != nil {
		return nameError("sync", self.name, err)
	}
	return nameError("sync", self.name, self.sync())
}

// Unmount writes the metadata and releases the device. The Fs is
// useless afterwards; all handles are gone.
func (self *Fs) Unmount() error {
	defer mountLock.Locked()()
	defer self.lock.Locked()()
	mlog.Printf2("fs/fs", "fs.Unmount %s", self.name)
	if err := self.checkMounted(); err != nil {
		return nameError("umount_fs", self.name, err)
	}
	err := self.sync()
	if cerr := self.dev.Close(); err == nil {
		err = cerr
	}
	self.dev = nil
	self.dir = nil
	self.alloc = nil
	self.fds = nil
	if mounted == self {
		mounted = nil
	}
	return nameError("umount_fs", self.name, err)
}

// Name returns the store name of the volume.
func (self *Fs) Name() string {
	return self.name
}

func (self *Fs) check() error {
	heads := []uint32{}
	lengths := []uint32{}
	for i := range self.dir.entries {
		e := &self.dir.entries[i]
		if !e.inUse {
			continue
		}
		if err := e.check(); err != nil {
			return err
		}
		heads = append(heads, e.head)
		lengths = append(lengths, e.blocks)
	}
	return self.alloc.check(heads, lengths)
}

// Check verifies the in-memory state satisfies all the invariants
// (that are also verified at mount time).
func (self *Fs) Check() error {
	defer self.lock.Locked()()
	if err := self.checkMounted(); err != nil {
		return nameError("check", self.name, err)
	}
	return nameError("check", self.name, self.check())
}

// VolumeInfo describes the volume.
type VolumeInfo struct {
	Name           string     `codec:"name"`
	UUID           string     `codec:"uuid"`
	BlockSize      uint32     `codec:"block_size"`
	TotalBlocks    uint32     `codec:"total_blocks"`
	DataStart      uint32     `codec:"data_start"`
	DataBlocks     uint32     `codec:"data_blocks"`
	FreeBlocks     uint32     `codec:"free_blocks"`
	MaxFiles       uint32     `codec:"max_files"`
	MaxDescriptors uint32     `codec:"max_descriptors"`
	Files          []FileInfo `codec:"files"`
}

func (self *Fs) Info() (VolumeInfo, error) {
	defer self.lock.Locked()()
	if err := self.checkMounted(); err != nil {
		return VolumeInfo{}, nameError("info", self.name, err)
	}
	return VolumeInfo{
		Name:           self.name,
		UUID:           self.sb.UUID.String(),
		BlockSize:      self.sb.BlockSize,
		TotalBlocks:    self.sb.TotalBlocks,
		DataStart:      self.sb.DataStart,
		DataBlocks:     self.sb.DataBlocks,
		FreeBlocks:     self.alloc.freeCount(),
		MaxFiles:       self.sb.MaxFiles,
		MaxDescriptors: self.sb.MaxDescriptors,
		Files:          self.list(),
	}, nil
}
