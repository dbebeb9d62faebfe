/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 15:44:41 2018 mstenber
 * Last modified: Thu Apr 12 13:40:12 2018 mstenber
 * Edit time:     58 min
 *
 */

// file backend stores the device as single host file, block N at
// offset N * BlockSize. The file is created sparse, so unwritten
// blocks read back as zeros. Open takes exclusive advisory lock on the
// file so the same store cannot be used twice at once.
package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/mlog"
)

type fileBackend struct {
}

var _ blockdev.Backend = &fileBackend{}

func NewFileBackend() blockdev.Backend {
	return &fileBackend{}
}

func openLocked(name string, flag int) (*os.File, error) {
	f, err := os.OpenFile(name, flag, 0600)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blockdev.ErrNotExist, name)
		}
		return nil, err
	}
	if err = lockFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (self *fileBackend) Create(name string, blocks uint32) error {
	if err := blockdev.CheckCreate(name, blocks); err != nil {
		return err
	}
	mlog.Printf2("blockdev/file/file", "file.Create %s %d", name, blocks)
	f, err := openLocked(name, os.O_RDWR|os.O_CREATE)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = f.Truncate(0); err != nil {
		return err
	}
	if err = f.Truncate(int64(blocks) * blockdev.BlockSize); err != nil {
		return err
	}
	return f.Sync()
}

func (self *fileBackend) Open(name string) (blockdev.Device, error) {
	if name == "" {
		return nil, blockdev.ErrInvalidName
	}
	f, err := openLocked(name, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	count := uint32(fi.Size() / blockdev.BlockSize)
	mlog.Printf2("blockdev/file/file", "file.Open %s - %d blocks", name, count)
	return &fileDevice{f: f, count: count}, nil
}

type fileDevice struct {
	f     *os.File
	count uint32
}

func (self *fileDevice) BlockCount() uint32 {
	return self.count
}

func (self *fileDevice) ReadBlock(index uint32, buf []byte) error {
	if self.f == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	_, err := self.f.ReadAt(buf, int64(index)*blockdev.BlockSize)
	return err
}

func (self *fileDevice) WriteBlock(index uint32, buf []byte) error {
	if self.f == nil {
		return blockdev.ErrClosed
	}
	if err := blockdev.CheckBlock(self.count, index, buf); err != nil {
		return err
	}
	mlog.Printf2("blockdev/file/file", "fd.WriteBlock #%d", index)
	_, err := self.f.WriteAt(buf, int64(index)*blockdev.BlockSize)
	return err
}

func (self *fileDevice) Close() error {
	if self.f == nil {
		return blockdev.ErrClosed
	}
	f := self.f
	self.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
