/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sun Apr 15 14:01:12 2018 mstenber
 * Last modified: Sun Apr 15 14:48:30 2018 mstenber
 * Edit time:     29 min
 *
 */

package fs

import (
	"fmt"
	"io"
)

// File is an open file, usable with the io package.
type File struct {
	fs   *Fs
	h    Handle
	name string
}

var _ io.ReadWriteSeeker = &File{}
var _ io.Closer = &File{}

// OpenFile opens the named file.
func (self *Fs) OpenFile(name string) (*File, error) {
	h, err := self.Open(name)
	if err != nil {
		return nil, err
	}
	return &File{fs: self, h: h, name: name}, nil
}

func (self *File) Name() string {
	return self.name
}

func (self *File) Handle() Handle {
	return self.h
}

// Read implements io.Reader; io.EOF is returned at end of file.
func (self *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := self.fs.Read(self.h, p)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

func (self *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return self.fs.Write(self.h, p)
}

// Seek implements io.Seeker. The resulting offset must be within
// the file.
func (self *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	var err error
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base, err = self.fs.Tell(self.h)
	case io.SeekEnd:
		base, err = self.fs.FileSize(self.h)
	default:
		err = handleError("lseek", self.h, fmt.Errorf("%w: whence %d", ErrInvalidArgument, whence))
	}
	if err != nil {
		return 0, err
	}
	if err = self.fs.Seek(self.h, base+offset); err != nil {
		return 0, err
	}
	return base + offset, nil
}

func (self *File) Truncate(size int64) error {
	return self.fs.Truncate(self.h, size)
}

func (self *File) Size() (int64, error) {
	return self.fs.FileSize(self.h)
}

func (self *File) Close() error {
	return self.fs.Close(self.h)
}
