/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 15:39:36 2017 mstenber
 * Last modified: Tue Apr 17 09:48:02 2018 mstenber
 * Edit time:     73 min
 *
 */

// fstest provides conformance tests for the fs boundary API.
//
// Tests are mostly written with FSUser which provides ~os (or
// ioutil) style whole-file functionality on top of the handle based
// API, so that the tests themselves stay short.
package fstest

import (
	"errors"

	"github.com/fingon/go-sfs/fs"
	"github.com/fingon/go-sfs/util"
)

// FSUser operates on the currently mounted volume.
type FSUser struct {
	// ChunkSize is the size of individual reads/writes (default
	// 1000, deliberately not block aligned).
	ChunkSize int
}

func (self *FSUser) chunkSize() int {
	if self.ChunkSize == 0 {
		return 1000
	}
	return self.ChunkSize
}

// WriteFile creates (if needed) the file and writes data at offset.
func (self *FSUser) WriteFile(name string, offset int64, data []byte) (err error) {
	err = fs.FsCreate(name)
	if err != nil && !errors.Is(err, fs.ErrAlreadyExists) {
		return
	}
	h, err := fs.FsOpen(name)
	if err != nil {
		return
	}
	defer func() {
		if cerr := fs.FsClose(h); err == nil {
			err = cerr
		}
	}()
	if err = fs.FsLseek(h, offset); err != nil {
		return
	}
	for len(data) > 0 {
		n := util.IMin(len(data), self.chunkSize())
		if _, err = fs.FsWrite(h, data[:n]); err != nil {
			return
		}
		data = data[n:]
	}
	return
}

// ReadFile reads the whole file.
func (self *FSUser) ReadFile(name string) (data []byte, err error) {
	h, err := fs.FsOpen(name)
	if err != nil {
		return
	}
	defer func() {
		if cerr := fs.FsClose(h); err == nil {
			err = cerr
		}
	}()
	buf := make([]byte, self.chunkSize())
	data = []byte{}
	for {
		var n int
		n, err = fs.FsRead(h, buf)
		if err != nil || n == 0 {
			return
		}
		data = append(data, buf[:n]...)
	}
}

// ReadAt reads len(buf) bytes (or less at end of file) at offset.
func (self *FSUser) ReadAt(name string, offset int64, buf []byte) (n int, err error) {
	h, err := fs.FsOpen(name)
	if err != nil {
		return
	}
	defer func() {
		if cerr := fs.FsClose(h); err == nil {
			err = cerr
		}
	}()
	if err = fs.FsLseek(h, offset); err != nil {
		return
	}
	return fs.FsRead(h, buf)
}

// Names returns the names of the files in the mounted volume.
func (self *FSUser) Names() (names []string, err error) {
	m := fs.Mounted()
	if m == nil {
		return nil, fs.ErrNotMounted
	}
	l, err := m.List()
	if err != nil {
		return
	}
	for _, fi := range l {
		names = append(names, fi.Name)
	}
	return
}
