/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 17 09:50:12 2018 mstenber
 * Last modified: Tue Apr 17 13:31:40 2018 mstenber
 * Edit time:     118 min
 *
 */

package fstest

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/fs"
	"github.com/stvp/assert"
)

const blockSize = blockdev.BlockSize

// StoreNamer returns unique store name for the given test.
type StoreNamer func(test string) string

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// unmountAll makes sure nothing is mounted after a test, even a failed
// one.
func unmountAll() {
	if m := fs.Mounted(); m != nil {
		m.Unmount()
	}
}

func mkfsAndMount(t *testing.T, name string, opts fs.Options) *fs.Fs {
	t.Helper()
	assert.Nil(t, fs.MakeFs(name, opts))
	m, err := fs.MountFs(name, opts)
	assert.Nil(t, err)
	return m
}

func openCreated(t *testing.T, name string) fs.Handle {
	t.Helper()
	assert.Nil(t, fs.FsCreate(name))
	h, err := fs.FsOpen(name)
	assert.Nil(t, err)
	return h
}

// ProdFs runs the boundary API conformance tests using the backend
// (and possibly password) of opts. The tests mount volumes, so they
// must not run in parallel with anything else that does.
func ProdFs(t *testing.T, opts fs.Options, store StoreNamer) {
	add := func(name string, cb func(t *testing.T, disk string)) {
		t.Run(name, func(t *testing.T) {
			defer unmountAll()
			cb(t, store(name))
		})
	}
	add("mount", func(t *testing.T, disk string) {
		assert.Nil(t, fs.MakeFs(disk, opts))
		_, err := fs.MountFs(disk, opts)
		assert.Nil(t, err)
		assert.Nil(t, fs.UmountFs(disk))
	})
	add("createdelete", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.2")
		assert.Nil(t, fs.FsClose(h))
		assert.Nil(t, fs.FsDelete("file.2"))
		_, err := fs.FsOpen("file.2")
		assertIs(t, err, fs.ErrNotFound)
		assert.Nil(t, fs.UmountFs(disk))
	})
	add("readwrite", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.3")
		str := []byte("hello world")
		n, err := fs.FsWrite(h, str)
		assert.Nil(t, err)
		assert.Equal(t, n, len(str))
		assert.Nil(t, fs.FsClose(h))

		h, err = fs.FsOpen("file.3")
		assert.Nil(t, err)
		buf := make([]byte, 20)
		n, err = fs.FsRead(h, buf)
		assert.Nil(t, err)
		assert.Equal(t, buf[:n], str)
		assert.Nil(t, fs.FsClose(h))
	})
	add("cursor", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.4")
		wt := bytes.Repeat([]byte("a"), 10)
		_, err := fs.FsWrite(h, wt)
		assert.Nil(t, err)

		// Cursor is at the end after writing
		rd := make([]byte, 10)
		n, err := fs.FsRead(h, rd)
		assert.Nil(t, err)
		assert.Equal(t, n, 0)

		assert.Nil(t, fs.FsLseek(h, 0))
		n, err = fs.FsRead(h, rd)
		assert.Nil(t, err)
		assert.Equal(t, n, 10)
		assert.Equal(t, rd, wt)
	})
	add("multiblock", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.5")
		wt := bytes.Repeat([]byte("a"), 2*blockSize)
		n, err := fs.FsWrite(h, wt)
		assert.Nil(t, err)
		assert.Equal(t, n, len(wt))
		assert.Nil(t, fs.FsLseek(h, 0))
		rd := make([]byte, 2*blockSize+1)
		n, err = fs.FsRead(h, rd)
		assert.Nil(t, err)
		assert.Equal(t, n, 2*blockSize)
		assert.Equal(t, rd[:n], wt)
	})
	add("remount", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.6")
		wt := []byte("hello world")
		_, err := fs.FsWrite(h, wt)
		assert.Nil(t, err)
		assert.Nil(t, fs.FsClose(h))
		assert.Nil(t, fs.UmountFs(disk))

		_, err = fs.MountFs(disk, opts)
		assert.Nil(t, err)
		h, err = fs.FsOpen("file.6")
		assert.Nil(t, err)
		rd := make([]byte, 20)
		n, err := fs.FsRead(h, rd)
		assert.Nil(t, err)
		assert.Equal(t, rd[:n], wt)
		assert.Nil(t, fs.FsClose(h))
		assert.Nil(t, fs.UmountFs(disk))
	})
	add("overwrite", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.7")
		_, err := fs.FsWrite(h, bytes.Repeat([]byte("q"), blockSize))
		assert.Nil(t, err)
		assert.Nil(t, fs.FsLseek(h, 0))
		_, err = fs.FsWrite(h, bytes.Repeat([]byte("a"), 10))
		assert.Nil(t, err)
		size, err := fs.FsGetFilesize(h)
		assert.Nil(t, err)
		assert.Equal(t, size, int64(blockSize))
		rd := make([]byte, 10)
		_, err = fs.FsRead(h, rd)
		assert.Nil(t, err)
		assert.Equal(t, rd[0], byte('q'))
	})
	add("truncate", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.8")
		_, err := fs.FsWrite(h, bytes.Repeat([]byte("a"), 128))
		assert.Nil(t, err)
		assert.Nil(t, fs.FsTruncate(h, 64))
		size, err := fs.FsGetFilesize(h)
		assert.Nil(t, err)
		assert.Equal(t, size, int64(64))

		// Cursor was clamped to the new end
		n, err := fs.FsRead(h, make([]byte, 32))
		assert.Nil(t, err)
		assert.Equal(t, n, 0)
		assert.Nil(t, fs.FsLseek(h, 0))
		n, err = fs.FsRead(h, make([]byte, 128))
		assert.Nil(t, err)
		assert.Equal(t, n, 64)
	})
	add("multifile", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		u := &FSUser{ChunkSize: blockSize}
		for i := 0; i < 16; i++ {
			assert.Nil(t, fs.FsCreate(fmt.Sprintf("file9.%d", i)))
		}
		for i := 0; i < 16; i++ {
			var data []byte
			for j := 0; j < 4; j++ {
				data = append(data, bytes.Repeat([]byte{byte('A' + j)}, blockSize)...)
			}
			assert.Nil(t, u.WriteFile(fmt.Sprintf("file9.%d", i), 0, data))
		}
		for i := 0; i < 16; i++ {
			for j := 0; j < 4; j++ {
				r := make([]byte, 1)
				n, err := u.ReadAt(fmt.Sprintf("file9.%d", i), int64(j*blockSize), r)
				assert.Nil(t, err)
				assert.Equal(t, n, 1)
				assert.Equal(t, r[0], byte('A'+j))
			}
		}
		names, err := u.Names()
		assert.Nil(t, err)
		assert.Equal(t, len(names), 16)
		assert.Nil(t, fs.Mounted().Check())
	})
	add("stress", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.10")
		write := func(c byte, blocks int) {
			buf := bytes.Repeat([]byte{c}, blockSize)
			for i := 0; i < blocks; i++ {
				n, err := fs.FsWrite(h, buf)
				assert.Nil(t, err)
				assert.Equal(t, n, blockSize)
			}
		}
		size := func() int64 {
			size, err := fs.FsGetFilesize(h)
			assert.Nil(t, err)
			return size
		}
		write('A', 128)
		assert.Equal(t, size(), int64(128*blockSize))
		assert.Nil(t, fs.FsLseek(h, 64*blockSize))
		write('B', 32)
		assert.Equal(t, size(), int64(128*blockSize))
		assert.Nil(t, fs.FsLseek(h, 128*blockSize))
		write('C', 64)
		assert.Equal(t, size(), int64(192*blockSize))
		for block, c := range map[int]byte{10: 'A', 80: 'B', 100: 'A', 160: 'C'} {
			assert.Nil(t, fs.FsLseek(h, int64(block*blockSize)))
			rd := make([]byte, 1)
			_, err := fs.FsRead(h, rd)
			assert.Nil(t, err)
			assert.Equal(t, rd[0], c)
		}
		assert.Nil(t, fs.FsClose(h))
		assert.Nil(t, fs.UmountFs(disk))
	})
	add("fserrors", func(t *testing.T, disk string) {
		assertIs(t, fs.MakeFs("", opts), fs.ErrInvalidArgument)
		_, err := fs.MountFs(store("fserrors-missing"), opts)
		assertIs(t, err, fs.ErrNotFound)
		assertIs(t, fs.UmountFs(disk), fs.ErrNotMounted)
		mkfsAndMount(t, disk, opts)
		_, err = fs.MountFs(disk, opts)
		assertIs(t, err, fs.ErrAlreadyMounted)
		assert.Nil(t, fs.UmountFs(disk))
	})
	add("fileerrors", func(t *testing.T, disk string) {
		mkfsAndMount(t, disk, opts)
		h := openCreated(t, "file.12")
		assertIs(t, fs.FsCreate("file.12"), fs.ErrAlreadyExists)
		assertIs(t, fs.FsDelete("file.12"), fs.ErrBusy)
		buf := make([]byte, 10)
		_, err := fs.FsWrite(h+1, buf)
		assertIs(t, err, fs.ErrInvalidHandle)
		_, err = fs.FsWrite(h, []byte("hello world"))
		assert.Nil(t, err)
		assert.Nil(t, fs.FsLseek(h, 0))
		_, err = fs.FsRead(h+1, buf)
		assertIs(t, err, fs.ErrInvalidHandle)
		assertIs(t, fs.FsTruncate(h, 100), fs.ErrInvalidArgument)
		assertIs(t, fs.FsTruncate(h+1, 0), fs.ErrInvalidHandle)
		assertIs(t, fs.FsLseek(h+1, 0), fs.ErrInvalidHandle)
		_, err = fs.FsGetFilesize(h + 1)
		assertIs(t, err, fs.ErrInvalidHandle)
		assertIs(t, fs.FsClose(h+1), fs.ErrInvalidHandle)
		assert.Nil(t, fs.FsClose(h))
		assert.Nil(t, fs.FsDelete("file.12"))
		assert.Nil(t, fs.UmountFs(disk))
	})
}
