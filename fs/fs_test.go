/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 14:31:48 2017 mstenber
 * Last modified: Mon Apr 16 10:31:02 2018 mstenber
 * Edit time:     164 min
 *
 */

package fs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/blockdev/inmemory"
	"github.com/stvp/assert"
)

// Tests in this package mount volumes, and as only one may be mounted
// at a time, none of them are parallel.

func testOptions(config Config) Options {
	return Options{Backend: "inmemory", Config: config}
}

func newTestFs(t *testing.T, name string, config Config) *Fs {
	opts := testOptions(config)
	assert.Nil(t, MakeFs(name, opts))
	fs, err := MountFs(name, opts)
	assert.Nil(t, err)
	t.Cleanup(func() {
		if Mounted() == fs {
			fs.Unmount()
		}
		inmemory.Remove(name)
	})
	return fs
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func TestMakeFsErrors(t *testing.T) {
	assertIs(t, MakeFs("", testOptions(Config{})), ErrInvalidArgument)
	assertIs(t, MakeFs("x", testOptions(Config{TotalBlocks: 4})), ErrInvalidArgument)
	assertIs(t, MakeFs("x", testOptions(Config{MaxFiles: -1})), ErrInvalidArgument)
	assertIs(t, MakeFs("x", testOptions(Config{MaxDescriptors: maxDescriptorsLimit + 1})), ErrInvalidArgument)
	assertIs(t, MakeFs("x", Options{Backend: "nonexistent"}), ErrInvalidArgument)

	var oe *OpError
	err := MakeFs("", testOptions(Config{}))
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, oe.Op, "make_fs")
}

func TestMountLifecycle(t *testing.T) {
	_, err := MountFs("mount-missing", testOptions(Config{}))
	assertIs(t, err, ErrNotFound)
	assertIs(t, UmountFs("mount-missing"), ErrNotMounted)
	assertIs(t, FsCreate("x"), ErrNotMounted)

	fs := newTestFs(t, "mount-1", Config{})
	assert.Equal(t, Mounted(), fs)
	assert.Equal(t, fs.Name(), "mount-1")

	// Only one volume at a time, whatever its name
	_, err = MountFs("mount-1", testOptions(Config{}))
	assertIs(t, err, ErrAlreadyMounted)
	assert.Nil(t, MakeFs("mount-2", testOptions(Config{})))
	defer inmemory.Remove("mount-2")
	_, err = MountFs("mount-2", testOptions(Config{}))
	assertIs(t, err, ErrAlreadyMounted)

	// Recreating mounted store is not possible either
	assertIs(t, MakeFs("mount-1", testOptions(Config{})), ErrAlreadyMounted)

	assertIs(t, UmountFs("mount-2"), ErrNotMounted)
	assert.Nil(t, FsCreate("x"))
	assert.Nil(t, UmountFs("mount-1"))
	assert.Nil(t, Mounted())

	// Everything fails after unmount
	assertIs(t, fs.Unmount(), ErrNotMounted)
	assertIs(t, fs.Create("y"), ErrNotMounted)
	_, err = fs.Open("x")
	assertIs(t, err, ErrNotMounted)
	_, err = fs.Read(0, make([]byte, 1))
	assertIs(t, err, ErrNotMounted)
	assertIs(t, fs.Sync(), ErrNotMounted)
	assertIs(t, fs.Check(), ErrNotMounted)
	assertIs(t, UmountFs("mount-1"), ErrNotMounted)

	fs, err = MountFs("mount-2", testOptions(Config{}))
	assert.Nil(t, err)
	assert.Nil(t, fs.Unmount())
}

func TestDirectory(t *testing.T) {
	fs := newTestFs(t, "dir", Config{MaxFiles: 4})
	assertIs(t, fs.Create(""), ErrInvalidArgument)
	assertIs(t, fs.Create("0123456789abcdef"), ErrInvalidArgument)
	assertIs(t, fs.Create("a\x00b"), ErrInvalidArgument)
	assert.Nil(t, fs.Create("0123456789abcde"))
	assertIs(t, fs.Create("0123456789abcde"), ErrAlreadyExists)
	assert.Nil(t, fs.Create("A"))
	assert.Nil(t, fs.Create("a"))
	assert.Nil(t, fs.Create("b"))
	assertIs(t, fs.Create("c"), ErrOutOfSpace)

	assertIs(t, fs.Delete("c"), ErrNotFound)
	h, err := fs.Open("a")
	assert.Nil(t, err)
	assertIs(t, fs.Delete("a"), ErrBusy)
	fi, err := fs.Stat("a")
	assert.Nil(t, err)
	assert.Equal(t, fi, FileInfo{Name: "a", Head: NoBlock, OpenCount: 1})
	assert.Nil(t, fs.Close(h))
	assert.Nil(t, fs.Delete("a"))
	_, err = fs.Stat("a")
	assertIs(t, err, ErrNotFound)

	// Freed slot is reused
	assert.Nil(t, fs.Create("c"))
	l, err := fs.List()
	assert.Nil(t, err)
	names := []string{}
	for _, fi := range l {
		names = append(names, fi.Name)
	}
	assert.Equal(t, names, []string{"0123456789abcde", "A", "c", "b"})
}

func TestDescriptors(t *testing.T) {
	fs := newTestFs(t, "fds", Config{MaxDescriptors: 3})
	_, err := fs.Open("a")
	assertIs(t, err, ErrNotFound)
	assert.Nil(t, fs.Create("a"))
	for i := 0; i < 3; i++ {
		h, err := fs.Open("a")
		assert.Nil(t, err)
		assert.Equal(t, h, Handle(i))
	}
	_, err = fs.Open("a")
	assertIs(t, err, ErrNoFreeDescriptor)

	assertIs(t, fs.Close(3), ErrInvalidHandle)
	assertIs(t, fs.Close(-1), ErrInvalidHandle)
	assert.Nil(t, fs.Close(1))
	assertIs(t, fs.Close(1), ErrInvalidHandle)
	_, err = fs.FileSize(1)
	assertIs(t, err, ErrInvalidHandle)

	h, err := fs.Open("a")
	assert.Nil(t, err)
	assert.Equal(t, h, Handle(1))
	fi, err := fs.Stat("a")
	assert.Nil(t, err)
	assert.Equal(t, fi.OpenCount, 3)
}

func TestReadWrite(t *testing.T) {
	fs := newTestFs(t, "rw", Config{})
	assert.Nil(t, fs.Create("f"))
	h, err := fs.Open("f")
	assert.Nil(t, err)

	_, err = fs.Write(h, nil)
	assertIs(t, err, ErrInvalidArgument)
	_, err = fs.Read(h, nil)
	assertIs(t, err, ErrInvalidArgument)
	_, err = fs.Write(h+1, []byte("x"))
	assertIs(t, err, ErrInvalidHandle)

	data := make([]byte, 3*blockdev.BlockSize+17)
	for i := range data {
		data[i] = byte(i * 7)
	}
	n, err := fs.Write(h, data)
	assert.Nil(t, err)
	assert.Equal(t, n, len(data))
	size, err := fs.FileSize(h)
	assert.Nil(t, err)
	assert.Equal(t, size, int64(len(data)))
	fi, err := fs.Stat("f")
	assert.Nil(t, err)
	assert.Equal(t, fi.Blocks, uint32(4))

	// At end of file
	n, err = fs.Read(h, make([]byte, 10))
	assert.Nil(t, err)
	assert.Equal(t, n, 0)

	assertIs(t, fs.Seek(h, -1), ErrInvalidArgument)
	assertIs(t, fs.Seek(h, size+1), ErrInvalidArgument)
	assert.Nil(t, fs.Seek(h, size))

	// Overwrite across block boundary, in place
	patch := bytes.Repeat([]byte("p"), 100)
	assert.Nil(t, fs.Seek(h, blockdev.BlockSize-50))
	n, err = fs.Write(h, patch)
	assert.Nil(t, err)
	assert.Equal(t, n, len(patch))
	copy(data[blockdev.BlockSize-50:], patch)
	pos, err := fs.Tell(h)
	assert.Nil(t, err)
	assert.Equal(t, pos, int64(blockdev.BlockSize+50))

	// Read all back in odd-sized pieces
	assert.Nil(t, fs.Seek(h, 0))
	var got []byte
	buf := make([]byte, 1000)
	for {
		n, err = fs.Read(h, buf)
		assert.Nil(t, err)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, got, data)

	// Extend from the middle of the last block
	assert.Nil(t, fs.Seek(h, size-7))
	tail := bytes.Repeat([]byte("t"), blockdev.BlockSize)
	_, err = fs.Write(h, tail)
	assert.Nil(t, err)
	size, err = fs.FileSize(h)
	assert.Nil(t, err)
	assert.Equal(t, size, int64(len(data)-7+len(tail)))
	assert.Nil(t, fs.Check())
}

func TestTruncate(t *testing.T) {
	fs := newTestFs(t, "trunc", Config{})
	assert.Nil(t, fs.Create("f"))
	h1, _ := fs.Open("f")
	h2, _ := fs.Open("f")
	info, err := fs.Info()
	assert.Nil(t, err)
	free := info.FreeBlocks

	data := bytes.Repeat([]byte("0123456789"), 1000)
	_, err = fs.Write(h1, data)
	assert.Nil(t, err)
	assert.Nil(t, fs.Seek(h2, 5000))

	assertIs(t, fs.Truncate(h1, int64(len(data)+1)), ErrInvalidArgument)
	assertIs(t, fs.Truncate(h1, -1), ErrInvalidArgument)

	assert.Nil(t, fs.Truncate(h1, 4097))
	p1, _ := fs.Tell(h1)
	p2, _ := fs.Tell(h2)
	assert.Equal(t, p1, int64(4097))
	assert.Equal(t, p2, int64(4097))
	info, _ = fs.Info()
	assert.Equal(t, info.FreeBlocks, free-2)

	assert.Nil(t, fs.Seek(h2, 4090))
	buf := make([]byte, 100)
	n, err := fs.Read(h2, buf)
	assert.Nil(t, err)
	assert.Equal(t, buf[:n], data[4090:4097])

	// Block boundary keeps exactly one block
	assert.Nil(t, fs.Truncate(h1, 4096))
	fi, _ := fs.Stat("f")
	assert.Equal(t, fi.Blocks, uint32(1))

	assert.Nil(t, fs.Truncate(h2, 0))
	fi, _ = fs.Stat("f")
	assert.Equal(t, fi, FileInfo{Name: "f", Head: NoBlock, OpenCount: 2})
	info, _ = fs.Info()
	assert.Equal(t, info.FreeBlocks, free)
	assert.Nil(t, fs.Check())
}

func TestOutOfSpace(t *testing.T) {
	// 4 data blocks: superblock, directory and 2 map blocks first
	fs := newTestFs(t, "full", Config{TotalBlocks: 8})
	info, err := fs.Info()
	assert.Nil(t, err)
	assert.Equal(t, info.DataBlocks, uint32(4))
	assert.Nil(t, fs.Create("f"))
	h, _ := fs.Open("f")
	data := bytes.Repeat([]byte("x"), 5*blockdev.BlockSize)
	n, err := fs.Write(h, data)
	assertIs(t, err, ErrOutOfSpace)
	assert.Equal(t, n, 4*blockdev.BlockSize)
	size, _ := fs.FileSize(h)
	assert.Equal(t, size, int64(n))
	assert.Nil(t, fs.Check())

	// Space freed by truncate is usable again
	assert.Nil(t, fs.Truncate(h, blockdev.BlockSize))
	n, err = fs.Write(h, data[:10])
	assert.Nil(t, err)
	assert.Equal(t, n, 10)
	assert.Nil(t, fs.Check())
}

func TestChainOrder(t *testing.T) {
	fs := newTestFs(t, "chain", Config{})
	assert.Nil(t, fs.Create("a"))
	assert.Nil(t, fs.Create("b"))
	ha, _ := fs.Open("a")
	hb, _ := fs.Open("b")
	a := bytes.Repeat([]byte("a"), 2*blockdev.BlockSize)
	b1 := bytes.Repeat([]byte("1"), blockdev.BlockSize)
	b2 := bytes.Repeat([]byte("2"), 3*blockdev.BlockSize)
	_, err := fs.Write(ha, a)
	assert.Nil(t, err)
	_, err = fs.Write(hb, b1)
	assert.Nil(t, err)
	assert.Nil(t, fs.Close(ha))
	assert.Nil(t, fs.Delete("a"))

	// b now grows into lower addresses than its first block
	_, err = fs.Write(hb, b2)
	assert.Nil(t, err)
	fi, _ := fs.Stat("b")
	assert.Equal(t, fi.Head, uint32(2))
	assert.Equal(t, fi.Blocks, uint32(4))
	assert.Nil(t, fs.Seek(hb, 0))
	buf := make([]byte, 4*blockdev.BlockSize)
	n, err := fs.Read(hb, buf)
	assert.Nil(t, err)
	assert.Equal(t, n, len(buf))
	assert.Equal(t, buf, append(b1, b2...))
	assert.Nil(t, fs.Check())
}

func TestPersistence(t *testing.T) {
	name := "persist"
	fs := newTestFs(t, name, Config{MaxFiles: 200, MaxDescriptors: 5})
	contents := map[string][]byte{}
	for _, n := range []string{"a", "b", "c", "d"} {
		assert.Nil(t, fs.Create(n))
		h, _ := fs.Open(n)
		contents[n] = bytes.Repeat([]byte(n), 5000)
		_, err := fs.Write(h, contents[n])
		assert.Nil(t, err)
		assert.Nil(t, fs.Close(h))
	}
	assert.Nil(t, fs.Delete("b"))
	delete(contents, "b")
	assert.Nil(t, fs.Sync())
	h, _ := fs.Open("a")
	assert.Nil(t, fs.Unmount())

	fs, err := MountFs(name, testOptions(Config{}))
	assert.Nil(t, err)
	info, err := fs.Info()
	assert.Nil(t, err)
	assert.Equal(t, info.MaxFiles, uint32(200))
	assert.Equal(t, info.MaxDescriptors, uint32(5))
	assert.Equal(t, len(info.Files), 3)
	assert.Equal(t, info.Files[1].Name, "c")

	// Handles do not survive, and neither do open counts
	_, err = fs.FileSize(h)
	assertIs(t, err, ErrInvalidHandle)
	assert.Nil(t, fs.Delete("d"))
	delete(contents, "d")

	for n, data := range contents {
		h, err := fs.Open(n)
		assert.Nil(t, err)
		buf := make([]byte, 2*len(data))
		c, err := fs.Read(h, buf)
		assert.Nil(t, err)
		assert.Equal(t, buf[:c], data)
		assert.Nil(t, fs.Close(h))
	}
	assert.Nil(t, fs.Unmount())

	fs, err = MountFs(name, testOptions(Config{}))
	assert.Nil(t, err)
	l, _ := fs.List()
	assert.Equal(t, len(l), 2)
	assert.Nil(t, fs.Unmount())
}

func corruptBlock(t *testing.T, name string, index uint32, ofs int) {
	be := inmemory.NewInMemoryBackend()
	dev, err := be.Open(name)
	assert.Nil(t, err)
	buf := make([]byte, blockdev.BlockSize)
	assert.Nil(t, dev.ReadBlock(index, buf))
	buf[ofs] ^= 0x42
	assert.Nil(t, dev.WriteBlock(index, buf))
	assert.Nil(t, dev.Close())
}

func TestCorrupt(t *testing.T) {
	add := func(desc string, index uint32, ofs int) {
		t.Run(desc, func(t *testing.T) {
			name := "corrupt-" + desc
			fs := newTestFs(t, name, Config{})
			assert.Nil(t, fs.Create("f"))
			h, _ := fs.Open("f")
			_, err := fs.Write(h, []byte("data"))
			assert.Nil(t, err)
			assert.Nil(t, fs.Unmount())

			corruptBlock(t, name, index, ofs)
			_, err = MountFs(name, testOptions(Config{}))
			assertIs(t, err, ErrCorrupt)
			assert.Nil(t, Mounted())
		})
	}
	add("magic", 0, 0)
	add("superblock", 0, 20)
	add("checksum", 0, sbSize+1)
	add("directory", 1, 30)
	// map starts at block 2; first entry is the end of chain of "f"
	add("map", 2, 0)
}

func TestCheck(t *testing.T) {
	fs := newTestFs(t, "check", Config{})
	assert.Nil(t, fs.Create("a"))
	assert.Nil(t, fs.Create("b"))
	ha, _ := fs.Open("a")
	hb, _ := fs.Open("b")
	fs.Write(ha, make([]byte, 2*blockdev.BlockSize))
	fs.Write(hb, make([]byte, blockdev.BlockSize))
	assert.Nil(t, fs.Check())

	// Make b share the second block of a
	e := &fs.dir.entries[fs.dir.find("b")]
	e.head = fs.alloc.nth(fs.dir.entries[fs.dir.find("a")].head, 1)
	assertIs(t, fs.Check(), ErrCorrupt)
}

func TestEncrypted(t *testing.T) {
	name := "encrypted"
	opts := testOptions(Config{})
	opts.Password = "secret"
	opts.Iterations = 64
	assert.Nil(t, MakeFs(name, opts))
	defer inmemory.Remove(name)

	// Wrong (or no) password cannot mount
	_, err := MountFs(name, testOptions(Config{}))
	assertIs(t, err, ErrCorrupt)

	fs, err := MountFs(name, opts)
	assert.Nil(t, err)
	assert.Nil(t, fs.Create("f"))
	h, _ := fs.Open("f")
	_, err = fs.Write(h, []byte("plaintext"))
	assert.Nil(t, err)
	assert.Nil(t, fs.Unmount())

	fs, err = MountFs(name, opts)
	assert.Nil(t, err)
	h, err = fs.Open("f")
	assert.Nil(t, err)
	buf := make([]byte, 20)
	n, _ := fs.Read(h, buf)
	assert.Equal(t, string(buf[:n]), "plaintext")
	assert.Nil(t, fs.Unmount())
}
