/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr 13 10:16:20 2018 mstenber
 * Last modified: Fri Apr 13 10:40:51 2018 mstenber
 * Edit time:     8 min
 *
 */

package fs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/stvp/assert"
)

func TestOpError(t *testing.T) {
	t.Parallel()
	assert.Nil(t, nameError("create", "x", nil))

	err := nameError("create", "x", ErrAlreadyExists)
	assert.Equal(t, err.Error(), `sfs: create "x": file already exists`)
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	err = handleError("read", 3, ErrInvalidHandle)
	assert.Equal(t, err.Error(), "sfs: read (handle 3): invalid file handle")

	// Already typed errors are passed through as-is
	assert.Equal(t, nameError("other", "y", err), err)

	cause := fmt.Errorf("%w: disk", blockdev.ErrNotExist)
	err = nameError("mount_fs", "disk", cause)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, blockdev.ErrNotExist))

	err = nameError("mount_fs", "disk", blockdev.ErrBusy)
	assert.True(t, errors.Is(err, ErrAlreadyMounted))

	err = nameError("make_fs", "src", fmt.Errorf("%w: src", blockdev.ErrNotStore))
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	err = corruptf("block %d", 7)
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.Equal(t, err.Error(), "file system corrupt: block 7")
}

func TestSuperblock(t *testing.T) {
	t.Parallel()
	sb, err := Config{}.layout()
	assert.Nil(t, err)
	assert.Equal(t, sb.DirBlocks, uint32(1))
	assert.Equal(t, sb.MapStart, uint32(2))
	assert.Equal(t, sb.DataStart, uint32(4))
	assert.Equal(t, sb.DataBlocks, uint32(2*mapEntriesPerBlock))
	sb.DirLen = 3

	buf := make([]byte, blockdev.BlockSize)
	sb.encode(buf)
	sb2, err := decodeSuperblock(buf)
	assert.Nil(t, err)
	assert.Equal(t, sb2, sb)

	sb.DirLen = sb.MaxFiles + 1
	sb.encode(buf)
	_, err = decodeSuperblock(buf)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestDirectoryEncoding(t *testing.T) {
	t.Parallel()
	assert.Equal(t, sbSize+32 < blockdev.BlockSize, true)

	d := directory{}.Init(4)
	_, err := d.create("x")
	assert.Nil(t, err)
	_, err = d.create("y")
	assert.Nil(t, err)
	d.entries[1].size = 5
	d.entries[1].blocks = 1
	d.entries[1].head = 17
	d.remove(0)

	buf := make([]byte, blockdev.BlockSize)
	assert.Equal(t, d.encode(buf), 1)
	d2 := directory{}.Init(4)
	assert.Nil(t, d2.decode(buf, 1, 100))
	assert.Equal(t, d2.entries[0], dirEntry{inUse: true, name: "y", size: 5, blocks: 1, head: 17})

	// Head outside data region
	d2 = directory{}.Init(4)
	assert.True(t, errors.Is(d2.decode(buf, 1, 10), ErrCorrupt))

	// More entries than were written
	d2 = directory{}.Init(4)
	assert.True(t, errors.Is(d2.decode(buf, 2, 100), ErrCorrupt))
}
