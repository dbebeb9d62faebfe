/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Apr 12 11:20:31 2018 mstenber
 * Last modified: Thu Apr 12 12:58:02 2018 mstenber
 * Edit time:     34 min
 *
 */

// blockdevtest provides the shared test suite all blockdev backends
// must pass.
package blockdevtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/stvp/assert"
)

const testBlocks = 16

// ProdBackend exercises backend using store called name (which must
// not exist yet, and is left behind afterwards).
func ProdBackend(t *testing.T, be blockdev.Backend, name string) {
	_, err := be.Open(name)
	assert.True(t, errors.Is(err, blockdev.ErrNotExist))

	assert.True(t, errors.Is(be.Create("", testBlocks), blockdev.ErrInvalidName))

	err = be.Create(name, testBlocks)
	assert.Nil(t, err)

	dev, err := be.Open(name)
	assert.Nil(t, err)
	assert.Equal(t, dev.BlockCount(), uint32(testBlocks))

	// Opens are exclusive
	_, err = be.Open(name)
	assert.True(t, errors.Is(err, blockdev.ErrBusy))

	// Unwritten blocks are zeros
	buf := bytes.Repeat([]byte{0xff}, blockdev.BlockSize)
	err = dev.ReadBlock(testBlocks-1, buf)
	assert.Nil(t, err)
	assert.Equal(t, buf, make([]byte, blockdev.BlockSize))

	// Argument checking
	err = dev.ReadBlock(testBlocks, buf)
	assert.True(t, errors.Is(err, blockdev.ErrBadIndex))
	err = dev.WriteBlock(0, buf[:10])
	assert.True(t, errors.Is(err, blockdev.ErrBadSize))

	// Writes stick, and do not leak to neighbours
	a := bytes.Repeat([]byte("a"), blockdev.BlockSize)
	b := bytes.Repeat([]byte("b"), blockdev.BlockSize)
	assert.Nil(t, dev.WriteBlock(3, a))
	assert.Nil(t, dev.WriteBlock(4, b))
	assert.Nil(t, dev.WriteBlock(3, b))
	assert.Nil(t, dev.ReadBlock(3, buf))
	assert.Equal(t, buf, b)
	assert.Nil(t, dev.ReadBlock(2, buf))
	assert.Equal(t, buf, make([]byte, blockdev.BlockSize))

	// Caller may reuse its buffer after write
	copy(b, a)
	assert.Nil(t, dev.ReadBlock(4, buf))
	assert.Equal(t, buf[0], byte('b'))

	assert.Nil(t, dev.Close())
	assert.True(t, errors.Is(dev.ReadBlock(3, buf), blockdev.ErrClosed))

	// Data survives reopening
	dev, err = be.Open(name)
	assert.Nil(t, err)
	assert.Nil(t, dev.ReadBlock(3, buf))
	assert.Equal(t, buf[blockdev.BlockSize-1], byte('b'))
	assert.Nil(t, dev.Close())

	// Create replaces the old store
	assert.Nil(t, be.Create(name, testBlocks/2))
	dev, err = be.Open(name)
	assert.Nil(t, err)
	assert.Equal(t, dev.BlockCount(), uint32(testBlocks/2))
	assert.Nil(t, dev.ReadBlock(3, buf))
	assert.Equal(t, buf, make([]byte, blockdev.BlockSize))
	assert.Nil(t, dev.Close())
}
