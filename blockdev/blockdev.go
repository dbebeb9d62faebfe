/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 11:14:11 2018 mstenber
 * Last modified: Thu Apr 12 10:31:55 2018 mstenber
 * Edit time:     46 min
 *
 */

// blockdev is the shadow behind the throne; it provides a flat array
// of fixed-size blocks backed by some named store on the host. How
// the blocks are actually kept is left to the backends (see
// subpackages and factory).
package blockdev

import (
	"errors"
	"fmt"
)

const BlockSize = 4096

var (
	// ErrNotExist is returned by Backend.Open if the store is missing.
	ErrNotExist = errors.New("blockdev: store does not exist")

	// ErrBusy is returned by Backend.Open if the store is already open.
	ErrBusy = errors.New("blockdev: store already open")

	// ErrBadIndex is returned for block indexes outside the device.
	ErrBadIndex = errors.New("blockdev: block index out of range")

	// ErrBadSize is returned for buffers that are not BlockSize long.
	ErrBadSize = errors.New("blockdev: buffer is not block sized")

	// ErrClosed is returned for I/O on a closed device.
	ErrClosed = errors.New("blockdev: device closed")

	// ErrInvalidName is returned for empty store names.
	ErrInvalidName = errors.New("blockdev: invalid store name")

	// ErrNotStore is returned by Backend.Create if something other
	// than a store of that backend is in the way.
	ErrNotStore = errors.New("blockdev: not a store")
)

// Device provides synchronous fixed-size block I/O by block index.
// Blocks that were never written read back as zeros. Devices are not
// safe for concurrent use.
type Device interface {
	// BlockCount returns the total number of blocks.
	BlockCount() uint32

	// ReadBlock reads block at index to buf (len BlockSize).
	ReadBlock(index uint32, buf []byte) error

	// WriteBlock writes buf (len BlockSize) to block at index.
	WriteBlock(index uint32, buf []byte) error

	// Close releases the device (and the exclusive open of the store).
	Close() error
}

// Backend creates and opens named stores.
type Backend interface {
	// Create creates a new store with the given number of blocks,
	// replacing any existing store with that name. It does not leave
	// the store open.
	Create(name string, blocks uint32) error

	// Open opens existing store exclusively.
	Open(name string) (Device, error)
}

// CheckBlock validates arguments of ReadBlock/WriteBlock; backends
// call it before touching their store.
func CheckBlock(count, index uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("%w: %d bytes", ErrBadSize, len(buf))
	}
	if index >= count {
		return fmt.Errorf("%w: %d >= %d", ErrBadIndex, index, count)
	}
	return nil
}

// CheckCreate validates arguments of Backend.Create.
func CheckCreate(name string, blocks uint32) error {
	if name == "" {
		return ErrInvalidName
	}
	if blocks == 0 {
		return fmt.Errorf("%w: zero blocks", ErrBadIndex)
	}
	return nil
}
