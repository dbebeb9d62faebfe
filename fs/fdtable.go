/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sat Apr 14 15:01:10 2018 mstenber
 * Last modified: Sat Apr 14 15:32:48 2018 mstenber
 * Edit time:     21 min
 *
 */

package fs

import (
	"fmt"

	"github.com/fingon/go-sfs/mlog"
)

// Handle identifies an open file; it is the descriptor table slot.
type Handle int

// NoHandle is used in errors that do not concern a handle.
const NoHandle Handle = -1

type descriptor struct {
	inUse  bool
	slot   int
	cursor int64
}

// fdTable is the volume-wide descriptor table. Each handle has its own
// cursor, even if the same file is open multiple times.
type fdTable struct {
	fds []descriptor
}

func (self fdTable) Init(maxDescriptors int) *fdTable {
	self.fds = make([]descriptor, maxDescriptors)
	return &self
}

// open claims the lowest free handle for the directory slot.
func (self *fdTable) open(slot int) (Handle, error) {
	for i := range self.fds {
		fd := &self.fds[i]
		if !fd.inUse {
			*fd = descriptor{inUse: true, slot: slot}
			mlog.Printf2("fs/fdtable", "fds.open #%d -> %d", slot, i)
			return Handle(i), nil
		}
	}
	return NoHandle, fmt.Errorf("%w: all %d in use", ErrNoFreeDescriptor, len(self.fds))
}

func (self *fdTable) get(h Handle) (*descriptor, error) {
	if h < 0 || int(h) >= len(self.fds) || !self.fds[h].inUse {
		return nil, ErrInvalidHandle
	}
	return &self.fds[h], nil
}

// close frees the handle and returns the directory slot it had.
func (self *fdTable) close(h Handle) (int, error) {
	fd, err := self.get(h)
	if err != nil {
		return -1, err
	}
	slot := fd.slot
	*fd = descriptor{}
	mlog.Printf2("fs/fdtable", "fds.close %d", h)
	return slot, nil
}

// clamp limits cursors of the handles on slot to length.
func (self *fdTable) clamp(slot int, length int64) {
	for i := range self.fds {
		fd := &self.fds[i]
		if fd.inUse && fd.slot == slot && fd.cursor > length {
			fd.cursor = length
		}
	}
}
