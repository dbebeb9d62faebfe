/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sat Jan  6 00:13:13 2018 mstenber
 * Last modified: Thu Apr 12 11:02:19 2018 mstenber
 * Edit time:     17 min
 *
 */

package blockdev

import (
	"github.com/fingon/go-sfs/codec"
	"github.com/fingon/go-sfs/mlog"
)

// codecDevice passes every block through Codec on the way to and from
// the wrapped Device. Block index is used as the codec tweak.
type codecDevice struct {
	Device
	codec codec.Codec
	buf   []byte
}

var _ Device = &codecDevice{}

// NewCodecDevice wraps dev with c; closing the returned device closes
// dev.
func NewCodecDevice(dev Device, c codec.Codec) Device {
	return &codecDevice{Device: dev, codec: c, buf: make([]byte, BlockSize)}
}

func (self *codecDevice) ReadBlock(index uint32, buf []byte) error {
	if err := CheckBlock(self.BlockCount(), index, buf); err != nil {
		return err
	}
	if err := self.Device.ReadBlock(index, self.buf); err != nil {
		return err
	}
	mlog.Printf2("blockdev/codecdevice", "cd.ReadBlock #%d", index)
	return self.codec.DecodeBlock(uint64(index), buf, self.buf)
}

func (self *codecDevice) WriteBlock(index uint32, buf []byte) error {
	if err := CheckBlock(self.BlockCount(), index, buf); err != nil {
		return err
	}
	mlog.Printf2("blockdev/codecdevice", "cd.WriteBlock #%d", index)
	if err := self.codec.EncodeBlock(uint64(index), self.buf, buf); err != nil {
		return err
	}
	return self.Device.WriteBlock(index, self.buf)
}
