/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr 13 10:20:31 2018 mstenber
 * Last modified: Fri Apr 13 12:31:09 2018 mstenber
 * Edit time:     48 min
 *
 */

package fs

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
)

const sbVersion = 1

var sbMagic = [4]byte{'S', 'F', 'S', 0}

// superblock lives in block 0. It is encoded big-endian with
// encoding/binary, followed by SHA-256 of the encoded bytes.
//
// DirSum is SHA-256 of the whole directory region as written.
type superblock struct {
	Magic          [4]byte
	Version        uint16
	UUID           uuid.UUID
	BlockSize      uint32
	TotalBlocks    uint32
	DirStart       uint32
	DirBlocks      uint32
	DirLen         uint32
	MapStart       uint32
	MapBlocks      uint32
	DataStart      uint32
	DataBlocks     uint32
	MaxFiles       uint32
	MaxDescriptors uint32
	DirSum         [sha256.Size]byte
}

var sbSize = binary.Size(superblock{})

func (self *superblock) encode(buf []byte) {
	self.Magic = sbMagic
	self.Version = sbVersion
	var b bytes.Buffer
	err := binary.Write(&b, binary.BigEndian, self)
	if err != nil {
		log.Panic(err)
	}
	sum := sha256.Sum256(b.Bytes())
	b.Write(sum[:])
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, b.Bytes())
}

func decodeSuperblock(buf []byte) (*superblock, error) {
	if !bytes.Equal(buf[:len(sbMagic)], sbMagic[:]) {
		return nil, corruptf("bad superblock magic %x", buf[:len(sbMagic)])
	}
	sum := sha256.Sum256(buf[:sbSize])
	if !bytes.Equal(sum[:], buf[sbSize:sbSize+sha256.Size]) {
		return nil, corruptf("superblock checksum mismatch")
	}
	sb := &superblock{}
	err := binary.Read(bytes.NewReader(buf[:sbSize]), binary.BigEndian, sb)
	if err != nil {
		return nil, corruptf("superblock decode: %v", err)
	}
	if sb.Version != sbVersion {
		return nil, corruptf("unsupported version %d", sb.Version)
	}
	return sb, sb.validate()
}

// validate checks the layout is self-consistent.
func (self *superblock) validate() error {
	switch {
	case self.BlockSize != blockdev.BlockSize:
		return corruptf("block size %d", self.BlockSize)
	case self.DirStart != 1:
		return corruptf("directory at %d", self.DirStart)
	case uint64(self.DirBlocks)*blockdev.BlockSize < uint64(self.MaxFiles)*dirEntrySize:
		return corruptf("directory of %d blocks too small", self.DirBlocks)
	case self.MapStart != self.DirStart+self.DirBlocks:
		return corruptf("map at %d", self.MapStart)
	case self.DataStart != self.MapStart+self.MapBlocks:
		return corruptf("data at %d", self.DataStart)
	case self.DataBlocks == 0 || uint64(self.DataStart)+uint64(self.DataBlocks) > uint64(self.TotalBlocks):
		return corruptf("%d data blocks", self.DataBlocks)
	case uint64(self.DataBlocks) > uint64(self.MapBlocks)*mapEntriesPerBlock:
		return corruptf("%d data blocks do not fit map", self.DataBlocks)
	case self.MaxFiles == 0 || self.MaxFiles > maxFilesLimit:
		return corruptf("max files %d", self.MaxFiles)
	case self.MaxDescriptors == 0 || self.MaxDescriptors > maxDescriptorsLimit:
		return corruptf("max descriptors %d", self.MaxDescriptors)
	case self.DirLen > self.MaxFiles:
		return corruptf("%d directory entries", self.DirLen)
	}
	return nil
}
