/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr 13 09:30:55 2018 mstenber
 * Last modified: Fri Apr 13 11:48:02 2018 mstenber
 * Edit time:     26 min
 *
 */

package fs

import (
	"fmt"
	"math"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/blockdev/factory"
	"github.com/fingon/go-sfs/util"
)

const (
	MaxFilenameLen        = 15
	DefaultMaxFiles       = 64
	DefaultMaxDescriptors = 32
	DefaultTotalBlocks    = 8192
	DefaultMapBlocks      = 2

	maxFilesLimit       = 1 << 16
	maxDescriptorsLimit = 1 << 16
)

// Config is the volume geometry. It is given to MakeFs and stored in
// the superblock; zero fields get the defaults.
type Config struct {
	TotalBlocks    int
	MaxFiles       int
	MaxDescriptors int
	MapBlocks      int
}

// Options covers what is needed to create or mount a volume.
type Options struct {
	// Backend is the blockdev/factory backend name (default file).
	Backend string

	// Password enables encryption of every block if set.
	Password   string
	Salt       string
	Iterations int

	Config Config
}

func (self Options) crypto() factory.CryptoConfiguration {
	return factory.CryptoConfiguration{Password: self.Password,
		Salt: self.Salt, Iterations: self.Iterations}
}

func (self Config) withDefaults() Config {
	self.TotalBlocks = util.IOr(self.TotalBlocks, DefaultTotalBlocks)
	self.MaxFiles = util.IOr(self.MaxFiles, DefaultMaxFiles)
	self.MaxDescriptors = util.IOr(self.MaxDescriptors, DefaultMaxDescriptors)
	self.MapBlocks = util.IOr(self.MapBlocks, DefaultMapBlocks)
	return self
}

// layout computes the superblock for the configuration.
func (self Config) layout() (*superblock, error) {
	c := self.withDefaults()
	if c.MaxFiles < 1 || c.MaxFiles > maxFilesLimit {
		return nil, fmt.Errorf("%w: max files %d", ErrInvalidArgument, c.MaxFiles)
	}
	if c.MaxDescriptors < 1 || c.MaxDescriptors > maxDescriptorsLimit {
		return nil, fmt.Errorf("%w: max descriptors %d", ErrInvalidArgument, c.MaxDescriptors)
	}
	if c.MapBlocks < 1 || c.TotalBlocks < 1 || int64(c.TotalBlocks) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: geometry %d/%d", ErrInvalidArgument, c.TotalBlocks, c.MapBlocks)
	}
	dirBlocks := util.CeilDiv(int64(c.MaxFiles*dirEntrySize), blockdev.BlockSize)
	mapStart := 1 + dirBlocks
	dataStart := mapStart + int64(c.MapBlocks)
	if int64(c.TotalBlocks) <= dataStart {
		return nil, fmt.Errorf("%w: %d blocks is too few (data would start at %d)",
			ErrInvalidArgument, c.TotalBlocks, dataStart)
	}
	dataBlocks := util.I64Min(int64(c.TotalBlocks)-dataStart,
		int64(c.MapBlocks)*mapEntriesPerBlock)
	sb := &superblock{
		BlockSize:      blockdev.BlockSize,
		TotalBlocks:    uint32(c.TotalBlocks),
		DirStart:       1,
		DirBlocks:      uint32(dirBlocks),
		MapStart:       uint32(mapStart),
		MapBlocks:      uint32(c.MapBlocks),
		DataStart:      uint32(dataStart),
		DataBlocks:     uint32(dataBlocks),
		MaxFiles:       uint32(c.MaxFiles),
		MaxDescriptors: uint32(c.MaxDescriptors),
	}
	return sb, nil
}
