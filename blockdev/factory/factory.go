/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 12:22:52 2018 mstenber
 * Last modified: Thu Apr 12 15:31:17 2018 mstenber
 * Edit time:     41 min
 *
 */

package factory

import (
	"fmt"
	"sort"

	"github.com/fingon/go-sfs/blockdev"
	"github.com/fingon/go-sfs/blockdev/badger"
	"github.com/fingon/go-sfs/blockdev/bolt"
	"github.com/fingon/go-sfs/blockdev/file"
	"github.com/fingon/go-sfs/blockdev/inmemory"
	"github.com/fingon/go-sfs/codec"
	"github.com/fingon/go-sfs/mlog"
	"github.com/fingon/go-sfs/util"
)

const DefaultBackend = "file"

// DefaultSalt is used if password is given without salt.
const DefaultSalt = "go-sfs"

type factoryCallback func() blockdev.Backend

var backendFactories = map[string]factoryCallback{
	"inmemory": func() blockdev.Backend {
		return inmemory.NewInMemoryBackend()
	},
	"badger": func() blockdev.Backend {
		return badger.NewBadgerBackend()
	},
	"bolt": func() blockdev.Backend {
		return bolt.NewBoltBackend()
	},
	"file": func() blockdev.Backend {
		return file.NewFileBackend()
	}}

// List returns the names of available backends in sorted order.
func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New returns backend by name; empty name is DefaultBackend.
func New(name string) (blockdev.Backend, error) {
	name = util.SOr(name, DefaultBackend)
	mlog.Printf2("blockdev/factory/factory", "f.New %v", name)
	cb, ok := backendFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, List())
	}
	return cb(), nil
}

type CryptoConfiguration struct {
	Password, Salt string
	Iterations     int
}

// NewCodec returns the codec for the configuration; without password
// it is the identity chain.
func NewCodec(config CryptoConfiguration) codec.Codec {
	c := &codec.CodecChain{}
	if config.Password == "" {
		return c
	}
	mlog.Printf2("blockdev/factory/factory", " with encryption")
	salt := util.SOr(config.Salt, DefaultSalt)
	iterations := util.IOr(config.Iterations, codec.DefaultIterations)
	c1 := codec.EncryptingCodec{}.Init([]byte(config.Password), []byte(salt), iterations)
	return c.Init(c1)
}

// WrapDevice passes dev through the codec of config, if any.
func WrapDevice(dev blockdev.Device, config CryptoConfiguration) blockdev.Device {
	if config.Password == "" {
		return dev
	}
	return blockdev.NewCodecDevice(dev, NewCodec(config))
}
