/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sun Dec 24 16:42:12 2017 mstenber
 * Last modified: Wed Apr 11 15:44:08 2018 mstenber
 * Edit time:     97 min
 *
 */

// codec library is responsible for transforming fixed-size blocks on
// their way to and from the block device. The transformations are
// length preserving, as the device has no room for anything else; in
// practise this means encrypting/decrypting with block index as the
// tweak.
//
// CodecChain makes it possible to combine multiple Codecs that do the
// particular sub-EncodeBlock/DecodeBlock steps.
package codec

import (
	"crypto/aes"
	"errors"

	"github.com/fingon/go-sfs/mlog"
	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/xts"
)

// ErrLength is returned when dst and src sizes do not match or the
// size is not usable by the codec.
var ErrLength = errors.New("codec: invalid block length")

// Codec
//
// Single length-preserving transformation of a block. index is the
// location of the block on the device.
type Codec interface {
	DecodeBlock(index uint64, dst, src []byte) error
	EncodeBlock(index uint64, dst, src []byte) error
}

// DefaultIterations is the PBKDF2 iteration count used when none is
// given.
const DefaultIterations = 12345

const xtsKeySize = 64 // AES-256 key x 2

// EncryptingCodec
//
// AES-XTS based encrypting/decrypting Codec. XTS is used because it is
// length preserving; it provides confidentiality but not integrity,
// which is covered by the superblock checksums on the file system
// level.
type EncryptingCodec struct {
	cipher *xts.Cipher
}

func (self EncryptingCodec) Init(password, salt []byte, iter int) *EncryptingCodec {
	if iter <= 0 {
		iter = DefaultIterations
	}
	mk := pbkdf2.Key(password, salt, iter, xtsKeySize, sha256.New)
	c, err := xts.NewCipher(aes.NewCipher, mk)
	if err != nil {
		mlog.Panicf("xts.NewCipher: %v", err)
	}
	self.cipher = c
	return &self
}

func checkLength(dst, src []byte) error {
	if len(dst) != len(src) || len(src) == 0 || len(src)%aes.BlockSize != 0 {
		return ErrLength
	}
	return nil
}

func (self *EncryptingCodec) DecodeBlock(index uint64, dst, src []byte) error {
	if err := checkLength(dst, src); err != nil {
		return err
	}
	self.cipher.Decrypt(dst, src, index)
	return nil
}

func (self *EncryptingCodec) EncodeBlock(index uint64, dst, src []byte) error {
	if err := checkLength(dst, src); err != nil {
		return err
	}
	self.cipher.Encrypt(dst, src, index)
	return nil
}

type CodecChain struct {
	codecs, reverseCodecs []Codec
}

var _ Codec = &CodecChain{}

// Init method initializes the codec chain.
//
// codecs are given in decoding order.
func (self CodecChain) Init(codecs ...Codec) *CodecChain {
	self.codecs = codecs
	rc := make([]Codec, len(codecs))
	for i, c := range codecs {
		rc[len(codecs)-i-1] = c
	}
	self.reverseCodecs = rc
	return &self
}

func (self *CodecChain) run(codecs []Codec, encode bool, index uint64, dst, src []byte) error {
	if len(dst) != len(src) {
		return ErrLength
	}
	if len(codecs) == 0 {
		copy(dst, src)
		return nil
	}
	// Intermediate results live in dst; src is never modified.
	for i, c := range codecs {
		in := src
		if i > 0 {
			in = append([]byte(nil), dst...)
		}
		var err error
		if encode {
			err = c.EncodeBlock(index, dst, in)
		} else {
			err = c.DecodeBlock(index, dst, in)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (self *CodecChain) DecodeBlock(index uint64, dst, src []byte) error {
	return self.run(self.codecs, false, index, dst, src)
}

func (self *CodecChain) EncodeBlock(index uint64, dst, src []byte) error {
	return self.run(self.reverseCodecs, true, index, dst, src)
}
