/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sun Dec 24 17:15:30 2017 mstenber
 * Last modified: Wed Apr 11 15:58:40 2018 mstenber
 * Edit time:     41 min
 *
 */

package codec

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"log"
	"testing"

	"github.com/stvp/assert"
)

const blockSize = 4096

func ProdCodecOnce(t *testing.T, c Codec, p []byte) {
	enc := make([]byte, len(p))
	err := c.EncodeBlock(7, enc, p)
	assert.Nil(t, err)
	dec := make([]byte, len(p))
	err = c.DecodeBlock(7, dec, enc)
	assert.Nil(t, err)
	assert.Equal(t, p, dec)
}

func ProdCodec(t *testing.T, c Codec) {
	ProdCodecOnce(t, c, bytes.Repeat([]byte("a"), blockSize))
	p := make([]byte, blockSize)
	_, err := rand.Read(p)
	assert.Nil(t, err)
	ProdCodecOnce(t, c, p)
}

func TestEncryptingCodec(t *testing.T) {
	t.Parallel()
	p := bytes.Repeat([]byte("data"), blockSize/4)

	c := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	ProdCodec(t, c)

	enc := make([]byte, blockSize)
	err := c.EncodeBlock(1, enc, p)
	assert.Nil(t, err)
	assert.NotEqual(t, enc, p)

	// Same payload at different index does not encrypt the same way
	enc2 := make([]byte, blockSize)
	err = c.EncodeBlock(2, enc2, p)
	assert.Nil(t, err)
	assert.NotEqual(t, enc, enc2)

	// Decoding with the wrong index yields garbage, not the payload
	dec := make([]byte, blockSize)
	err = c.DecodeBlock(2, dec, enc)
	assert.Nil(t, err)
	assert.NotEqual(t, dec, p)

	// Different password yields garbage too
	c2 := EncryptingCodec{}.Init([]byte("bar"), []byte("salt"), 64)
	err = c2.DecodeBlock(1, dec, enc)
	assert.Nil(t, err)
	assert.NotEqual(t, dec, p)

	// Lengths must match and be usable by AES
	assert.Equal(t, c.EncodeBlock(1, make([]byte, 10), make([]byte, 10)), ErrLength)
	assert.Equal(t, c.EncodeBlock(1, make([]byte, 32), make([]byte, 16)), ErrLength)
}

func TestNopCodecChain(t *testing.T) {
	t.Parallel()
	c := &CodecChain{}
	ProdCodec(t, c)
}

func TestCodecChain(t *testing.T) {
	t.Parallel()
	c1 := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	c2 := EncryptingCodec{}.Init([]byte("bar"), []byte("salt"), 64)
	c := CodecChain{}.Init(c1, c2)
	ProdCodec(t, c)

	// Chain applies c2 first when encoding; undoing c2 then c1 by hand
	// must give back the plaintext.
	p := bytes.Repeat([]byte("x"), blockSize)
	enc := make([]byte, blockSize)
	assert.Nil(t, c.EncodeBlock(3, enc, p))
	mid := make([]byte, blockSize)
	assert.Nil(t, c1.DecodeBlock(3, mid, enc))
	dec := make([]byte, blockSize)
	assert.Nil(t, c2.DecodeBlock(3, dec, mid))
	assert.Equal(t, dec, p)
}

func BenchmarkCodec(b *testing.B) {
	run := func(b *testing.B, c Codec, encode bool) {
		p := make([]byte, blockSize)
		if _, err := rand.Read(p); err != nil {
			log.Panic(err)
		}
		out := make([]byte, blockSize)
		b.SetBytes(blockSize)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var err error
			if encode {
				err = c.EncodeBlock(uint64(i), out, p)
			} else {
				err = c.DecodeBlock(uint64(i), out, p)
			}
			if err != nil {
				log.Panic(err)
			}
		}
	}
	add := func(c Codec, prefix string) {
		b.Run(fmt.Sprintf("Encode-%s", prefix), func(b *testing.B) {
			run(b, c, true)
		})
		b.Run(fmt.Sprintf("Decode-%s", prefix), func(b *testing.B) {
			run(b, c, false)
		})
	}
	c1 := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	add(c1, "XTS")
	add(&CodecChain{}, "Nop")
}
