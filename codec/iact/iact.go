/*
NAME
  iact.go

DESCRIPTION
  iact.go provides decoding of IACT audio chunks from LucasArts SAN
  animation files into 16 bit little endian stereo PCM. The audio stream is
  a concatenation of length prefixed sub-blocks that may straddle chunk
  boundaries, so partial sub-blocks are staged until completed.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package iact decodes the IACT audio track of SAN animation files.
package iact

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	headerSize = 18   // IACT chunk header preceding the audio payload.
	blockSize  = 4096 // Decoded size of one sub-block: 1024 stereo 16 bit samples.

	// Track signature of the 22.05 kHz 16 bit stereo stream. Chunks
	// carrying any other signature are ignored.
	trackCode  = 8
	trackFlags = 46
)

var (
	ErrTruncated = errors.New("iact chunk shorter than its header")
	ErrBlockSize = errors.New("sub-block larger than the staging buffer")
	ErrBlockData = errors.New("sub-block too short for expansion")
)

// Decoder reassembles and expands IACT sub-blocks. Each completed sub-block
// is decoded into a freshly allocated buffer of exactly 4096 bytes and
// written to dst in one call; ownership of the buffer passes to dst.
type Decoder struct {
	// dst receives the decoded PCM, one Write per sub-block.
	dst io.Writer

	stage [blockSize]byte
	pos   int
}

// NewDecoder returns a new IACT Decoder writing decoded PCM to dst.
func NewDecoder(dst io.Writer) *Decoder {
	return &Decoder{dst: dst}
}

// Write consumes one IACT chunk payload, header included. Completed
// sub-blocks are decoded and emitted in input order; a trailing partial
// sub-block is retained for the next Write.
func (d *Decoder) Write(p []byte) (int, error) {
	if len(p) < headerSize {
		return 0, ErrTruncated
	}
	code := binary.LittleEndian.Uint16(p[0:2])
	flags := binary.LittleEndian.Uint16(p[2:4])
	// The remaining header fields (uid, track id, index, frame count and
	// the secondary size) are not needed for decoding.
	if code != trackCode || flags != trackFlags {
		return len(p), nil
	}

	src := p[headerSize:]
	for len(src) > 0 {
		// The first two staged bytes are a big endian count of the
		// sub-block bytes that follow them.
		if d.pos < 2 {
			d.stage[d.pos] = src[0]
			d.pos++
			src = src[1:]
			continue
		}
		total := int(binary.BigEndian.Uint16(d.stage[0:2])) + 2
		if total > blockSize {
			return len(p) - len(src), ErrBlockSize
		}
		need := total - d.pos
		if need > len(src) {
			d.pos += copy(d.stage[d.pos:total], src)
			break
		}
		copy(d.stage[d.pos:total], src[:need])
		src = src[need:]
		d.pos = 0

		out, err := expand(d.stage[2:total])
		if err != nil {
			return len(p) - len(src), err
		}
		if _, err := d.dst.Write(out); err != nil {
			return len(p) - len(src), err
		}
	}
	return len(p), nil
}

// expand decodes one completed sub-block into 1024 stereo samples. The first
// byte carries the per-channel shift amounts; each following code byte is
// either the 0x80 escape introducing a literal big endian sample, or a
// signed 8 bit value scaled by the channel shift. Samples are emitted
// little endian.
func expand(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrBlockData
	}
	shift := [2]uint{uint(src[0] >> 4), uint(src[0] & 0x0f)}
	out := make([]byte, blockSize)

	s := 1
	for o := 0; o < blockSize; {
		for c := 0; c < 2; c++ {
			if s >= len(src) {
				return nil, ErrBlockData
			}
			e := src[s]
			s++
			if e == 0x80 {
				if s+2 > len(src) {
					return nil, ErrBlockData
				}
				out[o] = src[s+1]
				out[o+1] = src[s]
				s += 2
			} else {
				v := int16(int8(e)) << shift[c]
				out[o] = byte(v)
				out[o+1] = byte(uint16(v) >> 8)
			}
			o += 2
		}
	}
	return out, nil
}
