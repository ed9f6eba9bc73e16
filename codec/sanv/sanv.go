/*
NAME
  sanv.go

DESCRIPTION
  sanv.go provides decoding of SMUSH codec 47 frame objects as found in
  LucasArts SAN animation files. The decoder owns the four paletted frame
  buffers (current, two reference frames and a save slot) and exposes the
  buffer operations the container driver needs: frame rotation after commit
  and the save/restore used by STOR/FTCH chunks.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package sanv implements the SMUSH codec 47 video decoder.
package sanv

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	objHeaderSize  = 14 // Frame object header: codec, position, dimensions.
	compHeaderSize = 26 // Codec 47 header following the frame object header.
	codec47        = 47

	// Auxiliary data discarded when bit 0 of the header skip flag is set.
	auxDataSize = 0x8080
)

// Compression modes of the codec 47 header.
const (
	compRaw = iota
	compHalfRes
	compBlocks
	compPrev2
	compPrev1
	compRLE
)

// Logical frame buffer roles. The role array maps these onto the four
// backing buffers; rotation permutes the mapping rather than copying pixels.
const (
	roleCur = iota
	rolePrev1
	rolePrev2
	roleSaved
	numRoles
)

var (
	ErrCodec       = errors.New("frame object codec is not codec 47")
	ErrTruncated   = errors.New("frame object payload truncated")
	ErrCompression = errors.New("unknown compression mode")
)

// Decoder decodes codec 47 frame objects into a paletted canvas.
type Decoder struct {
	w, h   int
	fbsize int

	bufs [numRoles][]byte
	role [numRoles]int

	glyphs4 []byte // 256 masks of 4x4 bytes.
	glyphs8 []byte // 256 masks of 8x8 bytes.

	lastSeq   int64
	rotate    int
	taskStack []blockTask
}

// NewDecoder returns a Decoder with the glyph tables built. The tables are
// derived from fixed coordinate vectors and are identical for every Decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		glyphs4: makeGlyphs(&glyph4x, &glyph4y, 4),
		glyphs8: makeGlyphs(&glyph8x, &glyph8y, 8),
		lastSeq: -1,
		role:    [numRoles]int{0, 1, 2, 3},
	}
}

// buf returns the backing buffer currently holding the given logical role.
func (d *Decoder) buf(role int) []byte { return d.bufs[d.role[role]] }

// Width returns the current canvas width in pixels.
func (d *Decoder) Width() int { return d.w }

// Height returns the current canvas height in pixels.
func (d *Decoder) Height() int { return d.h }

// Size returns the canvas size in bytes.
func (d *Decoder) Size() int { return d.fbsize }

// Cur returns the buffer holding the most recently decoded frame. The slice
// is borrowed; it is only valid until the next DecodeObject or Rotate call.
func (d *Decoder) Cur() []byte { return d.buf(roleCur) }

// resize grows the canvas to at least w x h. All four buffers are views into
// one contiguous allocation; pixel data is not preserved across growth.
func (d *Decoder) resize(w, h int) {
	if w <= d.w && h <= d.h {
		return
	}
	if w < d.w {
		w = d.w
	}
	if h < d.h {
		h = d.h
	}
	block := make([]byte, numRoles*w*h)
	for i := range d.bufs {
		d.bufs[i] = block[i*w*h : (i+1)*w*h]
	}
	d.w, d.h = w, h
	d.fbsize = w * h
}

// DecodeObject decodes one FOBJ chunk payload into the current frame buffer.
// The payload starts with the 14 byte frame object header; only codec 47 is
// accepted. The canvas grows on demand to fit the object.
func (d *Decoder) DecodeObject(p []byte) error {
	if len(p) < objHeaderSize {
		return errors.Wrap(ErrTruncated, "frame object header")
	}
	codec := binary.LittleEndian.Uint16(p[0:2])
	if codec != codec47 {
		return errors.Wrapf(ErrCodec, "codec %d", codec)
	}
	left := int(binary.LittleEndian.Uint16(p[2:4]))
	top := int(binary.LittleEndian.Uint16(p[4:6]))
	w := int(binary.LittleEndian.Uint16(p[6:8]))
	h := int(binary.LittleEndian.Uint16(p[8:10]))
	// p[10:14] is unused on disk.
	d.resize(left+w, top+h)

	hdr := p[objHeaderSize:]
	if len(hdr) < compHeaderSize {
		return errors.Wrap(ErrTruncated, "codec 47 header")
	}
	seq := int64(binary.LittleEndian.Uint16(hdr[0:2]))
	comp := hdr[2]
	newRot := int(hdr[3])
	skip := hdr[4]
	fill := hdr[8:16]
	decSize := int(binary.LittleEndian.Uint32(hdr[14:18]))

	src := hdr[compHeaderSize:]
	if skip&1 != 0 {
		if len(src) < auxDataSize {
			return errors.Wrap(ErrTruncated, "auxiliary data")
		}
		src = src[auxDataSize:]
	}

	if seq == 0 {
		d.lastSeq = -1
		clear(d.buf(rolePrev1))
		clear(d.buf(rolePrev2))
	}

	var err error
	switch comp {
	case compRaw:
		err = d.decodeRaw(src, left, top, w, h)
	case compHalfRes:
		err = d.decodeHalfRes(src, left, top, w, h)
	case compBlocks:
		// A sequence gap means the reference frames are stale, in which
		// case the delta is dropped on the floor.
		if seq == d.lastSeq+1 {
			err = d.decodeBlocks(src, left, top, w, h, fill)
		}
	case compPrev2:
		copy(d.buf(roleCur), d.buf(rolePrev2))
	case compPrev1:
		copy(d.buf(roleCur), d.buf(rolePrev1))
	case compRLE:
		err = d.decodeRLE(src, top*d.w+left, decSize)
	default:
		err = errors.Wrapf(ErrCompression, "mode %d", comp)
	}
	if err != nil {
		return err
	}

	if seq == d.lastSeq+1 {
		d.rotate = newRot
	} else {
		d.rotate = 0
	}
	d.lastSeq = seq
	return nil
}

// decodeRaw copies h rows of w bytes into the canvas at (left,top).
func (d *Decoder) decodeRaw(src []byte, left, top, w, h int) error {
	if len(src) < w*h {
		return errors.Wrap(ErrTruncated, "raw pixel data")
	}
	dst := d.buf(roleCur)
	off := top*d.w + left
	for y := 0; y < h; y++ {
		copy(dst[off+y*d.w:off+y*d.w+w], src[y*w:(y+1)*w])
	}
	return nil
}

// decodeHalfRes reads one byte per 2x2 aligned cell and replicates it into
// the cell's four pixels.
func (d *Decoder) decodeHalfRes(src []byte, left, top, w, h int) error {
	dst := d.buf(roleCur)
	off := top*d.w + left
	s := 0
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			if s >= len(src) {
				return errors.Wrap(ErrTruncated, "half resolution pixel data")
			}
			c := src[s]
			s++
			ro := off + y*d.w + x
			dst[ro] = c
			if x+1 < w {
				dst[ro+1] = c
			}
			if y+1 < h {
				dst[ro+d.w] = c
				if x+1 < w {
					dst[ro+d.w+1] = c
				}
			}
		}
	}
	return nil
}

// decodeRLE expands run length encoded tokens to exactly size output bytes
// written linearly from off. A token with bit 0 set repeats one colour byte,
// otherwise the run is read verbatim.
func (d *Decoder) decodeRLE(src []byte, off, size int) error {
	dst := d.buf(roleCur)
	if off+size > len(dst) {
		return errors.Wrap(ErrTruncated, "run length output exceeds canvas")
	}
	out := dst[off : off+size]
	var s, o int
	for o < len(out) {
		if s >= len(src) {
			return errors.Wrap(ErrTruncated, "run length token")
		}
		opc := src[s]
		s++
		n := int(opc>>1) + 1
		if o+n > len(out) {
			return errors.Wrap(ErrTruncated, "run length overrun")
		}
		if opc&1 != 0 {
			if s >= len(src) {
				return errors.Wrap(ErrTruncated, "run length colour")
			}
			c := src[s]
			s++
			for i := 0; i < n; i++ {
				out[o+i] = c
			}
		} else {
			if s+n > len(src) {
				return errors.Wrap(ErrTruncated, "run length literals")
			}
			copy(out[o:o+n], src[s:s+n])
			s += n
		}
		o += n
	}
	return nil
}

// Rotation returns the rotation mode that will be applied by the next call
// to Rotate.
func (d *Decoder) Rotation() int { return d.rotate }

// Rotate applies the pending buffer rotation. It is called by the container
// after a frame has been committed. Mode 1 exchanges the current and second
// reference buffers; mode 2 cycles all three decode buffers.
func (d *Decoder) Rotate() {
	switch d.rotate {
	case 1:
		d.role[roleCur], d.role[rolePrev2] = d.role[rolePrev2], d.role[roleCur]
	case 2:
		d.role[rolePrev1], d.role[rolePrev2] = d.role[rolePrev2], d.role[rolePrev1]
		d.role[roleCur], d.role[rolePrev2] = d.role[rolePrev2], d.role[roleCur]
	}
	d.rotate = 0
}

// Store copies the current frame into the save slot.
func (d *Decoder) Store() {
	copy(d.buf(roleSaved), d.buf(roleCur))
}

// Fetch restores the save slot into the current frame.
func (d *Decoder) Fetch() {
	copy(d.buf(roleCur), d.buf(roleSaved))
}
