/*
NAME
  blocks.go

DESCRIPTION
  blocks.go implements the codec 47 block tree. The w x h region is tiled
  into 8x8 blocks, each decoded by a control byte that selects a motion
  compensated copy, a fill, a glyph pattern, a copy from the first reference
  frame, or a subdivision into four half size blocks.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package sanv

import "github.com/pkg/errors"

// Block control bytes above the motion vector range.
const (
	blockFillTable = 0xf8 // 0xf8-0xfb: fill with a colour from the header fill table.
	blockCopyPrev1 = 0xfc // Copy the block from the first reference frame.
	blockGlyph     = 0xfd // Two colour glyph pattern.
	blockFill      = 0xfe // Fill with an immediate colour byte.
	blockSubdivide = 0xff // Four half size blocks, or four literals at size 2.
)

var ErrGlyphSize = errors.New("glyph code in a 2x2 block")

// blockTask is one pending block of the decode. Offsets into the current and
// reference buffers coincide; only motion compensated copies displace the
// source.
type blockTask struct {
	off  int
	size int
}

// byteStream is a bounds checked cursor over a block data payload.
type byteStream struct {
	b   []byte
	pos int
}

func (s *byteStream) u8() (byte, error) {
	if s.pos >= len(s.b) {
		return 0, errors.Wrap(ErrTruncated, "block data")
	}
	b := s.b[s.pos]
	s.pos++
	return b, nil
}

func (s *byteStream) take(n int) ([]byte, error) {
	if s.pos+n > len(s.b) {
		return nil, errors.Wrap(ErrTruncated, "block data")
	}
	b := s.b[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// decodeBlocks decodes the block tree for a w x h region at (left,top).
// Blocks are processed in raster order; the byte stream is consumed in the
// same order the recursive formulation would.
func (d *Decoder) decodeBlocks(src []byte, left, top, w, h int, fill []byte) error {
	// The region is tiled in whole 8x8 blocks, so the rounded up extent
	// must fit the canvas.
	if left+(w+7)&^7 > d.w || top+(h+7)&^7 > d.h {
		return errors.Wrap(ErrTruncated, "block region exceeds canvas")
	}
	s := &byteStream{b: src}
	base := top*d.w + left
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			if err := d.decodeBlock(s, base+by*d.w+bx, fill); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeBlock decodes one 8x8 block and its subdivisions using an explicit
// work stack. Children of a subdivided block are pushed in reverse raster
// order so that pops, and therefore stream reads, occur in raster order.
func (d *Decoder) decodeBlock(s *byteStream, off int, fill []byte) error {
	cur := d.buf(roleCur)
	p1 := d.buf(rolePrev1)
	p2 := d.buf(rolePrev2)
	stride := d.w

	stack := append(d.taskStack[:0], blockTask{off: off, size: 8})
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		code, err := s.u8()
		if err != nil {
			return err
		}

		switch {
		case code < blockFillTable:
			mv := motionVectors[code]
			so := t.off + int(mv[0]) + int(mv[1])*stride
			if so < 0 || so+(t.size-1)*stride+t.size > d.fbsize {
				// The vector escapes the reference frame. The block is
				// left untouched rather than reading out of bounds.
				continue
			}
			for r := 0; r < t.size; r++ {
				copy(cur[t.off+r*stride:t.off+r*stride+t.size], p2[so+r*stride:so+r*stride+t.size])
			}

		case code == blockSubdivide:
			if t.size == 2 {
				px, err := s.take(4)
				if err != nil {
					return err
				}
				cur[t.off] = px[0]
				cur[t.off+1] = px[1]
				cur[t.off+stride] = px[2]
				cur[t.off+stride+1] = px[3]
				break
			}
			half := t.size / 2
			stack = append(stack,
				blockTask{off: t.off + half*stride + half, size: half},
				blockTask{off: t.off + half*stride, size: half},
				blockTask{off: t.off + half, size: half},
				blockTask{off: t.off, size: half},
			)

		case code == blockFill:
			c, err := s.u8()
			if err != nil {
				return err
			}
			fillBlock(cur, t.off, stride, t.size, c)

		case code == blockGlyph:
			if t.size == 2 {
				return ErrGlyphSize
			}
			idx, err := s.u8()
			if err != nil {
				return err
			}
			cols, err := s.take(2)
			if err != nil {
				return err
			}
			area := t.size * t.size
			mask := d.glyphs4[int(idx)*16 : int(idx)*16+16]
			if t.size == 8 {
				mask = d.glyphs8[int(idx)*64 : int(idx)*64+64]
			}
			_ = mask[area-1]
			k := 0
			for r := 0; r < t.size; r++ {
				ro := t.off + r*stride
				for c := 0; c < t.size; c++ {
					if mask[k] != 0 {
						cur[ro+c] = cols[0]
					} else {
						cur[ro+c] = cols[1]
					}
					k++
				}
			}

		case code == blockCopyPrev1:
			for r := 0; r < t.size; r++ {
				copy(cur[t.off+r*stride:t.off+r*stride+t.size], p1[t.off+r*stride:t.off+r*stride+t.size])
			}

		default: // 0xf8-0xfb
			fillBlock(cur, t.off, stride, t.size, fill[code&7])
		}
	}
	d.taskStack = stack[:0]
	return nil
}

func fillBlock(dst []byte, off, stride, size int, c byte) {
	for r := 0; r < size; r++ {
		ro := off + r*stride
		for i := 0; i < size; i++ {
			dst[ro+i] = c
		}
	}
}
