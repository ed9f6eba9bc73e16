/*
NAME
  sanv_test.go

DESCRIPTION
  sanv_test.go contains tests for codec 47 frame object decoding, buffer
  rotation and the save slot.

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

package sanv

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

// object assembles a frame object payload: the 14 byte object header
// followed by a codec 47 header and block data.
func object(codec, left, top, w, h int, c47 []byte) []byte {
	b := make([]byte, objHeaderSize+len(c47))
	binary.LittleEndian.PutUint16(b[0:2], uint16(codec))
	binary.LittleEndian.PutUint16(b[2:4], uint16(left))
	binary.LittleEndian.PutUint16(b[4:6], uint16(top))
	binary.LittleEndian.PutUint16(b[6:8], uint16(w))
	binary.LittleEndian.PutUint16(b[8:10], uint16(h))
	copy(b[objHeaderSize:], c47)
	return b
}

// header47 assembles a 26 byte codec 47 header followed by the data bytes.
// The fill table occupies header bytes 8-15; the declared decode size
// overlays its tail, as on disk.
func header47(seq int, comp, rot, skip byte, decSize uint32, fill []byte, data []byte) []byte {
	b := make([]byte, compHeaderSize+len(data))
	binary.LittleEndian.PutUint16(b[0:2], uint16(seq))
	b[2] = comp
	b[3] = rot
	b[4] = skip
	copy(b[8:16], fill)
	binary.LittleEndian.PutUint32(b[14:18], decSize)
	copy(b[compHeaderSize:], data)
	return b
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

// TestDecodeRaw checks raw (mode 0) decoding of a 4x4 object.
func TestDecodeRaw(t *testing.T) {
	d := NewDecoder()
	want := pattern(16, 0)
	err := d.DecodeObject(object(codec47, 0, 0, 4, 4, header47(0, compRaw, 0, 0, 16, nil, want)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	if !bytes.Equal(d.Cur(), want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v\n", d.Cur(), want)
	}
	if d.Width() != 4 || d.Height() != 4 {
		t.Errorf("unexpected canvas size: got %vx%v, want 4x4", d.Width(), d.Height())
	}
}

// TestDecodeHalfRes checks mode 1: one byte per 2x2 cell.
func TestDecodeHalfRes(t *testing.T) {
	d := NewDecoder()
	err := d.DecodeObject(object(codec47, 0, 0, 4, 4,
		header47(0, compHalfRes, 0, 0, 0, nil, []byte{0x10, 0x20, 0x30, 0x40})))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	want := []byte{
		0x10, 0x10, 0x20, 0x20,
		0x10, 0x10, 0x20, 0x20,
		0x30, 0x30, 0x40, 0x40,
		0x30, 0x30, 0x40, 0x40,
	}
	if !bytes.Equal(d.Cur(), want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v\n", d.Cur(), want)
	}
}

// TestDecodeRLE checks mode 5: a colour run then a literal run.
func TestDecodeRLE(t *testing.T) {
	d := NewDecoder()
	data := []byte{0x07, 0xaa, 0x06, 0xbb, 0xbb, 0xbb, 0xbb}
	err := d.DecodeObject(object(codec47, 0, 0, 8, 1, header47(0, compRLE, 0, 0, 8, nil, data)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	want := []byte{0xaa, 0xaa, 0xaa, 0xaa, 0xbb, 0xbb, 0xbb, 0xbb}
	if !bytes.Equal(d.Cur(), want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v\n", d.Cur(), want)
	}
}

// TestCopyReferences checks modes 3 and 4 against the reference buffers
// populated by earlier frames and rotations.
func TestCopyReferences(t *testing.T) {
	d := NewDecoder()
	patA := pattern(64, 1)
	patB := pattern(64, 101)

	// Frame 0 draws A and rotates cur into prev2.
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compRaw, 1, 0, 64, nil, patA)))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 0: %v", err)
	}
	d.Rotate()

	// Frame 1 draws B and cycles all three buffers: prev1 ends up holding
	// A and prev2 holding B.
	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(1, compRaw, 2, 0, 64, nil, patB)))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 1: %v", err)
	}
	d.Rotate()

	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(2, compPrev1, 0, 0, 0, nil, nil)))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 2: %v", err)
	}
	if !bytes.Equal(d.Cur(), patA) {
		t.Error("mode 4 did not reproduce the first reference frame")
	}
	d.Rotate()

	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(3, compPrev2, 0, 0, 0, nil, nil)))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 3: %v", err)
	}
	if !bytes.Equal(d.Cur(), patB) {
		t.Error("mode 3 did not reproduce the second reference frame")
	}
}

// TestRotateModes checks the three rotation modes as permutations of the
// logical buffer identities.
func TestRotateModes(t *testing.T) {
	d := NewDecoder()
	d.resize(2, 2)
	copy(d.buf(roleCur), []byte{1, 1, 1, 1})
	copy(d.buf(rolePrev1), []byte{2, 2, 2, 2})
	copy(d.buf(rolePrev2), []byte{3, 3, 3, 3})

	// Mode 0 is a no-op.
	d.rotate = 0
	d.Rotate()
	if d.buf(roleCur)[0] != 1 || d.buf(rolePrev1)[0] != 2 || d.buf(rolePrev2)[0] != 3 {
		t.Error("mode 0 changed buffer identities")
	}

	// Mode 1 exchanges cur and prev2.
	d.rotate = 1
	d.Rotate()
	if d.buf(roleCur)[0] != 3 || d.buf(rolePrev1)[0] != 2 || d.buf(rolePrev2)[0] != 1 {
		t.Error("mode 1 did not exchange cur and prev2")
	}

	// Mode 2 cycles: cur <- prev1, prev1 <- prev2, prev2 <- cur.
	d.rotate = 2
	d.Rotate()
	if d.buf(roleCur)[0] != 2 || d.buf(rolePrev1)[0] != 1 || d.buf(rolePrev2)[0] != 3 {
		t.Errorf("mode 2 produced cur=%v prev1=%v prev2=%v, want 2 1 3",
			d.buf(roleCur)[0], d.buf(rolePrev1)[0], d.buf(rolePrev2)[0])
	}
}

// TestStoreFetch checks that Fetch reproduces the exact buffer captured by
// Store, after the original has been overwritten.
func TestStoreFetch(t *testing.T) {
	d := NewDecoder()
	patX := pattern(16, 7)
	err := d.DecodeObject(object(codec47, 0, 0, 4, 4, header47(0, compRaw, 0, 0, 16, nil, patX)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	d.Store()

	err = d.DecodeObject(object(codec47, 0, 0, 4, 4, header47(1, compRaw, 0, 0, 16, nil, pattern(16, 200))))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	d.Fetch()
	if !bytes.Equal(d.Cur(), patX) {
		t.Errorf("fetch did not restore stored frame.\nGot: %v\nWant: %v\n", d.Cur(), patX)
	}
}

// TestBlockMotionIdentity checks the zero motion vector: with block code
// 0x00 the block is copied unchanged from prev2.
func TestBlockMotionIdentity(t *testing.T) {
	d := NewDecoder()
	pat := pattern(64, 1)
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compRaw, 1, 0, 64, nil, pat)))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 0: %v", err)
	}
	d.Rotate()

	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(1, compBlocks, 0, 0, 0, nil, []byte{0x00})))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 1: %v", err)
	}
	if !bytes.Equal(d.Cur(), pat) {
		t.Errorf("motion copy did not reproduce reference.\nGot: %v\nWant: %v\n", d.Cur(), pat)
	}
}

// TestBlockMotionBounds checks that a motion vector escaping the canvas
// leaves the block untouched rather than reading out of bounds.
func TestBlockMotionBounds(t *testing.T) {
	d := NewDecoder()
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compRaw, 1, 0, 64, nil, make([]byte, 64))))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 0: %v", err)
	}
	d.Rotate()

	// Code 0x01 is the (-1,-43) vector, far outside an 8x8 canvas.
	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(1, compBlocks, 0, 0, 0, nil, []byte{0x01})))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 1: %v", err)
	}
	if !bytes.Equal(d.Cur(), make([]byte, 64)) {
		t.Error("out of range motion vector modified the block")
	}
}

// TestBlockFills checks the immediate fill code and the header fill table
// codes.
func TestBlockFills(t *testing.T) {
	tests := []struct {
		data []byte
		fill []byte
		want byte
	}{
		{data: []byte{0xfe, 0x42}, want: 0x42},
		{data: []byte{0xf8}, fill: []byte{0x0a, 0x0b, 0x0c, 0x0d, 0, 0, 0, 0}, want: 0x0a},
		{data: []byte{0xfb}, fill: []byte{0x0a, 0x0b, 0x0c, 0x0d, 0, 0, 0, 0}, want: 0x0d},
	}

	for testNum, test := range tests {
		d := NewDecoder()
		err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compBlocks, 0, 0, 0, test.fill, test.data)))
		if err != nil {
			t.Fatalf("unexpected error for test %v: %v", testNum, err)
		}
		want := bytes.Repeat([]byte{test.want}, 64)
		if !bytes.Equal(d.Cur(), want) {
			t.Errorf("did not get expected result for test %v.\nGot: %v\nWant: %v\n", testNum, d.Cur(), want)
		}
	}
}

// TestBlockSubdivide checks recursive subdivision down to 2x2 fills.
func TestBlockSubdivide(t *testing.T) {
	d := NewDecoder()

	// The top level block subdivides; the first three quadrants are solid
	// fills and the last subdivides again into four 2x2 fills.
	data := []byte{
		0xff,
		0xfe, 1, // Top left 4x4.
		0xfe, 2, // Top right 4x4.
		0xfe, 3, // Bottom left 4x4.
		0xff,       // Bottom right 4x4 subdivides.
		0xfe, 4, // Its top left 2x2.
		0xfe, 5, // Its top right 2x2.
		0xfe, 6, // Its bottom left 2x2.
		0xfe, 7, // Its bottom right 2x2.
	}
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compBlocks, 0, 0, 0, nil, data)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}

	want := []byte{
		1, 1, 1, 1, 2, 2, 2, 2,
		1, 1, 1, 1, 2, 2, 2, 2,
		1, 1, 1, 1, 2, 2, 2, 2,
		1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 5, 5,
		3, 3, 3, 3, 4, 4, 5, 5,
		3, 3, 3, 3, 6, 6, 7, 7,
		3, 3, 3, 3, 6, 6, 7, 7,
	}
	if !bytes.Equal(d.Cur(), want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v\n", d.Cur(), want)
	}
}

// TestBlockLiterals checks the 2x2 literal case at the bottom of the tree.
func TestBlockLiterals(t *testing.T) {
	d := NewDecoder()

	data := []byte{0xff}
	fillQuad := func(vals ...byte) {
		data = append(data, 0xff)
		for i := 0; i < 4; i++ {
			data = append(data, 0xff, vals[0], vals[1], vals[2], vals[3])
			vals[0] += 4
			vals[1] += 4
			vals[2] += 4
			vals[3] += 4
		}
	}
	fillQuad(0, 1, 2, 3)
	fillQuad(100, 101, 102, 103)
	fillQuad(150, 151, 152, 153)
	fillQuad(200, 201, 202, 203)

	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compBlocks, 0, 0, 0, nil, data)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}

	// Each 2x2 leaf holds v, v+1 over v+2, v+3.
	check := func(x, y int, v byte) {
		got := [4]byte{
			d.Cur()[y*8+x], d.Cur()[y*8+x+1],
			d.Cur()[(y+1)*8+x], d.Cur()[(y+1)*8+x+1],
		}
		want := [4]byte{v, v + 1, v + 2, v + 3}
		if got != want {
			t.Errorf("leaf at (%v,%v): got %v, want %v", x, y, got, want)
		}
	}
	// Quadrant base values, leaves in raster order within each quadrant.
	for _, base := range []struct {
		x, y int
		v    byte
	}{{0, 0, 0}, {4, 0, 100}, {0, 4, 150}, {4, 4, 200}} {
		v := base.v
		for _, off := range [][2]int{{0, 0}, {2, 0}, {0, 2}, {2, 2}} {
			check(base.x+off[0], base.y+off[1], v)
			v += 4
		}
	}
}

// TestBlockGlyph checks the two colour glyph code using the degenerate
// glyph 0, which sets only the first pixel of the mask.
func TestBlockGlyph(t *testing.T) {
	d := NewDecoder()
	data := []byte{0xfd, 0x00, 0x05, 0x09}
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compBlocks, 0, 0, 0, nil, data)))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}
	want := bytes.Repeat([]byte{0x09}, 64)
	want[0] = 0x05
	if !bytes.Equal(d.Cur(), want) {
		t.Errorf("did not get expected result.\nGot: %v\nWant: %v\n", d.Cur(), want)
	}
}

// TestSequenceGap checks that a non-consecutive sequence number drops a
// block delta frame and suppresses rotation.
func TestSequenceGap(t *testing.T) {
	d := NewDecoder()
	err := d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(0, compRaw, 1, 0, 64, nil, pattern(64, 1))))
	if err != nil {
		t.Fatalf("unexpected error decoding frame 0: %v", err)
	}
	d.Rotate()
	before := append([]byte(nil), d.Cur()...)

	err = d.DecodeObject(object(codec47, 0, 0, 8, 8, header47(5, compBlocks, 1, 0, 0, nil, []byte{0xfe, 0x42})))
	if err != nil {
		t.Fatalf("unexpected error decoding gapped frame: %v", err)
	}
	if !bytes.Equal(d.Cur(), before) {
		t.Error("gapped block frame modified the canvas")
	}
	if d.Rotation() != 0 {
		t.Errorf("gapped frame set rotation %v, want 0", d.Rotation())
	}
}

// TestRejectCodec checks that a frame object with a foreign codec id fails.
func TestRejectCodec(t *testing.T) {
	d := NewDecoder()
	err := d.DecodeObject(object(1, 0, 0, 4, 4, header47(0, compRaw, 0, 0, 16, nil, make([]byte, 16))))
	if errors.Cause(err) != ErrCodec {
		t.Errorf("got error %v, want %v", err, ErrCodec)
	}
}

// TestCanvasGrowth checks that an offset frame object grows the canvas to
// cover its extent.
func TestCanvasGrowth(t *testing.T) {
	d := NewDecoder()
	err := d.DecodeObject(object(codec47, 0, 0, 4, 4, header47(0, compRaw, 0, 0, 16, nil, pattern(16, 1))))
	if err != nil {
		t.Fatalf("unexpected error decoding object: %v", err)
	}

	err = d.DecodeObject(object(codec47, 4, 2, 4, 4, header47(1, compRaw, 0, 0, 16, nil, pattern(16, 50))))
	if err != nil {
		t.Fatalf("unexpected error decoding grown object: %v", err)
	}
	if d.Width() != 8 || d.Height() != 6 {
		t.Fatalf("unexpected canvas size: got %vx%v, want 8x6", d.Width(), d.Height())
	}
	if got := d.Cur()[2*8+4]; got != 50 {
		t.Errorf("grown object pixel: got %v, want 50", got)
	}
}
