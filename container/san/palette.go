/*
NAME
  palette.go

DESCRIPTION
  palette.go handles the absolute (NPAL) and delta (XPAL) palette chunks.
  The palette is 256 ARGB words with full alpha; XPAL carries a table of 768
  signed deltas, one per colour channel, that either replaces the palette
  state or interpolates the current palette toward it.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package san

import "github.com/pkg/errors"

const (
	paletteColours = 256
	paletteBytes   = paletteColours * 3
	deltaChannels  = paletteColours * 3

	// XPAL chunk size thresholds selecting the interpolate, delta-only
	// and delta-plus-palette forms.
	xpalDeltaSize   = deltaChannels + 4
	xpalReplaceSize = 3844
)

// setPalette decodes triplets into ARGB palette entries starting at entry 0.
// Triplets are stored low channel first on disk, so the word is assembled
// with the third byte in the red position.
func (d *Decoder) setPalette(triplets []byte) {
	n := len(triplets) / 3
	if n > paletteColours {
		n = paletteColours
	}
	for i := 0; i < n; i++ {
		t := triplets[i*3 : i*3+3]
		d.palette[i] = 0xff000000 | uint32(t[2])<<16 | uint32(t[1])<<8 | uint32(t[0])
	}
}

// readNPAL handles an absolute palette chunk of size/3 colours.
func (d *Decoder) readNPAL(c *chunkReader, size uint32) error {
	n := size / 3 * 3
	if n > paletteBytes {
		n = paletteBytes
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return errors.Wrap(err, "NPAL colours")
	}
	d.setPalette(b)
	return nil
}

// readXPAL handles a delta palette chunk. Small chunks interpolate the
// palette using the stored delta table; large chunks load a new delta table,
// optionally followed by an absolute palette.
func (d *Decoder) readXPAL(c *chunkReader, size uint32) error {
	switch {
	case size == 4 || size == 6:
		d.interpolatePalette()
		return nil

	case size >= xpalDeltaSize && size < xpalReplaceSize:
		if err := d.readDeltaTable(c); err != nil {
			return err
		}
		// The palette restarts black and is rebuilt by interpolation.
		for i := range d.palette {
			d.palette[i] = 0xff000000
		}
		return nil

	case size >= xpalReplaceSize:
		if err := d.readDeltaTable(c); err != nil {
			return err
		}
		b, err := c.bytes(paletteBytes)
		if err != nil {
			return errors.Wrap(err, "XPAL colours")
		}
		d.setPalette(b)
		return nil
	}
	return errors.Wrapf(ErrFormat, "XPAL size %d", size)
}

func (d *Decoder) readDeltaTable(c *chunkReader) error {
	if _, err := c.u32le(); err != nil {
		return errors.Wrap(err, "XPAL header")
	}
	b, err := c.bytes(deltaChannels * 2)
	if err != nil {
		return errors.Wrap(err, "XPAL deltas")
	}
	for i := range d.deltaPal {
		d.deltaPal[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return nil
}

// interpolatePalette steps every colour channel toward the delta table:
// each channel c becomes (c*129 + delta) >> 7, clamped to 8 bits.
func (d *Decoder) interpolatePalette() {
	for i := 0; i < paletteColours; i++ {
		p := d.palette[i]
		// Delta channels follow disk triplet order, low channel first.
		b := interpChannel(int(p&0xff), d.deltaPal[i*3])
		g := interpChannel(int(p>>8&0xff), d.deltaPal[i*3+1])
		r := interpChannel(int(p>>16&0xff), d.deltaPal[i*3+2])
		d.palette[i] = 0xff000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
}

func interpChannel(c int, delta int16) int {
	v := (c*129 + int(delta)) >> 7
	if v < 0 {
		v = 0
	} else if v > 0xff {
		v = 0xff
	}
	return v
}
