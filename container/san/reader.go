/*
NAME
  reader.go

DESCRIPTION
  reader.go provides the budgeted chunk reader used to walk SAN container
  chunks. Every read is debited against the chunk's declared size so that
  handlers cannot stray past a chunk boundary, and unconsumed trailing bytes
  can be drained before the next chunk is read.

AUTHORS
  Dan Kortschak <dan@ausocean.org>
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package san

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const tagHeaderSize = 8 // Four byte FourCC plus big endian size.

// chunkReader reads from an underlying source with a remaining byte budget.
// Chunk readers nest: a FRME reader wraps the file source, and each inner
// chunk reader wraps the FRME reader, so consumption is debited at every
// level.
type chunkReader struct {
	r   io.Reader
	rem uint32
}

func newChunkReader(r io.Reader, size uint32) *chunkReader {
	return &chunkReader{r: r, rem: size}
}

// Read implements io.Reader over the remaining budget.
func (c *chunkReader) Read(p []byte) (int, error) {
	if c.rem == 0 {
		return 0, io.EOF
	}
	if uint32(len(p)) > c.rem {
		p = p[:c.rem]
	}
	n, err := c.r.Read(p)
	c.rem -= uint32(n)
	return n, err
}

// readFull fills p from the source, failing with ErrShortRead when the
// source underruns and ErrFormat when p exceeds the remaining budget.
func (c *chunkReader) readFull(p []byte) error {
	if uint32(len(p)) > c.rem {
		return errors.Wrap(ErrFormat, "read past chunk end")
	}
	n, err := io.ReadFull(c.r, p)
	c.rem -= uint32(n)
	if err != nil {
		return errors.Wrap(ErrShortRead, err.Error())
	}
	return nil
}

// bytes reads and returns n bytes.
func (c *chunkReader) bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := c.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *chunkReader) u8() (byte, error) {
	var b [1]byte
	err := c.readFull(b[:])
	return b[0], err
}

func (c *chunkReader) u16le() (uint16, error) {
	var b [2]byte
	err := c.readFull(b[:])
	return binary.LittleEndian.Uint16(b[:]), err
}

func (c *chunkReader) u16be() (uint16, error) {
	var b [2]byte
	err := c.readFull(b[:])
	return binary.BigEndian.Uint16(b[:]), err
}

func (c *chunkReader) u32le() (uint32, error) {
	var b [4]byte
	err := c.readFull(b[:])
	return binary.LittleEndian.Uint32(b[:]), err
}

func (c *chunkReader) u32be() (uint32, error) {
	var b [4]byte
	err := c.readFull(b[:])
	return binary.BigEndian.Uint32(b[:]), err
}

// skip reads and discards n bytes.
func (c *chunkReader) skip(n uint32) error {
	var scratch [512]byte
	for n > 0 {
		chunk := n
		if chunk > uint32(len(scratch)) {
			chunk = uint32(len(scratch))
		}
		if err := c.readFull(scratch[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// drain discards whatever remains of the chunk budget.
func (c *chunkReader) drain() error {
	return c.skip(c.rem)
}

// readTag reads an eight byte chunk header from r: a big endian FourCC
// followed by a big endian payload size.
func readTag(r io.Reader) (cc uint32, size uint32, err error) {
	var b [tagHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, 0, errors.Wrap(ErrShortRead, err.Error())
	}
	return binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint32(b[4:8]), nil
}

// fourCC returns the human readable form of a chunk FourCC.
func fourCC(cc uint32) string {
	return string([]byte{byte(cc >> 24), byte(cc >> 16), byte(cc >> 8), byte(cc)})
}
