/*
NAME
  san.go

DESCRIPTION
  san.go provides the decoder for LucasArts SAN animation files: an ANIMv2
  chunk container carrying SMUSH codec 47 video and IACT 22.05 kHz 16 bit
  stereo audio. The decoder pulls chunks from a forward only byte source and
  delivers decoded frames and PCM through sink callbacks; see ReadFrame.

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


// Package san decodes LucasArts SAN animation files.
package san

import (
	"io"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/san/codec/iact"
	"github.com/ausocean/san/codec/sanv"
)

// Chunk FourCCs of the ANIMv2 container.
const (
	tagANIM = 'A'<<24 | 'N'<<16 | 'I'<<8 | 'M'
	tagAHDR = 'A'<<24 | 'H'<<16 | 'D'<<8 | 'R'
	tagFRME = 'F'<<24 | 'R'<<16 | 'M'<<8 | 'E'
	tagNPAL = 'N'<<24 | 'P'<<16 | 'A'<<8 | 'L'
	tagXPAL = 'X'<<24 | 'P'<<16 | 'A'<<8 | 'L'
	tagFOBJ = 'F'<<24 | 'O'<<16 | 'B'<<8 | 'J'
	tagIACT = 'I'<<24 | 'A'<<16 | 'C'<<8 | 'T'
	tagTRES = 'T'<<24 | 'R'<<16 | 'E'<<8 | 'S'
	tagSTOR = 'S'<<24 | 'T'<<16 | 'O'<<8 | 'R'
	tagFTCH = 'F'<<24 | 'T'<<16 | 'C'<<8 | 'H'
)

const (
	ahdrMinSize  = paletteBytes + 6
	ahdrExtSize  = 20
	tresFields   = 9
	minInnerSize = 3 // A FRME with this much or less left cannot hold another chunk.
)

var (
	// ErrDone indicates all FRME chunks have been decoded. It is sticky:
	// once returned, every subsequent ReadFrame returns it.
	ErrDone = errors.New("no more frames")

	// ErrShortRead indicates the byte source underran a read.
	ErrShortRead = errors.New("short read from source")

	// ErrFormat indicates malformed container data.
	ErrFormat = errors.New("malformed SAN data")
)

// Frame is a decoded video frame as handed to the video sink. Data and
// Palette are borrowed from the decoder and are valid only until the next
// ReadFrame call.
type Frame struct {
	Data    []byte // Width*Height palette indices in raster order.
	Width   int
	Height  int
	Palette *[256]uint32 // ARGB words, alpha always 0xff.

	// Subtitle is the subtitle string id referenced by the frame's TRES
	// chunk, or -1 when the frame carries none.
	Subtitle int

	// Index is the zero based frame number.
	Index int
}

// VideoFunc receives each committed frame, exactly once per FRME.
type VideoFunc func(Frame)

// AudioFunc receives decoded PCM: 16 bit little endian stereo at the
// stream's sample rate. Ownership of the buffer transfers to the callback.
type AudioFunc func(pcm []byte)

// Option is a configuration option for a Decoder.
type Option func(*Decoder)

// WithLogger sets a logger for decode progress and diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(d *Decoder) { d.log = l }
}

// Decoder decodes a SAN stream. It is single threaded and exclusively owned
// by one caller; all work happens inside Open and ReadFrame.
type Decoder struct {
	src   io.Reader
	video VideoFunc
	audio AudioFunc
	log   logging.Logger

	vdec *sanv.Decoder
	adec *iact.Decoder

	version    uint16
	frameCount int
	frameIdx   int
	frameRate  uint32
	maxFrame   uint32
	sampleRate uint32

	palette  [256]uint32
	deltaPal [deltaChannels]int16

	subtitle int
	toStore  bool
	done     bool
}

// audioSink adapts the audio callback to the io.Writer consumed by the IACT
// decoder. Each Write is one sub-block whose buffer ownership transfers.
type audioSink struct {
	fn AudioFunc
}

func (s audioSink) Write(p []byte) (int, error) {
	if s.fn != nil {
		s.fn(p)
	}
	return len(p), nil
}

// NewDecoder returns a Decoder reading from src and delivering output to the
// given sinks. Either sink may be nil, in which case that output is dropped.
func NewDecoder(src io.Reader, video VideoFunc, audio AudioFunc, opts ...Option) *Decoder {
	d := &Decoder{
		src:      src,
		video:    video,
		audio:    audio,
		vdec:     sanv.NewDecoder(),
		subtitle: -1,
	}
	d.adec = iact.NewDecoder(audioSink{fn: audio})
	for _, o := range opts {
		o(d)
	}
	return d
}

// Open reads the stream up to and including the AHDR header. It must be
// called once before ReadFrame.
func (d *Decoder) Open() error {
	if err := d.seekTag(tagANIM); err != nil {
		return errors.Wrap(err, "searching for ANIM")
	}
	size, err := d.seekTagSize(tagAHDR)
	if err != nil {
		return errors.Wrap(err, "searching for AHDR")
	}
	if err := d.readAHDR(size); err != nil {
		return err
	}
	if d.log != nil {
		d.log.Debug("opened SAN stream", "version", d.version, "frames", d.frameCount,
			"framerate", d.frameRate, "samplerate", d.sampleRate)
	}
	return nil
}

// seekTag reads chunk headers until cc is found. The matching chunk's body
// is left unread; non-matching chunks are skipped, including padding.
func (d *Decoder) seekTag(cc uint32) error {
	_, err := d.seekTagSize(cc)
	return err
}

func (d *Decoder) seekTagSize(cc uint32) (uint32, error) {
	for {
		got, size, err := readTag(d.src)
		if err != nil {
			return 0, err
		}
		if got == cc {
			return size, nil
		}
		skip := newChunkReader(d.src, size+size&1)
		if err := skip.drain(); err != nil {
			return 0, err
		}
	}
}

// readAHDR parses the animation header: version, frame count and the
// absolute palette, followed by rate information when present.
func (d *Decoder) readAHDR(size uint32) error {
	if size < ahdrMinSize {
		return errors.Wrapf(ErrFormat, "AHDR size %d", size)
	}
	c := newChunkReader(d.src, size+size&1)

	v, err := c.u16le()
	if err != nil {
		return errors.Wrap(err, "AHDR version")
	}
	d.version = v
	n, err := c.u16le()
	if err != nil {
		return errors.Wrap(err, "AHDR frame count")
	}
	d.frameCount = int(n)
	if err := c.skip(2); err != nil {
		return err
	}
	pal, err := c.bytes(paletteBytes)
	if err != nil {
		return errors.Wrap(err, "AHDR palette")
	}
	d.setPalette(pal)

	if c.rem >= ahdrExtSize {
		if d.frameRate, err = c.u32le(); err != nil {
			return errors.Wrap(err, "AHDR frame rate")
		}
		if d.maxFrame, err = c.u32le(); err != nil {
			return errors.Wrap(err, "AHDR max frame size")
		}
		if d.sampleRate, err = c.u32le(); err != nil {
			return errors.Wrap(err, "AHDR sample rate")
		}
	}
	return c.drain()
}

// ReadFrame decodes the next FRME chunk, delivering audio through the audio
// sink as it is encountered and the finished frame through the video sink.
// It returns ErrDone once all frames have been decoded.
func (d *Decoder) ReadFrame() error {
	if d.done {
		return ErrDone
	}
	if d.frameIdx >= d.frameCount {
		d.done = true
		return ErrDone
	}

	cc, size, err := readTag(d.src)
	if err != nil {
		return err
	}
	if cc != tagFRME {
		return errors.Wrapf(ErrFormat, "expected FRME, got %q", fourCC(cc))
	}

	fr := newChunkReader(d.src, size+size&1)
	if err := d.readFRME(fr); err != nil {
		return err
	}

	if d.toStore {
		d.vdec.Store()
	}
	if d.video != nil {
		d.video(Frame{
			Data:     d.vdec.Cur(),
			Width:    d.vdec.Width(),
			Height:   d.vdec.Height(),
			Palette:  &d.palette,
			Subtitle: d.subtitle,
			Index:    d.frameIdx,
		})
	}
	d.vdec.Rotate()
	if err := fr.drain(); err != nil {
		return err
	}
	d.toStore = false
	d.subtitle = -1
	d.frameIdx++
	return nil
}

// readFRME runs the inner chunk loop of one FRME.
func (d *Decoder) readFRME(fr *chunkReader) error {
	for fr.rem > minInnerSize {
		cc, size, err := readTag(fr)
		if err != nil {
			return err
		}
		if size > fr.rem {
			return errors.Wrapf(ErrFormat, "%s size %d exceeds FRME budget %d", fourCC(cc), size, fr.rem)
		}
		c := newChunkReader(fr, size)

		switch cc {
		case tagNPAL:
			err = d.readNPAL(c, size)
		case tagXPAL:
			err = d.readXPAL(c, size)
		case tagFOBJ:
			err = d.readFOBJ(c, size)
		case tagIACT:
			err = d.readIACT(c, size)
		case tagTRES:
			err = d.readTRES(c)
		case tagSTOR:
			d.toStore = true
		case tagFTCH:
			d.vdec.Fetch()
		default:
			return errors.Wrapf(ErrFormat, "unknown chunk %q in FRME", fourCC(cc))
		}
		if err != nil {
			return errors.Wrapf(err, "decoding %s", fourCC(cc))
		}
		if err := c.drain(); err != nil {
			return err
		}
		if size&1 != 0 {
			if err := fr.skip(1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Decoder) readFOBJ(c *chunkReader, size uint32) error {
	p, err := c.bytes(int(size))
	if err != nil {
		return err
	}
	return d.vdec.DecodeObject(p)
}

func (d *Decoder) readIACT(c *chunkReader, size uint32) error {
	p, err := c.bytes(int(size))
	if err != nil {
		return err
	}
	_, err = d.adec.Write(p)
	return err
}

// readTRES parses a subtitle reference. The chunk carries nine u16 fields
// describing placement; only the string id, the last field, is surfaced.
func (d *Decoder) readTRES(c *chunkReader) error {
	var f [tresFields]uint16
	for i := range f {
		v, err := c.u16le()
		if err != nil {
			return err
		}
		f[i] = v
	}
	d.subtitle = int(f[tresFields-1])
	return nil
}

// Close marks the decoder finished. Subsequent ReadFrame calls return
// ErrDone. The frame buffers are not freed by Close.
func (d *Decoder) Close() error {
	d.done = true
	return nil
}

// Version returns the ANIM version from the header.
func (d *Decoder) Version() uint16 { return d.version }

// FrameCount returns the total number of FRME chunks declared by the header.
func (d *Decoder) FrameCount() int { return d.frameCount }

// FrameIndex returns the number of frames decoded so far.
func (d *Decoder) FrameIndex() int { return d.frameIdx }

// FrameRate returns the nominal playback rate in frames per second.
func (d *Decoder) FrameRate() uint32 { return d.frameRate }

// SampleRate returns the audio sample rate in Hz.
func (d *Decoder) SampleRate() uint32 { return d.sampleRate }

// Width returns the current canvas width in pixels.
func (d *Decoder) Width() int { return d.vdec.Width() }

// Height returns the current canvas height in pixels.
func (d *Decoder) Height() int { return d.vdec.Height() }
