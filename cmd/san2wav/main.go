/*
DESCRIPTION
  san2wav extracts the audio track of a SAN animation file to a WAV file,
  and optionally dumps each video frame as a PNG image.

AUTHORS
  Trek Hopton <trek@ausocean.org>
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// san2wav is a SAN extraction tool: audio to WAV, frames to PNG.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/san/codec/pcm"
	"github.com/ausocean/san/container/san"
)

// Logging related constants.
const (
	logPath      = "san2wav.log"
	logMaxSize   = 50 // MB
	logMaxBackup = 2
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

const wavBitDepth = 16

func main() {
	out := flag.String("out", "out", "Base name for output files.")
	frames := flag.Bool("frames", false, "Also dump each video frame as <out>-NNNN.png.")
	mono := flag.Bool("mono", false, "Mix the stereo track down to mono.")
	rate := flag.Int("rate", 0, "Resample audio to this rate (must divide the stream rate).")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	l := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if flag.NArg() != 1 {
		l.Fatal("expected a single SAN file argument")
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		l.Fatal("could not open input", "error", err)
	}
	defer f.Close()

	var audioBuf bytes.Buffer
	var frameIdx int
	dec := san.NewDecoder(f,
		func(fr san.Frame) {
			if !*frames {
				return
			}
			name := fmt.Sprintf("%s-%04d.png", *out, fr.Index)
			if err := writePNG(name, fr); err != nil {
				l.Error("could not write frame", "name", name, "error", err)
			}
			frameIdx = fr.Index
		},
		func(b []byte) { audioBuf.Write(b) },
		san.WithLogger(l),
	)

	if err := dec.Open(); err != nil {
		l.Fatal("could not parse SAN header", "error", err)
	}
	l.Info("decoding", "path", path, "frames", dec.FrameCount(), "samplerate", dec.SampleRate())

	for {
		err := dec.ReadFrame()
		if errors.Cause(err) == san.ErrDone {
			break
		}
		if err != nil {
			l.Fatal("decode failed", "frame", dec.FrameIndex(), "error", err)
		}
	}
	l.Info("decoded stream", "frames", dec.FrameIndex(), "lastFrame", frameIdx, "audioBytes", audioBuf.Len())

	if err := writeWAV(*out+".wav", audioBuf.Bytes(), int(dec.SampleRate()), *mono, *rate); err != nil {
		l.Fatal("could not write WAV", "error", err)
	}
}

// writeWAV writes the decoded PCM to a WAV file, applying the optional
// mixdown and resample first.
func writeWAV(name string, data []byte, sampleRate int, mono bool, rate int) error {
	buf := pcm.Buffer{
		Format: pcm.Format{Rate: sampleRate, Channels: 2},
		Data:   data,
	}
	var err error
	if mono {
		buf, err = pcm.StereoToMono(buf)
		if err != nil {
			return err
		}
	}
	if rate != 0 {
		buf, err = pcm.Resample(buf, rate)
		if err != nil {
			return err
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, buf.Format.Rate, wavBitDepth, buf.Format.Channels, 1)
	err = enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: buf.Format.Channels,
			SampleRate:  buf.Format.Rate,
		},
		Data:           pcm.Samples(buf),
		SourceBitDepth: wavBitDepth,
	})
	if err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// writePNG writes one decoded frame as an indexed PNG.
func writePNG(name string, fr san.Frame) error {
	p := make(color.Palette, len(fr.Palette))
	for i, argb := range fr.Palette {
		p[i] = color.RGBA{
			R: uint8(argb >> 16),
			G: uint8(argb >> 8),
			B: uint8(argb),
			A: uint8(argb >> 24),
		}
	}
	img := image.NewPaletted(image.Rect(0, 0, fr.Width, fr.Height), p)
	copy(img.Pix, fr.Data)

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
