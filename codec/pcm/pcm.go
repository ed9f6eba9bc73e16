/*
NAME
  pcm.go

DESCRIPTION
  pcm.go contains functions for processing pcm.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// Package pcm provides functions for processing and converting pcm audio.
// Samples are 16 bit little endian throughout, matching the output of the
// SAN audio decoder.
package pcm

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const sampleBytes = 2

// Format describes the layout of a PCM Buffer.
type Format struct {
	Rate     int
	Channels int
}

// Buffer contains PCM data and the format that it is in.
type Buffer struct {
	Format Format
	Data   []byte
}

var (
	ErrChannels = errors.New("audio is not stereo or mono")
	ErrRatio    = errors.New("rate is not an integer division of the buffer rate")
)

// StereoToMono returns a mono Buffer generated by averaging the two channels
// of the given stereo Buffer.
func StereoToMono(b Buffer) (Buffer, error) {
	if b.Format.Channels == 1 {
		return b, nil
	}
	if b.Format.Channels != 2 {
		return Buffer{}, errors.Wrapf(ErrChannels, "%d channels", b.Format.Channels)
	}

	frames := len(b.Data) / (2 * sampleBytes)
	mono := make([]byte, frames*sampleBytes)
	for i := 0; i < frames; i++ {
		l := int(int16(binary.LittleEndian.Uint16(b.Data[i*4:])))
		r := int(int16(binary.LittleEndian.Uint16(b.Data[i*4+2:])))
		binary.LittleEndian.PutUint16(mono[i*2:], uint16((l+r)/2))
	}

	return Buffer{
		Format: Format{Rate: b.Format.Rate, Channels: 1},
		Data:   mono,
	}, nil
}

// Resample downsamples the Buffer to rate Hz by averaging. The buffer's rate
// must be an integer multiple of rate.
func Resample(b Buffer, rate int) (Buffer, error) {
	if b.Format.Rate == rate {
		return b, nil
	}
	if rate <= 0 || b.Format.Rate%rate != 0 {
		return Buffer{}, errors.Wrapf(ErrRatio, "%d to %d Hz", b.Format.Rate, rate)
	}
	factor := b.Format.Rate / rate

	frameBytes := b.Format.Channels * sampleBytes
	outFrames := len(b.Data) / frameBytes / factor
	out := make([]byte, outFrames*frameBytes)

	for i := 0; i < outFrames; i++ {
		for c := 0; c < b.Format.Channels; c++ {
			var sum int
			for j := 0; j < factor; j++ {
				off := (i*factor+j)*frameBytes + c*sampleBytes
				sum += int(int16(binary.LittleEndian.Uint16(b.Data[off:])))
			}
			binary.LittleEndian.PutUint16(out[i*frameBytes+c*sampleBytes:], uint16(sum/factor))
		}
	}

	return Buffer{
		Format: Format{Rate: rate, Channels: b.Format.Channels},
		Data:   out,
	}, nil
}

// Samples returns the buffer's samples as ints, interleaved, for handing to
// audio encoders.
func Samples(b Buffer) []int {
	s := make([]int, len(b.Data)/sampleBytes)
	for i := range s {
		s[i] = int(int16(binary.LittleEndian.Uint16(b.Data[i*2:])))
	}
	return s
}
