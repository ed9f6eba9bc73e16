/*
DESCRIPTION
  sanplay plays a SAN animation file in a window, with audio.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


// sanplay is a bare bones SAN animation player.
package main

import (
	"flag"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/san/container/san"
)

// Logging related constants.
const (
	logPath      = "sanplay.log"
	logMaxSize   = 50 // MB
	logMaxBackup = 2
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

const (
	defaultW = 320
	defaultH = 200

	defaultRate = 15 // Frames per second when the header carries none.

	audioChannels = 2
)

func main() {
	speed := flag.Float64("speed", 1.0, "Playback speed multiplier.")
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

	p := &player{log: l}
	dec := san.NewDecoder(f, p.queueVideo, p.queueAudio, san.WithLogger(l))
	if err := dec.Open(); err != nil {
		l.Fatal("could not parse SAN header", "error", err)
	}

	sampleRate := int(dec.SampleRate())
	if sampleRate == 0 {
		sampleRate = 22050
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: audioChannels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		l.Fatal("could not initialise audio", "error", err)
	}
	<-ready
	ap := ctx.NewPlayer(&p.audio)
	ap.Play()
	defer ap.Close()

	rate := dec.FrameRate()
	if rate == 0 {
		rate = defaultRate
	}
	interval := time.Duration(float64(time.Second) / (float64(rate) * *speed))
	go p.decodeLoop(dec, interval)

	ebiten.SetWindowTitle(path)
	ebiten.SetWindowSize(2*defaultW, 2*defaultH)
	if err := ebiten.RunGame(p); err != nil && err != ebiten.Termination {
		l.Fatal("playback failed", "error", err)
	}
}

// player is the ebiten game presenting decoded frames, and the staging
// point between the decode goroutine and the audio and video outputs.
type player struct {
	log logging.Logger

	mu   sync.Mutex
	rgba []byte
	w, h int
	img  *ebiten.Image
	done bool

	audio pcmQueue
}

// queueVideo expands the paletted frame to RGBA for presentation.
func (p *player) queueVideo(fr san.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rgba) != 4*len(fr.Data) {
		p.rgba = make([]byte, 4*len(fr.Data))
	}
	p.w, p.h = fr.Width, fr.Height
	for i, idx := range fr.Data {
		argb := fr.Palette[idx]
		p.rgba[i*4] = byte(argb >> 16)
		p.rgba[i*4+1] = byte(argb >> 8)
		p.rgba[i*4+2] = byte(argb)
		p.rgba[i*4+3] = byte(argb >> 24)
	}
}

// queueAudio hands decoded PCM to the audio queue; the player drains it.
func (p *player) queueAudio(b []byte) {
	p.audio.Write(b)
}

// decodeLoop decodes one frame per tick until the stream is exhausted.
func (p *player) decodeLoop(dec *san.Decoder, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		err := dec.ReadFrame()
		if err == nil {
			continue
		}
		if errors.Cause(err) != san.ErrDone {
			p.log.Error("decode failed", "frame", dec.FrameIndex(), "error", err)
		}
		break
	}
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
}

// Update implements ebiten.Game.
func (p *player) Update() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done && p.audio.empty() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (p *player) Draw(screen *ebiten.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == 0 || p.rgba == nil {
		return
	}
	if p.img == nil || p.img.Bounds().Dx() != p.w || p.img.Bounds().Dy() != p.h {
		p.img = ebiten.NewImage(p.w, p.h)
	}
	p.img.WritePixels(p.rgba)
	screen.DrawImage(p.img, nil)
}

// Layout implements ebiten.Game.
func (p *player) Layout(outsideWidth, outsideHeight int) (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == 0 {
		return defaultW, defaultH
	}
	return p.w, p.h
}

// pcmQueue buffers decoded PCM between the decode goroutine and the audio
// device, substituting silence on underrun.
type pcmQueue struct {
	mu  sync.Mutex
	buf []byte
}

func (q *pcmQueue) Write(p []byte) {
	q.mu.Lock()
	q.buf = append(q.buf, p...)
	q.mu.Unlock()
}

// Read implements io.Reader for the audio device. It never blocks and never
// returns an error; missing data plays as silence.
func (q *pcmQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	if len(q.buf) == 0 {
		q.buf = nil
	}
	q.mu.Unlock()
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (q *pcmQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) == 0
}
