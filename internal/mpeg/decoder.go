// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具
//
// Package mpeg decodes MPEG-1 program streams without ffmpeg.

package mpeg

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gen2brain/mpeg"
	"github.com/jfbus/httprs"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// Decoder opens MPEG-PS files and http(s) URLs
type Decoder struct {
	client *http.Client
}

// New creates a Decoder. A nil client means http.DefaultClient.
func New(client *http.Client) *Decoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Decoder{client: client}
}

func (d *Decoder) Open(ctx context.Context, src capture.Source) (capture.Stream, error) {
	if src.StreamURL == "" {
		return nil, capture.ErrNoStream
	}

	r, err := d.open(ctx, src.StreamURL)
	if err != nil {
		return nil, err
	}
	s, err := NewStream(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Decoder) open(ctx context.Context, url string) (io.ReadSeekCloser, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		f, err := os.Open(url)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", url, res.Status)
	}
	return httprs.NewHttpReadSeeker(res, d.client), nil
}

// Stream reads frames from one MPEG-PS source
type Stream struct {
	r    io.ReadSeekCloser
	mpg  *mpeg.MPEG
	info capture.VideoInfo
}

// NewStream takes ownership of r and reads its headers.
func NewStream(r io.ReadSeekCloser) (*Stream, error) {
	mpg, err := mpeg.New(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", capture.ErrNoStream, err)
	}
	mpg.SetAudioEnabled(false)

	if !mpg.HasHeaders() || mpg.NumVideoStreams() == 0 {
		r.Close()
		return nil, capture.ErrNoStream
	}

	s := &Stream{r: r, mpg: mpg}
	s.info = capture.VideoInfo{
		Width:    mpg.Width(),
		Height:   mpg.Height(),
		FPS:      mpg.Framerate(),
		Duration: mpg.Duration(),
	}
	if s.info.FPS > 0 {
		s.info.FrameCount = int64(s.info.Duration.Seconds() * s.info.FPS)
	}
	return s, nil
}

func (s *Stream) Info() capture.VideoInfo { return s.info }

// FrameAt seeks exactly to second. The decoder clamps seeks to the
// duration, so anything past it is reported as missing here.
func (s *Stream) FrameAt(ctx context.Context, second int) (*capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset := time.Duration(second) * time.Second
	if second < 0 || pastEnd(offset, s.info.Duration) {
		return nil, capture.ErrNoFrame
	}

	frame := s.mpg.SeekFrame(offset, true)
	if frame == nil {
		return nil, capture.ErrNoFrame
	}

	// the decoder reuses its frame buffers
	src := frame.YCbCr()
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	return &capture.Frame{Second: second, Offset: offset, Image: img}, nil
}

// pastEnd reports whether offset has no frame. A whole-second duration
// ends before its last second mark.
func pastEnd(offset, duration time.Duration) bool {
	if duration > 0 && duration%time.Second == 0 {
		return offset >= duration
	}
	return offset > duration
}

func (s *Stream) Close() error {
	return s.r.Close()
}
