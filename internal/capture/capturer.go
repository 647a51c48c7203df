// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具
//
// Package capture resolves a video URL, opens it and writes one frame for
// every second in the requested range.

package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZSC714725/framegrab/internal/logger"
)

// Request describes one capture run. End is inclusive; nil means the end
// of the video.
type Request struct {
	URL   string
	Start int
	End   *int
}

// Report summarizes a run. It is returned even when the run fails so
// callers can see what was written before the error.
type Report struct {
	Source       Source
	Info         VideoInfo
	Start        int
	End          int
	Written      []string
	StoppedEarly bool
	StoppedAt    int
	Elapsed      time.Duration
}

// Stage names used by Observer.
const (
	StageResolve = "resolve"
	StageOpen    = "open"
	StageFrame   = "frame"
	StageWrite   = "write"
)

// Observer receives progress callbacks from Run.
type Observer interface {
	StageDone(stage string, elapsed time.Duration)
	FrameWritten(second int, location string)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) StageDone(string, time.Duration) {}
func (NopObserver) FrameWritten(int, string)        {}

// Observers fans callbacks out in order.
type Observers []Observer

func (o Observers) StageDone(stage string, elapsed time.Duration) {
	for _, obs := range o {
		obs.StageDone(stage, elapsed)
	}
}

func (o Observers) FrameWritten(second int, location string) {
	for _, obs := range o {
		obs.FrameWritten(second, location)
	}
}

// Capturer runs the resolve, open, read, write pipeline.
type Capturer struct {
	resolver Resolver
	decoder  Decoder
	logger   logger.Logger
}

// New creates a Capturer
func New(resolver Resolver, decoder Decoder, log logger.Logger) *Capturer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Capturer{resolver: resolver, decoder: decoder, logger: log}
}

// Run captures req into sink. Frames are read and written strictly one
// after another; each frame is released once the sink returns.
func (c *Capturer) Run(ctx context.Context, req Request, sink Sink, obs Observer) (*Report, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	began := time.Now()
	report := &Report{StoppedAt: -1}
	defer func() { report.Elapsed = time.Since(began) }()

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return report, ErrEmptyURL
	}

	t := time.Now()
	src, err := c.resolver.Resolve(ctx, url)
	if err != nil {
		return report, fmt.Errorf("resolve %s: %w", url, err)
	}
	obs.StageDone(StageResolve, time.Since(t))
	report.Source = src
	c.logger.Debug("resolved %s -> %s", url, src.StreamURL)

	t = time.Now()
	stream, err := c.decoder.Open(ctx, src)
	if err != nil {
		return report, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()
	obs.StageDone(StageOpen, time.Since(t))

	info := stream.Info()
	report.Info = info
	c.logger.Info("video duration: %.1fs @ %.2f FPS (%dx%d)", info.Duration.Seconds(), info.FPS, info.Width, info.Height)

	start, end, err := PlanRange(req.Start, req.End, info.Duration)
	if err != nil {
		return report, err
	}
	report.Start, report.End = start, end

	for sec := start; sec <= end; sec++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		t = time.Now()
		frame, err := stream.FrameAt(ctx, sec)
		if errors.Is(err, ErrNoFrame) {
			c.logger.Warn("no frame at %ds, stopping early", sec)
			report.StoppedEarly = true
			report.StoppedAt = sec
			break
		}
		if err != nil {
			return report, fmt.Errorf("read frame at %ds: %w", sec, err)
		}
		obs.StageDone(StageFrame, time.Since(t))

		t = time.Now()
		location, err := sink.WriteFrame(ctx, frame)
		if err != nil {
			return report, fmt.Errorf("write frame at %ds: %w", sec, err)
		}
		obs.StageDone(StageWrite, time.Since(t))

		report.Written = append(report.Written, location)
		obs.FrameWritten(sec, location)
		c.logger.Info("saved %s", location)
	}

	c.logger.Info("done: %d frame(s) saved", len(report.Written))
	return report, nil
}
