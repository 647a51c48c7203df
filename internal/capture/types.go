// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package capture

import (
	"context"
	"image"
	"time"
)

// Frame is one decoded picture taken at a whole second of the source.
type Frame struct {
	Second int
	Offset time.Duration
	Image  image.Image
}

// VideoInfo describes an opened stream.
type VideoInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int64
	Duration   time.Duration
}

// Source is what a Resolver hands to a Decoder.
type Source struct {
	PageURL   string
	StreamURL string
	ID        string
	Title     string
	Width     int
	Height    int
	FPS       float64
	Duration  time.Duration
}

// Resolver turns a page URL into a directly decodable media URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Source, error)
}

// Decoder opens resolved sources.
type Decoder interface {
	Open(ctx context.Context, src Source) (Stream, error)
}

// Stream reads frames by whole-second offset. A Stream returns ErrNoFrame
// when nothing can be read at the requested second.
type Stream interface {
	Info() VideoInfo
	FrameAt(ctx context.Context, second int) (*Frame, error)
	Close() error
}

// Sink persists one frame and returns where it went.
type Sink interface {
	WriteFrame(ctx context.Context, frame *Frame) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, url string) (Source, error)

func (f ResolverFunc) Resolve(ctx context.Context, url string) (Source, error) {
	return f(ctx, url)
}
