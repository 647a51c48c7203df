// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具
//
// Package sink encodes frames as JPEG and stores them on disk or in object
// storage.

package sink

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
)

// Sink kinds
const (
	KindDir   = "dir"
	KindMinIO = "minio"
	KindGCS   = "gcs"
)

// DefaultPattern names frames by source second
const DefaultPattern = "frame_%04d.jpg"

// Sink is a capture.Sink that holds resources
type Sink interface {
	capture.Sink
	// Kind returns one of the Kind constants.
	Kind() string
	Close() error
}

// EncodeJPEG writes img to w. quality is clamped to 1..100.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Naming turns a source second into a file name
type Naming struct {
	pattern string
}

// NewNaming checks that pattern formats exactly one integer.
func NewNaming(pattern string) (Naming, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	name := fmt.Sprintf(pattern, 1)
	if strings.Contains(name, "%!") || name == pattern {
		return Naming{}, fmt.Errorf("invalid name pattern '%s'", pattern)
	}
	if strings.ContainsAny(name, `/\`) {
		return Naming{}, fmt.Errorf("name pattern '%s' must not contain a path", pattern)
	}
	return Naming{pattern: pattern}, nil
}

// Name returns the file name for second.
func (n Naming) Name(second int) string {
	pattern := n.pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return fmt.Sprintf(pattern, second)
}

// New creates the sink selected by cfg.Kind. prefix groups the frames of
// one run: a sub directory for dir, a key prefix for object stores.
func New(ctx context.Context, cfg config.OutputConfig, prefix string) (Sink, error) {
	naming, err := NewNaming(cfg.Pattern)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case "", KindDir:
		dir := cfg.Dir
		if prefix != "" {
			dir = filepath.Join(dir, prefix)
		}
		s, err := NewDir(dir, naming, cfg.Quality)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindMinIO:
		s, err := NewMinIO(ctx, cfg.MinIO, path.Join(cfg.MinIO.Prefix, prefix), naming, cfg.Quality)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindGCS:
		s, err := NewGCS(ctx, cfg.GCS.Bucket, path.Join(cfg.GCS.Prefix, prefix), naming, cfg.Quality)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown output kind '%s'", cfg.Kind)
}
