// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// Dir writes frames into a local directory
type Dir struct {
	dir     string
	naming  Naming
	quality int
}

// NewDir creates dir if it does not exist.
func NewDir(dir string, naming Naming, quality int) (*Dir, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Dir{dir: dir, naming: naming, quality: quality}, nil
}

func (d *Dir) Kind() string { return KindDir }

// WriteFrame encodes into a temp file and renames it over the final name.
func (d *Dir) WriteFrame(ctx context.Context, frame *capture.Frame) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(d.dir, d.naming.Name(frame.Second))

	tmp, err := os.CreateTemp(d.dir, ".frame-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := EncodeJPEG(w, frame.Image, d.quality); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return target, nil
}

func (d *Dir) Close() error { return nil }
