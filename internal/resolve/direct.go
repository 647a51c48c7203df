// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package resolve

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// Direct passes local files and plain http(s) media URLs through unchanged
type Direct struct {
	validator Validator
}

// NewDirect creates a Direct resolver
func NewDirect(v Validator) *Direct {
	return &Direct{validator: v}
}

func (d *Direct) Resolve(ctx context.Context, raw string) (capture.Source, error) {
	if d.validator != nil {
		if err := d.validator.Validate(raw); err != nil {
			return capture.Source{}, err
		}
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return capture.Source{PageURL: raw, StreamURL: raw, ID: filepath.Base(u.Path)}, nil
		case "file":
			raw = u.Path
		default:
			return capture.Source{}, fmt.Errorf("%w: scheme %s", capture.ErrUnsupportedURL, u.Scheme)
		}
	}

	fi, err := os.Stat(raw)
	if err != nil {
		return capture.Source{}, fmt.Errorf("%w: %v", capture.ErrUnsupportedURL, err)
	}
	if fi.IsDir() {
		return capture.Source{}, fmt.Errorf("%w: %s is a directory", capture.ErrUnsupportedURL, raw)
	}

	path, err := filepath.Abs(raw)
	if err != nil {
		return capture.Source{}, err
	}
	name := filepath.Base(path)
	return capture.Source{
		PageURL:   raw,
		StreamURL: path,
		ID:        strings.TrimSuffix(name, filepath.Ext(name)),
		Title:     name,
	}, nil
}
