// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具
//
// Package resolve turns page URLs into media URLs a decoder can open.

package resolve

import (
	"fmt"
	"time"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/logger"
)

// Resolver kinds
const (
	KindYtdlp  = "ytdlp"
	KindNative = "native"
	KindDirect = "direct"
)

// Config selects and configures a resolver
type Config struct {
	Kind      string
	YtdlpPath string
	Format    string
	Timeout   time.Duration
	Allow     []string
	Block     []string
	Logger    logger.Logger
}

func (c Config) kind() string {
	if c.Kind == "" {
		return KindYtdlp
	}
	return c.Kind
}

// Validator builds the URL validator for config. YouTube resolvers fall
// back to YouTubeAllow when no allow list is given.
func (c Config) Validator() (Validator, error) {
	allow := c.Allow
	if len(allow) == 0 && c.kind() != KindDirect {
		allow = YouTubeAllow
	}
	return NewValidator(allow, c.Block)
}

// New returns the resolver named by config.Kind
func New(config Config) (capture.Resolver, error) {
	v, err := config.Validator()
	if err != nil {
		return nil, err
	}

	switch config.kind() {
	case KindYtdlp:
		y, err := NewYtdlp(config.YtdlpPath, config.Format, config.Timeout, v, config.Logger)
		if err != nil {
			return nil, err
		}
		return y, nil
	case KindNative:
		return NewNative(config.Timeout, v, config.Logger), nil
	case KindDirect:
		return NewDirect(v), nil
	}
	return nil, fmt.Errorf("unknown resolver '%s'", config.Kind)
}
