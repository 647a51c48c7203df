// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import (
	"fmt"
	"strings"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// Config for a capture job
type Config struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	URL       string `json:"url"`
	Start     int    `json:"start"`
	End       *int   `json:"end,omitempty"`
}

// Validate checks what can be checked before the video is resolved.
// Clamping against the real duration happens when the job runs.
func (c *Config) Validate() error {
	c.URL = strings.TrimSpace(c.URL)
	if c.URL == "" {
		return ErrInvalidConfig
	}
	start := c.Start
	if start < 0 {
		start = 0
	}
	if c.End != nil && *c.End < start {
		return fmt.Errorf("%w (start=%d, end=%d)", capture.ErrInvalidRange, c.Start, *c.End)
	}
	return nil
}

// Request converts the config into a capture request
func (c *Config) Request() capture.Request {
	return capture.Request{URL: c.URL, Start: c.Start, End: c.End}
}
