// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import "errors"

var (
	ErrNotFound      = errors.New("job not found")
	ErrJobExists     = errors.New("job already exists")
	ErrInvalidConfig = errors.New("invalid config: need a url")
	ErrInvalidURL    = errors.New("invalid url")
	ErrQueueFull     = errors.New("job queue is full")
	ErrNotActive     = errors.New("job is not queued or running")
	ErrClosed        = errors.New("job store is closed")
)
