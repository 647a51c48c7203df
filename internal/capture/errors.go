// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package capture

import "errors"

var (
	ErrInvalidRange   = errors.New("start second must be <= end second")
	ErrNoFrame        = errors.New("no frame at requested position")
	ErrUnsupportedURL = errors.New("unsupported url")
	ErrNoStream       = errors.New("no video stream found")
	ErrEmptyURL       = errors.New("url is required")
)
