// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package capture

import (
	"fmt"
	"time"
)

// PlanRange returns the inclusive range of seconds to capture.
//
// start is clamped to 0. A nil end, or one past the video, becomes
// floor(duration). The frame at floor(duration) may not exist; the
// capture loop treats that as an early stop, not a failure.
func PlanRange(start int, end *int, duration time.Duration) (int, int, error) {
	if start < 0 {
		start = 0
	}

	last := int(duration / time.Second)
	if duration < 0 {
		last = 0
	}

	stop := last
	if end != nil && *end <= last {
		stop = *end
	}

	if start > stop {
		return 0, 0, fmt.Errorf("%w (start=%d, end=%d, duration=%s)", ErrInvalidRange, start, stop, duration)
	}
	return start, stop, nil
}
