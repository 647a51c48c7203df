// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package resolve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/logger"
)

// Native resolves YouTube URLs without external binaries
type Native struct {
	client    *youtube.Client
	validator Validator
	logger    logger.Logger
}

// NewNative creates a Native resolver. timeout bounds each HTTP request.
func NewNative(timeout time.Duration, v Validator, log logger.Logger) *Native {
	if log == nil {
		log = logger.NewNop()
	}
	client := &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}}
	return &Native{client: client, validator: v, logger: log}
}

func (n *Native) Resolve(ctx context.Context, url string) (capture.Source, error) {
	if n.validator != nil {
		if err := n.validator.Validate(url); err != nil {
			return capture.Source{}, err
		}
	}

	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return capture.Source{}, fmt.Errorf("fetch video: %w", err)
	}

	format := pickFormat(video.Formats)
	if format == nil {
		return capture.Source{}, fmt.Errorf("%w: no progressive mp4 for %s", capture.ErrNoStream, video.ID)
	}

	streamURL, err := n.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return capture.Source{}, fmt.Errorf("stream url: %w", err)
	}
	n.logger.Debug("itag %d (%s) picked for %s", format.ItagNo, format.QualityLabel, video.ID)

	return capture.Source{
		PageURL:   url,
		StreamURL: streamURL,
		ID:        video.ID,
		Title:     video.Title,
		Width:     format.Width,
		Height:    format.Height,
		FPS:       float64(format.FPS),
		Duration:  video.Duration,
	}, nil
}

// pickFormat returns the tallest progressive mp4 (video with audio),
// preferring the higher bitrate on ties.
func pickFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for _, f := range formats.WithAudioChannels().Type("video/mp4") {
		f := f
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = &f
		}
	}
	return best
}
