// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"time"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/parse"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/process"
)

// DefaultFormat picks the best single-file MP4
const DefaultFormat = "best[ext=mp4]"

// Ytdlp resolves page URLs by asking yt-dlp for the selected format
type Ytdlp struct {
	binary    string
	format    string
	timeout   time.Duration
	validator Validator
	logger    logger.Logger
}

// NewYtdlp looks up the yt-dlp binary
func NewYtdlp(binary, format string, timeout time.Duration, v Validator, log logger.Logger) (*Ytdlp, error) {
	if binary == "" {
		binary = "yt-dlp"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("invalid yt-dlp binary: %w", err)
	}
	if format == "" {
		format = DefaultFormat
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Ytdlp{binary: path, format: format, timeout: timeout, validator: v, logger: log}, nil
}

// YtdlpArgs returns the yt-dlp arguments that dump metadata for one video.
func YtdlpArgs(url, format string) []string {
	return []string{"-J", "--no-playlist", "--no-warnings", "-f", format, "--", url}
}

func (y *Ytdlp) Resolve(ctx context.Context, url string) (capture.Source, error) {
	if y.validator != nil {
		if err := y.validator.Validate(url); err != nil {
			return capture.Source{}, err
		}
	}
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	parser := parse.New(parse.Config{LogLines: 20})
	out, err := process.Output(ctx, y.binary, YtdlpArgs(url, y.format), parser)
	if err != nil {
		if msg := parser.LastError(); msg != "" {
			return capture.Source{}, fmt.Errorf("yt-dlp: %s: %w", msg, err)
		}
		return capture.Source{}, fmt.Errorf("yt-dlp: %w", err)
	}

	src, err := parseYtdlp(out)
	if err != nil {
		return capture.Source{}, err
	}
	src.PageURL = url
	y.logger.Debug("yt-dlp picked %dx%d for %s", src.Width, src.Height, src.ID)
	return src, nil
}

type ytdlpFormat struct {
	URL    string  `json:"url"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
	VCodec string  `json:"vcodec"`
}

type ytdlpInfo struct {
	ytdlpFormat
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Duration         float64       `json:"duration"`
	RequestedFormats []ytdlpFormat `json:"requested_formats"`
}

// parseYtdlp reads the output of yt-dlp -J. A merged selection has no
// top-level url; its video part is used instead.
func parseYtdlp(data []byte) (capture.Source, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return capture.Source{}, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	format := info.ytdlpFormat
	if format.URL == "" {
		for _, f := range info.RequestedFormats {
			if f.URL != "" && f.VCodec != "none" {
				format = f
				break
			}
		}
	}
	if format.URL == "" {
		return capture.Source{}, capture.ErrNoStream
	}

	return capture.Source{
		StreamURL: format.URL,
		ID:        info.ID,
		Title:     info.Title,
		Width:     format.Width,
		Height:    format.Height,
		FPS:       format.FPS,
		Duration:  time.Duration(math.Round(info.Duration * float64(time.Second))),
	}, nil
}
