// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// Open probes src and returns a stream that grabs one frame per call.
func (f *ffmpeg) Open(ctx context.Context, src capture.Source) (capture.Stream, error) {
	if src.StreamURL == "" {
		return nil, capture.ErrNoStream
	}

	info, err := f.Probe(ctx, src.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	info = mergeSource(info, src)

	return &stream{ffmpeg: f, url: src.StreamURL, info: info}, nil
}

// mergeSource fills what ffprobe could not tell from resolver metadata.
func mergeSource(info capture.VideoInfo, src capture.Source) capture.VideoInfo {
	if info.Width == 0 {
		info.Width = src.Width
	}
	if info.Height == 0 {
		info.Height = src.Height
	}
	if info.FPS == 0 {
		info.FPS = src.FPS
	}
	if info.Duration == 0 {
		info.Duration = src.Duration
	}
	return info
}

type stream struct {
	ffmpeg *ffmpeg
	url    string
	info   capture.VideoInfo
}

func (s *stream) Info() capture.VideoInfo { return s.info }

func (s *stream) FrameAt(ctx context.Context, second int) (*capture.Frame, error) {
	offset := time.Duration(second) * time.Second
	img, err := s.ffmpeg.Grab(ctx, s.url, offset)
	if err != nil {
		return nil, err
	}
	return &capture.Frame{Second: second, Offset: offset, Image: img}, nil
}

func (s *stream) Close() error { return nil }

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbe turns ffprobe's JSON into VideoInfo. The duration is
// frame_count / fps when both are known, else the stream duration, else
// the container duration.
func parseProbe(data []byte) (capture.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return capture.VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return capture.VideoInfo{}, capture.ErrNoStream
	}
	st := out.Streams[0]

	info := capture.VideoInfo{Width: st.Width, Height: st.Height}

	info.FPS = parseRational(st.AvgFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRational(st.RFrameRate)
	}
	info.FrameCount, _ = strconv.ParseInt(st.NbFrames, 10, 64)

	switch {
	case info.FrameCount > 0 && info.FPS > 0:
		info.Duration = seconds(float64(info.FrameCount) / info.FPS)
	case parseFloat(st.Duration) > 0:
		info.Duration = seconds(parseFloat(st.Duration))
	default:
		info.Duration = seconds(parseFloat(out.Format.Duration))
	}
	return info, nil
}

// parseRational parses "30000/1001" or "25". Invalid or 0/0 gives 0.
func parseRational(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}
