// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package capture_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	info   capture.VideoInfo
	lastOK int // last second with a frame
	failAt int
	reads  []int
	closed bool
}

func (s *fakeStream) Info() capture.VideoInfo { return s.info }

func (s *fakeStream) FrameAt(ctx context.Context, second int) (*capture.Frame, error) {
	s.reads = append(s.reads, second)
	if s.failAt >= 0 && second == s.failAt {
		return nil, errors.New("decoder exploded")
	}
	if second > s.lastOK {
		return nil, capture.ErrNoFrame
	}
	return &capture.Frame{
		Second: second,
		Offset: time.Duration(second) * time.Second,
		Image:  image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height)),
	}, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeDecoder struct {
	stream *fakeStream
	err    error
	opened capture.Source
}

func (d *fakeDecoder) Open(ctx context.Context, src capture.Source) (capture.Stream, error) {
	d.opened = src
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type memorySink struct {
	seconds []int
	failAt  int
}

func (s *memorySink) WriteFrame(ctx context.Context, f *capture.Frame) (string, error) {
	if s.failAt >= 0 && f.Second == s.failAt {
		return "", errors.New("disk full")
	}
	s.seconds = append(s.seconds, f.Second)
	return fmt.Sprintf("frame_%04d.jpg", f.Second), nil
}

type countingObserver struct {
	stages  map[string]int
	written int
}

func (o *countingObserver) StageDone(stage string, _ time.Duration) {
	if o.stages == nil {
		o.stages = map[string]int{}
	}
	o.stages[stage]++
}

func (o *countingObserver) FrameWritten(int, string) { o.written++ }

func staticResolver(src capture.Source) capture.Resolver {
	return capture.ResolverFunc(func(ctx context.Context, url string) (capture.Source, error) {
		src.PageURL = url
		return src, nil
	})
}

func newStream(duration time.Duration, lastOK int) *fakeStream {
	return &fakeStream{
		info:   capture.VideoInfo{Width: 64, Height: 36, FPS: 30, Duration: duration},
		lastOK: lastOK,
		failAt: -1,
	}
}

func intPtr(v int) *int { return &v }

func TestRunWholeVideo(t *testing.T) {
	// 5.5s video: seconds 0..5 all exist
	stream := newStream(5500*time.Millisecond, 5)
	dec := &fakeDecoder{stream: stream}
	sink := &memorySink{failAt: -1}
	obs := &countingObserver{}

	c := capture.New(staticResolver(capture.Source{StreamURL: "https://cdn/v.mp4"}), dec, nil)
	report, err := c.Run(context.Background(), capture.Request{URL: " https://youtu.be/abc "}, sink, obs)
	require.NoError(t, err)

	assert.Equal(t, "https://youtu.be/abc", dec.opened.PageURL)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sink.seconds)
	assert.Len(t, report.Written, 6)
	assert.Equal(t, 0, report.Start)
	assert.Equal(t, 5, report.End)
	assert.False(t, report.StoppedEarly)
	assert.Equal(t, -1, report.StoppedAt)
	assert.True(t, stream.closed)

	assert.Equal(t, 6, obs.written)
	assert.Equal(t, 1, obs.stages[capture.StageResolve])
	assert.Equal(t, 1, obs.stages[capture.StageOpen])
	assert.Equal(t, 6, obs.stages[capture.StageFrame])
}

func TestRunStopsEarlyOnMissingFrame(t *testing.T) {
	// exactly 10s long: second 10 is planned but has no frame
	stream := newStream(10*time.Second, 9)
	sink := &memorySink{failAt: -1}

	c := capture.New(staticResolver(capture.Source{}), &fakeDecoder{stream: stream}, nil)
	report, err := c.Run(context.Background(), capture.Request{URL: "u"}, sink, nil)
	require.NoError(t, err)

	assert.Len(t, sink.seconds, 10)
	assert.True(t, report.StoppedEarly)
	assert.Equal(t, 10, report.StoppedAt)
	assert.Equal(t, 10, report.End)
}

func TestRunRange(t *testing.T) {
	stream := newStream(1200*time.Second, 1199)
	sink := &memorySink{failAt: -1}

	c := capture.New(staticResolver(capture.Source{}), &fakeDecoder{stream: stream}, nil)
	report, err := c.Run(context.Background(), capture.Request{URL: "u", Start: 948, End: intPtr(952)}, sink, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{948, 949, 950, 951, 952}, sink.seconds)
	assert.Equal(t, []int{948, 949, 950, 951, 952}, stream.reads)
	assert.Equal(t, "frame_0948.jpg", report.Written[0])
}

func TestRunIsRepeatable(t *testing.T) {
	run := func() []string {
		c := capture.New(staticResolver(capture.Source{}), &fakeDecoder{stream: newStream(3*time.Second, 2)}, nil)
		report, err := c.Run(context.Background(), capture.Request{URL: "u"}, &memorySink{failAt: -1}, nil)
		require.NoError(t, err)
		return report.Written
	}
	assert.Equal(t, run(), run())
}

func TestRunErrors(t *testing.T) {
	resolveErr := errors.New("video unavailable")

	tests := []struct {
		name      string
		req       capture.Request
		resolver  capture.Resolver
		decoder   *fakeDecoder
		sink      *memorySink
		wantIs    error
		wantText  string
		written   int
		wantClose bool
	}{
		{
			name:     "empty url",
			req:      capture.Request{URL: "  "},
			resolver: staticResolver(capture.Source{}),
			decoder:  &fakeDecoder{stream: newStream(5*time.Second, 4)},
			sink:     &memorySink{failAt: -1},
			wantIs:   capture.ErrEmptyURL,
		},
		{
			name: "resolve fails",
			req:  capture.Request{URL: "u"},
			resolver: capture.ResolverFunc(func(context.Context, string) (capture.Source, error) {
				return capture.Source{}, resolveErr
			}),
			decoder: &fakeDecoder{stream: newStream(5*time.Second, 4)},
			sink:    &memorySink{failAt: -1},
			wantIs:  resolveErr,
		},
		{
			name:     "open fails",
			req:      capture.Request{URL: "u"},
			resolver: staticResolver(capture.Source{}),
			decoder:  &fakeDecoder{err: capture.ErrNoStream},
			sink:     &memorySink{failAt: -1},
			wantIs:   capture.ErrNoStream,
		},
		{
			name:      "start after end",
			req:       capture.Request{URL: "u", Start: 8, End: intPtr(3)},
			resolver:  staticResolver(capture.Source{}),
			decoder:   &fakeDecoder{stream: newStream(5*time.Second, 4)},
			sink:      &memorySink{failAt: -1},
			wantIs:    capture.ErrInvalidRange,
			wantClose: true,
		},
		{
			name:     "decoder error aborts",
			req:      capture.Request{URL: "u"},
			resolver: staticResolver(capture.Source{}),
			decoder: &fakeDecoder{stream: func() *fakeStream {
				s := newStream(5*time.Second, 4)
				s.failAt = 2
				return s
			}()},
			sink:      &memorySink{failAt: -1},
			wantText:  "read frame at 2s",
			written:   2,
			wantClose: true,
		},
		{
			name:      "sink error aborts",
			req:       capture.Request{URL: "u"},
			resolver:  staticResolver(capture.Source{}),
			decoder:   &fakeDecoder{stream: newStream(5*time.Second, 4)},
			sink:      &memorySink{failAt: 1},
			wantText:  "write frame at 1s",
			written:   1,
			wantClose: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := capture.New(tt.resolver, tt.decoder, nil)
			report, err := c.Run(context.Background(), tt.req, tt.sink, nil)
			require.Error(t, err)
			require.NotNil(t, report)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
			assert.Len(t, report.Written, tt.written)
			if tt.decoder.stream != nil && tt.wantClose {
				assert.True(t, tt.decoder.stream.closed)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancellingSink{cancel: cancel}

	c := capture.New(staticResolver(capture.Source{}), &fakeDecoder{stream: newStream(10*time.Second, 9)}, nil)
	report, err := c.Run(ctx, capture.Request{URL: "u"}, sink, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Written, 1)
}

type cancellingSink struct {
	cancel context.CancelFunc
}

func (s *cancellingSink) WriteFrame(ctx context.Context, f *capture.Frame) (string, error) {
	s.cancel()
	return "first.jpg", nil
}

func TestPlanRange(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		end       *int
		duration  time.Duration
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "defaults to floor(duration)", start: 0, duration: 12900 * time.Millisecond, wantEnd: 12},
		{name: "negative start clamps", start: -5, end: intPtr(3), duration: 10 * time.Second, wantEnd: 3},
		{name: "end beyond duration clamps", start: 2, end: intPtr(99), duration: 10 * time.Second, wantStart: 2, wantEnd: 10},
		{name: "end equal to floor kept", start: 0, end: intPtr(10), duration: 10500 * time.Millisecond, wantEnd: 10},
		{name: "single second", start: 4, end: intPtr(4), duration: 10 * time.Second, wantStart: 4, wantEnd: 4},
		{name: "zero duration", start: 0, duration: 0, wantEnd: 0},
		{name: "start after end", start: 5, end: intPtr(4), duration: 10 * time.Second, wantErr: true},
		{name: "start after video", start: 11, duration: 10 * time.Second, wantErr: true},
		{name: "negative end", start: 0, end: intPtr(-1), duration: 10 * time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := capture.PlanRange(tt.start, tt.end, tt.duration)
			if tt.wantErr {
				assert.ErrorIs(t, err, capture.ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
