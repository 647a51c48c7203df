// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
	"github.com/ZSC714725/framegrab/internal/logger"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func quickRunner(frames int) Runner {
	return RunnerFunc(func(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error) {
		report := &capture.Report{StoppedAt: -1}
		for i := 0; i < frames; i++ {
			name := fmt.Sprintf("frame_%04d.jpg", req.Start+i)
			obs.FrameWritten(req.Start+i, name)
			log.Info("saved %s", name)
			report.Written = append(report.Written, name)
		}
		return report, nil
	})
}

// gateRunner blocks every run until released or cancelled.
type gateRunner struct {
	started chan string
	release chan struct{}
}

func newGateRunner() *gateRunner {
	return &gateRunner{started: make(chan string, 16), release: make(chan struct{}, 16)}
}

func (g *gateRunner) Run(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error) {
	g.started <- id
	select {
	case <-g.release:
		return &capture.Report{StoppedAt: -1}, nil
	case <-ctx.Done():
		return &capture.Report{StoppedAt: -1}, ctx.Err()
	}
}

func (g *gateRunner) waitStarted(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-g.started:
		require.Equal(t, id, got)
	case <-time.After(waitFor):
		t.Fatalf("job %s never started", id)
	}
}

func waitState(t *testing.T, j *Job, state State) {
	t.Helper()
	require.Eventually(t, func() bool { return j.Status().State == state }, waitFor, tick,
		"job %s never reached %s", j.ID, state)
}

func TestAddRunsJob(t *testing.T) {
	s := NewStore(Options{Runner: quickRunner(3)})
	defer s.Close()

	job, err := s.Add(&Config{URL: " https://youtu.be/abc ", Start: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "https://youtu.be/abc", job.Config.URL)

	waitState(t, job, StateFinished)

	status := job.Status()
	assert.Equal(t, 3, status.Frames)
	assert.Equal(t, "frame_0012.jpg", status.LastFrame)
	assert.Equal(t, 1, status.Runs)
	assert.Empty(t, status.Error)
	assert.Equal(t, []string{"frame_0010.jpg", "frame_0011.jpg", "frame_0012.jpg"}, job.Written())

	report, err := job.Report()
	require.NoError(t, err)
	assert.Len(t, report.Written, 3)

	log := job.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "INFO saved frame_0010.jpg", log[0].Data)
}

func TestAddValidation(t *testing.T) {
	s := NewStore(Options{
		Runner: quickRunner(0),
		Validator: validatorFunc(func(url string) error {
			if strings.Contains(url, "vimeo") {
				return errors.New("not youtube")
			}
			return nil
		}),
	})
	defer s.Close()

	_, err := s.Add(&Config{URL: "  "})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	end := 3
	_, err = s.Add(&Config{URL: "https://youtu.be/x", Start: 5, End: &end})
	assert.ErrorIs(t, err, capture.ErrInvalidRange)

	_, err = s.Add(&Config{URL: "https://vimeo.com/1"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.Add(&Config{ID: "same", URL: "https://youtu.be/x"})
	require.NoError(t, err)
	_, err = s.Add(&Config{ID: "same", URL: "https://youtu.be/y"})
	assert.ErrorIs(t, err, ErrJobExists)
}

type validatorFunc func(string) error

func (f validatorFunc) Validate(url string) error { return f(url) }

func TestJobsRunOneAtATime(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})
	defer s.Close()

	first, err := s.Add(&Config{ID: "first", URL: "u1"})
	require.NoError(t, err)
	second, err := s.Add(&Config{ID: "second", URL: "u2"})
	require.NoError(t, err)

	g.waitStarted(t, "first")
	assert.Equal(t, StateRunning, first.Status().State)
	assert.Equal(t, StateQueued, second.Status().State)

	g.release <- struct{}{}
	waitState(t, first, StateFinished)
	g.waitStarted(t, "second")

	g.release <- struct{}{}
	waitState(t, second, StateFinished)
}

func TestCancel(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})
	defer s.Close()

	running, _ := s.Add(&Config{ID: "running", URL: "u1"})
	queued, _ := s.Add(&Config{ID: "queued", URL: "u2"})
	g.waitStarted(t, "running")

	require.NoError(t, s.Cancel("queued"))
	assert.Equal(t, StateCancelled, queued.Status().State)

	require.NoError(t, s.Cancel("running"))
	waitState(t, running, StateCancelled)
	_, err := running.Report()
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, s.Cancel("running"), ErrNotActive)
	assert.ErrorIs(t, s.Cancel("missing"), ErrNotFound)

	// the cancelled queued job must never reach the runner
	select {
	case id := <-g.started:
		t.Fatalf("job %s started after cancel", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRestartFinished(t *testing.T) {
	s := NewStore(Options{Runner: quickRunner(1)})
	defer s.Close()

	job, _ := s.Add(&Config{URL: "u"})
	waitState(t, job, StateFinished)

	require.NoError(t, s.Restart(job.ID))
	require.Eventually(t, func() bool {
		st := job.Status()
		return st.State == StateFinished && st.Runs == 2
	}, waitFor, tick)
	assert.Equal(t, 1, job.Status().Frames)
}

func TestRestartRunning(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})
	defer s.Close()

	job, _ := s.Add(&Config{ID: "job", URL: "u"})
	g.waitStarted(t, "job")

	require.NoError(t, s.Restart("job"))
	g.waitStarted(t, "job")
	assert.Equal(t, 2, job.Status().Runs)

	g.release <- struct{}{}
	waitState(t, job, StateFinished)
}

func TestDelete(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})
	defer s.Close()

	job, _ := s.Add(&Config{ID: "job", URL: "u"})
	g.waitStarted(t, "job")

	require.NoError(t, s.Delete("job"))
	waitState(t, job, StateCancelled)

	_, err := s.Get("job")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("job"), ErrNotFound)
}

func TestList(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})
	defer s.Close()

	for i, ref := range []string{"a", "b", "a"} {
		_, err := s.Add(&Config{ID: fmt.Sprintf("job%d", i), Reference: ref, URL: "u"})
		require.NoError(t, err)
	}

	ids := func(jobs []*Job) []string {
		var out []string
		for _, j := range jobs {
			out = append(out, j.ID)
		}
		return out
	}

	assert.Equal(t, []string{"job0", "job1", "job2"}, ids(s.List(nil, "")))
	assert.Equal(t, []string{"job0", "job2"}, ids(s.List(nil, "a")))
	assert.Equal(t, []string{"job1", "job2"}, ids(s.List([]string{"job2", "job1"}, "")))
	assert.Empty(t, s.List([]string{"job1"}, "a"))
}

func TestQueueFull(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g, QueueSize: 1})
	defer s.Close()

	_, err := s.Add(&Config{ID: "a", URL: "u"})
	require.NoError(t, err)
	g.waitStarted(t, "a")

	_, err = s.Add(&Config{ID: "b", URL: "u"})
	require.NoError(t, err)
	_, err = s.Add(&Config{ID: "c", URL: "u"})
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = s.Get("c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClose(t *testing.T) {
	g := newGateRunner()
	s := NewStore(Options{Runner: g})

	job, _ := s.Add(&Config{ID: "job", URL: "u"})
	g.waitStarted(t, "job")

	s.Close()
	assert.Equal(t, StateCancelled, job.Status().State)

	_, err := s.Add(&Config{URL: "u"})
	assert.ErrorIs(t, err, ErrClosed)
	s.Close()
}

type fakeStream struct{ duration time.Duration }

func (f *fakeStream) Info() capture.VideoInfo {
	return capture.VideoInfo{Width: 16, Height: 9, FPS: 25, Duration: f.duration}
}

func (f *fakeStream) FrameAt(ctx context.Context, second int) (*capture.Frame, error) {
	if time.Duration(second)*time.Second >= f.duration {
		return nil, capture.ErrNoFrame
	}
	return &capture.Frame{Second: second, Image: image.NewRGBA(image.Rect(0, 0, 16, 9))}, nil
}

func (f *fakeStream) Close() error { return nil }

type fakeDecoder struct{}

func (fakeDecoder) Open(ctx context.Context, src capture.Source) (capture.Stream, error) {
	return &fakeStream{duration: 3 * time.Second}, nil
}

func TestCaptureRunner(t *testing.T) {
	dir := t.TempDir()
	runner := &CaptureRunner{
		Resolver: capture.ResolverFunc(func(ctx context.Context, url string) (capture.Source, error) {
			return capture.Source{PageURL: url, StreamURL: url}, nil
		}),
		Decoder: fakeDecoder{},
		Output:  config.OutputConfig{Kind: "dir", Dir: dir, Pattern: "frame_%04d.jpg", Quality: 80},
	}

	s := NewStore(Options{Runner: runner})
	defer s.Close()

	job, err := s.Add(&Config{ID: "abc", URL: "https://youtu.be/abc"})
	require.NoError(t, err)
	waitState(t, job, StateFinished)

	report, err := job.Report()
	require.NoError(t, err)
	assert.True(t, report.StoppedEarly)
	assert.Equal(t, 3, report.StoppedAt)
	assert.Equal(t, 3, job.Status().Frames)

	entries, err := os.ReadDir(filepath.Join(dir, "abc"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.FileExists(t, filepath.Join(dir, "abc", "frame_0002.jpg"))
}
