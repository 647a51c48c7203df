// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/skills"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// blockingRunner writes the requested number of frames and then waits
// for cancellation when hold is set.
type blockingRunner struct {
	frames int
	hold   bool
}

func (r blockingRunner) Run(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error) {
	report := &capture.Report{
		Source: capture.Source{PageURL: req.URL, StreamURL: "https://cdn/v.mp4", ID: "abc"},
		Info:   capture.VideoInfo{Width: 640, Height: 360, FPS: 25, Duration: 3 * time.Second},
		Start:  req.Start,
		End:    req.Start + r.frames,
	}
	for i := 0; i < r.frames; i++ {
		name := fmt.Sprintf("frame_%04d.jpg", req.Start+i)
		obs.FrameWritten(req.Start+i, name)
		log.Info("saved %s", name)
		report.Written = append(report.Written, name)
	}
	if r.hold {
		<-ctx.Done()
		return report, ctx.Err()
	}
	report.StoppedEarly = true
	report.StoppedAt = req.Start + r.frames
	return report, nil
}

type fakeSkills struct {
	reloadErr error
	reloads   int
}

func (f *fakeSkills) Skills() skills.Skills {
	s := skills.Skills{}
	s.FFmpeg.Version = "6.1"
	s.Codecs.Video = []skills.Codec{{Id: "h264", Name: "H.264", Decoders: []string{"h264"}}}
	s.Protocols.Input = []skills.Protocol{{Id: "https", Name: "https"}}
	return s
}

func (f *fakeSkills) ReloadSkills() error {
	f.reloads++
	return f.reloadErr
}

func newTestRouter(t *testing.T, runner task.Runner, sk SkillsSource) (*gin.Engine, task.Store) {
	t.Helper()
	store := task.NewStore(task.Options{Runner: runner})
	t.Cleanup(store.Close)
	return NewRouter(NewHandler(store, sk)), store
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func waitJob(t *testing.T, r http.Handler, id, state string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/v1/jobs/"+id+"?filter=state", "")
		if w.Code != http.StatusOK {
			return false
		}
		job = decode[Job](t, w)
		return job.State.State == state
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestAddAndGetJob(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{frames: 2}, nil)

	w := do(r, http.MethodPost, "/api/v1/jobs", `{"id":"j1","reference":"demo","url":"https://youtu.be/abc","start":5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[Job](t, w)
	assert.Equal(t, "j1", created.ID)
	require.NotNil(t, created.Config)
	assert.Equal(t, 5, created.Config.Start)
	assert.Nil(t, created.Report)

	job := waitJob(t, r, "j1", "finished")
	assert.Equal(t, 2, job.State.Frames)
	assert.Equal(t, "frame_0006.jpg", job.State.LastFrame)
	assert.Nil(t, job.Config)

	w = do(r, http.MethodGet, "/api/v1/jobs/j1/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[JobReport](t, w)
	assert.Equal(t, []string{"frame_0005.jpg", "frame_0006.jpg"}, report.Written)
	assert.True(t, report.StoppedEarly)
	assert.Equal(t, 7, report.StoppedAt)
	require.NotNil(t, report.Video)
	assert.Equal(t, 640, report.Video.Width)
	assert.Equal(t, 3.0, report.Video.Duration)
	require.Len(t, report.Log, 2)
	assert.Equal(t, "INFO saved frame_0005.jpg", report.Log[0][1])
}

func TestAddJobErrors(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{}, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"url":`, http.StatusBadRequest},
		{"missing url", `{"start":1}`, http.StatusBadRequest},
		{"blank url", `{"url":"  "}`, http.StatusBadRequest},
		{"bad range", `{"url":"https://youtu.be/x","start":9,"end":3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}

	w := do(r, http.MethodPost, "/api/v1/jobs", `{"id":"dup","url":"https://youtu.be/x"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodPost, "/api/v1/jobs", `{"id":"dup","url":"https://youtu.be/x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListJobs(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{}, nil)

	for i, ref := range []string{"a", "b", "a"} {
		w := do(r, http.MethodPost, "/api/v1/jobs", fmt.Sprintf(`{"id":"job%d","reference":"%s","url":"u"}`, i, ref))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	ids := func(path string) []string {
		w := do(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		var out []string
		for _, j := range decode[[]Job](t, w) {
			out = append(out, j.ID)
		}
		return out
	}

	assert.Equal(t, []string{"job0", "job1", "job2"}, ids("/api/v1/jobs"))
	assert.Equal(t, []string{"job0", "job2"}, ids("/api/v1/jobs?reference=a"))
	assert.Equal(t, []string{"job0", "job2"}, ids("/api/v1/jobs?id=job2,%20job0"))

	w := do(r, http.MethodGet, "/api/v1/jobs?filter=config", "")
	jobs := decode[[]Job](t, w)
	require.Len(t, jobs, 3)
	assert.NotNil(t, jobs[0].Config)
	assert.Nil(t, jobs[0].State)
	assert.Nil(t, jobs[0].Report)
}

func TestCommand(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{frames: 1, hold: true}, nil)

	w := do(r, http.MethodPost, "/api/v1/jobs", `{"id":"j","url":"u"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	waitJob(t, r, "j", "running")

	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"pause"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"cancel"}`)
	require.Equal(t, http.StatusOK, w.Code)
	waitJob(t, r, "j", "cancelled")

	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"cancel"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPut, "/api/v1/jobs/j/command", `{"command":"restart"}`)
	require.Equal(t, http.StatusOK, w.Code)
	job := waitJob(t, r, "j", "running")
	assert.Equal(t, 2, job.State.Runs)

	w = do(r, http.MethodPut, "/api/v1/jobs/missing/command", `{"command":"cancel"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteJob(t *testing.T) {
	r, store := newTestRouter(t, blockingRunner{}, nil)

	_, err := store.Add(&task.Config{ID: "j", URL: "u"})
	require.NoError(t, err)

	w := do(r, http.MethodDelete, "/api/v1/jobs/j", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/jobs/j", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, "/api/v1/jobs/j", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSkills(t *testing.T) {
	sk := &fakeSkills{}
	r, _ := newTestRouter(t, blockingRunner{}, sk)

	w := do(r, http.MethodGet, "/api/v1/skills", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SkillsResponse](t, w)
	assert.Equal(t, "6.1", resp.FFmpeg.Version)
	require.Len(t, resp.Codecs.Video, 1)
	assert.Equal(t, "h264", resp.Codecs.Video[0].ID)
	assert.Equal(t, []SkillsItem{{ID: "https", Name: "https"}}, resp.Protocols.Input)

	w = do(r, http.MethodPost, "/api/v1/skills/reload", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, sk.reloads)

	sk.reloadErr = errors.New("ffmpeg vanished")
	w = do(r, http.MethodPost, "/api/v1/skills/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Detail, "vanished")
}

func TestSkillsWithoutFFmpeg(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{}, nil)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/skills", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/skills/reload", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, blockingRunner{}, nil)

	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "framegrab_active_jobs")
}
