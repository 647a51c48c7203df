// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/parse"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/process"
)

// State of a job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsActive reports whether the job is waiting or running.
func (s State) IsActive() bool {
	return s == StateQueued || s == StateRunning
}

// Job is a capture job
type Job struct {
	ID        string
	Reference string
	Config    *Config
	CreatedAt int64

	seq    uint64
	parser parse.Parser

	mu         sync.RWMutex
	state      State
	updatedAt  int64
	runs       int
	written    []string
	report     *capture.Report
	err        error
	startedAt  time.Time
	finishedAt time.Time
	cancel     context.CancelFunc
	cancelled  bool
	restart    bool
}

// Status is a snapshot of a job
type Status struct {
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	Frames     int       `json:"frames"`
	LastFrame  string    `json:"last_frame,omitempty"`
	Runs       int       `json:"runs"`
	UpdatedAt  int64     `json:"updated_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func newJob(config *Config, seq uint64, logLines int) *Job {
	now := time.Now().Unix()
	return &Job{
		ID:        config.ID,
		Reference: config.Reference,
		Config:    config,
		CreatedAt: now,
		seq:       seq,
		parser:    parse.New(parse.Config{LogLines: logLines}),
		state:     StateQueued,
		updatedAt: now,
	}
}

// Status returns the current state
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Status{
		State:      j.state,
		Frames:     len(j.written),
		Runs:       j.runs,
		UpdatedAt:  j.updatedAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	if n := len(j.written); n > 0 {
		s.LastFrame = j.written[n-1]
	}
	return s
}

// Report returns the report of the last finished run, or nil
func (j *Job) Report() (*capture.Report, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.report, j.err
}

// Written returns the frames written by the current or last run
func (j *Job) Written() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]string(nil), j.written...)
}

// Log returns the job log lines
func (j *Job) Log() []process.Line {
	return j.parser.Log()
}

func (j *Job) touch() {
	j.updatedAt = time.Now().Unix()
}

// begin moves a queued job to running. It returns false when the job was
// cancelled while waiting.
func (j *Job) begin(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state != StateQueued {
		return false
	}
	j.state = StateRunning
	j.runs++
	j.written = nil
	j.report = nil
	j.err = nil
	j.cancel = cancel
	j.cancelled = false
	j.startedAt = time.Now()
	j.finishedAt = time.Time{}
	j.touch()
	j.parser.ResetLog()
	return true
}

// finish records the outcome of a run and reports whether the job should
// be queued again.
func (j *Job) finish(report *capture.Report, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cancel = nil
	j.report = report
	j.err = err
	j.finishedAt = time.Now()
	j.touch()

	switch {
	case err != nil && (j.cancelled || errors.Is(err, context.Canceled)):
		j.state = StateCancelled
	case err != nil:
		j.state = StateFailed
	default:
		j.state = StateFinished
	}

	if j.restart {
		j.restart = false
		j.state = StateQueued
		return true
	}
	return false
}

// requestCancel stops a queued or running job.
func (j *Job) requestCancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case StateQueued:
		j.state = StateCancelled
		j.finishedAt = time.Now()
		j.touch()
	case StateRunning:
		j.cancelled = true
		j.restart = false
		if j.cancel != nil {
			j.cancel()
		}
	default:
		return ErrNotActive
	}
	return nil
}

// requestRestart reports whether the caller must enqueue the job. A
// running job is cancelled and re-queued by the worker once it stops.
func (j *Job) requestRestart() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case StateQueued:
		return false
	case StateRunning:
		j.cancelled = true
		j.restart = true
		if j.cancel != nil {
			j.cancel()
		}
		return false
	}
	j.state = StateQueued
	j.touch()
	return true
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFailed
	j.err = err
	j.finishedAt = time.Now()
	j.touch()
}

// jobObserver keeps the list of written frames on the job.
type jobObserver struct {
	job *Job
}

func (o *jobObserver) StageDone(string, time.Duration) {}

func (o *jobObserver) FrameWritten(second int, location string) {
	o.job.mu.Lock()
	o.job.written = append(o.job.written, location)
	o.job.touch()
	o.job.mu.Unlock()
}

// jobLogger copies every message into the job log before passing it on.
type jobLogger struct {
	job  *Job
	next logger.Logger
}

func newJobLogger(job *Job, next logger.Logger) logger.Logger {
	return &jobLogger{job: job, next: next.With("job", job.ID)}
}

func (l *jobLogger) record(level, format string, args ...interface{}) {
	l.job.parser.Parse(level + " " + fmt.Sprintf(format, args...))
}

func (l *jobLogger) Info(format string, args ...interface{}) {
	l.record("INFO", format, args...)
	l.next.Info(format, args...)
}

func (l *jobLogger) Warn(format string, args ...interface{}) {
	l.record("WARN", format, args...)
	l.next.Warn(format, args...)
}

func (l *jobLogger) Error(format string, args ...interface{}) {
	l.record("ERROR", format, args...)
	l.next.Error(format, args...)
}

func (l *jobLogger) Debug(format string, args ...interface{}) {
	l.next.Debug(format, args...)
}

func (l *jobLogger) With(keysAndValues ...interface{}) logger.Logger {
	return &jobLogger{job: l.job, next: l.next.With(keysAndValues...)}
}

func (l *jobLogger) Sync() error { return l.next.Sync() }
