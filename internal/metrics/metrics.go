// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package metrics

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/process"
)

// Capture results
const (
	ResultFinished     = "finished"
	ResultStoppedEarly = "stopped_early"
	ResultFailed       = "failed"
	ResultCancelled    = "cancelled"
)

var (
	FramesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_frames_written_total",
		Help: "Total number of frames written, by sink",
	}, []string{"sink"})

	Captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_captures_total",
		Help: "Total number of capture runs, by result",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framegrab_stage_duration_seconds",
		Help:    "Duration of capture stages",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framegrab_active_jobs",
		Help: "Number of capture jobs currently running",
	})

	ProcessRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_process_runs_total",
		Help: "Total number of helper process runs, by binary and final state",
	}, []string{"binary", "state"})

	ProcessPeakMemory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framegrab_process_peak_memory_bytes",
		Help: "Peak resident memory of the last helper process run, by binary",
	}, []string{"binary"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer is a capture.Observer feeding the collectors above
type Observer struct {
	Sink string
}

func (o Observer) StageDone(stage string, elapsed time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (o Observer) FrameWritten(int, string) {
	FramesWritten.WithLabelValues(o.Sink).Inc()
}

// Result classifies the outcome of a capture run.
func Result(report *capture.Report, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return ResultCancelled
	case err != nil:
		return ResultFailed
	case report != nil && report.StoppedEarly:
		return ResultStoppedEarly
	}
	return ResultFinished
}

// ObserveCapture counts a finished run and returns its result label.
func ObserveCapture(report *capture.Report, err error) string {
	result := Result(report, err)
	Captures.WithLabelValues(result).Inc()
	return result
}

// ObserveProcess records one helper process exit.
func ObserveProcess(binary string, status process.Status) {
	name := filepath.Base(binary)
	ProcessRuns.WithLabelValues(name, status.State).Inc()
	if status.Memory.Peak > 0 {
		ProcessPeakMemory.WithLabelValues(name).Set(float64(status.Memory.Peak))
	}
}
