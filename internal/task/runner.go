// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import (
	"context"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/metrics"
	"github.com/ZSC714725/framegrab/internal/sink"
)

// CaptureRunner writes each job into its own sink location, named after
// the job ID, and records metrics.
type CaptureRunner struct {
	Resolver capture.Resolver
	Decoder  capture.Decoder
	Output   config.OutputConfig
}

func (r *CaptureRunner) Run(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	out, err := sink.New(ctx, r.Output, id)
	if err != nil {
		metrics.ObserveCapture(nil, err)
		return nil, err
	}
	defer out.Close()

	observers := capture.Observers{metrics.Observer{Sink: out.Kind()}}
	if obs != nil {
		observers = append(observers, obs)
	}

	report, err := capture.New(r.Resolver, r.Decoder, log).Run(ctx, req, out, observers)
	result := metrics.ObserveCapture(report, err)
	log.Debug("capture result: %s", result)
	return report, err
}
