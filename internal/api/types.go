// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package api

import "time"

// JobRequest for Add
type JobRequest struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	URL       string `json:"url" binding:"required"`
	Start     int    `json:"start"`
	End       *int   `json:"end"`
}

// Job represents a job in API response
type Job struct {
	ID        string     `json:"id"`
	Reference string     `json:"reference"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
	Config    *JobConfig `json:"config,omitempty"`
	State     *JobState  `json:"state,omitempty"`
	Report    *JobReport `json:"report,omitempty"`
}

// JobConfig in API format
type JobConfig struct {
	URL   string `json:"url"`
	Start int    `json:"start"`
	End   *int   `json:"end,omitempty"`
}

// JobState for API
type JobState struct {
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	Frames     int    `json:"frames"`
	LastFrame  string `json:"last_frame,omitempty"`
	Runs       int    `json:"runs"`
	Runtime    int64  `json:"runtime_seconds"`
	StartedAt  int64  `json:"started_at,omitempty"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}

// JobVideo is what the resolver and decoder found
type JobVideo struct {
	PageURL  string  `json:"page_url"`
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title,omitempty"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Duration float64 `json:"duration_seconds"`
}

// JobReport for the last run and its log
type JobReport struct {
	Video        *JobVideo   `json:"video,omitempty"`
	Start        int         `json:"start"`
	End          int         `json:"end"`
	Written      []string    `json:"written"`
	StoppedEarly bool        `json:"stopped_early"`
	StoppedAt    int         `json:"stopped_at"`
	Elapsed      float64     `json:"elapsed_seconds"`
	Error        string      `json:"error,omitempty"`
	Log          [][2]string `json:"log"`
}

// CommandRequest for cancel/restart
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
