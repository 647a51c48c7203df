// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/skills"
	"github.com/ZSC714725/framegrab/internal/task"
)

// SkillsSource reports what the local ffmpeg can do
type SkillsSource interface {
	Skills() skills.Skills
	ReloadSkills() error
}

// Handler holds dependencies
type Handler struct {
	store  task.Store
	skills SkillsSource
}

// NewHandler creates API handler. skills may be nil when ffmpeg is not
// used; the skills routes then answer 404.
func NewHandler(store task.Store, skills SkillsSource) *Handler {
	return &Handler{store: store, skills: skills}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// storeError maps store errors to HTTP codes
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
	case errors.Is(err, task.ErrJobExists):
		errResp(c, http.StatusConflict, "Job exists", err.Error())
	case errors.Is(err, task.ErrNotActive):
		errResp(c, http.StatusConflict, "Job is not active", err.Error())
	case errors.Is(err, task.ErrInvalidURL), errors.Is(err, capture.ErrUnsupportedURL):
		errResp(c, http.StatusBadRequest, "Invalid URL", err.Error())
	case errors.Is(err, task.ErrInvalidConfig), errors.Is(err, capture.ErrInvalidRange):
		errResp(c, http.StatusBadRequest, "Invalid config", err.Error())
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, task.ErrClosed):
		errResp(c, http.StatusServiceUnavailable, "Job queue unavailable", err.Error())
	default:
		errResp(c, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

// AddJob POST /api/v1/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	j, err := h.store.Add(&task.Config{
		ID:        req.ID,
		Reference: req.Reference,
		URL:       req.URL,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, jobToAPI(j, "config,state"))
}

// ListJobs GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	filter := c.DefaultQuery("filter", "")
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	jobs := h.store.List(ids, reference)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j, filter))
	}

	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToAPI(j, c.DefaultQuery("filter", "")))
}

// DeleteJob DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// GetReport GET /api/v1/jobs/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobReport(j))
}

// Command PUT /api/v1/jobs/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "cancel":
		err = h.store.Cancel(id)
	case "restart":
		err = h.store.Restart(id)
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: cancel, restart")
		return
	}

	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	if h.skills == nil {
		errResp(c, http.StatusNotFound, "FFmpeg not in use", "")
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.skills.Skills()))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if h.skills == nil {
		errResp(c, http.StatusNotFound, "FFmpeg not in use", "")
		return
	}
	if err := h.skills.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.skills.Skills()))
}

// Health GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func jobToAPI(j *task.Job, filter string) Job {
	status := j.Status()
	out := Job{
		ID:        j.ID,
		Reference: j.Reference,
		CreatedAt: j.CreatedAt,
		UpdatedAt: status.UpdatedAt,
	}

	includeAll := filter == ""
	if includeAll || strings.Contains(filter, "config") {
		out.Config = &JobConfig{URL: j.Config.URL, Start: j.Config.Start, End: j.Config.End}
	}

	if includeAll || strings.Contains(filter, "state") {
		out.State = &JobState{
			State:      string(status.State),
			Error:      status.Error,
			Frames:     status.Frames,
			LastFrame:  status.LastFrame,
			Runs:       status.Runs,
			StartedAt:  unixOrZero(status.StartedAt),
			FinishedAt: unixOrZero(status.FinishedAt),
		}
		switch {
		case status.StartedAt.IsZero():
		case status.FinishedAt.IsZero():
			out.State.Runtime = int64(time.Since(status.StartedAt).Seconds())
		default:
			out.State.Runtime = int64(status.FinishedAt.Sub(status.StartedAt).Seconds())
		}
	}

	if includeAll || strings.Contains(filter, "report") {
		report := jobReport(j)
		out.Report = &report
	}

	return out
}

func jobReport(j *task.Job) JobReport {
	out := JobReport{Written: j.Written(), StoppedAt: -1}

	report, err := j.Report()
	if err != nil {
		out.Error = err.Error()
	}
	if report != nil {
		out.Start = report.Start
		out.End = report.End
		out.StoppedEarly = report.StoppedEarly
		out.StoppedAt = report.StoppedAt
		out.Elapsed = report.Elapsed.Seconds()
		if report.Source.StreamURL != "" {
			out.Video = &JobVideo{
				PageURL:  report.Source.PageURL,
				ID:       report.Source.ID,
				Title:    report.Source.Title,
				Width:    report.Info.Width,
				Height:   report.Info.Height,
				FPS:      report.Info.FPS,
				Duration: report.Info.Duration.Seconds(),
			}
		}
	}
	if out.Written == nil {
		out.Written = []string{}
	}

	lines := j.Log()
	out.Log = make([][2]string, len(lines))
	for i, line := range lines {
		out.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}

	return out
}
