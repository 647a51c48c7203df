// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/logger"
)

// Runner executes one capture for a job
type Runner interface {
	Run(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error)

func (f RunnerFunc) Run(ctx context.Context, id string, req capture.Request, log logger.Logger, obs capture.Observer) (*capture.Report, error) {
	return f(ctx, id, req, log, obs)
}

// Validator checks job URLs before they are queued
type Validator interface {
	Validate(url string) error
}

// Store manages jobs in memory. Jobs run one at a time in the order they
// were queued.
type Store interface {
	Add(config *Config) (*Job, error)
	Get(id string) (*Job, error)
	List(ids []string, reference string) []*Job
	Cancel(id string) error
	Restart(id string) error
	Delete(id string) error
	// Close cancels the running job and waits for the worker to exit.
	Close()
}

// Options for NewStore
type Options struct {
	Runner      Runner
	Validator   Validator
	Logger      logger.Logger
	QueueSize   int
	MaxLogLines int
}

type store struct {
	runner    Runner
	validator Validator
	logger    logger.Logger
	logLines  int

	jobs map[string]*Job
	seq  uint64
	mu   sync.RWMutex

	queue   chan string
	closed  bool
	queueMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a job store and starts its worker
func NewStore(opts Options) Store {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.MaxLogLines <= 0 {
		opts.MaxLogLines = 200
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &store{
		runner:    opts.Runner,
		validator: opts.Validator,
		logger:    opts.Logger,
		logLines:  opts.MaxLogLines,
		jobs:      make(map[string]*Job),
		queue:     make(chan string, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *store) Add(config *Config) (*Job, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator.Validate(config.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}

	s.mu.Lock()
	if len(config.ID) == 0 {
		config.ID = shortuuid.New()
	}
	if _, exists := s.jobs[config.ID]; exists {
		s.mu.Unlock()
		return nil, ErrJobExists
	}
	s.seq++
	job := newJob(config, s.seq, s.logLines)
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.enqueue(job.ID); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Info("job %s queued for %s", job.ID, config.URL)
	return job, nil
}

func (s *store) enqueue(id string) error {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (s *store) List(ids []string, reference string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, j := range s.jobs {
		if len(reference) > 0 && j.Reference != reference {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if j.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].seq < out[b].seq })
	return out
}

func (s *store) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := j.requestCancel(); err != nil {
		return err
	}
	s.logger.Info("job %s cancel requested", id)
	return nil
}

func (s *store) Restart(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if !j.requestRestart() {
		return nil
	}
	if err := s.enqueue(id); err != nil {
		j.fail(err)
		return err
	}
	s.logger.Info("job %s queued again", id)
	return nil
}

func (s *store) Delete(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	if err := j.requestCancel(); err != nil && !errors.Is(err, ErrNotActive) {
		return err
	}
	return nil
}

func (s *store) Close() {
	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.queueMu.Unlock()

	s.cancel()
	<-s.done
}

func (s *store) worker() {
	defer close(s.done)

	for id := range s.queue {
		j, err := s.Get(id)
		if err != nil {
			continue
		}
		s.run(j)
	}
}

func (s *store) run(j *Job) {
	if s.ctx.Err() != nil {
		j.requestCancel()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if !j.begin(cancel) {
		return
	}

	log := newJobLogger(j, s.logger)
	report, err := s.runner.Run(ctx, j.ID, j.Config.Request(), log, &jobObserver{job: j})
	if err != nil {
		log.Error("capture failed: %v", err)
	}

	if j.finish(report, err) {
		if err := s.enqueue(j.ID); err != nil {
			j.fail(err)
		}
	}
}
