// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package process

import (
	"sync"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler 采集运行中进程的 CPU 和内存占用
type Sampler interface {
	Start(pid int) error
	Stop()
	// Sample reads current usage and updates the peak.
	Sample() (cpu float64, rss uint64)
	Peak() (rss uint64)
}

// NewNullSampler returns a Sampler that reports nothing
func NewNullSampler() Sampler {
	return nullSampler{}
}

type nullSampler struct{}

func (nullSampler) Start(int) error           { return nil }
func (nullSampler) Stop()                     {}
func (nullSampler) Sample() (float64, uint64) { return 0, 0 }
func (nullSampler) Peak() uint64              { return 0 }

// NewSysSampler 基于 gopsutil 读取 /proc 等系统信息，peak 在 Stop 之后仍保留
func NewSysSampler() Sampler {
	return &sysSampler{}
}

type sysSampler struct {
	mu   sync.Mutex
	proc *psprocess.Process
	peak uint64
}

func (s *sysSampler) Start(pid int) error {
	proc, err := psprocess.NewProcess(int32(pid))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.peak = 0
	s.proc = nil
	if err != nil {
		return err
	}
	s.proc = proc
	return nil
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

func (s *sysSampler) Sample() (cpu float64, rss uint64) {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return 0, 0
	}

	cpu, _ = proc.CPUPercent()
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}

	s.mu.Lock()
	if rss > s.peak {
		s.peak = rss
	}
	s.mu.Unlock()
	return cpu, rss
}

func (s *sysSampler) Peak() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
