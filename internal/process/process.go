// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具
//
// Package process wraps exec.Cmd for running one-shot helper binaries
// (ffmpeg, ffprobe, yt-dlp) under a context.

package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// DefaultKillDelay is how long a cancelled process gets between
// os.Interrupt and SIGKILL.
const DefaultKillDelay = 5 * time.Second

// Process represents a single run of a binary
type Process interface {
	// Run starts the binary and blocks until it exits or ctx is done.
	Run(ctx context.Context) error
	Status() Status
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Env           []string
	Stdout        io.Writer
	Parser        Parser
	Sampler       Sampler
	KillDelay     time.Duration
	OnStateChange func(from, to string)
	Logger        Logger
}

// Status of a process
type Status struct {
	State    string
	States   States
	Duration time.Duration
	Time     time.Time
	ExitCode int
	CPU      struct {
		Current float64
	}
	Memory struct {
		Current uint64
		Peak    uint64
	}
}

// States cumulative counts
type States struct {
	Starting uint64
	Running  uint64
	Finished uint64
	Failed   uint64
	Killed   uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// ExitError is returned by Run when the binary exits unsuccessfully.
type ExitError struct {
	Binary   string
	Code     int
	Signaled bool
	LastLine string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Signaled {
		return fmt.Sprintf("%s killed: %v", e.Binary, e.Err)
	}
	if e.LastLine != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.Code, e.LastLine)
	}
	return fmt.Sprintf("%s exited with code %d", e.Binary, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ErrAlreadyRunning is returned when Run is called on a running process.
var ErrAlreadyRunning = errors.New("process already running")

type stateType string

const (
	stateIdle     stateType = "idle"
	stateStarting stateType = "starting"
	stateRunning  stateType = "running"
	stateFinished stateType = "finished"
	stateFailed   stateType = "failed"
	stateKilled   stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning
}

type process struct {
	binary    string
	args      []string
	env       []string
	stdout    io.Writer
	parser    Parser
	usage     Sampler
	killDelay time.Duration
	logger    Logger
	lastLine  string

	state struct {
		state    stateType
		time     time.Time
		states   States
		exitCode int
		lock     sync.Mutex
	}
	onStateChange func(from, to string)
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:        config.Binary,
		args:          config.Args,
		env:           config.Env,
		stdout:        config.Stdout,
		parser:        config.Parser,
		usage:         config.Sampler,
		killDelay:     config.KillDelay,
		logger:        config.Logger,
		onStateChange: config.OnStateChange,
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.usage == nil {
		p.usage = NewSysSampler()
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}
	if p.stdout == nil {
		p.stdout = io.Discard
	}
	if p.killDelay <= 0 {
		p.killDelay = DefaultKillDelay
	}

	p.state.state = stateIdle
	p.state.time = time.Now()
	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prev := p.state.state
	ok := false

	switch prev {
	case stateIdle, stateFinished, stateFailed, stateKilled:
		ok = state == stateStarting
	case stateStarting:
		ok = state == stateRunning || state == stateFailed
	case stateRunning:
		ok = state == stateFinished || state == stateFailed || state == stateKilled
	default:
		return fmt.Errorf("unhandled state: %s", prev)
	}
	if !ok {
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}

	p.state.state = state
	switch state {
	case stateStarting:
		p.state.states.Starting++
	case stateRunning:
		p.state.states.Running++
	case stateFinished:
		p.state.states.Finished++
	case stateFailed:
		p.state.states.Failed++
	case stateKilled:
		p.state.states.Killed++
	}
	p.state.time = time.Now()

	if p.onStateChange != nil {
		p.onStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	cpu, memory := p.usage.Sample()
	peak := p.usage.Peak()

	p.state.lock.Lock()
	s := Status{
		State:    p.state.state.String(),
		States:   p.state.states,
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
		ExitCode: p.state.exitCode,
	}
	p.state.lock.Unlock()

	s.CPU.Current = cpu
	s.Memory.Current = memory
	s.Memory.Peak = peak
	return s
}

func (p *process) Run(ctx context.Context) error {
	if p.getState().IsRunning() {
		return ErrAlreadyRunning
	}
	if err := p.setState(stateStarting); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, p.binary, p.args...)
	cmd.Env = p.env
	cmd.Stdout = p.stdout
	cmd.WaitDelay = p.killDelay
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	// stderr goes through a pipe we own so Wait, not the reader, decides
	// when the process is gone; WaitDelay then covers orphaned children.
	pr, pw := io.Pipe()
	cmd.Stderr = pw

	p.parser.ResetStats()
	p.parser.ResetLog()

	if err := cmd.Start(); err != nil {
		pw.Close()
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
		return err
	}

	pid := cmd.Process.Pid
	if err := p.usage.Start(pid); err != nil {
		p.logger.Debug("resource sampling unavailable for pid %d: %v", pid, err)
	}
	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, pid)

	readerDone := make(chan struct{})
	go func() {
		p.reader(pr)
		close(readerDone)
	}()

	samplerDone := make(chan struct{})
	go p.sampler(samplerDone)

	err := cmd.Wait()
	close(samplerDone)
	pw.Close()
	<-readerDone

	return p.waiter(ctx, err)
}

func (p *process) sampler(done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.usage.Sample()
		}
	}
}

func (p *process) reader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	for scanner.Scan() {
		line := scanner.Text()
		p.lastLine = line
		p.parser.Parse(line)
	}
	// drain whatever the scanner refused so the writer never blocks
	io.Copy(io.Discard, r)
}

func (p *process) waiter(ctx context.Context, err error) error {
	p.usage.Stop()

	if err == nil {
		p.setExitCode(0)
		p.setState(stateFinished)
		return nil
	}

	exitErr := &ExitError{Binary: p.binary, Code: -1, LastLine: p.lastLine, Err: err}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if status, ok := ee.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			exitErr.Signaled = true
		} else {
			exitErr.Code = ee.ExitCode()
		}
	}

	if ctx.Err() != nil {
		exitErr.Signaled = true
		exitErr.Err = errors.Join(ctx.Err(), err)
	}

	p.setExitCode(exitErr.Code)
	if exitErr.Signaled {
		p.setState(stateKilled)
	} else {
		p.setState(stateFailed)
	}
	return exitErr
}

func (p *process) setExitCode(code int) {
	p.state.lock.Lock()
	p.state.exitCode = code
	p.state.lock.Unlock()
}

// Output runs binary with args and returns its stdout. Stderr lines go to
// parser when one is given.
func Output(ctx context.Context, binary string, args []string, parser Parser) ([]byte, error) {
	var stdout bytes.Buffer
	proc, err := New(Config{
		Binary:  binary,
		Args:    args,
		Stdout:  &stdout,
		Parser:  parser,
		Sampler: NewNullSampler(),
	})
	if err != nil {
		return nil, err
	}
	if err := proc.Run(ctx); err != nil {
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 1 }
func (p *nullParser) ResetStats()              {}
func (p *nullParser) ResetLog()                {}
func (p *nullParser) Log() []Line              { return nil }

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
