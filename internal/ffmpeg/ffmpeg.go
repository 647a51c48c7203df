// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg_go "github.com/u2takey/ffmpeg-go"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/parse"
	"github.com/ZSC714725/framegrab/internal/ffmpeg/skills"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/process"
)

// FFmpeg manages the ffmpeg and ffprobe binaries and their skills
type FFmpeg interface {
	capture.Decoder

	// Probe reads stream properties with ffprobe.
	Probe(ctx context.Context, url string) (capture.VideoInfo, error)
	// Grab decodes the first frame at or after offset.
	Grab(ctx context.Context, url string, offset time.Duration) (image.Image, error)

	Skills() skills.Skills
	ReloadSkills() error
}

// Config for FFmpeg
type Config struct {
	Binary      string
	ProbeBinary string
	HWAccel     string
	// Timeout bounds a single probe or grab. Zero means no limit.
	Timeout     time.Duration
	MaxLogLines int
	Logger      logger.Logger
	// OnExit is called after every ffmpeg/ffprobe run.
	OnExit func(binary string, status process.Status)
}

// Error is returned when ffmpeg or ffprobe fails. Log holds the tail of
// its stderr.
type Error struct {
	Binary    string
	Args      []string
	Log       []string
	LastError string
	Err       error
}

func (e *Error) Error() string {
	msg := e.LastError
	if msg == "" && len(e.Log) > 0 {
		msg = e.Log[len(e.Log)-1]
	}
	// process.ExitError already ends with the last stderr line
	if msg == "" || strings.HasSuffix(e.Err.Error(), msg) {
		return fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, msg)
}

func (e *Error) Unwrap() error { return e.Err }

type ffmpeg struct {
	binary      string
	probeBinary string
	hwaccel     string
	timeout     time.Duration
	logLines    int
	logger      logger.Logger
	onExit      func(string, process.Status)

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// New creates FFmpeg
func New(config Config) (FFmpeg, error) {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.ProbeBinary == "" {
		config.ProbeBinary = "ffprobe"
	}

	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}
	probeBinary, err := exec.LookPath(config.ProbeBinary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffprobe binary: %w", err)
	}

	f := &ffmpeg{
		binary:      binary,
		probeBinary: probeBinary,
		hwaccel:     config.HWAccel,
		timeout:     config.Timeout,
		logLines:    config.MaxLogLines,
		logger:      config.Logger,
		onExit:      config.OnExit,
	}
	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.logger == nil {
		f.logger = logger.NewNop()
	}

	s, err := skills.New(f.binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}
	if err := checkSkills(s, f.hwaccel); err != nil {
		return nil, err
	}
	f.skills = s

	f.logger.Debug("using ffmpeg %s at %s", s.FFmpeg.Version, f.binary)
	return f, nil
}

// checkSkills verifies ffmpeg can do what a grab needs.
func checkSkills(s skills.Skills, hwaccel string) error {
	if !s.HasEncoder("png") {
		return errors.New("ffmpeg has no png encoder")
	}
	for _, proto := range []string{"file", "https"} {
		if !s.HasInputProtocol(proto) {
			return fmt.Errorf("ffmpeg can't read from %s", proto)
		}
	}
	if hwaccel != "" && !s.HasHWAccel(hwaccel) {
		return fmt.Errorf("unsupported hwaccel '%s'", hwaccel)
	}
	return nil
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}

// GrabArgs builds the ffmpeg arguments that write the frame at offset to
// stdout as a single PNG.
func GrabArgs(url string, offset time.Duration, hwaccel string) []string {
	input := ffmpeg_go.KwArgs{"ss": formatSeconds(offset)}
	if hwaccel != "" && hwaccel != "none" {
		input["hwaccel"] = hwaccel
	}

	stream := ffmpeg_go.Input(url, input).
		Output("pipe:1", ffmpeg_go.KwArgs{
			"frames:v": 1,
			"f":        "image2pipe",
			"c:v":      "png",
		})

	// global options must come before the first input
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	return append(args, stream.GetArgs()...)
}

// ProbeArgs builds the ffprobe arguments used by Probe.
func ProbeArgs(url string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		url,
	}
}

func (f *ffmpeg) Grab(ctx context.Context, url string, offset time.Duration) (image.Image, error) {
	var stdout bytes.Buffer
	if err := f.run(ctx, f.binary, GrabArgs(url, offset, f.hwaccel), &stdout); err != nil {
		return nil, err
	}
	if stdout.Len() == 0 {
		return nil, capture.ErrNoFrame
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %s: %w", offset, err)
	}
	return img, nil
}

func (f *ffmpeg) Probe(ctx context.Context, url string) (capture.VideoInfo, error) {
	var stdout bytes.Buffer
	if err := f.run(ctx, f.probeBinary, ProbeArgs(url), &stdout); err != nil {
		return capture.VideoInfo{}, err
	}
	return parseProbe(stdout.Bytes())
}

// run executes binary once. stderr is collected by a parser so failures
// carry the relevant log lines.
func (f *ffmpeg) run(ctx context.Context, binary string, args []string, stdout *bytes.Buffer) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parser := parse.New(parse.Config{LogLines: f.logLines})
	proc, err := process.New(process.Config{
		Binary: binary,
		Args:   args,
		Stdout: stdout,
		Parser: parser,
		Logger: f.logger,
	})
	if err != nil {
		return err
	}

	err = proc.Run(ctx)
	if f.onExit != nil {
		f.onExit(binary, proc.Status())
	}
	if err == nil {
		return nil
	}

	f.logger.Debug("%s %s failed: %v", binary, strings.Join(args, " "), err)
	return &Error{
		Binary:    binary,
		Args:      args,
		Log:       parser.Tail(10),
		LastError: parser.LastError(),
		Err:       err,
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
