// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
	"github.com/ZSC714725/framegrab/internal/ffmpeg"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/mpeg"
	"github.com/ZSC714725/framegrab/internal/resolve"
	"github.com/ZSC714725/framegrab/internal/sink"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configPath string
	url        string
	out        string
	start      int
	end        int
	endSet     bool
	resolver   string
	decoder    string
	quality    int
	ffmpeg     string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("framegrab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: framegrab [flags] <youtube-url>")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&opts.url, "url", "", "Video URL (or pass it as the only argument)")
	fs.StringVar(&opts.out, "out", "", "Output directory (overrides config)")
	fs.IntVar(&opts.start, "start", 0, "First second to capture")
	fs.IntVar(&opts.end, "end", 0, "Last second to capture (default: end of the video)")
	fs.StringVar(&opts.resolver, "resolver", "", "URL resolver: ytdlp, native or direct (overrides config)")
	fs.StringVar(&opts.decoder, "decoder", "", "Decoder: ffmpeg or mpeg (overrides config)")
	fs.IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100 (overrides config)")
	fs.StringVar(&opts.ffmpeg, "ffmpeg", "", "FFmpeg binary path (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "end" {
			opts.endSet = true
		}
	})
	if opts.endSet && opts.end < 0 {
		return nil, fmt.Errorf("-end must not be negative, got %d", opts.end)
	}

	switch {
	case fs.NArg() > 1:
		return nil, fmt.Errorf("expected one url, got %d arguments", fs.NArg())
	case fs.NArg() == 1 && opts.url != "":
		return nil, errors.New("url given both as -url and as argument")
	case fs.NArg() == 1:
		opts.url = fs.Arg(0)
	}
	if opts.url == "" {
		return nil, errors.New("a video url is required")
	}
	return opts, nil
}

// apply writes flag overrides over the loaded config
func (o *options) apply(cfg *config.Config) {
	if o.out != "" {
		cfg.Output.Kind = sink.KindDir
		cfg.Output.Dir = o.out
	}
	if o.resolver != "" {
		cfg.Resolver.Kind = o.resolver
	}
	if o.decoder != "" {
		cfg.Decoder.Kind = o.decoder
	}
	if o.quality != 0 {
		cfg.Output.Quality = o.quality
	}
	if o.ffmpeg != "" {
		cfg.FFmpeg.Path = o.ffmpeg
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

func (o *options) request() capture.Request {
	req := capture.Request{URL: o.url, Start: o.start}
	if o.endSet {
		end := o.end
		req.End = &end
	}
	return req
}

func newDecoder(cfg *config.Config, log logger.Logger) (capture.Decoder, error) {
	switch cfg.Decoder.Kind {
	case "mpeg":
		return mpeg.New(nil), nil
	default:
		ff, err := ffmpeg.New(ffmpeg.Config{
			Binary:      cfg.FFmpeg.Path,
			ProbeBinary: cfg.FFmpeg.ProbePath,
			HWAccel:     cfg.FFmpeg.HWAccel,
			Timeout:     cfg.FFmpeg.Timeout,
			MaxLogLines: cfg.FFmpeg.MaxLogLines,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return ff, nil
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "framegrab: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "framegrab: load config: %v\n", err)
		return exitUsage
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "framegrab: %v\n", err)
		return exitUsage
	}

	log, err := logger.New("framegrab", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(stderr, "framegrab: %v\n", err)
		return exitUsage
	}
	defer log.Sync()

	resolver, err := resolve.New(resolve.Config{
		Kind:      cfg.Resolver.Kind,
		YtdlpPath: cfg.Resolver.YtdlpPath,
		Format:    cfg.Resolver.Format,
		Timeout:   cfg.Resolver.Timeout,
		Allow:     cfg.Resolver.Allow,
		Block:     cfg.Resolver.Block,
		Logger:    log,
	})
	if err != nil {
		log.Error("resolver init: %v", err)
		return exitFailure
	}

	decoder, err := newDecoder(cfg, log)
	if err != nil {
		log.Error("decoder init: %v", err)
		return exitFailure
	}

	out, err := sink.New(ctx, cfg.Output, "")
	if err != nil {
		log.Error("output init: %v", err)
		return exitFailure
	}
	defer out.Close()

	report, err := capture.New(resolver, decoder, log).Run(ctx, opts.request(), out, nil)
	if err != nil {
		log.Error("capture failed after %d frame(s): %v", len(report.Written), err)
		return exitFailure
	}
	if report.StoppedEarly {
		log.Info("stopped at %ds, range was %d-%d", report.StoppedAt, report.Start, report.End)
	}
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
