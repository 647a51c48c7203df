// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/framegrab/internal/api"
	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
	"github.com/ZSC714725/framegrab/internal/ffmpeg"
	"github.com/ZSC714725/framegrab/internal/logger"
	"github.com/ZSC714725/framegrab/internal/metrics"
	"github.com/ZSC714725/framegrab/internal/mpeg"
	"github.com/ZSC714725/framegrab/internal/resolve"
	"github.com/ZSC714725/framegrab/internal/task"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if cfg.Log.Format == "" || cfg.Log.Format == "console" {
		cfg.Log.Format = "json"
	}

	logger, err := logger.New("framegrab", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("Logger init: %v", err)
	}
	defer logger.Sync()

	resolveConfig := resolve.Config{
		Kind:      cfg.Resolver.Kind,
		YtdlpPath: cfg.Resolver.YtdlpPath,
		Format:    cfg.Resolver.Format,
		Timeout:   cfg.Resolver.Timeout,
		Allow:     cfg.Resolver.Allow,
		Block:     cfg.Resolver.Block,
		Logger:    logger,
	}
	resolver, err := resolve.New(resolveConfig)
	if err != nil {
		log.Fatalf("Resolver init: %v", err)
	}

	validator, err := resolveConfig.Validator()
	if err != nil {
		log.Fatalf("Validator init: %v", err)
	}

	// skills stays nil when the pure-Go decoder is used
	var decoder capture.Decoder
	var skills api.SkillsSource
	switch cfg.Decoder.Kind {
	case "mpeg":
		decoder = mpeg.New(nil)
	default:
		ff, err := ffmpeg.New(ffmpeg.Config{
			Binary:      cfg.FFmpeg.Path,
			ProbeBinary: cfg.FFmpeg.ProbePath,
			HWAccel:     cfg.FFmpeg.HWAccel,
			Timeout:     cfg.FFmpeg.Timeout,
			MaxLogLines: cfg.FFmpeg.MaxLogLines,
			Logger:      logger,
			OnExit:      metrics.ObserveProcess,
		})
		if err != nil {
			log.Fatalf("FFmpeg init: %v", err)
		}
		decoder, skills = ff, ff
	}

	store := task.NewStore(task.Options{
		Runner: &task.CaptureRunner{
			Resolver: resolver,
			Decoder:  decoder,
			Output:   cfg.Output,
		},
		Validator:   validator,
		Logger:      logger,
		QueueSize:   cfg.Server.QueueSize,
		MaxLogLines: cfg.Server.MaxLogLines,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: api.NewRouter(api.NewHandler(store, skills)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("FrameGrab listening on %s (decoder %s, output %s)", cfg.Server.Bind, cfg.Decoder.Kind, cfg.Output.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	store.Close()
}
