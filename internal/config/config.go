// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "FRAMEGRAB_"

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Resolver ResolverConfig `yaml:"resolver" envPrefix:"RESOLVER_"`
	Decoder  DecoderConfig  `yaml:"decoder" envPrefix:"DECODER_"`
	Output   OutputConfig   `yaml:"output" envPrefix:"OUTPUT_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind        string `yaml:"bind" env:"BIND"`
	QueueSize   int    `yaml:"queue_size" env:"QUEUE_SIZE"`
	MaxLogLines int    `yaml:"max_log_lines" env:"MAX_LOG_LINES"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path        string        `yaml:"path" env:"PATH"`
	ProbePath   string        `yaml:"probe_path" env:"PROBE_PATH"`
	HWAccel     string        `yaml:"hwaccel" env:"HWACCEL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxLogLines int           `yaml:"max_log_lines" env:"MAX_LOG_LINES"`
}

// ResolverConfig URL 解析配置
type ResolverConfig struct {
	Kind      string        `yaml:"kind" env:"KIND"`
	YtdlpPath string        `yaml:"ytdlp_path" env:"YTDLP_PATH"`
	Format    string        `yaml:"format" env:"FORMAT"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Allow     []string      `yaml:"allow" env:"ALLOW" envSeparator:","`
	Block     []string      `yaml:"block" env:"BLOCK" envSeparator:","`
}

// DecoderConfig 解码配置
type DecoderConfig struct {
	Kind string `yaml:"kind" env:"KIND"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Kind    string      `yaml:"kind" env:"KIND"`
	Dir     string      `yaml:"dir" env:"DIR"`
	Pattern string      `yaml:"pattern" env:"PATTERN"`
	Quality int         `yaml:"quality" env:"QUALITY"`
	MinIO   MinIOConfig `yaml:"minio" envPrefix:"MINIO_"`
	GCS     GCSConfig   `yaml:"gcs" envPrefix:"GCS_"`
}

// MinIOConfig S3 兼容存储
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
}

// GCSConfig Google Cloud Storage
type GCSConfig struct {
	Bucket string `yaml:"bucket" env:"BUCKET"`
	Prefix string `yaml:"prefix" env:"PREFIX"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080", QueueSize: 16, MaxLogLines: 200},
		FFmpeg: FFmpegConfig{
			Path:        "ffmpeg",
			ProbePath:   "ffprobe",
			Timeout:     2 * time.Minute,
			MaxLogLines: 100,
		},
		Resolver: ResolverConfig{
			Kind:      "ytdlp",
			YtdlpPath: "yt-dlp",
			Format:    "best[ext=mp4]",
			Timeout:   time.Minute,
		},
		Decoder: DecoderConfig{Kind: "ffmpeg"},
		Output: OutputConfig{
			Kind:    "dir",
			Dir:     "frames",
			Pattern: "frame_%04d.jpg",
			Quality: 90,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load 从 YAML 文件加载配置，然后应用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.QueueSize <= 0 {
		c.Server.QueueSize = def.Server.QueueSize
	}
	if c.Server.MaxLogLines <= 0 {
		c.Server.MaxLogLines = def.Server.MaxLogLines
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = def.FFmpeg.ProbePath
	}
	if c.FFmpeg.MaxLogLines <= 0 {
		c.FFmpeg.MaxLogLines = def.FFmpeg.MaxLogLines
	}
	if c.Resolver.Kind == "" {
		c.Resolver.Kind = def.Resolver.Kind
	}
	if c.Resolver.YtdlpPath == "" {
		c.Resolver.YtdlpPath = def.Resolver.YtdlpPath
	}
	if c.Resolver.Format == "" {
		c.Resolver.Format = def.Resolver.Format
	}
	if c.Decoder.Kind == "" {
		c.Decoder.Kind = def.Decoder.Kind
	}
	if c.Output.Kind == "" {
		c.Output.Kind = def.Output.Kind
	}
	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Output.Pattern == "" {
		c.Output.Pattern = def.Output.Pattern
	}
	if c.Output.Quality == 0 {
		c.Output.Quality = def.Output.Quality
	}
}

// Validate checks values that can't be defaulted.
func (c *Config) Validate() error {
	var errs []error

	switch c.Resolver.Kind {
	case "ytdlp", "native", "direct":
	default:
		errs = append(errs, fmt.Errorf("resolver.kind: unknown resolver %q", c.Resolver.Kind))
	}
	switch c.Decoder.Kind {
	case "ffmpeg", "mpeg":
	default:
		errs = append(errs, fmt.Errorf("decoder.kind: unknown decoder %q", c.Decoder.Kind))
	}
	switch c.Output.Kind {
	case "dir":
	case "minio":
		if c.Output.MinIO.Endpoint == "" || c.Output.MinIO.Bucket == "" {
			errs = append(errs, errors.New("output.minio: endpoint and bucket are required"))
		}
	case "gcs":
		if c.Output.GCS.Bucket == "" {
			errs = append(errs, errors.New("output.gcs: bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("output.kind: unknown output %q", c.Output.Kind))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, fmt.Errorf("output.quality: %d not in 1..100", c.Output.Quality))
	}
	if c.FFmpeg.Timeout < 0 || c.Resolver.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	return errors.Join(errs...)
}
