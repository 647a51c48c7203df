// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ZSC714725/framegrab/internal/capture"
	"github.com/ZSC714725/framegrab/internal/config"
)

// MinIO uploads frames to an S3 compatible bucket
type MinIO struct {
	client  *miniogo.Client
	bucket  string
	prefix  string
	naming  Naming
	quality int
}

// NewMinIO connects and creates the bucket when it is missing.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig, prefix string, naming Naming, quality int) (*MinIO, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIO{client: client, bucket: cfg.Bucket, prefix: prefix, naming: naming, quality: quality}, nil
}

func (m *MinIO) Kind() string { return KindMinIO }

func (m *MinIO) WriteFrame(ctx context.Context, frame *capture.Frame) (string, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, frame.Image, m.quality); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	key := path.Join(m.prefix, m.naming.Name(frame.Second))
	_, err := m.client.PutObject(ctx, m.bucket, key, &buf, int64(buf.Len()), miniogo.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}

func (m *MinIO) Close() error { return nil }
