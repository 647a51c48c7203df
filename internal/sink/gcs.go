// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package sink

import (
	"bufio"
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ZSC714725/framegrab/internal/capture"
)

// GCS uploads frames to a Google Cloud Storage bucket. Credentials come
// from the environment (GOOGLE_APPLICATION_CREDENTIALS and friends).
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	naming  Naming
	quality int
}

// NewGCS creates a client and checks the bucket is reachable. opts are
// passed to storage.NewClient.
func NewGCS(ctx context.Context, bucket, prefix string, naming Naming, quality int, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("access bucket %s: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, naming: naming, quality: quality}, nil
}

func (g *GCS) Kind() string { return KindGCS }

func (g *GCS) WriteFrame(ctx context.Context, frame *capture.Frame) (string, error) {
	key := path.Join(g.prefix, g.naming.Name(frame.Second))

	// Close commits the object; cancelling wctx drops it.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(wctx)
	w.ContentType = "image/jpeg"

	bw := bufio.NewWriter(w)
	if err := EncodeJPEG(bw, frame.Image, g.quality); err != nil {
		cancel()
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := bw.Flush(); err != nil {
		cancel()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
