// Package storage keeps off-to-the-side copies of rendered PDFs in an
// S3-compatible bucket. The CMS stays the store of record; an archive
// failure never fails the request that produced the PDF.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/designpress/go-services/internal/config"
)

// Archive is a thin wrapper around the minio client.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive creates an archive client and ensures the bucket exists.
func NewArchive(cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &Archive{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		// tolerate a bucket created by an earlier run
		exists, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

// StorePDF writes a rendered PDF under the given key.
func (a *Archive) StorePDF(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	return err
}

// PresignedURL returns a time-limited GET URL for an archived PDF.
func (a *Archive) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expires, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
