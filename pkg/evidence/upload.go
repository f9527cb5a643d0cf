package evidence

import (
	"bytes"
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader ships a sealed Bundle's zip archive to durable object storage
// and returns the URL a reviewer can use to retrieve it.
type Uploader interface {
	Upload(ctx context.Context, bundle *Bundle, key string) (string, error)
}

// GCSUploader uploads bundles to a Google Cloud Storage bucket.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

func NewGCSUploader(client *gcs.Client, bucket string) *GCSUploader {
	return &GCSUploader{client: client, bucket: bucket}
}

func (u *GCSUploader) Upload(ctx context.Context, bundle *Bundle, key string) (string, error) {
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/zip"
	w.Metadata = map[string]string{
		"bundle_id":  bundle.ID,
		"agent_id":   bundle.AgentID,
		"chain_head": bundle.ChainHead,
	}
	if _, err := w.Write(bundle.Zip); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("evidence: gcs upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("evidence: gcs finalize %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, key), nil
}

// S3Uploader uploads bundles to an S3-compatible bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
}

func NewS3Uploader(client *s3.Client, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

func (u *S3Uploader) Upload(ctx context.Context, bundle *Bundle, key string) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(bundle.Zip),
		ContentType: aws.String("application/zip"),
		Metadata: map[string]string{
			"bundle_id":  bundle.ID,
			"agent_id":   bundle.AgentID,
			"chain_head": bundle.ChainHead,
		},
	})
	if err != nil {
		return "", fmt.Errorf("evidence: s3 upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
