package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ReportArchive writes backfill reports to an S3 bucket.
type S3ReportArchive struct {
	client S3API
	bucket string
	prefix string
}

// NewS3ReportArchive stores reports under prefix in bucket.
func NewS3ReportArchive(client S3API, bucket, prefix string) *S3ReportArchive {
	return &S3ReportArchive{client: client, bucket: bucket, prefix: prefix}
}

// Archive uploads body and returns its s3:// URI.
func (a *S3ReportArchive) Archive(ctx context.Context, name string, body []byte) (string, error) {
	key := path.Join(a.prefix, path.Base(name))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// FileReportArchive writes backfill reports to a local directory.
type FileReportArchive struct {
	dir string
}

func NewFileReportArchive(dir string) *FileReportArchive {
	return &FileReportArchive{dir: dir}
}

// Archive writes body to dir and returns the file path. Only the base name
// of name is used.
func (a *FileReportArchive) Archive(ctx context.Context, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", err
	}
	p := filepath.Join(a.dir, filepath.Base(name))
	if err := os.WriteFile(p, body, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return p, nil
}
