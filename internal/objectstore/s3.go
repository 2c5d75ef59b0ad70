// Package objectstore uploads local files to S3 so external services can
// fetch them by url.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultPrefix = "uploads"

// Uploader stores a local file and returns its public url.
type Uploader interface {
	Upload(ctx context.Context, filePath string) (string, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts files under <prefix>/YYYY/MM/DD/<name> in a bucket.
type S3Uploader struct {
	Bucket string
	Region string
	Prefix string
	Now    func() time.Time

	client putObjectAPI
}

// NewS3Uploader loads the default aws credential chain for region.
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &S3Uploader{
		Bucket: bucket,
		Region: region,
		Prefix: DefaultPrefix,
		Now:    time.Now,
		client: s3.NewFromConfig(cfg),
	}, nil
}

// Key returns the object key for a file named name uploaded at t.
func (u *S3Uploader) Key(name string, t time.Time) string {
	prefix := u.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	slug := strings.ReplaceAll(filepath.Base(name), " ", "-")
	return path.Join(prefix, t.UTC().Format("2006/01/02"), slug)
}

// URL returns the public url of key.
func (u *S3Uploader) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, key)
}

func (u *S3Uploader) Upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	key := u.Key(filePath, now())
	ctype := contentType(filePath)
	slog.Info(fmt.Sprintf("uploading %s to s3://%s/%s (%s)", filePath, u.Bucket, key, ctype))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ctype),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filePath, err)
	}
	return u.URL(key), nil
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
