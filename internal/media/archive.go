package media

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"safetyrelay/internal/config"
)

// Archiver keeps a copy of clips that were re-uploaded.
type Archiver interface {
	Archive(ctx context.Context, eventID string, dl *Download) error
}

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, string, *Download) error { return nil }

func NopArchiver() Archiver { return nopArchiver{} }

// S3Archiver writes clips to an S3-compatible bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver creates the archiver. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg, s3opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewArchiver returns the configured archiver, or a no-op one when archiving
// is disabled.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	if !cfg.Enabled {
		return NopArchiver(), nil
	}
	return NewS3Archiver(ctx, cfg)
}

func (a *S3Archiver) Archive(ctx context.Context, eventID string, dl *Download) error {
	f, err := dl.Open()
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(ObjectKey(a.prefix, eventID)),
		Body:          f,
		ContentLength: aws.Int64(dl.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// ObjectKey maps an event id to a bucket key.
func ObjectKey(prefix, eventID string) string {
	return path.Join(prefix, eventID+".mp4")
}
