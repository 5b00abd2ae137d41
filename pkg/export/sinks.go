package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileSink stores exports in a local directory.
type FileSink struct {
	Dir string
}

// Store implements Sink.
func (f FileSink) Store(_ context.Context, name string, content io.Reader) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(f.Dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, content); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// s3API is the slice of the S3 client the sink needs.
type s3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores exports as objects under a bucket prefix, for consoles
// whose operators pick exports up from shared object storage.
type S3Sink struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Sink wraps an S3 client.
func NewS3Sink(client *s3.Client, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// NewS3SinkFromEnv builds a sink with the ambient AWS configuration
// (environment, shared config files, instance role).
func NewS3SinkFromEnv(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Sink{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// Store implements Sink.
func (s *S3Sink) Store(ctx context.Context, name string, content io.Reader) (string, error) {
	key := name
	if s.prefix != "" {
		key = strings.TrimSuffix(s.prefix, "/") + "/" + name
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   content,
	})
	if err != nil {
		return "", fmt.Errorf("put s3 object %q: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
