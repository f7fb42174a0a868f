// Package archive stores raw upstream snapshots.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mohammed-shakir/airmap/internal/core/config"
)

// Sink persists a named snapshot and returns where it landed.
type Sink interface {
	Put(ctx context.Context, name string, body []byte) (string, error)
}

// FileSink writes snapshots into a local directory.
type FileSink struct {
	Dir string
}

func (f FileSink) Put(ctx context.Context, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.Dir, 0o750); err != nil {
		return "", fmt.Errorf("archive mkdir %s: %w", f.Dir, err)
	}
	path := filepath.Join(f.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return "", fmt.Errorf("archive write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive rename %s: %w", path, err)
	}
	return path, nil
}

// S3API is the subset of the S3 client the sink calls.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Sink(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Sink) Put(ctx context.Context, name string, body []byte) (string, error) {
	if s.bucket == "" {
		return "", errors.New("archive: empty bucket name")
	}
	if err := validName(name); err != nil {
		return "", err
	}
	key := name
	if s.prefix != "" {
		key = s.prefix + "/" + name
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("archive: invalid snapshot name %q", name)
	}
	return nil
}

// New builds the sink selected by cfg.Driver.
func New(ctx context.Context, cfg config.ArchiveCfg) (Sink, error) {
	switch cfg.Driver {
	case "", "file":
		return FileSink{Dir: cfg.Dir}, nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewS3Sink(s3.NewFromConfig(awsCfg), cfg.Bucket, "air_condition"), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
