// Package objectstore provides the S3-compatible primary sink (Supabase storage).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"postsync/internal/core/domain"
)

const (
	defaultRegion        = "us-east-1"
	defaultTimeout = 30 * time.Second
)

// Config holds the storage connection settings.
type Config struct {
	// Endpoint is the S3 API root, e.g. https://<project>.supabase.co/storage/v1/s3
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBaseURL prefixes public object URLs. Derived from Endpoint when empty.
	PublicBaseURL string
	// Timeout bounds each upload and download.
	Timeout time.Duration
}

// Store implements ports.ObjectStore on top of the S3 API.
type Store struct {
	client *s3.Client
	cfg    Config
}

// New creates a Store with static credentials and path-style addressing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("object storage endpoint and keys required: %w", domain.ErrConfiguration)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object storage bucket required: %w", domain.ErrConfiguration)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = derivePublicBase(cfg.Endpoint)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Store{client: client, cfg: cfg}, nil
}

// Upload writes body under key, replacing any existing object.
func (s *Store) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return nil
}

// Download returns the object stored under key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", s.cfg.Bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download %s/%s: %w", s.cfg.Bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return data, nil
}

// PublicURL returns the public object address for key.
func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.PublicBaseURL, url.PathEscape(s.cfg.Bucket), escapeKey(key))
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}

// derivePublicBase maps a Supabase S3 endpoint (.../storage/v1/s3) to the
// public object root (.../storage/v1/object/public).
func derivePublicBase(endpoint string) string {
	base := strings.TrimRight(endpoint, "/")
	if trimmed, ok := strings.CutSuffix(base, "/s3"); ok {
		return trimmed + "/object/public"
	}
	return base
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
