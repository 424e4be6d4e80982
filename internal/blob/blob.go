// Package blob stores export files in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appcfg "github.com/fdg312/meal-hub/internal/config"
)

// ErrObjectNotFound is returned by GetObject for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Store is the object storage used for export files.
type Store interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	// DownloadURL returns a link the client can fetch the object from
	DownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// S3Store implements Store on AWS SDK v2; works with any S3-compatible endpoint.
type S3Store struct {
	client          *s3.Client
	presignClient   *s3.PresignClient
	bucket          string
	publicBaseURL   string
	preferPublicURL bool
	presignTTL      time.Duration
}

// NewS3Store creates an S3Store from cfg.
func NewS3Store(ctx context.Context, cfg appcfg.S3Config) (*S3Store, error) {
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("S3 configuration incomplete: missing %s", strings.Join(missing, ", "))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	ttl := cfg.PresignTTLSeconds
	if ttl <= 0 {
		ttl = 900
	}

	return &S3Store{
		client:          client,
		presignClient:   s3.NewPresignClient(client),
		bucket:          cfg.Bucket,
		publicBaseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		preferPublicURL: cfg.PreferPublicURL,
		presignTTL:      time.Duration(ttl) * time.Second,
	}, nil
}

// PutObject uploads data to S3
func (s *S3Store) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	return int64(len(data)), nil
}

// DownloadURL returns the public URL when preferred, a presigned GET otherwise.
func (s *S3Store) DownloadURL(ctx context.Context, key string) (string, error) {
	if s.preferPublicURL && s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}

	presigned, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET: %w", err)
	}

	return presigned.URL, nil
}

// DeleteObject deletes an object from S3
func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// GetObject downloads an object from S3
func (s *S3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}
