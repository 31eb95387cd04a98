package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config carries the settings for an S3-compatible endpoint (AWS or a
// MinIO-style server with a custom base endpoint).
type S3Config struct {
	Region       string
	BaseEndpoint string
	Bucket       string
	AccessKey    string
	SecretKey    string
}

// S3 is a blob Store backed by an S3 bucket. Download URLs are presigned GET
// requests so the client can hand them straight to an image view.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("blob: aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  15 * time.Minute,
	}, nil
}

func (s *S3) Upload(ctx context.Context, path string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("blob: upload %q: %w", path, err)
	}
	return nil
}

func (s *S3) DownloadURL(ctx context.Context, path string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("blob: presign %q: %w", path, err)
	}
	return req.URL, nil
}
