package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"pixelforge/internal/config"
	"pixelforge/internal/domain"
)

const projectPrefix = "projects/"

// objectAPI is the part of the S3 client the asset store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AssetStore keeps project slide images on an S3-compatible host.
type AssetStore struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewAssetStore builds an S3 client from cfg. A custom endpoint (MinIO and
// similar) switches to path-style addressing.
func NewAssetStore(ctx context.Context, cfg *config.AssetsConfig) (*AssetStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newAssetStore(client, cfg), nil
}

func newAssetStore(client objectAPI, cfg *config.AssetsConfig) *AssetStore {
	return &AssetStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
	}
}

// publicBaseURL is where uploaded objects are served from.
func publicBaseURL(cfg *config.AssetsConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// NewStorageKey returns a fresh object key for a project slide.
func NewStorageKey() string {
	return projectPrefix + uuid.NewString()
}

// Upload stores an image and returns the slide that references it.
func (s *AssetStore) Upload(ctx context.Context, data []byte, contentType string) (domain.Slide, error) {
	key := NewStorageKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return domain.Slide{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	return domain.Slide{URL: s.baseURL + "/" + key, PublicID: key}, nil
}

// Delete removes the object behind publicID.
func (s *AssetStore) Delete(ctx context.Context, publicID string) error {
	if !strings.HasPrefix(publicID, projectPrefix) {
		return fmt.Errorf("refusing to delete asset outside %s: %q", projectPrefix, publicID)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
