package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/catalystschool/checkout/internal/pkg/env"
)

// StoreConfig holds receipt storage configuration.
type StoreConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadStoreConfig loads receipt storage configuration from environment
// variables.
func LoadStoreConfig() (*StoreConfig, error) {
	cfg := &StoreConfig{
		AccessKeyID:     env.GetEnv("RECEIPT_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("RECEIPT_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("RECEIPT_S3_REGION", "ap-south-1"),
		BucketName:      env.GetEnv("RECEIPT_S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("RECEIPT_S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RECEIPT_S3_ENABLED", "false") == "true",
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("RECEIPT_S3_ACCESS_KEY_ID is required when receipt storage is enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("RECEIPT_S3_SECRET_ACCESS_KEY is required when receipt storage is enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("RECEIPT_S3_BUCKET_NAME is required when receipt storage is enabled")
		}
	}

	return cfg, nil
}

// IsEnabled returns true if receipt storage is enabled.
func (c *StoreConfig) IsEnabled() bool {
	return c.Enabled
}

// Store uploads rendered receipts to S3-compatible object storage.
type Store struct {
	s3Client *s3.Client
	config   *StoreConfig
}

// NewStore creates a receipt store from the given configuration.
func NewStore(cfg *StoreConfig) (*Store, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("receipt storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[Receipt] Initialized receipt store for bucket: %s", cfg.BucketName)
	return &Store{s3Client: s3Client, config: cfg}, nil
}

// Put uploads a rendered receipt under the given object key.
func (s *Store) Put(ctx context.Context, objectKey string, pdfBytes []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(pdfBytes),
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(int64(len(pdfBytes))),
		Metadata: map[string]string{
			"upload-source": "checkout-receipts",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt to S3: %w", err)
	}

	log.Infof("[Receipt] Uploaded receipt: s3://%s/%s", s.config.BucketName, objectKey)
	return nil
}
