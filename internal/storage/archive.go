package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/At4lian/editra/internal/config"
)

// IArchiveStorage keeps copies of generated invoice PDFs outside
// ClickUp. Best-effort: the pipeline warns on failure and moves on.
type IArchiveStorage interface {
	StoreInvoicePDF(ctx context.Context, year int, invoiceName string, data []byte) (string, error)
}

// s3Archive implements IArchiveStorage on AWS S3.
type s3Archive struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3Archive creates the S3 archive service. Returns nil (no archive)
// when no bucket is configured.
func NewS3Archive(cfg *config.Config) (IArchiveStorage, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Archive{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

// StoreInvoicePDF uploads the PDF under invoices/<year>/<name>.pdf and
// returns the object key.
func (s *s3Archive) StoreInvoicePDF(ctx context.Context, year int, invoiceName string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("invoices/%d/%s.pdf", year, invoiceName)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive invoice PDF %s: %w", objectKey, err)
	}
	return objectKey, nil
}
