package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignite/churn-radar/internal/config"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AWSStorage provides S3-backed object storage
type AWSStorage struct {
	s3Client S3API
	bucket   string
	prefix   string
}

// LoadAWSConfig resolves AWS credentials. Static keys win over a named
// profile; with neither, the default chain (IAM role on ECS) is used.
func LoadAWSConfig(ctx context.Context, region, profile, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	switch {
	case accessKey != "" && secretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	case profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewAWSStorage creates a new S3 storage instance
func NewAWSStorage(ctx context.Context, cfg config.StorageConfig) (*AWSStorage, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage.s3_bucket is required for aws storage")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile(), cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	return NewAWSStorageWithClient(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
}

// NewAWSStorageWithClient wraps an existing client.
func NewAWSStorageWithClient(client S3API, bucket, prefix string) *AWSStorage {
	return &AWSStorage{s3Client: client, bucket: bucket, prefix: prefix}
}

func (s *AWSStorage) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put writes an object under the configured prefix.
func (s *AWSStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Get reads an object under the configured prefix.
func (s *AWSStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.GetFromBucket(ctx, s.bucket, s.key(key))
}

// GetFromBucket reads an exact key from a specific bucket. An empty bucket
// means the configured one.
func (s *AWSStorage) GetFromBucket(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	targetBucket := bucket
	if targetBucket == "" {
		targetBucket = s.bucket
	}

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(targetBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", targetBucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting object from S3 bucket %s: %w", targetBucket, err)
	}
	return result.Body, nil
}

// Delete removes an object under the configured prefix. S3 treats a
// missing key as success.
func (s *AWSStorage) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting object from S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *AWSStorage) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(key))
}
