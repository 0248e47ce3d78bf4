package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/logging"
)

// ObjectAPI is the subset of *s3.Client used by the mirror.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config describes an S3-compatible bucket (AWS or MinIO).
type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds a client for c. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.AccessKey != "" && c.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Mirror wraps a primary backend and copies every saved key store to an
// object-storage bucket. The copy is already sealed under the KEK, so the
// bucket never sees key material in the clear.
//
// Reads always go to the primary. Upload failures are logged and do not
// fail the save: the primary copy is authoritative.
type S3Mirror struct {
	primary Backend
	client  ObjectAPI
	bucket  string
	key     string
	logger  logging.Logger
}

func NewS3Mirror(primary Backend, client ObjectAPI, bucket, key string, logger logging.Logger) *S3Mirror {
	if key == "" {
		key = FileName
	}
	return &S3Mirror{primary: primary, client: client, bucket: bucket, key: key, logger: logger}
}

func (m *S3Mirror) Location() string {
	return m.primary.Location()
}

func (m *S3Mirror) Load(ctx context.Context) ([]byte, error) {
	return m.primary.Load(ctx)
}

func (m *S3Mirror) Save(ctx context.Context, data []byte) error {
	if err := m.primary.Save(ctx, data); err != nil {
		return err
	}

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		m.logger.Warn(ctx, "key store mirror upload failed", "bucket", m.bucket, "key", m.key, "error", err)
		return nil
	}

	m.logger.Info(ctx, "key store mirrored", "bucket", m.bucket, "key", m.key)
	return nil
}

// Restore copies the mirrored key store into the primary backend. It
// refuses to overwrite an existing primary copy.
func (m *S3Mirror) Restore(ctx context.Context) error {
	_, err := m.primary.Load(ctx)
	if err == nil {
		return fmt.Errorf("restore: %w: key store already present at %s", common.ErrorAlreadyExists, m.primary.Location())
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("restore: %w", common.ErrorNotFound)
		}
		return fmt.Errorf("restore: get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("restore: read object: %w", err)
	}

	return m.primary.Save(ctx, data)
}
