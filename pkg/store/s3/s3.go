package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/mdus/pkg/store"
)

// DefaultMaxRetries is the retry budget for transient S3 failures.
const DefaultMaxRetries = 10

// S3Store implements store.Store using Amazon S3 or S3-compatible storage.
//
// Key Design:
//   - The object key is KeyPrefix + name
//   - Example: prefix "mdus/files/" and name "a.txt" give "mdus/files/a.txt"
//   - The bucket mirrors the files directory and is inspectable with any S3 tool
//
// S3 Characteristics:
//   - Writes replace the whole object (PutObject), matching the truncating
//     semantics of the other backends
//   - The body is buffered before upload so the content length is known
//   - Reads stream straight from GetObject
//
// Thread Safety:
// This implementation is safe for concurrent use by multiple goroutines.
// Concurrent writes to the same name are last-write-wins.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	maxSize   int64
	closed    atomic.Bool
}

// Config contains configuration for the S3 store.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string

	// MaxSize is the largest object Write accepts. 0 means unlimited.
	MaxSize int64
}

// ClientConfig describes how to reach the S3 endpoint.
type ClientConfig struct {
	Region          string
	Endpoint        string // Custom endpoint for MinIO, Localstack, etc.
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	MaxRetries      int
}

// NewClient builds an S3 client from ClientConfig.
//
// Credentials fall back to the default AWS chain when no static key pair is
// given. A custom endpoint implies path-style addressing.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// New creates a new S3-based store.
//
// The bucket must already exist; New verifies access with HeadBucket and
// does not create it.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3Store: Initialized store
//   - error: Returns error if configuration is invalid, bucket access fails,
//     or the context is cancelled
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		maxSize:   cfg.MaxSize,
	}, nil
}

// objectFile is a streaming GetObject body with its content length.
type objectFile struct {
	io.ReadCloser
	size int64
}

func (f *objectFile) Size() int64 { return f.size }

// Open streams the object named name.
func (s *S3Store) Open(ctx context.Context, name string) (store.File, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %q: %w", name, err)
	}

	return &objectFile{
		ReadCloser: result.Body,
		size:       aws.ToInt64(result.ContentLength),
	}, nil
}

// Write uploads the content of r as the object named name, replacing any
// previous version.
func (s *S3Store) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := s.check(ctx, name); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := buf.ReadFrom(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read body for %q: %w", name, err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return 0, fmt.Errorf("%q: %w", name, store.ErrTooLarge)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object %q: %w", name, err)
	}

	return n, nil
}

// Close marks the store closed. The S3 client holds no resources that need
// releasing.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *S3Store) key(name string) string {
	return s.keyPrefix + name
}

func (s *S3Store) check(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return store.ErrUnavailable
	}
	if name == "" {
		return fmt.Errorf("empty name: %w", store.ErrInvalidName)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
