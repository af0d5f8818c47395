package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	stores3 "github.com/marmos91/mdus/pkg/store/s3"
)

// LocalstackHelper manages Localstack S3 integration for tests
type LocalstackHelper struct {
	T        *testing.T
	Endpoint string
	Client   *s3.Client
	Buckets  []string
}

// NewLocalstackHelper creates a new Localstack helper
func NewLocalstackHelper(t *testing.T) *LocalstackHelper {
	t.Helper()

	// Get Localstack endpoint from environment or use default
	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := stores3.NewClient(context.Background(), stores3.ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      1,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	return &LocalstackHelper{
		T:        t,
		Endpoint: endpoint,
		Client:   client,
	}
}

// CreateBucket creates a new S3 bucket and registers it for cleanup
func (lh *LocalstackHelper) CreateBucket(ctx context.Context, bucketName string) error {
	lh.T.Helper()

	_, err := lh.Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	lh.Buckets = append(lh.Buckets, bucketName)
	return nil
}

// Cleanup removes all created buckets and their contents
func (lh *LocalstackHelper) Cleanup() {
	lh.T.Helper()

	ctx := context.Background()

	for _, bucketName := range lh.Buckets {
		listResp, err := lh.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		if err == nil && listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = lh.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(bucketName),
					Key:    obj.Key,
				})
			}
		}

		_, _ = lh.Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	}
}

// SetupS3Config configures a TestConfig for S3 usage with Localstack
func SetupS3Config(t *testing.T, config *TestConfig, helper *LocalstackHelper) {
	t.Helper()

	config.s3Client = helper.Client

	bucketName := fmt.Sprintf("mdus-test-%s-%d", config.Name, time.Now().UnixNano())
	if err := helper.CreateBucket(context.Background(), bucketName); err != nil {
		t.Fatalf("Failed to create S3 bucket: %v", err)
	}

	config.s3Bucket = bucketName
}

// CheckLocalstackAvailable checks if Localstack is running and accessible
func CheckLocalstackAvailable(t *testing.T) bool {
	t.Helper()

	helper := NewLocalstackHelper(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Try to list buckets as a health check
	_, err := helper.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}
