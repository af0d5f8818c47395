package e2e

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/mdus/pkg/store"
	storebadger "github.com/marmos91/mdus/pkg/store/badger"
	storefs "github.com/marmos91/mdus/pkg/store/fs"
	storememory "github.com/marmos91/mdus/pkg/store/memory"
	stores3 "github.com/marmos91/mdus/pkg/store/s3"
)

// StoreType represents the backend the server under test writes to
type StoreType string

const (
	StoreMemory     StoreType = "memory"
	StoreFilesystem StoreType = "filesystem"
	StoreBadger     StoreType = "badger"
	StoreS3         StoreType = "s3"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name  string
	Store StoreType

	// Threads and QueueCapacity size the worker pool (0 means the test default)
	Threads       int
	QueueCapacity int

	// S3-specific fields (set by localstack setup)
	s3Client *s3.Client
	s3Bucket string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s(threads=%d)", tc.Store, tc.Threads)
}

// CreateStore creates a store based on the configuration
func (tc *TestConfig) CreateStore(ctx context.Context, testCtx TestContextProvider) (store.Store, error) {
	switch tc.Store {
	case StoreMemory:
		return storememory.New(storememory.Config{}), nil

	case StoreFilesystem:
		st, err := storefs.New(ctx, storefs.Config{
			Root:      testCtx.CreateTempDir("mdus-files-*"),
			Strict:    true,
			CreateDir: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem store: %w", err)
		}
		return st, nil

	case StoreBadger:
		st, err := storebadger.New(ctx, storebadger.Config{
			Path: testCtx.CreateTempDir("mdus-badger-*"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger store: %w", err)
		}
		return st, nil

	case StoreS3:
		config := testCtx.GetConfig()
		if config.s3Client == nil {
			return nil, fmt.Errorf("S3 client not initialized (localstack not running?)")
		}

		st, err := stores3.New(ctx, stores3.Config{
			Client:    config.s3Client,
			Bucket:    config.s3Bucket,
			KeyPrefix: "test/",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", tc.Store)
	}
}

// AllConfigurations returns the configurations that need no external service
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory", Store: StoreMemory},
		{Name: "filesystem", Store: StoreFilesystem},
		{Name: "badger", Store: StoreBadger},
		{Name: "filesystem-single-worker", Store: StoreFilesystem, Threads: 1},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{Name: "s3", Store: StoreS3},
	}
}
