package config

import (
	"context"
	"fmt"

	"github.com/marmos91/mdus/internal/logger"
	"github.com/marmos91/mdus/pkg/store"
	storeBadger "github.com/marmos91/mdus/pkg/store/badger"
	storeFs "github.com/marmos91/mdus/pkg/store/fs"
	storeMemory "github.com/marmos91/mdus/pkg/store/memory"
	storeS3 "github.com/marmos91/mdus/pkg/store/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateStore creates the file store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "filesystem": Uses pkg/store/fs (files under a local directory)
//   - "memory": Uses pkg/store/memory (volatile, for tests and dry runs)
//   - "s3": Uses pkg/store/s3 (Amazon S3 or compatible storage)
//   - "badger": Uses pkg/store/badger (embedded key-value store)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Store configuration
//   - strict: Whether names are confined to the store (server.strict_paths)
//
// Returns:
//   - store.Store: Initialized store
//   - error: Configuration or initialization error
func CreateStore(ctx context.Context, cfg *StoreConfig, strict bool) (store.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStore(ctx, cfg.Filesystem, strict)
	case "memory":
		return createMemoryStore(cfg.Memory)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	case "badger":
		return createBadgerStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// createFilesystemStore creates a filesystem-based store.
func createFilesystemStore(ctx context.Context, options map[string]any, strict bool) (store.Store, error) {
	type FilesystemStoreConfig struct {
		Root      string `mapstructure:"root"`
		Dir       string `mapstructure:"dir"`
		CreateDir bool   `mapstructure:"create_dir"`
		MaxSize   int64  `mapstructure:"max_size"`
	}

	var storeCfg FilesystemStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem store config: %w", err)
	}

	st, err := storeFs.New(ctx, storeFs.Config{
		Root:      storeCfg.Root,
		Dir:       storeCfg.Dir,
		Strict:    strict,
		CreateDir: storeCfg.CreateDir,
		MaxSize:   storeCfg.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}

	logger.Info("Filesystem store serving %s (strict paths: %v)", st.Dir(), strict)
	return st, nil
}

// createMemoryStore creates an in-memory store.
func createMemoryStore(options map[string]any) (store.Store, error) {
	type MemoryStoreConfig struct {
		MaxSize int64 `mapstructure:"max_size"`
	}

	var storeCfg MemoryStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory store config: %w", err)
	}

	logger.Info("Memory store enabled: files do not survive a restart")
	return storeMemory.New(storeMemory.Config{MaxSize: storeCfg.MaxSize}), nil
}

// createS3Store creates an S3-based store.
func createS3Store(ctx context.Context, options map[string]any) (store.Store, error) {
	type S3StoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		ForcePathStyle  bool   `mapstructure:"force_path_style"`
		MaxRetries      int    `mapstructure:"max_retries"`
		MaxSize         int64  `mapstructure:"max_size"`
	}

	var storeCfg S3StoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}

	// Validate required fields
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	// ========================================================================
	// Step 1: Build the S3 client
	// ========================================================================

	client, err := storeS3.NewClient(ctx, storeS3.ClientConfig{
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		ForcePathStyle:  storeCfg.ForcePathStyle,
		MaxRetries:      storeCfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	// ========================================================================
	// Step 2: Create the store (verifies bucket access)
	// ========================================================================

	st, err := storeS3.New(ctx, storeS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		MaxSize:   storeCfg.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 store serving s3://%s/%s", storeCfg.Bucket, storeCfg.KeyPrefix)
	return st, nil
}

// createBadgerStore creates a BadgerDB-backed store.
func createBadgerStore(ctx context.Context, options map[string]any) (store.Store, error) {
	type BadgerStoreConfig struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
		MaxSize  int64  `mapstructure:"max_size"`
	}

	var storeCfg BadgerStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}

	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: path is required")
	}

	st, err := storeBadger.New(ctx, storeBadger.Config{
		Path:     storeCfg.Path,
		InMemory: storeCfg.InMemory,
		MaxSize:  storeCfg.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}

	logger.Info("Badger store at %s", storeCfg.Path)
	return st, nil
}

// decodeOptions decodes a backend option map. Values coming from environment
// variables or YAML may be strings or differently sized integers, so the
// decoder is weakly typed.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}
