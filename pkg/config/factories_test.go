package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateStore_Filesystem(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := &StoreConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"root":       root,
			"dir":        "files",
			"create_dir": true,
		},
	}

	st, err := CreateStore(ctx, cfg, true)
	if err != nil {
		t.Fatalf("Failed to create filesystem store: %v", err)
	}
	defer func() { _ = st.Close() }()

	if info, err := os.Stat(filepath.Join(root, "files")); err != nil || !info.IsDir() {
		t.Errorf("Expected files directory to be created, got %v", err)
	}
}

func TestCreateStore_FilesystemMissingDir(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"root":       t.TempDir(),
			"create_dir": false,
		},
	}

	if _, err := CreateStore(ctx, cfg, true); err == nil {
		t.Fatal("Expected error for missing files directory")
	}
}

func TestCreateStore_WeakTypes(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"root":       t.TempDir(),
			"create_dir": "true",
			"max_size":   "1024",
		},
	}

	st, err := CreateStore(ctx, cfg, true)
	if err != nil {
		t.Fatalf("Expected string options to decode, got: %v", err)
	}
	_ = st.Close()
}

func TestCreateStore_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:   "memory",
		Memory: map[string]any{"max_size": 10},
	}

	st, err := CreateStore(ctx, cfg, true)
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	if st == nil {
		t.Fatal("Expected non-nil store")
	}
	_ = st.Close()
}

func TestCreateStore_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{"path": filepath.Join(t.TempDir(), "db")},
	}

	st, err := CreateStore(ctx, cfg, true)
	if err != nil {
		t.Fatalf("Failed to create badger store: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestCreateStore_BadgerMissingPath(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{},
	}

	_, err := CreateStore(ctx, cfg, true)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateStore_S3MissingBucket(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	}

	_, err := CreateStore(ctx, cfg, true)
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateStore_S3MissingRegion(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "s3",
		S3:   map[string]any{"bucket": "mdus"},
	}

	_, err := CreateStore(ctx, cfg, true)
	if err == nil {
		t.Fatal("Expected error for missing region")
	}
	if !strings.Contains(err.Error(), "region is required") {
		t.Errorf("Expected 'region is required' error, got: %v", err)
	}
}

func TestCreateStore_UnknownType(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{Type: "tape"}

	_, err := CreateStore(ctx, cfg, true)
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown store type") {
		t.Errorf("Expected 'unknown store type' error, got: %v", err)
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.Dispatch == nil {
		t.Fatal("Expected no-op dispatch metrics, got nil")
	}
	// The no-op collector must accept calls
	result.Dispatch.RecordEnqueued()
}

func TestInitializeMetrics_DisabledLeavesStoreUnwrapped(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Store != nil {
		t.Errorf("Expected nil store metrics when disabled, got %T", result.Store)
	}
}
