package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/mdus/pkg/store"
	storetesting "github.com/marmos91/mdus/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, strict bool) (*FSStore, string) {
	t.Helper()

	root := t.TempDir()
	s, err := New(context.Background(), Config{Root: root, Strict: strict, CreateDir: true})
	require.NoError(t, err)
	return s, root
}

// TestFSStore runs the complete Store test suite in both path modes.
func TestFSStore(t *testing.T) {
	for _, strict := range []bool{true, false} {
		name := "lenient"
		if strict {
			name = "strict"
		}
		t.Run(name, func(t *testing.T) {
			suite := &storetesting.StoreTestSuite{
				NewStore: func(t *testing.T) store.Store {
					s, _ := newTestStore(t, strict)
					return s
				},
				NewLimitedStore: func(t *testing.T, maxSize int64) store.Store {
					s, err := New(context.Background(), Config{Root: t.TempDir(), Strict: strict, CreateDir: true, MaxSize: maxSize})
					require.NoError(t, err)
					return s
				},
			}
			suite.Run(t)
		})
	}
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(context.Background(), Config{Root: t.TempDir()})
	assert.Error(t, err)
}

func TestNew_DirIsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultDir), []byte("x"), 0644))

	_, err := New(context.Background(), Config{Root: root})
	assert.Error(t, err)
}

func TestFSStore_Layout(t *testing.T) {
	s, root := newTestStore(t, true)
	defer func() { _ = s.Close() }()

	_, err := s.Write(context.Background(), "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "files", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFSStore_StrictRejectsEscapes(t *testing.T) {
	s, root := newTestStore(t, true)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("s3cr3t"), 0644))

	for _, name := range []string{"../secret", "/etc/passwd", "a/../../secret"} {
		_, err := s.Open(ctx, name)
		assert.ErrorIs(t, err, store.ErrInvalidName, name)

		_, err = s.Write(ctx, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, store.ErrInvalidName, name)
	}

	data, err := os.ReadFile(filepath.Join(root, "secret"))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", string(data))
}

func TestFSStore_StrictRejectsSymlinkEscape(t *testing.T) {
	s, root := newTestStore(t, true)
	defer func() { _ = s.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("s3cr3t"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "secret"), filepath.Join(root, "files", "link")))

	_, err := s.Open(context.Background(), "link")
	assert.Error(t, err)
}

func TestFSStore_LenientAllowsEscapes(t *testing.T) {
	s, root := newTestStore(t, false)
	defer func() { _ = s.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("s3cr3t"), 0644))

	data, size := storetesting.ReadAll(t, s, "../secret")
	assert.Equal(t, "s3cr3t", string(data))
	assert.Equal(t, int64(6), size)
}

func TestFSStore_Directory(t *testing.T) {
	s, root := newTestStore(t, true)
	defer func() { _ = s.Close() }()

	require.NoError(t, os.Mkdir(filepath.Join(root, "files", "sub"), 0755))

	_, err := s.Open(context.Background(), "sub")
	assert.ErrorIs(t, err, store.ErrNotReadable)
}

func TestFSStore_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	s, root := newTestStore(t, true)
	defer func() { _ = s.Close() }()

	path := filepath.Join(root, "files", "locked")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0000))

	_, err := s.Open(context.Background(), "locked")
	assert.ErrorIs(t, err, store.ErrNotReadable)
}

func TestFSStore_NoParentCreation(t *testing.T) {
	s, _ := newTestStore(t, true)
	defer func() { _ = s.Close() }()

	_, err := s.Write(context.Background(), "missing/a.txt", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFSStore_MaxSize(t *testing.T) {
	root := t.TempDir()
	s, err := New(context.Background(), Config{Root: root, Strict: true, CreateDir: true, MaxSize: 3})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Write(context.Background(), "big", strings.NewReader("old"))
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "big", strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, store.ErrTooLarge)

	onDisk, err := os.ReadFile(filepath.Join(root, DefaultDir, "big"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))
}
