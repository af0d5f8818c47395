package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	SetOutput(buf)
	SetColor(false)
	prev := GetLevel()
	t.Cleanup(func() {
		SetOutput(bytes.NewBuffer(nil))
		mu.Lock()
		currentLevel = prev
		mu.Unlock()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("WARN")

	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestSetLevel_CaseInsensitive(t *testing.T) {
	captureOutput(t)

	SetLevel("debug")
	assert.Equal(t, LevelDebug, GetLevel())

	// Unknown levels leave the current level untouched
	SetLevel("chatty")
	assert.Equal(t, LevelDebug, GetLevel())
}

func TestOpenOutput(t *testing.T) {
	t.Run("StandardStreams", func(t *testing.T) {
		for _, target := range []string{"", "stdout", "STDERR"} {
			w, closeFn, err := OpenOutput(target)
			require.NoError(t, err)
			assert.NotNil(t, w)
			assert.NoError(t, closeFn())
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mdus.log")
		w, closeFn, err := OpenOutput(path)
		require.NoError(t, err)
		_, err = w.Write([]byte("hello\n"))
		require.NoError(t, err)
		assert.NoError(t, closeFn())
		assert.FileExists(t, path)
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		_, _, err := OpenOutput(filepath.Join(t.TempDir(), "missing", "dir", "mdus.log"))
		assert.Error(t, err)
	})
}
