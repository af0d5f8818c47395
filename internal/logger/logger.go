package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	logger       = stdlog.New(os.Stdout, "", 0)
)

// Level tag colours follow the daemon's console conventions:
// debug cyan, info bold, warn yellow, error red.
var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.Bold),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// GetLevel returns the active minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetColor forces coloured level tags on or off. By default colour is
// enabled only when stdout is a terminal.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// OpenOutput resolves a configured output target ("stdout", "stderr" or a
// file path) into a writer. The returned close function is a no-op for the
// standard streams.
func OpenOutput(target string) (io.Writer, func() error, error) {
	switch strings.ToLower(target) {
	case "", "stdout":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", target, err)
	}
	return f, f.Close, nil
}

func log(level Level, format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if level < currentLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	tag := level.String()
	if c, ok := levelColors[level]; ok {
		tag = c.Sprint(tag)
	}
	prefix := fmt.Sprintf("[%s] [%s] ", timestamp, tag)
	message := fmt.Sprintf(format, v...)
	logger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
