package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewBuildsAWorkingLogger(t *testing.T) {
	logger, err := New(zapcore.InfoLevel)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer logger.Sync()
	logger.Info("engine started")
}

func TestNewFileWritesToBothStdoutAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.log")
	logger, err := NewFile(path, zapcore.InfoLevel)
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	logger.Info("checkpoint saved")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected the log file to contain the logged line")
	}
}

func TestParseLevelRecognizesKnownLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseLevelDefaultsToInfoOnUnknownValue(t *testing.T) {
	if got := ParseLevel("not-a-level"); got != zapcore.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}
