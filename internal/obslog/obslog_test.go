package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_FILE", "")
	cfg := ConfigFromEnv()
	if cfg.Level != zapcore.DebugLevel {
		t.Fatalf("level: %v", cfg.Level)
	}
	if cfg.Format != "legacy" {
		t.Fatalf("unknown format should fall back: %q", cfg.Format)
	}
	if cfg.File != filepath.Join("logs", "chess-player.log") {
		t.Fatalf("file: %q", cfg.File)
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.log")
	logger, err := Build(Config{Level: zapcore.InfoLevel, ToFile: true, Format: "json", File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Info("engine_started", zap.Int("pid", 42))
	_ = logger.Sync()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"engine_started"`) || !strings.Contains(string(b), `"pid":42`) {
		t.Fatalf("log line: %s", b)
	}
}
