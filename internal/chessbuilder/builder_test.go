package chessbuilder

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/cheese-engine-player/internal/config"
)

func baseConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		EnginePath:         filepath.Join(t.TempDir(), "no-such-engine"),
		SkillLevel:         5,
		ThinkTimeMS:        100,
		PlayerID:           "tester",
		ChessSessionTTLSec: 60,
		ChessHistoryLimit:  5,
	}
}

func TestNewWithoutBackends(t *testing.T) {
	deps, err := New(context.Background(), baseConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()

	if deps.Engine != nil || deps.Cache != nil || deps.Storage != nil || deps.DB != nil {
		t.Fatalf("unexpected backends: %+v", deps)
	}
	snap := deps.Service.Snapshot()
	if snap.EngineAvailable {
		t.Fatalf("engine reported available")
	}
	if snap.Status != "Welcome to Chess Engine Player! Make a move to begin." {
		t.Fatalf("status: %q", snap.Status)
	}
	if _, err := deps.Service.Resume(context.Background()); err == nil {
		t.Fatalf("resume without a store should fail")
	}
}

func TestNewWithBadger(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(t)
	cfg.DataDir = t.TempDir()

	deps, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if deps.Storage == nil {
		t.Fatalf("badger storage not opened")
	}
	if _, err := deps.Service.PlayMove(ctx, "e2e4"); err != nil {
		t.Fatalf("PlayMove: %v", err)
	}
	id := deps.Service.Snapshot().SessionID
	if err := deps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	snap, err := again.Service.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if snap.SessionID != id || snap.Plies != 1 {
		t.Fatalf("resumed: id=%s plies=%d", snap.SessionID, snap.Plies)
	}
}

func TestNewPrefersRedisForSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	deps, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if deps.Cache == nil {
		t.Fatalf("cache not configured")
	}
	deps.Service.Start(context.Background())
	keys := mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "chess:sessions:") {
		t.Fatalf("redis keys: %v", keys)
	}
}

func TestNewBadRedisURL(t *testing.T) {
	cfg := baseConfig(t)
	cfg.RedisURL = "http://localhost"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for bad redis url")
	}
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
