package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENGINE_PATH", "STOCKFISH_PATH", "ENGINE_SKILL_LEVEL", "ENGINE_THINK_TIME_MS",
		"PLAY_AS_BLACK", "POLL_INTERVAL_MS", "REDIS_URL", "DATABASE_URL", "DATA_DIR",
		"PLAYER_ID", "CHESS_SESSION_TTL", "CHESS_HISTORY_LIMIT", "MESSAGES_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnginePath != DefaultEnginePath || cfg.SkillLevel != 10 || cfg.ThinkTimeMS != 2000 {
		t.Fatalf("engine defaults: %+v", cfg)
	}
	if cfg.PlayAsBlack || cfg.PollIntervalMS != 100 || cfg.PlayerID != "local" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoadClampsEngineSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_SKILL_LEVEL", "42")
	t.Setenv("ENGINE_THINK_TIME_MS", "5")
	t.Setenv("STOCKFISH_PATH", " /opt/sf ")
	t.Setenv("PLAY_AS_BLACK", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SkillLevel != 20 || cfg.ThinkTimeMS != MinThinkTimeMS {
		t.Fatalf("clamp: skill=%d think=%d", cfg.SkillLevel, cfg.ThinkTimeMS)
	}
	if cfg.EnginePath != "/opt/sf" || !cfg.PlayAsBlack {
		t.Fatalf("env: %+v", cfg)
	}

	t.Setenv("ENGINE_SKILL_LEVEL", "0")
	t.Setenv("ENGINE_PATH", "/usr/bin/sf")
	cfg, _ = Load()
	if cfg.SkillLevel != 1 || cfg.EnginePath != "/usr/bin/sf" {
		t.Fatalf("skill=%d path=%s", cfg.SkillLevel, cfg.EnginePath)
	}
}

func TestLoadIgnoresGarbageNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_SKILL_LEVEL", "hard")
	t.Setenv("CHESS_HISTORY_LIMIT", "-3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SkillLevel != DefaultSkillLevel || cfg.ChessHistoryLimit != 10 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadRejectsBadURLs(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "http://localhost:6379")
	if _, err := Load(); err == nil {
		t.Fatalf("expected REDIS_URL error")
	}
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DATABASE_URL", "mysql://x")
	if _, err := Load(); err == nil {
		t.Fatalf("expected DATABASE_URL error")
	}
}
