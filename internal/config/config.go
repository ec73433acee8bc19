package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEnginePath  = "/usr/games/stockfish"
	DefaultSkillLevel  = 10
	DefaultThinkTimeMS = 2000
	MinThinkTimeMS     = 100
)

type AppConfig struct {
	EnginePath  string
	SkillLevel  int
	ThinkTimeMS int
	PlayAsBlack bool

	PollIntervalMS int

	HTTPAddr string
	WSAddr   string

	RedisURL    string
	DatabaseURL string
	DataDir     string

	PlayerID           string
	ChessSessionTTLSec int
	ChessHistoryLimit  int
	MessagesDir        string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EnginePath:         DefaultEnginePath,
		SkillLevel:         DefaultSkillLevel,
		ThinkTimeMS:        DefaultThinkTimeMS,
		PollIntervalMS:     100,
		HTTPAddr:           ":8080",
		WSAddr:             ":8081",
		PlayerID:           "local",
		ChessSessionTTLSec: 86400,
		ChessHistoryLimit:  10,
	}

	if v := env("ENGINE_PATH"); v != "" {
		cfg.EnginePath = v
	} else if v := env("STOCKFISH_PATH"); v != "" {
		cfg.EnginePath = v
	}
	if v := env("ENGINE_SKILL_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SkillLevel = n
		}
	}
	if v := env("ENGINE_THINK_TIME_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ThinkTimeMS = n
		}
	}
	if v := env("PLAY_AS_BLACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PlayAsBlack = b
		}
	}
	if v := env("POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollIntervalMS = n
		}
	}

	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(v)
	}
	// WS_ADDR="" disables the websocket listener
	if v, ok := os.LookupEnv("WS_ADDR"); ok {
		cfg.WSAddr = strings.TrimSpace(v)
	}

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.DataDir = env("DATA_DIR")
	cfg.MessagesDir = env("MESSAGES_DIR")

	if v := env("PLAYER_ID"); v != "" {
		cfg.PlayerID = v
	}
	if v := env("CHESS_SESSION_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChessSessionTTLSec = n
		}
	}
	if v := env("CHESS_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChessHistoryLimit = n
		}
	}

	cfg.Normalize()

	if cfg.RedisURL != "" {
		if err := checkURL(cfg.RedisURL, "redis", "rediss"); err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	if cfg.DatabaseURL != "" {
		if err := checkURL(cfg.DatabaseURL, "postgres", "postgresql"); err != nil {
			return nil, fmt.Errorf("DATABASE_URL: %w", err)
		}
	}
	return cfg, nil
}

// Normalize clamps engine settings into their supported ranges. Flags
// applied after Load should call it again.
func (c *AppConfig) Normalize() {
	if c.SkillLevel < 1 {
		c.SkillLevel = 1
	}
	if c.SkillLevel > 20 {
		c.SkillLevel = 20
	}
	if c.ThinkTimeMS < MinThinkTimeMS {
		c.ThinkTimeMS = MinThinkTimeMS
	}
	if strings.TrimSpace(c.EnginePath) == "" {
		c.EnginePath = DefaultEnginePath
	}
}

func (c *AppConfig) ThinkTime() time.Duration {
	return time.Duration(c.ThinkTimeMS) * time.Millisecond
}

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.ChessSessionTTLSec) * time.Second
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme %q", u.Scheme)
}
