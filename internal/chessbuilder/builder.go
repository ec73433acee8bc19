package chessbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/cheese-engine-player/internal/chess/uci"
	"github.com/park285/cheese-engine-player/internal/config"
	"github.com/park285/cheese-engine-player/internal/msgcat"
	"github.com/park285/cheese-engine-player/internal/service/cache"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/internal/storage"
)

// Deps owns everything the service was built from. Engine, Cache, Storage
// and DB are nil when not configured or not reachable.
type Deps struct {
	Service *svcchess.Service
	Engine  *uci.Bridge
	Cache   *cache.CacheService
	Storage *storage.Storage
	DB      *sql.DB
	Repo    svcchess.Repository
	Catalog *msgcat.Catalog
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (deps *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Normalize()

	deps = &Deps{}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	deps.Catalog = catalog

	// Cache (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cconf, perr := cache.ParseRedisURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		deps.Cache, err = cache.NewCacheService(*cconf, logger.Named("cache"))
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
	}

	if strings.TrimSpace(cfg.DataDir) != "" {
		deps.Storage, err = storage.Open(cfg.DataDir, cfg.SessionTTL())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	// Repository: postgres, then badger, then memory
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		deps.DB, err = openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.Repo = svcchess.NewRepository(deps.DB)
	case deps.Storage != nil:
		deps.Repo = deps.Storage
	default:
		deps.Repo = svcchess.NewMemoryRepository()
	}

	var store svcchess.SessionStore
	switch {
	case deps.Cache != nil:
		store = svcchess.NewRedisStore(deps.Cache, cfg.SessionTTL())
	case deps.Storage != nil:
		store = deps.Storage
	}

	// Engine. Without it the board still works for the human side.
	var engine svcchess.Engine
	bridge, eerr := uci.Start(ctx, cfg.EnginePath, uci.Options{
		SkillLevel: cfg.SkillLevel,
		ThinkTime:  cfg.ThinkTime(),
	}, logger.Named("engine"))
	if eerr != nil {
		logger.Warn("engine_unavailable", zap.String("path", cfg.EnginePath), zap.Error(eerr))
	} else {
		deps.Engine = bridge
		engine = bridge
	}

	deps.Service, err = svcchess.NewService(engine, store, deps.Repo, catalog, svcchess.Config{
		PlayerID:     cfg.PlayerID,
		SkillLevel:   cfg.SkillLevel,
		PlayAsBlack:  cfg.PlayAsBlack,
		HistoryLimit: cfg.ChessHistoryLimit,
	}, logger.Named("chess"))
	if err != nil {
		return nil, err
	}

	logger.Info("chess_deps_ready",
		zap.Bool("engine", deps.Engine != nil),
		zap.Bool("redis", deps.Cache != nil),
		zap.Bool("postgres", deps.DB != nil),
		zap.Bool("badger", deps.Storage != nil),
	)
	return deps, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := svcchess.Migrate(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

// Close stops the engine and releases every backend, collecting all errors.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var result error
	if d.Engine != nil {
		if err := d.Engine.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("engine: %w", err))
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("cache: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("postgres: %w", err))
		}
	}
	if d.Storage != nil {
		if err := d.Storage.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("storage: %w", err))
		}
	}
	return result
}
