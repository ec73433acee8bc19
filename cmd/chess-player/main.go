package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/park285/cheese-engine-player/internal/adapter/chesspresenter"
	"github.com/park285/cheese-engine-player/internal/chessbuilder"
	appcfg "github.com/park285/cheese-engine-player/internal/config"
	"github.com/park285/cheese-engine-player/internal/httpapi"
	"github.com/park285/cheese-engine-player/internal/obslog"
	svcchess "github.com/park285/cheese-engine-player/internal/service/chess"
)

type flags struct {
	enginePath  string
	skillLevel  int
	thinkTimeMS int
	black       bool
	dataDir     string
	httpAddr    string
	wsAddr      string
	interactive bool
}

func parseFlags(args []string) (*flags, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("chess-player", flag.ContinueOnError)
	f := &flags{}
	fs.StringVar(&f.enginePath, "engine-path", "", "UCI engine binary (overrides ENGINE_PATH)")
	fs.IntVar(&f.skillLevel, "skill-level", 0, "engine skill level 1-20")
	fs.IntVar(&f.thinkTimeMS, "think-time", 0, "engine think time in milliseconds")
	fs.BoolVar(&f.black, "black", false, "play as black")
	fs.StringVar(&f.dataDir, "data-dir", "", "badger directory for sessions and archive")
	fs.StringVar(&f.httpAddr, "http", "", "HTTP API listen address")
	fs.StringVar(&f.wsAddr, "ws", "", "websocket listen address")
	fs.BoolVar(&f.interactive, "interactive", false, "read commands from stdin")
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return f, fs, nil
}

// apply overrides only the flags that were set on the command line.
func (f *flags) apply(fs *flag.FlagSet, cfg *appcfg.AppConfig) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "engine-path":
			cfg.EnginePath = f.enginePath
		case "skill-level":
			cfg.SkillLevel = f.skillLevel
		case "think-time":
			cfg.ThinkTimeMS = f.thinkTimeMS
		case "black":
			cfg.PlayAsBlack = f.black
		case "data-dir":
			cfg.DataDir = f.dataDir
		case "http":
			cfg.HTTPAddr = f.httpAddr
		case "ws":
			cfg.WSAddr = f.wsAddr
		}
	})
}

func main() {
	f, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	f.apply(fs, cfg)
	cfg.Normalize()

	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init failed, using defaults: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = obslog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := chessbuilder.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("chess_init_failed", zap.Error(err))
	}
	chess := deps.Service

	server := httpapi.NewServer(chess, deps.Catalog, obslog.Named("http"))
	hub := httpapi.NewHub(func() []byte {
		frame, ferr := chesspresenter.Frame(chess.Snapshot())
		if ferr != nil {
			return nil
		}
		return frame
	}, obslog.Named("ws"))
	chess.OnChange(chesspresenter.NewPresenter(hub.Broadcast, obslog.Named("presenter")).Board)

	if _, rerr := chess.Resume(ctx); rerr != nil {
		if !errors.Is(rerr, svcchess.ErrNoSavedSession) {
			logger.Warn("resume_failed", zap.Error(rerr))
		}
		chess.Start(ctx)
	}

	errCh := make(chan error, 2)
	if cfg.HTTPAddr != "" {
		go func() {
			if serr := server.ListenAndServe(cfg.HTTPAddr); serr != nil {
				errCh <- serr
			}
		}()
	}
	if cfg.WSAddr != "" {
		go func() {
			if serr := hub.ListenAndServe(cfg.WSAddr); serr != nil {
				errCh <- serr
			}
		}()
	}

	var con *console
	if f.interactive {
		con = newConsole(chess, chesspresenter.NewFormatter(time.Local), server.Describe, os.Stdout)
		go func() {
			if rerr := con.run(ctx, os.Stdin); rerr != nil {
				logger.Warn("console_read_failed", zap.Error(rerr))
			}
			stop()
		}()
	}

	go pollEngine(ctx, chess, cfg.PollInterval(), con)

	select {
	case <-ctx.Done():
	case serr := <-errCh:
		logger.Error("listener_failed", zap.Error(serr))
	}
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	var result *multierror.Error
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		result = multierror.Append(result, serr)
	}
	if serr := hub.Shutdown(shutdownCtx); serr != nil {
		result = multierror.Append(result, serr)
	}
	if serr := deps.Close(); serr != nil {
		result = multierror.Append(result, serr)
	}
	if serr := result.ErrorOrNil(); serr != nil {
		logger.Warn("shutdown_errors", zap.Error(serr))
	}
}

// pollEngine delivers engine replies on a fixed tick. The console, when
// present, is shown the board after each engine move.
func pollEngine(ctx context.Context, chess *svcchess.Service, interval time.Duration, con *console) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if chess.Poll(ctx) && con != nil {
				con.print(con.board(chess.Snapshot()))
			}
		}
	}
}
