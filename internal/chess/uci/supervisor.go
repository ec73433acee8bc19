package uci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrProcessNotFound = errors.New("engine binary not found")
	ErrNotReady        = errors.New("engine process not running")
	ErrProcessIO       = errors.New("engine process io")
)

const (
	defaultThreads    = 4
	defaultHashMB     = 128
	defaultSkillLevel = 10
	defaultThinkTime  = 2 * time.Second
)

type Options struct {
	SkillLevel int
	ThinkTime  time.Duration
	Threads    int
	HashMB     int
}

func DefaultOptions() Options {
	return Options{
		SkillLevel: defaultSkillLevel,
		ThinkTime:  defaultThinkTime,
		Threads:    defaultThreads,
		HashMB:     defaultHashMB,
	}
}

func (o Options) withDefaults() Options {
	if o.SkillLevel < 1 {
		o.SkillLevel = 1
	}
	if o.SkillLevel > 20 {
		o.SkillLevel = 20
	}
	if o.ThinkTime <= 0 {
		o.ThinkTime = defaultThinkTime
	}
	if o.Threads <= 0 {
		o.Threads = defaultThreads
	}
	if o.HashMB <= 0 {
		o.HashMB = defaultHashMB
	}
	return o
}

// Supervisor owns the engine process and its pipes. Writes are serialized;
// reading stdout is left to the caller.
type Supervisor struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *zap.Logger

	moveTime int

	mu      sync.Mutex
	stopped bool
}

// StartSupervisor spawns the engine at path and writes the setup commands
// without waiting for uciok/readyok. ctx bounds startup only; the process
// lives until Stop.
func StartSupervisor(ctx context.Context, path string, opt Options, logger *zap.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opt = opt.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, path)
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Supervisor{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		logger:   logger,
		moveTime: int(opt.ThinkTime / time.Millisecond),
	}
	if err := s.initialize(opt); err != nil {
		s.Stop()
		return nil, err
	}
	logger.Info("engine_started",
		zap.String("path", path),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("skill_level", opt.SkillLevel),
		zap.Int("movetime_ms", s.moveTime),
	)
	return s, nil
}

func (s *Supervisor) initialize(opt Options) error {
	cmds := []string{
		"uci",
		"isready",
		"setoption name Skill Level value " + strconv.Itoa(opt.SkillLevel),
		"setoption name Threads value " + strconv.Itoa(opt.Threads),
		"setoption name Hash value " + strconv.Itoa(opt.HashMB),
		"setoption name UCI_AnalyseMode value false",
		"setoption name UCI_LimitStrength value false",
	}
	for _, c := range cmds {
		if err := s.Send(c); err != nil {
			return fmt.Errorf("initialize engine: %w", err)
		}
	}
	return nil
}

// Stdout is the engine's output stream. Only one reader may consume it.
func (s *Supervisor) Stdout() io.Reader { return s.stdout }

// SubmitPosition starts a fixed-time search on fen.
func (s *Supervisor) SubmitPosition(fen string) error {
	if err := s.Send("position fen " + fen); err != nil {
		return err
	}
	return s.Send("go movetime " + strconv.Itoa(s.moveTime))
}

// Send writes one command line.
func (s *Supervisor) Send(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.stdin == nil {
		return ErrNotReady
	}
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrProcessIO, line, err)
	}
	return nil
}

// Stop asks the engine to quit and then kills it. Errors are ignored; the
// process may already be gone.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		_ = s.stdin.Close()
	}
	s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.logger.Info("engine_stopped")
}
