package uci

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const readerShutdownTimeout = 2 * time.Second

// Reply is a bestmove tagged with the request it answers.
type Reply struct {
	RequestID uint64
	Move      string
}

type process interface {
	SubmitPosition(fen string) error
	Send(line string) error
	Stop()
}

// Bridge delivers engine replies without blocking the caller. A single
// reader goroutine parses stdout into a queue; TryTakeMove drains it.
//
// The engine answers every "go" with exactly one bestmove, in order, so
// each bestmove belongs to the oldest search still in flight.
type Bridge struct {
	proc   process
	logger *zap.Logger

	submitMu sync.Mutex

	mu      sync.Mutex
	current uint64
	// floor is the highest id submitted or cancelled; older ids are stale.
	floor    uint64
	inflight []uint64
	queue    []Reply

	done chan struct{}
}

// Start launches the engine and its reader.
func Start(ctx context.Context, path string, opt Options, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sup, err := StartSupervisor(ctx, path, opt, logger)
	if err != nil {
		return nil, err
	}
	b := newBridge(sup, logger)
	go b.readLoop(sup.Stdout())
	return b, nil
}

func newBridge(proc process, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{proc: proc, logger: logger, done: make(chan struct{})}
}

func (b *Bridge) readLoop(r io.Reader) {
	defer close(b.done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		b.logger.Debug("engine_reader_stopped", zap.Error(err))
	}
}

func (b *Bridge) handleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		if len(fields) > 0 {
			b.logger.Debug("engine_output", zap.String("line", strings.TrimSpace(line)))
		}
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inflight) == 0 {
		b.logger.Warn("engine_reply_unexpected", zap.String("move", fields[1]))
		return
	}
	id := b.inflight[0]
	b.inflight = b.inflight[1:]
	b.queue = append(b.queue, Reply{RequestID: id, Move: fields[1]})
}

// Submit starts a search for request id. A search still running for an
// earlier request is stopped first; its bestmove will be discarded. An id
// at or below one already submitted or cancelled is ignored.
func (b *Bridge) Submit(id uint64, fen string) error {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()

	b.mu.Lock()
	if id <= b.floor {
		floor := b.floor
		b.mu.Unlock()
		b.logger.Debug("engine_submit_stale", zap.Uint64("request_id", id), zap.Uint64("floor", floor))
		return nil
	}
	busy := len(b.inflight) > 0
	b.floor = id
	b.current = id
	b.inflight = append(b.inflight, id)
	b.mu.Unlock()

	if busy {
		if err := b.proc.Send("stop"); err != nil {
			b.forget(id)
			return err
		}
	}
	if err := b.proc.SubmitPosition(fen); err != nil {
		b.forget(id)
		return err
	}
	b.logger.Debug("engine_submit", zap.Uint64("request_id", id), zap.String("fen", fen))
	return nil
}

func (b *Bridge) forget(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.inflight) - 1; i >= 0; i-- {
		if b.inflight[i] == id {
			b.inflight = append(b.inflight[:i], b.inflight[i+1:]...)
			break
		}
	}
	if b.current == id {
		b.current = 0
	}
}

// Cancel invalidates request id. A later request that is already current
// is left alone; if id is still searching, the search is stopped.
func (b *Bridge) Cancel(id uint64) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()

	b.mu.Lock()
	if id > b.floor {
		b.floor = id
	}
	stop := false
	if b.current == id && id != 0 {
		b.current = 0
		for _, v := range b.inflight {
			if v == id {
				stop = true
				break
			}
		}
	}
	b.mu.Unlock()

	if stop {
		if err := b.proc.Send("stop"); err != nil {
			b.logger.Debug("engine_stop_failed", zap.Error(err))
		}
	}
}

// TryTakeMove returns the reply for the current request if one has arrived.
// Replies for any other request are dropped.
func (b *Bridge) TryTakeMove() (Reply, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) > 0 {
		r := b.queue[0]
		b.queue = b.queue[1:]
		if r.RequestID != 0 && r.RequestID == b.current {
			b.current = 0
			return r, true
		}
		b.logger.Debug("engine_reply_stale",
			zap.Uint64("request_id", r.RequestID),
			zap.Uint64("current", b.current),
			zap.String("move", r.Move),
		)
	}
	return Reply{}, false
}

// Close stops the engine and waits briefly for the reader to see EOF.
func (b *Bridge) Close() error {
	b.proc.Stop()
	select {
	case <-b.done:
	case <-time.After(readerShutdownTimeout):
		b.logger.Warn("engine_reader_shutdown_timeout")
	}
	return nil
}
