package uci

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeProcess struct {
	mu      sync.Mutex
	lines   []string
	failGo  bool
	stopped bool
}

func (f *fakeProcess) SubmitPosition(fen string) error {
	if f.failGo {
		return ErrProcessIO
	}
	if err := f.Send("position fen " + fen); err != nil {
		return err
	}
	return f.Send("go movetime 100")
}

func (f *fakeProcess) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeProcess) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeProcess) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func TestBridgeDeliversCurrentReply(t *testing.T) {
	proc := &fakeProcess{}
	b := newBridge(proc, nil)

	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("empty queue returned a reply")
	}
	if err := b.Submit(1, "fen-a"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	b.handleLine("info depth 10 score cp 20 pv e7e5")
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("info line produced a reply")
	}
	b.handleLine("bestmove e7e5 ponder g1f3")
	r, ok := b.TryTakeMove()
	if !ok || r.RequestID != 1 || r.Move != "e7e5" {
		t.Fatalf("reply: %+v ok=%v", r, ok)
	}
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("reply delivered twice")
	}
	want := []string{"position fen fen-a", "go movetime 100"}
	if got := proc.sent(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("sent %v", got)
	}
}

func TestBridgeIgnoresMalformedLines(t *testing.T) {
	b := newBridge(&fakeProcess{}, nil)
	_ = b.Submit(1, "fen")
	for _, line := range []string{"", "bestmove", "bestmovee2e4 x", "readyok", "  "} {
		b.handleLine(line)
	}
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("malformed line produced a reply")
	}
	b.handleLine("bestmove\te2e4")
	if r, ok := b.TryTakeMove(); !ok || r.Move != "e2e4" {
		t.Fatalf("tab separated bestmove: %+v %v", r, ok)
	}
}

func TestBridgeSupersededSearchIsDiscarded(t *testing.T) {
	proc := &fakeProcess{}
	b := newBridge(proc, nil)
	_ = b.Submit(1, "fen-a")
	_ = b.Submit(2, "fen-b")

	sent := proc.sent()
	if len(sent) != 5 || sent[2] != "stop" {
		t.Fatalf("expected stop before second search, sent %v", sent)
	}

	// first bestmove answers the stopped search
	b.handleLine("bestmove a7a6")
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("reply for superseded request delivered")
	}
	b.handleLine("bestmove b7b6")
	r, ok := b.TryTakeMove()
	if !ok || r.RequestID != 2 || r.Move != "b7b6" {
		t.Fatalf("reply: %+v ok=%v", r, ok)
	}
}

func TestBridgeCancelDropsReply(t *testing.T) {
	proc := &fakeProcess{}
	b := newBridge(proc, nil)
	_ = b.Submit(7, "fen")
	b.Cancel(7)
	if sent := proc.sent(); sent[len(sent)-1] != "stop" {
		t.Fatalf("cancel did not stop the search: %v", sent)
	}
	b.handleLine("bestmove e2e4")
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("cancelled reply delivered")
	}
}

func TestBridgeCancelOfOlderRequestKeepsCurrent(t *testing.T) {
	proc := &fakeProcess{}
	b := newBridge(proc, nil)
	_ = b.Submit(1, "fen-a")
	_ = b.Submit(2, "fen-b")
	sentBefore := len(proc.sent())

	b.Cancel(1)
	if len(proc.sent()) != sentBefore {
		t.Fatalf("cancelling a superseded request stopped the live search: %v", proc.sent())
	}
	b.handleLine("bestmove a7a6")
	b.handleLine("bestmove b7b6")
	r, ok := b.TryTakeMove()
	if !ok || r.RequestID != 2 || r.Move != "b7b6" {
		t.Fatalf("reply: %+v ok=%v", r, ok)
	}
}

func TestBridgeSubmitAfterCancelIsStale(t *testing.T) {
	proc := &fakeProcess{}
	b := newBridge(proc, nil)
	b.Cancel(3)
	if err := b.Submit(3, "fen"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sent := proc.sent(); len(sent) != 0 {
		t.Fatalf("cancelled request reached the engine: %v", sent)
	}
	if err := b.Submit(2, "fen"); err != nil || len(proc.sent()) != 0 {
		t.Fatalf("older request reached the engine: %v %v", err, proc.sent())
	}

	if err := b.Submit(4, "fen"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	b.handleLine("bestmove e2e4")
	if r, ok := b.TryTakeMove(); !ok || r.RequestID != 4 {
		t.Fatalf("reply: %+v ok=%v", r, ok)
	}
}

func TestBridgeSubmitFailureForgetsRequest(t *testing.T) {
	proc := &fakeProcess{failGo: true}
	b := newBridge(proc, nil)
	if err := b.Submit(1, "fen"); !errors.Is(err, ErrProcessIO) {
		t.Fatalf("err: %v", err)
	}
	b.handleLine("bestmove e2e4")
	if _, ok := b.TryTakeMove(); ok {
		t.Fatalf("reply delivered for failed submit")
	}
}

func TestStartSupervisorMissingBinary(t *testing.T) {
	_, err := StartSupervisor(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultOptions(), nil)
	if !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("err: %v", err)
	}
}

const fakeEngineScript = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*) echo "info depth 1 score cp 0 pv e7e5"; echo "bestmove e7e5" ;;
    quit) exit 0 ;;
  esac
done
`

func writeFakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell engine stub needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-engine")
	if err := os.WriteFile(path, []byte(fakeEngineScript), 0o755); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	return path
}

func TestBridgeWithProcess(t *testing.T) {
	path := writeFakeEngine(t)
	opt := DefaultOptions()
	opt.ThinkTime = 100 * time.Millisecond
	b, err := Start(context.Background(), path, opt, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if err := b.Submit(1, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := b.TryTakeMove(); ok {
			if r.RequestID != 1 || r.Move != "e7e5" {
				t.Fatalf("reply: %+v", r)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no reply from engine")
}

func TestEngineOutlivesStartContext(t *testing.T) {
	path := writeFakeEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	b, err := Start(ctx, path, DefaultOptions(), nil)
	cancel()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	// give exec a chance to act on the cancelled context
	time.Sleep(50 * time.Millisecond)
	if err := b.Submit(1, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"); err != nil {
		t.Fatalf("Submit after start context ended: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := b.TryTakeMove(); ok {
			if r.Move != "e7e5" {
				t.Fatalf("reply: %+v", r)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("engine stopped answering once the start context ended")
}

func TestStartSupervisorCancelledContext(t *testing.T) {
	path := writeFakeEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := StartSupervisor(ctx, path, DefaultOptions(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err: %v", err)
	}
}

func TestSupervisorStopIsIdempotent(t *testing.T) {
	path := writeFakeEngine(t)
	sup, err := StartSupervisor(context.Background(), path, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("StartSupervisor: %v", err)
	}
	sup.Stop()
	sup.Stop()
	if err := sup.SubmitPosition("8/8/8/8/8/8/8/8 w - - 0 1"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("submit after stop: %v", err)
	}
}
