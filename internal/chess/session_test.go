package chess

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func sq(t *testing.T, name string) nchess.Square {
	t.Helper()
	s, ok := ParseSquare(name)
	if !ok {
		t.Fatalf("bad square %q", name)
	}
	return s
}

func play(t *testing.T, s *Session, from, to string) {
	t.Helper()
	s.SelectSquare(sq(t, from))
	if got := s.SelectSquare(sq(t, to)); got != Moved {
		t.Fatalf("%s%s: outcome %v status %q", from, to, got, s.Status())
	}
}

func checkInvariants(t *testing.T, s *Session) {
	t.Helper()
	h := s.History()
	if h.Len() != h.Plies()+1 {
		t.Fatalf("positions %d moves %d", h.Len(), h.Plies())
	}
	recs := s.Records()
	for i, r := range recs {
		if r.Number != i+1 {
			t.Fatalf("record %d numbered %d", i, r.Number)
		}
	}
	if view, idx := s.ViewMode(); !view && idx != h.Len()-1 {
		t.Fatalf("view index %d outside view mode, len %d", idx, h.Len())
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession()
	if s.Status() != "Welcome to Chess Engine Player! Make a move to begin." {
		t.Fatalf("status: %q", s.Status())
	}
	if s.HumanColor() != nchess.White || s.IsEngineTurn() {
		t.Fatalf("expected white human to move first")
	}
	checkInvariants(t, s)

	b := NewSession(WithHumanColor(nchess.Black))
	if !b.IsEngineTurn() {
		t.Fatalf("engine should move first when human plays black")
	}
	if b.Status() != "You are playing as Black." {
		t.Fatalf("status: %q", b.Status())
	}
}

func TestSelectSquareRules(t *testing.T) {
	s := NewSession()
	if got := s.SelectSquare(sq(t, "e7")); got != NotMoved || s.Selected() != nchess.NoSquare {
		t.Fatalf("opponent piece must not be selectable")
	}
	if got := s.SelectSquare(sq(t, "e4")); got != NotMoved || s.Selected() != nchess.NoSquare {
		t.Fatalf("empty square must not be selectable")
	}
	s.SelectSquare(sq(t, "e2"))
	if s.Selected() != sq(t, "e2") {
		t.Fatalf("e2 not selected")
	}
	if got := len(s.Snapshot().Destinations); got != 2 {
		t.Fatalf("e2 destinations: %d", got)
	}
	// reselect another own piece
	s.SelectSquare(sq(t, "g1"))
	if s.Selected() != sq(t, "g1") {
		t.Fatalf("g1 not selected")
	}
	// illegal target clears the selection
	if got := s.SelectSquare(sq(t, "g4")); got != NotMoved || s.Selected() != nchess.NoSquare {
		t.Fatalf("illegal target should clear selection")
	}
	play(t, s, "e2", "e4")
	if s.Status() != "Move: e2e4" {
		t.Fatalf("status: %q", s.Status())
	}
	recs := s.Records()
	if len(recs) != 1 || recs[0].White == nil || recs[0].White.Notation != "e4" || recs[0].Black != nil {
		t.Fatalf("records: %+v", recs)
	}
	// engine's turn now; clicks are ignored
	if got := s.SelectSquare(sq(t, "e7")); got != NotMoved || s.Selected() != nchess.NoSquare {
		t.Fatalf("click during engine turn must be ignored")
	}
	checkInvariants(t, s)
}

func TestEngineTurnRoundTrip(t *testing.T) {
	s := NewSession()
	if _, ok := s.BeginEngineTurn(); ok {
		t.Fatalf("engine turn on human move")
	}
	play(t, s, "e2", "e4")
	req, ok := s.BeginEngineTurn()
	if !ok || req.ID != 1 || req.Ply != 1 {
		t.Fatalf("request: %+v ok=%v", req, ok)
	}
	if req.FEN != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1" &&
		req.FEN != "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1" {
		t.Fatalf("fen: %s", req.FEN)
	}
	if !s.Thinking() || s.Status() != "Engine is thinking..." {
		t.Fatalf("expected thinking, status %q", s.Status())
	}
	if _, ok := s.BeginEngineTurn(); ok {
		t.Fatalf("second request while one is pending")
	}
	if s.AcceptEngineMove(req.ID+1, "e7e5") {
		t.Fatalf("reply for another request accepted")
	}
	if !s.AcceptEngineMove(req.ID, "e7e5") {
		t.Fatalf("reply rejected, status %q", s.Status())
	}
	if s.Thinking() || s.Status() != "Engine moved: e7e5" {
		t.Fatalf("after reply: thinking=%v status=%q", s.Thinking(), s.Status())
	}
	recs := s.Records()
	if len(recs) != 1 || recs[0].Black == nil || recs[0].Black.Notation != "e5" {
		t.Fatalf("records: %+v", recs)
	}
	checkInvariants(t, s)
}

func TestUnplayableReplyEndsWait(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	req, _ := s.BeginEngineTurn()
	if s.AcceptEngineMove(req.ID, "e2e4") {
		t.Fatalf("illegal reply accepted")
	}
	if s.Thinking() {
		t.Fatalf("session still thinking")
	}
	if s.History().Plies() != 1 {
		t.Fatalf("plies: %d", s.History().Plies())
	}
	if s.Status() != "Engine returned no playable move (e2e4). Undo, flip sides or reset to continue." {
		t.Fatalf("status: %q", s.Status())
	}
	if _, ok := s.BeginEngineTurn(); ok || !s.EngineFailed() {
		t.Fatalf("engine turn restarted after an unplayable reply")
	}
}

func TestNoMoveReplyIsNotRetried(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	req, _ := s.BeginEngineTurn()
	if s.AcceptEngineMove(req.ID, "(none)") {
		t.Fatalf("(none) accepted")
	}
	for i := 0; i < 3; i++ {
		if _, ok := s.BeginEngineTurn(); ok {
			t.Fatalf("retry %d started a new search", i)
		}
	}

	s.FlipSide()
	s.FlipSide()
	again, ok := s.BeginEngineTurn()
	if !ok || again.ID <= req.ID {
		t.Fatalf("flipping sides did not allow a fresh search: %+v %v", again, ok)
	}
	if !s.AcceptEngineMove(again.ID, "e7e5") {
		t.Fatalf("reply rejected: %q", s.Status())
	}

	req, _ = s.BeginEngineTurn()
	if req.ID != 0 {
		t.Fatalf("engine turn began on the human's move")
	}
	play(t, s, "g1", "f3")
	req, _ = s.BeginEngineTurn()
	s.AcceptEngineMove(req.ID, "(none)")
	s.Undo()
	if s.EngineFailed() || s.Thinking() {
		t.Fatalf("undo did not clear the failed engine turn")
	}
}

func TestUndoWhileThinkingDropsStaleReply(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	req, _ := s.BeginEngineTurn()
	s.Undo()
	if s.Status() != "Undid your move." {
		t.Fatalf("status: %q", s.Status())
	}
	if s.History().Plies() != 0 || len(s.Records()) != 0 || s.Thinking() {
		t.Fatalf("undo left plies=%d records=%d thinking=%v", s.History().Plies(), len(s.Records()), s.Thinking())
	}
	// the late reply for the abandoned request must not land
	if s.AcceptEngineMove(req.ID, "e7e5") {
		t.Fatalf("stale reply applied")
	}
	play(t, s, "d2", "d4")
	next, ok := s.BeginEngineTurn()
	if !ok || next.ID <= req.ID {
		t.Fatalf("request ids must increase: %d then %d", req.ID, next.ID)
	}
	if s.AcceptEngineMove(req.ID, "d7d5") {
		t.Fatalf("stale id accepted on the same ply")
	}
	checkInvariants(t, s)
}

type historyState struct {
	moves     string
	positions []string
	records   int
}

func captureHistory(s *Session) historyState {
	h := s.History()
	st := historyState{moves: strings.Join(h.MovesUCI(), " "), records: len(s.Records())}
	for i := 0; i < h.Len(); i++ {
		pos, _ := h.At(i)
		st.positions = append(st.positions, pos.String())
	}
	return st
}

func sameHistory(t *testing.T, label string, got, want historyState) {
	t.Helper()
	if got.moves != want.moves {
		t.Fatalf("%s: moves %q, want %q", label, got.moves, want.moves)
	}
	if strings.Join(got.positions, "|") != strings.Join(want.positions, "|") {
		t.Fatalf("%s: positions\n%v\nwant\n%v", label, got.positions, want.positions)
	}
	if got.records != want.records {
		t.Fatalf("%s: records %d, want %d", label, got.records, want.records)
	}
}

func TestUndoPairAndSingle(t *testing.T) {
	s := NewSession()
	s.Undo()
	if s.Status() != "No moves to undo." {
		t.Fatalf("status: %q", s.Status())
	}

	empty := captureHistory(s)
	play(t, s, "e2", "e4")
	s.Undo()
	if s.Status() != "Undid last move." {
		t.Fatalf("single undo: %q", s.Status())
	}
	sameHistory(t, "single undo", captureHistory(s), empty)

	play(t, s, "e2", "e4")
	if !s.ApplyExternalMove("c7c5") {
		t.Fatalf("external move rejected")
	}
	afterPair := captureHistory(s)
	play(t, s, "g1", "f3")
	if !s.ApplyExternalMove("b8c6") {
		t.Fatalf("external move rejected")
	}
	s.Undo()
	if s.Status() != "Undid last move pair." {
		t.Fatalf("pair undo: %q", s.Status())
	}
	sameHistory(t, "pair undo", captureHistory(s), afterPair)
	if afterPair.moves != "e2e4 c7c5" {
		t.Fatalf("moves before the undone pair: %q", afterPair.moves)
	}
	recs := s.Records()
	if len(recs) != 1 || recs[0].Black == nil || recs[0].Black.Notation != "c5" {
		t.Fatalf("records: %+v", recs)
	}
	if s.History().Current().String() != s.DisplayedPosition().String() {
		t.Fatalf("displayed position out of sync")
	}
	checkInvariants(t, s)
}

func TestUnderpromotionStalemateIsNotMate(t *testing.T) {
	s := NewSession()
	if err := s.LoadPosition("7k/P4K1P/6P1/8/8/8/8/8 w - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if !s.ApplyExternalMove("a7a8n") {
		t.Fatalf("a7a8n rejected")
	}
	res := s.Result()
	if res.Outcome != nchess.Draw || res.Method != nchess.Stalemate {
		t.Fatalf("result: %+v", res)
	}
	if recs := s.Records(); recs[0].White.Notation != "a8=N" {
		t.Fatalf("notation: %q", recs[0].White.Notation)
	}
	if s.History().Current().Status() != nchess.Stalemate {
		t.Fatalf("stored position reports %v", s.History().Current().Status())
	}
}

func TestApplyExternalMoveRejects(t *testing.T) {
	s := NewSession()
	for _, text := range []string{"", "e2", "z9e4", "e2e5", "e2e4x", "e7e5"} {
		if s.ApplyExternalMove(text) {
			t.Fatalf("%q accepted", text)
		}
	}
	if s.History().Plies() != 0 {
		t.Fatalf("rejected moves changed history")
	}
	if !s.ApplyExternalMove(" E2E4 ") {
		t.Fatalf("upper case move rejected")
	}
}

func TestPromotionFlow(t *testing.T) {
	s := NewSession()
	if err := s.LoadPosition("4k3/P7/8/8/8/8/8/4K3 w - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if s.Status() != "Custom position loaded. Make a move to begin." {
		t.Fatalf("status: %q", s.Status())
	}
	s.SelectSquare(sq(t, "a7"))
	if got := s.SelectSquare(sq(t, "a8")); got != AwaitingPromotion {
		t.Fatalf("outcome: %v", got)
	}
	if s.Status() != "Select promotion piece" {
		t.Fatalf("status: %q", s.Status())
	}
	if p, ok := s.PendingPromotion(); !ok || p.From != sq(t, "a7") || p.To != sq(t, "a8") {
		t.Fatalf("pending promotion: %+v %v", p, ok)
	}
	if s.History().Plies() != 0 {
		t.Fatalf("move committed before piece chosen")
	}
	if !s.Promote(nchess.Knight) {
		t.Fatalf("Promote failed")
	}
	if _, ok := s.PendingPromotion(); ok {
		t.Fatalf("promotion still pending")
	}
	recs := s.Records()
	if len(recs) != 1 || recs[0].White.Notation != "a8=N" {
		t.Fatalf("records: %+v", recs)
	}
	if s.Promote(nchess.Queen) {
		t.Fatalf("Promote without pending promotion")
	}
}

func TestPromotionAbandonedByClick(t *testing.T) {
	s := NewSession()
	if err := s.LoadPosition("4k3/P7/8/8/8/8/8/4K3 w - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	s.SelectSquare(sq(t, "a7"))
	s.SelectSquare(sq(t, "a8"))
	s.SelectSquare(sq(t, "e1"))
	if _, ok := s.PendingPromotion(); ok {
		t.Fatalf("promotion survived another click")
	}
	if s.Selected() != sq(t, "e1") {
		t.Fatalf("king not selected")
	}
}

func TestViewMode(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	s.ApplyExternalMove("e7e5")
	if s.EnterView(3) || s.EnterView(-1) {
		t.Fatalf("out of range index accepted")
	}
	if !s.EnterView(0) {
		t.Fatalf("EnterView(0) failed")
	}
	if s.DisplayedPosition().String() != s.History().Start().String() {
		t.Fatalf("view does not show the start position")
	}
	if got := s.SelectSquare(sq(t, "g1")); got != NotMoved || s.Selected() != nchess.NoSquare {
		t.Fatalf("selection allowed in view mode")
	}
	if snap := s.Snapshot(); !snap.ViewMode || snap.ViewIndex != 0 || snap.FEN == snap.LiveFEN {
		t.Fatalf("snapshot: %+v", snap)
	}
	s.ExitView()
	if view, idx := s.ViewMode(); view || idx != 2 {
		t.Fatalf("ExitView: %v %d", view, idx)
	}
	play(t, s, "g1", "f3")
	checkInvariants(t, s)
}

func TestLoadPositionFailureKeepsGame(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	err := s.LoadPosition("8/8/8/8/8/8/8/4K3 w - - 0 1", nchess.Black)
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("err: %v", err)
	}
	if s.Status() != "Missing black king (k)" {
		t.Fatalf("status: %q", s.Status())
	}
	if s.History().Plies() != 1 || s.HumanColor() != nchess.White {
		t.Fatalf("state changed on failed load")
	}
}

func TestBlackToMoveFirstRecord(t *testing.T) {
	s := NewSession()
	if err := s.LoadPosition("4k3/8/8/8/8/8/4P3/4K3 b - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if !s.IsEngineTurn() {
		t.Fatalf("black to move should be engine turn")
	}
	if !s.ApplyExternalMove("e8d8") {
		t.Fatalf("e8d8 rejected")
	}
	play(t, s, "e2", "e4")
	recs := s.Records()
	if len(recs) != 2 {
		t.Fatalf("records: %+v", recs)
	}
	if recs[0].White != nil || recs[0].Black == nil || recs[0].Black.Notation != "Kd8" {
		t.Fatalf("first record: %+v", recs[0])
	}
	if recs[1].Number != 2 || recs[1].White == nil || recs[1].White.Notation != "e4" {
		t.Fatalf("second record: %+v", recs[1])
	}
	checkInvariants(t, s)
}

func TestFlipSideClearsPending(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	req, _ := s.BeginEngineTurn()
	s.FlipSide()
	if s.HumanColor() != nchess.Black || s.Thinking() {
		t.Fatalf("flip: human=%v thinking=%v", s.HumanColor(), s.Thinking())
	}
	if s.Status() != "You are playing as Black." {
		t.Fatalf("status: %q", s.Status())
	}
	if s.AcceptEngineMove(req.ID, "e7e5") {
		t.Fatalf("reply for dropped request accepted")
	}
	if s.IsEngineTurn() {
		t.Fatalf("black human should be to move")
	}
}

func TestCheckmateEndsGame(t *testing.T) {
	s := NewSession(WithHumanColor(nchess.Black))
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if !s.ApplyExternalMove(mv) {
			t.Fatalf("%s rejected", mv)
		}
	}
	if s.Status() != "Checkmate! Black wins." {
		t.Fatalf("status: %q", s.Status())
	}
	res := s.Result()
	if res.Outcome != nchess.BlackWon || res.Method != nchess.Checkmate || res.PGNResult() != "0-1" {
		t.Fatalf("result: %+v", res)
	}
	if _, ok := s.BeginEngineTurn(); ok {
		t.Fatalf("engine asked to move after mate")
	}
	recs := s.Records()
	if recs[1].Black.Notation != "Qh4#" {
		t.Fatalf("mate notation: %q", recs[1].Black.Notation)
	}
}

func TestStalemateIsDraw(t *testing.T) {
	s := NewSession()
	if err := s.LoadPosition("7k/4Q3/6K1/8/8/8/8/8 w - - 0 1", nchess.White); err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	play(t, s, "e7", "f7")
	if s.Status() != "Draw by stalemate." {
		t.Fatalf("status: %q", s.Status())
	}
	if res := s.Result(); res.Outcome != nchess.Draw || res.PGNResult() != "1/2-1/2" {
		t.Fatalf("result: %+v", res)
	}
}

func TestResetRestoresStart(t *testing.T) {
	s := NewSession()
	play(t, s, "e2", "e4")
	s.Reset(nchess.Black)
	if s.Status() != "Game reset. Make a move to begin." {
		t.Fatalf("status: %q", s.Status())
	}
	if s.History().Plies() != 0 || len(s.Records()) != 0 || s.HumanColor() != nchess.Black {
		t.Fatalf("reset incomplete")
	}
	checkInvariants(t, s)
}

type stubCatalog map[string]string

func (c stubCatalog) Render(key string, data any) (string, error) {
	if v, ok := c[key]; ok {
		return v, nil
	}
	return "", errors.New("missing")
}

func TestCatalogOverridesFallback(t *testing.T) {
	s := NewSession(WithCatalog(stubCatalog{msgReset: "새 게임"}))
	s.Reset(nchess.White)
	if s.Status() != "새 게임" {
		t.Fatalf("status: %q", s.Status())
	}
	s.Undo()
	if s.Status() != "No moves to undo." {
		t.Fatalf("fallback not used: %q", s.Status())
	}
}
