package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ErrIllegalMove is returned when a replayed move cannot be played.
var ErrIllegalMove = errors.New("illegal move")

// SelectOutcome reports what a square selection did.
type SelectOutcome int

const (
	NotMoved SelectOutcome = iota
	Moved
	AwaitingPromotion
)

// PendingKind tags the half-move the session is waiting on.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingAwaitingReply
)

// PendingMove is the engine half-move in flight, if any. Ply is the
// history length the reply must be played on.
type PendingMove struct {
	Kind      PendingKind
	Ply       int
	RequestID uint64
}

type Promotion struct {
	From nchess.Square
	To   nchess.Square
}

// MoveRecord pairs the white and black halves of one full move.
type MoveRecord struct {
	Number int
	White  *MoveDetails
	Black  *MoveDetails
}

// EngineRequest is what the engine should search for a pending half-move.
type EngineRequest struct {
	ID  uint64
	Ply int
	FEN string
}

type Option func(*Session)

func WithCatalog(c Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

func WithHumanColor(c nchess.Color) Option {
	return func(s *Session) { s.human = c }
}

// Session is the game state machine. It is not safe for concurrent use;
// callers serialize access with their own lock.
type Session struct {
	catalog Catalog

	history *History
	records []MoveRecord

	selected     nchess.Square
	destinations []nchess.Move
	promotion    *Promotion

	status  string
	pending PendingMove
	human   nchess.Color

	viewMode  bool
	viewIndex int

	lastRequestID uint64
	// engineFailed holds the engine off after an unplayable reply until the
	// human changes the game.
	engineFailed bool
}

func NewSession(opts ...Option) *Session {
	s := &Session{human: nchess.White, selected: nchess.NoSquare}
	for _, opt := range opts {
		opt(s)
	}
	s.history = NewHistory(StartingPosition())
	s.status = s.message(msgWelcome, nil)
	if s.human == nchess.Black {
		s.status = s.playingAs()
	}
	return s
}

// SelectSquare handles a click on sq by the human player.
func (s *Session) SelectSquare(sq nchess.Square) SelectOutcome {
	pos := s.history.Current()
	if pos.Turn() != s.human || s.viewMode {
		return NotMoved
	}
	// a click elsewhere abandons the promotion choice
	s.promotion = nil

	if s.selected != nchess.NoSquare {
		for i := range s.destinations {
			if s.destinations[i].S2() != sq {
				continue
			}
			mv := s.destinations[i]
			if isPromotion(pos, &mv) {
				s.clearSelection()
				s.promotion = &Promotion{From: mv.S1(), To: mv.S2()}
				s.status = s.message(msgPromotion, nil)
				return AwaitingPromotion
			}
			s.commit(mv, false)
			return Moved
		}
	}

	s.clearSelection()
	piece := pos.Board().Piece(sq)
	if piece == nchess.NoPiece || piece.Color() != pos.Turn() {
		return NotMoved
	}
	s.selected = sq
	for _, mv := range pos.ValidMoves() {
		if mv.S1() == sq {
			s.destinations = append(s.destinations, mv)
		}
	}
	return NotMoved
}

// isPromotion looks at the destination rank only; the generator emits one
// move per promotion piece.
func isPromotion(pos *nchess.Position, mv *nchess.Move) bool {
	piece := pos.Board().Piece(mv.S1())
	if piece.Type() != nchess.Pawn {
		return false
	}
	if piece.Color() == nchess.White {
		return mv.S2().Rank() == nchess.Rank8
	}
	return mv.S2().Rank() == nchess.Rank1
}

// Promote completes a pending promotion with kind.
func (s *Session) Promote(kind nchess.PieceType) bool {
	if s.promotion == nil {
		return false
	}
	p := *s.promotion
	for _, mv := range s.history.Current().ValidMoves() {
		if mv.S1() == p.From && mv.S2() == p.To && mv.Promo() == kind {
			s.promotion = nil
			s.commit(mv, false)
			return true
		}
	}
	return false
}

// ApplyExternalMove plays a coordinate move such as "e7e8q".
// Unparseable or illegal input leaves the session untouched.
func (s *Session) ApplyExternalMove(text string) bool {
	mv, ok := s.matchCoordinate(text)
	if !ok {
		return false
	}
	s.commit(mv, true)
	return true
}

func (s *Session) matchCoordinate(text string) (nchess.Move, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) < 4 {
		return nchess.Move{}, false
	}
	from, ok := parseSquare(text[0:2])
	if !ok {
		return nchess.Move{}, false
	}
	to, ok := parseSquare(text[2:4])
	if !ok {
		return nchess.Move{}, false
	}
	promo := nchess.NoPieceType
	if len(text) >= 5 {
		switch text[4] {
		case 'q':
			promo = nchess.Queen
		case 'r':
			promo = nchess.Rook
		case 'b':
			promo = nchess.Bishop
		case 'n':
			promo = nchess.Knight
		default:
			return nchess.Move{}, false
		}
	}
	for _, mv := range s.history.Current().ValidMoves() {
		if mv.S1() == from && mv.S2() == to && mv.Promo() == promo {
			return mv, true
		}
	}
	return nchess.Move{}, false
}

func parseSquare(text string) (nchess.Square, bool) {
	if len(text) != 2 {
		return nchess.NoSquare, false
	}
	f, r := text[0], text[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(r-'1')), true
}

// ParseSquare converts "e4" style names.
func ParseSquare(text string) (nchess.Square, bool) {
	return parseSquare(strings.ToLower(strings.TrimSpace(text)))
}

func (s *Session) commit(mv nchess.Move, external bool) {
	pos := s.history.Current()
	details := Describe(pos, &mv)
	mover := pos.Turn()

	s.history.Push(advance(pos, &mv), mv)
	s.record(mover, details)

	s.clearSelection()
	s.promotion = nil
	s.viewMode = false
	s.viewIndex = s.history.Len() - 1

	data := map[string]any{"Move": CoordinateString(&mv)}
	if external {
		s.pending = PendingMove{}
		s.status = s.message(msgEngineMove, data)
	} else {
		s.status = s.message(msgMove, data)
	}
	if res := s.Result(); res.Over() {
		s.status = s.resultMessage(res)
	}
}

func (s *Session) record(mover nchess.Color, d MoveDetails) {
	n := len(s.records)
	if mover == nchess.Black && n > 0 && s.records[n-1].Black == nil {
		s.records[n-1].Black = &d
		return
	}
	rec := MoveRecord{Number: n + 1}
	if mover == nchess.White {
		rec.White = &d
	} else {
		// game started with black to move
		rec.Black = &d
	}
	s.records = append(s.records, rec)
}

func (s *Session) unrecord() {
	n := len(s.records)
	if n == 0 {
		return
	}
	last := &s.records[n-1]
	if last.Black != nil && last.White != nil {
		last.Black = nil
		return
	}
	s.records = s.records[:n-1]
}

// Undo takes back the human's last move. While the engine is thinking only
// that single ply is removed; otherwise the last move pair.
func (s *Session) Undo() {
	plies := s.history.Plies()
	count, key := 0, msgUndoNone
	switch s.pending.Kind {
	case PendingAwaitingReply:
		if plies >= 1 {
			count, key = 1, msgUndoOwn
		}
	default:
		switch {
		case plies >= 2:
			count, key = 2, msgUndoPair
		case plies == 1:
			count, key = 1, msgUndoLast
		}
	}
	if count == 0 {
		s.status = s.message(msgUndoNone, nil)
		return
	}

	for i := 0; i < count; i++ {
		s.history.Pop()
		s.unrecord()
	}
	s.pending = PendingMove{}
	s.engineFailed = false
	s.clearSelection()
	s.promotion = nil
	s.viewMode = false
	s.viewIndex = s.history.Len() - 1
	s.status = s.message(key, nil)
}

// FlipSide swaps the human's color. An outstanding engine request is
// dropped since it was computed for the other side.
func (s *Session) FlipSide() {
	s.human = s.human.Other()
	s.pending = PendingMove{}
	s.engineFailed = false
	s.clearSelection()
	s.promotion = nil
	s.status = s.playingAs()
}

// EnterView shows the historical position at index. Out of range is a no-op.
func (s *Session) EnterView(index int) bool {
	if index < 0 || index >= s.history.Len() {
		return false
	}
	s.viewMode = true
	s.viewIndex = index
	s.clearSelection()
	return true
}

func (s *Session) ExitView() {
	s.viewMode = false
	s.viewIndex = s.history.Len() - 1
}

// Reset starts a new game from the standard position.
func (s *Session) Reset(human nchess.Color) {
	s.replace(StartingPosition(), human)
	s.status = s.message(msgReset, nil)
}

// LoadPosition starts a new game from fen. On error the current game is kept
// and the reason becomes the status message.
func (s *Session) LoadPosition(fen string, human nchess.Color) error {
	pos, err := ParsePosition(fen)
	if err != nil {
		s.status = err.Error()
		return err
	}
	s.replace(pos, human)
	s.status = s.message(msgLoaded, nil)
	return nil
}

// Restore rebuilds a game from its start position and coordinate moves.
// The session is left untouched when any move fails to replay.
func (s *Session) Restore(fen string, human nchess.Color, moves []string) error {
	next := NewSession(WithCatalog(s.catalog), WithHumanColor(human))
	if err := next.LoadPosition(fen, human); err != nil {
		return err
	}
	for i, mv := range moves {
		if !next.ApplyExternalMove(mv) {
			return fmt.Errorf("%w: ply %d %q", ErrIllegalMove, i+1, mv)
		}
	}
	next.status = next.playingAs()
	next.lastRequestID = s.lastRequestID
	*s = *next
	return nil
}

func (s *Session) replace(start *nchess.Position, human nchess.Color) {
	s.history = NewHistory(start)
	s.records = nil
	s.clearSelection()
	s.promotion = nil
	s.viewMode = false
	s.viewIndex = 0
	s.pending = PendingMove{}
	s.engineFailed = false
	s.human = human
}

// IsEngineTurn is true when the side to move is not the human's.
func (s *Session) IsEngineTurn() bool {
	return s.history.Current().Turn() != s.human
}

// BeginEngineTurn marks the session as waiting for an engine reply and
// returns the search to submit. It fails when it is the human's turn, a
// request is already pending, the last reply on this turn was unplayable or
// the game is over.
func (s *Session) BeginEngineTurn() (EngineRequest, bool) {
	if !s.IsEngineTurn() || s.pending.Kind == PendingAwaitingReply || s.engineFailed || s.Result().Over() {
		return EngineRequest{}, false
	}
	s.lastRequestID++
	s.pending = PendingMove{
		Kind:      PendingAwaitingReply,
		Ply:       s.history.Plies(),
		RequestID: s.lastRequestID,
	}
	s.status = s.message(msgThinking, nil)
	return EngineRequest{
		ID:  s.lastRequestID,
		Ply: s.pending.Ply,
		FEN: PositionString(s.history.Current()),
	}, true
}

// AcceptEngineMove applies a reply for request id. Replies for any other
// request are discarded. A matching reply that cannot be played, such as
// "(none)", ends the wait and is not retried until Undo, FlipSide or a new
// game.
func (s *Session) AcceptEngineMove(id uint64, text string) bool {
	p := s.pending
	if p.Kind != PendingAwaitingReply || p.RequestID != id || p.Ply != s.history.Plies() {
		return false
	}
	if s.ApplyExternalMove(text) {
		return true
	}
	s.pending = PendingMove{}
	s.engineFailed = true
	s.status = s.message(msgEngineNone, map[string]any{"Move": text})
	return false
}

// EngineFailed reports whether the engine is held off after an unplayable
// reply.
func (s *Session) EngineFailed() bool { return s.engineFailed }

// CancelEngineTurn drops the pending request, e.g. when it could not be sent.
func (s *Session) CancelEngineTurn() {
	s.pending = PendingMove{}
}

func (s *Session) clearSelection() {
	s.selected = nchess.NoSquare
	s.destinations = nil
}

func (s *Session) playingAs() string {
	return s.message(msgPlayingAs, map[string]any{"Color": ColorName(s.human)})
}

func (s *Session) resultMessage(res Result) string {
	if res.Outcome == nchess.Draw {
		return s.message(msgDraw, map[string]any{"Method": methodLabel(res.Method)})
	}
	winner := "White"
	if res.Outcome == nchess.BlackWon {
		winner = "Black"
	}
	return s.message(msgCheckmate, map[string]any{"Winner": winner})
}

// Accessors

func (s *Session) History() *History { return s.history }

func (s *Session) Records() []MoveRecord { return copyRecords(s.records) }

func (s *Session) Status() string { return s.status }

func (s *Session) Thinking() bool { return s.pending.Kind == PendingAwaitingReply }

func (s *Session) Pending() PendingMove { return s.pending }

func (s *Session) HumanColor() nchess.Color { return s.human }

func (s *Session) Selected() nchess.Square { return s.selected }

func (s *Session) PendingPromotion() (Promotion, bool) {
	if s.promotion == nil {
		return Promotion{}, false
	}
	return *s.promotion, true
}

func (s *Session) ViewMode() (bool, int) { return s.viewMode, s.viewIndex }

// DisplayedPosition is the historical position in view mode, else the live one.
func (s *Session) DisplayedPosition() *nchess.Position {
	if s.viewMode {
		if pos, ok := s.history.At(s.viewIndex); ok {
			return pos
		}
	}
	return s.history.Current()
}

func copyRecords(in []MoveRecord) []MoveRecord {
	out := make([]MoveRecord, len(in))
	for i, r := range in {
		out[i] = MoveRecord{Number: r.Number}
		if r.White != nil {
			w := *r.White
			out[i].White = &w
		}
		if r.Black != nil {
			b := *r.Black
			out[i].Black = &b
		}
	}
	return out
}
