package chess

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Result is the terminal state of the live position, if any.
type Result struct {
	Outcome nchess.Outcome
	Method  nchess.Method
}

func (r Result) Over() bool { return r.Outcome != nchess.NoOutcome }

// Result evaluates the live position. Repetition draws are not detected
// since the position is evaluated without its move history.
func (s *Session) Result() Result {
	return resultOf(s.history.Current())
}

func resultOf(pos *nchess.Position) Result {
	opt, err := nchess.FEN(pos.String())
	if err != nil {
		return Result{Outcome: nchess.NoOutcome, Method: nchess.NoMethod}
	}
	g := nchess.NewGame(opt)
	return Result{Outcome: g.Outcome(), Method: g.Method()}
}

// PGNResult renders the outcome as a PGN result token.
func (r Result) PGNResult() string {
	switch r.Outcome {
	case nchess.WhiteWon:
		return "1-0"
	case nchess.BlackWon:
		return "0-1"
	case nchess.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func methodLabel(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.NoMethod:
		return ""
	default:
		return strings.ToLower(m.String())
	}
}

// MethodLabel is the lower case description used in messages and archives.
func MethodLabel(m nchess.Method) string { return methodLabel(m) }

func ColorName(c nchess.Color) string {
	if c == nchess.Black {
		return "Black"
	}
	return "White"
}

// ParseColor accepts "white", "black", "w" and "b".
func ParseColor(text string) (nchess.Color, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "white", "w":
		return nchess.White, true
	case "black", "b":
		return nchess.Black, true
	default:
		return nchess.NoColor, false
	}
}

// ParsePieceType accepts promotion letters and names.
func ParsePieceType(text string) (nchess.PieceType, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "q", "queen":
		return nchess.Queen, true
	case "r", "rook":
		return nchess.Rook, true
	case "b", "bishop":
		return nchess.Bishop, true
	case "n", "knight":
		return nchess.Knight, true
	default:
		return nchess.NoPieceType, false
	}
}
