package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrInvalidPosition = errors.New("invalid position")

// PositionError carries the human readable reason a position string was rejected.
type PositionError struct {
	Reason string
}

func (e *PositionError) Error() string { return e.Reason }

func (e *PositionError) Is(target error) bool { return target == ErrInvalidPosition }

// ValidatePosition runs the structural checks the rules library does not
// report gracefully: both kings present, no pawn on its far rank.
func ValidatePosition(fen string) error {
	placement := ""
	if fields := strings.Fields(fen); len(fields) > 0 {
		placement = fields[0]
	}
	if !strings.Contains(placement, "K") {
		return &PositionError{Reason: "Missing white king (K)"}
	}
	if !strings.Contains(placement, "k") {
		return &PositionError{Reason: "Missing black king (k)"}
	}
	ranks := strings.Split(placement, "/")
	if len(ranks) == 8 {
		if strings.ContainsAny(ranks[0], "Pp") {
			return &PositionError{Reason: "Pawns cannot be on rank 8"}
		}
		if strings.ContainsAny(ranks[7], "Pp") {
			return &PositionError{Reason: "Pawns cannot be on rank 1"}
		}
	}
	return nil
}

// ParsePosition validates fen and hands it to the rules library.
// Missing clock fields are filled with "0 1".
func ParsePosition(fen string) (*nchess.Position, error) {
	fen = strings.TrimSpace(fen)
	if err := ValidatePosition(fen); err != nil {
		return nil, err
	}
	fields := strings.Fields(fen)
	switch len(fields) {
	case 4:
		fields = append(fields, "0", "1")
	case 5:
		fields = append(fields, "1")
	}
	opt, err := nchess.FEN(strings.Join(fields, " "))
	if err != nil {
		return nil, &PositionError{Reason: fmt.Sprintf("Invalid position: %v", err)}
	}
	return nchess.NewGame(opt).Position(), nil
}

// PositionString renders pos as FEN with the clock fields fixed at "0 1";
// the session does not track them.
func PositionString(pos *nchess.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ") + " 0 1"
}

func StartingPosition() *nchess.Position {
	return nchess.NewGame().Position()
}

// Setup is an editable board used to compose a starting position.
type Setup struct {
	Pieces       map[nchess.Square]nchess.Piece
	SideToMove   nchess.Color
	WhiteShort   bool
	WhiteLong    bool
	BlackShort   bool
	BlackLong    bool
	EnPassant    nchess.File
	HasEnPassant bool
}

func NewSetup() *Setup {
	return &Setup{Pieces: make(map[nchess.Square]nchess.Piece), SideToMove: nchess.White}
}

// SetupFromPosition copies the board and flags of pos.
func SetupFromPosition(pos *nchess.Position) *Setup {
	s := NewSetup()
	board := pos.Board()
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		if p := board.Piece(sq); p != nchess.NoPiece {
			s.Pieces[sq] = p
		}
	}
	fields := strings.Fields(pos.String())
	s.SideToMove = pos.Turn()
	if len(fields) > 2 {
		s.WhiteShort = strings.Contains(fields[2], "K")
		s.WhiteLong = strings.Contains(fields[2], "Q")
		s.BlackShort = strings.Contains(fields[2], "k")
		s.BlackLong = strings.Contains(fields[2], "q")
	}
	if len(fields) > 3 && fields[3] != "-" {
		if f := fields[3][0]; f >= 'a' && f <= 'h' {
			s.EnPassant = nchess.File(f - 'a')
			s.HasEnPassant = true
		}
	}
	return s
}

// SetupFromFEN parses fen into an editable board.
func SetupFromFEN(fen string) (*Setup, error) {
	pos, err := ParsePosition(fen)
	if err != nil {
		return nil, err
	}
	return SetupFromPosition(pos), nil
}

// FEN builds the position string. A castling right is written only when
// the king and that rook still stand on their home squares.
func (s *Setup) FEN() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			p, ok := s.Pieces[nchess.NewSquare(nchess.File(f), nchess.Rank(r))]
			if !ok || p == nchess.NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteString(pieceFENLetter(p))
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	stm := "w"
	if s.SideToMove == nchess.Black {
		stm = "b"
	}

	has := func(sq nchess.Square, p nchess.Piece) bool { return s.Pieces[sq] == p }
	whiteHome := has(nchess.E1, nchess.WhiteKing)
	blackHome := has(nchess.E8, nchess.BlackKing)
	castling := ""
	if s.WhiteShort && whiteHome && has(nchess.H1, nchess.WhiteRook) {
		castling += "K"
	}
	if s.WhiteLong && whiteHome && has(nchess.A1, nchess.WhiteRook) {
		castling += "Q"
	}
	if s.BlackShort && blackHome && has(nchess.H8, nchess.BlackRook) {
		castling += "k"
	}
	if s.BlackLong && blackHome && has(nchess.A8, nchess.BlackRook) {
		castling += "q"
	}
	if castling == "" {
		castling = "-"
	}

	ep := "-"
	if s.HasEnPassant {
		rank := "3"
		if s.SideToMove == nchess.White {
			rank = "6"
		}
		ep = s.EnPassant.String() + rank
	}

	return fmt.Sprintf("%s %s %s %s 0 1", sb.String(), stm, castling, ep)
}

// Validate reports why FEN() would be rejected, or nil.
func (s *Setup) Validate() error {
	_, err := ParsePosition(s.FEN())
	return err
}

func pieceFENLetter(p nchess.Piece) string {
	letter := strings.ToLower(pieceLetters[p.Type()])
	if p.Type() == nchess.Pawn {
		letter = "p"
	}
	if p.Color() == nchess.White {
		return strings.ToUpper(letter)
	}
	return letter
}
