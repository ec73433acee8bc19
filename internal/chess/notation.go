package chess

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// MoveDetails is the notation produced for one committed ply.
type MoveDetails struct {
	Notation string
	// Display omits the piece letter; the UI draws the piece instead.
	Display string
	Piece   nchess.PieceType
	Capture bool
}

var pieceLetters = map[nchess.PieceType]string{
	nchess.Pawn:   "",
	nchess.Knight: "N",
	nchess.Bishop: "B",
	nchess.Rook:   "R",
	nchess.Queen:  "Q",
	nchess.King:   "K",
}

// Describe builds the algebraic notation of mv as played from pos.
// pos must be the position before the move.
func Describe(pos *nchess.Position, mv *nchess.Move) MoveDetails {
	board := pos.Board()
	from, to := mv.S1(), mv.S2()

	piece := board.Piece(from)
	if piece == nchess.NoPiece {
		coord := CoordinateString(mv)
		return MoveDetails{Notation: coord, Display: coord, Piece: nchess.NoPieceType}
	}
	kind := piece.Type()

	if kind == nchess.King && from.File() == nchess.FileE {
		switch to.File() {
		case nchess.FileG:
			return MoveDetails{Notation: "O-O", Display: "O-O", Piece: kind}
		case nchess.FileC:
			return MoveDetails{Notation: "O-O-O", Display: "O-O-O", Piece: kind}
		}
	}

	capture := board.Piece(to) != nchess.NoPiece

	var dest string
	switch {
	case capture && kind == nchess.Pawn:
		dest = from.File().String() + "x" + to.String()
	case capture:
		dest = "x" + to.String()
	default:
		dest = to.String()
	}

	legal := pos.ValidMoves()
	disambiguation := ""
	switch kind {
	case nchess.Knight, nchess.Bishop, nchess.Rook, nchess.Queen:
		disambiguation = disambiguate(board, legal, piece, from, to)
	}

	promo := ""
	if mv.Promo() != nchess.NoPieceType {
		promo = "=" + pieceLetters[mv.Promo()]
	}

	display := disambiguation + dest + promo
	notation := pieceLetters[kind] + display

	suffix := checkSuffix(pos, legal, mv)
	return MoveDetails{
		Notation: notation + suffix,
		Display:  display + suffix,
		Piece:    kind,
		Capture:  capture,
	}
}

// disambiguate depends only on the set of rival sources, not on move order.
func disambiguate(board *nchess.Board, legal []nchess.Move, piece nchess.Piece, from, to nchess.Square) string {
	sharesFile, sharesRank, rivals := false, false, false
	for i := range legal {
		other := legal[i].S1()
		if legal[i].S2() != to || other == from {
			continue
		}
		if board.Piece(other) != piece {
			continue
		}
		rivals = true
		if other.File() == from.File() {
			sharesFile = true
		}
		if other.Rank() == from.Rank() {
			sharesRank = true
		}
	}
	switch {
	case !rivals:
		return ""
	case !sharesFile:
		return from.File().String()
	case !sharesRank:
		return from.Rank().String()
	default:
		return from.String()
	}
}

// checkSuffix reads the board after the move rather than the generator's
// Check tag, which is not reset between promotion choices on one square.
func checkSuffix(pos *nchess.Position, legal []nchess.Move, mv *nchess.Move) string {
	// the legal copy carries the castle and en passant tags Update relies on.
	played := mv
	for i := range legal {
		if sameMove(&legal[i], mv) {
			played = &legal[i]
			break
		}
	}
	next := advance(pos, played)
	if !kingAttacked(next.Board(), next.Turn()) {
		return ""
	}
	if len(next.ValidMoves()) == 0 {
		return "#"
	}
	return "+"
}

// advance plays mv on pos. Update copies the move's Check tag into the new
// position, so it is decoded again when the tag disagrees with the board.
func advance(pos *nchess.Position, mv *nchess.Move) *nchess.Position {
	next := pos.Update(mv)
	if mv.HasTag(nchess.Check) == kingAttacked(next.Board(), next.Turn()) {
		return next
	}
	opt, err := nchess.FEN(next.String())
	if err != nil {
		return next
	}
	return nchess.NewGame(opt).Position()
}

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	lines       = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonals   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// kingAttacked reports whether side's king is attacked by the other color.
func kingAttacked(board *nchess.Board, side nchess.Color) bool {
	king := nchess.NewPiece(nchess.King, side)
	kf, kr := -1, -1
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		if board.Piece(sq) == king {
			kf, kr = int(sq.File()), int(sq.Rank())
			break
		}
	}
	if kf < 0 {
		return false
	}
	enemy := side.Other()
	at := func(f, r int) nchess.Piece {
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return nchess.NoPiece
		}
		return board.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
	}

	pawnRank := kr + 1
	if enemy == nchess.White {
		pawnRank = kr - 1
	}
	pawn := nchess.NewPiece(nchess.Pawn, enemy)
	if at(kf-1, pawnRank) == pawn || at(kf+1, pawnRank) == pawn {
		return true
	}
	for _, d := range knightSteps {
		if at(kf+d[0], kr+d[1]) == nchess.NewPiece(nchess.Knight, enemy) {
			return true
		}
	}
	for _, d := range kingSteps {
		if at(kf+d[0], kr+d[1]) == nchess.NewPiece(nchess.King, enemy) {
			return true
		}
	}
	slides := func(dirs [4][2]int, kind nchess.PieceType) bool {
		for _, d := range dirs {
			for f, r := kf+d[0], kr+d[1]; f >= 0 && f <= 7 && r >= 0 && r <= 7; f, r = f+d[0], r+d[1] {
				p := at(f, r)
				if p == nchess.NoPiece {
					continue
				}
				if p.Color() == enemy && (p.Type() == kind || p.Type() == nchess.Queen) {
					return true
				}
				break
			}
		}
		return false
	}
	return slides(lines, nchess.Rook) || slides(diagonals, nchess.Bishop)
}

func sameMove(a, b *nchess.Move) bool {
	return a.S1() == b.S1() && a.S2() == b.S2() && a.Promo() == b.Promo()
}

var promoLetters = map[nchess.PieceType]string{
	nchess.Queen:  "q",
	nchess.Rook:   "r",
	nchess.Bishop: "b",
	nchess.Knight: "n",
}

// CoordinateString renders mv in coordinate form, e.g. "e7e8q".
func CoordinateString(mv *nchess.Move) string {
	var sb strings.Builder
	sb.WriteString(mv.S1().String())
	sb.WriteString(mv.S2().String())
	sb.WriteString(promoLetters[mv.Promo()])
	return sb.String()
}
