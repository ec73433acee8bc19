package chess

import (
	nchess "github.com/corentings/chess/v2"
)

// History keeps one position per ply plus the initial position.
// len(positions) == len(moves)+1 holds after every exported call.
type History struct {
	positions []*nchess.Position
	moves     []nchess.Move
}

func NewHistory(start *nchess.Position) *History {
	return &History{positions: []*nchess.Position{start}}
}

// Push records mv and the position it produced.
func (h *History) Push(next *nchess.Position, mv nchess.Move) {
	h.positions = append(h.positions, next)
	h.moves = append(h.moves, mv)
}

// Pop removes the most recent ply. The initial position is never removed.
func (h *History) Pop() (nchess.Move, bool) {
	if len(h.moves) == 0 {
		return nchess.Move{}, false
	}
	last := h.moves[len(h.moves)-1]
	h.moves = h.moves[:len(h.moves)-1]
	h.positions = h.positions[:len(h.positions)-1]
	return last, true
}

// Plies is the number of moves played.
func (h *History) Plies() int { return len(h.moves) }

// Len is the number of stored positions.
func (h *History) Len() int { return len(h.positions) }

func (h *History) Current() *nchess.Position { return h.positions[len(h.positions)-1] }

func (h *History) Start() *nchess.Position { return h.positions[0] }

func (h *History) At(index int) (*nchess.Position, bool) {
	if index < 0 || index >= len(h.positions) {
		return nil, false
	}
	return h.positions[index], true
}

// Moves returns a copy of the move log.
func (h *History) Moves() []nchess.Move {
	return append([]nchess.Move(nil), h.moves...)
}

// MovesUCI renders the move log in coordinate form.
func (h *History) MovesUCI() []string {
	out := make([]string, len(h.moves))
	for i := range h.moves {
		out[i] = CoordinateString(&h.moves[i])
	}
	return out
}
