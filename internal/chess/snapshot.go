package chess

import (
	nchess "github.com/corentings/chess/v2"
)

// Snapshot is a read-only copy of everything a UI needs to draw the game.
type Snapshot struct {
	FEN          string
	LiveFEN      string
	StartFEN     string
	Turn         nchess.Color
	Selected     nchess.Square
	Destinations []nchess.Square
	Status       string
	Thinking     bool
	Pending      PendingMove
	HumanColor   nchess.Color
	Result       Result
	Records      []MoveRecord
	MovesUCI     []string
	ViewMode     bool
	ViewIndex    int
	Promotion    *Promotion
	Plies        int
}

func (s *Session) Snapshot() Snapshot {
	live := s.history.Current()
	snap := Snapshot{
		FEN:        PositionString(s.DisplayedPosition()),
		LiveFEN:    PositionString(live),
		StartFEN:   PositionString(s.history.Start()),
		Turn:       live.Turn(),
		Selected:   s.selected,
		Status:     s.status,
		Thinking:   s.Thinking(),
		Pending:    s.pending,
		HumanColor: s.human,
		Result:     s.Result(),
		Records:    copyRecords(s.records),
		MovesUCI:   s.history.MovesUCI(),
		ViewMode:   s.viewMode,
		ViewIndex:  s.viewIndex,
		Plies:      s.history.Plies(),
	}
	for i := range s.destinations {
		snap.Destinations = append(snap.Destinations, s.destinations[i].S2())
	}
	if s.promotion != nil {
		p := *s.promotion
		snap.Promotion = &p
	}
	return snap
}
