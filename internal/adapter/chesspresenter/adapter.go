package chesspresenter

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	corechess "github.com/park285/cheese-engine-player/internal/chess"
	"github.com/park285/cheese-engine-player/internal/domain"
	svc "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

var promotionChoices = []string{"queen", "rook", "bishop", "knight"}

func ToDTOState(s svc.Snapshot) *chessdto.SessionState {
	state := &chessdto.SessionState{
		SessionID:       s.SessionID,
		FEN:             s.FEN,
		LiveFEN:         s.LiveFEN,
		StartFEN:        s.StartFEN,
		Turn:            colorToken(s.Turn),
		HumanColor:      colorToken(s.HumanColor),
		Selected:        squareToken(s.Selected),
		Status:          s.Status,
		Thinking:        s.Thinking,
		Outcome:         s.Result.PGNResult(),
		OutcomeMeta:     corechess.MethodLabel(s.Result.Method),
		Records:         toDTORecords(s.Records),
		MovesUCI:        append([]string{}, s.MovesUCI...),
		MoveCount:       s.Plies,
		ViewMode:        s.ViewMode,
		ViewIndex:       s.ViewIndex,
		Material:        MaterialFromFEN(s.LiveFEN),
		OpeningECO:      s.OpeningECO,
		OpeningName:     s.OpeningName,
		StartedAt:       s.StartedAt,
		EngineAvailable: s.EngineAvailable,
	}
	if s.Pending.Kind == corechess.PendingAwaitingReply {
		state.PendingRequestID = s.Pending.RequestID
	}
	for _, sq := range s.Destinations {
		state.Destinations = append(state.Destinations, squareToken(sq))
	}
	if p := s.Promotion; p != nil {
		state.Promotion = &chessdto.Promotion{
			From:    squareToken(p.From),
			To:      squareToken(p.To),
			Choices: append([]string(nil), promotionChoices...),
		}
	}
	return state
}

func toDTORecords(records []corechess.MoveRecord) []chessdto.MoveRecord {
	out := make([]chessdto.MoveRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, chessdto.MoveRecord{
			Number: rec.Number,
			White:  toDTOHalf(rec.White),
			Black:  toDTOHalf(rec.Black),
		})
	}
	return out
}

func toDTOHalf(d *corechess.MoveDetails) *chessdto.MoveHalf {
	if d == nil {
		return nil
	}
	return &chessdto.MoveHalf{
		Notation: d.Notation,
		Display:  d.Display,
		Piece:    pieceTypeToToken(d.Piece),
		Capture:  d.Capture,
	}
}

func SelectOutcomeToken(o corechess.SelectOutcome) string {
	switch o {
	case corechess.Moved:
		return "moved"
	case corechess.AwaitingPromotion:
		return "awaiting_promotion"
	default:
		return "not_moved"
	}
}

func colorToken(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

func squareToken(sq nchess.Square) string {
	if sq == nchess.NoSquare {
		return ""
	}
	return sq.String()
}

func pieceTypeToToken(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "queen"
	case nchess.Rook:
		return "rook"
	case nchess.Bishop:
		return "bishop"
	case nchess.Knight:
		return "knight"
	case nchess.Pawn:
		return "pawn"
	case nchess.King:
		return "king"
	default:
		return ""
	}
}

// MaterialFromFEN sums piece values per side (P=1, N=B=3, R=5, Q=9).
func MaterialFromFEN(fen string) chessdto.MaterialScore {
	var score chessdto.MaterialScore
	placement, _, _ := strings.Cut(fen, " ")
	for _, r := range placement {
		v := 0
		switch r {
		case 'p', 'P':
			v = 1
		case 'n', 'N', 'b', 'B':
			v = 3
		case 'r', 'R':
			v = 5
		case 'q', 'Q':
			v = 9
		}
		if r >= 'a' && r <= 'z' {
			score.Black += v
		} else {
			score.White += v
		}
	}
	return score
}

// FromSetupRequest builds an editable board from the request.
func FromSetupRequest(req chessdto.SetupRequest) (*corechess.Setup, error) {
	setup := corechess.NewSetup()
	for square, letter := range req.Pieces {
		sq, ok := corechess.ParseSquare(square)
		if !ok {
			return nil, fmt.Errorf("unknown square %q", square)
		}
		piece, ok := pieceFromLetter(letter)
		if !ok {
			return nil, fmt.Errorf("unknown piece %q on %s", letter, square)
		}
		setup.Pieces[sq] = piece
	}
	if strings.TrimSpace(req.SideToMove) != "" {
		color, ok := corechess.ParseColor(req.SideToMove)
		if !ok {
			return nil, fmt.Errorf("unknown side to move %q", req.SideToMove)
		}
		setup.SideToMove = color
	}
	setup.WhiteShort = req.WhiteShort
	setup.WhiteLong = req.WhiteLong
	setup.BlackShort = req.BlackShort
	setup.BlackLong = req.BlackLong
	if ep := strings.ToLower(strings.TrimSpace(req.EnPassant)); ep != "" {
		if len(ep) != 1 || ep[0] < 'a' || ep[0] > 'h' {
			return nil, fmt.Errorf("unknown en passant file %q", req.EnPassant)
		}
		setup.EnPassant = nchess.File(ep[0] - 'a')
		setup.HasEnPassant = true
	}
	return setup, nil
}

func pieceFromLetter(letter string) (nchess.Piece, bool) {
	letter = strings.TrimSpace(letter)
	if len(letter) != 1 {
		return nchess.NoPiece, false
	}
	color := nchess.White
	if letter != strings.ToUpper(letter) {
		color = nchess.Black
	}
	var kind nchess.PieceType
	switch strings.ToLower(letter) {
	case "k":
		kind = nchess.King
	case "q":
		kind = nchess.Queen
	case "r":
		kind = nchess.Rook
	case "b":
		kind = nchess.Bishop
	case "n":
		kind = nchess.Knight
	case "p":
		kind = nchess.Pawn
	default:
		return nchess.NoPiece, false
	}
	return nchess.NewPiece(kind, color), true
}

func ToDTOProfile(p *domain.ChessProfile) *chessdto.ChessProfile {
	if p == nil {
		return nil
	}
	return &chessdto.ChessProfile{
		PlayerID:         p.PlayerID,
		Rating:           p.Rating,
		GamesPlayed:      p.GamesPlayed,
		Wins:             p.Wins,
		Losses:           p.Losses,
		Draws:            p.Draws,
		Streak:           p.Streak,
		StreakType:       p.StreakType,
		LongestWinStreak: p.LongestWinStreak,
		LastSkillLevel:   p.LastSkillLevel,
		TotalPlayTimeMS:  p.TotalPlayTime.Milliseconds(),
		LastPlayedAt:     p.LastPlayedAt,
	}
}

func ToDTOGames(list []*domain.ChessGame) []*chessdto.ChessGame {
	out := make([]*chessdto.ChessGame, 0, len(list))
	for _, g := range list {
		if dto := ToDTOGame(g); dto != nil {
			// list view stays small
			dto.PGN = ""
			out = append(out, dto)
		}
	}
	return out
}

func ToDTOGame(g *domain.ChessGame) *chessdto.ChessGame {
	if g == nil {
		return nil
	}
	return &chessdto.ChessGame{
		ID:           g.ID,
		SessionUUID:  g.SessionUUID,
		HumanColor:   g.HumanColor,
		SkillLevel:   g.SkillLevel,
		StartFEN:     g.StartFEN,
		Result:       g.Result,
		ResultMethod: g.ResultMethod,
		PGNResult:    g.PGNResult,
		MovesUCI:     append([]string(nil), g.MovesUCI...),
		MovesSAN:     append([]string(nil), g.MovesSAN...),
		PGN:          g.PGN,
		OpeningECO:   g.OpeningECO,
		OpeningName:  g.OpeningName,
		StartedAt:    g.StartedAt,
		EndedAt:      g.EndedAt,
		DurationMS:   g.Duration.Milliseconds(),
	}
}
