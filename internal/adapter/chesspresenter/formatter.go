package chesspresenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

const (
	historyHeader = "Recent games"
	profileHeader = "Chess profile"

	recentMovesLimit = 6
)

// Formatter renders DTOs as plain text for terminals and logs.
type Formatter struct {
	loc *time.Location
}

// NewFormatter formats timestamps in loc; nil means UTC.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Board draws the displayed position from the human's side, followed by
// the status line and the latest moves.
func (f *Formatter) Board(state *chessdto.SessionState) string {
	if state == nil {
		return ""
	}
	rows := boardRows(state.FEN)
	files := "abcdefgh"
	flipped := state.HumanColor == "black"

	var sb strings.Builder
	for i := 0; i < 8; i++ {
		r := 7 - i
		if flipped {
			r = i
		}
		sb.WriteString(fmt.Sprintf("%d ", r+1))
		for j := 0; j < 8; j++ {
			file := j
			if flipped {
				file = 7 - j
			}
			sb.WriteByte(rows[r][file])
			if j < 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for j := 0; j < 8; j++ {
		file := j
		if flipped {
			file = 7 - j
		}
		sb.WriteByte(files[file])
		if j < 7 {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString("\n\n")
	sb.WriteString(f.Status(state))
	return sb.String()
}

func (f *Formatter) Status(state *chessdto.SessionState) string {
	if state == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(state.Status)
	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("• You: %s | To move: %s | Moves: %d\n", state.HumanColor, state.Turn, state.MoveCount))
	if state.ViewMode {
		sb.WriteString(fmt.Sprintf("• Viewing position %d\n", state.ViewIndex))
	}
	if state.OpeningName != "" {
		sb.WriteString(fmt.Sprintf("• Opening: %s %s\n", state.OpeningECO, state.OpeningName))
	}
	sb.WriteString("• Material: ")
	sb.WriteString(formatMaterial(state.Material))
	sb.WriteByte('\n')
	sb.WriteString("• Last moves: ")
	sb.WriteString(formatRecentMoves(recordNotations(state.Records)))
	if !state.EngineAvailable {
		sb.WriteString("\n• Engine offline")
	}
	return sb.String()
}

func (f *Formatter) History(games []*chessdto.ChessGame) string {
	var sb strings.Builder
	sb.WriteString(historyHeader)
	sb.WriteByte('\n')
	if len(games) == 0 {
		sb.WriteString("No finished games yet.")
		return sb.String()
	}
	for _, game := range games {
		movesCount := len(game.MovesSAN)
		if movesCount == 0 {
			movesCount = len(game.MovesUCI)
		}
		sb.WriteString(fmt.Sprintf("• #%d %s %s, skill %d (%d plies)\n",
			game.ID, formatResultBadge(game.Result), f.shortTime(game.EndedAt), game.SkillLevel, movesCount))
		if d := formatGameDuration(time.Duration(game.DurationMS) * time.Millisecond); d != "" {
			sb.WriteString(fmt.Sprintf("  duration %s\n", d))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Game(game *chessdto.ChessGame) string {
	if game == nil {
		return "Game not found."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Game #%d\n", game.ID))
	sb.WriteString(fmt.Sprintf("• Result: %s (%s)\n", formatResultBadge(game.Result), game.ResultMethod))
	sb.WriteString(fmt.Sprintf("• Skill level: %d, played as %s\n", game.SkillLevel, game.HumanColor))
	if game.OpeningName != "" {
		sb.WriteString(fmt.Sprintf("• Opening: %s %s\n", game.OpeningECO, game.OpeningName))
	}
	if !game.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("• Started: %s\n", f.shortTime(game.StartedAt)))
	}
	if d := formatGameDuration(time.Duration(game.DurationMS) * time.Millisecond); d != "" {
		sb.WriteString(fmt.Sprintf("• Duration: %s\n", d))
	}
	if game.PGN != "" {
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(game.PGN))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *Formatter) Profile(profile *chessdto.ChessProfile) string {
	if profile == nil {
		return "No chess profile yet."
	}
	var sb strings.Builder
	sb.WriteString(profileHeader)
	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("• Rating: %d\n", profile.Rating))
	sb.WriteString(fmt.Sprintf("• Record: %dW %dL %dD (%d games)\n", profile.Wins, profile.Losses, profile.Draws, profile.GamesPlayed))
	if profile.Streak > 1 {
		sb.WriteString(fmt.Sprintf("• Streak: %d %s\n", profile.Streak, formatStreakSuffix(profile.StreakType)))
	}
	if profile.LongestWinStreak > 0 {
		sb.WriteString(fmt.Sprintf("• Longest win streak: %d\n", profile.LongestWinStreak))
	}
	if !profile.LastPlayedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("• Last game: %s\n", f.shortTime(profile.LastPlayedAt)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) shortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	loc := time.UTC
	if f != nil && f.loc != nil {
		loc = f.loc
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// boardRows expands the placement field into rank-indexed rows of piece
// letters, '.' for empty squares. rows[0] is rank 1.
func boardRows(fen string) [8][]byte {
	var rows [8][]byte
	for i := range rows {
		rows[i] = []byte("........")
	}
	placement, _, _ := strings.Cut(fen, " ")
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return rows
	}
	for i, text := range ranks {
		r := 7 - i
		file := 0
		for _, c := range text {
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			if file < 8 {
				rows[r][file] = byte(c)
			}
			file++
		}
	}
	return rows
}

func recordNotations(records []chessdto.MoveRecord) []string {
	var out []string
	for _, rec := range records {
		if rec.White != nil {
			out = append(out, fmt.Sprintf("%d. %s", rec.Number, rec.White.Notation))
		}
		if rec.Black != nil {
			if rec.White == nil {
				out = append(out, fmt.Sprintf("%d... %s", rec.Number, rec.Black.Notation))
			} else {
				out = append(out, rec.Black.Notation)
			}
		}
	}
	return out
}

func formatStreakSuffix(streakType string) string {
	switch strings.ToLower(strings.TrimSpace(streakType)) {
	case "win":
		return "wins"
	case "loss":
		return "losses"
	case "draw":
		return "draws"
	default:
		return "games"
	}
}

func formatRecentMoves(moves []string) string {
	if len(moves) == 0 {
		return "-"
	}
	if len(moves) <= recentMovesLimit {
		return strings.Join(moves, " ")
	}
	return "… " + strings.Join(moves[len(moves)-recentMovesLimit:], " ")
}

func formatResultBadge(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win":
		return "✅ win"
	case "loss":
		return "❌ loss"
	case "draw":
		return "🤝 draw"
	default:
		return "▫️ unfinished"
	}
}

func formatGameDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func formatMaterial(score chessdto.MaterialScore) string {
	diff := score.White - score.Black
	switch {
	case diff > 0:
		return fmt.Sprintf("%d-%d (white +%d)", score.White, score.Black, diff)
	case diff < 0:
		return fmt.Sprintf("%d-%d (black +%d)", score.White, score.Black, -diff)
	default:
		return fmt.Sprintf("%d-%d (even)", score.White, score.Black)
	}
}
