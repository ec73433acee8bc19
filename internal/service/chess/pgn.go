package chess

import (
	"fmt"
	"strings"
	"time"

	corechess "github.com/park285/cheese-engine-player/internal/chess"
)

const standardStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type pgnMeta struct {
	White       string
	Black       string
	Date        time.Time
	Result      string
	Termination string
	StartFEN    string
	ECO         string
	Opening     string
}

// buildPGN writes the records as export-style PGN. A game that starts with
// black to move opens with "1...".
func buildPGN(meta pgnMeta, records []corechess.MoveRecord) string {
	var b strings.Builder
	date := meta.Date
	if date.IsZero() {
		date = time.Now()
	}
	result := meta.Result
	if result == "" {
		result = "*"
	}

	b.WriteString("[Event \"Engine game\"]\n")
	b.WriteString("[Site \"local\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(meta.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(meta.Black)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", result))
	if fen := strings.TrimSpace(meta.StartFEN); fen != "" && fen != standardStartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(fen)))
	}
	if meta.ECO != "" {
		b.WriteString(fmt.Sprintf("[ECO \"%s\"]\n", sanitizePGN(meta.ECO)))
	}
	if meta.Opening != "" {
		b.WriteString(fmt.Sprintf("[Opening \"%s\"]\n", sanitizePGN(meta.Opening)))
	}
	if strings.TrimSpace(meta.Termination) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(meta.Termination)))
	}
	b.WriteString("\n")

	for _, rec := range records {
		switch {
		case rec.White != nil:
			b.WriteString(fmt.Sprintf("%d. %s ", rec.Number, rec.White.Notation))
			if rec.Black != nil {
				b.WriteString(rec.Black.Notation)
				b.WriteString(" ")
			}
		case rec.Black != nil:
			b.WriteString(fmt.Sprintf("%d... %s ", rec.Number, rec.Black.Notation))
		}
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

// sanMoves flattens records into the SAN list stored with the archive.
func sanMoves(records []corechess.MoveRecord) []string {
	out := make([]string, 0, len(records)*2)
	for _, rec := range records {
		if rec.White != nil {
			out = append(out, rec.White.Notation)
		}
		if rec.Black != nil {
			out = append(out, rec.Black.Notation)
		}
	}
	return out
}
