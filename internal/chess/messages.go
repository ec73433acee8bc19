package chess

import (
	"strings"
	"text/template"
)

// Catalog renders status message templates. *msgcat.Catalog satisfies it.
type Catalog interface {
	Render(key string, data any) (string, error)
}

const (
	msgWelcome    = "status.welcome"
	msgReset      = "status.reset"
	msgLoaded     = "status.loaded"
	msgPlayingAs  = "status.playing_as"
	msgThinking   = "status.thinking"
	msgPromotion  = "status.promotion"
	msgMove       = "status.move"
	msgEngineMove = "status.engine_move"
	msgEngineNone = "status.engine_no_move"
	msgUndoOwn    = "status.undo_own"
	msgUndoPair   = "status.undo_pair"
	msgUndoLast   = "status.undo_last"
	msgUndoNone   = "status.undo_none"
	msgCheckmate  = "status.checkmate"
	msgDraw       = "status.draw"
)

// fallbackMessages mirror messages.en.yaml so a Session works without a catalog.
var fallbackMessages = map[string]string{
	msgWelcome:    "Welcome to Chess Engine Player! Make a move to begin.",
	msgReset:      "Game reset. Make a move to begin.",
	msgLoaded:     "Custom position loaded. Make a move to begin.",
	msgPlayingAs:  "You are playing as {{.Color}}.",
	msgThinking:   "Engine is thinking...",
	msgPromotion:  "Select promotion piece",
	msgMove:       "Move: {{.Move}}",
	msgEngineMove: "Engine moved: {{.Move}}",
	msgEngineNone: "Engine returned no playable move ({{.Move}}). Undo, flip sides or reset to continue.",
	msgUndoOwn:    "Undid your move.",
	msgUndoPair:   "Undid last move pair.",
	msgUndoLast:   "Undid last move.",
	msgUndoNone:   "No moves to undo.",
	msgCheckmate:  "Checkmate! {{.Winner}} wins.",
	msgDraw:       "Draw by {{.Method}}.",
}

func (s *Session) message(key string, data map[string]any) string {
	if s.catalog != nil {
		if text, err := s.catalog.Render(key, data); err == nil {
			return text
		}
	}
	raw := fallbackMessages[key]
	t, err := template.New(key).Option("missingkey=error").Parse(raw)
	if err != nil {
		return raw
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return raw
	}
	return b.String()
}
