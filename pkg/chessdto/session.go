package chessdto

import "time"

type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// MoveHalf is one side's move as shown in the move list.
type MoveHalf struct {
	Notation string `json:"notation"`
	Display  string `json:"display"`
	Piece    string `json:"piece"`
	Capture  bool   `json:"capture,omitempty"`
}

type MoveRecord struct {
	Number int       `json:"number"`
	White  *MoveHalf `json:"white,omitempty"`
	Black  *MoveHalf `json:"black,omitempty"`
}

type Promotion struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Choices []string `json:"choices"`
}

// SessionState is the board view sent to clients after every change.
type SessionState struct {
	SessionID        string        `json:"session_id"`
	FEN              string        `json:"fen"`
	LiveFEN          string        `json:"live_fen"`
	StartFEN         string        `json:"start_fen"`
	Turn             string        `json:"turn"`
	HumanColor       string        `json:"human_color"`
	Selected         string        `json:"selected,omitempty"`
	Destinations     []string      `json:"destinations,omitempty"`
	Status           string        `json:"status"`
	Thinking         bool          `json:"thinking"`
	PendingRequestID uint64        `json:"pending_request_id,omitempty"`
	Outcome          string        `json:"outcome"`
	OutcomeMeta      string        `json:"outcome_method,omitempty"`
	Records          []MoveRecord  `json:"records"`
	MovesUCI         []string      `json:"moves_uci"`
	MoveCount        int           `json:"move_count"`
	ViewMode         bool          `json:"view_mode"`
	ViewIndex        int           `json:"view_index"`
	Promotion        *Promotion    `json:"promotion,omitempty"`
	Material         MaterialScore `json:"material"`
	OpeningECO       string        `json:"opening_eco,omitempty"`
	OpeningName      string        `json:"opening_name,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	EngineAvailable  bool          `json:"engine_available"`
}
