package chessdto

import "time"

type ChessGame struct {
	ID           int64     `json:"id"`
	SessionUUID  string    `json:"session_id"`
	HumanColor   string    `json:"human_color"`
	SkillLevel   int       `json:"skill_level"`
	StartFEN     string    `json:"start_fen"`
	Result       string    `json:"result"`
	ResultMethod string    `json:"result_method"`
	PGNResult    string    `json:"pgn_result"`
	MovesUCI     []string  `json:"moves_uci"`
	MovesSAN     []string  `json:"moves_san"`
	PGN          string    `json:"pgn,omitempty"`
	OpeningECO   string    `json:"opening_eco,omitempty"`
	OpeningName  string    `json:"opening_name,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMS   int64     `json:"duration_ms"`
}
