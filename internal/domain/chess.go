package domain

import "time"

// ChessGame is a finished game as archived.
type ChessGame struct {
	ID           int64
	SessionUUID  string
	PlayerID     string
	HumanColor   string
	SkillLevel   int
	StartFEN     string
	Result       string // win | loss | draw, from the player's side
	ResultMethod string
	PGNResult    string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	OpeningECO   string
	OpeningName  string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// ChessProfile aggregates a player's results against the engine.
type ChessProfile struct {
	PlayerID         string
	Rating           int
	GamesPlayed      int
	Wins             int
	Losses           int
	Draws            int
	Streak           int
	StreakType       string
	LongestWinStreak int
	LastSkillLevel   int
	TotalPlayTime    time.Duration
	LastPlayedAt     time.Time
	UpdatedAt        time.Time
	CreatedAt        time.Time
}

// SavedSession is enough to rebuild an unfinished game by replaying its moves.
type SavedSession struct {
	SessionUUID string    `json:"session_uuid"`
	PlayerID    string    `json:"player_id"`
	StartFEN    string    `json:"start_fen"`
	Moves       []string  `json:"moves"`
	HumanColor  string    `json:"human_color"`
	SkillLevel  int       `json:"skill_level"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
