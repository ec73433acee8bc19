package chessdto

import "time"

type ChessProfile struct {
	PlayerID         string    `json:"player_id"`
	Rating           int       `json:"rating"`
	GamesPlayed      int       `json:"games_played"`
	Wins             int       `json:"wins"`
	Losses           int       `json:"losses"`
	Draws            int       `json:"draws"`
	Streak           int       `json:"streak"`
	StreakType       string    `json:"streak_type,omitempty"`
	LongestWinStreak int       `json:"longest_win_streak"`
	LastSkillLevel   int       `json:"last_skill_level,omitempty"`
	TotalPlayTimeMS  int64     `json:"total_play_time_ms"`
	LastPlayedAt     time.Time `json:"last_played_at,omitempty"`
}
