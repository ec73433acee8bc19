package chess

import (
	"math"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-engine-player/internal/domain"
)

const (
	defaultPlayerRating = 1200
	kFactor             = 24
)

const (
	resultWin  = "win"
	resultLoss = "loss"
	resultDraw = "draw"
)

// playerResult maps the board outcome to the human's point of view.
func playerResult(outcome nchess.Outcome, human nchess.Color) string {
	switch outcome {
	case nchess.Draw:
		return resultDraw
	case nchess.WhiteWon:
		if human == nchess.White {
			return resultWin
		}
		return resultLoss
	case nchess.BlackWon:
		if human == nchess.Black {
			return resultWin
		}
		return resultLoss
	default:
		return ""
	}
}

// applyGameResult folds one finished game into profile and returns the
// rating change. A nil profile starts at the default rating.
func applyGameResult(profile *domain.ChessProfile, playerID string, skill int, result string, played time.Duration, endedAt time.Time) (*domain.ChessProfile, int) {
	if profile == nil {
		profile = &domain.ChessProfile{
			PlayerID:  playerID,
			Rating:    defaultPlayerRating,
			CreatedAt: endedAt,
		}
	}
	prevRating := profile.Rating

	profile.GamesPlayed++
	profile.LastSkillLevel = skill
	profile.LastPlayedAt = endedAt
	profile.UpdatedAt = endedAt
	profile.TotalPlayTime += played

	var score float64
	switch result {
	case resultWin:
		profile.Wins++
		score = 1.0
	case resultLoss:
		profile.Losses++
		score = 0.0
	default:
		profile.Draws++
		score = 0.5
		result = resultDraw
	}

	if profile.StreakType == result {
		profile.Streak++
	} else {
		profile.Streak = 1
		profile.StreakType = result
	}
	if result == resultWin && profile.Streak > profile.LongestWinStreak {
		profile.LongestWinStreak = profile.Streak
	}

	engineRating := skillApproxRating(skill)
	expected := 1 / (1 + math.Pow(10, float64(engineRating-profile.Rating)/400))
	delta := int(math.Round(kFactor * (score - expected)))
	// a decisive game always moves the rating by at least one point
	switch {
	case result == resultWin && delta < 1:
		delta = 1
	case result == resultLoss && delta > -1:
		delta = -1
	}
	profile.Rating += delta

	return profile, profile.Rating - prevRating
}

// skillApproxRating is a rough Elo for an engine Skill Level of 1..20.
func skillApproxRating(skill int) int {
	if skill < 1 {
		skill = 1
	}
	if skill > 20 {
		skill = 20
	}
	return 800 + skill*100
}
