package chess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-engine-player/internal/domain"
)

var ErrDuplicateGame = domain.ErrDuplicateGame

// Repository archives finished games and per-player profiles.
type Repository interface {
	InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error)
	GetRecentGames(ctx context.Context, playerID string, limit int) ([]*domain.ChessGame, error)
	GetGame(ctx context.Context, id int64, playerID string) (*domain.ChessGame, error)
	GetGameBySession(ctx context.Context, sessionUUID string, playerID string) (*domain.ChessGame, error)
	GetProfile(ctx context.Context, playerID string) (*domain.ChessProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.ChessProfile) error
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chess_games (
	id            BIGSERIAL PRIMARY KEY,
	session_uuid  TEXT NOT NULL UNIQUE,
	player_id     TEXT NOT NULL,
	human_color   TEXT NOT NULL,
	skill_level   INT NOT NULL,
	start_fen     TEXT NOT NULL,
	result        TEXT NOT NULL,
	result_method TEXT NOT NULL,
	pgn_result    TEXT NOT NULL,
	moves_uci     JSONB NOT NULL,
	moves_san     JSONB NOT NULL,
	pgn           TEXT NOT NULL,
	opening_eco   TEXT NOT NULL DEFAULT '',
	opening_name  TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT
);
CREATE INDEX IF NOT EXISTS chess_games_player_ended ON chess_games (player_id, ended_at DESC);
CREATE TABLE IF NOT EXISTS chess_profiles (
	player_id          TEXT PRIMARY KEY,
	rating             INT NOT NULL,
	games_played       INT NOT NULL,
	wins               INT NOT NULL,
	losses             INT NOT NULL,
	draws              INT NOT NULL,
	streak             INT NOT NULL,
	streak_type        TEXT NOT NULL,
	longest_win_streak INT NOT NULL,
	last_skill_level   INT NOT NULL,
	total_play_ms      BIGINT NOT NULL,
	last_played_at     TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);`

const gameColumns = `
	id,
	session_uuid,
	player_id,
	human_color,
	skill_level,
	start_fen,
	result,
	result_method,
	pgn_result,
	moves_uci,
	moves_san,
	pgn,
	opening_eco,
	opening_name,
	started_at,
	ended_at,
	duration_ms`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Migrate creates the archive tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate chess schema: %w", err)
	}
	return nil
}

func (r *repository) InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}

	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_games (
			session_uuid,
			player_id,
			human_color,
			skill_level,
			start_fen,
			result,
			result_method,
			pgn_result,
			moves_uci,
			moves_san,
			pgn,
			opening_eco,
			opening_name,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.PlayerID,
		game.HumanColor,
		game.SkillLevel,
		game.StartFEN,
		game.Result,
		game.ResultMethod,
		game.PGNResult,
		movesUCI,
		movesSAN,
		game.PGN,
		game.OpeningECO,
		game.OpeningName,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) GetRecentGames(ctx context.Context, playerID string, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE player_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.ChessGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *repository) GetGame(ctx context.Context, id int64, playerID string) (*domain.ChessGame, error) {
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE id = $1 AND player_id = $2`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, id, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

func (r *repository) GetGameBySession(ctx context.Context, sessionUUID string, playerID string) (*domain.ChessGame, error) {
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE session_uuid = $1 AND player_id = $2
		LIMIT 1`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, sessionUUID, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return game, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.ChessGame, error) {
	var (
		game         domain.ChessGame
		movesUCIJSON []byte
		movesSANJSON []byte
		durationMS   sql.NullInt64
	)
	err := row.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.PlayerID,
		&game.HumanColor,
		&game.SkillLevel,
		&game.StartFEN,
		&game.Result,
		&game.ResultMethod,
		&game.PGNResult,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.OpeningECO,
		&game.OpeningName,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan chess game: %w", err)
	}
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func (r *repository) GetProfile(ctx context.Context, playerID string) (*domain.ChessProfile, error) {
	const query = `
		SELECT
			player_id,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			longest_win_streak,
			last_skill_level,
			total_play_ms,
			last_played_at,
			updated_at,
			created_at
		FROM chess_profiles
		WHERE player_id = $1`

	var (
		profile domain.ChessProfile
		playMS  int64
	)
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&profile.PlayerID,
		&profile.Rating,
		&profile.GamesPlayed,
		&profile.Wins,
		&profile.Losses,
		&profile.Draws,
		&profile.Streak,
		&profile.StreakType,
		&profile.LongestWinStreak,
		&profile.LastSkillLevel,
		&playMS,
		&profile.LastPlayedAt,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select chess profile: %w", err)
	}
	profile.TotalPlayTime = time.Duration(playMS) * time.Millisecond
	return &profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.ChessProfile) error {
	if profile == nil {
		return fmt.Errorf("nil chess profile payload")
	}
	const query = `
		INSERT INTO chess_profiles (
			player_id,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			longest_win_streak,
			last_skill_level,
			total_play_ms,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			longest_win_streak = EXCLUDED.longest_win_streak,
			last_skill_level = EXCLUDED.last_skill_level,
			total_play_ms = EXCLUDED.total_play_ms,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.PlayerID,
		profile.Rating,
		profile.GamesPlayed,
		profile.Wins,
		profile.Losses,
		profile.Draws,
		profile.Streak,
		profile.StreakType,
		profile.LongestWinStreak,
		profile.LastSkillLevel,
		profile.TotalPlayTime.Milliseconds(),
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chess profile: %w", err)
	}
	return nil
}
