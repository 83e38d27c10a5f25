package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/chess-coach/internal/domain"
)

var ErrDuplicateGame = errors.New("saved game already exists")

type Repository interface {
	InsertGame(ctx context.Context, game *domain.SavedGame) (int64, error)
	GetRecentGames(ctx context.Context, playerID string, limit int) ([]*domain.SavedGame, error)
	GetGame(ctx context.Context, id int64, playerID string) (*domain.SavedGame, error)
	GetGameBySession(ctx context.Context, sessionID string, playerID string) (*domain.SavedGame, error)
	GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const savedGameColumns = `
		id,
		session_id,
		player_id,
		opening_code,
		opening_name,
		result,
		result_method,
		moves_uci,
		moves_san,
		pgn,
		final_fen,
		started_at,
		ended_at,
		duration_ms`

func (r *repository) InsertGame(ctx context.Context, game *domain.SavedGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil saved game payload")
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
		INSERT INTO saved_games (
			session_id,
			player_id,
			opening_code,
			opening_name,
			result,
			result_method,
			moves_uci,
			moves_san,
			pgn,
			final_fen,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionID,
		game.PlayerID,
		game.OpeningCode,
		game.OpeningName,
		game.Result,
		game.ResultMethod,
		movesUCI,
		movesSAN,
		game.PGN,
		game.FinalFEN,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert saved game: %w", err)
	}
	return id.Int64, nil
}

func scanSavedGame(scan func(dest ...any) error) (*domain.SavedGame, error) {
	var (
		game         domain.SavedGame
		movesUCIJSON []byte
		movesSANJSON []byte
		durationMS   sql.NullInt64
	)
	if err := scan(
		&game.ID,
		&game.SessionID,
		&game.PlayerID,
		&game.OpeningCode,
		&game.OpeningName,
		&game.Result,
		&game.ResultMethod,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.FinalFEN,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	); err != nil {
		return nil, err
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

func (r *repository) GetRecentGames(ctx context.Context, playerID string, limit int) ([]*domain.SavedGame, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT` + savedGameColumns + `
		FROM saved_games
		WHERE player_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select saved games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.SavedGame, 0, limit)
	for rows.Next() {
		game, err := scanSavedGame(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan saved game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func (r *repository) GetGame(ctx context.Context, id int64, playerID string) (*domain.SavedGame, error) {
	query := `
		SELECT` + savedGameColumns + `
		FROM saved_games
		WHERE id = $1 AND player_id = $2`

	game, err := scanSavedGame(r.db.QueryRowContext(ctx, query, id, playerID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select saved game: %w", err)
	}
	return game, nil
}

func (r *repository) GetGameBySession(ctx context.Context, sessionID string, playerID string) (*domain.SavedGame, error) {
	query := `
		SELECT` + savedGameColumns + `
		FROM saved_games
		WHERE session_id = $1 AND player_id = $2
		ORDER BY ended_at DESC
		LIMIT 1`

	game, err := scanSavedGame(r.db.QueryRowContext(ctx, query, sessionID, playerID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select saved game by session: %w", err)
	}
	return game, nil
}

func (r *repository) GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
	const query = `
		SELECT
			player_id,
			games_played,
			wins,
			losses,
			draws,
			last_opening,
			last_played_at,
			updated_at,
			created_at
		FROM player_profiles
		WHERE player_id = $1
		LIMIT 1`

	var profile domain.PlayerProfile
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&profile.PlayerID,
		&profile.GamesPlayed,
		&profile.Wins,
		&profile.Losses,
		&profile.Draws,
		&profile.LastOpening,
		&profile.LastPlayedAt,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player profile: %w", err)
	}
	return &profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil player profile payload")
	}
	const query = `
		INSERT INTO player_profiles (
			player_id,
			games_played,
			wins,
			losses,
			draws,
			last_opening,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			last_opening = EXCLUDED.last_opening,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.PlayerID,
		profile.GamesPlayed,
		profile.Wins,
		profile.Losses,
		profile.Draws,
		profile.LastOpening,
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player profile: %w", err)
	}
	return nil
}
