package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-coach/internal/domain"
)

func sampleGame(sessionID, playerID string, endedAt time.Time) *domain.SavedGame {
	return &domain.SavedGame{
		SessionID:    sessionID,
		PlayerID:     playerID,
		OpeningCode:  "C60",
		OpeningName:  "Ruy Lopez",
		Result:       "1-0",
		ResultMethod: "checkmate",
		MovesUCI:     []string{"e2e4", "e7e5"},
		MovesSAN:     []string{"e4", "e5"},
		PGN:          "1. e4 e5",
		StartedAt:    endedAt.Add(-time.Minute),
		EndedAt:      endedAt,
		Duration:     time.Minute,
	}
}

func TestMemoryRepositoryInsertAndFetch(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	id, err := repo.InsertGame(ctx, sampleGame("s1", "p1", now))
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = repo.InsertGame(ctx, sampleGame("s1", "p1", now))
	assert.ErrorIs(t, err, ErrDuplicateGame)

	got, err := repo.GetGame(ctx, id, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, []string{"e2e4", "e7e5"}, got.MovesUCI)

	// Wrong owner yields nothing.
	got, err = repo.GetGame(ctx, id, "p2")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetGameBySession(ctx, "s1", "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
}

func TestMemoryRepositoryRecentGamesOrdering(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now()

	for i, session := range []string{"a", "b", "c"} {
		_, err := repo.InsertGame(ctx, sampleGame(session, "p1", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	games, err := repo.GetRecentGames(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "c", games[0].SessionID)
	assert.Equal(t, "b", games[1].SessionID)
}

func TestMemoryRepositoryProfileUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	got, err := repo.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	profile := &domain.PlayerProfile{
		PlayerID:    "p1",
		GamesPlayed: 1,
		Wins:        1,
		LastOpening: "Ruy Lopez",
	}
	require.NoError(t, repo.UpsertProfile(ctx, profile))

	got, err = repo.GetProfile(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Wins)

	profile.Wins = 2
	profile.GamesPlayed = 2
	require.NoError(t, repo.UpsertProfile(ctx, profile))

	got, err = repo.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Wins)
}
