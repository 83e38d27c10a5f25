package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chess-coach/internal/domain"
)

// memrepo is a development-only in-memory repository used when no DB is
// configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	gamesByID     map[int64]*domain.SavedGame
	gamesByPlayer map[string][]*domain.SavedGame
	gamesByIndex  map[string]*domain.SavedGame // sessionID|playerID -> game

	profiles map[string]*domain.PlayerProfile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByID:     make(map[int64]*domain.SavedGame),
		gamesByPlayer: make(map[string][]*domain.SavedGame),
		gamesByIndex:  make(map[string]*domain.SavedGame),
		profiles:      make(map[string]*domain.PlayerProfile),
	}
}

func (m *memrepo) InsertGame(ctx context.Context, game *domain.SavedGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}

	key := m.sessionKey(game.SessionID, game.PlayerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gamesByIndex[key]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	id := m.nextID
	stored := *game
	stored.ID = id

	m.gamesByID[id] = &stored
	m.gamesByIndex[key] = &stored
	m.gamesByPlayer[game.PlayerID] = append(m.gamesByPlayer[game.PlayerID], &stored)

	return id, nil
}

func (m *memrepo) GetRecentGames(ctx context.Context, playerID string, limit int) ([]*domain.SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.gamesByPlayer[playerID]
	if len(list) == 0 {
		return []*domain.SavedGame{}, nil
	}
	items := append([]*domain.SavedGame(nil), list...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGame(ctx context.Context, id int64, playerID string) (*domain.SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gamesByID[id]
	if !ok || g == nil || g.PlayerID != playerID {
		return nil, nil
	}
	stored := *g
	return &stored, nil
}

func (m *memrepo) GetGameBySession(ctx context.Context, sessionID string, playerID string) (*domain.SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.gamesByIndex[m.sessionKey(sessionID, playerID)]; ok && g != nil {
		stored := *g
		return &stored, nil
	}
	return nil, nil
}

func (m *memrepo) GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[strings.TrimSpace(playerID)]; ok && p != nil {
		stored := *p
		return &stored, nil
	}
	return nil, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return nil
	}
	stored := *profile
	m.mu.Lock()
	m.profiles[strings.TrimSpace(profile.PlayerID)] = &stored
	m.mu.Unlock()
	return nil
}

func (m *memrepo) sessionKey(sessionID, playerID string) string {
	return strings.TrimSpace(sessionID) + "|" + strings.TrimSpace(playerID)
}
