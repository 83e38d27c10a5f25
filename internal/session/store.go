package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionPayload is the persisted form of a session's canonical timeline.
// Exploration state is deliberately not persisted: an episode is ephemeral
// and a restart lands the player back on their game.
type sessionPayload struct {
	SessionUUID  string    `json:"session_uuid"`
	PlayerID     string    `json:"player_id"`
	InitialFEN   string    `json:"initial_fen"`
	MovesUCI     []string  `json:"moves"`
	CurrentIndex int       `json:"current_index"`
	Resigned     bool      `json:"resigned"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists session payloads in redis with a sliding TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return "coach:session:" + strings.TrimSpace(sessionID)
}

func (s *Store) Save(ctx context.Context, sessionID string, payload *sessionPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(sessionID), raw, s.ttl).Err()
}

func (s *Store) Load(ctx context.Context, sessionID string) (*sessionPayload, error) {
	raw, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p sessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}

// Touch refreshes the TTL without rewriting the payload.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	return s.rdb.Expire(ctx, s.key(sessionID), s.ttl).Err()
}
