package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/domain"
	"github.com/park285/chess-coach/internal/engine"
	"github.com/park285/chess-coach/internal/game"
	gamestore "github.com/park285/chess-coach/internal/store"
	"github.com/park285/chess-coach/pkg/coachdto"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
	ErrAdviceInFlight  = errors.New("coach request already in progress")
	ErrStaleAdvice     = errors.New("coach reply outdated by a newer game state")
	ErrNoCoach         = errors.New("no coach backend configured")
	ErrNoAnalyzer      = errors.New("no analysis backend configured")
	ErrNoArchive       = errors.New("no archive repository configured")
)

// Adviser is the coaching backend surface the manager depends on.
type Adviser interface {
	Advise(ctx context.Context, req coachdto.CoachAdviceRequest) (*coachdto.CoachAdvice, error)
}

// Analyzer is the game-analysis backend surface the manager depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req coachdto.AnalysisRequest) (*coachdto.AnalysisReport, error)
}

type Config struct {
	MaxSessions  int
	TTL          time.Duration
	HistoryLimit int
}

// Manager owns the live coordinators, one per session, each behind its own
// lock. Canonical state is written through to redis after every successful
// mutation so a restarted process can rehydrate by replay; finished games are
// archived to the repository.
type Manager struct {
	eng      *engine.Adapter
	sessions *Store
	repo     gamestore.Repository
	coach    Adviser
	analysis Analyzer
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu         sync.Mutex
	coord      *game.Coordinator
	playerID   string
	startedAt  time.Time
	lastActive time.Time
	advising   bool
	archived   bool
	hints      []coachdto.CoachAdvice
}

// maxPendingHints bounds the per-session queue of undelivered coach pushes.
const maxPendingHints = 8

func NewManager(eng *engine.Adapter, sessions *Store, repo gamestore.Repository, coach Adviser, analysis Analyzer, cfg Config, logger *zap.Logger) (*Manager, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine adapter is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 200
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		eng:      eng,
		sessions: sessions,
		repo:     repo,
		coach:    coach,
		analysis: analysis,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string]*entry),
	}, nil
}

// Create starts a fresh session and returns its id with the initial snapshot.
func (m *Manager) Create(ctx context.Context, playerID string) (string, game.Snapshot, error) {
	m.mu.Lock()
	if len(m.entries) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return "", game.Snapshot{}, ErrTooManySessions
	}
	id := uuid.NewString()
	e := &entry{
		coord:      game.NewCoordinator(m.eng, m.logger),
		playerID:   playerID,
		startedAt:  time.Now(),
		lastActive: time.Now(),
	}
	m.entries[id] = e
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.coord.Snapshot()
	if err := m.persist(ctx, id, e, snap); err != nil {
		m.logger.Warn("session_persist_failed", zap.String("session_id", id), zap.Error(err))
	}
	m.logger.Info("session_created",
		zap.String("session_id", id),
		zap.String("player_id", playerID),
	)
	return id, snap, nil
}

// Apply runs one coordinator operation under the session lock and writes the
// canonical state through on success. Guard rejections leave both the live
// and persisted state untouched.
func (m *Manager) Apply(ctx context.Context, sessionID string, op func(*game.Coordinator) (game.Snapshot, error)) (game.Snapshot, error) {
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return game.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActive = time.Now()

	snap, opErr := op(e.coord)
	if opErr != nil {
		return snap, opErr
	}
	if err := m.persist(ctx, sessionID, e, snap); err != nil {
		m.logger.Warn("session_persist_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if snap.Game.GameOver && !e.archived {
		m.archive(ctx, sessionID, e, snap)
	}
	return snap, nil
}

// Snapshot returns the session's current state without mutating it.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (game.Snapshot, error) {
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return game.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActive = time.Now()
	if err := m.sessions.Touch(ctx, sessionID); err != nil {
		m.logger.Debug("session_touch_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return e.coord.Snapshot(), nil
}

// Delete drops the session from memory and redis.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	return m.sessions.Delete(ctx, sessionID)
}

// Advise forwards the player's question to the coach. At most one request per
// session is in flight; the reply is dropped when the game state moved on
// while the coach was thinking.
func (m *Manager) Advise(ctx context.Context, sessionID, message string) (*coachdto.CoachAdvice, error) {
	if m.coach == nil {
		return nil, ErrNoCoach
	}
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.advising {
		e.mu.Unlock()
		return nil, ErrAdviceInFlight
	}
	fen, sans, epoch, ctxErr := e.coord.CoachContext()
	if ctxErr != nil {
		e.mu.Unlock()
		return nil, ctxErr
	}
	e.advising = true
	e.mu.Unlock()

	advice, adviseErr := m.coach.Advise(ctx, coachdto.CoachAdviceRequest{
		Message:  message,
		FEN:      fen,
		MovesSAN: sans,
		Epoch:    epoch,
	})

	e.mu.Lock()
	e.advising = false
	if adviseErr != nil {
		e.mu.Unlock()
		return nil, adviseErr
	}
	current := e.coord.Epoch()
	e.mu.Unlock()

	if advice.Epoch != current {
		m.logger.Info("coach_reply_stale_dropped",
			zap.String("session_id", sessionID),
			zap.String("request_epoch", advice.Epoch),
			zap.String("current_epoch", current),
		)
		return nil, ErrStaleAdvice
	}
	return advice, nil
}

// DeliverHint queues a coach-originated push (an unsolicited hint or a late
// analysis fragment) for the session. The epoch the hint was issued against
// is re-checked under the session lock, same as solicited advice; a hint
// from an older game state is dropped.
func (m *Manager) DeliverHint(ctx context.Context, sessionID, epoch, text string, line *coachdto.SuggestedLine) error {
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.coord.Epoch()
	if epoch != current {
		m.logger.Info("coach_hint_stale_dropped",
			zap.String("session_id", sessionID),
			zap.String("hint_epoch", epoch),
			zap.String("current_epoch", current),
		)
		return ErrStaleAdvice
	}

	hint := coachdto.CoachAdvice{Text: text, Epoch: epoch}
	if line != nil {
		hint.Lines = []coachdto.SuggestedLine{*line}
	}
	e.hints = append(e.hints, hint)
	if len(e.hints) > maxPendingHints {
		e.hints = e.hints[len(e.hints)-maxPendingHints:]
	}
	m.logger.Debug("coach_hint_queued",
		zap.String("session_id", sessionID),
		zap.Int("pending", len(e.hints)),
	)
	return nil
}

// Hints drains the session's queued coach pushes.
func (m *Manager) Hints(ctx context.Context, sessionID string) ([]coachdto.CoachAdvice, error) {
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.hints
	e.hints = nil
	if out == nil {
		out = []coachdto.CoachAdvice{}
	}
	return out, nil
}

// Analyze submits the session's full record to the analysis backend.
func (m *Manager) Analyze(ctx context.Context, sessionID string) (*coachdto.AnalysisReport, error) {
	if m.analysis == nil {
		return nil, ErrNoAnalyzer
	}
	e, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	pgn := e.coord.RecordNotation()
	fen := e.coord.Snapshot().Game.Position.FEN()
	e.mu.Unlock()

	return m.analysis.Analyze(ctx, coachdto.AnalysisRequest{PGN: pgn, FEN: fen})
}

// RecentGames lists a player's archived games, newest first.
func (m *Manager) RecentGames(ctx context.Context, playerID string, limit int) ([]*domain.SavedGame, error) {
	if m.repo == nil {
		return nil, ErrNoArchive
	}
	if limit <= 0 || limit > m.cfg.HistoryLimit {
		limit = m.cfg.HistoryLimit
	}
	return m.repo.GetRecentGames(ctx, playerID, limit)
}

// SavedGame fetches one archived game, scoped to its owner. A nil result
// means no such game.
func (m *Manager) SavedGame(ctx context.Context, playerID string, id int64) (*domain.SavedGame, error) {
	if m.repo == nil {
		return nil, ErrNoArchive
	}
	return m.repo.GetGame(ctx, id, playerID)
}

// Profile returns the player's aggregate record, or nil when the player has
// no finished games yet.
func (m *Manager) Profile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
	if m.repo == nil {
		return nil, ErrNoArchive
	}
	return m.repo.GetProfile(ctx, playerID)
}

// Sweep evicts in-memory entries idle past the TTL. Redis expiry handles the
// persisted copies.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.cfg.TTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, e := range m.entries {
		if e.lastActive.Before(cutoff) {
			delete(m.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("sessions_evicted", zap.Int("count", evicted))
	}
	return evicted
}

// RunSweeper periodically evicts idle sessions until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) entry(ctx context.Context, sessionID string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.entries[sessionID]
	m.mu.Unlock()
	if ok {
		return e, nil
	}

	payload, err := m.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	rebuilt, err := m.rehydrate(payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have rehydrated concurrently; keep the first.
	if existing, ok := m.entries[sessionID]; ok {
		return existing, nil
	}
	m.entries[sessionID] = rebuilt
	m.logger.Info("session_rehydrated",
		zap.String("session_id", sessionID),
		zap.Int("moves", len(payload.MovesUCI)),
	)
	return rebuilt, nil
}

func (m *Manager) rehydrate(p *sessionPayload) (*entry, error) {
	coord := game.NewCoordinator(m.eng, m.logger)
	if p.InitialFEN != "" && p.InitialFEN != engine.StartFEN {
		if _, err := coord.LoadFEN(p.InitialFEN); err != nil {
			return nil, fmt.Errorf("rehydrate initial position: %w", err)
		}
	}
	for _, uci := range p.MovesUCI {
		if _, err := coord.MakeMoveUCI(uci); err != nil {
			return nil, fmt.Errorf("rehydrate move %s: %w", uci, err)
		}
	}
	if p.Resigned {
		if _, err := coord.Resign(); err != nil {
			return nil, fmt.Errorf("rehydrate resignation: %w", err)
		}
	}
	if _, err := coord.GotoMove(p.CurrentIndex); err != nil {
		return nil, fmt.Errorf("rehydrate index: %w", err)
	}
	return &entry{
		coord:      coord,
		playerID:   p.PlayerID,
		startedAt:  p.StartedAt,
		lastActive: time.Now(),
		archived:   coord.Snapshot().Game.GameOver,
	}, nil
}

func (m *Manager) persist(ctx context.Context, sessionID string, e *entry, snap game.Snapshot) error {
	moves := make([]string, 0, len(snap.Game.History))
	for _, rec := range snap.Game.History {
		moves = append(moves, rec.UCI)
	}
	return m.sessions.Save(ctx, sessionID, &sessionPayload{
		SessionUUID:  sessionID,
		PlayerID:     e.playerID,
		InitialFEN:   e.coord.InitialFEN(),
		MovesUCI:     moves,
		CurrentIndex: snap.Game.CurrentIndex,
		Resigned:     snap.Game.Resigned,
		StartedAt:    e.startedAt,
		UpdatedAt:    time.Now(),
	})
}

func (m *Manager) archive(ctx context.Context, sessionID string, e *entry, snap game.Snapshot) {
	e.archived = true
	if m.repo == nil {
		return
	}

	movesUCI := make([]string, 0, len(snap.Game.History))
	movesSAN := make([]string, 0, len(snap.Game.History))
	for _, rec := range snap.Game.History {
		movesUCI = append(movesUCI, rec.UCI)
		movesSAN = append(movesSAN, rec.SAN)
	}
	code, name, _ := e.coord.OpeningName()
	now := time.Now()

	saved := &domain.SavedGame{
		SessionID:    sessionID,
		PlayerID:     e.playerID,
		OpeningCode:  code,
		OpeningName:  name,
		Result:       snap.Game.Result,
		ResultMethod: resultMethod(snap),
		MovesUCI:     movesUCI,
		MovesSAN:     movesSAN,
		PGN:          e.coord.RecordNotation(),
		FinalFEN:     snap.Game.Position.FEN(),
		StartedAt:    e.startedAt,
		EndedAt:      now,
		Duration:     now.Sub(e.startedAt),
	}
	if _, err := m.repo.InsertGame(ctx, saved); err != nil {
		if !errors.Is(err, gamestore.ErrDuplicateGame) {
			m.logger.Warn("game_archive_failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}
	m.logger.Info("game_archived",
		zap.String("session_id", sessionID),
		zap.String("result", saved.Result),
		zap.String("method", saved.ResultMethod),
	)
	m.updateProfile(ctx, e.playerID, saved)
}

func (m *Manager) updateProfile(ctx context.Context, playerID string, saved *domain.SavedGame) {
	if playerID == "" {
		return
	}
	profile, err := m.repo.GetProfile(ctx, playerID)
	if err != nil {
		m.logger.Warn("profile_fetch_failed", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	if profile == nil {
		profile = &domain.PlayerProfile{PlayerID: playerID}
	}
	profile.GamesPlayed++
	switch saved.Result {
	case "1-0":
		profile.Wins++
	case "0-1":
		profile.Losses++
	case "1/2-1/2":
		profile.Draws++
	}
	if saved.OpeningName != "" {
		profile.LastOpening = saved.OpeningName
	}
	profile.LastPlayedAt = saved.EndedAt
	if err := m.repo.UpsertProfile(ctx, profile); err != nil {
		m.logger.Warn("profile_update_failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

func resultMethod(snap game.Snapshot) string {
	if snap.Game.Resigned {
		return "resignation"
	}
	return string(snap.Game.Status)
}
