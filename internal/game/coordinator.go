package game

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/engine"
)

var (
	ErrExplorationActive = errors.New("action blocked while exploring a line")
	ErrNotExploring      = errors.New("no exploration in progress")
	ErrIllegalMove       = errors.New("illegal move")
	ErrInvalidRecord     = errors.New("invalid game record")
	ErrNothingToUndo     = errors.New("no moves to undo")
	ErrGameFinished      = errors.New("game already finished")
	ErrEmptyLine         = errors.New("suggested line has no moves")
	ErrUnknownOpening    = errors.New("unknown opening")
)

// Mode is the Coordinator state: Normal routes actions to the game session,
// Exploring routes navigation to the exploration session and rejects
// everything that would mutate the canonical timeline.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeExploring Mode = "exploring"
)

// Snapshot is the read-only pair returned to callers after every operation.
type Snapshot struct {
	Mode        Mode
	Epoch       string
	Game        GameState
	Exploration ExplorationState
}

// Coordinator is the only surface the UI talks to. It owns the game session
// and the exploration session exclusively, enforces their mutual exclusion,
// and tags state generations with an epoch so late async responses can be
// discarded. All operations are synchronous; callers serialize access.
type Coordinator struct {
	eng     *engine.Adapter
	session *Session
	explore *Exploration
	mode    Mode
	epoch   string
	logger  *zap.Logger
}

func NewCoordinator(eng *engine.Adapter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		eng:     eng,
		session: NewSession(eng, logger),
		explore: NewExploration(logger),
		mode:    ModeNormal,
		epoch:   uuid.NewString(),
		logger:  logger,
	}
}

// Mode returns the current routing mode.
func (c *Coordinator) Mode() Mode {
	return c.mode
}

// Epoch identifies the current canonical-state generation. It changes on
// new-game and load; async responses issued against an older epoch must be
// dropped by the caller.
func (c *Coordinator) Epoch() string {
	return c.epoch
}

// Snapshot returns the current read-only state pair.
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		Mode:        c.mode,
		Epoch:       c.epoch,
		Game:        c.session.State(),
		Exploration: c.explore.State(),
	}
}

func (c *Coordinator) guard(action string) error {
	if c.mode != ModeExploring {
		return nil
	}
	c.logger.Info("exploration_guard",
		zap.String("action", action),
	)
	return ErrExplorationActive
}

// MakeMove plays a move on the canonical timeline. Rejected while exploring.
func (c *Coordinator) MakeMove(from, to, promotion string) (Snapshot, error) {
	if err := c.guard("move"); err != nil {
		return c.Snapshot(), err
	}
	if c.session.GameOver() {
		return c.Snapshot(), ErrGameFinished
	}
	if !c.session.MakeMove(from, to, promotion) {
		return c.Snapshot(), ErrIllegalMove
	}
	return c.Snapshot(), nil
}

// MakeMoveUCI is MakeMove for a single coordinate-move token.
func (c *Coordinator) MakeMoveUCI(uci string) (Snapshot, error) {
	if err := c.guard("move"); err != nil {
		return c.Snapshot(), err
	}
	if c.session.GameOver() {
		return c.Snapshot(), ErrGameFinished
	}
	if !c.session.MakeMoveUCI(uci) {
		return c.Snapshot(), ErrIllegalMove
	}
	return c.Snapshot(), nil
}

// Undo pops the last canonical move. Rejected while exploring.
func (c *Coordinator) Undo() (Snapshot, error) {
	if err := c.guard("undo"); err != nil {
		return c.Snapshot(), err
	}
	if !c.session.Undo() {
		return c.Snapshot(), ErrNothingToUndo
	}
	return c.Snapshot(), nil
}

// Reset starts a fresh game. Rejected while exploring; bumps the epoch.
func (c *Coordinator) Reset() (Snapshot, error) {
	if err := c.guard("reset"); err != nil {
		return c.Snapshot(), err
	}
	c.session.Reset()
	c.bumpEpoch("reset")
	return c.Snapshot(), nil
}

// Resign concedes the game for the side to move. Rejected while exploring.
func (c *Coordinator) Resign() (Snapshot, error) {
	if err := c.guard("resign"); err != nil {
		return c.Snapshot(), err
	}
	if !c.session.Resign() {
		return c.Snapshot(), ErrGameFinished
	}
	return c.Snapshot(), nil
}

// GotoMove navigates the canonical history. Rejected while exploring;
// out-of-range indexes are no-ops, never errors.
func (c *Coordinator) GotoMove(index int) (Snapshot, error) {
	if err := c.guard("goto"); err != nil {
		return c.Snapshot(), err
	}
	if !c.session.GotoMove(index) {
		c.logger.Debug("navigation_out_of_range", zap.Int("index", index))
	}
	return c.Snapshot(), nil
}

// LoadFEN replaces the game with a bare position. Rejected while exploring;
// on parse failure the prior state is untouched.
func (c *Coordinator) LoadFEN(text string) (Snapshot, error) {
	if err := c.guard("load_fen"); err != nil {
		return c.Snapshot(), err
	}
	if !c.session.LoadFEN(text) {
		return c.Snapshot(), ErrInvalidRecord
	}
	c.bumpEpoch("load_fen")
	return c.Snapshot(), nil
}

// LoadPGN replaces the game with a parsed record. Rejected while exploring;
// on parse failure the prior state is untouched.
func (c *Coordinator) LoadPGN(text string) (Snapshot, error) {
	if err := c.guard("load_pgn"); err != nil {
		return c.Snapshot(), err
	}
	if !c.session.LoadPGN(text) {
		return c.Snapshot(), ErrInvalidRecord
	}
	c.bumpEpoch("load_pgn")
	return c.Snapshot(), nil
}

// LoadOpening replaces the game with a named opening from the catalog.
func (c *Coordinator) LoadOpening(name string) (Snapshot, error) {
	if err := c.guard("load_opening"); err != nil {
		return c.Snapshot(), err
	}
	movetext, ok := OpeningMoves(name)
	if !ok {
		return c.Snapshot(), ErrUnknownOpening
	}
	if !c.session.LoadPGN(movetext) {
		return c.Snapshot(), ErrInvalidRecord
	}
	c.bumpEpoch("load_opening")
	return c.Snapshot(), nil
}

// Explore enters the sandbox over one suggested line. The game snapshot is
// captured by value before anything else happens; the line is then walked
// once from the current position to find its playable prefix. A malformed or
// illegal token truncates the line there, logged, never raised. Nested entry
// is rejected.
func (c *Coordinator) Explore(line SuggestedLine) (Snapshot, error) {
	if c.mode == ModeExploring {
		c.logger.Info("exploration_guard", zap.String("action", "explore_nested"))
		return c.Snapshot(), ErrExplorationActive
	}
	if len(line.MovesUCI) == 0 {
		return c.Snapshot(), ErrEmptyLine
	}

	snap := c.session.State()

	legal := 0
	pos := snap.Position
	for i, uci := range line.MovesUCI {
		next, _, ok := c.eng.ApplyUCI(pos, uci)
		if !ok {
			c.logger.Warn("line_truncated",
				zap.String("description", line.Description),
				zap.Int("ply", i),
				zap.String("token", uci),
			)
			break
		}
		pos = next
		legal = i + 1
	}

	c.explore.Enter(line, legal, snap.Position, snap.CurrentIndex, snap.History)
	c.mode = ModeExploring
	if legal > 0 {
		c.session.ShowPosition(c.previewAt(0))
	}

	c.logger.Info("exploration_entered",
		zap.String("description", line.Description),
		zap.Int("line_plies", len(line.MovesUCI)),
		zap.Int("legal_plies", legal),
	)
	return c.Snapshot(), nil
}

// ExploreNext steps forward in the line. Clamped at the playable end.
func (c *Coordinator) ExploreNext() (Snapshot, error) {
	if c.mode != ModeExploring {
		return c.Snapshot(), ErrNotExploring
	}
	idx := c.explore.Next()
	if c.explore.State().LegalPlies > 0 {
		c.session.ShowPosition(c.previewAt(idx))
	}
	return c.Snapshot(), nil
}

// ExplorePrevious steps back in the line. Clamped at the first ply.
func (c *Coordinator) ExplorePrevious() (Snapshot, error) {
	if c.mode != ModeExploring {
		return c.Snapshot(), ErrNotExploring
	}
	idx := c.explore.Previous()
	if c.explore.State().LegalPlies > 0 {
		c.session.ShowPosition(c.previewAt(idx))
	}
	return c.Snapshot(), nil
}

// ExitExploration ends the sandbox episode and restores the canonical state
// captured at entry, re-deriving index consistency through the replay rule.
func (c *Coordinator) ExitExploration() (Snapshot, error) {
	if c.mode != ModeExploring {
		return c.Snapshot(), ErrNotExploring
	}
	pos, index, history := c.explore.Exit()
	c.session.Restore(pos, history, index)
	c.mode = ModeNormal
	c.logger.Info("exploration_exited")
	return c.Snapshot(), nil
}

// previewAt recomputes the displayed position for line index idx by
// replaying the prefix from the saved position. Recomputing from scratch on
// every step keeps the preview free of accumulated drift; nothing is patched
// incrementally.
func (c *Coordinator) previewAt(idx int) engine.Position {
	st := c.explore.State()
	pos := st.SavedPosition
	for k := 0; k <= idx && k < st.LegalPlies && k < len(st.Line.MovesUCI); k++ {
		next, _, ok := c.eng.ApplyUCI(pos, st.Line.MovesUCI[k])
		if !ok {
			break
		}
		pos = next
	}
	return pos
}

// CoachContext returns the position and display history a coaching request
// should be issued against, plus the epoch to tag the response with.
// Coaching requests are blocked while exploring.
func (c *Coordinator) CoachContext() (fen string, movesSAN []string, epoch string, err error) {
	if c.mode == ModeExploring {
		c.logger.Info("exploration_guard", zap.String("action", "coach_request"))
		return "", nil, "", ErrExplorationActive
	}
	state := c.session.State()
	sans := make([]string, 0, len(state.History))
	for _, rec := range state.History {
		sans = append(sans, rec.SAN)
	}
	return state.Position.FEN(), sans, c.epoch, nil
}

// OpeningName classifies the canonical history against the ECO book. Only
// games from the standard initial position can be classified.
func (c *Coordinator) OpeningName() (code, title string, ok bool) {
	if !c.session.InitialPosition().Equal(engine.StartingPosition()) {
		return "", "", false
	}
	return c.eng.OpeningName(c.session.State().History)
}

// InitialFEN returns the replay base of the canonical timeline.
func (c *Coordinator) InitialFEN() string {
	return c.session.InitialPosition().FEN()
}

// RecordNotation serializes the canonical timeline.
func (c *Coordinator) RecordNotation() string {
	return c.session.RecordNotation()
}

// IsLegalMove is a pure query against the displayed position.
func (c *Coordinator) IsLegalMove(from, to string) bool {
	return c.session.IsLegalMove(from, to)
}

// LegalDestinations enumerates reachable squares from the given origin on
// the displayed position.
func (c *Coordinator) LegalDestinations(from string) []string {
	return c.session.LegalDestinations(from)
}

func (c *Coordinator) bumpEpoch(reason string) {
	c.epoch = uuid.NewString()
	c.logger.Debug("epoch_rotated", zap.String("reason", reason), zap.String("epoch", c.epoch))
}
