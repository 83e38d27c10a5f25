package game

import (
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/engine"
)

// GameState is the immutable snapshot of the canonical timeline handed back
// to callers after every operation. History is always a fresh copy.
type GameState struct {
	Position     engine.Position
	History      []engine.MoveRecord
	CurrentIndex int
	Status       engine.Status
	GameOver     bool
	Resigned     bool
	SideToMove   engine.Color
	Result       string
}

// Session owns the canonical game timeline: one position, the ordered move
// history, and the current index into it. The rules library has no
// random-access seek, so every navigation rebuilds the position by replaying
// the history prefix from the initial position. The session knows nothing
// about exploration; the Coordinator guards it.
type Session struct {
	eng     *engine.Adapter
	initial engine.Position
	pos     engine.Position
	history []engine.MoveRecord
	index   int
	resign  bool
	logger  *zap.Logger
}

func NewSession(eng *engine.Adapter, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{eng: eng, logger: logger}
	s.Reset()
	return s
}

// Reset clears the timeline back to the standard initial position.
func (s *Session) Reset() {
	s.initial = engine.StartingPosition()
	s.pos = s.initial
	s.history = nil
	s.index = -1
	s.resign = false
}

// MakeMove plays from->to at the head of the timeline. Making a move while
// browsing history abandons the suffix beyond the current index before the
// new move is appended. Returns false and leaves state untouched when the
// move is illegal or the game is over.
func (s *Session) MakeMove(from, to, promotion string) bool {
	if s.GameOver() {
		return false
	}
	next, rec, ok := s.eng.Apply(s.pos, from, to, promotion)
	if !ok {
		return false
	}
	s.commit(next, rec)
	return true
}

// MakeMoveUCI is MakeMove for a single coordinate-move token.
func (s *Session) MakeMoveUCI(uci string) bool {
	if s.GameOver() {
		return false
	}
	next, rec, ok := s.eng.ApplyUCI(s.pos, uci)
	if !ok {
		return false
	}
	s.commit(next, rec)
	return true
}

func (s *Session) commit(next engine.Position, rec engine.MoveRecord) {
	if s.index < len(s.history)-1 {
		s.history = append([]engine.MoveRecord(nil), s.history[:s.index+1]...)
	}
	s.history = append(s.history, rec)
	s.index = len(s.history) - 1
	s.pos = next
}

// Undo pops the last move and rebuilds the position by replaying the
// remaining prefix from the initial position. Returns false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	if len(s.history) == 0 {
		return false
	}
	s.history = append([]engine.MoveRecord(nil), s.history[:len(s.history)-1]...)
	s.index = len(s.history) - 1
	s.pos = s.replay(s.index)
	s.resign = false
	return true
}

// GotoMove repositions the board at history index i without touching the
// history itself. Valid range is [-1, len(history)-1]; out-of-range requests
// are no-ops and return false.
func (s *Session) GotoMove(i int) bool {
	if i < -1 || i > len(s.history)-1 {
		return false
	}
	s.pos = s.replay(i)
	s.index = i
	return true
}

// replay rebuilds the position after history[0..i] from the initial
// position. O(i), the only correctness-preserving strategy available.
func (s *Session) replay(i int) engine.Position {
	pos := s.initial
	for k := 0; k <= i && k < len(s.history); k++ {
		next, _, ok := s.eng.ApplyUCI(pos, s.history[k].UCI)
		if !ok {
			// History entries were validated when recorded; hitting this
			// means the replay base no longer matches the history.
			s.logger.Error("session_replay_diverged",
				zap.Int("ply", k),
				zap.String("uci", s.history[k].UCI),
			)
			return pos
		}
		pos = next
	}
	return pos
}

// LoadFEN replaces the timeline with a bare position and empty history.
// On failure the prior state is untouched.
func (s *Session) LoadFEN(text string) bool {
	pos, ok := s.eng.LoadFEN(text)
	if !ok {
		return false
	}
	s.initial = pos
	s.pos = pos
	s.history = nil
	s.index = -1
	s.resign = false
	return true
}

// LoadPGN replaces the timeline with the parsed record's history, positioned
// at the final move. On failure the prior state is untouched.
func (s *Session) LoadPGN(text string) bool {
	loaded, ok := s.eng.LoadPGN(text)
	if !ok {
		return false
	}
	s.initial = loaded.Start
	s.history = append([]engine.MoveRecord(nil), loaded.History...)
	s.index = len(s.history) - 1
	s.pos = loaded.Final
	s.resign = false
	return true
}

// Resign ends the game for the side to move. Undone by Undo.
func (s *Session) Resign() bool {
	if s.GameOver() {
		return false
	}
	s.resign = true
	return true
}

// IsLegalMove is a pure query against the displayed position.
func (s *Session) IsLegalMove(from, to string) bool {
	return s.eng.IsLegal(s.pos, from, to)
}

// LegalDestinations enumerates reachable squares from the given origin.
func (s *Session) LegalDestinations(from string) []string {
	return s.eng.LegalDestinations(s.pos, from)
}

// RecordNotation serializes the full canonical history (independent of the
// current index) into a portable record that round-trips through LoadPGN.
func (s *Session) RecordNotation() string {
	return s.eng.EncodePGN(s.initial, s.history)
}

// GameOver reports whether the head of the timeline ended the game.
func (s *Session) GameOver() bool {
	return s.resign || s.eng.Status(s.pos).Terminal()
}

// ShowPosition repoints the displayed position without touching history or
// index. Only the Coordinator uses this, for line preview; outside a preview
// episode the position always equals the replayed history prefix.
func (s *Session) ShowPosition(pos engine.Position) {
	s.pos = pos
}

// Restore puts back a previously captured snapshot: history by value, then
// the index via the replay rule, which also re-derives the position.
func (s *Session) Restore(pos engine.Position, history []engine.MoveRecord, index int) {
	s.history = append([]engine.MoveRecord(nil), history...)
	s.pos = pos
	if !s.GotoMove(index) {
		s.logger.Warn("session_restore_index_out_of_range", zap.Int("index", index))
		s.GotoMove(len(s.history) - 1)
	}
}

// InitialPosition returns the replay base of the timeline.
func (s *Session) InitialPosition() engine.Position {
	return s.initial
}

// State returns a value snapshot of the timeline.
func (s *Session) State() GameState {
	status := s.eng.Status(s.pos)
	if status == engine.StatusNone && s.index >= 0 && s.index < len(s.history) {
		if strings.HasSuffix(s.history[s.index].SAN, "+") {
			status = engine.StatusCheck
		}
	}
	result := s.eng.Result(s.pos)
	if s.resign {
		if s.eng.SideToMove(s.pos) == engine.White {
			result = "0-1"
		} else {
			result = "1-0"
		}
	}
	return GameState{
		Position:     s.pos,
		History:      append([]engine.MoveRecord(nil), s.history...),
		CurrentIndex: s.index,
		Status:       status,
		GameOver:     s.resign || status.Terminal(),
		Resigned:     s.resign,
		SideToMove:   s.eng.SideToMove(s.pos),
		Result:       result,
	}
}
