package game

import (
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/engine"
)

// SuggestedLine is one alternate continuation received from the coaching
// service. Immutable once received.
type SuggestedLine struct {
	Description  string   `json:"description"`
	MovesUCI     []string `json:"moves"`
	MovesSAN     []string `json:"moves_san"`
	EvaluationCP *int     `json:"evaluation_cp,omitempty"`
}

// ExplorationState is the sandboxed browsing state over one suggested line.
// CurrentPosition indexes the last applied line move: k means the displayed
// board is the position after MovesUCI[0..k]. LegalPlies is the length of
// the playable prefix the Coordinator validated at entry; it never exceeds
// len(Line.MovesUCI). When Active is false every other field is the zero
// value.
type ExplorationState struct {
	Active           bool
	Line             SuggestedLine
	CurrentPosition  int
	LegalPlies       int
	SavedPosition    engine.Position
	SavedMoveIndex   int
	SavedMoveHistory []engine.MoveRecord
}

// Exploration owns one browsing episode. It never reads or writes the game
// session; the Coordinator hands it a value snapshot on entry and takes the
// snapshot back on exit, which is the sole channel for restoring canonical
// state.
type Exploration struct {
	state  ExplorationState
	logger *zap.Logger
}

func NewExploration(logger *zap.Logger) *Exploration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exploration{logger: logger}
}

// Active reports whether a browsing episode is in progress.
func (e *Exploration) Active() bool {
	return e.state.Active
}

// Enter starts a browsing episode over line, taking ownership of a value
// copy of the caller-supplied game snapshot. legalPlies is the validated
// playable prefix length of the line.
func (e *Exploration) Enter(line SuggestedLine, legalPlies int, pos engine.Position, moveIndex int, history []engine.MoveRecord) {
	if legalPlies < 0 {
		legalPlies = 0
	}
	if legalPlies > len(line.MovesUCI) {
		legalPlies = len(line.MovesUCI)
	}
	e.state = ExplorationState{
		Active:           true,
		Line:             line,
		CurrentPosition:  0,
		LegalPlies:       legalPlies,
		SavedPosition:    pos,
		SavedMoveIndex:   moveIndex,
		SavedMoveHistory: append([]engine.MoveRecord(nil), history...),
	}
}

// Next advances within the playable prefix. No-op at the upper bound.
func (e *Exploration) Next() int {
	if e.state.Active && e.state.CurrentPosition < e.state.LegalPlies-1 {
		e.state.CurrentPosition++
	}
	return e.state.CurrentPosition
}

// Previous steps back within the playable prefix. No-op at zero.
func (e *Exploration) Previous() int {
	if e.state.Active && e.state.CurrentPosition > 0 {
		e.state.CurrentPosition--
	}
	return e.state.CurrentPosition
}

// Exit returns the saved snapshot and clears the episode back to the
// inactive default, however many Next/Previous calls happened in between.
func (e *Exploration) Exit() (engine.Position, int, []engine.MoveRecord) {
	pos := e.state.SavedPosition
	index := e.state.SavedMoveIndex
	history := e.state.SavedMoveHistory
	e.state = ExplorationState{}
	return pos, index, history
}

// State returns a value snapshot of the episode.
func (e *Exploration) State() ExplorationState {
	st := e.state
	st.SavedMoveHistory = append([]engine.MoveRecord(nil), e.state.SavedMoveHistory...)
	return st
}
