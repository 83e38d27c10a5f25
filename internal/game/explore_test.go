package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-coach/internal/engine"
)

func TestExplorationLifecycle(t *testing.T) {
	e := NewExploration(nil)
	assert.False(t, e.Active())

	line := SuggestedLine{
		Description: "kingside push",
		MovesUCI:    []string{"e2e4", "e7e5", "g1f3"},
	}
	history := []engine.MoveRecord{{UCI: "d2d4", SAN: "d4"}}
	e.Enter(line, 3, engine.StartingPosition(), 0, history)

	require.True(t, e.Active())
	st := e.State()
	assert.Equal(t, 0, st.CurrentPosition)
	assert.Equal(t, 3, st.LegalPlies)
	assert.Equal(t, 0, st.SavedMoveIndex)
	require.Len(t, st.SavedMoveHistory, 1)

	pos, index, saved := e.Exit()
	assert.True(t, pos.Equal(engine.StartingPosition()))
	assert.Equal(t, 0, index)
	require.Len(t, saved, 1)
	assert.Equal(t, "d2d4", saved[0].UCI)

	assert.False(t, e.Active())
	assert.Equal(t, ExplorationState{}, e.State())
}

func TestExplorationNavigationClamps(t *testing.T) {
	e := NewExploration(nil)
	line := SuggestedLine{MovesUCI: []string{"e2e4", "e7e5", "g1f3"}}
	e.Enter(line, 3, engine.StartingPosition(), -1, nil)

	assert.Equal(t, 0, e.Previous())
	assert.Equal(t, 1, e.Next())
	assert.Equal(t, 2, e.Next())
	assert.Equal(t, 2, e.Next())
	assert.Equal(t, 1, e.Previous())
	assert.Equal(t, 0, e.Previous())
	assert.Equal(t, 0, e.Previous())
}

func TestExplorationEnterClampsLegalPlies(t *testing.T) {
	e := NewExploration(nil)
	line := SuggestedLine{MovesUCI: []string{"e2e4"}}

	e.Enter(line, 5, engine.StartingPosition(), -1, nil)
	assert.Equal(t, 1, e.State().LegalPlies)

	e.Exit()
	e.Enter(line, -1, engine.StartingPosition(), -1, nil)
	assert.Equal(t, 0, e.State().LegalPlies)
}

func TestExplorationSnapshotIsIsolated(t *testing.T) {
	e := NewExploration(nil)
	history := []engine.MoveRecord{{UCI: "e2e4", SAN: "e4"}}
	e.Enter(SuggestedLine{MovesUCI: []string{"d2d4"}}, 1, engine.StartingPosition(), 0, history)

	// Mutating the caller's slice after entry must not leak in.
	history[0] = engine.MoveRecord{UCI: "a2a3", SAN: "a3"}
	assert.Equal(t, "e2e4", e.State().SavedMoveHistory[0].UCI)

	// Mutating a returned snapshot must not leak back.
	st := e.State()
	st.SavedMoveHistory[0] = engine.MoveRecord{UCI: "h2h4", SAN: "h4"}
	assert.Equal(t, "e2e4", e.State().SavedMoveHistory[0].UCI)
}
