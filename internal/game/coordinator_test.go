package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-coach/internal/engine"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(engine.NewAdapter(nil), nil)
}

func mustMove(t *testing.T, c *Coordinator, from, to string) Snapshot {
	t.Helper()
	snap, err := c.MakeMove(from, to, "")
	require.NoError(t, err)
	return snap
}

// replayLine computes the expected board after the first n line moves from
// base, using a fresh adapter so nothing inside the coordinator is trusted.
func replayLine(t *testing.T, base engine.Position, ucis []string, n int) engine.Position {
	t.Helper()
	eng := engine.NewAdapter(nil)
	pos := base
	for i := 0; i < n; i++ {
		next, _, ok := eng.ApplyUCI(pos, ucis[i])
		require.True(t, ok, "replay %s", ucis[i])
		pos = next
	}
	return pos
}

func TestCoordinatorNormalFlow(t *testing.T) {
	c := newTestCoordinator(t)
	assert.Equal(t, ModeNormal, c.Mode())

	snap := mustMove(t, c, "e2", "e4")
	require.Len(t, snap.Game.History, 1)
	assert.Equal(t, "e4", snap.Game.History[0].SAN)
	assert.False(t, snap.Exploration.Active)

	snap, err := c.Undo()
	require.NoError(t, err)
	assert.Len(t, snap.Game.History, 0)

	_, err = c.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	_, err = c.MakeMove("e2", "e5", "")
	assert.ErrorIs(t, err, ErrIllegalMove)
}

func TestCoordinatorGotoOutOfRangeIsSilent(t *testing.T) {
	c := newTestCoordinator(t)
	mustMove(t, c, "e2", "e4")

	snap, err := c.GotoMove(99)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Game.CurrentIndex)

	snap, err = c.GotoMove(-1)
	require.NoError(t, err)
	assert.Equal(t, -1, snap.Game.CurrentIndex)
	assert.Len(t, snap.Game.History, 1)
}

func TestCoordinatorGuardsWhileExploring(t *testing.T) {
	c := newTestCoordinator(t)
	mustMove(t, c, "e2", "e4")
	before, err := c.Explore(SuggestedLine{MovesUCI: []string{"e7e5"}})
	require.NoError(t, err)
	require.Equal(t, ModeExploring, before.Mode)

	guarded := []func() (Snapshot, error){
		func() (Snapshot, error) { return c.MakeMove("e7", "e5", "") },
		func() (Snapshot, error) { return c.Undo() },
		func() (Snapshot, error) { return c.Reset() },
		func() (Snapshot, error) { return c.Resign() },
		func() (Snapshot, error) { return c.GotoMove(0) },
		func() (Snapshot, error) { return c.LoadFEN(engine.StartFEN) },
		func() (Snapshot, error) { return c.LoadPGN("1. d4 d5") },
		func() (Snapshot, error) { return c.LoadOpening("Ruy Lopez") },
	}
	for _, op := range guarded {
		snap, err := op()
		assert.ErrorIs(t, err, ErrExplorationActive)
		assert.Equal(t, before.Game.CurrentIndex, snap.Game.CurrentIndex)
		require.Len(t, snap.Game.History, len(before.Game.History))
	}

	_, _, _, err = c.CoachContext()
	assert.ErrorIs(t, err, ErrExplorationActive)

	// The epoch never moved while guarded.
	assert.Equal(t, before.Epoch, c.Epoch())
}

func TestCoordinatorRejectsNestedExploration(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Explore(SuggestedLine{MovesUCI: []string{"e2e4"}})
	require.NoError(t, err)

	_, err = c.Explore(SuggestedLine{MovesUCI: []string{"d2d4"}})
	assert.ErrorIs(t, err, ErrExplorationActive)
}

func TestCoordinatorRejectsEmptyLine(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Explore(SuggestedLine{})
	assert.ErrorIs(t, err, ErrEmptyLine)
	assert.Equal(t, ModeNormal, c.Mode())
}

func TestExploreNavigationShowsLinePositions(t *testing.T) {
	c := newTestCoordinator(t)
	line := SuggestedLine{MovesUCI: []string{"e2e4", "e7e5", "g1f3"}}

	snap, err := c.Explore(line)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Exploration.LegalPlies)
	assert.Equal(t, 0, snap.Exploration.CurrentPosition)
	base := snap.Exploration.SavedPosition

	// Entry displays the position after the first line move.
	assert.True(t, snap.Game.Position.Equal(replayLine(t, base, line.MovesUCI, 1)))

	snap, err = c.ExploreNext()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Exploration.CurrentPosition)
	assert.True(t, snap.Game.Position.Equal(replayLine(t, base, line.MovesUCI, 2)))

	snap, err = c.ExploreNext()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Exploration.CurrentPosition)
	assert.True(t, snap.Game.Position.Equal(replayLine(t, base, line.MovesUCI, 3)))

	// Clamped at the end of the playable prefix.
	snap, err = c.ExploreNext()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Exploration.CurrentPosition)

	snap, err = c.ExplorePrevious()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Exploration.CurrentPosition)
	assert.True(t, snap.Game.Position.Equal(replayLine(t, base, line.MovesUCI, 2)))

	snap, err = c.ExplorePrevious()
	require.NoError(t, err)
	snap, err = c.ExplorePrevious()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Exploration.CurrentPosition)
	assert.True(t, snap.Game.Position.Equal(replayLine(t, base, line.MovesUCI, 1)))
}

func TestExploreTruncatesIllegalSuffix(t *testing.T) {
	c := newTestCoordinator(t)
	line := SuggestedLine{MovesUCI: []string{"e2e4", "e2e4", "g1f3"}}

	snap, err := c.Explore(line)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Exploration.LegalPlies)

	// Navigation never leaves the playable prefix.
	snap, err = c.ExploreNext()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Exploration.CurrentPosition)
	assert.True(t, snap.Game.Position.Equal(
		replayLine(t, snap.Exploration.SavedPosition, line.MovesUCI, 1)))
}

func TestExploreWithNoPlayablePrefixKeepsBoard(t *testing.T) {
	c := newTestCoordinator(t)
	mustMove(t, c, "e2", "e4")
	before := c.Snapshot()

	snap, err := c.Explore(SuggestedLine{MovesUCI: []string{"e2e4"}})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Exploration.LegalPlies)
	assert.True(t, snap.Game.Position.Equal(before.Game.Position))

	snap, err = c.ExploreNext()
	require.NoError(t, err)
	assert.True(t, snap.Game.Position.Equal(before.Game.Position))
}

func TestExitRestoresCanonicalState(t *testing.T) {
	c := newTestCoordinator(t)
	mustMove(t, c, "e2", "e4")
	mustMove(t, c, "e7", "e5")
	mustMove(t, c, "g1", "f3")
	_, err := c.GotoMove(1)
	require.NoError(t, err)
	before := c.Snapshot()

	_, err = c.Explore(SuggestedLine{MovesUCI: []string{"b8c6", "f1b5"}})
	require.NoError(t, err)
	_, err = c.ExploreNext()
	require.NoError(t, err)

	after, err := c.ExitExploration()
	require.NoError(t, err)
	assert.Equal(t, ModeNormal, after.Mode)
	assert.False(t, after.Exploration.Active)
	assert.Equal(t, before.Game.CurrentIndex, after.Game.CurrentIndex)
	require.Len(t, after.Game.History, len(before.Game.History))
	for i := range before.Game.History {
		assert.Equal(t, before.Game.History[i], after.Game.History[i])
	}
	assert.True(t, after.Game.Position.Equal(before.Game.Position))
	assert.Equal(t, before.Epoch, after.Epoch)

	_, err = c.ExitExploration()
	assert.ErrorIs(t, err, ErrNotExploring)
	_, err = c.ExploreNext()
	assert.ErrorIs(t, err, ErrNotExploring)
}

func TestEpochRotation(t *testing.T) {
	c := newTestCoordinator(t)
	start := c.Epoch()

	mustMove(t, c, "e2", "e4")
	snap, err := c.Undo()
	require.NoError(t, err)
	assert.Equal(t, start, snap.Epoch)

	snap, err = c.Reset()
	require.NoError(t, err)
	assert.NotEqual(t, start, snap.Epoch)

	prev := snap.Epoch
	snap, err = c.LoadPGN("1. d4 d5")
	require.NoError(t, err)
	assert.NotEqual(t, prev, snap.Epoch)

	prev = snap.Epoch
	snap, err = c.LoadFEN("8/P7/8/8/8/8/7k/K7 w - - 0 1")
	require.NoError(t, err)
	assert.NotEqual(t, prev, snap.Epoch)

	// A failed load keeps both state and epoch.
	prev = snap.Epoch
	_, err = c.LoadFEN("garbage")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Equal(t, prev, c.Epoch())
}

func TestLoadOpeningFromCatalog(t *testing.T) {
	c := newTestCoordinator(t)

	snap, err := c.LoadOpening("ruy lopez")
	require.NoError(t, err)
	require.Len(t, snap.Game.History, 5)
	assert.Equal(t, "Bb5", snap.Game.History[4].SAN)

	code, _, ok := c.OpeningName()
	require.True(t, ok)
	assert.Equal(t, "C60", code)

	_, err = c.LoadOpening("nonsense gambit")
	assert.ErrorIs(t, err, ErrUnknownOpening)
}

func TestCoachContextCarriesDisplayHistory(t *testing.T) {
	c := newTestCoordinator(t)
	mustMove(t, c, "e2", "e4")
	mustMove(t, c, "e7", "e5")

	fen, sans, epoch, err := c.CoachContext()
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot().Game.Position.FEN(), fen)
	assert.Equal(t, []string{"e4", "e5"}, sans)
	assert.Equal(t, c.Epoch(), epoch)
}
