package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-coach/internal/engine"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(engine.NewAdapter(nil), nil)
}

func playMoves(t *testing.T, s *Session, ucis ...string) {
	t.Helper()
	for _, uci := range ucis {
		require.True(t, s.MakeMoveUCI(uci), "apply %s", uci)
	}
}

func TestMakeMoveAppendsHistory(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5", "g1f3")

	st := s.State()
	require.Len(t, st.History, 3)
	assert.Equal(t, 2, st.CurrentIndex)
	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3"},
		[]string{st.History[0].UCI, st.History[1].UCI, st.History[2].UCI})
	assert.Equal(t, engine.Black, st.SideToMove)
}

func TestMakeMoveRejectsIllegal(t *testing.T) {
	s := newTestSession(t)
	before := s.State()

	assert.False(t, s.MakeMove("e2", "e5", ""))
	assert.False(t, s.MakeMoveUCI("junk"))

	after := s.State()
	assert.True(t, after.Position.Equal(before.Position))
	assert.Len(t, after.History, 0)
}

func TestUndoPopsAndReplays(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5")
	afterFirst := s.replay(0)

	require.True(t, s.Undo())
	st := s.State()
	require.Len(t, st.History, 1)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.True(t, st.Position.Equal(afterFirst))

	require.True(t, s.Undo())
	st = s.State()
	assert.Len(t, st.History, 0)
	assert.Equal(t, -1, st.CurrentIndex)
	assert.True(t, st.Position.Equal(engine.StartingPosition()))

	assert.False(t, s.Undo())
}

func TestGotoMoveNavigatesWithoutTouchingHistory(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5", "g1f3", "b8c6")

	require.True(t, s.GotoMove(1))
	st := s.State()
	assert.Equal(t, 1, st.CurrentIndex)
	require.Len(t, st.History, 4)
	assert.True(t, st.Position.Equal(s.replay(1)))

	require.True(t, s.GotoMove(-1))
	assert.True(t, s.State().Position.Equal(engine.StartingPosition()))

	// Out of range is a refused no-op.
	assert.False(t, s.GotoMove(4))
	assert.False(t, s.GotoMove(-2))
	assert.Equal(t, -1, s.State().CurrentIndex)
}

func TestMakeMoveWhileBrowsingAbandonsSuffix(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5", "g1f3", "b8c6")

	require.True(t, s.GotoMove(1))
	require.True(t, s.MakeMoveUCI("f1c4"))

	st := s.State()
	require.Len(t, st.History, 3)
	assert.Equal(t, []string{"e2e4", "e7e5", "f1c4"},
		[]string{st.History[0].UCI, st.History[1].UCI, st.History[2].UCI})
	assert.Equal(t, 2, st.CurrentIndex)
}

func TestLoadFENReplacesTimeline(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4")

	require.True(t, s.LoadFEN("8/P7/8/8/8/8/7k/K7 w - - 0 1"))
	st := s.State()
	assert.Len(t, st.History, 0)
	assert.Equal(t, -1, st.CurrentIndex)
	assert.Equal(t, engine.White, st.SideToMove)

	// Bad input leaves the loaded state untouched.
	before := s.State()
	assert.False(t, s.LoadFEN("garbage"))
	assert.True(t, s.State().Position.Equal(before.Position))
}

func TestLoadPGNPositionsAtTail(t *testing.T) {
	s := newTestSession(t)
	require.True(t, s.LoadPGN("1. e4 e5 2. Nf3 Nc6"))

	st := s.State()
	require.Len(t, st.History, 4)
	assert.Equal(t, 3, st.CurrentIndex)
	assert.Equal(t, "Nc6", st.History[3].SAN)

	// The record round-trips through serialization.
	again := newTestSession(t)
	require.True(t, again.LoadPGN(s.RecordNotation()))
	assert.True(t, again.State().Position.Equal(st.Position))
}

func TestResignEndsGameForSideToMove(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4")

	require.True(t, s.Resign())
	st := s.State()
	assert.True(t, st.GameOver)
	assert.True(t, st.Resigned)
	assert.Equal(t, "1-0", st.Result)

	assert.False(t, s.MakeMoveUCI("e7e5"))
	assert.False(t, s.Resign())

	// Undo cancels the resignation.
	require.True(t, s.Undo())
	assert.False(t, s.State().GameOver)
}

func TestStateReportsCheckFromLastMove(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")

	st := s.State()
	assert.Equal(t, engine.StatusCheckmate, st.Status)
	assert.True(t, st.GameOver)
	assert.Equal(t, "1-0", st.Result)

	check := newTestSession(t)
	playMoves(t, check, "e2e4", "d7d5", "f1b5")
	assert.Equal(t, engine.StatusCheck, check.State().Status)
	assert.False(t, check.State().GameOver)
}

func TestRestoreRebuildsSnapshot(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, "e2e4", "e7e5", "g1f3")
	require.True(t, s.GotoMove(1))
	saved := s.State()

	s.ShowPosition(engine.StartingPosition())
	require.True(t, s.MakeMoveUCI("d2d4"))

	s.Restore(saved.Position, saved.History, saved.CurrentIndex)
	st := s.State()
	assert.Equal(t, saved.CurrentIndex, st.CurrentIndex)
	require.Len(t, st.History, len(saved.History))
	for i := range saved.History {
		assert.Equal(t, saved.History[i], st.History[i])
	}
	assert.True(t, st.Position.Equal(saved.Position))
}
