package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLegalAndIllegal(t *testing.T) {
	a := NewAdapter(nil)
	pos := StartingPosition()

	next, rec, ok := a.ApplyUCI(pos, "e2e4")
	require.True(t, ok)
	assert.Equal(t, "e2e4", rec.UCI)
	assert.Equal(t, "e4", rec.SAN)
	assert.NotEqual(t, pos.FEN(), next.FEN())

	// Illegal move leaves the input token unchanged.
	same, _, ok := a.ApplyUCI(next, "e2e4")
	assert.False(t, ok)
	assert.True(t, same.Equal(next))

	// Malformed token.
	same, _, ok = a.ApplyUCI(next, "zzzz")
	assert.False(t, ok)
	assert.True(t, same.Equal(next))
}

func TestApplyDefaultsPromotionToQueen(t *testing.T) {
	a := NewAdapter(nil)
	pos, ok := a.LoadFEN("8/P7/8/8/8/8/7k/K7 w - - 0 1")
	require.True(t, ok)

	next, rec, ok := a.Apply(pos, "a7", "a8", "")
	require.True(t, ok)
	assert.Equal(t, "a7a8q", rec.UCI)
	assert.Contains(t, next.FEN(), "Q")

	_, rec, ok = a.Apply(pos, "a7", "a8", "rook")
	require.True(t, ok)
	assert.Equal(t, "a7a8r", rec.UCI)
}

func TestLegalDestinations(t *testing.T) {
	a := NewAdapter(nil)
	pos := StartingPosition()

	dests := a.LegalDestinations(pos, "e2")
	assert.Equal(t, []string{"e3", "e4"}, dests)

	assert.Empty(t, a.LegalDestinations(pos, "e5"))
	assert.True(t, a.IsLegal(pos, "g1", "f3"))
	assert.False(t, a.IsLegal(pos, "g1", "g3"))
}

func TestStatusClassification(t *testing.T) {
	a := NewAdapter(nil)

	assert.Equal(t, StatusNone, a.Status(StartingPosition()))

	mate, ok := a.LoadFEN("rn1qkbnr/pbpp1Qpp/1p6/4p3/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 0 1")
	require.True(t, ok)
	assert.Equal(t, StatusCheckmate, a.Status(mate))
	assert.Equal(t, "1-0", a.Result(mate))

	pre, ok := a.LoadFEN("k1K5/8/8/8/8/8/8/1Q6 w - - 0 1")
	require.True(t, ok)
	stale, _, ok := a.ApplyUCI(pre, "b1b6")
	require.True(t, ok)
	assert.Equal(t, StatusStalemate, a.Status(stale))
	assert.Equal(t, "1/2-1/2", a.Result(stale))
}

func TestSideToMove(t *testing.T) {
	a := NewAdapter(nil)
	pos := StartingPosition()
	assert.Equal(t, White, a.SideToMove(pos))

	next, _, ok := a.ApplyUCI(pos, "e2e4")
	require.True(t, ok)
	assert.Equal(t, Black, a.SideToMove(next))
}

func TestLoadFENRejectsGarbage(t *testing.T) {
	a := NewAdapter(nil)
	_, ok := a.LoadFEN("not a position")
	assert.False(t, ok)
}

func TestPGNRoundTrip(t *testing.T) {
	a := NewAdapter(nil)

	pos := StartingPosition()
	history := []MoveRecord{}
	for _, uci := range []string{"e2e4", "e7e5", "g1f3", "b8c6"} {
		next, rec, ok := a.ApplyUCI(pos, uci)
		require.True(t, ok, "apply %s", uci)
		pos = next
		history = append(history, rec)
	}

	pgn := a.EncodePGN(StartingPosition(), history)
	loaded, ok := a.LoadPGN(pgn)
	require.True(t, ok)
	require.Len(t, loaded.History, len(history))
	for i := range history {
		assert.Equal(t, history[i].UCI, loaded.History[i].UCI)
		assert.Equal(t, history[i].SAN, loaded.History[i].SAN)
	}
	assert.True(t, loaded.Final.Equal(pos))
}

func TestLoadPGNRejectsGarbage(t *testing.T) {
	a := NewAdapter(nil)
	_, ok := a.LoadPGN("")
	assert.False(t, ok)
}
