package engine

import (
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an opaque board-state token. It is a plain value: copying it
// is a full snapshot, and no adapter call ever mutates the argument.
type Position struct {
	fen string
}

// StartingPosition returns the standard initial position.
func StartingPosition() Position {
	return Position{fen: StartFEN}
}

// FEN returns the serialized form of the position.
func (p Position) FEN() string {
	if p.fen == "" {
		return StartFEN
	}
	return p.fen
}

// Equal reports whether two positions describe the same board state.
func (p Position) Equal(other Position) bool {
	return p.FEN() == other.FEN()
}

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Status is the terminal classification of a position.
type Status string

const (
	StatusNone      Status = "none"
	StatusCheck     Status = "check"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
)

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusStalemate || s == StatusDraw
}

// MoveRecord is one ply. UCI is the coordinate form used for replay; SAN is
// the display form (and carries the +/# suffix the session layers on top).
type MoveRecord struct {
	UCI string `json:"uci"`
	SAN string `json:"san"`
}

// LoadedGame is the result of parsing a portable game record.
type LoadedGame struct {
	Start   Position
	Final   Position
	History []MoveRecord
	Result  string
}

// Adapter wraps the rules library behind the capability surface the game
// sessions use. It holds no position state of its own; every call rebuilds a
// scratch game from the FEN token, so no library object is ever shared
// between callers. Illegal input yields ok=false and the input position is
// returned unchanged.
type Adapter struct {
	logger *zap.Logger
}

func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) gameAt(pos Position) *nchess.Game {
	fen := pos.FEN()
	if fen == StartFEN {
		return nchess.NewGame()
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		a.logger.Warn("engine_bad_position_token", zap.String("fen", fen), zap.Error(err))
		return nil
	}
	return nchess.NewGame(opt)
}

// Apply plays from->to on pos. An empty promotion defaults to queen when the
// move requires one. Returns the new position and the move record.
func (a *Adapter) Apply(pos Position, from, to, promotion string) (Position, MoveRecord, bool) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if len(from) != 2 || len(to) != 2 {
		return pos, MoveRecord{}, false
	}
	promo := normalizePromotion(promotion)
	if promo != "" {
		return a.ApplyUCI(pos, from+to+promo)
	}
	if next, rec, ok := a.ApplyUCI(pos, from+to); ok {
		return next, rec, true
	}
	// Bare from+to on a promoting pawn move fails to decode; retry with the
	// default queen promotion.
	return a.ApplyUCI(pos, from+to+"q")
}

// ApplyUCI plays a single coordinate-move token on pos.
func (a *Adapter) ApplyUCI(pos Position, uci string) (Position, MoveRecord, bool) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if uci == "" {
		return pos, MoveRecord{}, false
	}
	game := a.gameAt(pos)
	if game == nil {
		return pos, MoveRecord{}, false
	}
	before := game.Position()
	notationUCI := nchess.UCINotation{}
	move, err := notationUCI.Decode(before, uci)
	if err != nil {
		return pos, MoveRecord{}, false
	}
	if err := game.Move(move, nil); err != nil {
		return pos, MoveRecord{}, false
	}
	rec := MoveRecord{
		UCI: strings.ToLower(notationUCI.Encode(before, move)),
		SAN: nchess.AlgebraicNotation{}.Encode(before, move),
	}
	return Position{fen: game.FEN()}, rec, true
}

// LegalDestinations returns the destination squares reachable from the given
// origin square, deduplicated (promotions collapse to one square) and sorted.
func (a *Adapter) LegalDestinations(pos Position, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	game := a.gameAt(pos)
	if game == nil {
		return nil
	}
	seen := make(map[string]struct{})
	moves := game.ValidMoves()
	for i := range moves {
		if moves[i].S1().String() != from {
			continue
		}
		seen[moves[i].S2().String()] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	dests := make([]string, 0, len(seen))
	for sq := range seen {
		dests = append(dests, sq)
	}
	sort.Strings(dests)
	return dests
}

// IsLegal reports whether from->to is playable in pos. Pure query.
func (a *Adapter) IsLegal(pos Position, from, to string) bool {
	to = strings.ToLower(strings.TrimSpace(to))
	for _, sq := range a.LegalDestinations(pos, from) {
		if sq == to {
			return true
		}
	}
	return false
}

// Status classifies pos as none/checkmate/stalemate/draw. Check with legal
// moves remaining is not observable from a bare position token; the Game
// Session derives it from the last move's SAN suffix.
func (a *Adapter) Status(pos Position) Status {
	game := a.gameAt(pos)
	if game == nil {
		return StatusNone
	}
	switch game.Method() {
	case nchess.Checkmate:
		return StatusCheckmate
	case nchess.Stalemate:
		return StatusStalemate
	}
	if game.Outcome() == nchess.Draw {
		return StatusDraw
	}
	return StatusNone
}

// SideToMove returns which side plays next in pos.
func (a *Adapter) SideToMove(pos Position) Color {
	game := a.gameAt(pos)
	if game == nil {
		return White
	}
	if game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

// LoadFEN parses a FEN string into a position token.
func (a *Adapter) LoadFEN(text string) (Position, bool) {
	text = strings.TrimSpace(text)
	opt, err := nchess.FEN(text)
	if err != nil {
		return Position{}, false
	}
	game := nchess.NewGame(opt)
	return Position{fen: game.FEN()}, true
}

// LoadPGN parses a portable game record into a start position plus the
// mainline move history.
func (a *Adapter) LoadPGN(text string) (LoadedGame, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return LoadedGame{}, false
	}
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return LoadedGame{}, false
	}
	game := nchess.NewGame(opt)
	positions := game.Positions()
	moves := game.Moves()
	if len(positions) == 0 {
		return LoadedGame{}, false
	}

	notationSAN := nchess.AlgebraicNotation{}
	notationUCI := nchess.UCINotation{}
	history := make([]MoveRecord, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		history = append(history, MoveRecord{
			UCI: strings.ToLower(notationUCI.Encode(positions[i], mv)),
			SAN: notationSAN.Encode(positions[i], mv),
		})
	}

	return LoadedGame{
		Start:   Position{fen: positions[0].String()},
		Final:   Position{fen: game.FEN()},
		History: history,
		Result:  game.Outcome().String(),
	}, true
}

// EncodePGN serializes a history into a portable game record that round-trips
// through LoadPGN. Non-standard start positions are carried in the FEN tag.
func (a *Adapter) EncodePGN(start Position, history []MoveRecord) string {
	game := a.gameAt(start)
	if game == nil {
		game = nchess.NewGame()
	}
	if start.FEN() != StartFEN {
		game.AddTagPair("SetUp", "1")
		game.AddTagPair("FEN", start.FEN())
	}
	for _, rec := range history {
		if err := game.PushNotationMove(rec.UCI, nchess.UCINotation{}, nil); err != nil {
			a.logger.Warn("engine_pgn_encode_truncated",
				zap.String("uci", rec.UCI),
				zap.Error(err),
			)
			break
		}
	}
	return game.String()
}

// Result maps a finished position onto the conventional result string.
func (a *Adapter) Result(pos Position) string {
	switch a.Status(pos) {
	case StatusCheckmate:
		if a.SideToMove(pos) == White {
			return "0-1"
		}
		return "1-0"
	case StatusStalemate, StatusDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func normalizePromotion(promotion string) string {
	p := strings.ToLower(strings.TrimSpace(promotion))
	switch p {
	case "":
		return ""
	case "q", "queen":
		return "q"
	case "r", "rook":
		return "r"
	case "b", "bishop":
		return "b"
	case "n", "knight":
		return "n"
	default:
		// Unknown piece names fall back to queen rather than failing the
		// whole move.
		return "q"
	}
}
