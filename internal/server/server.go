package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/engine"
	"github.com/park285/chess-coach/internal/game"
	"github.com/park285/chess-coach/internal/msgcat"
	"github.com/park285/chess-coach/internal/session"
	"github.com/park285/chess-coach/pkg/coachdto"
)

// Server exposes the session manager over a small JSON API.
type Server struct {
	mgr    *session.Manager
	msgs   *msgcat.Catalog
	logger *zap.Logger
	http   *fasthttp.Server
}

func New(mgr *session.Manager, msgs *msgcat.Catalog, logger *zap.Logger) (*Server, error) {
	if mgr == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{mgr: mgr, msgs: msgs, logger: logger}
	s.http = &fasthttp.Server{
		Handler: s.Handler(),
		Name:    "chess-coach",
	}
	return s, nil
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("server_listening", zap.String("addr", addr))
	return s.http.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.http.Shutdown()
}

// Handler returns the route dispatcher.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		method := string(ctx.Method())

		switch {
		case path == "/healthz" && method == fasthttp.MethodGet:
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case path == "/v1/openings" && method == fasthttp.MethodGet:
			s.writeJSON(ctx, fasthttp.StatusOK, map[string][]string{"openings": game.OpeningNames()})
		case path == "/v1/sessions" && method == fasthttp.MethodPost:
			s.handleCreate(ctx)
		case strings.HasPrefix(path, "/v1/sessions/"):
			s.dispatchSession(ctx, method, strings.TrimPrefix(path, "/v1/sessions/"))
		case strings.HasPrefix(path, "/v1/players/"):
			s.dispatchPlayer(ctx, method, strings.TrimPrefix(path, "/v1/players/"))
		default:
			s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such route")
		}
	}
}

func (s *Server) dispatchSession(ctx *fasthttp.RequestCtx, method, rest string) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "session id required")
		return
	}
	id := parts[0]
	action := strings.Join(parts[1:], "/")

	switch {
	case action == "" && method == fasthttp.MethodGet:
		s.handleSnapshot(ctx, id)
	case action == "" && method == fasthttp.MethodDelete:
		s.handleDelete(ctx, id)
	case action == "hints" && method == fasthttp.MethodGet:
		s.handleHints(ctx, id)
	case method != fasthttp.MethodPost:
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "POST required")
	case action == "moves":
		s.handleMove(ctx, id)
	case action == "undo":
		s.handleUndo(ctx, id)
	case action == "reset":
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.Reset() },
			func(game.Snapshot) string { return s.render("game.started", nil) })
	case action == "resign":
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.Resign() },
			func(snap game.Snapshot) string {
				return s.render("game.resigned", map[string]any{
					"Side":   resignedSide(snap.Game.Result),
					"Result": snap.Game.Result,
				})
			})
	case action == "goto":
		s.handleGoto(ctx, id)
	case action == "load":
		s.handleLoad(ctx, id)
	case action == "explore":
		s.handleExplore(ctx, id)
	case action == "explore/next":
		s.handleExploreStep(ctx, id, true)
	case action == "explore/prev":
		s.handleExploreStep(ctx, id, false)
	case action == "explore/exit":
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.ExitExploration() },
			func(game.Snapshot) string { return s.render("explore.exited", nil) })
	case action == "coach":
		s.handleCoach(ctx, id)
	case action == "analysis":
		s.handleAnalysis(ctx, id)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such action")
	}
}

func (s *Server) dispatchPlayer(ctx *fasthttp.RequestCtx, method, rest string) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "player id required")
		return
	}
	if method != fasthttp.MethodGet {
		s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	playerID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "games":
		s.handleRecentGames(ctx, playerID)
	case len(parts) == 3 && parts[1] == "games":
		s.handleSavedGame(ctx, playerID, parts[2])
	case len(parts) == 2 && parts[1] == "profile":
		s.handleProfile(ctx, playerID)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "no such resource")
	}
}

func (s *Server) handleRecentGames(ctx *fasthttp.RequestCtx, playerID string) {
	limit := ctx.QueryArgs().GetUintOrZero("limit")
	games, err := s.mgr.RecentGames(ctx, playerID, limit)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	out := make([]coachdto.SavedGame, 0, len(games))
	for _, g := range games {
		out = append(out, toDTOSavedGame(g))
	}
	s.writeJSON(ctx, fasthttp.StatusOK, map[string][]coachdto.SavedGame{"games": out})
}

func (s *Server) handleSavedGame(ctx *fasthttp.RequestCtx, playerID, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "game id must be numeric")
		return
	}
	saved, err := s.mgr.SavedGame(ctx, playerID, id)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	if saved == nil {
		s.writeError(ctx, fasthttp.StatusNotFound, "game_not_found", "no such saved game")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toDTOSavedGame(saved))
}

func (s *Server) handleProfile(ctx *fasthttp.RequestCtx, playerID string) {
	profile, err := s.mgr.Profile(ctx, playerID)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	if profile == nil {
		s.writeError(ctx, fasthttp.StatusNotFound, "profile_not_found", "no games on record")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toDTOProfile(profile))
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req coachdto.CreateSessionRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
			return
		}
	}
	id, snap, err := s.mgr.Create(ctx, req.PlayerID)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	out := toDTOSnapshot(id, snap)
	out.Message = s.render("game.started", nil)
	s.writeJSON(ctx, fasthttp.StatusCreated, out)
}

func (s *Server) handleSnapshot(ctx *fasthttp.RequestCtx, id string) {
	snap, err := s.mgr.Snapshot(ctx, id)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toDTOSnapshot(id, snap))
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx, id string) {
	if err := s.mgr.Delete(ctx, id); err != nil {
		s.writeFailure(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleHints(ctx *fasthttp.RequestCtx, id string) {
	hints, err := s.mgr.Hints(ctx, id)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, map[string][]coachdto.CoachAdvice{"hints": hints})
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, id string) {
	var req coachdto.MoveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
		return
	}
	snap, err := s.mgr.Apply(ctx, id, func(c *game.Coordinator) (game.Snapshot, error) {
		if strings.TrimSpace(req.UCI) != "" {
			return c.MakeMoveUCI(req.UCI)
		}
		return c.MakeMove(req.From, req.To, req.Promotion)
	})
	if err != nil {
		if errors.Is(err, game.ErrIllegalMove) {
			from, to := req.From, req.To
			if uci := strings.TrimSpace(req.UCI); len(uci) >= 4 {
				from, to = uci[:2], uci[2:4]
			}
			s.writeError(ctx, fasthttp.StatusUnprocessableEntity, "illegal_move",
				s.renderOr("game.move_illegal", map[string]any{"From": from, "To": to}, err.Error()))
			return
		}
		s.writeFailure(ctx, err)
		return
	}
	out := toDTOSnapshot(id, snap)
	out.Message = s.moveMessage(snap)
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) moveMessage(snap game.Snapshot) string {
	st := snap.Game
	if st.CurrentIndex < 0 || st.CurrentIndex >= len(st.History) {
		return ""
	}
	if st.GameOver {
		return s.render("game.finished", map[string]any{
			"Result": st.Result,
			"Method": string(st.Status),
		})
	}
	msg := s.render("game.move_played", map[string]any{"SAN": st.History[st.CurrentIndex].SAN})
	if st.Status == engine.StatusCheck {
		if chk := s.render("game.check", nil); chk != "" {
			msg = strings.TrimSpace(msg + " " + chk)
		}
	}
	return msg
}

func (s *Server) handleUndo(ctx *fasthttp.RequestCtx, id string) {
	var popped string
	s.applyOp(ctx, id,
		func(c *game.Coordinator) (game.Snapshot, error) {
			if st := c.Snapshot().Game; len(st.History) > 0 {
				popped = st.History[len(st.History)-1].SAN
			}
			return c.Undo()
		},
		func(game.Snapshot) string {
			return s.render("game.undo_done", map[string]any{"SAN": popped})
		})
}

func (s *Server) handleGoto(ctx *fasthttp.RequestCtx, id string) {
	var req coachdto.GotoRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
		return
	}
	s.applyOp(ctx, id, func(c *game.Coordinator) (game.Snapshot, error) {
		return c.GotoMove(req.Index)
	}, nil)
}

func (s *Server) handleLoad(ctx *fasthttp.RequestCtx, id string) {
	var req coachdto.LoadRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
		return
	}
	switch {
	case strings.TrimSpace(req.Opening) != "":
		entry, _ := game.OpeningEntry(req.Opening)
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.LoadOpening(req.Opening) },
			func(game.Snapshot) string {
				return s.render("game.loaded_opening", map[string]any{"Name": entry.Name})
			})
	case strings.TrimSpace(req.PGN) != "":
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.LoadPGN(req.PGN) },
			func(snap game.Snapshot) string {
				return s.render("game.loaded_pgn", map[string]any{"MoveCount": len(snap.Game.History)})
			})
	case strings.TrimSpace(req.FEN) != "":
		s.applyOp(ctx, id,
			func(c *game.Coordinator) (game.Snapshot, error) { return c.LoadFEN(req.FEN) },
			func(snap game.Snapshot) string {
				return s.render("game.loaded_fen", map[string]any{"SideToMove": sideLabel(snap.Game.SideToMove)})
			})
	default:
		s.applyOp(ctx, id, func(c *game.Coordinator) (game.Snapshot, error) {
			return c.Snapshot(), game.ErrInvalidRecord
		}, nil)
	}
}

func (s *Server) handleExplore(ctx *fasthttp.RequestCtx, id string) {
	var req coachdto.ExploreRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
		return
	}
	total := len(req.Line.MovesUCI)
	snap, err := s.mgr.Apply(ctx, id, func(c *game.Coordinator) (game.Snapshot, error) {
		return c.Explore(fromDTOLine(req.Line))
	})
	if err != nil {
		if errors.Is(err, game.ErrExplorationActive) {
			s.writeError(ctx, fasthttp.StatusConflict, "exploration_active",
				s.renderOr("explore.nested", nil, err.Error()))
			return
		}
		s.writeFailure(ctx, err)
		return
	}
	out := toDTOSnapshot(id, snap)
	st := snap.Exploration
	switch {
	case st.LegalPlies == 0:
		out.Message = s.render("explore.unplayable", nil)
	case st.LegalPlies < total:
		out.Message = s.render("explore.truncated", map[string]any{"LegalPlies": st.LegalPlies})
	default:
		out.Message = s.render("explore.entered", map[string]any{
			"Description": st.Line.Description,
			"Plies":       st.LegalPlies,
		})
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleExploreStep(ctx *fasthttp.RequestCtx, id string, forward bool) {
	var before, legal int
	s.applyOp(ctx, id,
		func(c *game.Coordinator) (game.Snapshot, error) {
			st := c.Snapshot().Exploration
			before, legal = st.CurrentPosition, st.LegalPlies
			if forward {
				return c.ExploreNext()
			}
			return c.ExplorePrevious()
		},
		func(snap game.Snapshot) string {
			cur := snap.Exploration.CurrentPosition
			if cur != before {
				return ""
			}
			if forward && cur >= legal-1 {
				return s.render("explore.at_end", nil)
			}
			if !forward && cur == 0 {
				return s.render("explore.at_start", nil)
			}
			return ""
		})
}

func (s *Server) handleCoach(ctx *fasthttp.RequestCtx, id string) {
	var req coachdto.ChatRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "malformed body")
		return
	}
	advice, err := s.mgr.Advise(ctx, id, req.Message)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, advice)
}

func (s *Server) handleAnalysis(ctx *fasthttp.RequestCtx, id string) {
	report, err := s.mgr.Analyze(ctx, id)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, report)
}

func (s *Server) applyOp(ctx *fasthttp.RequestCtx, id string, op func(*game.Coordinator) (game.Snapshot, error), msg func(game.Snapshot) string) {
	snap, err := s.mgr.Apply(ctx, id, op)
	if err != nil {
		s.writeFailure(ctx, err)
		return
	}
	out := toDTOSnapshot(id, snap)
	if msg != nil {
		out.Message = msg(snap)
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) writeFailure(ctx *fasthttp.RequestCtx, err error) {
	status, code, msgKey := classifyError(err)
	message := err.Error()
	if msgKey != "" {
		if rendered := s.render(msgKey, nil); rendered != "" {
			message = rendered
		}
	}
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("request_failed", zap.Error(err))
	}
	s.writeError(ctx, status, code, message)
}

func classifyError(err error) (status int, code string, msgKey string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return fasthttp.StatusNotFound, "session_not_found", "error.session_not_found"
	case errors.Is(err, session.ErrTooManySessions):
		return fasthttp.StatusTooManyRequests, "session_limit", ""
	case errors.Is(err, session.ErrAdviceInFlight):
		return fasthttp.StatusTooManyRequests, "advice_in_flight", "coach.thinking"
	case errors.Is(err, session.ErrStaleAdvice):
		return fasthttp.StatusConflict, "stale_advice", "coach.stale_dropped"
	case errors.Is(err, session.ErrNoCoach), errors.Is(err, session.ErrNoAnalyzer):
		return fasthttp.StatusServiceUnavailable, "backend_unavailable", "coach.unavailable"
	case errors.Is(err, session.ErrNoArchive):
		return fasthttp.StatusServiceUnavailable, "backend_unavailable", ""
	case errors.Is(err, game.ErrExplorationActive):
		return fasthttp.StatusConflict, "exploration_active", "explore.blocked"
	case errors.Is(err, game.ErrNotExploring):
		return fasthttp.StatusConflict, "not_exploring", ""
	case errors.Is(err, game.ErrIllegalMove):
		return fasthttp.StatusUnprocessableEntity, "illegal_move", ""
	case errors.Is(err, game.ErrInvalidRecord):
		return fasthttp.StatusUnprocessableEntity, "invalid_record", "error.invalid_record"
	case errors.Is(err, game.ErrNothingToUndo):
		return fasthttp.StatusConflict, "nothing_to_undo", "game.undo_empty"
	case errors.Is(err, game.ErrGameFinished):
		return fasthttp.StatusConflict, "game_finished", ""
	case errors.Is(err, game.ErrEmptyLine):
		return fasthttp.StatusUnprocessableEntity, "empty_line", ""
	case errors.Is(err, game.ErrUnknownOpening):
		return fasthttp.StatusNotFound, "unknown_opening", "error.unknown_opening"
	default:
		return fasthttp.StatusInternalServerError, "internal", ""
	}
}

func resignedSide(result string) string {
	if result == "0-1" {
		return "White"
	}
	return "Black"
}

func sideLabel(c engine.Color) string {
	if c == engine.Black {
		return "Black"
	}
	return "White"
}

func (s *Server) render(key string, data any) string {
	if s.msgs == nil {
		return ""
	}
	out, err := s.msgs.Render(key, data)
	if err != nil {
		s.logger.Debug("message_render_failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return out
}

func (s *Server) renderOr(key string, data any, fallback string) string {
	if out := s.render(key, data); out != "" {
		return out
	}
	return fallback
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusInternalServerError, "internal", "encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	body, _ := json.Marshal(coachdto.ErrorResponse{Error: message, Code: code})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
