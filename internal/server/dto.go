package server

import (
	"github.com/park285/chess-coach/internal/domain"
	"github.com/park285/chess-coach/internal/game"
	"github.com/park285/chess-coach/pkg/coachdto"
)

func toDTOSnapshot(sessionID string, snap game.Snapshot) coachdto.Snapshot {
	return coachdto.Snapshot{
		SessionID:   sessionID,
		Mode:        string(snap.Mode),
		Epoch:       snap.Epoch,
		Game:        toDTOGameState(snap.Game),
		Exploration: toDTOExploration(snap.Exploration),
	}
}

func toDTOGameState(st game.GameState) coachdto.GameState {
	history := make([]coachdto.MoveRecord, 0, len(st.History))
	for _, rec := range st.History {
		history = append(history, coachdto.MoveRecord{UCI: rec.UCI, SAN: rec.SAN})
	}
	return coachdto.GameState{
		FEN:          st.Position.FEN(),
		History:      history,
		CurrentIndex: st.CurrentIndex,
		Status:       string(st.Status),
		GameOver:     st.GameOver,
		Resigned:     st.Resigned,
		SideToMove:   string(st.SideToMove),
		Result:       st.Result,
	}
}

func toDTOExploration(st game.ExplorationState) coachdto.ExplorationState {
	out := coachdto.ExplorationState{
		Active:          st.Active,
		CurrentPosition: st.CurrentPosition,
		LegalPlies:      st.LegalPlies,
	}
	if st.Active {
		line := toDTOLine(st.Line)
		out.Line = &line
	}
	return out
}

func toDTOLine(line game.SuggestedLine) coachdto.SuggestedLine {
	return coachdto.SuggestedLine{
		Description:  line.Description,
		MovesUCI:     line.MovesUCI,
		MovesSAN:     line.MovesSAN,
		EvaluationCP: line.EvaluationCP,
	}
}

func toDTOSavedGame(g *domain.SavedGame) coachdto.SavedGame {
	return coachdto.SavedGame{
		ID:           g.ID,
		SessionID:    g.SessionID,
		OpeningCode:  g.OpeningCode,
		OpeningName:  g.OpeningName,
		Result:       g.Result,
		ResultMethod: g.ResultMethod,
		MovesUCI:     g.MovesUCI,
		MovesSAN:     g.MovesSAN,
		PGN:          g.PGN,
		FinalFEN:     g.FinalFEN,
		StartedAt:    g.StartedAt,
		EndedAt:      g.EndedAt,
		DurationMS:   g.Duration.Milliseconds(),
	}
}

func toDTOProfile(p *domain.PlayerProfile) coachdto.PlayerProfile {
	return coachdto.PlayerProfile{
		PlayerID:     p.PlayerID,
		GamesPlayed:  p.GamesPlayed,
		Wins:         p.Wins,
		Losses:       p.Losses,
		Draws:        p.Draws,
		LastOpening:  p.LastOpening,
		LastPlayedAt: p.LastPlayedAt,
	}
}

func fromDTOLine(line coachdto.SuggestedLine) game.SuggestedLine {
	return game.SuggestedLine{
		Description:  line.Description,
		MovesUCI:     line.MovesUCI,
		MovesSAN:     line.MovesSAN,
		EvaluationCP: line.EvaluationCP,
	}
}
