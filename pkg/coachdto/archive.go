package coachdto

import "time"

type SavedGame struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	OpeningCode  string    `json:"opening_code,omitempty"`
	OpeningName  string    `json:"opening_name,omitempty"`
	Result       string    `json:"result"`
	ResultMethod string    `json:"result_method"`
	MovesUCI     []string  `json:"moves_uci"`
	MovesSAN     []string  `json:"moves_san"`
	PGN          string    `json:"pgn"`
	FinalFEN     string    `json:"final_fen"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMS   int64     `json:"duration_ms"`
}

type PlayerProfile struct {
	PlayerID     string    `json:"player_id"`
	GamesPlayed  int       `json:"games_played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Draws        int       `json:"draws"`
	LastOpening  string    `json:"last_opening,omitempty"`
	LastPlayedAt time.Time `json:"last_played_at"`
}
