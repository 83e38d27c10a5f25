package coachdto

type MoveRecord struct {
	UCI string `json:"uci"`
	SAN string `json:"san"`
}

type SuggestedLine struct {
	Description  string   `json:"description"`
	MovesUCI     []string `json:"moves"`
	MovesSAN     []string `json:"moves_san,omitempty"`
	EvaluationCP *int     `json:"evaluation_cp,omitempty"`
}

type GameState struct {
	FEN          string       `json:"fen"`
	History      []MoveRecord `json:"history"`
	CurrentIndex int          `json:"current_index"`
	Status       string       `json:"status"`
	GameOver     bool         `json:"game_over"`
	Resigned     bool         `json:"resigned"`
	SideToMove   string       `json:"side_to_move"`
	Result       string       `json:"result"`
}

type ExplorationState struct {
	Active          bool           `json:"active"`
	Line            *SuggestedLine `json:"line,omitempty"`
	CurrentPosition int            `json:"current_position"`
	LegalPlies      int            `json:"legal_plies"`
}

type Snapshot struct {
	SessionID   string           `json:"session_id"`
	Mode        string           `json:"mode"`
	Epoch       string           `json:"epoch"`
	Game        GameState        `json:"game"`
	Exploration ExplorationState `json:"exploration"`
	Message     string           `json:"message,omitempty"`
}
