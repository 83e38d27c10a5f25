package coachdto

type CreateSessionRequest struct {
	PlayerID string `json:"player_id,omitempty"`
}

type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci,omitempty"`
}

type GotoRequest struct {
	Index int `json:"index"`
}

type LoadRequest struct {
	FEN     string `json:"fen,omitempty"`
	PGN     string `json:"pgn,omitempty"`
	Opening string `json:"opening,omitempty"`
}

type ExploreRequest struct {
	Line SuggestedLine `json:"line"`
}

type ChatRequest struct {
	Message string `json:"message"`
}
