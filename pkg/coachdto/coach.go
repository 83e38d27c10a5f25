package coachdto

type CoachAdviceRequest struct {
	Message  string   `json:"message"`
	FEN      string   `json:"fen"`
	MovesSAN []string `json:"move_history"`
	Epoch    string   `json:"epoch"`
}

type CoachAdvice struct {
	Text  string          `json:"text"`
	Lines []SuggestedLine `json:"lines,omitempty"`
	Epoch string          `json:"epoch"`
}
