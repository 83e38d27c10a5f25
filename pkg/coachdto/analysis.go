package coachdto

type AnalysisRequest struct {
	PGN string `json:"pgn"`
	FEN string `json:"fen,omitempty"`
}

type CriticalMoment struct {
	Ply          int            `json:"ply"`
	SAN          string         `json:"san"`
	Judgment     string         `json:"judgment"`
	EvalBeforeCP int            `json:"eval_before_cp"`
	EvalAfterCP  int            `json:"eval_after_cp"`
	BestLine     *SuggestedLine `json:"best_line,omitempty"`
}

type AnalysisReport struct {
	Summary string           `json:"summary"`
	Moments []CriticalMoment `json:"moments"`
}
