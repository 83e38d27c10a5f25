package domain

import "time"

type SavedGame struct {
	ID           int64
	SessionID    string
	PlayerID     string
	OpeningCode  string
	OpeningName  string
	Result       string
	ResultMethod string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	FinalFEN     string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

type PlayerProfile struct {
	PlayerID     string
	GamesPlayed  int
	Wins         int
	Losses       int
	Draws        int
	LastOpening  string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}
