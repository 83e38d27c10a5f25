package engine

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func loadECO() *opening.BookECO {
	ecoOnce.Do(func() {
		ecoBook = opening.NewBookECO()
	})
	return ecoBook
}

// OpeningName classifies a history played from the standard initial position
// against the ECO book. Returns ok=false when the line is not in the book or
// a history token fails to replay.
func (a *Adapter) OpeningName(history []MoveRecord) (code, title string, ok bool) {
	game := nchess.NewGame()
	for _, rec := range history {
		if err := game.PushNotationMove(rec.UCI, nchess.UCINotation{}, nil); err != nil {
			return "", "", false
		}
	}
	eco := loadECO().Find(game.Moves())
	if eco == nil {
		return "", "", false
	}
	return eco.Code(), eco.Title(), true
}
