package chess

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// Opening identifies an ECO entry.
type Opening struct {
	Code  string
	Title string
}

// Key is the value used for novelty tracking: the ECO code when known,
// otherwise the title.
func (o Opening) Key() string {
	if o.Code != "" {
		return o.Code
	}
	return o.Title
}

// OpeningFromMoves replays uciMoves from the initial position and looks up
// the deepest matching ECO opening. An empty Opening means no match.
func OpeningFromMoves(uciMoves []string) (Opening, error) {
	game := nchess.NewGame()
	for _, mv := range uciMoves {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if mv == "" {
			continue
		}
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return Opening{}, fmt.Errorf("%w %s: %v", ErrIllegalMove, mv, err)
		}
	}
	book := opening.NewBookECO()
	if book == nil {
		return Opening{}, nil
	}
	if eco := book.Find(game.Moves()); eco != nil {
		return Opening{Code: eco.Code(), Title: eco.Title()}, nil
	}
	return Opening{}, nil
}
