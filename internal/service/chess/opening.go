package chess

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func bookECO() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// openingFor names the ECO opening reached by moves. Games set up from a
// custom position have no opening.
func openingFor(startFEN string, moves []string) (string, string) {
	if startFEN != standardStartFEN || len(moves) == 0 {
		return "", ""
	}
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, text := range moves {
		mv, err := notation.Decode(game.Position(), text)
		if err != nil {
			return "", ""
		}
		if err := game.Move(mv, nil); err != nil {
			return "", ""
		}
	}
	book := bookECO()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
