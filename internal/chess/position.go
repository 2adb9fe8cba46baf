package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrEmptyFEN       = errors.New("puzzle position is empty")
	ErrNoMoves        = errors.New("puzzle has no scripted moves")
	ErrTerminal       = errors.New("puzzle position is already finished")
	ErrIllegalOpening = errors.New("first scripted move is illegal")
	ErrIllegalMove    = errors.New("illegal move")
)

// ValidatePuzzle checks that fen parses, that the game is not already over
// and that the first scripted UCI move is legal from it.
func ValidatePuzzle(fen string, moves []string) error {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return ErrEmptyFEN
	}
	if len(moves) == 0 || strings.TrimSpace(moves[0]) == "" {
		return ErrNoMoves
	}
	game, err := gameFromFEN(fen)
	if err != nil {
		return err
	}
	if game.Outcome() != nchess.NoOutcome || len(game.ValidMoves()) == 0 {
		return ErrTerminal
	}
	first := strings.ToLower(strings.TrimSpace(moves[0]))
	if err := game.PushNotationMove(first, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalOpening, first, err)
	}
	return nil
}

// SideToMove reports "white" or "black" for fen.
func SideToMove(fen string) (string, error) {
	game, err := gameFromFEN(strings.TrimSpace(fen))
	if err != nil {
		return "", err
	}
	if game.Position().Turn() == nchess.White {
		return "white", nil
	}
	return "black", nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}
