package gamerecord

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Summary describes how far a detected move list replays as a legal game.
type Summary struct {
	Plies   int
	Legal   int
	UCI     []string
	SAN     []string
	FEN     string
	Outcome string
	Method  string
	// 처음으로 적용하지 못한 수 (없으면 빈 문자열)
	FirstIllegal string
}

// Complete reports whether every detected move replayed legally.
func (s Summary) Complete() bool { return s.Plies > 0 && s.Legal == s.Plies }

// Replay applies moves from the initial position until the first move that cannot be applied.
// Moves may be SAN or UCI. It returns the game and the number of applied moves.
func Replay(moves []string) (*nchess.Game, int) {
	game := nchess.NewGame()
	uci := nchess.UCINotation{}
	for i, raw := range moves {
		mv := strings.TrimSpace(raw)
		if mv == "" {
			return game, i
		}
		if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err == nil {
			continue
		}
		decoded, err := uci.Decode(game.Position(), strings.ToLower(mv))
		if err != nil {
			return game, i
		}
		if err := game.Move(decoded, nil); err != nil {
			return game, i
		}
	}
	return game, len(moves)
}

// Summarize never fails; illegal or unreadable moves simply stop the replay.
func Summarize(moves []string) Summary {
	game, applied := Replay(moves)
	sum := Summary{
		Plies: len(moves),
		Legal: applied,
		FEN:   game.FEN(),
	}
	if applied < len(moves) {
		sum.FirstIllegal = strings.TrimSpace(moves[applied])
	}

	positions := game.Positions()
	played := game.Moves()
	notation := nchess.AlgebraicNotation{}
	sum.UCI = make([]string, 0, len(played))
	sum.SAN = make([]string, 0, len(played))
	for i, mv := range played {
		sum.UCI = append(sum.UCI, mv.String())
		if i < len(positions) {
			sum.SAN = append(sum.SAN, notation.Encode(positions[i], mv))
		}
	}

	if out := game.Outcome(); out != nchess.NoOutcome {
		sum.Outcome = out.String()
		sum.Method = strings.ToLower(game.Method().String())
	}
	return sum
}
