package gamerecord

import (
	"strings"
	"testing"

	"github.com/park285/Cheese-Video-Analyzer/pkg/analysisdto"
)

func strptr(s string) *string { return &s }

func TestFromPayloadKeepsPGNVerbatim(t *testing.T) {
	rec := FromPayload(&analysisdto.ResultPayload{Moves: []string{"e4", "e5"}, PGN: strptr("1. e4 e5")})
	if rec.PGN != "1. e4 e5" || rec.Synthesized {
		t.Fatalf("pgn altered: %+v", rec)
	}
	if len(rec.Moves) != 2 || rec.Moves[0] != "e4" || rec.Moves[1] != "e5" {
		t.Fatalf("unexpected moves: %v", rec.Moves)
	}
}

func TestFromPayloadSynthesizesPGN(t *testing.T) {
	rec := FromPayload(&analysisdto.ResultPayload{Moves: []string{" e4 ", "", "e5", "Nf3"}})
	if !rec.Synthesized {
		t.Fatalf("expected synthesized record")
	}
	if len(rec.Moves) != 3 {
		t.Fatalf("blank moves should be dropped: %v", rec.Moves)
	}
	if !strings.Contains(rec.PGN, "1. e4 e5 2. Nf3 *") {
		t.Fatalf("unexpected move text: %q", rec.PGN)
	}
	if !strings.HasPrefix(rec.PGN, "[Event \"Analyzed\"]") {
		t.Fatalf("missing header: %q", rec.PGN)
	}
}

func TestFromPayloadEmpty(t *testing.T) {
	rec := FromPayload(&analysisdto.ResultPayload{})
	if rec.Moves == nil || len(rec.Moves) != 0 {
		t.Fatalf("moves should default to empty, got %#v", rec.Moves)
	}
	if !rec.Empty() {
		t.Fatalf("expected empty record, got %q", rec.PGN)
	}
	if got := FromPayload(nil); got.Moves == nil {
		t.Fatalf("nil payload should still yield empty moves")
	}
}

func TestSummarizeLegalGame(t *testing.T) {
	sum := Summarize([]string{"f3", "e5", "g4", "Qh4#"})
	if !sum.Complete() {
		t.Fatalf("expected all moves legal: %+v", sum)
	}
	if sum.Outcome != "0-1" || sum.Method != "checkmate" {
		t.Fatalf("unexpected outcome: %q %q", sum.Outcome, sum.Method)
	}
	if len(sum.UCI) != 4 || sum.UCI[0] != "f2f3" || sum.UCI[3] != "d8h4" {
		t.Fatalf("unexpected uci: %v", sum.UCI)
	}
}

func TestSummarizeAcceptsUCI(t *testing.T) {
	sum := Summarize([]string{"e2e4", "e7e5"})
	if sum.Legal != 2 {
		t.Fatalf("uci moves should replay: %+v", sum)
	}
	if len(sum.SAN) != 2 || sum.SAN[0] != "e4" {
		t.Fatalf("unexpected san: %v", sum.SAN)
	}
}

func TestSummarizeStopsAtIllegalMove(t *testing.T) {
	sum := Summarize([]string{"e4", "e5", "Ke3"})
	if sum.Legal != 2 || sum.Plies != 3 || sum.FirstIllegal != "Ke3" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Complete() {
		t.Fatalf("summary with illegal move must not be complete")
	}
	if sum.Outcome != "" {
		t.Fatalf("unfinished game should have no outcome, got %q", sum.Outcome)
	}
}
