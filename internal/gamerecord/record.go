package gamerecord

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-Video-Analyzer/pkg/analysisdto"
)

// ContentType is the media type used when a record is materialized as an artifact.
const ContentType = "application/x-chess-pgn"

// Record is the normalized result of a finished analysis.
type Record struct {
	Moves       []string
	PGN         string
	Synthesized bool
}

// Empty reports whether there is nothing to download.
func (r Record) Empty() bool { return strings.TrimSpace(r.PGN) == "" }

// FromPayload normalizes a result payload. A PGN sent by the analyzer is kept verbatim;
// without one the record is rebuilt from the move list.
func FromPayload(p *analysisdto.ResultPayload) Record {
	if p == nil {
		return Record{Moves: []string{}}
	}
	moves := normalizeMoves(p.Moves)
	if p.PGN != nil {
		return Record{Moves: moves, PGN: *p.PGN}
	}
	if len(moves) == 0 {
		return Record{Moves: moves}
	}
	return Record{Moves: moves, PGN: Synthesize(moves), Synthesized: true}
}

func normalizeMoves(in []string) []string {
	out := make([]string, 0, len(in))
	for _, mv := range in {
		mv = strings.TrimSpace(mv)
		if mv == "" {
			continue
		}
		out = append(out, mv)
	}
	return out
}

// Synthesize builds a minimal PGN with numbered move text.
func Synthesize(moves []string) string {
	var sb strings.Builder
	sb.WriteString("[Event \"Analyzed\"]\n")
	sb.WriteString("[Result \"*\"]\n\n")
	for i, mv := range moves {
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(mv)
	}
	if len(moves) > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString("*\n")
	return sb.String()
}
