package presenter

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-Video-Analyzer/internal/msgcat"
	"github.com/park285/Cheese-Video-Analyzer/internal/session"
)

const (
	progressBarWidth = 30
	movesPerLine     = 8
)

// Formatter renders session snapshots into terminal text blocks.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

func (f *Formatter) text(key string, data any, fallback string) string {
	if f == nil {
		return fallback
	}
	return f.cat.Text(key, data, fallback)
}

// Render produces the full view for st. Equal states render identically.
func (f *Formatter) Render(st session.State) string {
	var sb strings.Builder
	sb.WriteString(f.statusLine(st))
	sb.WriteByte('\n')

	if st.Status == session.StatusStreaming && !st.Fetching {
		sb.WriteString(formatProgressBar(st.Progress))
		sb.WriteByte('\n')
	}
	if st.Status.Active() {
		sb.WriteString(f.text("submit.disabled", nil, "Submit is disabled while a session is active."))
		sb.WriteByte('\n')
	}

	if st.Status == session.StatusFailed && st.Err != nil {
		sb.WriteString("! ")
		sb.WriteString(f.errorText(st.Err))
		sb.WriteByte('\n')
		if st.Err.Retryable() {
			sb.WriteString(f.text("error.retry_hint", nil, "Submit the video again to retry."))
			sb.WriteByte('\n')
		}
	}

	if st.Status != session.StatusIdle {
		sb.WriteString(f.movesBlock(st.Moves))
		if st.Status == session.StatusDone {
			sb.WriteString(f.summaryBlock(st))
		}
		sb.WriteString(f.downloadLine(st))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *Formatter) statusLine(st session.State) string {
	data := map[string]any{"SessionID": st.SessionID}
	switch st.Status {
	case session.StatusUploading:
		return f.text("session.uploading", data, "Uploading video...")
	case session.StatusStreaming:
		if st.Fetching {
			return f.text("session.fetching", data, "Analysis finished. Fetching results...")
		}
		return f.text("session.streaming", data, "Analyzing...")
	case session.StatusDone:
		return f.text("session.done", data, "Analysis complete.")
	case session.StatusFailed:
		return f.text("session.failed", data, "Analysis failed.")
	default:
		return f.text("session.idle", data, "Select a video file to analyze.")
	}
}

// ErrorText renders the user-facing message for a session error.
func (f *Formatter) ErrorText(err *session.Error) string { return f.errorText(err) }

func (f *Formatter) errorText(err *session.Error) string {
	if err == nil {
		return ""
	}
	de := err.DomainError()
	return f.text("error."+string(err.Kind), nil, de.Error())
}

func (f *Formatter) movesBlock(moves []string) string {
	if len(moves) == 0 {
		return f.text("moves.empty", nil, "No moves detected yet.") + "\n"
	}
	var sb strings.Builder
	sb.WriteString(f.text("moves.header", map[string]any{"Count": len(moves)}, "Detected moves:"))
	sb.WriteByte('\n')
	sb.WriteString(formatMoveList(moves))
	sb.WriteByte('\n')
	return sb.String()
}

func (f *Formatter) summaryBlock(st session.State) string {
	sum := st.Summary
	if sum.Plies == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("• ")
	sb.WriteString(f.text("summary.legal", map[string]any{"Legal": sum.Legal, "Plies": sum.Plies}, fmt.Sprintf("%d/%d legal", sum.Legal, sum.Plies)))
	sb.WriteByte('\n')
	if sum.FirstIllegal != "" {
		sb.WriteString("• ")
		sb.WriteString(f.text("summary.illegal", map[string]any{"Index": sum.Legal + 1, "Move": sum.FirstIllegal}, "Replay stopped early."))
		sb.WriteByte('\n')
	}
	if sum.Outcome != "" {
		sb.WriteString("• ")
		sb.WriteString(f.text("summary.outcome", map[string]any{"Outcome": sum.Outcome, "Method": sum.Method}, sum.Outcome))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *Formatter) downloadLine(st session.State) string {
	if st.Status == session.StatusDone && st.Artifact != nil {
		line := f.text("download.ready", map[string]any{"Name": st.Artifact.Name, "Size": st.Artifact.Size}, "Game record ready.")
		if st.Synthesized {
			line += " " + f.text("download.synthesized", nil, "(rebuilt from the detected moves)")
		}
		return line
	}
	return f.text("download.disabled", nil, "Download is available once the analysis is done.")
}

func formatProgressBar(progress int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * progressBarWidth / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat("-", progressBarWidth-filled), progress)
}

// formatMoveList numbers moves in pairs, eight full moves per line.
func formatMoveList(moves []string) string {
	var sb strings.Builder
	for i := 0; i < len(moves); i += 2 {
		turn := i/2 + 1
		if i > 0 {
			if (turn-1)%movesPerLine == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(fmt.Sprintf("%d. %s", turn, moves[i]))
		if i+1 < len(moves) {
			sb.WriteByte(' ')
			sb.WriteString(moves[i+1])
		}
	}
	return sb.String()
}
