package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/incision/internal/peaks"
	"github.com/jwulff/incision/internal/timeline"
)

// Waveform draws one glyph per peak column over height rows. The playhead
// column is drawn as a bar; columns in [selFrom, selTo) are highlighted.
// Pass a negative playhead or an empty selection to omit either.
func Waveform(ps []peaks.Peak, height, playhead, selFrom, selTo int) string {
	grid := peaks.Rows(ps, height)
	if grid == nil {
		return ""
	}
	lines := make([]string, height)
	for r, row := range grid {
		var b strings.Builder
		for c, filled := range row {
			switch {
			case c == playhead:
				b.WriteString(PlayheadStyle.Render("│"))
			case filled:
				st := lipgloss.NewStyle().Foreground(rampColor(ps[c].Energy()))
				if c >= selFrom && c < selTo {
					st = st.Background(ColorDimGray)
				}
				b.WriteString(st.Render("█"))
			case c >= selFrom && c < selTo:
				b.WriteString(lipgloss.NewStyle().Background(ColorDimGray).Render(" "))
			default:
				b.WriteByte(' ')
			}
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

func rampColor(energy float32) lipgloss.Color {
	i := int(energy / 2 * float32(len(WaveRamp)))
	return WaveRamp[max(0, min(i, len(WaveRamp)-1))]
}

// Chips lays word chips out in rows no wider than width and returns the
// rendered lines plus the row holding the selected chip.
func Chips(tokens []timeline.WordToken, selected, width int) ([]string, int) {
	var lines []string
	var cur strings.Builder
	curW, selRow := 0, 0
	for i, t := range tokens {
		chip := ChipStyle(t.Status, i == selected).Render(t.Text)
		w := lipgloss.Width(chip)
		if curW > 0 && curW+1+w > width {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(chip)
		curW += w
		if i == selected {
			selRow = len(lines)
		}
	}
	if curW > 0 {
		lines = append(lines, cur.String())
	}
	return lines, selRow
}
