package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/incision/internal/db"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/playhead"
	"github.com/jwulff/incision/internal/timeline"
	"github.com/jwulff/incision/internal/ui"
)

const (
	waveTop       = 3 // header, status bar, divider
	maxChipRows   = 3
	minPanelLines = 6
)

func (m Model) waveformTop() int {
	return waveTop
}

func (m Model) waveformHeight() int {
	if m.height == 0 {
		return 7
	}
	return max(3, min(9, (m.height-18)/2))
}

func (m Model) panelHeight() int {
	// header, status, divider, wave, ruler, divider, chips, divider, ..., divider, footer
	used := waveTop + m.waveformHeight() + 1 + 1 + maxChipRows + 1 + 1 + 1
	if m.inputMode != InputNone {
		used++
	}
	if m.errorMessage != "" {
		used++
	}
	return max(minPanelLines, m.height-used)
}

func (m Model) inspectorWidth() int {
	if m.width == 0 {
		return 50
	}
	return max(30, m.width*60/100)
}

func (m Model) historyWidth() int {
	return max(20, m.width-m.inspectorWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, divider)

	// Waveform and ruler
	sections = append(sections, m.renderWaveform())
	sections = append(sections, m.renderRuler())
	sections = append(sections, divider)

	// Word chips
	sections = append(sections, m.renderChips())
	sections = append(sections, divider)

	// Inspector | history
	sections = append(sections, m.renderPanels())
	sections = append(sections, divider)

	if m.inputMode != InputNone {
		sections = append(sections, ui.PromptStyle.Render(m.input.View()))
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("INCISION")
	var src string
	if m.source.Name != "" {
		src = ui.DimStyle.Render(" - " + m.source.Name)
	}
	var run string
	if m.set.RunSeq > 0 {
		run = ui.DimStyle.Render(fmt.Sprintf(" [run %d]", m.set.RunSeq))
	}
	return title + src + run
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.pos.State {
	case playback.StatePlaying:
		dot = ui.PlayingDotStyle.Render("▶ PLAY")
	case playback.StatePaused:
		dot = ui.IdleDotStyle.Render("‖ PAUSE")
	default:
		dot = ui.IdleDotStyle.Render("■ STOP")
	}

	clock := "  " + ui.TimestampStyle.Render(formatTime(m.pos.Offset)+" / "+formatTime(m.pos.Duration))

	var counts string
	if m.set.Len() > 0 {
		st := m.set.Stats()
		counts = "  " +
			ui.StatusLabelStyle(timeline.StatusClean).Render(fmt.Sprintf("%d clean", st.Clean)) + " " +
			ui.StatusLabelStyle(timeline.StatusWarn).Render(fmt.Sprintf("%d warn", st.Warn)) + " " +
			ui.StatusLabelStyle(timeline.StatusGhost).Render(fmt.Sprintf("%d ghost", st.Ghost)) + " " +
			ui.StatusLabelStyle(timeline.StatusFixed).Render(fmt.Sprintf("%d fixed", st.Fixed)) +
			ui.DimStyle.Render(fmt.Sprintf("  avg %.1f", st.MeanClarity))
	}

	var busy string
	if m.pending > 0 || m.eqPending {
		busy = "  " + m.spinner.View()
	}

	status := "  " + ui.StatusStyle.Render(m.statusText)
	return dot + clock + counts + busy + status
}

func (m Model) renderWaveform() string {
	h := m.waveformHeight()
	if !m.loaded {
		lines := make([]string, h)
		lines[h/2] = ui.DimStyle.Render("  No audio loaded")
		return strings.Join(lines, "\n")
	}

	b := playhead.Binder{Clock: m.sess, Width: m.width}
	head := -1
	if m.pos.Duration > 0 {
		head = b.Playhead(m.pos)
	}
	selFrom, selTo := -1, -1
	if tok, ok := m.selectedToken(); ok && m.pos.Duration > 0 {
		selFrom = playhead.Column(tok.StartTime/m.pos.Duration, m.width)
		selTo = playhead.Column(tok.EndTime/m.pos.Duration, m.width) + 1
	}
	return ui.Waveform(m.sess.Peaks(m.width), h, head, selFrom, selTo)
}

func (m Model) renderRuler() string {
	left := formatTime(0)
	right := formatTime(m.pos.Duration)
	gap := m.width - len(left) - len(right)
	if gap < 1 {
		return ui.TimestampStyle.Render(left)
	}
	return ui.TimestampStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderChips() string {
	var lines []string
	if m.set.Len() == 0 {
		if m.pending > 0 {
			lines = append(lines, ui.DimStyle.Render("  Aligning lyrics..."))
		} else {
			lines = append(lines, ui.DimStyle.Render("  No words yet. Press r to analyse."))
		}
	} else {
		rows, selRow := ui.Chips(m.set.Tokens, m.selected, m.width)
		start := 0
		if selRow >= maxChipRows {
			start = selRow - maxChipRows + 1
		}
		end := min(start+maxChipRows, len(rows))
		lines = append(lines, rows[start:end]...)
	}
	for len(lines) < maxChipRows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPanels() string {
	h := m.panelHeight()
	leftW := m.inspectorWidth()
	rightW := m.historyWidth()

	left := strings.Split(m.renderInspector(leftW, h), "\n")
	right := strings.Split(m.renderHistory(rightW, h), "\n")

	sep := ui.DividerStyle.Render("│")
	var rows []string
	for i := 0; i < h; i++ {
		l, r := "", ""
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		rows = append(rows, padRight(l, leftW)+sep+r)
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderInspector(width, height int) string {
	lines := []string{ui.PanelTitleStyle.Render("WORD")}

	tok, ok := m.selectedToken()
	if !ok {
		lines = append(lines, ui.DimStyle.Render("  Nothing selected"))
	} else {
		lines = append(lines,
			"  "+lipgloss.NewStyle().Bold(true).Render(tok.Text)+" "+
				ui.StatusLabelStyle(tok.Status).Render(strings.ToUpper(tok.Status.String())),
			fmt.Sprintf("  clarity %5.1f   %s - %s", tok.Score, formatTime(tok.StartTime), formatTime(tok.EndTime)),
		)
		if tok.SectionName != "" {
			lines = append(lines, ui.DimStyle.Render("  section "+tok.SectionName))
		}
		if tok.GhostReason != "" {
			for _, wl := range wrapText("reason: "+tok.GhostReason, max(10, width-4)) {
				lines = append(lines, ui.ErrorTextStyle.Render("  "+wl))
			}
		}
	}

	if m.eqProfile != nil {
		lines = append(lines, "", ui.PanelTitleStyle.Render("EQ")+ui.DimStyle.Render(" "+m.eqContext))
		for _, l := range m.eqProfile.Summary() {
			lines = append(lines, "  "+truncateToWidth(l, width-2))
		}
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHistory(width, height int) string {
	lines := []string{ui.PanelTitleStyle.Render("HISTORY")}
	if m.history == nil {
		lines = append(lines, ui.DimStyle.Render(" disabled"))
	} else if len(m.runs) == 0 {
		lines = append(lines, ui.DimStyle.Render(" No runs yet"))
	}
	for _, r := range m.runs {
		ts := ui.TimestampStyle.Render(r.CreatedAt.Format("15:04:05"))
		var desc string
		if r.Status == db.RunOK {
			desc = fmt.Sprintf(" #%d %d words %.0f", r.Seq, r.Stats.Total, r.Stats.MeanClarity)
		} else {
			desc = ui.ErrorTextStyle.Render(fmt.Sprintf(" #%d failed", r.Seq))
		}
		lines = append(lines, truncateToWidth(" "+ts+desc, width))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	if m.inputMode != InputNone {
		return ui.FooterKeyStyle.Render("Enter") + ui.FooterDescStyle.Render(" Submit") + "  " +
			ui.FooterKeyStyle.Render("Esc") + ui.FooterDescStyle.Render(" Cancel")
	}

	var parts []string
	if m.loaded {
		if m.pos.State == playback.StatePlaying {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Pause"))
		} else {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Play"))
		}
		parts = append(parts, ui.FooterKeyStyle.Render("←→")+ui.FooterDescStyle.Render(" Seek"))
	}
	if m.set.Len() > 0 {
		parts = append(parts, ui.FooterKeyStyle.Render("h/l")+ui.FooterDescStyle.Render(" Word"))
		parts = append(parts, ui.FooterKeyStyle.Render("a")+ui.FooterDescStyle.Render(" Approve"))
		parts = append(parts, ui.FooterKeyStyle.Render("f")+ui.FooterDescStyle.Render(" Flag"))
		parts = append(parts, ui.FooterKeyStyle.Render("x")+ui.FooterDescStyle.Render(" Fix"))
		parts = append(parts, ui.FooterKeyStyle.Render("i")+ui.FooterDescStyle.Render(" Isolate"))
		parts = append(parts, ui.FooterKeyStyle.Render("w")+ui.FooterDescStyle.Render(" Export"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Rerun"))
	if m.eq != nil {
		parts = append(parts, ui.FooterKeyStyle.Render("e")+ui.FooterDescStyle.Render(" EQ"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func formatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	mins := int(sec) / 60
	return fmt.Sprintf("%d:%04.1f", mins, sec-float64(mins*60))
}

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 && width > 1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
