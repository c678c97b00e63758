package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxVisible = 10

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var sections []string

	sections = append(sections, m.renderTitleBar())

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.state != nil {
		sections = append(sections, m.renderResources())
	}

	if m.haveData && len(m.history) > 0 {
		sections = append(sections, m.renderSummary(), m.renderCurves(), m.renderTable())
	} else {
		sections = append(sections, helpStyle.Render("  Waiting for "+m.config.HistoryPath))
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("SEGTRAIN WATCH")

	refreshInfo := fmt.Sprintf("↻ %s", m.config.RefreshInterval)
	if m.loading {
		refreshInfo = "↻ loading..."
	}

	help := helpStyle.Render("q:quit r:refresh ↑↓:scroll")

	rightPart := fmt.Sprintf("%s | %s", refreshInfo, help)
	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	return fmt.Sprintf("%s%s%s", title, strings.Repeat(" ", spacing), helpStyle.Render(rightPart))
}

func (m Model) renderResources() string {
	cpuBar := renderProgressBar("CPU", m.state.CPU.UsagePercent, 20)
	memBar := renderProgressBar("Memory", m.state.Memory.UsagePercent, 20)

	line := fmt.Sprintf("  %s    %s", cpuBar, memBar)
	for _, g := range m.state.GPUs {
		line += "\n" + sectionHeaderStyle.Render(fmt.Sprintf("  GPU %d: %s", g.Index, g.Name))
	}
	return line
}

func renderProgressBar(label string, percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)

	color := getProgressColor(percent)
	filledBar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyBar := progressBarEmptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s [%s%s] %5.1f%%", labelStyle.Render(label), filledBar, emptyBar, percent)
}

func (m Model) bestEpoch() int {
	best := 0
	for i, r := range m.history {
		if r.Test < m.history[best].Test {
			best = i
		}
	}
	return best
}

func (m Model) renderSummary() string {
	last := m.history[len(m.history)-1]
	best := m.bestEpoch()

	return fmt.Sprintf("  %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Epochs"), valueStyle.Render(fmt.Sprintf("%d", len(m.history))),
		labelStyle.Render("Train"), valueStyle.Render(fmt.Sprintf("%.4f", last.Train)),
		labelStyle.Render("Test"), valueStyle.Render(fmt.Sprintf("%.4f", last.Test)),
		labelStyle.Render("Best"), bestStyle.Render(fmt.Sprintf("%.4f @%d", m.history[best].Test, best)),
	)
}

func (m Model) renderCurves() string {
	width := max(m.width-12, 10)
	train := sparkline(m.history.TrainLosses(), width)
	test := sparkline(m.history.TestLosses(), width)

	return strings.Join([]string{
		sectionHeaderStyle.Render("  Loss"),
		fmt.Sprintf("  %s %s", labelStyle.Render("train"), trainStyle.Render(train)),
		fmt.Sprintf("  %s  %s", labelStyle.Render("test"), testStyle.Render(test)),
	}, "\n")
}

// sparkline draws the last width values scaled between their min and max.
func sparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

// visibleRange returns the epoch window shown by the table, newest last.
func (m Model) visibleRange() (int, int) {
	end := len(m.history) - m.tableOffset
	start := max(end-maxVisible, 0)
	return start, end
}

func (m Model) renderTable() string {
	var lines []string
	lines = append(lines, sectionHeaderStyle.Render("  Epochs"))

	header := fmt.Sprintf("  %6s │ %12s │ %12s", "Epoch", "Train", "Test")
	lines = append(lines, tableHeaderStyle.Render(header))

	best := m.bestEpoch()
	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		r := m.history[i]
		row := fmt.Sprintf("  %6d │ %12.6f │ %12.6f", i, r.Train, r.Test)
		style := tableCellStyle
		if i == best {
			style = bestStyle
		}
		lines = append(lines, style.Render(row))
	}

	if len(m.history) > maxVisible {
		scrollInfo := fmt.Sprintf("  [%d-%d of %d epochs]", start, end-1, len(m.history))
		lines = append(lines, helpStyle.Render(scrollInfo))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	updated := "never"
	if !m.lastUpdated.IsZero() {
		updated = m.lastUpdated.Format("15:04:05")
	}

	parts := []string{m.config.HistoryPath, "Updated: " + updated}
	if m.state != nil {
		parts = append(parts, fmt.Sprintf("RSS: %.1f MB", float64(m.state.Process.RSSBytes)/1024/1024))
	}
	return helpStyle.Render("  " + strings.Join(parts, " │ "))
}
