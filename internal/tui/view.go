package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mr1hm/go-weather-ticker/internal/display"
)

const defaultWidth = 80

func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	inner := max(width-4, 1)
	pal := paletteFor(m.class)

	header := lipgloss.NewStyle().Foreground(pal.Accent).Bold(true)
	body := lipgloss.NewStyle().Foreground(pal.Text).Width(inner)
	label := lipgloss.NewStyle().Foreground(labelColor)
	dim := lipgloss.NewStyle().Foreground(dimColor)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.Accent).
		Padding(0, 1).
		Width(width - 2)

	lines := []string{header.Render(m.texts[display.RegionHeader])}
	if d := m.texts[display.RegionDetails]; d != "" {
		lines = append(lines, body.Render(d))
	}
	if loc := m.locationsLine(inner); loc != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(pal.Text).Render(loc))
	}
	if exp := m.texts[display.RegionExpiration]; exp != "" {
		lines = append(lines, label.Render("Expires: ")+exp)
	}

	return box.Render(strings.Join(lines, "\n")) + "\n" + dim.Render(m.statusLine())
}

// locationsLine renders the locations region, scrolled when the marquee is on.
func (m *Model) locationsLine(width int) string {
	text := m.texts[display.RegionLocations]
	if text == "" || !m.marquee.Enabled {
		return text
	}

	var cycle string
	if m.marquee.Duplicated {
		cycle = display.Unduplicate(text, m.separator) + m.separator
	} else {
		cycle = text + strings.Repeat(" ", width)
	}
	cycleWidth := len([]rune(cycle))
	offset := m.marquee.Offset(m.clock.Since(m.marqueeStart), cycleWidth)
	return display.Window(cycle, offset, width)
}

func (m *Model) statusLine() string {
	if m.engine == nil {
		return "q quit"
	}
	st := m.engine.State()
	if !st.ShowingAlert {
		return "r refresh · q quit"
	}
	status := fmt.Sprintf("alert %d/%d · %s", st.Index+1, st.Count, st.Class)
	if st.Marquee.Enabled {
		status += fmt.Sprintf(" · scroll %s", st.Marquee.Duration)
	}
	return status + " · n next · r refresh · q quit"
}
