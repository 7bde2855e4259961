package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mr1hm/go-weather-ticker/internal/display"
)

// palette holds the accent colors for one severity class.
type palette struct {
	Accent lipgloss.Color
	Text   lipgloss.Color
}

var palettes = map[display.SeverityClass]palette{
	display.ClassTornado:            {Accent: lipgloss.Color("196"), Text: lipgloss.Color("231")}, // bright_red
	display.ClassSevereThunderstorm: {Accent: lipgloss.Color("208"), Text: lipgloss.Color("231")}, // orange
	display.ClassFlashFlood:         {Accent: lipgloss.Color("34"), Text: lipgloss.Color("231")},  // green
	display.ClassDefault:            {Accent: lipgloss.Color("33"), Text: lipgloss.Color("231")},  // bright_blue
	display.ClassNoAlerts:           {Accent: lipgloss.Color("245"), Text: lipgloss.Color("250")}, // gray
}

var (
	dimColor   = lipgloss.Color("240")
	labelColor = lipgloss.Color("244")
)

func paletteFor(c display.SeverityClass) palette {
	if p, ok := palettes[c]; ok {
		return p
	}
	return palettes[display.ClassDefault]
}
