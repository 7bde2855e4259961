package display

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// PlainSurface writes one line per rendered state to an io.Writer. Widths
// are counted in runes against a fixed container width.
type PlainSurface struct {
	w       io.Writer
	width   int
	texts   map[Region]string
	class   SeverityClass
	marquee Marquee
	last    string
}

func NewPlainSurface(w io.Writer, width int) *PlainSurface {
	return &PlainSurface{
		w:     w,
		width: width,
		texts: make(map[Region]string),
		class: ClassNoAlerts,
	}
}

func (p *PlainSurface) SetText(r Region, text string) { p.texts[r] = text }
func (p *PlainSurface) SetClass(c SeverityClass) { p.class = c }
func (p *PlainSurface) SetMarquee(r Region, m Marquee) { p.marquee = m }
func (p *PlainSurface) TextWidth(text string) int { return utf8.RuneCountInString(text) }
func (p *PlainSurface) ContainerWidth(Region) int { return p.width }

// Flush writes the current state if it differs from the last line written.
func (p *PlainSurface) Flush() {
	line := p.line()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.w, line)
}

func (p *PlainSurface) line() string {
	if p.class == ClassNoAlerts {
		return fmt.Sprintf("[%s] %s", p.class, p.texts[RegionHeader])
	}

	parts := []string{
		fmt.Sprintf("[%s] %s", p.class, p.texts[RegionHeader]),
		p.texts[RegionDetails],
		p.texts[RegionLocations],
		"Expires: " + p.texts[RegionExpiration],
	}
	if p.marquee.Enabled {
		parts = append(parts, fmt.Sprintf("scroll %s", p.marquee.Duration))
	}
	return strings.Join(parts, " | ")
}
