package display

import (
	"strings"
	"time"
)

// ScrollDuration returns the marquee cycle length for text of textWidth inside
// a container of containerWidth. The bool is false when the text fits.
func ScrollDuration(textWidth, containerWidth int, floor, perWidth time.Duration) (time.Duration, bool) {
	if containerWidth <= 0 || textWidth <= containerWidth {
		return 0, false
	}
	ratio := float64(textWidth) / float64(containerWidth)
	d := time.Duration(ratio * float64(perWidth))
	if d < floor {
		d = floor
	}
	return d, true
}

// Duplicate joins text to itself with sep so a looping marquee has no visible
// seam. Content that is already duplicated is returned unchanged.
func Duplicate(text, sep string) string {
	if IsDuplicated(text, sep) {
		return text
	}
	return text + sep + text
}

// IsDuplicated reports whether s has the form x+sep+x. An empty separator
// never matches.
func IsDuplicated(s, sep string) bool {
	if sep == "" {
		return false
	}
	n := len(s) - len(sep)
	if n <= 0 || n%2 != 0 {
		return false
	}
	half := n / 2
	return s[half:half+len(sep)] == sep && s[:half] == s[half+len(sep):]
}

// Unduplicate returns the original text of duplicated content.
func Unduplicate(s, sep string) string {
	if !IsDuplicated(s, sep) {
		return s
	}
	return s[:(len(s)-len(sep))/2]
}

// Offset is how many columns the marquee has scrolled after elapsed, for a
// loop that moves cycleWidth columns per Duration.
func (m Marquee) Offset(elapsed time.Duration, cycleWidth int) int {
	if !m.Enabled || m.Duration <= 0 || cycleWidth <= 0 || elapsed <= 0 {
		return 0
	}
	pos := elapsed % m.Duration
	return int(int64(pos) * int64(cycleWidth) / int64(m.Duration))
}

// Window returns the width-column slice of a looping text starting at offset.
// It works on runes, so it assumes single-column glyphs.
func Window(text string, offset, width int) string {
	runes := []rune(text)
	if len(runes) == 0 || width <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		b.WriteRune(runes[(offset+i)%len(runes)])
	}
	return b.String()
}
