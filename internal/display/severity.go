package display

import "strings"

// SeverityClass is the cosmetic classification applied to the whole display.
type SeverityClass int

const (
	ClassDefault SeverityClass = iota
	ClassSevereThunderstorm
	ClassTornado
	ClassFlashFlood
	ClassNoAlerts
)

func (c SeverityClass) String() string {
	switch c {
	case ClassSevereThunderstorm:
		return "severe-thunderstorm"
	case ClassTornado:
		return "tornado-warning"
	case ClassFlashFlood:
		return "flash-flood"
	case ClassNoAlerts:
		return "no-alerts"
	default:
		return "default"
	}
}

// Checked in order; the first substring match wins.
var severityRules = []struct {
	match string
	class SeverityClass
}{
	{"severe thunderstorm", ClassSevereThunderstorm},
	{"tornado", ClassTornado},
	{"flash flood", ClassFlashFlood},
}

// Classify maps an event label to its severity class.
func Classify(event string) SeverityClass {
	e := strings.ToLower(event)
	for _, rule := range severityRules {
		if strings.Contains(e, rule.match) {
			return rule.class
		}
	}
	return ClassDefault
}
