// Package display renders weather alerts into a fixed set of display regions
// and keeps long location text legible with a marquee.
package display

import "time"

// Region names one of the fixed display areas.
type Region int

const (
	RegionHeader Region = iota
	RegionDetails
	RegionLocations
	RegionExpiration
)

// Regions lists every region in drawing order.
var Regions = []Region{RegionHeader, RegionDetails, RegionLocations, RegionExpiration}

func (r Region) String() string {
	switch r {
	case RegionHeader:
		return "header"
	case RegionDetails:
		return "details"
	case RegionLocations:
		return "locations"
	case RegionExpiration:
		return "expiration"
	default:
		return "unknown"
	}
}

// Marquee describes the horizontal scroll animation applied to a region.
// Duplicated is set when the region text is the original joined to itself
// with the separator.
type Marquee struct {
	Enabled    bool
	Duration   time.Duration
	Duplicated bool
}

// Surface is the presentation side of the engine. Every method is called from
// the single scheduler goroutine.
type Surface interface {
	SetText(r Region, text string)
	SetClass(c SeverityClass)
	SetMarquee(r Region, m Marquee)

	// TextWidth is the intrinsic rendered width of text, in the same unit as
	// ContainerWidth.
	TextWidth(text string) int
	ContainerWidth(r Region) int
}
