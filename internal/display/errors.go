package display

import "fmt"

// RenderError describes an alert that could not be rendered.
type RenderError struct {
	Index  int
	Reason string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render alert %d: %s", e.Index, e.Reason)
}
