package display

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mr1hm/go-weather-ticker/internal/config"
	"github.com/mr1hm/go-weather-ticker/internal/models"
)

const (
	noAlertsHeader     = "No Active Alerts"
	unknownEvent       = "Unknown Event"
	noDetails          = "No details available"
	noLocations        = "No locations specified"
	unknownExpiration  = "Unknown"
	defaultTimeFormat  = "January 02, 2006 03:04 PM MST"
	defaultMarqueeStep = 10 * time.Second
	defaultSeparator   = "   •   "
)

type Options struct {
	ScrollSource    config.ScrollSource
	Duplicate       bool
	Separator       string
	MarqueeFloor    time.Duration
	MarqueePerWidth time.Duration
	TimeFormat      string
	Location        *time.Location
}

// OptionsFromConfig builds engine options from the ticker configuration.
func OptionsFromConfig(cfg config.TickerConfig) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		ScrollSource:    cfg.ScrollSource,
		Duplicate:       cfg.Duplicate,
		Separator:       cfg.Separator,
		MarqueeFloor:    cfg.MarqueeFloor,
		MarqueePerWidth: cfg.MarqueePerWidth,
		TimeFormat:      cfg.TimeFormat,
		Location:        loc,
	}, nil
}

func (o *Options) applyDefaults() {
	if o.ScrollSource == "" {
		o.ScrollSource = config.ScrollAuto
	}
	if o.MarqueeFloor <= 0 {
		o.MarqueeFloor = defaultMarqueeStep
	}
	if o.MarqueePerWidth <= 0 {
		o.MarqueePerWidth = defaultMarqueeStep
	}
	if o.Duplicate && o.Separator == "" {
		o.Separator = defaultSeparator
	}
	if o.TimeFormat == "" {
		o.TimeFormat = defaultTimeFormat
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// State is a read-only snapshot of the rotation and visual state.
type State struct {
	Index        int
	Count        int
	ShowingAlert bool
	Class        SeverityClass
	Marquee      Marquee
}

// Engine owns the rotation state and drives a Surface. It is not safe for
// concurrent use; callers run every method on one scheduler goroutine.
type Engine struct {
	surface Surface
	opts    Options
	logger  *slog.Logger

	alerts  []models.Alert
	current int
	showing bool
	class   SeverityClass

	locations  string
	hint       *bool
	marquee    Marquee
	duplicated bool
}

func NewEngine(surface Surface, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	return &Engine{
		surface: surface,
		opts:    opts,
		logger:  logger.With("component", "display"),
		class:   ClassNoAlerts,
	}
}

// Replace installs a freshly fetched alert list and shows its first alert.
func (e *Engine) Replace(alerts []models.Alert) {
	defer e.guard("replace")

	e.alerts = slices.Clone(alerts)
	e.current = 0
	if len(e.alerts) == 0 {
		e.logger.Debug("fetched empty alert list")
		e.renderNoAlerts()
		return
	}
	e.logger.Debug("fetched alerts", "count", len(e.alerts))
	e.render(&e.alerts[0], 0)
}

// FetchFailed records a failed fetch. The current list is kept for rotation,
// but the display falls back to the no-alerts state.
func (e *Engine) FetchFailed(err error) {
	defer e.guard("fetch_failed")

	e.logger.Error("error fetching alerts", "error", err)
	e.renderNoAlerts()
}

// Advance moves the rotation cursor one position, wrapping at the end.
func (e *Engine) Advance() {
	defer e.guard("advance")

	if len(e.alerts) == 0 {
		e.logger.Warn("no alerts to cycle through")
		e.renderNoAlerts()
		return
	}
	e.current = (e.current + 1) % len(e.alerts)
	e.logger.Debug("cycling to alert", "index", e.current, "event", e.alerts[e.current].Event)
	e.render(&e.alerts[e.current], e.current)
}

// Render shows a single alert. A nil or blank alert falls back to the
// no-alerts state.
func (e *Engine) Render(alert *models.Alert) {
	defer e.guard("render")
	e.render(alert, e.current)
}

// RenderNoAlerts shows the no-alerts state.
func (e *Engine) RenderNoAlerts() {
	defer e.guard("render_no_alerts")
	e.renderNoAlerts()
}

// RecomputeScroll re-measures the locations text against its container and
// updates the marquee.
func (e *Engine) RecomputeScroll() {
	defer e.guard("recompute_scroll")
	e.recompute(false)
}

func (e *Engine) State() State {
	return State{
		Index:        e.current,
		Count:        len(e.alerts),
		ShowingAlert: e.showing,
		Class:        e.class,
		Marquee:      e.marquee,
	}
}

// Alerts returns a copy of the current alert list.
func (e *Engine) Alerts() []models.Alert {
	return slices.Clone(e.alerts)
}

func (e *Engine) render(a *models.Alert, index int) {
	if a == nil {
		e.logger.Error("invalid alert", "error", &RenderError{Index: index, Reason: "alert is missing"})
		e.renderNoAlerts()
		return
	}
	if a.IsEmpty() {
		e.logger.Error("invalid alert", "error", &RenderError{Index: index, Reason: "alert has no event, details or locations"})
		e.renderNoAlerts()
		return
	}

	e.class = Classify(a.Event)
	e.surface.SetClass(e.class)
	e.surface.SetText(RegionHeader, orDefault(a.Event, unknownEvent))
	e.surface.SetText(RegionDetails, orDefault(a.Details, noDetails))
	e.surface.SetText(RegionExpiration, e.formatExpiration(a.ExpirationTime))

	e.locations = orDefault(a.Locations, noLocations)
	e.hint = a.ScrollRequired
	e.showing = true
	e.recompute(true)
}

func (e *Engine) renderNoAlerts() {
	e.showing = false
	e.class = ClassNoAlerts
	e.locations = ""
	e.hint = nil
	e.marquee = Marquee{}
	e.duplicated = false

	e.surface.SetClass(ClassNoAlerts)
	e.surface.SetText(RegionHeader, noAlertsHeader)
	e.surface.SetText(RegionDetails, "")
	e.surface.SetText(RegionLocations, "")
	e.surface.SetText(RegionExpiration, "")
	e.surface.SetMarquee(RegionLocations, Marquee{})
}

// recompute applies the marquee for the current locations text. Surface calls
// are skipped when nothing changed unless force is set.
func (e *Engine) recompute(force bool) {
	if !e.showing {
		if force || e.marquee.Enabled {
			e.marquee = Marquee{}
			e.surface.SetMarquee(RegionLocations, e.marquee)
		}
		return
	}

	textWidth := e.surface.TextWidth(e.locations)
	containerWidth := e.surface.ContainerWidth(RegionLocations)

	var m Marquee
	if e.overflows(textWidth, containerWidth) {
		d, ok := ScrollDuration(textWidth, containerWidth, e.opts.MarqueeFloor, e.opts.MarqueePerWidth)
		if !ok {
			// Hinted overflow that measures as fitting still scrolls at the floor rate.
			d = e.opts.MarqueeFloor
		}
		m = Marquee{Enabled: true, Duration: d, Duplicated: e.opts.Duplicate}
	}
	dup := m.Duplicated

	// e.locations is always the raw text.
	if force || dup != e.duplicated {
		text := e.locations
		if dup {
			text = e.locations + e.opts.Separator + e.locations
		}
		e.surface.SetText(RegionLocations, text)
		e.duplicated = dup
	}
	if force || m != e.marquee {
		e.surface.SetMarquee(RegionLocations, m)
		if m != e.marquee {
			e.logger.Debug("marquee updated", "enabled", m.Enabled, "duration", m.Duration,
				"text_width", textWidth, "container_width", containerWidth)
		}
		e.marquee = m
	}
}

func (e *Engine) overflows(textWidth, containerWidth int) bool {
	measured := containerWidth > 0 && textWidth > containerWidth
	switch e.opts.ScrollSource {
	case config.ScrollHint:
		return e.hint != nil && *e.hint
	case config.ScrollMeasure:
		return measured
	default:
		if e.hint != nil {
			return *e.hint
		}
		return measured
	}
}

func (e *Engine) formatExpiration(t *time.Time) string {
	if t == nil || t.IsZero() {
		return unknownExpiration
	}
	return t.In(e.opts.Location).Format(e.opts.TimeFormat)
}

// Flusher is implemented by surfaces that batch updates until an engine
// operation completes.
type Flusher interface {
	Flush()
}

// guard keeps a panicking surface from escaping an engine operation and
// flushes the surface afterwards.
func (e *Engine) guard(op string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("display fallback failed", "op", op, "panic", r)
		}
	}()

	if r := recover(); r != nil {
		e.logger.Error("display operation failed", "op", op, "panic", r)
		e.renderNoAlerts()
	}
	if f, ok := e.surface.(Flusher); ok {
		f.Flush()
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
