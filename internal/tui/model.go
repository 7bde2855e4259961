// Package tui is the terminal presentation of the alert ticker. The Bubble Tea
// event loop doubles as the scheduler goroutine: queued loop tasks are
// delivered as messages and executed inside Update.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-ticker/internal/display"
	"github.com/mr1hm/go-weather-ticker/internal/schedule"
)

const frameInterval = 100 * time.Millisecond

// Refresher triggers an out-of-schedule fetch.
type Refresher interface {
	FetchNow()
}

// Model implements both tea.Model and display.Surface.
type Model struct {
	loop      *schedule.Loop
	clock     clockwork.Clock
	separator string

	engine    *display.Engine
	refresher Refresher

	texts        map[display.Region]string
	class        display.SeverityClass
	marquee      display.Marquee
	marqueeStart time.Time

	width  int
	height int
}

func NewModel(loop *schedule.Loop, separator string) *Model {
	return &Model{
		loop:      loop,
		clock:     loop.Clock(),
		separator: separator,
		texts:     make(map[display.Region]string),
		class:     display.ClassNoAlerts,
	}
}

// Bind connects the engine driving this surface and the fetch trigger used by
// the refresh key. The engine needs the model as its surface, so this happens
// after construction.
func (m *Model) Bind(engine *display.Engine, refresher Refresher) {
	m.engine = engine
	m.refresher = refresher
}

func (m *Model) SetText(r display.Region, text string) { m.texts[r] = text }
func (m *Model) SetClass(c display.SeverityClass) { m.class = c }

func (m *Model) SetMarquee(r display.Region, mq display.Marquee) {
	if r != display.RegionLocations {
		return
	}
	if mq != m.marquee {
		m.marqueeStart = m.clock.Now()
	}
	m.marquee = mq
}

func (m *Model) TextWidth(text string) int {
	return lipgloss.Width(text)
}

// ContainerWidth is the inner width of the alert box. It is zero until the
// terminal size is known.
func (m *Model) ContainerWidth(display.Region) int {
	if m.width <= 0 {
		return 0
	}
	return max(m.width-4, 1)
}

// Init starts the task pump and the animation clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		frameCmd(),
		taskCmd(m.loop),
	)
}

// frameMsg is sent on each marquee animation frame.
type frameMsg time.Time

// taskMsg carries one queued scheduler task.
type taskMsg func()

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func taskCmd(loop *schedule.Loop) tea.Cmd {
	return func() tea.Msg {
		select {
		case task := <-loop.Tasks():
			return taskMsg(task)
		case <-loop.Done():
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		return m, frameCmd()

	case taskMsg:
		m.loop.Exec(msg)
		return m, taskCmd(m.loop)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		return m, tea.Quit
	case "n", "right":
		if m.engine != nil {
			m.engine.Advance()
		}
	case "r":
		if m.refresher != nil {
			m.refresher.FetchNow()
		}
	}
	return m, nil
}
