package tui

import (
	"context"
	"fmt"
	"time"

	"monnet/internal/engine"
	"monnet/internal/output"
	"monnet/ui/tui/components"
	"monnet/ui/tui/state"
	"monnet/ui/tui/views"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

const (
	maxConsoleLogs = 100
	maxEventLog    = 200
	cycleTimeout   = 5 * time.Second
)

// Runner produces one engine cycle.
type Runner interface {
	Run(ctx context.Context) (*output.Payload, error)
}

// PipelineRunner drives the local engine from a collector.
type PipelineRunner struct {
	Collector output.DataCollector
	Processor *engine.Processor
	Now       func() time.Time
}

func (r PipelineRunner) Run(ctx context.Context) (*output.Payload, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return output.RunPipeline(ctx, r.Collector, r.Processor, now())
}

// MainModel is the Bubble Tea Model acting as the Controller
type MainModel struct {
	runner      Runner
	interval    time.Duration
	state       state.AppState
	spinner     spinner.Model
	cpuWidget   *components.HistoryWidget
	ioWidget    *components.HistoryWidget
	menuCursor  int
	animCursor  float64
	velocity    float64
	spring      harmonica.Spring
	pageScrollY int
	mouseX      int
	mouseY      int
	fetching    bool
	quitting    bool
	width       int
	height      int
}

// Messages
type TickMsg time.Time
type AnimateMsg time.Time
type MetricsLoadedMsg struct {
	Payload *output.Payload
	Err     error
	At      time.Time
}

func InitialModel(runner Runner, interval time.Duration) MainModel {
	if interval <= 0 {
		interval = time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	// Increased frequency (12.0) for faster response and damping (0.9) to prevent overshoot
	spring := harmonica.NewSpring(harmonica.FPS(60), 12.0, 0.9)

	return MainModel{
		runner:    runner,
		interval:  interval,
		spinner:   s,
		cpuWidget: components.NewHistoryWidget("CPU Usage %", 30, 10),
		ioWidget:  components.NewHistoryWidget("I/O Wait %", 30, 10),
		spring:    spring,
		state: state.AppState{
			CurrentPage: state.PageMenu,
		},
	}
}

func (m *MainModel) Init() tea.Cmd {
	zone.NewGlobal()
	return tea.Batch(
		m.spinner.Tick,
		fetchMetricsCmd(m.runner),
		animateCmd(),
	)
}

// Commands
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animateCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*16, func(t time.Time) tea.Msg {
		return AnimateMsg(t)
	})
}

func fetchMetricsCmd(r Runner) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()
		p, err := r.Run(ctx)
		return MetricsLoadedMsg{Payload: p, Err: err, At: time.Now()}
	}
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case AnimateMsg:
		return m.handleAnimateMsg(msg)

	case tea.WindowSizeMsg:
		return m.handleWindowSizeMsg(msg)

	case TickMsg:
		return m.handleTickMsg(msg)

	case MetricsLoadedMsg:
		return m.handleMetricsLoadedMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	}

	return m, nil
}

func (m *MainModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	if m.state.CurrentPage == state.PageMenu {
		switch msg.String() {
		case "up", "k":
			if m.menuCursor > 0 {
				m.menuCursor--
			}
		case "down", "j":
			if m.menuCursor < len(views.MenuOptions)-1 {
				m.menuCursor++
			}
		case "enter":
			m.navigateTo(m.menuCursor)
		}
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.pageScrollY > 0 {
			m.pageScrollY--
		}
	case "down", "j":
		m.pageScrollY++
	case "b", "esc", "backspace":
		m.state.CurrentPage = state.PageMenu
		m.pageScrollY = 0
	}
	return m, nil
}

var menuPages = []state.Page{
	state.PageConsole,
	state.PageOverview,
	state.PageEvents,
	state.PagePorts,
	state.PageArmed,
}

func (m *MainModel) navigateTo(cursor int) {
	if cursor < 0 || cursor >= len(menuPages) {
		return
	}
	m.state.CurrentPage = menuPages[cursor]
	m.pageScrollY = 0
}

func (m *MainModel) handleAnimateMsg(msg AnimateMsg) (tea.Model, tea.Cmd) {
	m.animCursor, m.velocity = m.spring.Update(m.animCursor, m.velocity, float64(m.menuCursor))
	return m, animateCmd()
}

func (m *MainModel) handleWindowSizeMsg(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.cpuWidget.Update(msg)
	m.ioWidget.Update(msg)
	return m, nil
}

func (m *MainModel) handleTickMsg(msg TickMsg) (tea.Model, tea.Cmd) {
	if m.fetching {
		return m, tickCmd(m.interval)
	}
	m.fetching = true
	return m, fetchMetricsCmd(m.runner)
}

func (m *MainModel) handleMetricsLoadedMsg(msg MetricsLoadedMsg) (tea.Model, tea.Cmd) {
	m.fetching = false
	next := tickCmd(m.interval)
	if msg.Err == nil && msg.Payload == nil {
		msg.Err = output.ErrNoData
	}
	if msg.Err != nil {
		m.state.Err = msg.Err
		m.appendLog(fmt.Sprintf("[%s] cycle failed: %v", msg.At.Format("15:04:05"), msg.Err))
		return m, next
	}
	m.state.Err = nil

	view := msg.Payload.View
	m.state.View = view
	m.state.LastUpdate = msg.At

	m.cpuWidget.Push(view.CPUUsage)
	m.ioWidget.Push(view.IoWait)
	m.state.CPUHistory = m.cpuWidget.History
	m.state.IoWaitHistory = m.ioWidget.History

	res := msg.Payload.Result
	m.state.EventLog = append(m.state.EventLog, res.Events...)
	if n := len(m.state.EventLog) - maxEventLog; n > 0 {
		m.state.EventLog = m.state.EventLog[n:]
	}

	m.appendLog(fmt.Sprintf("[%s] CPU: %.1f%% | IOWait: %.1f%% | changed: %d | events: %d",
		msg.At.Format("15:04:05"),
		view.CPUUsage,
		view.IoWait,
		len(res.Changed),
		len(res.Events),
	))
	for _, ev := range res.Events {
		m.appendLog(fmt.Sprintf("           %s %s %.1f", ev.Severity, ev.Identity, ev.Value))
	}
	return m, next
}

func (m *MainModel) appendLog(line string) {
	m.state.ConsoleLogs = append(m.state.ConsoleLogs, line)
	if n := len(m.state.ConsoleLogs) - maxConsoleLogs; n > 0 {
		m.state.ConsoleLogs = m.state.ConsoleLogs[n:]
	}
}

func (m *MainModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	m.mouseX = msg.X
	m.mouseY = msg.Y

	if msg.Action == tea.MouseActionRelease && m.state.CurrentPage == state.PageMenu {
		for i := range views.MenuOptions {
			if zone.Get(fmt.Sprintf("menu_%d", i)).InBounds(msg) {
				m.menuCursor = i
				m.navigateTo(i)
				return m, nil
			}
		}
	}
	return m, nil
}

func (m *MainModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	switch m.state.CurrentPage {
	case state.PageMenu:
		return views.RenderMenu(m.state, m.width, m.height, m.menuCursor, m.animCursor, m.mouseX, m.mouseY)
	case state.PageOverview:
		return views.RenderOverview(m.state, m.spinner.View(), m.cpuWidget.Plot(), m.ioWidget.Plot())
	case state.PageConsole:
		return views.RenderRawConsole(m.state, m.width, m.height, m.pageScrollY)
	case state.PageEvents:
		return views.RenderPage(views.EventsView{}, m.state, m.width, m.height, m.pageScrollY)
	case state.PagePorts:
		return views.RenderPage(views.PortsView{}, m.state, m.width, m.height, m.pageScrollY)
	case state.PageArmed:
		return views.RenderPage(views.ArmedView{}, m.state, m.width, m.height, m.pageScrollY)
	}
	return ""
}

// Start runs the dashboard until the user quits.
func Start(runner Runner, interval time.Duration) error {
	m := InitialModel(runner, interval)
	p := tea.NewProgram(
		&m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
