// Package viewer renders simulation frames in the terminal.
package viewer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"watertank-sim/internal/tank"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// frameMsg carries one simulation frame into the model.
type frameMsg struct{ tank.Message }

// statusMsg carries a connection or lifecycle note for the log.
type statusMsg struct{ line string }

const (
	maxLogLines = 1000
	tankRows    = 14
	tankCols    = 24
	maxJetCols  = 30
)

var (
	waterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	wallStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	jetStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	holeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	onColor    = lipgloss.Color("10")
	offColor   = lipgloss.Color("9")
)

// TUI is an observer that draws the tank with bubbletea. It satisfies
// sim.Broadcaster so it can be attached next to the WebSocket hub.
type TUI struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUI starts a bubbletea program on the alternate screen. When the user
// quits, the process receives an interrupt so the caller can shut down.
func NewTUI(title string) *TUI {
	w := &TUI{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newModel(title), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Broadcast forwards msg to the UI and counts as one delivery.
func (w *TUI) Broadcast(_ context.Context, msg tank.Message) int {
	w.program.Send(frameMsg{msg})
	return 1
}

// Status appends a free-form line to the log pane.
func (w *TUI) Status(line string) {
	w.program.Send(statusMsg{line: line})
}

// Done is closed once the program exits.
func (w *TUI) Done() <-chan struct{} { return w.done }

// Close shuts down the TUI program and waits for cleanup.
func (w *TUI) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type model struct {
	title      string
	table      table.Model
	vp         viewport.Model
	logs       []string
	init       *tank.InitMessage
	last       *tank.DataMessage
	runs       int
	wrap       bool
	autoscroll bool
	height     int
	width      int
}

func newModel(title string) model {
	cols := []table.Column{
		{Title: "Geometry", Width: 18},
		{Title: "cm", Width: 8},
		{Title: "Limit", Width: 18},
		{Title: "cm", Width: 8},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(5))
	return model{
		title:      title,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case frameMsg:
		switch f := msg.Message.(type) {
		case tank.InitMessage:
			m.init = &f
			m.last = nil
			m.runs++
			m.table.SetRows(geometryRows(f))
			m.appendLog(fmt.Sprintf("INIT run=%d width=%.1f hole_height=%.1f hole_diameter=%.1f tank_height=%.1f",
				m.runs, f.TankWidth, f.HoleHeight, f.HoleDiameter, f.TankHeight))
		case tank.DataMessage:
			m.last = &f
			m.appendLog(fmt.Sprintf("t=%6.2fs level=%7.2fcm jet=%7.2fcm flow=%.4fL/s",
				f.Time, f.WaterLevel, f.FlowDistance, f.FlowRate))
		}
	case statusMsg:
		m.appendLog(msg.line)
	}
	return m, nil
}

func (m *model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

func (m *model) updateViewportHeight() {
	used := lipgloss.Height(m.renderHeader()) + tankRows + 2 + 4
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *model) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func geometryRows(f tank.InitMessage) []table.Row {
	return []table.Row{
		{"Tank width", fmt.Sprintf("%.1f", f.TankWidth), "Max water level", fmt.Sprintf("%.0f", f.MaxWaterLevel)},
		{"Tank height", fmt.Sprintf("%.1f", f.TankHeight), "Max hole diameter", fmt.Sprintf("%.0f", f.MaxHoleDiameter)},
		{"Hole height", fmt.Sprintf("%.1f", f.HoleHeight), "Max tank width", fmt.Sprintf("%.0f", f.MaxTankWidth)},
		{"Hole diameter", fmt.Sprintf("%.1f", f.HoleDiameter), "", ""},
	}
}

func (m model) View() string {
	divider := strings.Repeat("─", max(m.vp.Width, tankCols+2))
	sections := []string{
		m.renderHeader(),
		divider,
		m.renderTank(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m model) renderHeader() string {
	title := titleStyle.Render(m.title)
	if m.init == nil {
		return title + "\n" + dimStyle.Render("waiting for a simulation to start…")
	}
	return title + "\n" + m.table.View()
}

// renderTank draws the tank scaled to tankRows. The hole row is marked and
// the jet length is proportional to the landing distance.
func (m model) renderTank() string {
	if m.init == nil || m.init.TankHeight <= 0 {
		return strings.Repeat("\n", tankRows-1)
	}
	level := m.init.TankHeight / 1.2
	jet := m.init.WaterDistance
	if m.last != nil {
		level = m.last.WaterLevel
		jet = m.last.FlowDistance
	}
	waterRows := scaleRows(level, m.init.TankHeight)
	holeRow := scaleRows(m.init.HoleHeight, m.init.TankHeight)
	if holeRow < 1 {
		holeRow = 1
	}
	jetCols := 0
	if level > m.init.HoleHeight {
		jetCols = int(jet / (m.init.TankWidth + jet + 1) * maxJetCols)
		if jetCols < 1 {
			jetCols = 1
		}
	}

	var b strings.Builder
	for row := tankRows; row >= 1; row-- {
		b.WriteString(wallStyle.Render("│"))
		if row <= waterRows {
			b.WriteString(waterStyle.Render(strings.Repeat("█", tankCols)))
		} else {
			b.WriteString(strings.Repeat(" ", tankCols))
		}
		if row == holeRow {
			b.WriteString(holeStyle.Render("◄"))
			b.WriteString(jetStyle.Render(strings.Repeat("~", jetCols)))
		} else {
			b.WriteString(wallStyle.Render("│"))
		}
		if row > 1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + wallStyle.Render("└"+strings.Repeat("─", tankCols)+"┘"))
	return b.String()
}

// scaleRows maps a height in cm onto the drawing's row count.
func scaleRows(cm, full float64) int {
	if cm <= 0 || full <= 0 {
		return 0
	}
	r := int(cm/full*tankRows + 0.5)
	if r > tankRows {
		r = tankRows
	}
	return r
}

func indicator(on bool) string {
	c := offColor
	if on {
		c = onColor
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m model) renderBottom() string {
	state := "idle"
	if m.last != nil {
		state = fmt.Sprintf("t=%.2fs level=%.2fcm", m.last.Time, m.last.WaterLevel)
	}
	return fmt.Sprintf("%s | runs %d | Wrap %s | Scroll %s | q quit", state, m.runs, indicator(m.wrap), indicator(m.autoscroll))
}
