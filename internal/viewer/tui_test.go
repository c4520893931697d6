package viewer

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"watertank-sim/internal/tank"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

var initFrame = tank.NewInitMessage(tank.TankSpec{WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 50}, tank.DefaultLimits())

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	mi, _ := m.Update(msg)
	return mi.(model)
}

func TestTUIForwardsFrames(t *testing.T) {
	p := &fakeProgram{}
	w := &TUI{program: p}
	if n := w.Broadcast(context.Background(), initFrame); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	w.Status("connected")
	if _, ok := p.msgs[0].(frameMsg); !ok {
		t.Fatalf("expected frameMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[1].(statusMsg); !ok {
		t.Fatalf("expected statusMsg, got %T", p.msgs[1])
	}
}

func TestModelTracksRuns(t *testing.T) {
	m := newModel("tank")
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	m = update(t, m, frameMsg{initFrame})
	if m.init == nil || m.runs != 1 {
		t.Fatalf("init frame not applied")
	}
	m = update(t, m, frameMsg{tank.DataMessage{Time: 0, WaterLevel: 99.99, FlowDistance: 60, FlowRate: 0.33}})
	if m.last == nil || m.last.WaterLevel != 99.99 {
		t.Fatalf("data frame not applied")
	}
	if len(m.logs) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(m.logs))
	}

	m = update(t, m, frameMsg{initFrame})
	if m.runs != 2 || m.last != nil {
		t.Fatalf("new init should reset progress, runs=%d last=%v", m.runs, m.last)
	}
	if !strings.Contains(m.View(), "runs 2") {
		t.Fatalf("footer does not show run count")
	}
}

func TestRenderTankLevels(t *testing.T) {
	m := newModel("tank")
	m = update(t, m, frameMsg{initFrame})
	full := strings.Count(m.renderTank(), "█")
	m = update(t, m, frameMsg{tank.DataMessage{Time: 50, WaterLevel: 30, FlowDistance: 34.6, FlowRate: 0.2}})
	low := strings.Count(m.renderTank(), "█")
	if low >= full {
		t.Fatalf("expected less water drawn after draining: %d >= %d", low, full)
	}
	if !strings.Contains(m.renderTank(), "~") {
		t.Fatalf("expected jet while water stands above the hole")
	}
	m = update(t, m, frameMsg{tank.DataMessage{Time: 90, WaterLevel: 9.99, FlowDistance: 1, FlowRate: 0.01}})
	if strings.Contains(m.renderTank(), "~") {
		t.Fatalf("jet drawn below the hole")
	}
}

func TestScaleRows(t *testing.T) {
	if got := scaleRows(120, 120); got != tankRows {
		t.Fatalf("full tank rows = %d", got)
	}
	if got := scaleRows(0, 120); got != 0 {
		t.Fatalf("empty tank rows = %d", got)
	}
	if got := scaleRows(500, 120); got != tankRows {
		t.Fatalf("overfull tank rows = %d", got)
	}
}

func TestToggles(t *testing.T) {
	m := newModel("tank")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled")
	}
}
