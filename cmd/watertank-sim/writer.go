package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"watertank-sim/internal/sim"
	"watertank-sim/internal/viewer"
)

// Output modes for local frame rendering.
const (
	outputAuto = "auto"
	outputJSON = "json"
	outputTUI  = "tui"
	outputNone = "none"
)

// sink is where a command renders frames locally.
type sink struct {
	out sim.Broadcaster // nil when frames are not rendered locally
	tui *viewer.TUI
}

func (s sink) close() {
	if s.tui != nil {
		_ = s.tui.Close()
	}
}

// startTUI is replaced in tests.
var startTUI = viewer.NewTUI

// newSink chooses the local observer for mode. Auto renders the TUI when
// stdout is a terminal and JSON lines otherwise.
func newSink(mode string, isTTY bool, w io.Writer, title string) (sink, error) {
	switch mode {
	case outputAuto:
		if isTTY {
			return newSink(outputTUI, isTTY, w, title)
		}
		return newSink(outputJSON, isTTY, w, title)
	case outputJSON:
		return sink{out: sim.NewJSONWriter(w)}, nil
	case outputTUI:
		t := startTUI(title)
		return sink{out: t, tui: t}, nil
	case outputNone, "":
		return sink{}, nil
	default:
		return sink{}, fmt.Errorf("unknown output %q (want auto, json, tui or none)", mode)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
