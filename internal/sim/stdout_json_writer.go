package sim

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"watertank-sim/internal/logging"
	"watertank-sim/internal/tank"
)

// JSONStdoutWriter prints every frame as one JSON line, the same text an
// observer receives over the WebSocket.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// NewJSONWriter creates a JSONStdoutWriter writing to w.
func NewJSONWriter(w io.Writer) *JSONStdoutWriter {
	return &JSONStdoutWriter{out: w}
}

// Broadcast outputs msg and counts itself as one observer.
func (w *JSONStdoutWriter) Broadcast(ctx context.Context, msg tank.Message) int {
	data, err := tank.Encode(msg)
	if err != nil {
		logging.FromContext(ctx).Error("encode frame failed", "err", err)
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.out, string(data)); err != nil {
		logging.FromContext(ctx).Warn("stdout write failed", "err", err)
		return 0
	}
	return 1
}
