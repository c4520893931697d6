package sim

import (
	"context"

	"watertank-sim/internal/tank"
)

// MultiWriter fans frames out to several broadcasters, e.g. the WebSocket
// hub and a local stdout echo.
type MultiWriter struct {
	writers []Broadcaster
}

// NewMultiWriter creates a new MultiWriter. Nil entries are skipped.
func NewMultiWriter(ws ...Broadcaster) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Broadcast sends msg to every writer and returns the summed delivery count.
func (mw *MultiWriter) Broadcast(ctx context.Context, msg tank.Message) int {
	total := 0
	for _, w := range mw.writers {
		total += w.Broadcast(ctx, msg)
	}
	return total
}
