package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"watertank-sim/internal/tank"
)

type countingWriter struct{ msgs []tank.Message }

func (c *countingWriter) Broadcast(_ context.Context, msg tank.Message) int {
	c.msgs = append(c.msgs, msg)
	return 2
}

func TestMultiWriterSumsDeliveries(t *testing.T) {
	a, b := &countingWriter{}, &countingWriter{}
	mw := NewMultiWriter(a, nil, b)
	n := mw.Broadcast(context.Background(), tank.DataMessage{Time: 0.1})
	if n != 4 {
		t.Fatalf("expected 4 deliveries, got %d", n)
	}
	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("frame not forwarded to every writer")
	}
}

func TestJSONWriterPrintsFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf)
	if n := w.Broadcast(context.Background(), tank.DataMessage{Time: 0.2, WaterLevel: 12.5}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, `{"method":"data"`) {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.Contains(line, `"water_level":12.5`) {
		t.Fatalf("missing water level in %q", line)
	}
}
