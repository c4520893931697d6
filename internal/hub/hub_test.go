package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watertank-sim/internal/tank"
)

type fakeObserver struct {
	id     string
	fail   bool
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeObserver) ID() string { return f.id }

func (f *fakeObserver) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeObserver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeObserver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

var sample = tank.DataMessage{Time: 0.1, WaterLevel: 99.9, FlowDistance: 60, FlowRate: 0.33}

func TestBroadcastWithoutObservers(t *testing.T) {
	h := New()
	assert.Equal(t, 0, h.Broadcast(context.Background(), sample))
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	h := New()
	good1 := &fakeObserver{id: "a"}
	bad := &fakeObserver{id: "b", fail: true}
	good2 := &fakeObserver{id: "c"}
	for _, o := range []Observer{good1, bad, good2} {
		require.NoError(t, h.Add(o))
	}

	n := h.Broadcast(context.Background(), sample)

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, good1.count())
	assert.Equal(t, 1, good2.count())
	assert.True(t, bad.closed, "failed observer should be closed")
	assert.Equal(t, 2, h.Len(), "failed observer should be dropped")
}

func TestAddAfterStopAccepting(t *testing.T) {
	h := New()
	h.StopAccepting()
	assert.ErrorIs(t, h.Add(&fakeObserver{id: "late"}), ErrClosed)
}

func TestCloseDisconnectsObservers(t *testing.T) {
	h := New()
	o := &fakeObserver{id: "a"}
	require.NoError(t, h.Add(o))
	require.NoError(t, h.Close())
	assert.True(t, o.closed)
	assert.Equal(t, 0, h.Len())
	assert.ErrorIs(t, h.Add(&fakeObserver{id: "b"}), ErrClosed)
}

func TestBroadcastDuringMembershipChurn(t *testing.T) {
	h := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("o-%d-%d", i, j)
				_ = h.Add(&fakeObserver{id: id})
				h.Remove(id)
			}
		}(i)
	}
	for i := 0; i < 200; i++ {
		h.Broadcast(ctx, sample)
	}
	wg.Wait()
	assert.Equal(t, 0, h.Len())
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForObservers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestServeWSDeliversFrames(t *testing.T) {
	h := New()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	c1 := dial(t, srv)
	c2 := dial(t, srv)
	waitForObservers(t, h, 2)

	init := tank.NewInitMessage(tank.TankSpec{WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 50}, tank.DefaultLimits())
	assert.Equal(t, 2, h.Broadcast(context.Background(), init))

	for _, c := range []*websocket.Conn{c1, c2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		mt, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)
		msg, err := tank.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, init, msg)
	}
}

func TestServeWSIgnoresInboundAndTracksDisconnect(t *testing.T) {
	h := New()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	c := dial(t, srv)
	waitForObservers(t, h, 1)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"hello":"server"}`)))
	assert.Equal(t, 1, h.Len())

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	c.Close()
	waitForObservers(t, h, 0)
}

func TestServeWSRejectsAfterStopAccepting(t *testing.T) {
	h := New()
	h.StopAccepting()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
