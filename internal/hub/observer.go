package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errObserverClosed = errors.New("observer closed")

// connObserver is a WebSocket connection. Writes are serialized because
// gorilla connections support one concurrent writer.
type connObserver struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newConnObserver(id string, conn *websocket.Conn, writeTimeout time.Duration) *connObserver {
	return &connObserver{id: id, conn: conn, writeTimeout: writeTimeout}
}

func (o *connObserver) ID() string { return o.id }

// Send writes data as one text frame.
func (o *connObserver) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errObserverClosed
	}
	if err := o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout)); err != nil {
		return err
	}
	return o.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a going-away frame and closes the connection. Safe to call twice.
func (o *connObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
	_ = o.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return o.conn.Close()
}
