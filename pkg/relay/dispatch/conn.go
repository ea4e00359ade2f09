package dispatch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the slice of *websocket.Conn the dispatcher uses, split out so
// tests can script a connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// connHandle serializes writes to one websocket connection. The dispatch
// loop and store broadcasts send through the same handle, and gorilla
// permits only one concurrent writer.
type connHandle struct {
	writeTimeout time.Duration

	mu   sync.Mutex
	conn wsConn
}

func newConnHandle(conn wsConn, writeTimeout time.Duration) *connHandle {
	return &connHandle{conn: conn, writeTimeout: writeTimeout}
}

// SendJSON marshals v and writes it as one text frame.
func (h *connHandle) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// CloseWithCode sends a close frame and tears the connection down.
func (h *connHandle) CloseWithCode(code int, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	deadline := time.Now().Add(h.writeTimeout)
	_ = h.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return h.conn.Close()
}

// Close tears the connection down with a normal-closure frame.
func (h *connHandle) Close() error {
	return h.CloseWithCode(websocket.CloseNormalClosure, "")
}
