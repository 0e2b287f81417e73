// Package wsbus exposes a transport bus over a websocket speaking JSON
// envelopes.
package wsbus

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Envelope operations.
const (
	OpPut   = "put"
	OpGet   = "get"
	OpAck   = "ack"
	OpReply = "reply"
	OpError = "error"
)

// Envelope is the single JSON message shape exchanged in both directions.
// Payload bytes are base64 in JSON; a null payload on a get means the query
// carries none.
type Envelope struct {
	Op       string   `json:"op"`
	ID       uint64   `json:"id"`
	Key      string   `json:"key,omitempty"`
	Payload  []byte   `json:"payload"`
	Payloads [][]byte `json:"payloads,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// SafeWriter serializes writes to a websocket connection. Reads are not
// guarded and must stay on one goroutine.
type SafeWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewSafeWriter wraps conn.
func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{conn: conn}
}

// WriteJSON writes v as one text message.
func (w *SafeWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// WriteClose sends a close frame with the given code.
func (w *SafeWriter) WriteClose(code int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// Close closes the underlying connection.
func (w *SafeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}
