package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport abstracts the duplex connection so the state machine can be
// exercised against a mock in tests. The production implementation is a
// gorilla/websocket connection.
type Transport interface {
	// WriteBinary sends one raw PCM chunk on the data plane.
	WriteBinary(data []byte) error

	// WriteJSON sends one control-plane message.
	WriteJSON(v interface{}) error

	// ReadMessage blocks for the next inbound message. messageType follows
	// the websocket convention (TextMessage/BinaryMessage).
	ReadMessage() (messageType int, data []byte, err error)

	// Close tears the connection down. Fire-and-forget: implementations must
	// not block waiting for the peer.
	Close() error
}

// Dialer establishes a Transport for a stream URL.
type Dialer func(ctx context.Context, url string) (Transport, error)

const defaultWriteTimeout = 10 * time.Second

// wsTransport wraps a websocket connection with a mutex-guarded writer;
// gorilla connections support one concurrent writer only.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialWebSocket opens a websocket connection to the stream URL.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) WriteBinary(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) ReadMessage() (int, []byte, error) {
	return t.conn.ReadMessage()
}

func (t *wsTransport) Close() error {
	// Best-effort close frame; the peer may already be gone.
	t.writeMu.Lock()
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	return t.conn.Close()
}
