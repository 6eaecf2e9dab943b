package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 10 * time.Second
)

// Dial opens an authenticated socket to the exam server.
func Dial(ctx context.Context, url, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// WriteTyped sends a strongly-typed request payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadEvent reads the server acknowledgement for the last request.
func ReadEvent(conn *websocket.Conn) (ServerEvent, error) {
	var ev ServerEvent
	conn.SetReadDeadline(time.Now().Add(readWait))
	if err := conn.ReadJSON(&ev); err != nil {
		return ServerEvent{}, err
	}
	return ev, nil
}

// Roundtrip writes v and waits for the acknowledgement. An EventError
// reply is returned as an error.
func Roundtrip(conn *websocket.Conn, v interface{}) error {
	if err := WriteTyped(conn, v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	ev, err := ReadEvent(conn)
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if ev.Event == EventError {
		return fmt.Errorf("server rejected %T: %s", v, ev.Error)
	}
	return nil
}
