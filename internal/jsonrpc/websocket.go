package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient speaks JSON-RPC over a persistent duplex WebSocket connection.
type WSClient struct {
	conn *websocket.Conn
}

// DialWebSocket connects to a ws:// or wss:// server address.
func DialWebSocket(ctx context.Context, serverURL string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", serverURL, err)
	}
	return &WSClient{conn: conn}, nil
}

func (c *WSClient) Call(ctx context.Context, msg Message) (*Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.CallRaw(ctx, body)
}

func (c *WSClient) CallRaw(ctx context.Context, body []byte) (*Response, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return nil, fmt.Errorf("websocket write: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}

	out := &Response{StatusCode: http.StatusOK}
	var msg Message
	if json.Unmarshal(data, &msg) == nil {
		out.Message = msg
	}
	return out, nil
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}
