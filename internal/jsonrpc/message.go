package jsonrpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Version is the JSON-RPC protocol version spoken on the wire.
const Version = "2.0"

// Error codes defined by the JSON-RPC 2.0 specification.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message is one decoded JSON-RPC payload.
type Message map[string]interface{}

// NewRequest builds a request envelope with the given id, method and params.
func NewRequest(id interface{}, method string, params interface{}) Message {
	msg := Message{
		"jsonrpc": Version,
		"method":  method,
		"id":      id,
	}
	if params != nil {
		msg["params"] = params
	}
	return msg
}

// HasResult reports whether the message carries a "result" member.
func (m Message) HasResult() bool {
	_, ok := m["result"]
	return ok
}

// HasError reports whether the message carries an "error" member.
func (m Message) HasError() bool {
	_, ok := m["error"]
	return ok
}

// Result returns the "result" member when it is an object.
func (m Message) Result() (map[string]interface{}, bool) {
	res, ok := m["result"].(map[string]interface{})
	return res, ok
}

// ErrorCode returns the numeric code of the "error" member. JSON numbers
// decode as float64; the cast happens here once.
func (m Message) ErrorCode() (int, bool) {
	errObj, ok := m["error"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	code, ok := errObj["code"].(float64)
	if !ok {
		return 0, false
	}
	return int(code), true
}

// ErrorMessage returns the "message" of the "error" member, or the fallback
// when the member is missing or not a string.
func (m Message) ErrorMessage(fallback string) string {
	errObj, ok := m["error"].(map[string]interface{})
	if !ok {
		return fallback
	}
	s, ok := errObj["message"].(string)
	if !ok {
		return fallback
	}
	return s
}

// Response is the transport-level outcome of one request.
type Response struct {
	// StatusCode is the HTTP status, or 200 for transports without one.
	StatusCode int

	// Message is the decoded body. It is nil when the body was not valid
	// JSON; callers that care about that distinction check for nil.
	Message Message
}

// OK reports whether the transport accepted the request.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client issues JSON-RPC requests over one transport. Connection failures and
// exceeded deadlines surface as errors; everything the server answered, well
// formed or not, surfaces in the Response so probes can grade it.
type Client interface {
	Call(ctx context.Context, msg Message) (*Response, error)

	// CallRaw sends pre-encoded bytes verbatim.
	CallRaw(ctx context.Context, body []byte) (*Response, error)

	Close() error
}

// Dial returns a Client for the server address based on its scheme.
func Dial(ctx context.Context, serverURL string) (Client, error) {
	switch {
	case strings.HasPrefix(serverURL, "http://"), strings.HasPrefix(serverURL, "https://"):
		return NewHTTPClient(serverURL), nil
	case strings.HasPrefix(serverURL, "ws://"), strings.HasPrefix(serverURL, "wss://"):
		return DialWebSocket(ctx, serverURL)
	case strings.HasPrefix(serverURL, "stdio://"):
		return StartStdioClient(ctx, strings.TrimPrefix(serverURL, "stdio://"))
	default:
		return nil, fmt.Errorf("unsupported server address scheme: %s", serverURL)
	}
}
