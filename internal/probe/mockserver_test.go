package probe

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"mcpvet/internal/jsonrpc"
)

// mockMCPServer answers MCP JSON-RPC over HTTP for probe tests. The zero
// value is a conforming server with one tool and one resource; fields bend
// individual behaviors for a single test.
type mockMCPServer struct {
	tools       []map[string]interface{}
	noTools     bool
	noResources bool

	// methodStatus forces a non-200 status for specific methods.
	methodStatus map[string]int

	// rawReplies overrides the reply body for specific methods verbatim.
	rawReplies map[string]string

	toolCallError map[string]interface{}
	readContents  []interface{}
	readError     map[string]interface{}

	// acceptInvalid answers empty results to requests a conforming server
	// would reject. looseErrorCodes rejects them, but with -32000. laxParams
	// validates the envelope yet swallows bad tools/call params and
	// unparsable bodies.
	acceptInvalid   bool
	looseErrorCodes bool
	laxParams       bool

	// malformedStatus overrides the status answered to unparsable bodies.
	malformedStatus int

	// sse exposes a minimal streaming endpoint at <url>/sse.
	sse bool

	lastToolName string
	lastToolArgs map[string]interface{}
}

// start serves the mock and returns its base URL. The server is shut down
// with the test.
func (m *mockMCPServer) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(srv.Close)
	return srv.URL
}

func (m *mockMCPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/sse") {
		if m.sse {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "event: ping\n\n")
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	body, _ := io.ReadAll(r.Body)
	var msg map[string]interface{}
	if err := json.Unmarshal(body, &msg); err != nil {
		m.handleMalformed(w)
		return
	}

	if reply := m.gradeEnvelope(msg); reply != nil {
		m.writeJSON(w, http.StatusOK, reply)
		return
	}

	method, _ := msg["method"].(string)
	if status, ok := m.methodStatus[method]; ok {
		w.WriteHeader(status)
		io.WriteString(w, "unavailable")
		return
	}
	if body, ok := m.rawReplies[method]; ok {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
		return
	}

	id := msg["id"]
	params, _ := msg["params"].(map[string]interface{})

	switch method {
	case "initialize":
		m.writeJSON(w, http.StatusOK, m.handleInitialize(id))
	case "tools/list":
		m.writeJSON(w, http.StatusOK, m.handleToolsList(id))
	case "tools/call":
		m.writeJSON(w, http.StatusOK, m.handleToolCall(id, params))
	case "resources/list":
		m.writeJSON(w, http.StatusOK, m.handleResourcesList(id))
	case "resources/read":
		m.writeJSON(w, http.StatusOK, m.handleResourceRead(id))
	case "resources/subscribe":
		m.writeJSON(w, http.StatusOK, jsonError(id, jsonrpc.CodeMethodNotFound, "Method not found"))
	default:
		if m.acceptInvalid {
			m.writeJSON(w, http.StatusOK, jsonResult(id, map[string]interface{}{}))
			return
		}
		m.writeJSON(w, http.StatusOK, jsonError(id, m.rejectCode(jsonrpc.CodeMethodNotFound), "Method not found"))
	}
}

func (m *mockMCPServer) handleMalformed(w http.ResponseWriter) {
	if m.malformedStatus != 0 {
		w.WriteHeader(m.malformedStatus)
		io.WriteString(w, "bad request")
		return
	}
	switch {
	case m.acceptInvalid || m.laxParams:
		m.writeJSON(w, http.StatusOK, jsonResult(nil, map[string]interface{}{}))
	case m.looseErrorCodes:
		m.writeJSON(w, http.StatusOK, jsonError(nil, -32000, "Server error"))
	default:
		m.writeJSON(w, http.StatusOK, jsonError(nil, jsonrpc.CodeParseError, "Parse error"))
	}
}

// gradeEnvelope rejects requests that violate JSON-RPC framing. A nil
// return lets the request through to method dispatch.
func (m *mockMCPServer) gradeEnvelope(msg map[string]interface{}) map[string]interface{} {
	if m.acceptInvalid {
		return nil
	}
	id := msg["id"]
	if v, _ := msg["jsonrpc"].(string); v != jsonrpc.Version {
		return jsonError(id, m.rejectCode(jsonrpc.CodeInvalidRequest), "Invalid Request")
	}
	if method, _ := msg["method"].(string); method == "" {
		return jsonError(id, m.rejectCode(jsonrpc.CodeInvalidRequest), "Invalid Request")
	}
	return nil
}

func (m *mockMCPServer) rejectCode(conforming int) int {
	if m.looseErrorCodes {
		return -32000
	}
	return conforming
}

func (m *mockMCPServer) handleInitialize(id interface{}) map[string]interface{} {
	return jsonResult(id, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "mock-mcp-server",
			"version": "1.0.0",
		},
	})
}

func (m *mockMCPServer) handleToolsList(id interface{}) map[string]interface{} {
	tools := m.tools
	if tools == nil && !m.noTools {
		tools = []map[string]interface{}{
			{
				"name":        "echo",
				"description": "Echo a message back",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"message"},
				},
			},
		}
	}
	if tools == nil {
		tools = []map[string]interface{}{}
	}
	return jsonResult(id, map[string]interface{}{"tools": tools})
}

func (m *mockMCPServer) handleToolCall(id interface{}, params map[string]interface{}) map[string]interface{} {
	name, _ := params["name"].(string)
	if name == "" && !m.laxParams && !m.acceptInvalid {
		return jsonError(id, m.rejectCode(jsonrpc.CodeInvalidParams), "Invalid params")
	}
	m.lastToolName = name
	m.lastToolArgs, _ = params["arguments"].(map[string]interface{})

	if m.toolCallError != nil {
		return map[string]interface{}{
			"jsonrpc": jsonrpc.Version,
			"id":      id,
			"error":   m.toolCallError,
		}
	}
	return jsonResult(id, map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": "ok"},
		},
	})
}

func (m *mockMCPServer) handleResourcesList(id interface{}) map[string]interface{} {
	resources := []map[string]interface{}{}
	if !m.noResources {
		resources = append(resources, map[string]interface{}{
			"uri":  "memo://greeting",
			"name": "greeting",
		})
	}
	return jsonResult(id, map[string]interface{}{"resources": resources})
}

func (m *mockMCPServer) handleResourceRead(id interface{}) map[string]interface{} {
	if m.readError != nil {
		return map[string]interface{}{
			"jsonrpc": jsonrpc.Version,
			"id":      id,
			"error":   m.readError,
		}
	}
	contents := m.readContents
	if contents == nil {
		contents = []interface{}{
			map[string]interface{}{
				"uri":  "memo://greeting",
				"text": "hello",
			},
		}
	}
	return jsonResult(id, map[string]interface{}{"contents": contents})
}

func (m *mockMCPServer) writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func jsonResult(id interface{}, result map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"result":  result,
	}
}

func jsonError(id interface{}, code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
}

// startWSServer runs a WebSocket endpoint that answers every text frame
// with the given reply. It returns the ws:// URL.
func startWSServer(t *testing.T, reply map[string]interface{}) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			data, err := json.Marshal(reply)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
