package jsonrpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	msg := NewRequest(1, "initialize", map[string]interface{}{"protocolVersion": "2024-11-05"})

	assert.Equal(t, Version, msg["jsonrpc"])
	assert.Equal(t, "initialize", msg["method"])
	assert.Equal(t, 1, msg["id"])
	params, ok := msg["params"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "2024-11-05", params["protocolVersion"])
}

func TestNewRequestWithoutParams(t *testing.T) {
	msg := NewRequest("test3", "unknown/method", nil)

	_, hasParams := msg["params"]
	assert.False(t, hasParams)
	assert.Equal(t, "test3", msg["id"])
}

func TestMessageAccessors(t *testing.T) {
	// Decode from wire bytes so numeric types match real responses
	raw := `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`
	var msg Message
	assert.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.True(t, msg.HasError())
	assert.False(t, msg.HasResult())

	code, ok := msg.ErrorCode()
	assert.True(t, ok)
	assert.Equal(t, -32601, code)
	assert.Equal(t, "Method not found", msg.ErrorMessage("fallback"))
}

func TestMessageAccessorsMalformedError(t *testing.T) {
	var msg Message
	assert.NoError(t, json.Unmarshal([]byte(`{"error":"just a string"}`), &msg))

	assert.True(t, msg.HasError())
	_, ok := msg.ErrorCode()
	assert.False(t, ok)
	assert.Equal(t, "fallback", msg.ErrorMessage("fallback"))

	// Error object without a numeric code
	assert.NoError(t, json.Unmarshal([]byte(`{"error":{"code":"NaN","message":7}}`), &msg))
	_, ok = msg.ErrorCode()
	assert.False(t, ok)
	assert.Equal(t, "fallback", msg.ErrorMessage("fallback"))
}

func TestMessageResult(t *testing.T) {
	var msg Message
	assert.NoError(t, json.Unmarshal([]byte(`{"result":{"tools":[]}}`), &msg))

	res, ok := msg.Result()
	assert.True(t, ok)
	_, hasTools := res["tools"]
	assert.True(t, hasTools)

	assert.NoError(t, json.Unmarshal([]byte(`{"result":"plain"}`), &msg))
	_, ok = msg.Result()
	assert.False(t, ok)
}

func TestDialUnsupportedScheme(t *testing.T) {
	_, err := Dial(context.Background(), "ftp://example.com/server")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported server address scheme")
}
