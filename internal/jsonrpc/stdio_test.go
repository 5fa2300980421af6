package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPipeServer runs a line-delimited responder over in-memory pipes and
// returns a client wired to it.
func startPipeServer(t *testing.T, respond func(req Message) interface{}) *StdioClient {
	t.Helper()

	reqReader, reqWriter := io.Pipe()
	respReader, respWriter := io.Pipe()
	t.Cleanup(func() {
		reqReader.Close()
		respWriter.Close()
	})

	go func() {
		scanner := bufio.NewScanner(reqReader)
		for scanner.Scan() {
			var req Message
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			reply := respond(req)
			if reply == nil {
				continue
			}
			data, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			respWriter.Write(append(data, '\n'))
		}
	}()

	return newPipeClient(reqWriter, respReader)
}

func TestStdioClientLineExchange(t *testing.T) {
	client := startPipeServer(t, func(req Message) interface{} {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  map[string]interface{}{"protocolVersion": "2024-11-05"},
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, NewRequest(1, "initialize", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	require.NotNil(t, resp.Message)
	assert.True(t, resp.Message.HasResult())
}

func TestStdioClientTimeout(t *testing.T) {
	client := startPipeServer(t, func(req Message) interface{} {
		return nil // never answer
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, NewRequest(1, "initialize", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStdioClientUndecodableResponse(t *testing.T) {
	reqReader, reqWriter := io.Pipe()
	respReader, respWriter := io.Pipe()
	t.Cleanup(func() {
		reqReader.Close()
		respWriter.Close()
	})

	go func() {
		scanner := bufio.NewScanner(reqReader)
		for scanner.Scan() {
			respWriter.Write([]byte("not json at all\n"))
		}
	}()

	client := newPipeClient(reqWriter, respReader)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, NewRequest(1, "initialize", nil))
	require.NoError(t, err)
	assert.Nil(t, resp.Message)
}

func TestStartStdioClientEmptyCommand(t *testing.T) {
	_, err := StartStdioClient(context.Background(), "   ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty stdio server command")
}

func TestStartStdioClientMissingBinary(t *testing.T) {
	_, err := StartStdioClient(context.Background(), "/nonexistent/mcp-server --flag")
	assert.Error(t, err)
}
