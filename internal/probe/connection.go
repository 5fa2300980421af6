package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcpvet/internal/jsonrpc"
)

// initializeRequest is the common handshake prologue every probe sends
// first.
func initializeRequest() jsonrpc.Message {
	return jsonrpc.NewRequest(1, "initialize", map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    clientName,
			"version": clientVersion,
		},
	})
}

// performHandshake initializes the session and updates the tally. Probes
// that cannot proceed without a session treat any returned error as fatal.
func performHandshake(ctx context.Context, c jsonrpc.Client, t *tally) error {
	resp, err := c.Call(ctx, initializeRequest())
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("initialize failed with status %d", resp.StatusCode)
	}
	if resp.Message == nil {
		return fmt.Errorf("initialize response is not valid JSON")
	}
	if resp.Message.HasError() {
		return fmt.Errorf("initialize error: %s", resp.Message.ErrorMessage("unknown error"))
	}

	t.counters.Connected = true
	t.counters.Initialized = true
	t.counters.MessagesExchanged += 2
	return nil
}

// connectionProbe verifies a server accepts a session at all: handshake
// over the address's transport, and for stdio servers a full SDK session
// that also lists tools and resources.
type connectionProbe struct{}

func (p *connectionProbe) Name() string {
	return TestBasicConnection
}

func (p *connectionProbe) Run(ctx context.Context, req TestRequest) TestResult {
	ctx, cancel := context.WithTimeout(ctx, req.Config.Timeout())
	defer cancel()

	t := &tally{}

	var err error
	if strings.HasPrefix(req.ServerURL, "stdio://") {
		err = p.runStdioSession(ctx, strings.TrimPrefix(req.ServerURL, "stdio://"), t)
	} else {
		err = p.runHandshake(ctx, req.ServerURL, t)
	}
	if err != nil {
		t.counters.ErrorsEncountered++
		if errors.Is(err, context.DeadlineExceeded) {
			t.issue(SeverityError, "timeout", "Connection timed out")
		} else {
			t.issue(SeverityError, "connection", err.Error())
		}
	}

	errMsg := ""
	if t.counters.ErrorsEncountered > 0 {
		errMsg = "Connection test failed"
	}
	return TestResult{
		Success:       t.counters.Initialized && t.counters.ErrorsEncountered == 0,
		Results:       t.counters,
		Error:         errMsg,
		Issues:        t.issues,
		Compatibility: newCompatibility(staticFeatures(true)),
	}
}

// runHandshake sends a single initialize request over HTTP or WebSocket.
func (p *connectionProbe) runHandshake(ctx context.Context, serverURL string, t *tally) error {
	c, err := jsonrpc.Dial(ctx, serverURL)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Call(ctx, initializeRequest())
	if err != nil {
		return err
	}

	if !resp.OK() {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "connection", "HTTP %d: Failed to initialize", resp.StatusCode)
		return nil
	}

	t.counters.Connected = true
	if resp.Message != nil && resp.Message.HasResult() {
		t.counters.Initialized = true
		t.counters.MessagesExchanged += 2
	}
	return nil
}

// runStdioSession drives a full SDK session against a spawned server: the
// command is everything after the stdio:// prefix.
func (p *connectionProbe) runStdioSession(ctx context.Context, command string, t *tally) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty stdio server command")
	}

	mcpClient, err := client.NewStdioMCPClient(parts[0], nil, parts[1:]...)
	if err != nil {
		return fmt.Errorf("failed to start stdio server: %w", err)
	}
	defer mcpClient.Close()

	t.counters.Connected = true

	initRequest := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: ProtocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}
	t.counters.Initialized = true
	t.counters.MessagesExchanged += 2

	toolsResult, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	t.counters.ToolsFound = len(toolsResult.Tools)
	t.counters.MessagesExchanged += 2

	resourcesResult, err := mcpClient.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}
	t.counters.ResourcesAccessible = len(resourcesResult.Resources)
	t.counters.MessagesExchanged += 2

	return nil
}
