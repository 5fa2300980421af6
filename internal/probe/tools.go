package probe

import (
	"context"
	"fmt"

	"mcpvet/internal/jsonrpc"
)

// toolProbe lists the server's tools and invokes the first one with
// arguments synthesized from its declared input schema.
type toolProbe struct{}

func (p *toolProbe) Name() string {
	return TestToolExecution
}

func (p *toolProbe) Run(ctx context.Context, req TestRequest) TestResult {
	ctx, cancel := context.WithTimeout(ctx, req.Config.Timeout())
	defer cancel()

	t := &tally{}
	if err := p.exchange(ctx, req.ServerURL, t); err != nil {
		t.counters.ErrorsEncountered++
		t.issue(SeverityError, "execution", err.Error())
	}

	errMsg := ""
	if t.counters.ErrorsEncountered > 0 {
		errMsg = "Tool execution test failed"
	}
	return TestResult{
		Success:       t.counters.ToolsFound > 0 && t.counters.ErrorsEncountered == 0,
		Results:       t.counters,
		Error:         errMsg,
		Issues:        t.issues,
		Compatibility: newCompatibility(staticFeatures(false)),
	}
}

func (p *toolProbe) exchange(ctx context.Context, serverURL string, t *tally) error {
	c, err := jsonrpc.Dial(ctx, serverURL)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := performHandshake(ctx, c, t); err != nil {
		return err
	}

	// List available tools
	resp, err := c.Call(ctx, jsonrpc.NewRequest(2, "tools/list", map[string]interface{}{}))
	if err != nil {
		return err
	}

	var tools []interface{}
	if resp.OK() {
		if resp.Message == nil {
			return fmt.Errorf("tools/list response is not valid JSON")
		}
		if found, ok := toolsFromResponse(resp.Message); ok {
			tools = found
			t.counters.ToolsFound = len(tools)
			t.counters.MessagesExchanged += 2
			if len(tools) == 0 {
				t.issue(SeverityWarning, "tools", "No tools found on server")
			}
		} else {
			t.counters.ErrorsEncountered++
			t.issue(SeverityError, "tools", "Invalid tools/list response format")
		}
	} else {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "tools", "Failed to list tools: HTTP %d", resp.StatusCode)
	}

	if len(tools) == 0 {
		return nil
	}

	// Invoke the first tool with minimal synthesized arguments
	first, ok := tools[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("tools/list returned a malformed tool entry")
	}
	toolName := "unknown"
	if name, ok := first["name"].(string); ok {
		toolName = name
	}

	callResp, err := c.Call(ctx, jsonrpc.NewRequest(3, "tools/call", map[string]interface{}{
		"name":      toolName,
		"arguments": synthesizeArguments(first),
	}))
	if err != nil {
		return err
	}

	if callResp.OK() {
		if callResp.Message == nil {
			return fmt.Errorf("tools/call response is not valid JSON")
		}
		t.counters.MessagesExchanged += 2

		if callResp.Message.HasError() {
			// A tool rejecting synthesized arguments is plausible; grade it
			// below a protocol violation.
			t.counters.ErrorsEncountered++
			t.issuef(SeverityWarning, "tool_execution", "Tool execution error: %s",
				callResp.Message.ErrorMessage("Unknown error"))
		} else if !callResp.Message.HasResult() {
			t.counters.ErrorsEncountered++
			t.issue(SeverityError, "tool_execution", "Invalid tool execution response format")
		}
	} else {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "tool_execution", "Tool execution failed: HTTP %d", callResp.StatusCode)
	}

	return nil
}

func toolsFromResponse(msg jsonrpc.Message) ([]interface{}, bool) {
	result, ok := msg.Result()
	if !ok {
		return nil, false
	}
	tools, ok := result["tools"].([]interface{})
	return tools, ok
}

// synthesizeArguments builds minimal valid arguments from a tool's declared
// input schema: a declared default wins, then a zero-ish value by type.
// Types without an obvious minimal value are omitted.
func synthesizeArguments(tool map[string]interface{}) map[string]interface{} {
	args := map[string]interface{}{}
	schema, ok := tool["inputSchema"].(map[string]interface{})
	if !ok {
		return args
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return args
	}
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			args[name] = def
			continue
		}
		switch prop["type"] {
		case "string":
			args[name] = "test"
		case "number":
			args[name] = 0
		case "boolean":
			args[name] = false
		}
	}
	return args
}
