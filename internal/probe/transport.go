package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"mcpvet/internal/jsonrpc"
)

const (
	transportHTTP      = "http"
	transportWebSocket = "websocket"
	transportStdio     = "stdio"
	transportSSE       = "sse"
	transportUnknown   = "unknown"
)

// transportProbe exercises the transport the address selects and records
// every transport it managed to reach. Feature flags in the compatibility
// block come from that record, so a failed attempt still shows up.
type transportProbe struct{}

func (p *transportProbe) Name() string {
	return TestTransportCompat
}

func (p *transportProbe) Run(ctx context.Context, req TestRequest) TestResult {
	ctx, cancel := context.WithTimeout(ctx, req.Config.Timeout())
	defer cancel()

	t := &tally{}
	tested := []string{classifyTransport(req.ServerURL)}

	switch tested[0] {
	case transportHTTP:
		if err := p.probeHTTP(ctx, req.ServerURL, t, &tested); err != nil {
			t.counters.ErrorsEncountered++
			t.issue(SeverityError, "execution", err.Error())
		}
	case transportWebSocket:
		if err := p.probeWebSocket(ctx, req.ServerURL, t); err != nil {
			t.counters.ErrorsEncountered++
			t.issuef(SeverityError, "websocket_transport", "WebSocket transport failed: %s", err)
		}
	case transportStdio:
		// Spawning the server is the connection probe's job; here only
		// note that the transport exists.
		t.issue(SeverityInfo, "stdio_transport", "stdio transport testing requires special setup")
	default:
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "transport", "Unknown transport type: %s", tested[0])
	}

	features := map[string]bool{
		FeatureSSETransport:       containsTransport(tested, transportSSE),
		FeatureWebSocketTransport: containsTransport(tested, transportWebSocket),
		FeatureStdioTransport:     containsTransport(tested, transportStdio),
		FeatureOAuthSupport:       false,
		FeatureSamplingSupport:    false,
		FeatureLoggingLevels:      true,
	}

	errMsg := ""
	if t.counters.ErrorsEncountered > 0 {
		errMsg = "Transport compatibility test failed"
	}
	return TestResult{
		Success:       t.counters.Initialized && t.counters.ErrorsEncountered == 0,
		Results:       t.counters,
		Error:         errMsg,
		Issues:        t.issues,
		Compatibility: newCompatibility(features),
	}
}

func classifyTransport(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "http://"), strings.HasPrefix(serverURL, "https://"):
		return transportHTTP
	case strings.HasPrefix(serverURL, "ws://"), strings.HasPrefix(serverURL, "wss://"):
		return transportWebSocket
	case strings.HasPrefix(serverURL, "stdio://"):
		return transportStdio
	default:
		return transportUnknown
	}
}

func (p *transportProbe) probeHTTP(ctx context.Context, serverURL string, t *tally, tested *[]string) error {
	c := jsonrpc.NewHTTPClient(serverURL)
	defer c.Close()

	resp, err := c.Call(ctx, initializeRequest())
	if err != nil {
		return err
	}
	if resp.OK() {
		t.counters.Connected = true
		if resp.Message == nil {
			return fmt.Errorf("initialize response is not valid JSON")
		}
		if resp.Message.HasResult() {
			t.counters.Initialized = true
			t.counters.MessagesExchanged += 2
		} else {
			t.issue(SeverityError, "http_transport", "Invalid initialization response")
		}
	} else {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "http_transport", "HTTP transport failed with status %d", resp.StatusCode)
	}

	// Many HTTP servers expose a streaming channel next to the RPC
	// endpoint; its absence is not a finding.
	sseURL := strings.TrimRight(serverURL, "/") + "/sse"
	if status, err := c.Get(ctx, sseURL); err == nil && status == http.StatusOK {
		t.issue(SeverityInfo, "sse_transport", "SSE endpoint available")
		*tested = append(*tested, transportSSE)
	}
	return nil
}

func (p *transportProbe) probeWebSocket(ctx context.Context, serverURL string, t *tally) error {
	c, err := jsonrpc.DialWebSocket(ctx, serverURL)
	if err != nil {
		return err
	}
	defer c.Close()

	t.counters.Connected = true

	resp, err := c.Call(ctx, initializeRequest())
	if err != nil {
		return err
	}
	if resp.Message == nil {
		return fmt.Errorf("server reply is not valid JSON")
	}
	if resp.Message.HasResult() {
		t.counters.Initialized = true
		t.counters.MessagesExchanged += 2
	} else {
		t.issue(SeverityError, "websocket_transport", "Invalid initialization response")
	}
	return nil
}

func containsTransport(tested []string, name string) bool {
	for _, tr := range tested {
		if tr == name {
			return true
		}
	}
	return false
}
