package probe

import (
	"context"
	"fmt"
	"net/http"

	"mcpvet/internal/jsonrpc"
)

// errorHandlingProbe sends deliberately broken requests and grades the
// server's JSON-RPC error responses against the codes the protocol
// mandates. A returned error is still a pass; what fails the case is
// accepting garbage as if it were valid.
type errorHandlingProbe struct {
	// passThreshold is the fraction of cases that must pass, in [0, 1].
	passThreshold float64
}

// errorCase is one adversarial request and the error codes that count as
// a correct rejection.
type errorCase struct {
	name        string
	payload     jsonrpc.Message
	acceptCodes []int

	// wrongCodeSeverity grades a rejection with an unexpected code.
	wrongCodeSeverity string
	wrongCodeFormat   string

	// acceptedMsg is the issue raised when the server answers with a
	// result instead of rejecting.
	acceptedMsg string
}

func (p *errorHandlingProbe) Name() string {
	return TestErrorHandling
}

func (p *errorHandlingProbe) cases() []errorCase {
	return []errorCase{
		{
			name: "invalid JSON-RPC version",
			payload: jsonrpc.Message{
				"jsonrpc": "1.0",
				"method":  "tools/list",
				"params":  map[string]interface{}{},
				"id":      "test1",
			},
			acceptCodes:       []int{jsonrpc.CodeInvalidRequest},
			wrongCodeSeverity: SeverityWarning,
			wrongCodeFormat:   "Wrong error code for invalid JSON-RPC version: %v",
			acceptedMsg:       "Server accepted invalid JSON-RPC version",
		},
		{
			name: "missing method",
			payload: jsonrpc.Message{
				"jsonrpc": jsonrpc.Version,
				"params":  map[string]interface{}{},
				"id":      "test2",
			},
			acceptCodes:       []int{jsonrpc.CodeInvalidRequest, jsonrpc.CodeInvalidParams},
			wrongCodeSeverity: SeverityWarning,
			wrongCodeFormat:   "Wrong error code for missing method: %v",
			acceptedMsg:       "Server accepted request without method",
		},
		{
			name:              "unknown method",
			payload:           jsonrpc.NewRequest("test3", "unknown/method", map[string]interface{}{}),
			acceptCodes:       []int{jsonrpc.CodeMethodNotFound},
			wrongCodeSeverity: SeverityWarning,
			wrongCodeFormat:   "Wrong error code for unknown method: %v",
			acceptedMsg:       "Server accepted unknown method",
		},
		{
			name: "invalid params",
			payload: jsonrpc.NewRequest("test4", "tools/call", map[string]interface{}{
				"arguments": map[string]interface{}{},
			}),
			acceptCodes:       []int{jsonrpc.CodeInvalidParams, jsonrpc.CodeInternalError},
			wrongCodeSeverity: SeverityInfo,
			wrongCodeFormat:   "Unexpected error code for invalid params: %v",
			acceptedMsg:       "Server accepted invalid parameters",
		},
	}
}

func (p *errorHandlingProbe) Run(ctx context.Context, req TestRequest) TestResult {
	ctx, cancel := context.WithTimeout(ctx, req.Config.Timeout())
	defer cancel()

	t := &tally{}
	passed, total, err := p.exchange(ctx, req.ServerURL, t)
	if err != nil {
		t.counters.ErrorsEncountered++
		t.issue(SeverityError, "execution", err.Error())
	}

	if total > 0 {
		score := float64(passed) / float64(total) * 100
		if score < p.passThreshold*100 {
			t.issuef(SeverityWarning, "error_handling",
				"Error handling score: %.1f%% (%d/%d tests passed)", score, passed, total)
		}
	}

	errMsg := ""
	if t.counters.ErrorsEncountered > 0 {
		errMsg = "Error handling test failed"
	}
	return TestResult{
		Success:       t.counters.Initialized && float64(passed) >= float64(total)*p.passThreshold,
		Results:       t.counters,
		Error:         errMsg,
		Issues:        t.issues,
		Compatibility: newCompatibility(staticFeatures(false)),
	}
}

func (p *errorHandlingProbe) exchange(ctx context.Context, serverURL string, t *tally) (passed, total int, err error) {
	c, err := jsonrpc.Dial(ctx, serverURL)
	if err != nil {
		return 0, 0, err
	}
	defer c.Close()

	if err := performHandshake(ctx, c, t); err != nil {
		return 0, 0, err
	}

	for _, tc := range p.cases() {
		total++
		resp, err := c.Call(ctx, tc.payload)
		if err != nil {
			return passed, total, err
		}
		if !resp.OK() {
			continue
		}
		if resp.Message == nil {
			return passed, total, fmt.Errorf("response to %s request is not valid JSON", tc.name)
		}
		t.counters.MessagesExchanged += 2

		if !resp.Message.HasError() {
			t.counters.ErrorsEncountered++
			t.issue(SeverityError, "error_handling", tc.acceptedMsg)
			continue
		}
		if code, ok := resp.Message.ErrorCode(); ok && containsCode(tc.acceptCodes, code) {
			passed++
		} else {
			t.issuef(tc.wrongCodeSeverity, "error_handling", tc.wrongCodeFormat, rawErrorCode(resp.Message))
		}
	}

	passed += p.malformedJSONCase(ctx, c, t)
	total++
	return passed, total, nil
}

// malformedJSONCase sends bytes that are not JSON at all. Returns 1 when
// the server handled it acceptably: a -32700 reply, a bare 400, or closing
// the connection.
func (p *errorHandlingProbe) malformedJSONCase(ctx context.Context, c jsonrpc.Client, t *tally) int {
	resp, err := c.CallRaw(ctx, []byte(`{"jsonrpc": "2.0", "method": "test", invalid json}`))
	if err != nil {
		// Dropping the connection on unparsable input is acceptable.
		return 1
	}
	t.counters.MessagesExchanged++

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		t.issuef(SeverityWarning, "error_handling", "Unexpected status for malformed JSON: %d", resp.StatusCode)
		return 0
	}
	if resp.Message == nil {
		// Non-JSON reply; a 400 still counts as a rejection.
		if resp.StatusCode == http.StatusBadRequest {
			return 1
		}
		return 0
	}
	if !resp.Message.HasError() {
		return 0
	}
	if code, ok := resp.Message.ErrorCode(); ok && code == jsonrpc.CodeParseError {
		return 1
	}
	t.issuef(SeverityWarning, "error_handling", "Wrong error code for parse error: %v", rawErrorCode(resp.Message))
	return 0
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// rawErrorCode returns the error object's code member as the server sent
// it, for reporting codes that are missing or not even numeric.
func rawErrorCode(msg jsonrpc.Message) interface{} {
	errObj, ok := msg["error"].(map[string]interface{})
	if !ok {
		return nil
	}
	return errObj["code"]
}
