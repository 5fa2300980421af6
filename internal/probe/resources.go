package probe

import (
	"context"
	"fmt"

	"mcpvet/internal/jsonrpc"
)

// resourceProbe walks the resource surface: list, read the first entry,
// then attempt a subscription to see whether the server supports one.
type resourceProbe struct{}

func (p *resourceProbe) Name() string {
	return TestResourceAccess
}

func (p *resourceProbe) Run(ctx context.Context, req TestRequest) TestResult {
	ctx, cancel := context.WithTimeout(ctx, req.Config.Timeout())
	defer cancel()

	t := &tally{}
	if err := p.exchange(ctx, req.ServerURL, t); err != nil {
		t.counters.ErrorsEncountered++
		t.issue(SeverityError, "execution", err.Error())
	}

	errMsg := ""
	if t.counters.ErrorsEncountered > 0 {
		errMsg = "Resource access test failed"
	}
	return TestResult{
		Success:       t.counters.Initialized && t.counters.ErrorsEncountered == 0,
		Results:       t.counters,
		Error:         errMsg,
		Issues:        t.issues,
		Compatibility: newCompatibility(staticFeatures(false)),
	}
}

func (p *resourceProbe) exchange(ctx context.Context, serverURL string, t *tally) error {
	c, err := jsonrpc.Dial(ctx, serverURL)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := performHandshake(ctx, c, t); err != nil {
		return err
	}

	resp, err := c.Call(ctx, jsonrpc.NewRequest(2, "resources/list", map[string]interface{}{}))
	if err != nil {
		return err
	}

	var resources []interface{}
	if resp.OK() {
		if resp.Message == nil {
			return fmt.Errorf("resources/list response is not valid JSON")
		}
		if found, ok := resourcesFromResponse(resp.Message); ok {
			resources = found
			t.counters.ResourcesAccessible = len(resources)
			t.counters.MessagesExchanged += 2
			if len(resources) == 0 {
				t.issue(SeverityInfo, "resources", "No resources found on server")
			}
		} else {
			t.counters.ErrorsEncountered++
			t.issue(SeverityError, "resources", "Invalid resources/list response format")
		}
	} else {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "resources", "Failed to list resources: HTTP %d", resp.StatusCode)
	}

	if len(resources) == 0 {
		return nil
	}

	first, ok := resources[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("resources/list returned a malformed resource entry")
	}
	uri, _ := first["uri"].(string)

	if err := p.readResource(ctx, c, uri, t); err != nil {
		return err
	}
	return p.subscribeResource(ctx, c, uri, t)
}

func (p *resourceProbe) readResource(ctx context.Context, c jsonrpc.Client, uri string, t *tally) error {
	resp, err := c.Call(ctx, jsonrpc.NewRequest(3, "resources/read", map[string]interface{}{
		"uri": uri,
	}))
	if err != nil {
		return err
	}

	if !resp.OK() {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityError, "resource_access", "Resource read failed: HTTP %d", resp.StatusCode)
		return nil
	}
	if resp.Message == nil {
		return fmt.Errorf("resources/read response is not valid JSON")
	}
	t.counters.MessagesExchanged += 2

	if resp.Message.HasError() {
		t.counters.ErrorsEncountered++
		t.issuef(SeverityWarning, "resource_access", "Resource read error: %s",
			resp.Message.ErrorMessage("Unknown error"))
		return nil
	}

	result, ok := resp.Message.Result()
	if !ok {
		t.counters.ErrorsEncountered++
		t.issue(SeverityError, "resource_access", "Invalid resource read response format")
		return nil
	}
	contents, ok := result["contents"].([]interface{})
	if !ok {
		t.counters.ErrorsEncountered++
		t.issue(SeverityError, "resource_access", "Invalid resource read response format")
		return nil
	}
	if len(contents) > 0 {
		item, ok := contents[0].(map[string]interface{})
		if !ok {
			t.issue(SeverityWarning, "resource_format", "Resource content missing required fields")
			return nil
		}
		_, hasURI := item["uri"]
		_, hasText := item["text"]
		if !hasURI || !hasText {
			t.issue(SeverityWarning, "resource_format", "Resource content missing required fields")
		}
	}
	return nil
}

func (p *resourceProbe) subscribeResource(ctx context.Context, c jsonrpc.Client, uri string, t *tally) error {
	resp, err := c.Call(ctx, jsonrpc.NewRequest(4, "resources/subscribe", map[string]interface{}{
		"uri": uri,
	}))
	if err != nil {
		return err
	}

	// Servers without subscription support commonly reject the method
	// outright; only a well-formed reply is graded.
	if !resp.OK() || resp.Message == nil {
		return nil
	}
	t.counters.MessagesExchanged += 2

	if resp.Message.HasError() {
		if code, ok := resp.Message.ErrorCode(); ok && code == jsonrpc.CodeMethodNotFound {
			t.issue(SeverityInfo, "resource_subscription", "Resource subscription not supported")
		} else {
			t.issuef(SeverityWarning, "resource_subscription", "Subscription error: %s",
				resp.Message.ErrorMessage("Unknown error"))
		}
	}
	return nil
}

func resourcesFromResponse(msg jsonrpc.Message) ([]interface{}, bool) {
	result, ok := msg.Result()
	if !ok {
		return nil, false
	}
	resources, ok := result["resources"].([]interface{})
	return resources, ok
}
