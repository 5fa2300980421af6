package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mcpvet/internal/config"
	"mcpvet/internal/probe"
)

func TestNewProbeCmd(t *testing.T) {
	// Test probe command creation
	probeCmd := newProbeCmd()

	if probeCmd.Use != "probe [server-url] [test-type]" {
		t.Errorf("Expected Use to be 'probe [server-url] [test-type]', got %s", probeCmd.Use)
	}

	if probeCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if probeCmd.RunE == nil {
		t.Error("Expected RunE function to be set")
	}

	// Test flag defaults
	expectedDefaults := map[string]string{
		"json":      "false",
		"timeout":   "30",
		"transport": "http",
		"verbose":   "false",
	}
	for name, def := range expectedDefaults {
		flag := probeCmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("Expected flag --%s to be registered", name)
			continue
		}
		if flag.DefValue != def {
			t.Errorf("Expected flag --%s default %s, got %s", name, def, flag.DefValue)
		}
	}
}

func TestProbeMissingArguments(t *testing.T) {
	probeCmd := newProbeCmd()
	probeCmd.SetOut(&bytes.Buffer{})
	probeCmd.SetErr(&bytes.Buffer{})
	probeCmd.SetArgs([]string{"http://localhost:8080"})

	err := probeCmd.Execute()
	if err == nil {
		t.Fatal("Expected error for missing test type argument")
	}

	if !strings.Contains(err.Error(), "requires <server-url> and <test-type>") {
		t.Errorf("Expected argument error, got: %s", err.Error())
	}
}

func TestProbeInvalidJSONInput(t *testing.T) {
	probeCmd := newProbeCmd()
	var out bytes.Buffer
	probeCmd.SetOut(&out)
	probeCmd.SetErr(&bytes.Buffer{})
	probeCmd.SetIn(strings.NewReader("{this is not json"))
	probeCmd.SetArgs([]string{"--json"})

	err := probeCmd.Execute()
	if err == nil {
		t.Fatal("Expected error for malformed request document")
	}

	// Even the failure gets a parseable document on stdout. Cobra appends
	// usage text after it, so only the first line is the document.
	firstLine := strings.SplitN(out.String(), "\n", 2)[0]
	var doc map[string]interface{}
	if unmarshalErr := json.Unmarshal([]byte(firstLine), &doc); unmarshalErr != nil {
		t.Fatalf("Expected stdout to carry a JSON document, got %q: %v", firstLine, unmarshalErr)
	}

	if success, ok := doc["success"].(bool); !ok || success {
		t.Errorf("Expected success false in error document, got %v", doc["success"])
	}

	errMsg, _ := doc["error"].(string)
	if !strings.Contains(errMsg, "Invalid JSON input:") {
		t.Errorf("Expected error field to start with 'Invalid JSON input:', got %q", errMsg)
	}

	for _, key := range []string{"results", "issues", "compatibility"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("Expected error document to contain %q", key)
		}
	}
}

func TestProbeCLIArgumentsBuildRequest(t *testing.T) {
	original := dispatchProbe
	defer func() { dispatchProbe = original }()

	var got probe.TestRequest
	dispatchProbe = func(ctx context.Context, cfg config.Config, req probe.TestRequest) probe.TestResult {
		got = req
		return probe.TestResult{
			Success: true,
			Results: probe.Counters{Connected: true, Initialized: true, MessagesExchanged: 2},
			Issues:  []probe.Issue{},
		}
	}

	probeCmd := newProbeCmd()
	var out bytes.Buffer
	probeCmd.SetOut(&out)
	probeCmd.SetErr(&bytes.Buffer{})
	probeCmd.SetArgs([]string{"http://localhost:8080", "basic_connection", "--timeout", "5", "--transport", "websocket"})

	err := probeCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing probe command: %v", err)
	}

	if got.ServerURL != "http://localhost:8080" {
		t.Errorf("Expected server URL from arguments, got %s", got.ServerURL)
	}
	if got.TestType != "basic_connection" {
		t.Errorf("Expected test type from arguments, got %s", got.TestType)
	}
	if got.Config.TimeoutSeconds != 5 {
		t.Errorf("Expected timeout 5, got %d", got.Config.TimeoutSeconds)
	}
	if got.Config.Transport != "websocket" {
		t.Errorf("Expected transport websocket, got %s", got.Config.Transport)
	}

	// Without --verbose the document is compact: one line.
	if strings.Count(out.String(), "\n") != 1 {
		t.Errorf("Expected a single-line document, got %q", out.String())
	}
	if !strings.Contains(out.String(), `"success":true`) {
		t.Errorf("Expected result document on stdout, got %q", out.String())
	}
}

func TestProbeJSONRequestFromStdin(t *testing.T) {
	original := dispatchProbe
	defer func() { dispatchProbe = original }()

	var got probe.TestRequest
	dispatchProbe = func(ctx context.Context, cfg config.Config, req probe.TestRequest) probe.TestResult {
		got = req
		return probe.TestResult{Success: false, Error: "connection refused", Issues: []probe.Issue{}}
	}

	probeCmd := newProbeCmd()
	var out bytes.Buffer
	probeCmd.SetOut(&out)
	probeCmd.SetErr(&bytes.Buffer{})
	probeCmd.SetIn(strings.NewReader(`{"server_url":"http://example.com:9000","test_type":"tool_execution","config":{"timeout":10,"transport":"http"}}`))
	probeCmd.SetArgs([]string{"--json"})

	// A probe that ran and failed still exits zero.
	err := probeCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing probe command: %v", err)
	}

	if got.ServerURL != "http://example.com:9000" {
		t.Errorf("Expected server URL from stdin document, got %s", got.ServerURL)
	}
	if got.TestType != "tool_execution" {
		t.Errorf("Expected test type from stdin document, got %s", got.TestType)
	}
	if got.Config.TimeoutSeconds != 10 {
		t.Errorf("Expected timeout 10, got %d", got.Config.TimeoutSeconds)
	}

	if !strings.Contains(out.String(), `"error":"connection refused"`) {
		t.Errorf("Expected failure document on stdout, got %q", out.String())
	}
}

func TestProbeVerbosePrettyPrints(t *testing.T) {
	original := dispatchProbe
	defer func() { dispatchProbe = original }()

	dispatchProbe = func(ctx context.Context, cfg config.Config, req probe.TestRequest) probe.TestResult {
		return probe.TestResult{
			Success: true,
			Results: probe.Counters{Connected: true, Initialized: true},
			Issues:  []probe.Issue{},
		}
	}

	probeCmd := newProbeCmd()
	var out bytes.Buffer
	probeCmd.SetOut(&out)
	probeCmd.SetErr(&bytes.Buffer{})
	probeCmd.SetArgs([]string{"http://localhost:8080", "basic_connection", "--verbose"})

	err := probeCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing probe command: %v", err)
	}

	if !strings.Contains(out.String(), "  \"success\": true") {
		t.Errorf("Expected indented document with --verbose, got %q", out.String())
	}
}
