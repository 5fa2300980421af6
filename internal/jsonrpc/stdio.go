package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
)

// StdioClient spawns a server process and exchanges newline-delimited
// JSON-RPC messages over its stdin/stdout pipes.
type StdioClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
}

// StartStdioClient launches the server command (everything after the
// stdio:// prefix, whitespace-separated) and wires up its pipes.
func StartStdioClient(ctx context.Context, command string) (*StdioClient, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty stdio server command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting stdio server %q: %w", parts[0], err)
	}

	return &StdioClient{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
	}, nil
}

// newPipeClient wires a client directly to a reader/writer pair. Tests use
// this to exercise the line protocol without spawning a process.
func newPipeClient(out io.WriteCloser, in io.Reader) *StdioClient {
	return &StdioClient{
		stdin:  out,
		reader: bufio.NewReader(in),
	}
}

func (c *StdioClient) Call(ctx context.Context, msg Message) (*Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.CallRaw(ctx, body)
}

func (c *StdioClient) CallRaw(ctx context.Context, body []byte) (*Response, error) {
	line := make([]byte, 0, len(body)+1)
	line = append(line, body...)
	line = append(line, '\n')
	if _, err := c.stdin.Write(line); err != nil {
		return nil, fmt.Errorf("writing to stdio server: %w", err)
	}

	type readResult struct {
		data []byte
		err  error
	}
	// Pipe reads take no deadline; bound them with a goroutine and the
	// context. An abandoned read is harmless because the client is closed
	// after a timeout.
	readCh := make(chan readResult, 1)
	go func() {
		data, err := c.reader.ReadBytes('\n')
		readCh <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rr := <-readCh:
		if rr.err != nil {
			return nil, fmt.Errorf("reading from stdio server: %w", rr.err)
		}
		out := &Response{StatusCode: http.StatusOK}
		var msg Message
		if json.Unmarshal(rr.data, &msg) == nil {
			out.Message = msg
		}
		return out, nil
	}
}

// Close shuts the pipes and reaps the child process.
func (c *StdioClient) Close() error {
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	c.cmd.Process.Kill()
	return c.cmd.Wait()
}
