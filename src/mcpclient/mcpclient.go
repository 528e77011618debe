package mcpclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"
)

// ErrTimeout reports that the server did not answer within the configured
// read timeout. The subprocess has already been killed when this is returned.
var ErrTimeout = errors.New("mcp server response timeout")

const protocolVersion = "0.1.0"

// Client is a minimal JSON-RPC 2.0 client for stdio-based MCP servers.
// One client is bound to one spawned process for the duration of a session.
// The transport is strictly request-then-response; ids increase monotonically
// and are never reused. Not safe for concurrent use.
type Client struct {
	command []string
	env     map[string]string
	timeout time.Duration

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	reader    *bufio.Reader
	nextID    int64
	connected bool
}

// rpcRequest is an outbound call that expects a response.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification is an outbound message with no response expected.
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type toolResult struct {
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// New creates an unconnected client. command is the server invocation, env
// holds variables merged over the inherited environment (caller values win),
// timeout bounds every blocking read.
func New(command []string, env map[string]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		command: command,
		env:     env,
		timeout: timeout,
	}
}

// Connect spawns the server process and performs the initialize handshake:
// an initialize request followed by an initialized notification. Any failure
// kills the process and leaves the client unconnected.
func (c *Client) Connect() error {
	if c.connected {
		return fmt.Errorf("mcp client already connected")
	}
	if len(c.command) == 0 {
		return fmt.Errorf("mcp server command is empty")
	}

	cmd := exec.Command(c.command[0], c.command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range c.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open server stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open server stdout: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mcp server %q: %v", c.command[0], err)
	}
	log.Printf("MCP: spawned %v (pid %d)", c.command, cmd.Process.Pid)

	c.cmd = cmd
	c.stdin = stdin
	c.reader = bufio.NewReader(stdout)
	c.connected = true

	if _, err := c.sendRequest("initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "snag", "version": "0.1.0"},
	}); err != nil {
		c.kill()
		return fmt.Errorf("mcp initialize failed: %w", err)
	}
	if err := c.sendNotification("notifications/initialized", nil); err != nil {
		c.kill()
		return fmt.Errorf("mcp initialized notification failed: %w", err)
	}

	log.Printf("MCP: handshake complete")
	return nil
}

// CallTool invokes one tool and returns the concatenated text of all text
// content parts, one per line. A server-reported error is surfaced with its
// message.
func (c *Client) CallTool(name string, arguments map[string]any) (string, error) {
	if !c.connected {
		return "", fmt.Errorf("mcp server not connected")
	}

	result, err := c.sendRequest("tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return "", err
	}

	var tr toolResult
	if err := json.Unmarshal(result, &tr); err != nil {
		return "", fmt.Errorf("invalid tool result: %v", err)
	}

	text := ""
	for _, part := range tr.Content {
		if part.Type != "text" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += part.Text
	}
	return text, nil
}

// Disconnect terminates the server process: graceful signal with a bounded
// wait, then a hard kill. Idempotent; safe without a prior Connect.
func (c *Client) Disconnect() {
	if c.cmd == nil || c.cmd.Process == nil {
		c.connected = false
		return
	}

	_ = c.stdin.Close()
	proc := c.cmd.Process
	_ = proc.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_, _ = c.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("MCP: server did not exit, killing pid %d", proc.Pid)
		_ = proc.Kill()
	}

	c.cmd = nil
	c.connected = false
}

func (c *Client) sendRequest(method string, params any) (json.RawMessage, error) {
	c.nextID++
	if err := c.send(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  method,
		Params:  params,
	}); err != nil {
		return nil, err
	}

	resp, err := c.recv()
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcp error: %s", resp.Error.Message)
	}
	return resp.Result, nil
}

func (c *Client) sendNotification(method string, params any) error {
	return c.send(rpcNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

func (c *Client) send(message any) error {
	if c.stdin == nil {
		return fmt.Errorf("mcp server not connected")
	}
	line, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}
	line = append(line, '\n')
	if _, err := c.stdin.Write(line); err != nil {
		return fmt.Errorf("failed to write to mcp server: %v", err)
	}
	return nil
}

// recv reads one newline-delimited response with a bounded wait. On timeout
// the subprocess is killed so a hung server can never stall the caller.
func (c *Client) recv() (*rpcResponse, error) {
	if c.reader == nil {
		return nil, fmt.Errorf("mcp server not connected")
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := c.reader.ReadBytes('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return nil, fmt.Errorf("mcp server closed connection")
			}
			return nil, fmt.Errorf("read error: %v", r.err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			return nil, fmt.Errorf("invalid JSON from mcp server: %v", err)
		}
		return &resp, nil
	case <-time.After(c.timeout):
		c.kill()
		return nil, fmt.Errorf("%w: no response within %s", ErrTimeout, c.timeout)
	}
}

// kill forcibly terminates the subprocess and marks the client unconnected.
func (c *Client) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		go func(cmd *exec.Cmd) { _, _ = cmd.Process.Wait() }(c.cmd)
	}
	c.cmd = nil
	c.connected = false
}
