package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second // Default timeout
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Call sends a command and waits for response.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	// Create connection with timeout
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	// Use the earlier of the client timeout and the context deadline
	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var jsonrpcResp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &jsonrpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Verify response ID matches (convert both to string for comparison)
	respIDStr := fmt.Sprintf("%v", jsonrpcResp.ID)
	if respIDStr != reqID {
		return nil, fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, respIDStr)
	}

	resp := &Response{
		ID:     respIDStr,
		Result: jsonrpcResp.Result,
		Error:  jsonrpcResp.Error,
	}

	return resp, nil
}

// Ping checks whether the daemon is alive and answering.
func (c *UDSClient) Ping(ctx context.Context) error {
	resp, err := c.Call(ctx, "ping", nil)
	if err != nil {
		return err
	}
	return rpcError(resp.Error)
}

// Status is a convenience method for the daemon_status command.
func (c *UDSClient) Status(ctx context.Context) (*DaemonStatus, error) {
	resp, err := c.Call(ctx, "daemon_status", nil)
	if err != nil {
		return nil, err
	}
	if err := rpcError(resp.Error); err != nil {
		return nil, err
	}

	var status DaemonStatus
	if err := mapstructure.Decode(resp.Result, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status result: %w", err)
	}
	return &status, nil
}

// Stats is a convenience method for the daemon_stats command.
func (c *UDSClient) Stats(ctx context.Context) (*EchoStats, error) {
	resp, err := c.Call(ctx, "daemon_stats", nil)
	if err != nil {
		return nil, err
	}
	if err := rpcError(resp.Error); err != nil {
		return nil, err
	}

	var stats EchoStats
	if err := mapstructure.Decode(resp.Result, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats result: %w", err)
	}
	return &stats, nil
}

// Shutdown is a convenience method for the daemon_shutdown command.
func (c *UDSClient) Shutdown(ctx context.Context) error {
	resp, err := c.Call(ctx, "daemon_shutdown", nil)
	if err != nil {
		return err
	}
	return rpcError(resp.Error)
}

// rpcError converts a response error object into a Go error.
func rpcError(e *ErrorInfo) error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("daemon error %d: %s", e.Code, e.Message)
}
