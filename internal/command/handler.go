// Package command implements the local control plane: a JSON-RPC 2.0
// server over a Unix domain socket, plus the client the CLI uses.
package command

import (
	"context"
	"encoding/json"
	"fmt"

	"firestige.xyz/asio/internal/log"
)

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal error
)

// DaemonStatus is the result payload of daemon_status.
type DaemonStatus struct {
	Version         string `json:"version" mapstructure:"version"`
	PID             int    `json:"pid" mapstructure:"pid"`
	UptimeSec       int64  `json:"uptime_sec" mapstructure:"uptime_sec"`
	Listen          string `json:"listen" mapstructure:"listen"`
	Family          string `json:"family" mapstructure:"family"`
	DestinationInfo bool   `json:"destination_info" mapstructure:"destination_info"`
	Unbounded       bool   `json:"unbounded" mapstructure:"unbounded"`
	Remaining       uint64 `json:"remaining" mapstructure:"remaining"`
}

// EchoStats is the result payload of daemon_stats. It mirrors the echo
// server counters; the daemon fills it from a snapshot.
type EchoStats struct {
	Received       uint64 `json:"received" mapstructure:"received"`
	Replied        uint64 `json:"replied" mapstructure:"replied"`
	ReplyErrors    uint64 `json:"reply_errors" mapstructure:"reply_errors"`
	AbsentInfo     uint64 `json:"absent_info" mapstructure:"absent_info"`
	FamilyMismatch uint64 `json:"family_mismatch" mapstructure:"family_mismatch"`
	Anomalies      uint64 `json:"ancillary_anomalies" mapstructure:"ancillary_anomalies"`
	Truncated      uint64 `json:"truncated" mapstructure:"truncated"`
}

// Handler processes control plane commands. The daemon registers the
// callbacks; unregistered ones answer with an internal error so a half
// wired daemon is visible instead of silent.
type Handler struct {
	lg log.Logger

	statusFunc   func() DaemonStatus
	statsFunc    func() EchoStats
	shutdownFunc func()
}

// NewHandler creates a command handler.
func NewHandler(lg log.Logger) *Handler {
	return &Handler{lg: lg}
}

// SetStatusFunc registers the daemon_status provider.
func (h *Handler) SetStatusFunc(fn func() DaemonStatus) { h.statusFunc = fn }

// SetStatsFunc registers the daemon_stats provider.
func (h *Handler) SetStatsFunc(fn func() EchoStats) { h.statsFunc = fn }

// SetShutdownFunc registers the callback invoked by daemon_shutdown.
func (h *Handler) SetShutdownFunc(fn func()) { h.shutdownFunc = fn }

// Handle processes a command and returns a response.
func (h *Handler) Handle(_ context.Context, cmd Command) Response {
	h.lg.WithField("method", cmd.Method).Debug("handling command")

	switch cmd.Method {
	case "ping":
		return Response{
			ID:     cmd.ID,
			Result: map[string]interface{}{"status": "ok"},
		}
	case "daemon_status":
		return h.handleDaemonStatus(cmd)
	case "daemon_stats":
		return h.handleDaemonStats(cmd)
	case "daemon_shutdown":
		return h.handleDaemonShutdown(cmd)
	default:
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method %q not found", cmd.Method),
			},
		}
	}
}

func (h *Handler) handleDaemonStatus(cmd Command) Response {
	if h.statusFunc == nil {
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeInternalError,
				Message: "status provider not registered",
			},
		}
	}
	return Response{ID: cmd.ID, Result: h.statusFunc()}
}

func (h *Handler) handleDaemonStats(cmd Command) Response {
	if h.statsFunc == nil {
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeInternalError,
				Message: "stats provider not registered",
			},
		}
	}
	return Response{ID: cmd.ID, Result: h.statsFunc()}
}

func (h *Handler) handleDaemonShutdown(cmd Command) Response {
	if h.shutdownFunc == nil {
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeInternalError,
				Message: "shutdown handler not registered",
			},
		}
	}

	h.lg.Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first

	return Response{
		ID:     cmd.ID,
		Result: map[string]interface{}{"status": "shutting_down"},
	}
}
