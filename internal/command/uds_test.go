package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"firestige.xyz/asio/internal/log"
)

func testHandler() *Handler {
	h := NewHandler(log.Discard())
	h.SetStatusFunc(func() DaemonStatus {
		return DaemonStatus{
			Version:         "test",
			PID:             1234,
			UptimeSec:       42,
			Listen:          "[::]:4040",
			Family:          "ipv6",
			DestinationInfo: true,
			Unbounded:       true,
		}
	})
	h.SetStatsFunc(func() EchoStats {
		return EchoStats{Received: 10, Replied: 9, ReplyErrors: 1}
	})
	return h
}

func TestUDSServerClient_Integration(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test.sock")

	handler := testHandler()
	server := NewUDSServer(socketPath, handler, log.Discard())

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	client := NewUDSClient(socketPath, 5*time.Second)

	t.Run("ping", func(t *testing.T) {
		if err := client.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("daemon_status", func(t *testing.T) {
		status, err := client.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}

		if status.PID != 1234 {
			t.Errorf("pid = %d, want 1234", status.PID)
		}
		if status.Listen != "[::]:4040" {
			t.Errorf("listen = %q, want [::]:4040", status.Listen)
		}
		if status.Family != "ipv6" {
			t.Errorf("family = %q, want ipv6", status.Family)
		}
		if !status.DestinationInfo {
			t.Error("destination_info = false, want true")
		}
		if !status.Unbounded {
			t.Error("unbounded = false, want true")
		}
	})

	t.Run("daemon_stats", func(t *testing.T) {
		stats, err := client.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		if stats.Received != 10 {
			t.Errorf("received = %d, want 10", stats.Received)
		}
		if stats.Replied != 9 {
			t.Errorf("replied = %d, want 9", stats.Replied)
		}
		if stats.ReplyErrors != 1 {
			t.Errorf("reply_errors = %d, want 1", stats.ReplyErrors)
		}
	})

	t.Run("unknown_method", func(t *testing.T) {
		resp, err := client.Call(context.Background(), "unknown.method", nil)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if resp.Error == nil {
			t.Fatal("expected error for unknown method")
		}

		if resp.Error.Code != ErrCodeMethodNotFound {
			t.Errorf("error code = %d, want %d", resp.Error.Code, ErrCodeMethodNotFound)
		}
	})

	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// Verify socket file is removed
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not removed after server stop")
	}
}

func TestUDSServer_Shutdown(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test-shutdown.sock")

	called := make(chan struct{})
	handler := NewHandler(log.Discard())
	handler.SetShutdownFunc(func() { close(called) })

	server := NewUDSServer(socketPath, handler, log.Discard())
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	client := NewUDSClient(socketPath, 5*time.Second)
	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	// The response is sent before the callback runs
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Error("shutdown callback not invoked")
	}
}

func TestHandler_UnregisteredProviders(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test-unregistered.sock")

	// No callbacks registered at all
	server := NewUDSServer(socketPath, NewHandler(log.Discard()), log.Discard())
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	client := NewUDSClient(socketPath, 5*time.Second)

	if _, err := client.Status(context.Background()); err == nil {
		t.Error("expected error for unregistered status provider")
	}
	if _, err := client.Stats(context.Background()); err == nil {
		t.Error("expected error for unregistered stats provider")
	}
	if err := client.Shutdown(context.Background()); err == nil {
		t.Error("expected error for unregistered shutdown handler")
	}

	// Ping needs nothing registered
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestUDSClient_ConnectionError(t *testing.T) {
	// Try to connect to non-existent socket
	client := NewUDSClient("/tmp/non-existent-socket.sock", 1*time.Second)

	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected connection error")
	}
}

func TestUDSClient_Timeout(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test-timeout.sock")

	server := NewUDSServer(socketPath, testHandler(), log.Discard())
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	// Client with very short timeout
	client := NewUDSClient(socketPath, 1*time.Nanosecond)

	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestUDSServer_MultipleConnections(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "test-multi.sock")

	server := NewUDSServer(socketPath, testHandler(), log.Discard())
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	clients := make([]*UDSClient, 5)
	for i := 0; i < 5; i++ {
		clients[i] = NewUDSClient(socketPath, 5*time.Second)
	}

	// Send requests concurrently
	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func(client *UDSClient) {
			_, err := client.Status(context.Background())
			errCh <- err
		}(clients[i])
	}

	for i := 0; i < 5; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("client %d failed: %v", i, err)
		}
	}
}

func TestNewUDSClient_DefaultTimeout(t *testing.T) {
	client := NewUDSClient("/tmp/test.sock", 0)
	if client.timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", client.timeout)
	}

	client2 := NewUDSClient("/tmp/test.sock", 5*time.Second)
	if client2.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client2.timeout)
	}
}
