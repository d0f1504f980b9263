package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"firestige.xyz/asio/internal/command"
)

// MockClient implements ControlClient for the command tests.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Status(ctx context.Context) (*command.DaemonStatus, error) {
	args := m.Called(ctx)
	var status *command.DaemonStatus
	if v := args.Get(0); v != nil {
		status = v.(*command.DaemonStatus)
	}
	return status, args.Error(1)
}

func (m *MockClient) Stats(ctx context.Context) (*command.EchoStats, error) {
	args := m.Called(ctx)
	var stats *command.EchoStats
	if v := args.Get(0); v != nil {
		stats = v.(*command.EchoStats)
	}
	return stats, args.Error(1)
}

func (m *MockClient) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestRunStop_Success(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Ping", mock.Anything).Return(nil)
	mockClient.On("Shutdown", mock.Anything).Return(nil)

	var buf bytes.Buffer
	err := runStop(context.Background(), mockClient, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Daemon is shutting down")
	mockClient.AssertExpectations(t)
}

func TestRunStop_DaemonNotRunning(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Ping", mock.Anything).Return(errors.New("connect: no such file or directory"))

	var buf bytes.Buffer
	err := runStop(context.Background(), mockClient, &buf)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
	mockClient.AssertNotCalled(t, "Shutdown", mock.Anything)
	mockClient.AssertExpectations(t)
}

func TestRunStop_ShutdownFails(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Ping", mock.Anything).Return(nil)
	mockClient.On("Shutdown", mock.Anything).Return(errors.New("connection reset"))

	var buf bytes.Buffer
	err := runStop(context.Background(), mockClient, &buf)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop daemon")
	assert.Empty(t, buf.String())
	mockClient.AssertExpectations(t)
}
