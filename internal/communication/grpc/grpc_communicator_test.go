package grpccomm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry/grpcprobe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) *GRPCCommunicator {
	t.Helper()
	server := NewGRPCCommunicator("127.0.0.1:0", log_service.NoOpLogService{})
	server.RegisterPayloadType("echo", reflect.TypeOf(echoRequest{}))
	server.RegisterPayloadType("fail", reflect.TypeOf(echoRequest{}))

	err := server.Start(func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		switch msg.Type {
		case "echo":
			req := msg.Payload.(echoRequest)
			return &communication.Response{
				Code:    communication.CodeOK,
				Body:    []byte(strings.ToUpper(req.Text)),
				Headers: map[string]string{"from": msg.From},
			}, nil
		case "fail":
			return nil, errors.New("boom")
		case "ping":
			return &communication.Response{Code: communication.CodeOK}, nil
		default:
			return nil, nil
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func TestGRPCCommunicator_Send(t *testing.T) {
	server := startServer(t)
	require.NotContains(t, server.Address(), ":0")

	client := NewGRPCCommunicator("", log_service.NoOpLogService{})
	t.Cleanup(func() { _ = client.Stop() })

	tests := []struct {
		name     string
		msg      communication.Message
		wantCode communication.SandCode
		wantBody string
	}{
		{
			name:     "typed payload",
			msg:      communication.Message{From: "cli", Type: "echo", Payload: echoRequest{Text: "hello"}},
			wantCode: communication.CodeOK,
			wantBody: "HELLO",
		},
		{
			name:     "no payload",
			msg:      communication.Message{From: "cli", Type: "ping"},
			wantCode: communication.CodeOK,
		},
		{
			name:     "unregistered payload type",
			msg:      communication.Message{From: "cli", Type: "mystery", Payload: echoRequest{Text: "x"}},
			wantCode: communication.CodeBadRequest,
		},
		{
			name:     "handler error",
			msg:      communication.Message{From: "cli", Type: "fail", Payload: echoRequest{}},
			wantCode: communication.CodeInternal,
			wantBody: "boom",
		},
		{
			name:     "nil response",
			msg:      communication.Message{From: "cli", Type: "nothing"},
			wantCode: communication.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			resp, err := client.Send(ctx, server.Address(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, string(resp.Body))
			}
		})
	}
}

func TestGRPCCommunicator_HeadersRoundTrip(t *testing.T) {
	server := startServer(t)
	client := NewGRPCCommunicator("", log_service.NoOpLogService{})
	t.Cleanup(func() { _ = client.Stop() })

	resp, err := client.Send(context.Background(), server.Address(), communication.Message{
		From: "node7", Type: "echo", Payload: echoRequest{Text: "h"},
	})
	require.NoError(t, err)
	assert.Equal(t, "node7", resp.Headers["from"])
}

func TestGRPCCommunicator_HealthService(t *testing.T) {
	server := startServer(t)

	probe := grpcprobe.NewGRPCHealthProbe(ServiceName, 2*time.Second, log_service.NoOpLogService{})
	defer probe.Close()

	node := node_registry.NodeRecord{ID: "node1", Address: server.Address()}
	assert.True(t, probe.Probe(context.Background(), node))

	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())
	assert.False(t, probe.Probe(context.Background(), node))
}

func TestGRPCCommunicator_SendToClosedAddress(t *testing.T) {
	server := startServer(t)
	addr := server.Address()
	require.NoError(t, server.Stop())

	client := NewGRPCCommunicator("", log_service.NoOpLogService{})
	t.Cleanup(func() { _ = client.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Send(ctx, addr, communication.Message{Type: "ping"})
	assert.ErrorIs(t, err, communication.ErrMessageSendFailed)
}

func TestGRPCCommunicator_ListenFailure(t *testing.T) {
	server := startServer(t)

	other := NewGRPCCommunicator(server.Address(), log_service.NoOpLogService{})
	err := other.Start(func(context.Context, communication.Message) (*communication.Response, error) { return nil, nil })
	assert.ErrorIs(t, err, communication.ErrListenFailed)
}
