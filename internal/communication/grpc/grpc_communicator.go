package grpccomm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCCommunicator struct {
	listenAddress string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	healthServer  *health.Server
	ls            log_service.LogService

	clientLock   sync.RWMutex
	clients      map[string]*grpc.ClientConn
	payloadLock  sync.RWMutex
	payloadTypes map[string]reflect.Type
	stopped      bool
	stopMutex    sync.Mutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		listenAddress: addr,
		ls:            ls,
		clients:       make(map[string]*grpc.ClientConn),
		payloadTypes:  make(map[string]reflect.Type),
	}
}

// Address returns the bound address once started, so ":0" resolves to the
// real port.
func (c *GRPCCommunicator) Address() string {
	return c.listenAddress
}

func (c *GRPCCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloadLock.Lock()
	defer c.payloadLock.Unlock()
	c.payloadTypes[msgType] = payloadType
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", communication.ErrListenFailed, err)
	}
	c.listenAddress = lis.Addr().String()

	c.handler = handler
	c.grpcServer = grpc.NewServer()
	c.grpcServer.RegisterService(&serviceDesc, &grpcServer{comm: c})

	c.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(c.grpcServer, c.healthServer)
	c.healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.healthServer != nil {
		c.healthServer.Shutdown()
	}
	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	c.clientLock.Lock()
	for addr, conn := range c.clients {
		_ = conn.Close()
		delete(c.clients, addr)
	}
	c.clientLock.Unlock()

	c.stopped = true
	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})
	return nil
}

func (c *GRPCCommunicator) conn(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.clientLock.Lock()
	defer c.clientLock.Unlock()
	if conn, ok := c.clients[to]; ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})
	conn, err := grpc.NewClient(to, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c.clients[to] = conn
	return conn, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From},
	})

	conn, err := c.conn(to)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrClientCreateFailed, err)
	}

	req := &wireRequest{From: msg.From, Type: msg.Type}
	if msg.Payload != nil {
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to marshal payload",
				Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
			})
			return nil, fmt.Errorf("%w: %v", communication.ErrPayloadMarshalFailed, err)
		}
		req.Payload = payload
	}

	resp := new(wireResponse)
	if err := conn.Invoke(ctx, sendMethod, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", communication.ErrMessageSendFailed, err)
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": resp.Code},
	})

	return &communication.Response{
		Code:    resp.Code,
		Body:    resp.Body,
		Headers: resp.Headers,
	}, nil
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) SendMessage(ctx context.Context, req *wireRequest) (*wireResponse, error) {
	if s.comm.handler == nil {
		return nil, communication.ErrHandlerNotSet
	}

	msg := communication.Message{
		From: req.From,
		Type: req.Type,
	}

	if len(req.Payload) > 0 {
		s.comm.payloadLock.RLock()
		payloadType, ok := s.comm.payloadTypes[req.Type]
		s.comm.payloadLock.RUnlock()
		if !ok {
			return &wireResponse{
				Code: communication.CodeBadRequest,
				Body: []byte(communication.ErrUnknownPayload.Error() + ": " + req.Type),
			}, nil
		}

		payload := reflect.New(payloadType).Interface()
		if err := json.Unmarshal(req.Payload, payload); err != nil {
			return &wireResponse{
				Code: communication.CodeBadRequest,
				Body: []byte(communication.ErrPayloadUnmarshalFailed.Error() + ": " + err.Error()),
			}, nil
		}
		msg.Payload = reflect.ValueOf(payload).Elem().Interface()
	}

	resp, err := s.comm.handler(ctx, msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": req.Type, "error": err.Error()},
		})
		return &wireResponse{
			Code: communication.CodeInternal,
			Body: []byte(err.Error()),
		}, nil
	}

	if resp == nil {
		return &wireResponse{
			Code: communication.CodeInternal,
			Body: []byte("handler returned nil response"),
		}, nil
	}

	return &wireResponse{
		Code:    resp.Code,
		Body:    resp.Body,
		Headers: resp.Headers,
	}, nil
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
