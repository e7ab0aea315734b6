package grpccomm

import (
	"context"
	"encoding/json"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"google.golang.org/grpc"
)

const (
	ServiceName = "sdfbs.MessageService"
	sendMethod  = "/" + ServiceName + "/Send"
)

type wireRequest struct {
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireResponse struct {
	Code    communication.SandCode `json:"code"`
	Body    []byte                 `json:"body,omitempty"`
	Headers map[string]string      `json:"headers,omitempty"`
}

type messageServer interface {
	SendMessage(ctx context.Context, req *wireRequest) (*wireResponse, error)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wireRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(messageServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(messageServer).SendMessage(ctx, req.(*wireRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*messageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sdfbs/message_service",
}
