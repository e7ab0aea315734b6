package simple

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	ps "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

type SimpleServer struct {
	comm     communication.Communicator
	fs       file_service.FileService
	registry node_registry.NodeRegistry
	ls       log_service.LogService

	// objects backs the object messages; nil serves none.
	objects object_store.Resolver
}

func NewSimpleServer(
	comm communication.Communicator,
	fs file_service.FileService,
	registry node_registry.NodeRegistry,
	ls log_service.LogService,
) *SimpleServer {
	return &SimpleServer{
		comm:     comm,
		fs:       fs,
		registry: registry,
		ls:       ls,
	}
}

// ServeObjects exposes the given stores to remote peers. Only stores local
// to this process belong here.
func (s *SimpleServer) ServeObjects(stores object_store.Resolver) {
	s.objects = stores
}

func (s *SimpleServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting storage server"})

	// 1. Register Payload Types with Communicator
	s.registerPayloads()

	// 2. Start Communicator with our central handler
	return s.comm.Start(s.HandleMessage)
}

func (s *SimpleServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping storage server"})
	return s.comm.Stop()
}

func (s *SimpleServer) registerPayloads() {
	// File Payloads
	s.comm.RegisterPayloadType(ps.MsgUpload, reflect.TypeOf(ps.UploadRequest{}))
	s.comm.RegisterPayloadType(ps.MsgDownload, reflect.TypeOf(ps.FileRequest{}))
	s.comm.RegisterPayloadType(ps.MsgStatus, reflect.TypeOf(ps.FileRequest{}))
	s.comm.RegisterPayloadType(ps.MsgRepair, reflect.TypeOf(ps.FileRequest{}))
	s.comm.RegisterPayloadType(ps.MsgDeleteFile, reflect.TypeOf(ps.FileRequest{}))
	s.comm.RegisterPayloadType(ps.MsgRepairAll, reflect.TypeOf(ps.EmptyRequest{}))
	s.comm.RegisterPayloadType(ps.MsgListFiles, reflect.TypeOf(ps.EmptyRequest{}))

	// Node Payloads
	s.comm.RegisterPayloadType(ps.MsgListNodes, reflect.TypeOf(ps.EmptyRequest{}))
	s.comm.RegisterPayloadType(ps.MsgMarkNodeFailed, reflect.TypeOf(ps.NodeRequest{}))
	s.comm.RegisterPayloadType(ps.MsgDecommissionNode, reflect.TypeOf(ps.NodeRequest{}))
	s.comm.RegisterPayloadType(ps.MsgHeartbeat, reflect.TypeOf(ps.NodeRequest{}))

	// Object Payloads
	for _, t := range []string{ps.MsgPutObject, ps.MsgGetObject, ps.MsgObjectExists, ps.MsgDeleteObject, ps.MsgObjectHealth} {
		s.comm.RegisterPayloadType(t, reflect.TypeOf(ps.ObjectRequest{}))
	}
}

// HandleMessage is the central router for all incoming messages.
func (s *SimpleServer) HandleMessage(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	switch msg.Type {
	case ps.MsgUpload:
		req, ok := msg.Payload.(ps.UploadRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		res, err := s.fs.Upload(ctx, req.Data, req.Filename, req.ReplicationFactor)
		return s.respond(res, err)

	case ps.MsgDownload:
		req, ok := msg.Payload.(ps.FileRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		data, err := s.fs.Download(ctx, req.FileID)
		if err != nil {
			return s.respond(nil, err)
		}
		return &communication.Response{Code: communication.CodeOK, Body: data}, nil

	case ps.MsgStatus:
		req, ok := msg.Payload.(ps.FileRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		status, err := s.fs.Status(ctx, req.FileID)
		return s.respond(status, err)

	case ps.MsgRepair:
		req, ok := msg.Payload.(ps.FileRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		report, err := s.fs.Repair(ctx, req.FileID)
		if errors.Is(err, storage_errors.ErrUnrepairable) {
			// Report in the body, error in the header.
			return s.respondWithError(report, err)
		}
		return s.respond(report, err)

	case ps.MsgRepairAll:
		reports, err := s.fs.RepairAll(ctx)
		if err != nil {
			return s.respondWithError(reports, err)
		}
		return s.respond(reports, nil)

	case ps.MsgListFiles:
		files, err := s.fs.List(ctx)
		return s.respond(files, err)

	case ps.MsgDeleteFile:
		req, ok := msg.Payload.(ps.FileRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		return s.respond(nil, s.fs.Delete(ctx, req.FileID))

	case ps.MsgListNodes:
		return s.respond(s.fs.Nodes(), nil)

	case ps.MsgMarkNodeFailed:
		req, ok := msg.Payload.(ps.NodeRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		return s.respond(nil, s.fs.MarkNodeFailed(ctx, req.NodeID))

	case ps.MsgDecommissionNode:
		req, ok := msg.Payload.(ps.NodeRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		result, err := s.fs.DecommissionNode(ctx, req.NodeID)
		if err != nil && len(result.AffectedFiles) > 0 {
			return s.respondWithError(result, err)
		}
		return s.respond(result, err)

	case ps.MsgHeartbeat:
		req, ok := msg.Payload.(ps.NodeRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		return s.respond(nil, s.registry.RecordHeartbeat(req.NodeID))

	case ps.MsgPutObject, ps.MsgGetObject, ps.MsgObjectExists, ps.MsgDeleteObject, ps.MsgObjectHealth:
		req, ok := msg.Payload.(ps.ObjectRequest)
		if !ok {
			return s.respond(nil, ps.ErrInvalidPayloadType)
		}
		return s.handleObject(ctx, msg.Type, req)

	default:
		return s.respond(nil, ps.ErrUnknownMessageType)
	}
}

func (s *SimpleServer) handleObject(ctx context.Context, msgType string, req ps.ObjectRequest) (*communication.Response, error) {
	var store object_store.ObjectStore
	if s.objects != nil {
		store, _ = s.objects.StoreFor(req.NodeID)
	}
	if store == nil {
		return s.respond(nil, fmt.Errorf("node %s is not hosted here: %w", req.NodeID, object_store.ErrStoreUnavailable))
	}

	switch msgType {
	case ps.MsgPutObject:
		handle, err := store.Put(ctx, req.Key, req.Data)
		return s.respond(ps.PutObjectResponse{Handle: handle}, err)
	case ps.MsgGetObject:
		data, err := store.Get(ctx, req.Handle)
		if err != nil {
			return s.respond(nil, err)
		}
		return &communication.Response{Code: communication.CodeOK, Body: data}, nil
	case ps.MsgObjectExists:
		return s.respond(ps.ObjectExistsResponse{Exists: store.Exists(ctx, req.Handle)}, nil)
	case ps.MsgDeleteObject:
		return s.respond(nil, store.Delete(ctx, req.Handle))
	default:
		return s.respond(nil, store.Health(ctx))
	}
}

// respond is a helper to standardize JSON responses and error codes
func (s *SimpleServer) respond(data any, err error) (*communication.Response, error) {
	if err != nil {
		body, _ := json.Marshal(ps.NewErrorBody(err))
		return &communication.Response{
			Code: ps.CodeFor(err),
			Body: body,
		}, nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return &communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("failed to marshal response: " + marshalErr.Error()),
		}, nil
	}

	return &communication.Response{
		Code: communication.CodeOK,
		Body: bytes,
	}, nil
}

// respondWithError sends data as the body and the error as JSON in the
// "error" header.
func (s *SimpleServer) respondWithError(data any, err error) (*communication.Response, error) {
	resp, _ := s.respond(data, nil)
	if resp.Code != communication.CodeOK {
		return resp, nil
	}
	errBody, _ := json.Marshal(ps.NewErrorBody(err))
	resp.Code = ps.CodeFor(err)
	resp.Headers = map[string]string{ps.ErrorHeader: string(errBody)}
	return resp, nil
}
