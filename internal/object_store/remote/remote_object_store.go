package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	ps "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server"
)

const DefaultTimeout = 5 * time.Second

// RemoteObjectStore is the object store of a node hosted by another sdfbs
// process, reached through a Communicator.
type RemoteObjectStore struct {
	nodeID  string
	addr    string
	comm    communication.Communicator
	timeout time.Duration
	ls      log_service.LogService
}

func NewRemoteObjectStore(nodeID, addr string, comm communication.Communicator, timeout time.Duration, ls log_service.LogService) *RemoteObjectStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteObjectStore{
		nodeID:  nodeID,
		addr:    addr,
		comm:    comm,
		timeout: timeout,
		ls:      ls,
	}
}

func (s *RemoteObjectStore) Put(ctx context.Context, key string, data []byte) (object_store.Handle, error) {
	resp, err := s.send(ctx, ps.MsgPutObject, ps.ObjectRequest{NodeID: s.nodeID, Key: key, Data: data})
	if err != nil {
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}
	if resp.Code != communication.CodeOK {
		return "", s.remoteError(resp, object_store.ErrObjectWriteFailed)
	}

	var out ps.PutObjectResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("%w: decode put response: %v", object_store.ErrObjectWriteFailed, err)
	}
	return out.Handle, nil
}

func (s *RemoteObjectStore) Get(ctx context.Context, handle object_store.Handle) ([]byte, error) {
	resp, err := s.send(ctx, ps.MsgGetObject, ps.ObjectRequest{NodeID: s.nodeID, Handle: handle})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", object_store.ErrObjectReadFailed, err)
	}
	if resp.Code != communication.CodeOK {
		return nil, s.remoteError(resp, object_store.ErrObjectReadFailed)
	}
	return resp.Body, nil
}

// Exists reports false when the peer cannot be asked.
func (s *RemoteObjectStore) Exists(ctx context.Context, handle object_store.Handle) bool {
	resp, err := s.send(ctx, ps.MsgObjectExists, ps.ObjectRequest{NodeID: s.nodeID, Handle: handle})
	if err != nil || resp.Code != communication.CodeOK {
		return false
	}
	var out ps.ObjectExistsResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false
	}
	return out.Exists
}

func (s *RemoteObjectStore) Delete(ctx context.Context, handle object_store.Handle) error {
	resp, err := s.send(ctx, ps.MsgDeleteObject, ps.ObjectRequest{NodeID: s.nodeID, Handle: handle})
	if err != nil {
		return fmt.Errorf("%w: %v", object_store.ErrObjectDeleteFailed, err)
	}
	if resp.Code != communication.CodeOK {
		return s.remoteError(resp, object_store.ErrObjectDeleteFailed)
	}
	return nil
}

func (s *RemoteObjectStore) Health(ctx context.Context) error {
	resp, err := s.send(ctx, ps.MsgObjectHealth, ps.ObjectRequest{NodeID: s.nodeID})
	if err != nil {
		return fmt.Errorf("%w: %v", object_store.ErrStoreUnavailable, err)
	}
	if resp.Code != communication.CodeOK {
		return s.remoteError(resp, object_store.ErrStoreUnavailable)
	}
	return nil
}

func (s *RemoteObjectStore) send(ctx context.Context, msgType string, req ps.ObjectRequest) (*communication.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.comm.Send(ctx, s.addr, communication.Message{
		From:    s.comm.Address(),
		Type:    msgType,
		Payload: req,
	})
	if err != nil {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Remote object request failed",
			Metadata: map[string]any{"nodeID": s.nodeID, "address": s.addr, "type": msgType, "error": err.Error()},
		})
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from %s", s.addr)
	}
	return resp, nil
}

// remoteError maps a non-OK response to the object store error kinds.
func (s *RemoteObjectStore) remoteError(resp *communication.Response, fallback error) error {
	var body ps.ErrorBody
	msg := string(resp.Code)
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.Code {
	case communication.CodeNotFound:
		return fmt.Errorf("%w on %s: %s", object_store.ErrObjectNotFound, s.nodeID, msg)
	case communication.CodeBadRequest:
		return fmt.Errorf("%w: %s", object_store.ErrInvalidKey, msg)
	case communication.CodeUnavailable:
		return fmt.Errorf("%w: %s", object_store.ErrStoreUnavailable, msg)
	default:
		return fmt.Errorf("%w on %s: %s", fallback, s.nodeID, msg)
	}
}

var _ object_store.ObjectStore = (*RemoteObjectStore)(nil)
