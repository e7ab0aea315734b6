package sdfbslib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/repair_service"
	ps "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

// Client calls a storage server over a Communicator. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	ServerAddr string
	Comm       communication.Communicator
	From       string
}

func NewClient(serverAddr string, comm communication.Communicator) *Client {
	return &Client{ServerAddr: serverAddr, Comm: comm, From: "sdfbslib"}
}

func (c *Client) Upload(ctx context.Context, filename string, data []byte, replicationFactor int) (file_service.UploadResult, error) {
	var res file_service.UploadResult
	err := c.call(ctx, ps.MsgUpload, ps.UploadRequest{
		Filename:          filename,
		Data:              data,
		ReplicationFactor: replicationFactor,
	}, &res)
	return res, err
}

func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.send(ctx, ps.MsgDownload, ps.FileRequest{FileID: fileID})
	if err != nil {
		return nil, err
	}
	if resp.Code != communication.CodeOK {
		return nil, responseError(ps.MsgDownload, resp)
	}
	return resp.Body, nil
}

func (c *Client) Status(ctx context.Context, fileID string) (file_service.FileStatus, error) {
	var status file_service.FileStatus
	err := c.call(ctx, ps.MsgStatus, ps.FileRequest{FileID: fileID}, &status)
	return status, err
}

// Repair returns the report even when some chunks were unrepairable; the
// error then unwraps to a *storage_errors.RepairError.
func (c *Client) Repair(ctx context.Context, fileID string) (repair_service.Report, error) {
	var report repair_service.Report
	err := c.callPartial(ctx, ps.MsgRepair, ps.FileRequest{FileID: fileID}, &report)
	return report, err
}

func (c *Client) RepairAll(ctx context.Context) ([]repair_service.Report, error) {
	var reports []repair_service.Report
	err := c.callPartial(ctx, ps.MsgRepairAll, ps.EmptyRequest{}, &reports)
	return reports, err
}

func (c *Client) ListFiles(ctx context.Context) ([]file_service.FileSummary, error) {
	var files []file_service.FileSummary
	err := c.call(ctx, ps.MsgListFiles, ps.EmptyRequest{}, &files)
	return files, err
}

func (c *Client) Delete(ctx context.Context, fileID string) error {
	return c.call(ctx, ps.MsgDeleteFile, ps.FileRequest{FileID: fileID}, nil)
}

func (c *Client) ListNodes(ctx context.Context) ([]node_registry.NodeRecord, error) {
	var nodes []node_registry.NodeRecord
	err := c.call(ctx, ps.MsgListNodes, ps.EmptyRequest{}, &nodes)
	return nodes, err
}

func (c *Client) MarkNodeFailed(ctx context.Context, nodeID string) error {
	return c.call(ctx, ps.MsgMarkNodeFailed, ps.NodeRequest{NodeID: nodeID}, nil)
}

func (c *Client) Decommission(ctx context.Context, nodeID string) (file_service.DecommissionResult, error) {
	var result file_service.DecommissionResult
	err := c.callPartial(ctx, ps.MsgDecommissionNode, ps.NodeRequest{NodeID: nodeID}, &result)
	return result, err
}

func (c *Client) Heartbeat(ctx context.Context, nodeID string) error {
	return c.call(ctx, ps.MsgHeartbeat, ps.NodeRequest{NodeID: nodeID}, nil)
}

// call decodes an OK body into out. out may be nil.
func (c *Client) call(ctx context.Context, msgType string, payload any, out any) error {
	resp, err := c.send(ctx, msgType, payload)
	if err != nil {
		return err
	}
	if resp.Code != communication.CodeOK {
		return responseError(msgType, resp)
	}
	return decodeBody(msgType, resp.Body, out)
}

// callPartial is call for operations that may answer with a result body and
// the error in the error header.
func (c *Client) callPartial(ctx context.Context, msgType string, payload any, out any) error {
	resp, err := c.send(ctx, msgType, payload)
	if err != nil {
		return err
	}
	if resp.Code == communication.CodeOK {
		return decodeBody(msgType, resp.Body, out)
	}

	header, ok := resp.Headers[ps.ErrorHeader]
	if !ok {
		return responseError(msgType, resp)
	}
	if err := decodeBody(msgType, resp.Body, out); err != nil {
		return err
	}
	var body ps.ErrorBody
	if err := json.Unmarshal([]byte(header), &body); err != nil {
		return fmt.Errorf("%s failed (%s): %s", msgType, resp.Code, header)
	}
	return newRemoteError(msgType, resp.Code, body)
}

func (c *Client) send(ctx context.Context, msgType string, payload any) (*communication.Response, error) {
	if c == nil || c.Comm == nil {
		return nil, errors.New("sdfbs client has no communicator")
	}
	if c.ServerAddr == "" {
		return nil, errors.New("sdfbs server address is empty")
	}

	resp, err := c.Comm.Send(ctx, c.ServerAddr, communication.Message{
		From:    c.From,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", msgType, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s failed: empty response", msgType)
	}
	return resp, nil
}

func decodeBody(op string, body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// RemoteError is a non-OK response. It unwraps to the storage error the
// server reported, so errors.Is and errors.As work across the wire.
type RemoteError struct {
	Op   string
	Code communication.SandCode
	Body ps.ErrorBody
	err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Code, e.Body.Error)
}

func (e *RemoteError) Unwrap() error { return e.err }

func responseError(op string, resp *communication.Response) error {
	var body ps.ErrorBody
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Error == "" {
		msg := strings.TrimSpace(string(resp.Body))
		if msg == "" {
			msg = string(resp.Code)
		}
		body = ps.ErrorBody{Error: msg}
	}
	return newRemoteError(op, resp.Code, body)
}

func newRemoteError(op string, code communication.SandCode, body ps.ErrorBody) *RemoteError {
	return &RemoteError{Op: op, Code: code, Body: body, err: typedError(body)}
}

func typedError(body ps.ErrorBody) error {
	firstChunk := ""
	if len(body.ChunkIDs) > 0 {
		firstChunk = body.ChunkIDs[0]
	}

	switch body.Kind {
	case ps.KindValidation:
		return fmt.Errorf("%s: %w", body.Error, storage_errors.ErrValidation)
	case ps.KindNotFound:
		return fmt.Errorf("%s: %w", body.Error, storage_errors.ErrNotFound)
	case ps.KindAlreadyExists:
		return metadata_service.ErrFileAlreadyExists
	case ps.KindNoActiveNodes:
		return storage_errors.ErrNoActiveNodes
	case ps.KindPlacement:
		return &storage_errors.PlacementError{ChunkID: firstChunk}
	case ps.KindUnavailable:
		return metadata_service.ErrMetadataUnavailable
	case ps.KindMissingChunks:
		return &storage_errors.MissingChunkError{FileID: body.FileID, ChunkIDs: body.ChunkIDs}
	case ps.KindUnrepairable:
		return &storage_errors.RepairError{FileID: body.FileID, ChunkIDs: body.ChunkIDs}
	case ps.KindIntegrity:
		return &storage_errors.IntegrityError{FileID: body.FileID, ChunkID: firstChunk}
	default:
		return nil
	}
}
