package communication

import (
	"context"
	"reflect"
)

type Message struct {
	From    string
	Type    string
	Payload any
}

type SandCode string

const (
	CodeOK                 SandCode = "OK"
	CodeBadRequest         SandCode = "BAD_REQUEST"
	CodeNotFound           SandCode = "NOT_FOUND"
	CodeAlreadyExists      SandCode = "ALREADY_EXISTS"
	CodeUnavailable        SandCode = "UNAVAILABLE"
	CodeFailedPrecondition SandCode = "FAILED_PRECONDITION"
	CodeDataLoss           SandCode = "DATA_LOSS"
	CodeInternal           SandCode = "INTERNAL"
)

type Response struct {
	Code    SandCode          `json:"code"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	// RegisterPayloadType tells the receiving side how to decode the payload
	// of msgType.
	RegisterPayloadType(msgType string, payloadType reflect.Type)
	Address() string
}
