package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: all requests
	Value []byte `json:"value,omitempty"` // Used for: Write, Create (request), Read (response)

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Create responses (record was created)
	Code uint64 `json:"code,omitempty"` // store.RetCode of a failed operation
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// StoreError converts the error fields of a response back into a *store.Error.
// It returns nil if the message carries no error.
func (m *Message) StoreError() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// withError sets the error fields of msg if err is not nil
func withError(msg *Message, err error) *Message {
	if err != nil {
		msg.Code = uint64(store.CodeOf(err))
		msg.Err = err.Error()
		var se *store.Error
		if errors.As(err, &se) {
			msg.Err = se.Msg
		}
	}
	return msg
}

// NewReadRequest creates a new Read request
func NewReadRequest(key string) *Message {
	return &Message{
		MsgType: MsgTRead,
		Key:     key,
	}
}

// NewReadResponse creates a new Read response
func NewReadResponse(value []byte, err error) *Message {
	return withError(&Message{
		MsgType: MsgTRead,
		Value:   value,
	}, err)
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTWrite,
		Key:     key,
		Value:   value,
	}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(err error) *Message {
	return withError(&Message{MsgType: MsgTWrite}, err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return withError(&Message{MsgType: MsgTDelete}, err)
}

// NewCreateRequest creates a new Create request
func NewCreateRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTCreate,
		Key:     key,
		Value:   value,
	}
}

// NewCreateResponse creates a new Create response
func NewCreateResponse(created bool, err error) *Message {
	return withError(&Message{
		MsgType: MsgTCreate,
		Ok:      created,
	}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTRead:
		return "read"
	case MsgTWrite:
		return "write"
	case MsgTDelete:
		return "delete"
	case MsgTCreate:
		return "create"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "read":
		*t = MsgTRead
	case "write":
		*t = MsgTWrite
	case "delete":
		*t = MsgTDelete
	case "create":
		*t = MsgTCreate
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	case "unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTRead   // Read a record
	MsgTWrite  // Write a record
	MsgTDelete // Delete a record
	MsgTCreate // Write a record only if absent
)
