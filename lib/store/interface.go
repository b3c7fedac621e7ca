package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the byte level storage contract the lock engine runs on.
// Every backend stores opaque values under string keys. Failures are
// reported as *Error values so callers can branch on the RetCode.
type IStore interface {
	// Read returns the value stored for key.
	// If no value exists, an *Error with code RetCNotFound is returned.
	Read(ctx context.Context, key string) (value []byte, err error)
	// Write stores value under key, replacing any previous value.
	// A nil error means the write was confirmed by the backend.
	Write(ctx context.Context, key string, value []byte) (err error)
	// Delete removes the value for key.
	// If no value exists, an *Error with code RetCNotFound is returned.
	Delete(ctx context.Context, key string) (err error)
}

// ICreator is implemented by stores that can atomically create a value only
// if the key does not exist yet. Stores that can only offer this in some
// configurations return an *Error with code RetCUnsupportedOperation.
type ICreator interface {
	// Create stores value under key if the key is absent.
	// created is false (and err nil) if the key already existed.
	Create(ctx context.Context, key string, value []byte) (created bool, err error)
}

// ISizer is implemented by stores that can count the records they hold.
type ISizer interface {
	// Size returns the number of stored keys.
	Size() (int, error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NotFound returns the canonical not found error for key.
func NotFound(key string) *Error {
	return NewError(RetCNotFound, fmt.Sprintf("no value for key %q", key))
}

// CodeOf returns the RetCode carried by err.
// Errors that are not (or do not wrap) an *Error map to RetCInternalError, nil maps to RetCSuccess.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err is a RetCNotFound store error.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == RetCNotFound
}

// IsUnsupported reports whether err is a RetCUnsupportedOperation store error.
func IsUnsupported(err error) bool {
	return err != nil && CodeOf(err) == RetCUnsupportedOperation
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: No value exists for the key.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
