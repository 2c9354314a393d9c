package protocol

import (
	"fmt"

	"github.com/alanwang67/userinfo/codec"
)

// ConnectionError reports that the server could not be reached or the
// connection to it was lost.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CallError reports that a call reached the server but did not produce a reply.
type CallError struct {
	Method string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s failed: %v", e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// MalformedRequestError reports a request the server could not decode.
type MalformedRequestError struct {
	Method string
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("call %s rejected: %s", e.Method, e.Reason)
}

func (e *MalformedRequestError) Unwrap() error {
	return codec.ErrMalformed
}
