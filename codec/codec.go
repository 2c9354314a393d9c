package codec

import (
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
)

// Name selects the serialization used on a connection.
type Name string

const (
	Gob   Name = "gob"
	JSON  Name = "json"
	Proto Name = "proto"
)

// ErrMalformed prefixes every error reported for a request body that could not
// be decoded. It travels to the caller as the leading text of the remote error.
var ErrMalformed = errors.New("malformed request")

// Message is implemented by request and reply types carried by the proto codec.
type Message interface {
	AppendWire(b []byte) []byte
	UnmarshalWire(b []byte) error
}

func Parse(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Gob, JSON, Proto:
		return n, nil
	default:
		return "", fmt.Errorf("unknown codec %q (want gob, json or proto)", s)
	}
}

func (n Name) String() string {
	return string(n)
}

func (n Name) MarshalText() ([]byte, error) {
	return []byte(n), nil
}

func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// NewServerCodec wraps conn with the server side of the named codec.
func NewServerCodec(name Name, conn io.ReadWriteCloser) rpc.ServerCodec {
	var c rpc.ServerCodec
	switch name {
	case JSON:
		c = jsonrpc.NewServerCodec(conn)
	case Gob:
		c = newGobServerCodec(conn)
	default:
		c = newProtoServerCodec(conn)
	}
	return &malformedServerCodec{ServerCodec: c}
}

// NewClientCodec wraps conn with the client side of the named codec.
func NewClientCodec(name Name, conn io.ReadWriteCloser) rpc.ClientCodec {
	switch name {
	case JSON:
		return jsonrpc.NewClientCodec(conn)
	case Gob:
		return newGobClientCodec(conn)
	default:
		return newProtoClientCodec(conn)
	}
}

// malformedServerCodec tags body decoding failures with ErrMalformed so the
// caller can tell a bad request apart from a failing handler.
type malformedServerCodec struct {
	rpc.ServerCodec
}

func (c *malformedServerCodec) ReadRequestBody(body any) error {
	err := c.ServerCodec.ReadRequestBody(body)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
