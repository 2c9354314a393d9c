package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"net/rpc"
	"strings"

	"github.com/alanwang67/userinfo/codec"
)

const (
	ServiceName = "UserService"
	GetUserInfo = ServiceName + ".GetUserInfo"
)

type Connection struct {
	Network string
	Address string
}

func (c Connection) String() string {
	return c.Network + "://" + c.Address
}

// DialContext connects to conn and returns an RPC client speaking the named codec.
func DialContext(ctx context.Context, conn Connection, name codec.Name) (*rpc.Client, error) {
	dialer := net.Dialer{}
	c, err := dialer.DialContext(ctx, conn.Network, conn.Address)
	if err != nil {
		return nil, &ConnectionError{Address: conn.Address, Err: err}
	}
	return rpc.NewClientWithCodec(codec.NewClientCodec(name, c)), nil
}

// Call issues method on c and waits for the reply or for ctx to end.
func Call(ctx context.Context, c *rpc.Client, method string, args, reply any) error {
	call := c.Go(method, args, reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return &CallError{Method: method, Err: ctx.Err()}
	case done := <-call.Done:
		return classify(method, done.Error)
	}
}

// Invoke dials conn, performs a single call and closes the connection.
func Invoke(ctx context.Context, conn Connection, name codec.Name, method string, args, reply any) error {
	c, err := DialContext(ctx, conn, name)
	if err != nil {
		return err
	}
	defer c.Close()

	return Call(ctx, c, method, args, reply)
}

func classify(method string, err error) error {
	if err == nil {
		return nil
	}

	var serverErr rpc.ServerError
	switch {
	case errors.As(err, &serverErr):
		if strings.HasPrefix(string(serverErr), codec.ErrMalformed.Error()) {
			return &MalformedRequestError{Method: method, Reason: string(serverErr)}
		}
		return &CallError{Method: method, Err: err}
	case errors.Is(err, codec.ErrMalformed):
		return &MalformedRequestError{Method: method, Reason: err.Error()}
	case errors.Is(err, rpc.ErrShutdown), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &ConnectionError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectionError{Err: err}
	}
	return &CallError{Method: method, Err: err}
}
