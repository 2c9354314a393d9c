package client

import (
	"io"
	"net/rpc"
	"sync"
	"time"

	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/protocol"
)

type Client struct {
	Id          uint64
	Server      *protocol.Connection
	Codec       codec.Name
	DialTimeout time.Duration // zero means no limit
	CallTimeout time.Duration // zero means no limit
	Out         io.Writer     // where Start prints the reply

	mu  sync.Mutex
	rpc *rpc.Client
}
