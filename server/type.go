package server

import (
	"net"
	"net/rpc"
	"sync"

	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/pool"
	"github.com/alanwang67/userinfo/protocol"
)

// PlaceholderAge is what every GetUserInfo reply carries. No user data backs
// the service yet, so the age is a stub and not a property of the user.
const PlaceholderAge int32 = 30

// UserService is registered under protocol.ServiceName.
type UserService struct {
	pool *pool.Pool
}

type Server struct {
	Id      uint64
	Self    *protocol.Connection
	Workers int
	Queue   int
	Codec   codec.Name

	rpc  *rpc.Server
	pool *pool.Pool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}
