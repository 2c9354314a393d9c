package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"

	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/config"
	"github.com/alanwang67/userinfo/pool"
	"github.com/alanwang67/userinfo/protocol"
	"github.com/charmbracelet/log"
)

func New(cfg config.Server) (*Server, error) {
	p := pool.New(cfg.Workers, cfg.QueueSize)

	r := rpc.NewServer()
	if err := r.RegisterName(protocol.ServiceName, &UserService{pool: p}); err != nil {
		p.Close()
		return nil, fmt.Errorf("registering %s: %w", protocol.ServiceName, err)
	}

	name := cfg.Codec
	if name == "" {
		name = codec.Proto
	}

	return &Server{
		Id:      cfg.Id,
		Self:    &protocol.Connection{Network: cfg.Network, Address: cfg.Address},
		Workers: p.Workers(),
		Queue:   cfg.QueueSize,
		Codec:   name,
		rpc:     r,
		pool:    p,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// HandleGetUserInfo builds the reply for req. The name is echoed unchanged.
func HandleGetUserInfo(req protocol.UserRequest) protocol.UserResponse {
	return protocol.UserResponse{Name: req.Name, Age: PlaceholderAge}
}

// GetUserInfo runs HandleGetUserInfo on the worker pool.
func (u *UserService) GetUserInfo(req *protocol.UserRequest, reply *protocol.UserResponse) error {
	return u.pool.Do(context.Background(), func() error {
		*reply = HandleGetUserInfo(*req)
		return nil
	})
}

// Listen binds the server's endpoint. Start calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	l, err := net.Listen(s.Self.Network, s.Self.Address)
	if err != nil {
		return err
	}
	s.listener = l
	log.Debugf("server %d listening on %s", s.Id, l.Addr())
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Debugf("starting server %d with %d workers (%s codec)", s.Id, s.Workers, s.Codec)

	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the bound listener until ctx is cancelled,
// then closes open connections, waits for in-flight calls and stops the pool.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("server: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() {
		l.Close()
	})
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Errorf("server %d accept error: %v", s.Id, err)
			continue
		}
		s.track(conn)
		go s.serveConn(conn)
	}

	s.shutdown()
	return nil
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[conn] = struct{}{}
	s.wg.Add(1)
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log.Debugf("server %d accepted connection from %s", s.Id, conn.RemoteAddr())
	s.rpc.ServeCodec(codec.NewServerCodec(s.Codec, conn))
	log.Debugf("server %d closed connection from %s", s.Id, conn.RemoteAddr())
}

func (s *Server) shutdown() {
	log.Debugf("server %d shutting down", s.Id)

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Close()
	log.Debugf("server %d stopped", s.Id)
}
