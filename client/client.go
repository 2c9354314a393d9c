package client

import (
	"context"
	"fmt"
	"os"

	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/config"
	"github.com/alanwang67/userinfo/protocol"
	"github.com/charmbracelet/log"
)

func New(cfg config.Client) *Client {
	log.Debugf("client %d created", cfg.Id)

	name := cfg.Codec
	if name == "" {
		name = codec.Proto
	}
	return &Client{
		Id:          cfg.Id,
		Server:      &protocol.Connection{Network: cfg.Network, Address: cfg.Address},
		Codec:       name,
		DialTimeout: cfg.DialTimeout.Duration,
		CallTimeout: cfg.CallTimeout.Duration,
		Out:         os.Stdout,
	}
}

// Connect dials the server unless a connection is already open.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.rpc != nil {
		return nil
	}

	if c.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DialTimeout)
		defer cancel()
	}

	rc, err := protocol.DialContext(ctx, *c.Server, c.Codec)
	if err != nil {
		return err
	}
	c.rpc = rc
	log.Debugf("client %d connected to %s", c.Id, c.Server.Address)
	return nil
}

// GetUserInfo asks the server about the user called name. It connects first
// when needed and may be called from several goroutines at once.
func (c *Client) GetUserInfo(ctx context.Context, name string) (*protocol.UserResponse, error) {
	c.mu.Lock()
	err := c.connectLocked(ctx)
	rc := c.rpc
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if c.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CallTimeout)
		defer cancel()
	}

	req := &protocol.UserRequest{Name: name}
	reply := &protocol.UserResponse{}
	if err := protocol.Call(ctx, rc, protocol.GetUserInfo, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}

// Start performs a single GetUserInfo call for name and prints the reply.
func (c *Client) Start(ctx context.Context, name string) error {
	log.Debugf("starting client %d", c.Id)
	defer c.Close()

	reply, err := c.GetUserInfo(ctx, name)
	if err != nil {
		return err
	}
	log.Debugf("client %d received a reply from %s", c.Id, c.Server.Address)

	_, err = fmt.Fprintf(c.Out, "Name: %s, Age: %d\n", reply.Name, reply.Age)
	return err
}
