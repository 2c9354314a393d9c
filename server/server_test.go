package server

import (
	"context"
	"net/rpc"
	"sync"
	"testing"
	"time"

	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/config"
	"github.com/alanwang67/userinfo/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGetUserInfo(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"ascii name", "Alice"},
		{"empty name", ""},
		{"non-ascii name", "Zoë 山田"},
		{"whitespace name", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := HandleGetUserInfo(protocol.UserRequest{Name: tt.in})
			assert.Equal(t, tt.in, reply.Name, "reply name should echo the request")
			assert.Equal(t, PlaceholderAge, reply.Age)
		})
	}
}

func TestHandleGetUserInfoIdempotent(t *testing.T) {
	req := protocol.UserRequest{Name: "Alice"}

	first := HandleGetUserInfo(req)
	second := HandleGetUserInfo(req)

	assert.Equal(t, first, second, "repeated calls should produce equal replies")
	assert.Equal(t, protocol.UserResponse{Name: "Alice", Age: 30}, first)
}

func TestServerInitialization(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	defer s.pool.Close()

	assert.Equal(t, uint64(0), s.Id)
	assert.Equal(t, 10, s.Workers, "worker pool should have the configured size")
	assert.Equal(t, codec.Proto, s.Codec)
	assert.Nil(t, s.Addr(), "address is unknown before Listen")
}

func TestNewDefaultsCodec(t *testing.T) {
	cfg := testConfig()
	cfg.Codec = ""

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.pool.Close()

	assert.Equal(t, codec.Proto, s.Codec)
}

func TestUserServiceGetUserInfo(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	defer s.pool.Close()

	svc := &UserService{pool: s.pool}
	reply := &protocol.UserResponse{}

	err := svc.GetUserInfo(&protocol.UserRequest{Name: "Alice"}, reply)
	assert.NoError(t, err, "GetUserInfo should not return an error")
	assert.Equal(t, "Alice", reply.Name)
	assert.Equal(t, int32(30), reply.Age)
}

func TestUserServiceAfterPoolClosed(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	require.NoError(t, s.pool.Close())

	svc := &UserService{pool: s.pool}
	err := svc.GetUserInfo(&protocol.UserRequest{Name: "Alice"}, &protocol.UserResponse{})
	assert.Error(t, err, "calls after shutdown should fail")
}

func TestServerStart(t *testing.T) {
	for _, name := range []codec.Name{codec.Proto, codec.Gob, codec.JSON} {
		t.Run(string(name), func(t *testing.T) {
			s := setupTestServer(t, name)
			addr := startTestServer(t, s)

			client, err := protocol.DialContext(context.Background(), protocol.Connection{Network: "tcp", Address: addr}, name)
			require.NoError(t, err, "Should be able to dial the server")
			defer client.Close()

			var reply protocol.UserResponse
			err = client.Call(protocol.GetUserInfo, &protocol.UserRequest{Name: "Alice"}, &reply)
			assert.NoError(t, err, "RPC call to GetUserInfo should not return an error")
			assert.Equal(t, protocol.UserResponse{Name: "Alice", Age: 30}, reply)
		})
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	addr := startTestServer(t, s)

	client, err := protocol.DialContext(context.Background(), protocol.Connection{Network: "tcp", Address: addr}, codec.Proto)
	require.NoError(t, err)
	defer client.Close()

	err = client.Call("UserService.DeleteUser", &protocol.UserRequest{Name: "Alice"}, &protocol.UserResponse{})
	var serverErr rpc.ServerError
	assert.ErrorAs(t, err, &serverErr, "unknown methods should be reported by the server")
}

func TestConcurrentCallsBeyondPoolCapacity(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	addr := startTestServer(t, s)

	client, err := protocol.DialContext(context.Background(), protocol.Connection{Network: "tcp", Address: addr}, codec.Proto)
	require.NoError(t, err)
	defer client.Close()

	calls := s.Workers + 1
	replies := make([]protocol.UserResponse, calls)
	errs := make([]error, calls)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			req := &protocol.UserRequest{Name: string(rune('a' + index))}
			errs[index] = client.Call(protocol.GetUserInfo, req, &replies[index])
		}(i)
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, string(rune('a'+i)), replies[i].Name, "every reply should echo its own request")
		assert.Equal(t, PlaceholderAge, replies[i].Age)
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()

	client, err := protocol.DialContext(context.Background(), protocol.Connection{Network: "tcp", Address: s.Addr().String()}, codec.Proto)
	require.NoError(t, err)
	defer client.Close()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "Serve should return cleanly after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestServeBeforeListen(t *testing.T) {
	s := setupTestServer(t, codec.Proto)
	defer s.pool.Close()

	assert.Error(t, s.Serve(context.Background()))
}

func testConfig() config.Server {
	cfg := config.Default().Server
	cfg.Address = "127.0.0.1:0" // Use port 0 for a free port
	return cfg
}

func setupTestServer(t *testing.T, name codec.Name) *Server {
	t.Helper()

	cfg := testConfig()
	cfg.Codec = name
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func startTestServer(t *testing.T, s *Server) string {
	t.Helper()

	require.NoError(t, s.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Serve(ctx), "Server Serve should not return an error")
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s.Addr().String()
}
