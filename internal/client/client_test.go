package client

import (
	"context"
	"io"
	"net"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/pywiz/internal/config"
	"github.com/ppiankov/pywiz/internal/logx"
	"github.com/ppiankov/pywiz/internal/server"
	"github.com/ppiankov/pywiz/internal/tracer"
)

// startTestServer creates a server and returns its gRPC address.
func startTestServer(t *testing.T, mutate func(*config.Config)) (string, func()) {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := server.New(server.Options{Config: cfg, Logger: logx.New(io.Discard)})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.ServeGRPC(lis)

	cleanup := func() {
		srv.Stop(context.Background())
		srv.Close()
	}
	return lis.Addr().String(), cleanup
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := New(addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientTrace(t *testing.T) {
	addr, cleanup := startTestServer(t, nil)
	defer cleanup()

	reply, err := dial(t, addr).Trace(context.Background(), "", "x = 1\nprint(x)\n")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if reply.Result.Filename != tracer.DefaultFilename {
		t.Errorf("expected default filename, got %q", reply.Result.Filename)
	}
	if len(reply.Result.Trace) == 0 {
		t.Fatal("expected events")
	}
	last := reply.Result.Trace[len(reply.Result.Trace)-1]
	if last.Out != "1\n" {
		t.Errorf("expected output on last event, got %q", last.Out)
	}
	if reply.RequestID == "" || reply.Outcome != "ok" {
		t.Errorf("expected request metadata, got %q %q", reply.RequestID, reply.Outcome)
	}
}

func TestClientTraceCompileError(t *testing.T) {
	addr, cleanup := startTestServer(t, nil)
	defer cleanup()

	_, err := dial(t, addr).Trace(context.Background(), "", "def f(:\n")
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestClientTraceBudget(t *testing.T) {
	addr, cleanup := startTestServer(t, func(c *config.Config) { c.Limits.MaxSteps = 5 })
	defer cleanup()

	_, err := dial(t, addr).Trace(context.Background(), "", "while True:\n    pass\n")
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	_, err = dial(t, addr).Trace(context.Background(), "", "x = 1\n")
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected Unavailable, got %v", err)
	}
}
