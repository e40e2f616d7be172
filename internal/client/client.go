// Package client calls a remote pywiz server over gRPC.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/pywiz/internal/server"
	"github.com/ppiankov/pywiz/internal/tracer"
)

// Client connects to a pywiz gRPC server.
type Client struct {
	conn *grpc.ClientConn
}

// Reply is a remote trace and the metadata the server attached to it.
type Reply struct {
	Result    tracer.Result
	RequestID string
	Outcome   string
}

// New creates a client for addr. No connection is made until the first call.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to trace server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Trace runs code on the server. RPC failures are returned as gRPC status
// errors: InvalidArgument for compile errors, ResourceExhausted or Canceled
// when a limit stopped the trace.
func (c *Client) Trace(ctx context.Context, filename, code string) (*Reply, error) {
	req, err := structpb.NewStruct(map[string]any{"code": code, "filename": filename})
	if err != nil {
		return nil, err
	}

	var header metadata.MD
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, server.TraceMethod, req, out, grpc.Header(&header)); err != nil {
		return nil, err
	}

	res, err := tracer.FromStruct(out)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Result:    res,
		RequestID: first(header.Get(server.MetaRequestID)),
		Outcome:   first(header.Get(server.MetaOutcome)),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
