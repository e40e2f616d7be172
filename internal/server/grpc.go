package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/ratelimit"
)

// TraceMethod is the full name of the unary trace RPC. Requests are
// Structs {code, filename?}; replies are the document {filename, code, trace}.
const TraceMethod = "/pywiz.v1.TraceService/Trace"

// Response metadata keys.
const (
	MetaRequestID = "x-request-id"
	MetaOutcome   = "x-pywiz-outcome"
)

// TraceServiceServer is the server API for pywiz.v1.TraceService.
type TraceServiceServer interface {
	Trace(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTraceServiceServer registers srv on s.
func RegisterTraceServiceServer(s grpc.ServiceRegistrar, srv TraceServiceServer) {
	s.RegisterService(&TraceServiceDesc, srv)
}

func traceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TraceServiceServer).Trace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TraceMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TraceServiceServer).Trace(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TraceServiceDesc describes pywiz.v1.TraceService. Messages are
// google.protobuf.Struct, so no generated code is needed.
var TraceServiceDesc = grpc.ServiceDesc{
	ServiceName: "pywiz.v1.TraceService",
	HandlerType: (*TraceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Trace", Handler: traceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pywiz/v1/trace.proto",
}

type traceService struct {
	srv *Server
}

// Trace implements the Trace RPC.
func (t *traceService) Trace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	code, ok := fields["code"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, `missing string field "code"`)
	}

	run, err := t.srv.RunTrace(ctx, Request{
		Transport: "grpc",
		Filename:  fields["filename"].GetStringValue(),
		Code:      code.StringValue,
	})
	grpc.SetHeader(ctx, metadata.Pairs(MetaRequestID, run.RequestID, MetaOutcome, run.Outcome))

	var ce *lang.CompileError
	var ee *budget.ExceededError
	switch {
	case errors.As(err, &ce):
		return nil, status.Error(codes.InvalidArgument, ce.Error())
	case errors.Is(err, ratelimit.ErrLimited):
		return nil, status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &ee):
		if errors.Is(err, budget.ErrCancelled) {
			return nil, status.Error(codes.Canceled, ee.Error())
		}
		return nil, status.Error(codes.ResourceExhausted, ee.Error())
	case err != nil:
		t.srv.log.Errorf("trace %s failed: %v", run.RequestID, err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	out, err := run.Result.ToStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
