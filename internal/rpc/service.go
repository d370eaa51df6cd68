// internal/rpc/service.go
package rpc

import (
	"context"
	"errors"
	"fmt"

	"job-dispatch/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified gRPC service name of a worker.
	ServiceName = "transform.v1.Worker"

	// TransformMethod is the full method name of the Transform RPC.
	TransformMethod = "/" + ServiceName + "/Transform"
)

// WorkerServiceDesc describes the worker service. Messages are protobuf
// well-known types, so no generated code is involved.
var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*domain.Transformer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Transform",
			Handler:    transformHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterWorkerServer attaches a Transformer to a gRPC server.
func RegisterWorkerServer(s grpc.ServiceRegistrar, srv domain.Transformer) {
	s.RegisterService(&WorkerServiceDesc, srv)
}

func transformHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return serveTransform(ctx, srv.(domain.Transformer), in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TransformMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return serveTransform(ctx, srv.(domain.Transformer), req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func serveTransform(ctx context.Context, t domain.Transformer, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reply, err := t.Transform(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return EncodeReply(reply), nil
}

// WorkerClient calls the Transform RPC on one worker connection.
type WorkerClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerClient wraps an established connection.
func NewWorkerClient(cc grpc.ClientConnInterface) *WorkerClient {
	return &WorkerClient{cc: cc}
}

// Transform sends req and waits for the reply or ctx expiry.
func (c *WorkerClient) Transform(ctx context.Context, req domain.JobRequest, opts ...grpc.CallOption) (domain.JobReply, error) {
	in, err := EncodeRequest(req)
	if err != nil {
		return domain.JobReply{}, fmt.Errorf("failed to encode job %s: %w", req.JobID, err)
	}
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, TransformMethod, in, out, opts...); err != nil {
		return domain.JobReply{}, err
	}
	return DecodeReply(out), nil
}
