// Package grpcsolver exposes a solver.Backend over gRPC so the
// declarative solver can run as a separate daemon.
package grpcsolver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SolverServer is the server API for the Solver gRPC service.
//
// Facts and answers travel as newline-joined strings in protobuf
// well-known wrapper types, so this package does not require a
// protoc/codegen toolchain.
//
// No .proto file is compiled; Solver_ServiceDesc declares the
// service by hand.
type SolverServer interface {
	Solve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// UnimplementedSolverServer can be embedded to have forward compatible implementations.
type UnimplementedSolverServer struct{}

func (UnimplementedSolverServer) Solve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Solve not implemented")
}

// RegisterSolverServer registers the Solver service on a gRPC server.
func RegisterSolverServer(s grpc.ServiceRegistrar, srv SolverServer) {
	s.RegisterService(&Solver_ServiceDesc, srv)
}

// SolverClient is the client API for the Solver gRPC service.
type SolverClient interface {
	Solve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type solverClient struct{ cc grpc.ClientConnInterface }

func NewSolverClient(cc grpc.ClientConnInterface) SolverClient { return &solverClient{cc: cc} }

func (c *solverClient) Solve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, "/xdao.permtrace.solver.v1.Solver/Solve", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Solver_Solve_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/xdao.permtrace.solver.v1.Solver/Solve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SolverServer).Solve(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Solver_ServiceDesc is the grpc.ServiceDesc for the Solver service.
var Solver_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "xdao.permtrace.solver.v1.Solver",
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: _Solver_Solve_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solver.proto",
}
