package grpcsolver

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/permtrace/solver"
)

// Server exposes a solver.Backend over the Solver gRPC service.
type Server struct {
	UnimplementedSolverServer
	Backend solver.Backend
}

func (s *Server) Solve(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	var facts []string
	for _, line := range strings.Split(in.GetValue(), "\n") {
		if strings.TrimSpace(line) != "" {
			facts = append(facts, line)
		}
	}
	answers, err := s.Backend.Solve(ctx, facts)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(strings.Join(answers, "\n")), nil
}
