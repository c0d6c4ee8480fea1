package grpcsolver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/permtrace/solver"
)

func TestGRPCSolver_RoundTrip(t *testing.T) {
	backend := solver.BackendFunc(func(ctx context.Context, facts []string) ([]string, error) {
		if len(facts) != 2 {
			t.Errorf("expected 2 facts, got %d: %v", len(facts), facts)
		}
		return []string{
			`ultimatePermission(eth_0xe1, "act", eth_0xc0, _, _, _, _, 0, [], _).`,
		}, nil
	})

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterSolverServer(srv, &Server{Backend: backend})

	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer cc.Close()

	client := &Client{cc: cc, client: NewSolverClient(cc), Timeout: 2 * time.Second}

	answers, err := client.Solve(context.Background(), []string{
		`addressType(eth_0xe1, eoa).`,
		`permission(eth_0xe1, "act", eth_0xc0, 0, "", "").`,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(answers) != 1 || !strings.HasPrefix(answers[0], "ultimatePermission(") {
		t.Fatalf("answers: %v", answers)
	}
}

func TestGRPCSolver_MissingBackend(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterSolverServer(srv, &Server{})

	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer cc.Close()

	client := &Client{cc: cc, client: NewSolverClient(cc), Timeout: 2 * time.Second}
	if _, err := client.Solve(context.Background(), []string{"f(a)."}); err == nil {
		t.Fatalf("expected error when the server has no backend")
	}
}
