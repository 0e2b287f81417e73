package grpcbus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func startBus(t *testing.T) (*transport.Router, *Client) {
	t.Helper()
	router := transport.NewRouter()

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(RequestIDUnaryServerInterceptor(logging.Noop())))
	RegisterBusServer(server, NewService(router, logging.Noop()))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = server.Serve(lis) }()

	client, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		server.Stop()
		_ = router.Close()
	})
	return router, client
}

func TestPutReachesSubscriber(t *testing.T) {
	router, client := startBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := router.DeclareSubscriber(ctx, "robot/command")
	if err != nil {
		t.Fatalf("DeclareSubscriber: %v", err)
	}
	payload := transport.EncodeText("1 2 3 ADD_FORCE_TO_BALL")
	if err := client.Put(ctx, "robot/command", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	select {
	case s := <-sub.Samples():
		text, err := transport.DecodeText(s.Payload)
		if err != nil || text != "1 2 3 ADD_FORCE_TO_BALL" {
			t.Fatalf("sample text = %q, %v", text, err)
		}
	case <-ctx.Done():
		t.Fatalf("sample not delivered")
	}
}

func TestGetRoundTripAndAbsentPayload(t *testing.T) {
	router, client := startBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q, err := router.DeclareQueryable(ctx, "robot/command")
	if err != nil {
		t.Fatalf("DeclareQueryable: %v", err)
	}
	go func() {
		for query := range q.Queries() {
			if _, ok := query.Payload(); !ok {
				_ = query.Reply(ctx, transport.EncodeValues(nil))
				continue
			}
			_ = query.Reply(ctx, transport.EncodeValues([]float32{4, 5}))
		}
	}()

	replies, err := client.Get(ctx, "robot/command", transport.EncodeText("POSE"))
	if err != nil || len(replies) != 1 {
		t.Fatalf("Get = %v, %v; want one reply", replies, err)
	}
	vals, err := transport.DecodeValues(replies[0])
	if err != nil || len(vals) != 2 || vals[0] != 4 || vals[1] != 5 {
		t.Fatalf("reply values = %v, %v; want [4 5]", vals, err)
	}

	replies, err = client.Get(ctx, "robot/command", nil)
	if err != nil || len(replies) != 1 {
		t.Fatalf("Get(nil) = %v, %v; want one reply", replies, err)
	}
	if vals, err := transport.DecodeValues(replies[0]); err != nil || len(vals) != 0 {
		t.Fatalf("absent-payload reply = %v, %v; want empty sequence", vals, err)
	}
}

func TestGetWithoutQueryableReturnsNoReplies(t *testing.T) {
	_, client := startBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replies, err := client.Get(ctx, "nobody/listening", nil)
	if err != nil || len(replies) != 0 {
		t.Fatalf("Get = %v, %v; want no replies and no error", replies, err)
	}
}

func TestInvalidKeyExprIsRejected(t *testing.T) {
	_, client := startBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Put(ctx, "bad//key", nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Put err = %v, want InvalidArgument", err)
	}
}
