package grpcbus

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a transport.Client talking to a remote Bus service.
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

var _ transport.Client = (*Client)(nil)

// Dial connects to a Bus server at addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial bus %s: %w", addr, err)
	}
	return &Client{conn: conn, own: true}, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Put implements transport.Client.
func (c *Client) Put(ctx context.Context, keyExpr string, payload []byte) error {
	ctx = outgoing(ctx, keyExpr, false)
	out := new(emptypb.Empty)
	if err := c.conn.Invoke(ctx, putMethod, wrapperspb.Bytes(payload), out); err != nil {
		return fmt.Errorf("bus put %s: %w", keyExpr, err)
	}
	return nil
}

// Get implements transport.Client. The server answers with at most one
// reply; a NotFound status means nobody answered and yields no replies.
func (c *Client) Get(ctx context.Context, keyExpr string, payload []byte) ([][]byte, error) {
	ctx = outgoing(ctx, keyExpr, payload == nil)
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, getMethod, wrapperspb.Bytes(payload), out); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("bus get %s: %w", keyExpr, err)
	}
	return [][]byte{out.GetValue()}, nil
}

// Close releases the connection if the client dialed it.
func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

func outgoing(ctx context.Context, keyExpr string, absent bool) context.Context {
	kv := []string{MetadataKeyExpr, keyExpr}
	if absent {
		kv = append(kv, MetadataPayloadAbsent, "true")
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		kv = append(kv, MetadataRequestID, id)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
