package grpcbus

import (
	"context"
	"errors"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service bridges incoming Bus RPCs onto a transport.Client, typically the
// in-process Router the command listener is attached to.
type Service struct {
	bus transport.Client
	log logging.Logger
}

var _ BusServer = (*Service)(nil)

// NewService returns a Bus implementation forwarding to bus.
func NewService(bus transport.Client, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{bus: bus, log: log.With(logging.Component("grpcbus"))}
}

// Put implements BusServer.
func (s *Service) Put(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	keyExpr, err := keyExprFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Put(ctx, keyExpr, in.GetValue()); err != nil {
		logging.FromContext(ctx, s.log).Warn(ctx, "bus put failed",
			logging.String("key_expr", keyExpr),
			logging.Err(err),
		)
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Get implements BusServer. It returns the first reply, or NotFound when no
// queryable answered.
func (s *Service) Get(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	keyExpr, err := keyExprFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	payload := in.GetValue()
	if payloadAbsent(ctx) {
		payload = nil
	} else if payload == nil {
		payload = []byte{}
	}

	replies, err := s.bus.Get(ctx, keyExpr, payload)
	if err != nil {
		logging.FromContext(ctx, s.log).Warn(ctx, "bus get failed",
			logging.String("key_expr", keyExpr),
			logging.Err(err),
		)
		return nil, toStatus(err)
	}
	if len(replies) == 0 {
		return nil, status.Errorf(codes.NotFound, "no queryable answered on %s", keyExpr)
	}
	return wrapperspb.Bytes(replies[0]), nil
}

// RequestIDUnaryServerInterceptor ensures a request_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with request_id and method.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, MetadataRequestID); incoming != "" {
				ctx = logging.ContextWithRequestID(ctx, incoming)
			}
		}

		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		return handler(ctx, req)
	}
}

func keyExprFromMetadata(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	keyExpr := firstHeader(md, MetadataKeyExpr)
	if err := transport.ValidateKeyExpr(keyExpr); err != nil {
		return "", status.Errorf(codes.InvalidArgument, "%s metadata: %v", MetadataKeyExpr, err)
	}
	return keyExpr, nil
}

func payloadAbsent(ctx context.Context) bool {
	md, _ := metadata.FromIncomingContext(ctx)
	return firstHeader(md, MetadataPayloadAbsent) == "true"
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, transport.ErrInvalidKeyExpr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, transport.ErrSessionClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
