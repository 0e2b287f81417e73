package wsbus

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
)

const maxMessageBytes = 1 << 20

// Server upgrades HTTP requests to websockets and bridges their envelopes
// onto a transport.Client.
type Server struct {
	bus      transport.Client
	log      logging.Logger
	upgrader websocket.Upgrader

	// RequestObserver, when set, is called once per handled envelope with
	// its op, latency and outcome.
	RequestObserver func(op string, d time.Duration, err error)
}

// NewServer returns a handler forwarding to bus.
func NewServer(bus transport.Client, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		bus: bus,
		log: log.With(logging.Component("wsbus")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler. Each connection is served until the
// peer disconnects or the request context ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writer := NewSafeWriter(conn)
	defer writer.Close()

	log := s.log.With(logging.String("remote", r.RemoteAddr))
	log.Debug(ctx, "websocket connected")

	go func() {
		<-ctx.Done()
		_ = writer.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug(ctx, "websocket read ended", logging.Err(err))
			}
			return
		}
		switch env.Op {
		case OpPut:
			s.handlePut(ctx, writer, env)
		case OpGet:
			// Gets wait on the command listener; keep reading meanwhile.
			go s.handleGet(ctx, writer, env)
		default:
			s.observe(env.Op, time.Now(), errUnknownOp)
			_ = writer.WriteJSON(Envelope{Op: OpError, ID: env.ID, Error: "unknown op " + env.Op})
		}
	}
}

func (s *Server) handlePut(ctx context.Context, w *SafeWriter, env Envelope) {
	ctx, log := logging.WithRequestLogger(ctx, s.log)
	start := time.Now()
	err := s.bus.Put(ctx, env.Key, env.Payload)
	s.observe(OpPut, start, err)
	if err != nil {
		log.Warn(ctx, "websocket put failed", logging.String("key_expr", env.Key), logging.Err(err))
		_ = w.WriteJSON(Envelope{Op: OpError, ID: env.ID, Key: env.Key, Error: err.Error()})
		return
	}
	_ = w.WriteJSON(Envelope{Op: OpAck, ID: env.ID, Key: env.Key})
}

func (s *Server) handleGet(ctx context.Context, w *SafeWriter, env Envelope) {
	ctx, log := logging.WithRequestLogger(ctx, s.log)
	start := time.Now()
	replies, err := s.bus.Get(ctx, env.Key, env.Payload)
	s.observe(OpGet, start, err)
	if err != nil {
		log.Warn(ctx, "websocket get failed", logging.String("key_expr", env.Key), logging.Err(err))
		_ = w.WriteJSON(Envelope{Op: OpError, ID: env.ID, Key: env.Key, Error: err.Error()})
		return
	}
	if replies == nil {
		replies = [][]byte{}
	}
	_ = w.WriteJSON(Envelope{Op: OpReply, ID: env.ID, Key: env.Key, Payloads: replies})
}

func (s *Server) observe(op string, start time.Time, err error) {
	if s.RequestObserver != nil {
		s.RequestObserver(op, time.Since(start), err)
	}
}
