// Package listener feeds command lines arriving on a transport key
// expression into an interpreter.
package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
)

// DefaultKeyExpr is the channel commands are accepted on.
const DefaultKeyExpr = "robot/command"

// Inbound sources, as reported to the Recorder.
const (
	SourceSubscriber = "subscriber"
	SourceQueryable  = "queryable"
)

// ErrSourceClosed is returned when a subscriber or queryable stops
// delivering while the listener is still running.
var ErrSourceClosed = errors.New("inbound source closed")

// Executor runs one command line. The interpreter in package command
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, line string) ([]float32, bool, error)
}

// Recorder counts inbound messages per source.
type Recorder interface {
	IncInbound(source string)
}

// Listener multiplexes notifications and queries on one key expression onto
// an Executor.
type Listener struct {
	keyExpr string
	exec    Executor
	log     logging.Logger
	metrics Recorder
}

// Option customises a Listener.
type Option func(*Listener)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(l *Listener) { l.log = log }
}

// WithRecorder attaches an inbound message counter.
func WithRecorder(r Recorder) Option {
	return func(l *Listener) { l.metrics = r }
}

// New returns a listener for keyExpr. An empty keyExpr selects
// DefaultKeyExpr.
func New(keyExpr string, exec Executor, opts ...Option) *Listener {
	if keyExpr == "" {
		keyExpr = DefaultKeyExpr
	}
	l := &Listener{keyExpr: keyExpr, exec: exec, log: logging.Noop()}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logging.Noop()
	}
	l.log = l.log.With(logging.Component("listener"))
	return l
}

// KeyExpr returns the key expression the listener declares.
func (l *Listener) KeyExpr() string { return l.keyExpr }

// Serve declares a subscriber and a queryable on the key expression and
// handles whichever delivers first until ctx is done. It returns nil on
// cancellation. A closed source, a failed reply or an executor failure
// (for instance a poisoned world) ends Serve with an error.
func (l *Listener) Serve(ctx context.Context, session transport.Session) error {
	sub, err := session.DeclareSubscriber(ctx, l.keyExpr)
	if err != nil {
		return fmt.Errorf("declare subscriber on %s: %w", l.keyExpr, err)
	}
	defer sub.Close()

	qry, err := session.DeclareQueryable(ctx, l.keyExpr)
	if err != nil {
		return fmt.Errorf("declare queryable on %s: %w", l.keyExpr, err)
	}
	defer qry.Close()

	l.log.Info(ctx, "listening for commands", logging.String("key_expr", l.keyExpr))

	samples, queries := sub.Samples(), qry.Queries()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-samples:
			if !ok {
				return l.closed(ctx, SourceSubscriber, sub.Err())
			}
			if err := l.handleSample(ctx, sample); err != nil {
				return l.fatal(ctx, err)
			}
		case query, ok := <-queries:
			if !ok {
				return l.closed(ctx, SourceQueryable, qry.Err())
			}
			if err := l.handleQuery(ctx, query); err != nil {
				return l.fatal(ctx, err)
			}
		}
	}
}

func (l *Listener) closed(ctx context.Context, source string, cause error) error {
	if ctx.Err() != nil {
		return nil
	}
	if cause == nil {
		cause = ErrSourceClosed
	} else {
		cause = fmt.Errorf("%w: %w", ErrSourceClosed, cause)
	}
	return fmt.Errorf("%s on %s: %w", source, l.keyExpr, cause)
}

func (l *Listener) fatal(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) handleSample(ctx context.Context, sample transport.Sample) error {
	ctx, log := logging.WithRequestLogger(ctx, l.log)
	l.count(SourceSubscriber)

	line := l.decode(ctx, log, sample.Payload)
	log.Info(ctx, "received sample",
		logging.String("key_expr", sample.KeyExpr),
		logging.String("payload", line),
	)
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if _, _, err := l.exec.Execute(ctx, line); err != nil {
		return fmt.Errorf("execute sample on %s: %w", sample.KeyExpr, err)
	}
	return nil
}

func (l *Listener) handleQuery(ctx context.Context, query *transport.Query) error {
	ctx, log := logging.WithRequestLogger(ctx, l.log)
	l.count(SourceQueryable)

	var (
		reply   []float32
		execErr error
	)
	payload, present := query.Payload()
	if !present {
		log.Info(ctx, "received query", logging.String("selector", query.Selector()))
	} else {
		line := l.decode(ctx, log, payload)
		log.Info(ctx, "received query",
			logging.String("selector", query.Selector()),
			logging.String("payload", line),
		)
		if strings.TrimSpace(line) != "" {
			if result, ok, err := l.exec.Execute(ctx, line); err != nil {
				execErr = fmt.Errorf("execute query on %s: %w", query.KeyExpr(), err)
			} else if ok {
				reply = result
			}
		}
	}

	log.Info(ctx, "responding",
		logging.String("key_expr", query.KeyExpr()),
		logging.Float32s("reply", reply),
	)
	if err := query.Reply(ctx, transport.EncodeValues(reply)); err != nil {
		return errors.Join(execErr, fmt.Errorf("reply on %s: %w", query.KeyExpr(), err))
	}
	return execErr
}

// decode treats a malformed payload as an empty line.
func (l *Listener) decode(ctx context.Context, log logging.Logger, payload []byte) string {
	line, err := transport.DecodeText(payload)
	if err != nil {
		log.Warn(ctx, "discarding malformed payload", logging.Err(err), logging.Int("bytes", len(payload)))
		return ""
	}
	return line
}

func (l *Listener) count(source string) {
	if l.metrics != nil {
		l.metrics.IncInbound(source)
	}
}
