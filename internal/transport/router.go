package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/colosseum/internal/logging"
)

const defaultBuffer = 64

var errPipeClosed = errors.New("pipe closed")

// pipe decouples senders from a consumer channel that may be closed at any
// time. Only the pump goroutine writes to or closes out.
type pipe[T any] struct {
	in   chan T
	out  chan T
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func newPipe[T any](buffer int) *pipe[T] {
	p := &pipe[T]{
		in:   make(chan T, buffer),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *pipe[T]) pump() {
	defer close(p.out)
	for {
		select {
		case <-p.done:
			return
		case v := <-p.in:
			select {
			case p.out <- v:
			case <-p.done:
				return
			}
		}
	}
}

func (p *pipe[T]) send(ctx context.Context, v T) error {
	select {
	case <-p.done:
		return errPipeClosed
	default:
	}
	select {
	case p.in <- v:
		return nil
	case <-p.done:
		return errPipeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipe[T]) close(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *pipe[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Router is an in-process bus. It implements both Session and Client:
// puts reach every subscriber whose key expression intersects the put key,
// and gets fan out to every intersecting queryable.
type Router struct {
	mu         sync.RWMutex
	subs       map[*routerSubscriber]struct{}
	queryables map[*routerQueryable]struct{}
	closed     bool

	buffer int
	log    logging.Logger
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithBuffer sets how many messages a subscriber or queryable may hold
// before senders block.
func WithBuffer(n int) RouterOption {
	return func(r *Router) {
		if n >= 0 {
			r.buffer = n
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) RouterOption {
	return func(r *Router) { r.log = log }
}

// NewRouter returns an open router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subs:       make(map[*routerSubscriber]struct{}),
		queryables: make(map[*routerQueryable]struct{}),
		buffer:     defaultBuffer,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Noop()
	}
	return r
}

type routerSubscriber struct {
	*pipe[Sample]
	keyExpr string
	router  *Router
}

func (s *routerSubscriber) Samples() <-chan Sample { return s.out }

func (s *routerSubscriber) Close() error {
	s.router.remove(s, nil)
	s.close(nil)
	return nil
}

type routerQueryable struct {
	*pipe[*Query]
	keyExpr string
	router  *Router
}

func (q *routerQueryable) Queries() <-chan *Query { return q.out }

func (q *routerQueryable) Close() error {
	q.router.remove(nil, q)
	q.close(nil)
	return nil
}

// DeclareSubscriber implements Session.
func (r *Router) DeclareSubscriber(ctx context.Context, keyExpr string) (Subscriber, error) {
	if err := ValidateKeyExpr(keyExpr); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrSessionClosed
	}
	s := &routerSubscriber{pipe: newPipe[Sample](r.buffer), keyExpr: keyExpr, router: r}
	r.subs[s] = struct{}{}
	r.log.Debug(ctx, "subscriber declared", logging.String("key_expr", keyExpr))
	return s, nil
}

// DeclareQueryable implements Session.
func (r *Router) DeclareQueryable(ctx context.Context, keyExpr string) (Queryable, error) {
	if err := ValidateKeyExpr(keyExpr); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrSessionClosed
	}
	q := &routerQueryable{pipe: newPipe[*Query](r.buffer), keyExpr: keyExpr, router: r}
	r.queryables[q] = struct{}{}
	r.log.Debug(ctx, "queryable declared", logging.String("key_expr", keyExpr))
	return q, nil
}

func (r *Router) remove(s *routerSubscriber, q *routerQueryable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s != nil {
		delete(r.subs, s)
	}
	if q != nil {
		delete(r.queryables, q)
	}
}

// Put implements Client. It blocks while a matching subscriber's buffer is
// full, until ctx is done.
func (r *Router) Put(ctx context.Context, keyExpr string, payload []byte) error {
	if err := ValidateKeyExpr(keyExpr); err != nil {
		return err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrSessionClosed
	}
	var targets []*routerSubscriber
	for s := range r.subs {
		if Intersects(s.keyExpr, keyExpr) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	sample := Sample{KeyExpr: keyExpr, Payload: payload}
	for _, s := range targets {
		if err := s.send(ctx, sample); err != nil && !errors.Is(err, errPipeClosed) {
			return fmt.Errorf("put %s: %w", keyExpr, err)
		}
	}
	return nil
}

// Get implements Client. Replies are returned in no particular order;
// queryables closed before answering contribute nothing.
func (r *Router) Get(ctx context.Context, keyExpr string, payload []byte) ([][]byte, error) {
	if err := ValidateKeyExpr(keyExpr); err != nil {
		return nil, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrSessionClosed
	}
	var targets []*routerQueryable
	for q := range r.queryables {
		if Intersects(q.keyExpr, keyExpr) {
			targets = append(targets, q)
		}
	}
	r.mu.RUnlock()

	type pending struct {
		replies chan []byte
		done    <-chan struct{}
	}
	var waits []pending
	for _, target := range targets {
		replies := make(chan []byte, 1)
		query := NewQuery(target.keyExpr, keyExpr, payload, func(_ context.Context, p []byte) error {
			replies <- p
			return nil
		})
		if err := target.send(ctx, query); err != nil {
			if errors.Is(err, errPipeClosed) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", keyExpr, err)
		}
		waits = append(waits, pending{replies: replies, done: target.done})
	}

	out := make([][]byte, 0, len(waits))
	for _, w := range waits {
		select {
		case p := <-w.replies:
			out = append(out, p)
		case <-w.done:
		case <-ctx.Done():
			return out, fmt.Errorf("get %s: %w", keyExpr, ctx.Err())
		}
	}
	return out, nil
}

// Close closes every declared subscriber and queryable with
// ErrSessionClosed. Further declarations, puts and gets fail.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs, queryables := r.subs, r.queryables
	r.subs = make(map[*routerSubscriber]struct{})
	r.queryables = make(map[*routerQueryable]struct{})
	r.mu.Unlock()

	for s := range subs {
		s.close(ErrSessionClosed)
	}
	for q := range queryables {
		q.close(ErrSessionClosed)
	}
	return nil
}
