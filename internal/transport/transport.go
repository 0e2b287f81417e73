// Package transport defines the pub/sub and query contracts the command
// listener consumes, plus an in-process Router implementing them.
package transport

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyReplied is returned by a second Reply on the same Query.
	ErrAlreadyReplied = errors.New("query already replied")
	// ErrSessionClosed is reported by subscribers and queryables whose
	// session was closed underneath them.
	ErrSessionClosed = errors.New("transport session closed")
	// ErrInvalidKeyExpr is returned for empty or malformed key expressions.
	ErrInvalidKeyExpr = errors.New("invalid key expression")
)

// Sample is a fire-and-forget message published on a key expression.
type Sample struct {
	KeyExpr string
	Payload []byte
}

// Query is a request that must be answered exactly once.
type Query struct {
	keyExpr  string
	selector string
	payload  []byte
	present  bool

	mu      sync.Mutex
	replied bool
	reply   func(ctx context.Context, payload []byte) error
}

// NewQuery builds a query whose answer is delivered through reply. A nil
// payload means the query carries none.
func NewQuery(keyExpr, selector string, payload []byte, reply func(ctx context.Context, payload []byte) error) *Query {
	if selector == "" {
		selector = keyExpr
	}
	return &Query{
		keyExpr:  keyExpr,
		selector: selector,
		payload:  payload,
		present:  payload != nil,
		reply:    reply,
	}
}

func (q *Query) KeyExpr() string { return q.keyExpr }

func (q *Query) Selector() string { return q.selector }

// Payload returns the request body and whether one was sent.
func (q *Query) Payload() ([]byte, bool) { return q.payload, q.present }

// Reply answers the query. Only the first call is delivered.
func (q *Query) Reply(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	if q.replied {
		q.mu.Unlock()
		return ErrAlreadyReplied
	}
	q.replied = true
	q.mu.Unlock()

	if q.reply == nil {
		return nil
	}
	return q.reply(ctx, payload)
}

// Replied reports whether Reply has been called.
func (q *Query) Replied() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.replied
}

// Subscriber streams samples matching its key expression. The channel is
// closed when the subscriber or its session is closed; Err then tells the
// two apart.
type Subscriber interface {
	Samples() <-chan Sample
	Err() error
	Close() error
}

// Queryable streams queries matching its key expression, with the same
// closing behaviour as Subscriber.
type Queryable interface {
	Queries() <-chan *Query
	Err() error
	Close() error
}

// Session declares subscribers and queryables.
type Session interface {
	DeclareSubscriber(ctx context.Context, keyExpr string) (Subscriber, error)
	DeclareQueryable(ctx context.Context, keyExpr string) (Queryable, error)
}

// Client publishes samples and issues queries.
type Client interface {
	Put(ctx context.Context, keyExpr string, payload []byte) error
	// Get sends payload (nil for none) to every matching queryable and
	// returns their replies.
	Get(ctx context.Context, keyExpr string, payload []byte) ([][]byte, error)
	Close() error
}
