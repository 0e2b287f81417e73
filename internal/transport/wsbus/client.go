package wsbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/colosseum/internal/transport"
)

var (
	errUnknownOp    = errors.New("unknown op")
	errClientClosed = errors.New("websocket client closed")
)

// Client is a transport.Client over one websocket connection. Requests may
// be issued concurrently; responses are matched by envelope id.
type Client struct {
	conn   *websocket.Conn
	writer *SafeWriter

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Envelope
	err     error
	done    chan struct{}
}

var _ transport.Client = (*Client)(nil)

// Dial connects to a wsbus server, e.g. "ws://127.0.0.1:8081/bus".
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		writer:  NewSafeWriter(conn),
		pending: make(map[uint64]chan Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.pending = make(map[uint64]chan Envelope)
		c.mu.Unlock()
		close(c.done)
	}()
	for {
		var env Envelope
		if err = c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if ok {
			ch <- env
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, env Envelope) (Envelope, error) {
	ch := make(chan Envelope, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Envelope{}, err
	}
	c.nextID++
	env.ID = c.nextID
	c.pending[env.ID] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}

	if err := c.writer.WriteJSON(env); err != nil {
		forget()
		return Envelope{}, fmt.Errorf("write %s: %w", env.Op, err)
	}
	select {
	case resp := <-ch:
		if resp.Op == OpError {
			return resp, fmt.Errorf("%s %s: %s", env.Op, env.Key, resp.Error)
		}
		return resp, nil
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return Envelope{}, fmt.Errorf("%s %s: connection closed: %w", env.Op, env.Key, err)
	case <-ctx.Done():
		forget()
		return Envelope{}, ctx.Err()
	}
}

// Put implements transport.Client and waits for the server's ack.
func (c *Client) Put(ctx context.Context, keyExpr string, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := c.roundTrip(ctx, Envelope{Op: OpPut, Key: keyExpr, Payload: payload})
	return err
}

// Get implements transport.Client. A nil payload is sent as null.
func (c *Client) Get(ctx context.Context, keyExpr string, payload []byte) ([][]byte, error) {
	resp, err := c.roundTrip(ctx, Envelope{Op: OpGet, Key: keyExpr, Payload: payload})
	if err != nil {
		return nil, err
	}
	return resp.Payloads, nil
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = errClientClosed
	}
	c.mu.Unlock()
	_ = c.writer.WriteClose(websocket.CloseNormalClosure, "")
	err := c.writer.Close()
	<-c.done
	return err
}
