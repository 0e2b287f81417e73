package wsbus

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/colosseum/internal/logging"
	"github.com/signalsfoundry/colosseum/internal/transport"
)

func startServer(t *testing.T) (*transport.Router, *Server, string) {
	t.Helper()
	router := transport.NewRouter()
	srv := NewServer(router, logging.Noop())
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		_ = router.Close()
	})
	return router, srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestPutAndGetOverWebsocket(t *testing.T) {
	router, _, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := router.DeclareSubscriber(ctx, "robot/command")
	if err != nil {
		t.Fatalf("DeclareSubscriber: %v", err)
	}
	q, err := router.DeclareQueryable(ctx, "robot/command")
	if err != nil {
		t.Fatalf("DeclareQueryable: %v", err)
	}

	var mu sync.Mutex
	var absent, empty int
	go func() {
		for query := range q.Queries() {
			p, ok := query.Payload()
			mu.Lock()
			switch {
			case !ok:
				absent++
			case len(p) == 0:
				empty++
			}
			mu.Unlock()
			_ = query.Reply(ctx, transport.EncodeValues([]float32{1}))
		}
	}()

	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Put(ctx, "robot/command", transport.EncodeText("TICK")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	select {
	case s := <-sub.Samples():
		if text, _ := transport.DecodeText(s.Payload); text != "TICK" {
			t.Fatalf("sample text = %q", text)
		}
	case <-ctx.Done():
		t.Fatalf("sample not delivered")
	}

	replies, err := client.Get(ctx, "robot/command", nil)
	if err != nil || len(replies) != 1 {
		t.Fatalf("Get(nil) = %v, %v", replies, err)
	}
	if _, err := client.Get(ctx, "robot/command", []byte{}); err != nil {
		t.Fatalf("Get(empty): %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if absent != 1 || empty != 1 {
		t.Fatalf("absent=%d empty=%d, want 1 and 1", absent, empty)
	}
}

func TestConcurrentGetsAreMatchedById(t *testing.T) {
	router, _, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q, err := router.DeclareQueryable(ctx, "echo")
	if err != nil {
		t.Fatalf("DeclareQueryable: %v", err)
	}
	go func() {
		for query := range q.Queries() {
			p, _ := query.Payload()
			_ = query.Reply(ctx, p)
		}
	}()

	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := transport.EncodeValues([]float32{float32(i)})
			replies, err := client.Get(ctx, "echo", want)
			if err != nil || len(replies) != 1 || string(replies[0]) != string(want) {
				t.Errorf("Get %d = %v, %v", i, replies, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestServerReportsErrors(t *testing.T) {
	_, srv, url := startServer(t)
	var mu sync.Mutex
	var ops []string
	srv.RequestObserver = func(op string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			ops = append(ops, op)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	if err := client.Put(ctx, "bad//key", nil); err == nil {
		t.Fatalf("Put with invalid key succeeded")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("raw dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]any{"op": "nope", "id": 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Op != OpError || env.ID != 7 {
		raw, _ := json.Marshal(env)
		t.Fatalf("response = %s, want error for id 7", raw)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ops) != 2 {
		t.Fatalf("observed failures %v, want put and unknown op", ops)
	}
}
