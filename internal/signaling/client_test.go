package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ajit127639/VideoCall/internal/dns"
	"github.com/gorilla/websocket"
)

// echoServer reflects every frame back, prefixed by one invalid frame.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTripDropsInvalid(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient(url, dns.NewResolver())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.SendMessage(&Message{Type: TypeJoin, Room: "r1"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case msg := <-c.Incoming():
		if msg.Type != TypeJoin || msg.Room != "r1" {
			t.Fatalf("unexpected echo: %#v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("no echo received")
	}
}

func TestClient_SendAfterCloseFails(t *testing.T) {
	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient(url, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Close()
	c.Close()

	if err := c.SendMessage(&Message{Type: TypeLeave, Room: "r1"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("SendMessage after Close err=%v, want ErrClosed", err)
	}

	select {
	case <-c.Lost():
	case <-time.After(5 * time.Second):
		t.Fatalf("Lost not closed after Close")
	}
}

func TestClient_CloseWithoutConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", nil)
	c.Close()
	if _, ok := <-c.Incoming(); ok {
		t.Fatalf("incoming still open")
	}
}
