package signaling

import (
	"log/slog"
	"sync"
)

// HandlerFunc receives one message of the type it was registered for.
type HandlerFunc func(*Message)

// sender is the write half of Client, split out for tests.
type sender interface {
	SendMessage(*Message) error
}

// Handler routes incoming messages to per-type callbacks and exposes the
// send side with room tagging.
type Handler struct {
	client   sender
	incoming <-chan *Message

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

// NewHandler creates a handler reading from client.
func NewHandler(client *Client) *Handler {
	return newHandler(client, client.Incoming())
}

func newHandler(s sender, incoming <-chan *Message) *Handler {
	return &Handler{
		client:   s,
		incoming: incoming,
		handlers: make(map[string][]HandlerFunc),
	}
}

// OnMessage registers fn for messages of msgType. Handlers for one type run
// in registration order, once per message, in arrival order.
func (h *Handler) OnMessage(msgType string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = append(h.handlers[msgType], fn)
}

// Send tags payload with msgType and room and queues it. Fire-and-forget:
// a nil error only means the message was queued.
func (h *Handler) Send(msgType string, payload Payload, room string) error {
	return h.client.SendMessage(&Message{
		Type:    msgType,
		Room:    room,
		Payload: payload,
	})
}

// Start dispatches messages until the connection ends. All handlers run on
// this goroutine.
func (h *Handler) Start() {
	for msg := range h.incoming {
		h.dispatch(msg)
	}
}

func (h *Handler) dispatch(msg *Message) {
	h.mu.RLock()
	fns := h.handlers[msg.Type]
	h.mu.RUnlock()

	if len(fns) == 0 {
		slog.Debug("no handler for signaling message", "type", msg.Type, "room", msg.Room)
		return
	}
	for _, fn := range fns {
		fn(msg)
	}
}
