package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Ajit127639/VideoCall/internal/signaling"
)

type inbound struct {
	client *Client
	raw    []byte
}

// Hub owns every room and client. All state is touched only from Run.
type Hub struct {
	rooms map[string]*Room

	registerCh   chan *Client
	unregisterCh chan *Client
	inboundCh    chan inbound
	stopped      chan struct{}
}

// NewHub creates a Hub. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		rooms:        make(map[string]*Room),
		registerCh:   make(chan *Client),
		unregisterCh: make(chan *Client),
		inboundCh:    make(chan inbound),
		stopped:      make(chan struct{}),
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.stopped:
	}
}

func (h *Hub) submit(c *Client, raw []byte) bool {
	select {
	case h.inboundCh <- inbound{client: c, raw: raw}:
		return true
	case <-h.stopped:
		return false
	}
}

// Run processes hub events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for _, m := range room.Members {
					h.closeClient(m)
				}
			}
			return

		case c := <-h.registerCh:
			slog.Debug("relay client registered", "remote", c.conn.RemoteAddr().String())

		case c := <-h.unregisterCh:
			slog.Debug("relay client unregistered", "remote", c.conn.RemoteAddr().String())
			h.leave(c)
			h.closeClient(c)

		case in := <-h.inboundCh:
			h.handle(in.client, in.raw)
		}
	}
}

func (h *Hub) handle(c *Client, raw []byte) {
	msg, err := signaling.Parse(raw)
	if err != nil {
		slog.Info("relay rejected message", "remote", c.conn.RemoteAddr().String(), "error", err)
		h.sendError(c, "malformed message")
		return
	}

	switch msg.Type {
	case signaling.TypeJoin:
		h.join(c, msg.Room, msg.SessionID)

	case signaling.TypeLeave:
		if c.room == msg.Room {
			h.leave(c)
		}

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
		h.forward(c, msg, raw)

	default:
		slog.Info("relay ignoring message type", "type", msg.Type)
		h.sendError(c, "unsupported message type "+msg.Type)
	}
}

// join adds c to roomID. Each member is told the other's sid, so the pair
// can agree on one offerer without racing.
func (h *Hub) join(c *Client, roomID, sid string) {
	if c.room == roomID {
		return
	}
	if c.room != "" {
		h.leave(c)
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID}
		h.rooms[roomID] = room
	}
	if room.full() {
		slog.Info("relay room full", "room", roomID)
		h.sendError(c, "room is full")
		return
	}

	room.Members = append(room.Members, c)
	c.room, c.sid = roomID, sid
	slog.Info("relay client joined", "room", roomID, "members", len(room.Members))

	for _, other := range room.others(c) {
		h.sendTo(other, userJoined(roomID, c.sid))
		h.sendTo(c, userJoined(roomID, other.sid))
	}
}

func userJoined(roomID, sid string) *signaling.Message {
	return &signaling.Message{
		Type:    signaling.TypeUserJoined,
		Room:    roomID,
		Payload: signaling.Payload{SessionID: sid},
	}
}

func (h *Hub) leave(c *Client) {
	if c.room == "" {
		return
	}
	roomID := c.room
	c.room = ""

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	room.remove(c)
	if len(room.Members) == 0 {
		delete(h.rooms, roomID)
		slog.Info("relay room deleted", "room", roomID)
		return
	}
	for _, other := range room.Members {
		h.sendTo(other, &signaling.Message{Type: signaling.TypePeerLeft, Room: roomID})
	}
}

// forward relays the original frame to the other members of the room.
func (h *Hub) forward(c *Client, msg *signaling.Message, raw []byte) {
	room, ok := h.rooms[msg.Room]
	if !ok || !room.has(c) {
		h.sendError(c, "you must join a room first")
		return
	}
	others := room.others(c)
	if len(others) == 0 {
		slog.Debug("relay signal with no peer", "room", msg.Room, "type", msg.Type)
		return
	}
	for _, other := range others {
		h.enqueue(other, raw)
	}
}

func (h *Hub) sendError(c *Client, text string) {
	h.sendTo(c, &signaling.Message{Type: signaling.TypeError, Error: text})
}

func (h *Hub) sendTo(c *Client, msg *signaling.Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		slog.Error("relay encode failed", "type", msg.Type, "error", err)
		return
	}
	h.enqueue(c, frame)
}

// enqueue never blocks the hub; a client that cannot keep up is dropped.
func (h *Hub) enqueue(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		slog.Warn("relay client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		h.leave(c)
		h.closeClient(c)
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
