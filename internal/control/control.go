// Package control carries in-call control messages (mute state, hangup)
// over a pre-negotiated data channel encoded with msgpack.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/version"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	Label     = "control"
	ChannelID = uint16(0)
)

const (
	TypeHello      = "hello"
	TypeTrackState = "track_state"
	TypeHangup     = "hangup"
)

var ErrNotOpen = errors.New("control channel not open")

// Message is one control frame.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// HelloPayload identifies the client once the channel opens.
type HelloPayload struct {
	Client  string `msgpack:"client"`
	Version string `msgpack:"version"`
}

// TrackStatePayload announces a local mute or unmute.
type TrackStatePayload struct {
	Kind    string `msgpack:"kind"`
	Enabled bool   `msgpack:"enabled"`
}

// NewMessage encodes payload into a Message of type t.
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the payload into v.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// Parse decodes one frame.
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse control message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errors.New("parse control message: missing type")
	}
	return msg, nil
}

type dataChannel interface {
	Send([]byte) error
}

// Channel wraps the control data channel.
type Channel struct {
	dc dataChannel

	mu           sync.RWMutex
	open         bool
	onHello      func(HelloPayload)
	onTrackState func(media.Kind, bool)
	onHangup     func()
}

// Open creates the control channel on pc. Both peers create it with the
// same id, so it appears in the first offer and needs no announcement.
func Open(pc *webrtc.PeerConnection) (*Channel, error) {
	negotiated := true
	ordered := true
	id := ChannelID
	dc, err := pc.CreateDataChannel(Label, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
		Ordered:    &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("create control channel: %w", err)
	}

	c := &Channel{dc: dc}
	dc.OnOpen(func() {
		c.mu.Lock()
		c.open = true
		c.mu.Unlock()
		if err := c.sendHello(); err != nil {
			slog.Debug("control hello not sent", "error", err)
		}
	})
	dc.OnClose(func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
	})
	dc.OnMessage(func(m webrtc.DataChannelMessage) {
		c.handle(m.Data)
	})
	return c, nil
}

func (c *Channel) OnHello(fn func(HelloPayload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHello = fn
}

func (c *Channel) OnTrackState(fn func(kind media.Kind, enabled bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrackState = fn
}

func (c *Channel) OnHangup(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHangup = fn
}

// SendTrackState tells the peer a local track was toggled.
func (c *Channel) SendTrackState(kind media.Kind, enabled bool) error {
	return c.send(TypeTrackState, TrackStatePayload{Kind: string(kind), Enabled: enabled})
}

// SendHangup tells the peer the call is ending.
func (c *Channel) SendHangup() error {
	return c.sendRaw(Message{Type: TypeHangup})
}

func (c *Channel) sendHello() error {
	return c.send(TypeHello, HelloPayload{
		Client:  "videocall-cli",
		Version: strings.TrimPrefix(version.Version, "v"),
	})
}

func (c *Channel) send(t string, payload any) error {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}
	return c.sendRaw(msg)
}

func (c *Channel) sendRaw(msg Message) error {
	c.mu.RLock()
	open := c.open
	c.mu.RUnlock()
	if !open {
		return ErrNotOpen
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return c.dc.Send(data)
}

func (c *Channel) handle(data []byte) {
	msg, err := Parse(data)
	if err != nil {
		slog.Warn("dropping control message", "error", err)
		return
	}

	c.mu.RLock()
	onHello, onTrackState, onHangup := c.onHello, c.onTrackState, c.onHangup
	c.mu.RUnlock()

	switch msg.Type {
	case TypeHello:
		var p HelloPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad hello payload", "error", err)
			return
		}
		if onHello != nil {
			onHello(p)
		}
	case TypeTrackState:
		var p TrackStatePayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad track_state payload", "error", err)
			return
		}
		kind := media.Kind(p.Kind)
		if kind != media.KindAudio && kind != media.KindVideo {
			slog.Warn("track_state for unknown kind", "kind", p.Kind)
			return
		}
		if onTrackState != nil {
			onTrackState(kind, p.Enabled)
		}
	case TypeHangup:
		if onHangup != nil {
			onHangup()
		}
	default:
		slog.Debug("ignoring control message", "type", msg.Type)
	}
}
