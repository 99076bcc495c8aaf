package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
)

// Message type constants. The relay only inspects Type and Room; everything
// else travels between the two participants untouched.
const (
	TypeJoin  = "join"
	TypeLeave = "leave"

	TypeUserJoined = "user-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// ErrInvalidMessage marks a message that failed to parse or validate.
var ErrInvalidMessage = errors.New("invalid signaling message")

// Payload is the tag-specific part of a message.
type Payload struct {
	// SessionID identifies the sending call session. Offers carry it so two
	// peers that offer at once can agree on who yields.
	SessionID string                     `json:"sid,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Message is the envelope exchanged with the relay.
type Message struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Payload
	Error string `json:"error,omitempty"`
}

// Parse decodes and validates exactly one message.
func Parse(data []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected trailing data", ErrInvalidMessage)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}

// Validate checks that the fields present match the message type.
func (m *Message) Validate() error {
	hasSDP := m.Offer != nil || m.Answer != nil
	switch m.Type {
	case TypeJoin, TypeLeave:
		if m.Room == "" {
			return invalid("%s message missing room", m.Type)
		}
		if hasSDP || m.Candidate != nil {
			return invalid("%s message has unexpected fields", m.Type)
		}
	case TypeUserJoined, TypePeerLeft:
		if hasSDP || m.Candidate != nil {
			return invalid("%s message has unexpected fields", m.Type)
		}
	case TypeOffer:
		if m.Room == "" {
			return invalid("offer message missing room")
		}
		if err := checkDescription(m.Offer, webrtc.SDPTypeOffer); err != nil {
			return err
		}
		if m.Answer != nil || m.Candidate != nil {
			return invalid("offer message has unexpected fields")
		}
	case TypeAnswer:
		if m.Room == "" {
			return invalid("answer message missing room")
		}
		if err := checkDescription(m.Answer, webrtc.SDPTypeAnswer); err != nil {
			return err
		}
		if m.Offer != nil || m.Candidate != nil {
			return invalid("answer message has unexpected fields")
		}
	case TypeICECandidate:
		if m.Room == "" {
			return invalid("ice-candidate message missing room")
		}
		if m.Candidate == nil {
			return invalid("ice-candidate message missing candidate")
		}
		if hasSDP {
			return invalid("ice-candidate message has unexpected fields")
		}
	case TypeError:
		if m.Error == "" {
			return invalid("error message missing error")
		}
	default:
		return invalid("unsupported message type %q", m.Type)
	}
	return nil
}

func checkDescription(desc *webrtc.SessionDescription, want webrtc.SDPType) error {
	if desc == nil {
		return invalid("%s message missing description", want)
	}
	if desc.Type != want {
		return invalid("%s message has sdp type %q", want, desc.Type)
	}
	if desc.SDP == "" {
		return invalid("%s message has empty sdp", want)
	}
	return nil
}
