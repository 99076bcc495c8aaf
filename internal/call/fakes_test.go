package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

const waitTimeout = 5 * time.Second

type fakeSender struct{}

func (fakeSender) ReplaceTrack(webrtc.TrackLocal) error { return nil }

// fakePC records negotiation calls and enforces the ordering rules a real
// connection would.
type fakePC struct {
	mu         sync.Mutex
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	offers     int
	tracks     int
	receiving  []media.Kind
	closed     bool
	onCand     func(webrtc.ICECandidateInit)
}

func (p *fakePC) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *fakePC) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil || p.remote.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (p *fakePC) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.Type == webrtc.SDPTypeRollback {
		return errors.New("invalid SDP type supplied to SetLocalDescription(): rollback")
	}
	p.local = &d
	return nil
}

func (p *fakePC) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.SDP == "bad" {
		return errors.New("malformed sdp")
	}
	if d.Type == webrtc.SDPTypeOffer && p.local != nil {
		return errors.New("have-local-offer")
	}
	p.remote = &d
	return nil
}

func (p *fakePC) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	if c.Candidate == "bad" {
		return errors.New("unparseable candidate")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePC) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCand = fn
}

// emit simulates a gathered local candidate.
func (p *fakePC) emit(c string) {
	p.mu.Lock()
	fn := p.onCand
	p.mu.Unlock()
	fn(webrtc.ICECandidateInit{Candidate: c})
}

func (p *fakePC) AddTrack(webrtc.TrackLocal) (media.Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks++
	return fakeSender{}, nil
}

func (p *fakePC) Receive(kind media.Kind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receiving = append(p.receiving, kind)
	return nil
}

func (p *fakePC) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type pcState struct {
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	offers     int
	tracks     int
	receiving  []media.Kind
	closed     bool
}

func (p *fakePC) snapshot() pcState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pcState{
		local:      p.local,
		remote:     p.remote,
		candidates: append([]webrtc.ICECandidateInit(nil), p.candidates...),
		offers:     p.offers,
		tracks:     p.tracks,
		receiving:  append([]media.Kind(nil), p.receiving...),
		closed:     p.closed,
	}
}

// fakeSignaler captures outgoing messages.
type fakeSignaler struct {
	sent chan *signaling.Message
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{sent: make(chan *signaling.Message, 256)}
}

func (f *fakeSignaler) Send(msgType string, payload signaling.Payload, room string) error {
	f.sent <- &signaling.Message{Type: msgType, Room: room, Payload: payload}
	return nil
}

func (f *fakeSignaler) expect(t *testing.T, msgType string) *signaling.Message {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case msg := <-f.sent:
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s message sent", msgType)
			return nil
		}
	}
}

// countingSource wraps the synthetic source and counts stopped tracks.
type countingSource struct {
	inner   media.SyntheticSource
	gate    chan struct{}
	opened  chan struct{}
	stopped atomic.Int32
}

func (c *countingSource) Open(ctx context.Context, cons media.Constraints) ([]media.Track, error) {
	if c.gate != nil {
		<-c.gate
		ctx = context.Background()
	}
	tracks, err := c.inner.Open(ctx, cons)
	if err != nil {
		return nil, err
	}
	out := make([]media.Track, len(tracks))
	for i, t := range tracks {
		out[i] = &countingTrack{Track: t, stops: &c.stopped}
	}
	if c.opened != nil {
		close(c.opened)
	}
	return out, nil
}

type countingTrack struct {
	media.Track
	stops *atomic.Int32
}

func (t *countingTrack) Stop() error {
	t.stops.Add(1)
	return t.Track.Stop()
}

type harness struct {
	s           *Session
	pc          *fakePC
	sig         *fakeSignaler
	src         *countingSource
	mgr         *media.Manager
	transitions chan Transition
	diags       chan *Error
}

func newHarness(t *testing.T, src *countingSource, opts ...Option) *harness {
	t.Helper()
	if src == nil {
		src = &countingSource{}
	}
	h := &harness{
		pc:          &fakePC{},
		sig:         newFakeSignaler(),
		src:         src,
		mgr:         media.NewManager(src),
		transitions: make(chan Transition, 64),
		diags:       make(chan *Error, 256),
	}
	opts = append([]Option{
		WithStateObserver(func(tr Transition) { h.transitions <- tr }),
		WithDiagnostics(func(e *Error) { h.diags <- e }),
	}, opts...)
	h.s = New(h.pc, h.sig, h.mgr, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go h.s.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func (h *harness) waitState(t *testing.T, want State) Transition {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case tr := <-h.transitions:
			if tr.To == want {
				return tr
			}
		case <-timeout:
			t.Fatalf("state %v not reached, current %v", want, h.s.State())
			return Transition{}
		}
	}
}

func (h *harness) waitDiag(t *testing.T) *Error {
	t.Helper()
	select {
	case e := <-h.diags:
		return e
	case <-time.After(waitTimeout):
		t.Fatalf("no diagnostic reported")
		return nil
	}
}

// joined drives a harness into Joined for room.
func (h *harness) joined(t *testing.T, room string) {
	t.Helper()
	if err := h.s.Join(context.Background(), room); err != nil {
		t.Fatalf("Join: %v", err)
	}
	h.waitState(t, Joined)
	h.sig.expect(t, signaling.TypeJoin)
}

// sync waits until every event queued so far has been applied.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	if err := h.s.do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func userJoinedMsg(room, sid string) *signaling.Message {
	return &signaling.Message{
		Type:    signaling.TypeUserJoined,
		Room:    room,
		Payload: signaling.Payload{SessionID: sid},
	}
}

func offerMsg(room, sid, sdp string) *signaling.Message {
	return &signaling.Message{
		Type: signaling.TypeOffer,
		Room: room,
		Payload: signaling.Payload{
			SessionID: sid,
			Offer:     &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp},
		},
	}
}

func answerMsg(room, sdp string) *signaling.Message {
	return &signaling.Message{
		Type: signaling.TypeAnswer,
		Room: room,
		Payload: signaling.Payload{
			Answer: &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp},
		},
	}
}

func candidateMsg(room, c string) *signaling.Message {
	return &signaling.Message{
		Type:    signaling.TypeICECandidate,
		Room:    room,
		Payload: signaling.Payload{Candidate: &webrtc.ICECandidateInit{Candidate: c}},
	}
}
