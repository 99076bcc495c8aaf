// Package call drives one two-party call: media acquisition, room join,
// offer/answer negotiation with glare resolution, and trickled ICE.
//
// Every input (API calls, signaling messages, media results, local
// candidates) is turned into an event and applied on a single goroutine,
// so negotiation never observes interleaved state.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/signaling"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"
)

// DefaultCandidateLimit bounds remote candidates held before the remote
// description is applied.
const DefaultCandidateLimit = 128

// Signaler sends tagged messages to the relay. *signaling.Handler
// implements it.
type Signaler interface {
	Send(msgType string, payload signaling.Payload, room string) error
}

// Router delivers incoming messages by type. *signaling.Handler implements it.
type Router interface {
	OnMessage(msgType string, fn signaling.HandlerFunc)
}

// Media is the local track set. *media.Manager implements it.
type Media interface {
	Acquire(ctx context.Context, c media.Constraints) (media.Acquisition, error)
	Attach(adder media.TrackAdder) error
	SetTrackEnabled(kind media.Kind, enabled bool) error
	Release() error
}

// Recorder is stopped when the call ends. *recording.Recorder implements it.
type Recorder interface {
	Active() bool
	Stop() (string, error)
}

// Stats counts negotiation activity.
type Stats struct {
	OffersSent        int
	AnswersSent       int
	CandidatesSent    int
	CandidatesQueued  int
	CandidatesApplied int
	CandidatesFailed  int
	CandidatesDropped int
	Rejected          int
}

type event func()

type snapshot struct {
	state State
	room  string
	err   error
	stats Stats
	acq   media.Acquisition
}

// Session is one call. Create it with New, start the loop with Run.
type Session struct {
	id          string
	pc          PeerConnection
	sig         Signaler
	media       Media
	recorder    Recorder
	log         *slog.Logger
	constraints media.Constraints
	maxPending  int
	onState     func(Transition)
	onDiag      func(*Error)

	events  chan event
	stopped chan struct{}
	done    chan struct{}

	// Owned by the loop goroutine.
	ctx           context.Context
	state         State
	room          string
	remoteSet     bool
	pending       []webrtc.ICECandidateInit
	acq           media.Acquisition
	cancelAcquire context.CancelFunc
	err           error
	stats         Stats

	mu   sync.Mutex
	snap snapshot
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the random session id used for glare tie-breaks.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithConstraints sets the primary capture constraints.
func WithConstraints(c media.Constraints) Option {
	return func(s *Session) { s.constraints = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithStateObserver registers fn for every state change. fn runs on the
// session goroutine and must not call blocking Session methods.
func WithStateObserver(fn func(Transition)) Option {
	return func(s *Session) { s.onState = fn }
}

// WithDiagnostics registers fn for non-fatal problems: rejected messages,
// candidate failures, queue overflow. Same rules as WithStateObserver.
func WithDiagnostics(fn func(*Error)) Option {
	return func(s *Session) { s.onDiag = fn }
}

// WithCandidateLimit bounds the pending remote candidate queue.
func WithCandidateLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// New creates a Session in Idle.
func New(pc PeerConnection, sig Signaler, m Media, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		pc:          pc,
		sig:         sig,
		media:       m,
		constraints: media.DefaultConstraints,
		maxPending:  DefaultCandidateLimit,
		events:      make(chan event, 64),
		stopped:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("session", s.id)
	s.publish()

	pc.OnLocalCandidate(func(c webrtc.ICECandidateInit) {
		s.post(func() { s.localCandidate(c) })
	})
	return s
}

// Register routes the negotiation message types from r into the session.
func (s *Session) Register(r Router) {
	for _, t := range []string{
		signaling.TypeUserJoined,
		signaling.TypeOffer,
		signaling.TypeAnswer,
		signaling.TypeICECandidate,
		signaling.TypeError,
	} {
		r.OnMessage(t, s.Deliver)
	}
}

// Deliver queues an incoming signaling message.
func (s *Session) Deliver(msg *signaling.Message) {
	if !s.post(func() { s.handleSignal(msg) }) {
		s.log.Debug("signaling message after shutdown", "type", msg.Type)
	}
}

// Run applies events until ctx is done. A call still open then is ended.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	s.ctx = ctx

	for {
		select {
		case <-ctx.Done():
			if err := s.end(nil); err != nil {
				s.log.Warn("teardown incomplete", "error", err)
			}
			s.publish()
			return
		case ev := <-s.events:
			ev()
			s.publish()
		}
	}
}

// Join starts acquiring media for room. Negotiation proceeds on its own;
// watch it with WithStateObserver.
func (s *Session) Join(ctx context.Context, room string) error {
	return s.do(ctx, func() error { return s.join(room) })
}

// SetTrackEnabled mutes or unmutes the local tracks of kind without
// renegotiating.
func (s *Session) SetTrackEnabled(ctx context.Context, kind media.Kind, enabled bool) error {
	return s.do(ctx, func() error {
		switch s.state {
		case Idle, AwaitingMedia, Closed:
			return fmt.Errorf("%w: toggle %s in %s", ErrInvalidState, kind, s.state)
		}
		return s.media.SetTrackEnabled(kind, enabled)
	})
}

// End tears the call down. It is safe to call more than once; the error
// aggregates teardown failures of the first call.
func (s *Session) End(ctx context.Context) error {
	err := s.do(ctx, func() error { return s.end(nil) })
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.state
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.room
}

// Err is the failure that closed the session, nil for a normal end.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.err
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.stats
}

// Acquisition reports which media were obtained.
func (s *Session) Acquisition() media.Acquisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.acq
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stopped:
		return false
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	if !s.post(func() { reply <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (s *Session) publish() {
	s.mu.Lock()
	s.snap = snapshot{state: s.state, room: s.room, err: s.err, stats: s.stats, acq: s.acq}
	s.mu.Unlock()
}

func (s *Session) setState(to State, cause error) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.log.Debug("call state", "from", from.String(), "to", to.String())
	if s.onState != nil {
		s.onState(Transition{From: from, To: to, Err: cause})
	}
}

func (s *Session) diagnose(e *Error) {
	s.log.Debug("call diagnostic", "error", e)
	if s.onDiag != nil {
		s.onDiag(e)
	}
}

func (s *Session) reject(msg *signaling.Message, details string) {
	s.stats.Rejected++
	s.diagnose(rejected("handle "+msg.Type, details))
}

// fail closes the session because of err.
func (s *Session) fail(op string, kind, err error) {
	e := newError(op, kind, err)
	s.log.Error("call failed", "op", op, "error", err)
	s.err = e
	if terr := s.end(e); terr != nil {
		s.log.Warn("teardown incomplete", "error", terr)
	}
}

func (s *Session) join(room string) error {
	if s.state != Idle {
		return fmt.Errorf("%w: join in %s", ErrInvalidState, s.state)
	}
	if room == "" {
		return fmt.Errorf("%w: empty room", ErrInvalidState)
	}

	s.room = room
	s.setState(AwaitingMedia, nil)

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelAcquire = cancel
	go func() {
		acq, err := s.media.Acquire(ctx, s.constraints)
		if !s.post(func() { s.mediaReady(acq, err) }) && err == nil {
			s.media.Release()
		}
	}()
	return nil
}

func (s *Session) mediaReady(acq media.Acquisition, err error) {
	if s.state != AwaitingMedia {
		s.log.Debug("discarding late media result", "state", s.state.String())
		if err == nil {
			if rerr := s.media.Release(); rerr != nil {
				s.log.Warn("release late media", "error", rerr)
			}
		}
		return
	}
	if err != nil {
		s.fail("acquire media", ErrDevice, err)
		return
	}

	s.acq = acq
	if acq.Mode == media.ModeDegraded {
		s.log.Warn("camera unavailable, continuing audio-only", "cause", acq.Cause)
	}
	if err := s.media.Attach(s.pc); err != nil {
		s.fail("attach media", ErrNegotiation, err)
		return
	}
	if r, ok := s.pc.(receiver); ok {
		for _, k := range []media.Kind{media.KindAudio, media.KindVideo} {
			if acq.Has(k) {
				continue
			}
			if err := r.Receive(k); err != nil {
				s.diagnose(newError("receive "+string(k), ErrNegotiation, err))
			}
		}
	}

	if err := s.sig.Send(signaling.TypeJoin, signaling.Payload{SessionID: s.id}, s.room); err != nil {
		s.fail("send join", ErrSignaling, err)
		return
	}
	s.setState(Joined, nil)
}

func (s *Session) handleSignal(msg *signaling.Message) {
	if msg.Type == signaling.TypeError {
		s.diagnose(rejected("relay", msg.Error))
		return
	}
	if !s.state.negotiating() {
		s.reject(msg, "not in a room ("+s.state.String()+")")
		return
	}
	if msg.Room != s.room {
		s.reject(msg, "room mismatch: "+msg.Room)
		return
	}

	switch msg.Type {
	case signaling.TypeUserJoined:
		if s.state != Joined {
			s.reject(msg, "already negotiating ("+s.state.String()+")")
			return
		}
		// Both members learn the other's sid; only the higher one offers.
		switch {
		case msg.SessionID == "":
		case msg.SessionID == s.id:
			s.reject(msg, "peer has the same session id")
			return
		case msg.SessionID > s.id:
			s.log.Debug("waiting for peer offer", "peer", msg.SessionID)
			return
		}
		s.sendOffer()

	case signaling.TypeOffer:
		s.remoteOffer(msg)

	case signaling.TypeAnswer:
		if s.state != Offering {
			s.reject(msg, "no offer outstanding ("+s.state.String()+")")
			return
		}
		if err := s.setRemote(*msg.Answer); err != nil {
			s.fail("apply answer", ErrNegotiation, err)
			return
		}
		s.setState(Connected, nil)

	case signaling.TypeICECandidate:
		s.remoteCandidate(*msg.Candidate)

	default:
		s.reject(msg, "unsupported type")
	}
}

func (s *Session) sendOffer() {
	s.setState(Offering, nil)

	offer, err := s.pc.CreateOffer()
	if err != nil {
		s.fail("create offer", ErrNegotiation, err)
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.fail("set local offer", ErrNegotiation, err)
		return
	}
	payload := signaling.Payload{SessionID: s.id, Offer: &offer}
	if err := s.sig.Send(signaling.TypeOffer, payload, s.room); err != nil {
		s.fail("send offer", ErrSignaling, err)
		return
	}
	s.stats.OffersSent++
}

func (s *Session) remoteOffer(msg *signaling.Message) {
	switch s.state {
	case Joined:
	case Offering:
		// pion cannot roll back a local offer, so the outstanding one stands.
		s.reject(msg, "glare: local offer outstanding")
		return
	default:
		s.reject(msg, "unexpected offer ("+s.state.String()+")")
		return
	}

	s.setState(Answering, nil)
	if err := s.setRemote(*msg.Offer); err != nil {
		s.fail("apply offer", ErrNegotiation, err)
		return
	}
	answer, err := s.pc.CreateAnswer()
	if err != nil {
		s.fail("create answer", ErrNegotiation, err)
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.fail("set local answer", ErrNegotiation, err)
		return
	}
	payload := signaling.Payload{SessionID: s.id, Answer: &answer}
	if err := s.sig.Send(signaling.TypeAnswer, payload, s.room); err != nil {
		s.fail("send answer", ErrSignaling, err)
		return
	}
	s.stats.AnswersSent++
	s.setState(Connected, nil)
}

func (s *Session) setRemote(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		s.applyCandidate(c)
	}
	return nil
}

func (s *Session) remoteCandidate(c webrtc.ICECandidateInit) {
	if s.remoteSet {
		s.applyCandidate(c)
		return
	}
	if len(s.pending) >= s.maxPending {
		s.stats.CandidatesDropped++
		s.diagnose(&Error{Op: "queue candidate", Kind: ErrNegotiation, Details: "pending queue full"})
		return
	}
	s.pending = append(s.pending, c)
	s.stats.CandidatesQueued++
}

// applyCandidate failures are reported, never fatal.
func (s *Session) applyCandidate(c webrtc.ICECandidateInit) {
	if err := s.pc.AddICECandidate(c); err != nil {
		s.stats.CandidatesFailed++
		s.diagnose(newError("add candidate", ErrNegotiation, err))
		return
	}
	s.stats.CandidatesApplied++
}

func (s *Session) localCandidate(c webrtc.ICECandidateInit) {
	if !s.state.negotiating() {
		s.log.Debug("dropping local candidate", "state", s.state.String())
		return
	}
	if err := s.sig.Send(signaling.TypeICECandidate, signaling.Payload{Candidate: &c}, s.room); err != nil {
		s.diagnose(newError("send candidate", ErrSignaling, err))
		return
	}
	s.stats.CandidatesSent++
}

// end releases everything the call holds and moves to Closed.
func (s *Session) end(cause error) error {
	if s.state == Closed {
		return nil
	}

	var result *multierror.Error
	if s.cancelAcquire != nil {
		s.cancelAcquire()
	}
	if s.recorder != nil && s.recorder.Active() {
		path, err := s.recorder.Stop()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("stop recording: %w", err))
		} else {
			s.log.Info("recording saved", "path", path)
		}
	}
	if err := s.media.Release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release media: %w", err))
	}
	if s.room != "" {
		if err := s.sig.Send(signaling.TypeLeave, signaling.Payload{}, s.room); err != nil {
			s.log.Debug("leave not sent", "error", err)
		}
	}
	if err := s.pc.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close peer connection: %w", err))
	}

	s.room = ""
	s.remoteSet = false
	s.pending = nil
	s.setState(Closed, cause)
	close(s.done)
	return result.ErrorOrNil()
}
