package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

func TestSession_FirstJoinerOffers(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	h.waitState(t, Offering)

	offer := h.sig.expect(t, signaling.TypeOffer)
	if offer.Room != "r1" || offer.Offer == nil || offer.Offer.SDP != "offer-1" {
		t.Fatalf("unexpected offer: %#v", offer)
	}
	if offer.SessionID != h.s.ID() {
		t.Fatalf("offer sid=%q, want %q", offer.SessionID, h.s.ID())
	}

	h.s.Deliver(answerMsg("r1", "remote-answer"))
	h.waitState(t, Connected)

	pc := h.pc.snapshot()
	if pc.remote == nil || pc.remote.SDP != "remote-answer" {
		t.Fatalf("remote=%v, want remote-answer", pc.remote)
	}
	if pc.tracks != 2 {
		t.Fatalf("tracks attached=%d, want 2", pc.tracks)
	}
	if got := h.s.Stats().OffersSent; got != 1 {
		t.Fatalf("OffersSent=%d, want 1", got)
	}
}

func TestSession_SecondJoinerAnswers(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(offerMsg("r1", "peer", "remote-offer"))
	h.waitState(t, Connected)

	answer := h.sig.expect(t, signaling.TypeAnswer)
	if answer.Answer == nil || answer.Answer.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("unexpected answer: %#v", answer)
	}
	pc := h.pc.snapshot()
	if pc.local == nil || pc.local.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("local=%v, want answer", pc.local)
	}
	if pc.offers != 0 {
		t.Fatalf("answerer created %d offers", pc.offers)
	}
}

func TestSession_CandidatesQueuedUntilRemoteDescription(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(candidateMsg("r1", "c1"))
	h.s.Deliver(candidateMsg("r1", "c2"))
	h.sync(t)

	if got := len(h.pc.snapshot().candidates); got != 0 {
		t.Fatalf("applied %d candidates before remote description", got)
	}
	if got := h.s.Stats().CandidatesQueued; got != 2 {
		t.Fatalf("CandidatesQueued=%d, want 2", got)
	}

	h.s.Deliver(offerMsg("r1", "peer", "remote-offer"))
	h.waitState(t, Connected)

	pc := h.pc.snapshot()
	if len(pc.candidates) != 2 || pc.candidates[0].Candidate != "c1" || pc.candidates[1].Candidate != "c2" {
		t.Fatalf("candidates=%v, want [c1 c2] in order", pc.candidates)
	}

	// After the remote description, candidates apply directly.
	h.s.Deliver(candidateMsg("r1", "c3"))
	h.sync(t)
	if got := h.s.Stats().CandidatesApplied; got != 3 {
		t.Fatalf("CandidatesApplied=%d, want 3", got)
	}
}

func TestSession_BadCandidateIsNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")
	h.s.Deliver(offerMsg("r1", "peer", "remote-offer"))
	h.waitState(t, Connected)

	h.s.Deliver(candidateMsg("r1", "bad"))
	d := h.waitDiag(t)
	if !errors.Is(d, ErrNegotiation) {
		t.Fatalf("diagnostic=%v, want ErrNegotiation", d)
	}
	h.sync(t)
	if h.s.State() != Connected {
		t.Fatalf("state=%v after bad candidate, want connected", h.s.State())
	}
	if got := h.s.Stats().CandidatesFailed; got != 1 {
		t.Fatalf("CandidatesFailed=%d, want 1", got)
	}
}

func TestSession_CandidateQueueBounded(t *testing.T) {
	h := newHarness(t, nil, WithCandidateLimit(2))
	h.joined(t, "r1")

	for _, c := range []string{"c1", "c2", "c3"} {
		h.s.Deliver(candidateMsg("r1", c))
	}
	h.sync(t)

	st := h.s.Stats()
	if st.CandidatesQueued != 2 || st.CandidatesDropped != 1 {
		t.Fatalf("queued=%d dropped=%d, want 2 and 1", st.CandidatesQueued, st.CandidatesDropped)
	}
}

func TestSession_AnswerAfterEndDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")
	h.s.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	h.waitState(t, Offering)

	if err := h.s.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.waitState(t, Closed)
	leave := h.sig.expect(t, signaling.TypeLeave)
	if leave.Room != "r1" {
		t.Fatalf("leave room=%q, want r1", leave.Room)
	}

	h.s.Deliver(answerMsg("r1", "late"))
	h.sync(t)

	pc := h.pc.snapshot()
	if pc.remote != nil {
		t.Fatalf("late answer applied: %v", pc.remote)
	}
	if !pc.closed {
		t.Fatalf("peer connection not closed")
	}
	if h.s.Err() != nil {
		t.Fatalf("Err=%v after normal end", h.s.Err())
	}
	if got := h.s.Stats().Rejected; got != 1 {
		t.Fatalf("Rejected=%d, want 1", got)
	}
	if h.s.Room() != "" {
		t.Fatalf("room=%q after end", h.s.Room())
	}

	// Ending again is a no-op.
	if err := h.s.End(context.Background()); err != nil {
		t.Fatalf("second End: %v", err)
	}
	select {
	case <-h.s.Done():
	default:
		t.Fatalf("Done not closed")
	}
}

func TestSession_BadRemoteOfferIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(offerMsg("r1", "peer", "bad"))
	tr := h.waitState(t, Closed)

	if !errors.Is(tr.Err, ErrNegotiation) {
		t.Fatalf("transition err=%v, want ErrNegotiation", tr.Err)
	}
	if !errors.Is(h.s.Err(), ErrNegotiation) {
		t.Fatalf("Err=%v, want ErrNegotiation", h.s.Err())
	}
	if h.src.stopped.Load() != 2 {
		t.Fatalf("stopped tracks=%d, want 2", h.src.stopped.Load())
	}
}

func TestSession_NoMediaIsFatal(t *testing.T) {
	src := &countingSource{inner: media.SyntheticSource{
		Unavailable: map[media.Kind]bool{media.KindAudio: true, media.KindVideo: true},
	}}
	h := newHarness(t, src)
	if err := h.s.Join(context.Background(), "r1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	h.waitState(t, Closed)

	err := h.s.Err()
	if !errors.Is(err, ErrDevice) || !errors.Is(err, media.ErrDevice) {
		t.Fatalf("Err=%v, want device error", err)
	}
	select {
	case msg := <-h.sig.sent:
		if msg.Type == signaling.TypeJoin {
			t.Fatalf("join sent without media")
		}
	default:
	}
}

func TestSession_DegradedMediaStillJoins(t *testing.T) {
	src := &countingSource{inner: media.SyntheticSource{
		Unavailable: map[media.Kind]bool{media.KindVideo: true},
	}}
	h := newHarness(t, src)
	h.joined(t, "r1")

	acq := h.s.Acquisition()
	if acq.Mode != media.ModeDegraded || acq.Has(media.KindVideo) {
		t.Fatalf("acquisition=%+v, want degraded audio-only", acq)
	}
	pc := h.pc.snapshot()
	if pc.tracks != 1 {
		t.Fatalf("tracks=%d, want 1", pc.tracks)
	}
	if len(pc.receiving) != 1 || pc.receiving[0] != media.KindVideo {
		t.Fatalf("receiving=%v, want [video]", pc.receiving)
	}

	if err := h.s.SetTrackEnabled(context.Background(), media.KindVideo, false); !errors.Is(err, media.ErrNoTrack) {
		t.Fatalf("toggle video err=%v, want ErrNoTrack", err)
	}
}

func TestSession_LateMediaReleased(t *testing.T) {
	src := &countingSource{gate: make(chan struct{}), opened: make(chan struct{})}
	h := newHarness(t, src)

	if err := h.s.Join(context.Background(), "r1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	h.waitState(t, AwaitingMedia)
	if err := h.s.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}
	h.waitState(t, Closed)

	close(src.gate)
	<-src.opened

	deadline := time.Now().Add(waitTimeout)
	for src.stopped.Load() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("late tracks not released, stopped=%d", src.stopped.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.pc.snapshot().tracks; got != 0 {
		t.Fatalf("late tracks attached: %d", got)
	}
}

func TestSession_SingleOfferer(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	h.s.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	h.sync(t)

	if got := h.pc.snapshot().offers; got != 1 {
		t.Fatalf("offers=%d, want 1", got)
	}
	if got := h.s.Stats().Rejected; got != 1 {
		t.Fatalf("Rejected=%d, want 1", got)
	}
}

func TestSession_RejectsOtherRooms(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")

	h.s.Deliver(offerMsg("r2", "peer", "remote-offer"))
	d := h.waitDiag(t)
	if !errors.Is(d, ErrSignaling) {
		t.Fatalf("diagnostic=%v, want ErrSignaling", d)
	}
	if h.s.State() != Joined {
		t.Fatalf("state=%v, want joined", h.s.State())
	}
}

func TestSession_InvalidCalls(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.s.SetTrackEnabled(ctx, media.KindAudio, false); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("toggle in idle err=%v, want ErrInvalidState", err)
	}
	if err := h.s.Join(ctx, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Join empty room err=%v, want ErrInvalidState", err)
	}

	h.joined(t, "r1")
	if err := h.s.Join(ctx, "r2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Join err=%v, want ErrInvalidState", err)
	}
	if err := h.s.SetTrackEnabled(ctx, media.KindAudio, false); err != nil {
		t.Fatalf("mute in joined: %v", err)
	}
	on, err := h.mgr.Enabled(media.KindAudio)
	if err != nil || on {
		t.Fatalf("audio enabled=%v,%v after mute", on, err)
	}
}

func TestSession_LocalCandidatesTrickle(t *testing.T) {
	h := newHarness(t, nil)
	h.joined(t, "r1")
	h.s.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	h.waitState(t, Offering)

	h.pc.emit("candidate:1 1 udp 2130706431 192.0.2.1 5000 typ host")
	msg := h.sig.expect(t, signaling.TypeICECandidate)
	if msg.Room != "r1" || msg.Candidate == nil {
		t.Fatalf("unexpected candidate message: %#v", msg)
	}
}

func TestSession_ContextCancelEnds(t *testing.T) {
	pc := &fakePC{}
	sig := newFakeSignaler()
	s := New(pc, sig, media.NewManager(&media.SyntheticSource{}))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()
	if err := s.Join(context.Background(), "r1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	sig.expect(t, signaling.TypeJoin)

	cancel()
	<-stopped
	if s.State() != Closed || !pc.snapshot().closed {
		t.Fatalf("state=%v closed=%v after cancel", s.State(), pc.snapshot().closed)
	}
	if err := s.End(context.Background()); err != nil {
		t.Fatalf("End after stop: %v", err)
	}
}

func TestSession_EndReleasesFromAnyState(t *testing.T) {
	cases := []struct {
		state State
		drive func(t *testing.T, h *harness)
	}{
		{state: Idle, drive: func(*testing.T, *harness) {}},
		{state: Joined, drive: func(t *testing.T, h *harness) {
			h.joined(t, "r1")
		}},
		{state: Offering, drive: func(t *testing.T, h *harness) {
			h.joined(t, "r1")
			h.s.Deliver(userJoinedMsg("r1", ""))
			h.waitState(t, Offering)
		}},
		{state: Connected, drive: func(t *testing.T, h *harness) {
			h.joined(t, "r1")
			h.s.Deliver(userJoinedMsg("r1", ""))
			h.waitState(t, Offering)
			h.s.Deliver(answerMsg("r1", "answer"))
			h.waitState(t, Connected)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.state.String(), func(t *testing.T) {
			h := newHarness(t, nil)
			tc.drive(t, h)
			h.sync(t)
			if got := h.s.State(); got != tc.state {
				t.Fatalf("state=%v, want %v", got, tc.state)
			}
			if tc.state != Idle && len(h.mgr.Tracks()) == 0 {
				t.Fatalf("no tracks held in %v", tc.state)
			}

			if err := h.s.End(context.Background()); err != nil {
				t.Fatalf("End: %v", err)
			}
			h.sync(t)
			if got := h.mgr.Tracks(); len(got) != 0 {
				t.Fatalf("tracks after End=%v, want none", got)
			}
			if !h.pc.snapshot().closed {
				t.Fatalf("peer connection not closed")
			}
			if got := h.s.State(); got != Closed {
				t.Fatalf("state after End=%v, want closed", got)
			}
		})
	}
}
