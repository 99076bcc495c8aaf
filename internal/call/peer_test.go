package call

import (
	"context"
	"testing"
	"time"

	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/signaling"
	"github.com/pion/webrtc/v4"
)

func TestConfiguration_RelayOnlyWithTURN(t *testing.T) {
	cfg := &config.Config{STUNServer: "stun:stun.example.org:3478", ForceRelay: true}
	if got := Configuration(cfg).ICETransportPolicy; got != webrtc.ICETransportPolicyAll {
		t.Fatalf("policy without TURN=%v, want all", got)
	}

	cfg.TURNServer = "turn.example.org"
	cfg.TURNUser, cfg.TURNPass = "u", "p"
	pc := Configuration(cfg)
	if pc.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Fatalf("policy=%v, want relay", pc.ICETransportPolicy)
	}
	if len(pc.ICEServers) != 2 || pc.ICEServers[1].Username != "u" {
		t.Fatalf("ice servers=%+v", pc.ICEServers)
	}
}

func TestConfiguration_NoSTUN(t *testing.T) {
	if got := len(Configuration(&config.Config{}).ICEServers); got != 0 {
		t.Fatalf("ice servers=%d, want 0", got)
	}
}

// pionPair links two sessions over real pion connections in memory.
func pionPair(t *testing.T, idA, idB string) (a, b *Session, ctx context.Context) {
	t.Helper()
	newPion := func(l *link, id string) *Session {
		src := &media.SyntheticSource{}
		peer, err := NewPeer(&config.Config{}, PeerOptions{Engine: src})
		if err != nil {
			t.Fatalf("NewPeer: %v", err)
		}
		return New(peer, l, media.NewManager(src), WithID(id))
	}

	ab, ba := &link{}, &link{}
	a, b = newPion(ab, idA), newPion(ba, idB)
	ab.to, ba.to = b, a

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)
	go b.Run(ctx)

	for _, s := range []*Session{a, b} {
		if err := s.Join(ctx, "r1"); err != nil {
			t.Fatalf("Join: %v", err)
		}
		waitFor(t, s, Joined)
	}
	return a, b, ctx
}

func endBoth(t *testing.T, ctx context.Context, a, b *Session) {
	t.Helper()
	if a.Err() != nil || b.Err() != nil {
		t.Fatalf("errors: a=%v b=%v", a.Err(), b.Err())
	}
	if err := a.End(ctx); err != nil {
		t.Fatalf("End a: %v", err)
	}
	if err := b.End(ctx); err != nil {
		t.Fatalf("End b: %v", err)
	}
}

// TestSession_PionNegotiation runs the state machine over two real pion
// connections linked in memory.
func TestSession_PionNegotiation(t *testing.T) {
	a, b, ctx := pionPair(t, "a-session", "b-session")

	a.Deliver(&signaling.Message{Type: signaling.TypeUserJoined, Room: "r1"})
	waitFor(t, a, Connected)
	waitFor(t, b, Connected)
	endBoth(t, ctx, a, b)
}

// Both members are announced at once, as the relay does; only the higher
// session id offers, so no local offer ever has to be rolled back.
func TestSession_PionBothAnnounced(t *testing.T) {
	for _, ids := range [][2]string{{"aaaa", "bbbb"}, {"bbbb", "aaaa"}} {
		t.Run(ids[0]+"-"+ids[1], func(t *testing.T) {
			a, b, ctx := pionPair(t, ids[0], ids[1])

			a.Deliver(userJoinedMsg("r1", ids[1]))
			b.Deliver(userJoinedMsg("r1", ids[0]))
			waitFor(t, a, Connected)
			waitFor(t, b, Connected)

			offers := a.Stats().OffersSent + b.Stats().OffersSent
			if offers != 1 {
				t.Fatalf("offers=%d, want 1", offers)
			}
			offerer := a
			if ids[1] > ids[0] {
				offerer = b
			}
			if offerer.Stats().OffersSent != 1 {
				t.Fatalf("session %s did not offer", offerer.ID())
			}
			endBoth(t, ctx, a, b)
		})
	}
}

func waitFor(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for s.State() != want {
		if s.State() == Closed {
			t.Fatalf("session closed waiting for %v: %v", want, s.Err())
		}
		if time.Now().After(deadline) {
			t.Fatalf("state %v not reached, current %v", want, s.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
