package media

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const audioFrame = 20 * time.Millisecond

// SyntheticSource produces tracks without capture hardware: an Opus track
// carrying silence and a VP8 track that sends no frames. It keeps the call
// negotiable on headless machines and in tests.
type SyntheticSource struct {
	// Unavailable kinds fail to open, as a busy camera would.
	Unavailable map[Kind]bool
}

// ConfigureMediaEngine registers the default pion codecs, which include
// Opus and VP8.
func (s *SyntheticSource) ConfigureMediaEngine(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

// Open implements Source.
func (s *SyntheticSource) Open(ctx context.Context, c Constraints) ([]Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, k := range []Kind{KindAudio, KindVideo} {
		if wants(c, k) && s.Unavailable[k] {
			return nil, fmt.Errorf("%s device busy", k)
		}
	}

	streamID := "videocall-" + uuid.NewString()
	var tracks []Track
	if c.Audio {
		t, err := newSyntheticTrack(KindAudio, webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		}, streamID)
		if err != nil {
			return nil, err
		}
		go t.pumpSilence()
		tracks = append(tracks, t)
	}
	if c.Video {
		t, err := newSyntheticTrack(KindVideo, webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		}, streamID)
		if err != nil {
			for _, prev := range tracks {
				prev.Stop()
			}
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func wants(c Constraints, k Kind) bool {
	if k == KindAudio {
		return c.Audio
	}
	return c.Video
}

type syntheticTrack struct {
	kind    Kind
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

func newSyntheticTrack(kind Kind, codec webrtc.RTPCodecCapability, streamID string) (*syntheticTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(codec, string(kind), streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}
	t := &syntheticTrack{kind: kind, local: local, stop: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *syntheticTrack) ID() string               { return t.local.ID() }
func (t *syntheticTrack) Kind() Kind               { return t.kind }
func (t *syntheticTrack) Local() webrtc.TrackLocal { return t.local }
func (t *syntheticTrack) SetEnabled(on bool)       { t.enabled.Store(on) }

func (t *syntheticTrack) Stop() error {
	t.once.Do(func() { close(t.stop) })
	return nil
}

func (t *syntheticTrack) pumpSilence() {
	ticker := time.NewTicker(audioFrame)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			if err := t.local.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioFrame}); err != nil {
				return
			}
		}
	}
}
