//go:build mediadevices

package media

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	// Register camera and microphone drivers.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)

// CaptureSource opens the local camera and microphone.
type CaptureSource struct {
	selector *mediadevices.CodecSelector
}

// NewCaptureSource prepares VP8 and Opus encoders.
func NewCaptureSource() (*CaptureSource, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &CaptureSource{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// ConfigureMediaEngine registers the encoders' codecs.
func (s *CaptureSource) ConfigureMediaEngine(m *webrtc.MediaEngine) error {
	s.selector.Populate(m)
	return nil
}

// Open implements Source.
func (s *CaptureSource) Open(ctx context.Context, c Constraints) ([]Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{Codec: s.selector}
	if c.Video {
		constraints.Video = func(t *mediadevices.MediaTrackConstraints) {
			t.Width = prop.Int(640)
			t.Height = prop.Int(480)
		}
	}
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	for _, t := range stream.GetTracks() {
		tracks = append(tracks, captureTrack{t})
	}
	return tracks, nil
}

type captureTrack struct {
	mediadevices.Track
}

func (t captureTrack) Kind() Kind {
	if t.Track.Kind() == webrtc.RTPCodecTypeVideo {
		return KindVideo
	}
	return KindAudio
}

func (t captureTrack) Local() webrtc.TrackLocal { return t.Track }
func (t captureTrack) Stop() error              { return t.Track.Close() }
