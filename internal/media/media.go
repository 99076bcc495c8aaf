// Package media owns the local capture tracks of a call: acquiring them,
// attaching them to the peer connection, toggling them without
// renegotiation, and releasing them.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"
)

// Kind is a track kind.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Constraints selects which kinds to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// DefaultConstraints asks for camera and microphone.
var DefaultConstraints = Constraints{Audio: true, Video: true}

// AudioOnly is the reduced set used when the camera cannot be opened.
func (c Constraints) AudioOnly() Constraints {
	return Constraints{Audio: true}
}

func (c Constraints) String() string {
	switch {
	case c.Audio && c.Video:
		return "audio+video"
	case c.Audio:
		return "audio"
	case c.Video:
		return "video"
	default:
		return "none"
	}
}

// Mode reports whether the primary constraints were satisfied.
type Mode int

const (
	ModeFull Mode = iota
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeDegraded {
		return "degraded"
	}
	return "full"
}

var (
	// ErrDevice means no device satisfied any constraint set tried.
	ErrDevice = errors.New("no usable media device")
	// ErrNoTrack is returned when toggling a kind that was never acquired.
	ErrNoTrack = errors.New("no track of that kind")
	// ErrNotAcquired is returned by Attach before Acquire.
	ErrNotAcquired = errors.New("media not acquired")
)

// DeviceError describes a failed acquisition.
type DeviceError struct {
	Constraints Constraints
	Err         error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Constraints, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{ErrDevice, e.Err}
}

// Track is one local capture track.
type Track interface {
	ID() string
	Kind() Kind
	// Local is what gets attached to the peer connection.
	Local() webrtc.TrackLocal
	Stop() error
}

// gated is implemented by tracks that produce samples themselves and can
// stop producing while disabled.
type gated interface {
	SetEnabled(bool)
}

// Source opens devices. Open either returns every requested kind or fails,
// like getUserMedia.
type Source interface {
	Open(ctx context.Context, c Constraints) ([]Track, error)
}

// EngineConfigurer is implemented by sources that need specific codecs
// registered on the peer connection's media engine.
type EngineConfigurer interface {
	ConfigureMediaEngine(m *webrtc.MediaEngine) error
}

// Sender is the part of an RTP sender used for enable/disable.
// *webrtc.RTPSender satisfies it.
type Sender interface {
	ReplaceTrack(webrtc.TrackLocal) error
}

// TrackAdder attaches a local track to a peer connection.
type TrackAdder interface {
	AddTrack(webrtc.TrackLocal) (Sender, error)
}

// Acquisition is the observable result of Acquire.
type Acquisition struct {
	Mode Mode
	// Kinds lists the kinds actually acquired.
	Kinds []Kind
	// Cause is why the primary constraints failed when Mode is ModeDegraded.
	Cause error
}

// Has reports whether kind was acquired.
func (a Acquisition) Has(kind Kind) bool {
	for _, k := range a.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// TrackInfo is a snapshot of one managed track.
type TrackInfo struct {
	ID       string
	Kind     Kind
	Enabled  bool
	Attached bool
}

type managedTrack struct {
	track   Track
	sender  Sender
	enabled bool
}

// Manager holds the local track set of one call.
type Manager struct {
	source Source

	mu     sync.Mutex
	tracks []*managedTrack
}

// NewManager returns a Manager opening devices through source.
func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// Source returns the device source.
func (m *Manager) Source() Source {
	return m.source
}

// Acquire opens tracks for c. When both kinds were requested and opening
// fails, it retries audio-only and reports ModeDegraded.
func (m *Manager) Acquire(ctx context.Context, c Constraints) (Acquisition, error) {
	if !c.Audio && !c.Video {
		return Acquisition{}, &DeviceError{Constraints: c, Err: errors.New("empty constraints")}
	}

	m.mu.Lock()
	held := len(m.tracks)
	m.mu.Unlock()
	if held > 0 {
		return Acquisition{}, errors.New("media already acquired")
	}

	acq := Acquisition{Mode: ModeFull}
	tracks, err := m.source.Open(ctx, c)
	if err != nil {
		if ctx.Err() != nil || !(c.Audio && c.Video) {
			return Acquisition{}, &DeviceError{Constraints: c, Err: err}
		}
		reduced := c.AudioOnly()
		var rerr error
		tracks, rerr = m.source.Open(ctx, reduced)
		if rerr != nil {
			return Acquisition{}, &DeviceError{Constraints: c, Err: errors.Join(err, rerr)}
		}
		acq = Acquisition{Mode: ModeDegraded, Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tracks {
		m.tracks = append(m.tracks, &managedTrack{track: t, enabled: true})
		if !acq.Has(t.Kind()) {
			acq.Kinds = append(acq.Kinds, t.Kind())
		}
	}
	return acq, nil
}

// Attach adds every not yet attached track to the connection.
func (m *Manager) Attach(adder TrackAdder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tracks) == 0 {
		return ErrNotAcquired
	}
	for _, mt := range m.tracks {
		if mt.sender != nil {
			continue
		}
		sender, err := adder.AddTrack(mt.track.Local())
		if err != nil {
			return fmt.Errorf("attach %s track: %w", mt.track.Kind(), err)
		}
		mt.sender = sender
	}
	return nil
}

// SetTrackEnabled toggles every track of kind. The track stays attached;
// a disabled track's sender carries no media until re-enabled.
func (m *Manager) SetTrackEnabled(kind Kind, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, mt := range m.tracks {
		if mt.track.Kind() != kind {
			continue
		}
		found = true
		if mt.enabled == enabled {
			continue
		}
		if mt.sender != nil {
			var next webrtc.TrackLocal
			if enabled {
				next = mt.track.Local()
			}
			if err := mt.sender.ReplaceTrack(next); err != nil {
				return fmt.Errorf("toggle %s track: %w", kind, err)
			}
		}
		if g, ok := mt.track.(gated); ok {
			g.SetEnabled(enabled)
		}
		mt.enabled = enabled
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNoTrack, kind)
	}
	return nil
}

// Enabled reports whether tracks of kind are enabled.
func (m *Manager) Enabled(kind Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mt := range m.tracks {
		if mt.track.Kind() == kind {
			return mt.enabled, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrNoTrack, kind)
}

// Tracks returns a snapshot of the track set.
func (m *Manager) Tracks() []TrackInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackInfo, 0, len(m.tracks))
	for _, mt := range m.tracks {
		out = append(out, TrackInfo{
			ID:       mt.track.ID(),
			Kind:     mt.track.Kind(),
			Enabled:  mt.enabled,
			Attached: mt.sender != nil,
		})
	}
	return out
}

// Release stops and detaches every track. Calling it again is a no-op.
func (m *Manager) Release() error {
	m.mu.Lock()
	tracks := m.tracks
	m.tracks = nil
	m.mu.Unlock()

	var result *multierror.Error
	for _, mt := range tracks {
		if mt.sender != nil {
			// Detaching from a connection that is already closing may fail;
			// the track is stopped regardless.
			_ = mt.sender.ReplaceTrack(nil)
		}
		if err := mt.track.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop %s track: %w", mt.track.Kind(), err))
		}
	}
	return result.ErrorOrNil()
}
