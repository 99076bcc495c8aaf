// Package recording saves the remote side of a call: Opus audio to .ogg and
// VP8 video to .ivf, sharing one file prefix per recording.
package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/hashicorp/go-multierror"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

var (
	ErrRecording    = errors.New("already recording")
	ErrNotRecording = errors.New("not recording")
)

// Recorder writes incoming RTP while active. Packets fed while inactive
// are dropped.
type Recorder struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	prefix string
	audio  *oggwriter.OggWriter
	video  *ivfwriter.IVFWriter
}

// New returns a Recorder writing under dir.
func New(dir string) *Recorder {
	return &Recorder{dir: dir, now: time.Now}
}

// Start opens a new pair of files and returns their shared prefix.
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prefix != "" {
		return "", ErrRecording
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}

	prefix := filepath.Join(r.dir, "call_"+r.now().Format("20060102_150405"))
	audio, err := oggwriter.New(prefix+".ogg", 48000, 2)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	video, err := ivfwriter.New(prefix + ".ivf")
	if err != nil {
		audio.Close()
		return "", fmt.Errorf("open video file: %w", err)
	}

	r.prefix, r.audio, r.video = prefix, audio, video
	slog.Info("recording started", "prefix", prefix)
	return prefix, nil
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefix != ""
}

// Feed writes one packet of kind.
func (r *Recorder) Feed(kind media.Kind, pkt *rtp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prefix == "" {
		return nil
	}
	switch kind {
	case media.KindAudio:
		return r.audio.WriteRTP(pkt)
	case media.KindVideo:
		return r.video.WriteRTP(pkt)
	}
	return fmt.Errorf("unknown track kind %q", kind)
}

// Stop closes the files and returns their prefix.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prefix == "" {
		return "", ErrNotRecording
	}
	var result *multierror.Error
	if err := r.audio.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close audio: %w", err))
	}
	if err := r.video.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close video: %w", err))
	}

	prefix := r.prefix
	r.prefix, r.audio, r.video = "", nil, nil
	slog.Info("recording stopped", "prefix", prefix)
	return prefix, result.ErrorOrNil()
}

// Consume feeds packets from a remote track until it ends. Run it on its
// own goroutine from OnTrack.
func (r *Recorder) Consume(track *webrtc.TrackRemote) {
	kind := media.KindAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = media.KindVideo
	}
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			slog.Debug("remote track ended", "kind", kind, "error", err)
			return
		}
		if err := r.Feed(kind, pkt); err != nil {
			slog.Debug("recording packet dropped", "kind", kind, "error", err)
		}
	}
}
