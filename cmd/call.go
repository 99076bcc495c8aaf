package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Ajit127639/VideoCall/internal/call"
	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/control"
	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/Ajit127639/VideoCall/internal/processing"
	"github.com/Ajit127639/VideoCall/internal/recording"
	"github.com/Ajit127639/VideoCall/internal/signaling"
	"github.com/Ajit127639/VideoCall/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
)

var (
	flagDomain     string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagRelay      bool
	flagInsecure   bool
	flagAudioOnly  bool
	flagRecordings string
	flagProcess    bool
)

var callCmd = &cobra.Command{
	Use:   "call [room-id]",
	Short: "Start a call or join one by room ID",
	Long: `Join the room given as argument. Without an argument a new room ID is
generated and printed so the other side can join it.

Inside the call: m toggles the microphone, v the camera, r starts and stops
recording the remote side, q hangs up.`,
	Example: `  videocall call
  videocall call brave-otter-sings-loudly --audio-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := ""
		if len(args) == 1 {
			room = strings.TrimSpace(args[0])
		}
		return runCall(cmd.Context(), room)
	},
}

func runCall(ctx context.Context, room string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:        flagDomain,
		STUNServer:    flagSTUN,
		TURNServer:    flagTURN,
		TURNUser:      flagTURNUser,
		TURNPass:      flagTURNPass,
		ForceRelay:    flagRelay,
		Insecure:      flagInsecure,
		RecordingsDir: flagRecordings,
		AudioOnly:     flagAudioOnly,
	})
	if err != nil {
		return err
	}

	generated := room == ""
	if generated {
		if room, err = signaling.NewRoomID(); err != nil {
			return fmt.Errorf("generate room id: %w", err)
		}
	}

	src, err := newSource()
	if err != nil {
		return err
	}

	spinner := ui.NewConnectionSpinner("Connecting to relay...")
	spinner.Start()
	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		spinner.Error("Could not reach the relay")
		return err
	}
	spinner.Success("Connected to " + cfg.Domain)
	defer conn.Close()

	a, err := newActiveCall(cfg, conn, src, room)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.RoomInfo{RoomID: room, Generated: generated}.View())
	fmt.Println()

	summary, err := a.run(ctx, conn)
	fmt.Println()
	ui.RenderCallSummary(summary)
	if err != nil {
		return err
	}

	if flagProcess && len(summary.Recordings) > 0 {
		client := processing.NewClient(cfg.BackendURL, nil)
		for _, prefix := range summary.Recordings {
			if err := processRecording(ctx, client, prefix); err != nil {
				ui.PrintErrorf("Processing %s failed: %v", filepath.Base(prefix), err)
			}
		}
	}
	return nil
}

// activeCall wires one Session to the relay, the peer connection, the
// control channel, the recorder and the call view. It is the view's
// Controller.
type activeCall struct {
	room     string
	session  *call.Session
	peer     *call.Peer
	media    *media.Manager
	recorder *recording.Recorder
	control  *control.Channel
	view     *ui.CallUI

	// notices decouples the session loop from the view: the view calls
	// back into the session, so the loop never blocks on it.
	notices chan tea.Msg
	ended   chan string

	mu    sync.Mutex
	saved []string
}

func newActiveCall(cfg *config.Config, conn *ConnectionContext, src media.Source, room string) (*activeCall, error) {
	logger := slog.Default().With("room", room)

	opts := call.PeerOptions{Logger: logger}
	if ec, ok := src.(media.EngineConfigurer); ok {
		opts.Engine = ec
	}
	peer, err := call.NewPeer(cfg, opts)
	if err != nil {
		return nil, err
	}

	ctrl, err := control.Open(peer.PC())
	if err != nil {
		peer.Close()
		return nil, err
	}

	a := &activeCall{
		room:     room,
		peer:     peer,
		media:    media.NewManager(src),
		recorder: recording.New(cfg.RecordingsDir),
		control:  ctrl,
		notices:  make(chan tea.Msg, 64),
		ended:    make(chan string, 1),
	}

	constraints := media.DefaultConstraints
	if cfg.AudioOnly {
		constraints = media.Constraints{Audio: true}
	}

	a.session = call.New(peer, conn.Handler, a.media,
		call.WithLogger(logger),
		call.WithConstraints(constraints),
		call.WithRecorder(a.recorder),
		call.WithStateObserver(a.onTransition),
		call.WithDiagnostics(func(e *call.Error) {
			a.notify(ui.NoticeMsg(e.Error()))
		}),
	)
	a.session.Register(conn.Handler)

	conn.Handler.OnMessage(signaling.TypePeerLeft, func(*signaling.Message) {
		a.finishWith("peer left")
	})

	peer.PC().OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Debug("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		go a.recorder.Consume(track)
	})

	ctrl.OnHello(func(p control.HelloPayload) {
		a.notify(ui.NoticeMsg(fmt.Sprintf("peer is on %s %s", p.Client, p.Version)))
	})
	ctrl.OnTrackState(func(kind media.Kind, enabled bool) {
		a.notify(ui.PeerTrackMsg{Kind: string(kind), Enabled: enabled})
	})
	ctrl.OnHangup(func() {
		a.finishWith("peer hung up")
	})

	a.view = ui.NewCallUI(ui.NewCallModel(a, room, !cfg.AudioOnly))
	return a, nil
}

func (a *activeCall) run(ctx context.Context, conn *ConnectionContext) (ui.CallSummary, error) {
	started := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.session.Run(runCtx)
	conn.Start()

	a.view.Start()
	go a.pump(runCtx)

	if err := a.session.Join(ctx, a.room); err != nil {
		a.view.Stop("join failed")
		return a.summary(started, "join failed"), err
	}

	var reason string
	select {
	case <-a.session.Done():
		reason = "call ended"
		if err := a.session.Err(); err != nil {
			reason = "call failed"
		}
	case <-conn.Client.Lost():
		reason = "relay connection lost"
	case reason = <-a.ended:
	case <-ctx.Done():
		reason = "interrupted"
		a.sendHangup()
	}

	tracks := a.media.Tracks()
	a.stopRecording()

	endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer endCancel()
	if err := a.session.End(endCtx); err != nil {
		slog.Warn("call teardown incomplete", "error", err)
	}
	a.view.Stop(reason)

	if len(tracks) > 0 {
		rows := make([]ui.TrackRow, len(tracks))
		for i, t := range tracks {
			rows[i] = ui.TrackRow{Kind: string(t.Kind), ID: t.ID, Enabled: t.Enabled}
		}
		fmt.Println(ui.TrackTableView(rows))
	}

	summary := a.summary(started, reason)
	if err := a.session.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (a *activeCall) summary(started time.Time, reason string) ui.CallSummary {
	st := a.session.Stats()
	mediaDesc := "none"
	acq := a.session.Acquisition()
	switch {
	case acq.Has(media.KindAudio) && acq.Has(media.KindVideo):
		mediaDesc = "audio+video"
	case acq.Has(media.KindAudio):
		mediaDesc = "audio only"
	case acq.Has(media.KindVideo):
		mediaDesc = "video only"
	}
	if acq.Mode == media.ModeDegraded {
		mediaDesc += " (degraded)"
	}

	a.mu.Lock()
	saved := append([]string(nil), a.saved...)
	a.mu.Unlock()

	candidates := fmt.Sprintf("%d sent, %d applied, %d failed, %d dropped",
		st.CandidatesSent, st.CandidatesApplied, st.CandidatesFailed, st.CandidatesDropped)

	return ui.CallSummary{
		Room:       a.room,
		Duration:   time.Since(started),
		Media:      mediaDesc,
		Offers:     st.OffersSent,
		Answers:    st.AnswersSent,
		Candidates: candidates,
		Rejected:   st.Rejected,
		Recordings: saved,
		EndReason:  reason,
	}
}

func (a *activeCall) onTransition(tr call.Transition) {
	a.notify(ui.StateMsg(tr.To.String()))
	if tr.To == call.Joined {
		hasVideo := false
		for _, t := range a.media.Tracks() {
			if t.Kind == media.KindVideo {
				hasVideo = true
			}
		}
		a.notify(ui.MediaMsg{HasVideo: hasVideo})
	}
}

// notify never blocks; the view only loses updates when it is far behind.
func (a *activeCall) notify(msg tea.Msg) {
	select {
	case a.notices <- msg:
	default:
		slog.Debug("call view busy, dropping update", "msg", fmt.Sprintf("%T", msg))
	}
}

func (a *activeCall) pump(ctx context.Context) {
	for {
		select {
		case msg := <-a.notices:
			a.view.Send(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (a *activeCall) finishWith(reason string) {
	select {
	case a.ended <- reason:
	default:
	}
}

func (a *activeCall) sendHangup() {
	if err := a.control.SendHangup(); err != nil && !errors.Is(err, control.ErrNotOpen) {
		slog.Debug("hangup not sent", "error", err)
	}
}

func (a *activeCall) stopRecording() {
	if !a.recorder.Active() {
		return
	}
	prefix, err := a.recorder.Stop()
	if err != nil {
		slog.Warn("recording not closed cleanly", "error", err)
	}
	if prefix != "" {
		a.keep(prefix)
	}
}

func (a *activeCall) keep(prefix string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, prefix)
}

func (a *activeCall) ToggleTrack(kind string) (bool, error) {
	k := media.Kind(kind)
	on, err := a.media.Enabled(k)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.session.SetTrackEnabled(ctx, k, !on); err != nil {
		return on, err
	}
	if err := a.control.SendTrackState(k, !on); err != nil && !errors.Is(err, control.ErrNotOpen) {
		slog.Debug("track state not sent", "kind", kind, "error", err)
	}
	return !on, nil
}

func (a *activeCall) ToggleRecording() (bool, string, error) {
	if a.recorder.Active() {
		prefix, err := a.recorder.Stop()
		if prefix != "" {
			a.keep(prefix)
		}
		return false, prefix, err
	}
	if _, err := a.recorder.Start(); err != nil {
		return false, "", err
	}
	return true, "", nil
}

func (a *activeCall) Hangup() {
	a.sendHangup()
	a.finishWith("hung up")
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom relay domain")
	callCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	callCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	callCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	callCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	callCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	callCmd.Flags().BoolVar(&flagInsecure, "insecure", false, "Use ws:// and http:// (local relay)")
	callCmd.Flags().BoolVarP(&flagAudioOnly, "audio-only", "a", false, "Do not open the camera")
	callCmd.Flags().StringVar(&flagRecordings, "recordings-dir", "", "Directory for call recordings")
	callCmd.Flags().BoolVar(&flagProcess, "process", false, "Upload recordings for transcription when the call ends")
}
