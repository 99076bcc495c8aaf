package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is what the call view drives.
type Controller interface {
	// ToggleTrack flips a local track and returns its new state.
	ToggleTrack(kind string) (bool, error)
	// ToggleRecording starts or stops recording and returns whether it is
	// now active and, when it stopped, the file prefix.
	ToggleRecording() (bool, string, error)
	Hangup()
}

// StateMsg reports a negotiation state change.
type StateMsg string

// PeerTrackMsg reports a remote mute or unmute.
type PeerTrackMsg struct {
	Kind    string
	Enabled bool
}

// MediaMsg reports which local tracks the call ended up with.
type MediaMsg struct {
	HasVideo bool
}

// NoticeMsg shows a one-line notice.
type NoticeMsg string

// EndedMsg stops the view.
type EndedMsg struct {
	Reason string
}

type tickMsg time.Time

// CallModel is the bubbletea model of the in-call screen.
type CallModel struct {
	ctl     Controller
	room    string
	spinner spinner.Model
	start   time.Time
	now     time.Time

	state      string
	audioOn    bool
	videoOn    bool
	hasVideo   bool
	recording  bool
	peerAudio  bool
	peerVideo  bool
	notice     string
	recordings []string
	ended      string
}

// NewCallModel builds the view for room. hasVideo is false in audio-only mode.
func NewCallModel(ctl Controller, room string, hasVideo bool) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	now := time.Now()
	return &CallModel{
		ctl:       ctl,
		room:      room,
		spinner:   s,
		start:     now,
		now:       now,
		state:     "joining",
		audioOn:   true,
		videoOn:   hasVideo,
		hasVideo:  hasVideo,
		peerAudio: true,
		peerVideo: true,
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.state = string(msg)

	case PeerTrackMsg:
		if msg.Kind == "video" {
			m.peerVideo = msg.Enabled
		} else {
			m.peerAudio = msg.Enabled
		}

	case MediaMsg:
		m.hasVideo = msg.HasVideo
		m.videoOn = msg.HasVideo

	case NoticeMsg:
		m.notice = string(msg)

	case EndedMsg:
		m.ended = msg.Reason
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "m":
		on, err := m.ctl.ToggleTrack("audio")
		if err != nil {
			m.notice = "mic: " + err.Error()
			break
		}
		m.audioOn = on
		m.notice = ""

	case "v":
		if !m.hasVideo {
			m.notice = "camera unavailable, audio-only call"
			break
		}
		on, err := m.ctl.ToggleTrack("video")
		if err != nil {
			m.notice = "camera: " + err.Error()
			break
		}
		m.videoOn = on
		m.notice = ""

	case "r":
		active, prefix, err := m.ctl.ToggleRecording()
		if err != nil {
			m.notice = "recording: " + err.Error()
			break
		}
		m.recording = active
		if !active && prefix != "" {
			m.recordings = append(m.recordings, prefix)
			m.notice = "saved " + prefix
		}

	case "q", "ctrl+c":
		m.ctl.Hangup()
		m.ended = "hung up"
		return m, tea.Quit
	}
	return m, nil
}

func onOff(label string, on bool) string {
	if on {
		return SuccessStyle.Render(label)
	}
	return OffStyle.Render(label)
}

func (m *CallModel) View() string {
	if m.ended != "" {
		return ""
	}
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Room %s", IconConnect, m.room)))
	b.WriteString("\n")

	elapsed := m.now.Sub(m.start).Round(time.Second)
	if m.state == "connected" {
		b.WriteString(fmt.Sprintf("%s  %s %s\n\n", StatusStyle.Render(m.state), IconTime, elapsed))
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.state))
	}

	video := onOff("camera", m.videoOn)
	if !m.hasVideo {
		video = MutedStyle.Render("camera n/a")
	}
	tracks := fmt.Sprintf("You:     %s %s  %s %s\n", IconMic, onOff("mic", m.audioOn), IconCamera, video) +
		fmt.Sprintf("%s Peer:  %s %s  %s %s", IconPeer, IconMic, onOff("mic", m.peerAudio), IconCamera, onOff("camera", m.peerVideo))
	if m.recording {
		tracks += "\n" + ErrorStyle.Render(IconRecord+" recording")
	}
	b.WriteString(BoxStyle.Render(tracks) + "\n")
	if m.notice != "" {
		b.WriteString("\n" + WarningStyle.Render(m.notice) + "\n")
	}

	b.WriteString(FooterStyle.Render("m mic · v camera · r record · q hang up"))
	return b.String()
}

// Recordings lists the prefixes saved during the call.
func (m *CallModel) Recordings() []string { return m.recordings }

// CallUI runs a CallModel in its own goroutine.
type CallUI struct {
	program *tea.Program
	model   *CallModel
	wg      sync.WaitGroup
}

func NewCallUI(model *CallModel, opts ...tea.ProgramOption) *CallUI {
	return &CallUI{program: tea.NewProgram(model, opts...), model: model}
}

func (u *CallUI) Start() {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if _, err := u.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Send forwards msg to the model.
func (u *CallUI) Send(msg tea.Msg) {
	u.program.Send(msg)
}

// Wait blocks until the view quits.
func (u *CallUI) Wait() {
	u.wg.Wait()
}

// Stop ends the view with reason and waits for it.
func (u *CallUI) Stop(reason string) {
	u.program.Send(EndedMsg{Reason: reason})
	u.wg.Wait()
}

func (u *CallUI) Model() *CallModel { return u.model }
