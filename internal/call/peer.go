package call

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/logging"
	"github.com/Ajit127639/VideoCall/internal/media"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is what a Session drives. Peer implements it over pion;
// tests substitute fakes.
type PeerConnection interface {
	media.TrackAdder
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnLocalCandidate registers fn for locally gathered candidates.
	// fn runs on a pion goroutine.
	OnLocalCandidate(fn func(webrtc.ICECandidateInit))
	Close() error
}

// receiver is implemented by connections that can negotiate receive-only
// media for a kind we have no local track of.
type receiver interface {
	Receive(kind media.Kind) error
}

// PeerOptions tunes NewPeer.
type PeerOptions struct {
	// Engine registers codecs. Default pion codecs when nil.
	Engine media.EngineConfigurer
	Logger *slog.Logger
}

// Peer adapts *webrtc.PeerConnection to PeerConnection.
type Peer struct {
	pc *webrtc.PeerConnection
}

// NewPeer builds a pion peer connection from cfg's ICE settings.
func NewPeer(cfg *config.Config, opts PeerOptions) (*Peer, error) {
	m := &webrtc.MediaEngine{}
	var err error
	if opts.Engine != nil {
		err = opts.Engine.ConfigureMediaEngine(m)
	} else {
		err = m.RegisterDefaultCodecs()
	}
	if err != nil {
		return nil, newError("register codecs", ErrNegotiation, err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, newError("register interceptors", ErrNegotiation, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	se := webrtc.SettingEngine{LoggerFactory: logging.NewPionFactory(logger)}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(Configuration(cfg))
	if err != nil {
		return nil, newError("create peer connection", ErrNegotiation, err)
	}
	return &Peer{pc: pc}, nil
}

// Configuration derives ICE servers and transport policy from cfg.
func Configuration(cfg *config.Config) webrtc.Configuration {
	var servers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	turn := cfg.GetTURNServers()
	if turn != nil {
		user, pass := cfg.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   user,
			Credential: pass,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turn != nil && (cfg.ForceRelay || restrictiveNetwork()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}

// PC exposes the underlying connection for track and state callbacks.
func (p *Peer) PC() *webrtc.PeerConnection { return p.pc }

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *Peer) SetLocalDescription(d webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(d)
}

func (p *Peer) SetRemoteDescription(d webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(d)
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *Peer) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

func (p *Peer) AddTrack(t webrtc.TrackLocal) (media.Sender, error) {
	sender, err := p.pc.AddTrack(t)
	if err != nil {
		return nil, err
	}
	go drainRTCP(sender)
	return sender, nil
}

// Receive adds a receive-only transceiver for kind.
func (p *Peer) Receive(kind media.Kind) error {
	codecType := webrtc.RTPCodecTypeAudio
	if kind == media.KindVideo {
		codecType = webrtc.RTPCodecTypeVideo
	}
	_, err := p.pc.AddTransceiverFromKind(codecType, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("receive %s: %w", kind, err)
	}
	return nil
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

// drainRTCP reads RTCP so interceptors run; it returns when the sender stops.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// restrictiveNetwork guesses whether a VPN or carrier-grade NAT sits in the
// path, where direct candidates rarely connect.
func restrictiveNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		for _, hint := range []string{"tun", "tap", "wg", "ppp", "warp"} {
			if strings.Contains(name, hint) {
				return true
			}
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip, ok := netip.AddrFromSlice(ipnet.IP); ok && cgnat.Contains(ip.Unmap()) {
				return true
			}
		}
	}
	return false
}
