package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default configuration values (production)
const (
	DefaultDomain        = "videocall-relay.onrender.com"
	DefaultSTUN          = "stun:stun.l.google.com:19302"
	DefaultTURN          = "" // TURN is opt-in
	DefaultRecordingsDir = "recordings"
	DefaultListenAddr    = ":5000"
	DefaultUploadDir     = "uploads"
)

// Config holds client configuration.
type Config struct {
	// Domain is the relay/backend host (optionally with port).
	Domain string

	// Insecure switches ws/http in place of wss/https, for local relays.
	Insecure bool

	// WebSocketURL and BackendURL are derived from Domain unless overridden.
	WebSocketURL string
	BackendURL   string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	RecordingsDir string
	AudioOnly     bool
}

// Options carries CLI flag overrides. Zero values mean "not set".
type Options struct {
	Domain        string
	BackendURL    string
	STUNServer    string
	TURNServer    string
	TURNUser      string
	TURNPass      string
	ForceRelay    bool
	Insecure      bool
	RecordingsDir string
	AudioOnly     bool
}

// lookup is swapped in tests.
var lookup = os.LookupEnv

// pick returns the flag value, then the env var, then def.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v, ok := lookup(env); ok && v != "" {
		return v
	}
	return def
}

func pickBool(flag bool, env string) (bool, error) {
	if flag {
		return true, nil
	}
	v, ok := lookup(env)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	return b, nil
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	insecure, err := pickBool(opts.Insecure, "INSECURE")
	if err != nil {
		return nil, err
	}
	forceRelay, err := pickBool(opts.ForceRelay, "FORCE_RELAY")
	if err != nil {
		return nil, err
	}
	audioOnly, err := pickBool(opts.AudioOnly, "AUDIO_ONLY")
	if err != nil {
		return nil, err
	}

	domain := strings.TrimSuffix(pick(opts.Domain, "DOMAIN", DefaultDomain), "/")
	if strings.Contains(domain, "://") {
		return nil, fmt.Errorf("domain %q must be a host, not a URL", domain)
	}

	wsScheme, httpScheme := "wss", "https"
	if insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	cfg := &Config{
		Domain:        domain,
		Insecure:      insecure,
		WebSocketURL:  fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		BackendURL:    strings.TrimSuffix(pick(opts.BackendURL, "BACKEND_URL", fmt.Sprintf("%s://%s", httpScheme, domain)), "/"),
		STUNServer:    pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:    pick(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:      pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:      pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ForceRelay:    forceRelay,
		RecordingsDir: pick(opts.RecordingsDir, "RECORDINGS_DIR", DefaultRecordingsDir),
		AudioOnly:     audioOnly,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ServerConfig configures the relay/backend process.
type ServerConfig struct {
	ListenAddr string
	UploadDir  string
}

// LoadServer applies the same flag > env > default order for the relay.
func LoadServer(listenAddr, uploadDir string) ServerConfig {
	return ServerConfig{
		ListenAddr: pick(listenAddr, "LISTEN_ADDR", DefaultListenAddr),
		UploadDir:  pick(uploadDir, "UPLOAD_DIR", DefaultUploadDir),
	}
}
