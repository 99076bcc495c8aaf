package cmd

import (
	"context"
	"fmt"

	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/dns"
	"github.com/Ajit127639/VideoCall/internal/signaling"
)

// ConnectionContext is a live relay connection.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
}

// NewConnectionContext dials the relay. Register handlers before Start.
func NewConnectionContext(ctx context.Context, cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL, dns.NewResolver())
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	return &ConnectionContext{
		Client:  client,
		Handler: signaling.NewHandler(client),
		Config:  cfg,
	}, nil
}

// Start dispatches incoming messages on a new goroutine.
func (c *ConnectionContext) Start() {
	go c.Handler.Start()
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
