package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/relay"
	"github.com/Ajit127639/VideoCall/internal/server"
	"github.com/Ajit127639/VideoCall/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagListen    string
	flagUploadDir string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay and processing backend",
	Long: `Serve the room relay on /ws together with the processing endpoints
(/upload, /transcribe, /summarize) and a /health check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd.Context(), config.LoadServer(flagListen, flagUploadDir))
	},
}

func runRelay(ctx context.Context, cfg config.ServerConfig) error {
	hub := relay.NewHub()
	go hub.Run(ctx)

	router, err := server.NewRouter(hub, server.Options{UploadDir: cfg.UploadDir})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	ui.PrintSuccessf("Relay listening on %s (uploads in %s)", cfg.ListenAddr, cfg.UploadDir)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down relay")
	ui.PrintInfof("Relay on %s shutting down", cfg.ListenAddr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default :5000, or $LISTEN_ADDR)")
	relayCmd.Flags().StringVar(&flagUploadDir, "upload-dir", "", "Directory for uploaded recordings")
}
