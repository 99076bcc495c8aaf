package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ajit127639/VideoCall/internal/ui"
	"github.com/Ajit127639/VideoCall/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "videocall",
	Short:   "Two-party video calls over WebRTC, with recording and post-call processing",
	Long:    `VideoCall connects two people in a shared room through a small signaling relay and then talks to the peer directly over WebRTC. Calls can be recorded locally, and recordings can be uploaded to the processing backend for transcription and summaries.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
