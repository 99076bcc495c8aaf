package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Ajit127639/VideoCall/internal/config"
	"github.com/Ajit127639/VideoCall/internal/processing"
	"github.com/Ajit127639/VideoCall/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagBackend         string
	flagBackendHost     string
	flagBackendInsecure bool
	flagUploadKind      string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Send recordings and text to the processing backend",
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a recording and print its stored name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateUploadKind(flagUploadKind); err != nil {
			return err
		}
		client, err := backendClient()
		if err != nil {
			return err
		}
		stored, err := client.Upload(cmd.Context(), args[0], flagUploadKind)
		if err != nil {
			return err
		}
		ui.PrintSuccessf("Uploaded as %s", stored)
		return nil
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <stored-file>",
	Short: "Transcribe a previously uploaded recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := backendClient()
		if err != nil {
			return err
		}
		text, err := client.Transcribe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <text...>",
	Short: "Summarize text and extract keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := backendClient()
		if err != nil {
			return err
		}
		text := strings.Join(args, " ")
		sum, err := client.Summarize(cmd.Context(), text)
		if err != nil {
			return err
		}
		ui.RenderProcessingResult(ui.ProcessingResult{
			File:       "text",
			Transcript: text,
			Summary:    sum.Summary,
			Keywords:   sum.Keywords,
		})
		return nil
	},
}

func validateUploadKind(kind string) error {
	switch kind {
	case "audio", "video":
		return nil
	}
	return fmt.Errorf("invalid upload kind %q: want audio or video", kind)
}

func backendClient() (*processing.Client, error) {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagBackendHost,
		BackendURL: flagBackend,
		Insecure:   flagBackendInsecure,
	})
	if err != nil {
		return nil, err
	}
	return processing.NewClient(cfg.BackendURL, nil), nil
}

// processRecording uploads the audio half of a recording, transcribes it and
// prints the summary.
func processRecording(ctx context.Context, client *processing.Client, prefix string) error {
	path := prefix + ".ogg"
	spinner := ui.NewWaitingSpinner("Uploading " + filepath.Base(path) + "...")
	spinner.Start()

	stored, err := client.Upload(ctx, path, "audio")
	if err != nil {
		spinner.Error("Upload failed")
		return fmt.Errorf("process %s: %w", path, err)
	}

	spinner.SetMessage("Transcribing " + stored + "...")
	text, err := client.Transcribe(ctx, stored)
	if err != nil {
		spinner.Error("Transcription failed")
		return fmt.Errorf("process %s: %w", path, err)
	}

	spinner.SetMessage("Summarizing...")
	sum, err := client.Summarize(ctx, text)
	if err != nil {
		spinner.Error("Summary failed")
		return fmt.Errorf("process %s: %w", path, err)
	}
	spinner.Success("Processed " + stored)

	ui.RenderProcessingResult(ui.ProcessingResult{
		File:       stored,
		Transcript: text,
		Summary:    sum.Summary,
		Keywords:   sum.Keywords,
	})
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.AddCommand(uploadCmd, transcribeCmd, summarizeCmd)

	processCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Backend base URL")
	processCmd.PersistentFlags().StringVarP(&flagBackendHost, "domain", "d", "", "Custom backend domain")
	processCmd.PersistentFlags().BoolVar(&flagBackendInsecure, "insecure", false, "Use http:// for the backend")
	uploadCmd.Flags().StringVarP(&flagUploadKind, "kind", "k", "audio", "Upload kind (audio or video)")
}
