package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pacenotes/internal/audio"
	"pacenotes/internal/bootstrap"
	"pacenotes/internal/domain"
	"pacenotes/internal/headless"
	"pacenotes/internal/output"
	"pacenotes/internal/ports"
)

func NewHeadlessCmd(deps *Dependencies) *cobra.Command {
	var port int
	var format string
	var noBeep bool

	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Run without a window, capturing the microphone with ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cmd.Flags().Changed("port") {
				cfg.Control.Port = port
			}
			if cmd.Flags().Changed("format") {
				cfg.Transcode.Format = format
			}
			if noBeep {
				cfg.Capture.Beep = false
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := deps.Logger.Named("headless")
			formatter := output.NewFormatter(cmd.OutOrStdout())

			var cue headless.CueFunc = func(result domain.ClipResult) error {
				formatter.ClipSaved(result)
				return nil
			}
			if cfg.Capture.Beep {
				cue = func(result domain.ClipResult) error {
					formatter.ClipSaved(result)
					return headless.Beep(result)
				}
			}

			surface := headless.NewSurface(
				audio.NewFFMPEGCapture(cfg.Transcode.FFmpegCommand, logger),
				ports.AudioConfig{
					SampleRate:  cfg.Capture.SampleRate,
					Channels:    cfg.Capture.Channels,
					InputFormat: cfg.Capture.InputFormat,
					InputDevice: cfg.Capture.InputDevice,
				},
				cue,
				logger,
			)

			services, err := bootstrap.Build(cfg, deps.Logger, surface)
			if err != nil {
				return err
			}
			surface.Attach(services.Controller)

			formatter.Listening(cfg.Control.Address())
			return services.Run(ctx, surface.Run)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Control channel port (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: opus, vorbis, mp3, aac, webm, flac, wav")
	cmd.Flags().BoolVar(&noBeep, "no-beep", false, "Do not beep when a pacenote is saved")

	return cmd
}
