package cli

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"pacenotes/internal/audio"
	"pacenotes/internal/output"
)

const doctorEncodeTimeout = 15 * time.Second

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			f := output.NewFormatter(cmd.OutOrStdout())
			ok := true

			if cfg.File != "" {
				f.SetupCheck("Config file", true, cfg.File)
			} else {
				f.SetupCheck("Config file", true, "none, using defaults")
			}

			ffmpegPath, err := exec.LookPath(cfg.Transcode.FFmpegCommand)
			if err != nil {
				f.SetupCheck("ffmpeg", false, fmt.Sprintf("%q not found. Install ffmpeg or set PACENOTES_FFMPEG_COMMAND", cfg.Transcode.FFmpegCommand))
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, ffmpegPath)
			}

			format, err := audio.FormatFor(cfg.Transcode.Format, cfg.Transcode.Bitrate)
			if err != nil {
				f.SetupCheck("Output format", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("Output format", true, fmt.Sprintf("%s (%s in %s)", format.Name, format.Codec, format.Container))
			}

			if ffmpegPath != "" && format.Codec != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), doctorEncodeTimeout)
				transcoder := audio.NewFFMPEGTranscoder(ffmpegPath, deps.Logger)
				err := audio.Prewarm(ctx, transcoder, cfg.Transcode.PrewarmSample, format, deps.Logger)
				cancel()
				if err != nil {
					f.SetupCheck("Encoder", false, err.Error())
					ok = false
				} else {
					f.SetupCheck("Encoder", true, format.Codec+" works")
				}
			}

			address := cfg.Control.Address()
			if ln, err := net.Listen("tcp", address); err != nil {
				f.SetupCheck("Control port", false, fmt.Sprintf("%s unavailable: %v", address, err))
				ok = false
			} else {
				_ = ln.Close()
				f.SetupCheck("Control port", true, address+" free")
			}

			if cfg.Mirror.Enabled() {
				f.SetupCheck("Status mirror", true, "ws://"+cfg.Mirror.Address()+"/ws")
			} else {
				f.SetupCheck("Status mirror", true, "disabled")
			}

			f.SetupCheck("Log directory", true, cfg.Log.Dir)

			if ok {
				f.Success("\nAll prerequisites met. Ready to record!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
