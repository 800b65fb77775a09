package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pacenotes/internal/config"
	"pacenotes/internal/version"
)

type Dependencies struct {
	Config config.Config
	Logger *zap.Logger
	// RunGUI starts the desktop window and blocks until it closes.
	RunGUI func() error
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pacenotes",
		Short: "Record rally pacenotes driven by the simulator",
		Long:  "Pacenotes listens for the simulator on a loopback control channel, records a voice note between record_start and record_stop, and saves each one as a compressed clip next to the mission.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.RunGUI()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewHeadlessCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Full())
		},
	}
}
