package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yeti47/securitycam/app"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/detection"
)

// Command returns the command that runs every configured camera until interrupted
func Command(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the configured cameras",
		Long: `Watch the configured cameras and react to what they see.

Every camera escalates through four levels: idle, present, concerning and alarming.
Level 2 stores low quality snapshots, level 3 high quality snapshots and raises a mail
alarm, level 4 records video continuously. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logLevel, err := logging.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger, closer := logging.CreateLogger(logLevel, cfg.LogPath, "securitycam")
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCameras(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.Int("frame-skip", 0, "Run the detector on every n-th frame")
	flags.String("detector", "", "Detector: "+detection.KindList())
	flags.String("policy", "", "Level policy: threshold or trend")
	flags.String("output", "", "Directory for snapshots and recordings")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Int("web-port", 0, "Port of the web API")
	flags.String("journal", "", "Path of the SQLite event journal")

	return cmd
}

func runCameras(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	logger.Info("Starting securitycam", "cameras", len(cfg.Cameras), "frame_skip", cfg.FrameSkip,
		"detector", cfg.Detector, "policy", cfg.Policy)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Shutdown finished with errors", "error", err)
		return err
	}

	logger.Info("Stopped")
	return nil
}
