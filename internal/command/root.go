package command

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"PaperDigest/internal/app"
	"PaperDigest/internal/config"
	"PaperDigest/internal/logging"
)

var (
	configPath string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCommand builds the paperdigest CLI.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "paperdigest",
		Short:         "Daily journal digest: fetch, filter, summarize, notify",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Missing .env is the normal case outside local development.
			_ = godotenv.Load()

			if configPath != "" {
				os.Setenv("PAPER_DIGEST_CONFIG", configPath)
			}
			cfg = config.Load()

			if cfg.Logging.File != "" {
				logger = logging.NewWithFile(cfg.Logging.Level, logging.FileOptions{
					Path:       cfg.Logging.File,
					MaxSizeMB:  cfg.Logging.MaxSizeMB,
					MaxBackups: cfg.Logging.MaxBackups,
					MaxAgeDays: cfg.Logging.MaxAgeDays,
					Compress:   cfg.Logging.Compress,
				})
			} else {
				logger = logging.New(cfg.Logging.Level)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newRunCommand(),
		newServeCommand(),
		newAnalyzeCommand(),
		newAutoUpdateCommand(),
		newQueueCommand(),
		newArchiveCommand(),
		newVersionCommand(),
	)
	return root
}

func application() *app.Application {
	return app.New(cfg, logger)
}
