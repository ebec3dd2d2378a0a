package cmd

import (
	"fmt"
	"os"

	"github.com/Digital-Shane/sora/internal/config"
	"github.com/Digital-Shane/sora/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sora",
	Short: "Resolve and play TV episodes from several stream sources",
	Long: `sora turns a catalog series id, a season and an episode into something playable.
It joins catalog metadata with episode streams from the configured sources, picks
default quality and subtitle tracks, and either plays the episode, prints the
resolution, or serves it over HTTP.

When no source can supply a stream, sora falls back to embeddable third party players.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	logLevel  string
	logFormat string
	locale    string
	userID    string

	cfg *config.Config
	log *zap.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&locale, "locale", "l", "", "Viewer locale used to pick a translation, e.g. de-DE")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User id recorded in watch history (overrides config)")
}

// setup loads the configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if locale != "" {
		loaded.Locale = locale
	}
	if userID != "" {
		loaded.UserID = userID
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	built, err := logger.New(logger.Config{Level: loaded.LogLevel, Format: loaded.LogFormat})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	cfg, log = loaded, built
	return nil
}
