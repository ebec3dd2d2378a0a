package cmd

import (
	"os/signal"
	"syscall"

	"github.com/Digital-Shane/sora/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve episode resolutions over HTTP",
	Long: `Serve exposes /tv-shows/{id}/season/{season}/episode/{episode}?provider=&id= and
answers with the resolution as JSON. A newer request from the same playback surface
cancels the one still in flight.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("serving", zap.String("addr", addr), zap.Strings("providers", enabledNames(a)))
	return server.New(a.resolver, log).ListenAndServe(ctx, addr)
}

func enabledNames(a *app) []string {
	var names []string
	for _, p := range a.registry.Enabled() {
		names = append(names, string(p.Tag()))
	}
	return names
}
