package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/refract/internal/cache"
	"github.com/conneroisu/refract/internal/config"
	"github.com/conneroisu/refract/internal/logging"
	"github.com/conneroisu/refract/internal/plugin"
	"github.com/conneroisu/refract/internal/server"
	"github.com/conneroisu/refract/internal/transform"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server with live refresh",
	Long: `Start the development server. Component sources are compiled through the
transform cache on demand, HTML documents receive the refresh bootstrap,
and file changes are pushed to connected browsers.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})

	store := cache.NewStore(logger)
	transformer := transform.NewExecTransformer(cfg.Transform.Command, cfg.Transform.Args)
	pipeline := transform.NewPipeline(store, transformer, cfg.Transform.Target, logger)
	adapter := plugin.New(cfg, plugin.ModeServe, store, pipeline, transformer, logger)

	srv, err := server.New(cfg, adapter, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
