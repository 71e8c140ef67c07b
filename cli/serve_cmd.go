package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/server"
)

func ServeCommand() *cobra.Command {
	var serverConfigPath string
	var port int
	var outputDir string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the receiving server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadServerConfig(serverConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			if port != 0 {
				cfg.Port = port
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in server config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, nil)
			if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			if ctx.Err() != nil {
				internal.Info("server shutting down", internal.Fields{
					internal.FieldSession: cfg.ServerId,
				})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverConfigPath, "server-config", "", "Path to the server config file (TOML)")
	cmd.Flags().IntVar(&port, "port", 0, "Control port to listen on (overrides config)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for received files (overrides config)")

	return cmd
}
