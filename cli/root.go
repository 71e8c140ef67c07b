package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JeremyKimotho/StopWait/internal"
)

type ctxKey string

const clientCfgKey ctxKey = "clientConfig"
const clientCfgPathKey ctxKey = "clientConfigPath"

func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "stopwait",
		Short: "stopwait is a stop-and-wait file transfer tool",
		Long:  `stopwait transfers a single file over UDP with stop-and-wait reliability: a TCP handshake negotiates the session, then every data segment is acknowledged before the next one leaves. Ships both the sending client and the receiving server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadClientConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load client config: %w", err)
			}

			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			ctx := context.WithValue(cmd.Context(), clientCfgKey, cfg)
			ctx = context.WithValue(ctx, clientCfgPathKey, configPath)
			cmd.SetContext(ctx)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to client config file (TOML)")

	rootCmd.AddCommand(SendCommand())
	rootCmd.AddCommand(ServeCommand())
	rootCmd.AddCommand(ConfigCommand())

	return rootCmd
}

// Helper for subcommands to pull the loaded client config out of cmd.Context.
func getClientConfig(cmd *cobra.Command) *internal.ClientConfig {
	if v := cmd.Context().Value(clientCfgKey); v != nil {
		if cfg, ok := v.(*internal.ClientConfig); ok {
			return cfg
		}
	}
	return nil
}

func getClientConfigPath(cmd *cobra.Command) string {
	if v := cmd.Context().Value(clientCfgPathKey); v != nil {
		if path, ok := v.(string); ok {
			return path
		}
	}
	return ""
}
