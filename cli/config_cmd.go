package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JeremyKimotho/StopWait/cli/output"
	"github.com/JeremyKimotho/StopWait/internal"
)

func ConfigCommand() *cobra.Command {
	var serverConfigPath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update stopwait configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&serverConfigPath, "server-config", "", "Path to the stopwait server config file")
	cmd.AddCommand(configShowCommand(&serverConfigPath))
	cmd.AddCommand(configSetCommand(&serverConfigPath))
	return cmd
}

func configShowCommand(serverConfigPath *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved client or server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := output.NewPrinter()
			switch strings.ToLower(strings.TrimSpace(target)) {
			case "", "client":
				cfg := getClientConfig(cmd)
				if cfg == nil {
					return fmt.Errorf("client config missing from command context")
				}
				printer.Info("client configuration", map[string]any{
					"server_host":               cfg.ServerHost,
					"server_port":               cfg.ServerPort,
					"ack_timeout_ms":            cfg.AckTimeoutMs,
					"retransmit_start_delay_ms": cfg.RetransmitStartDelayMs,
					"log_level":                 cfg.LogLevel,
				})
				return nil
			case "server":
				cfg, err := internal.LoadServerConfig(*serverConfigPath)
				if err != nil {
					return err
				}
				printer.Info("server configuration", map[string]any{
					"port":                 cfg.Port,
					"output_dir":           cfg.OutputDir,
					"udp_read_buffer_size": cfg.UDPReadBufferSize,
					"server_id":            cfg.ServerId,
					"log_level":            cfg.LogLevel,
				})
				return nil
			default:
				return fmt.Errorf("--target must be either client or server")
			}
		},
	}
	cmd.Flags().StringVar(&target, "target", "client", "Which config to show: client or server")
	return cmd
}

func configSetCommand(serverConfigPath *string) *cobra.Command {
	var target string

	var clientServerHost string
	var clientServerPort int
	var clientTimeoutMs int
	var clientLogLevel string

	var serverPort int
	var serverOutputDir string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the client or server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := strings.ToLower(strings.TrimSpace(target))
			if scope == "" {
				scope = "client"
			}
			switch scope {
			case "client":
				return updateClientConfig(cmd, clientServerHost, clientServerPort, clientTimeoutMs, clientLogLevel)
			case "server":
				return updateServerConfig(*serverConfigPath, cmd.Flags(), serverPort, serverOutputDir, clientLogLevel)
			default:
				return fmt.Errorf("--target must be either client or server")
			}
		},
	}

	cmd.Flags().StringVar(&target, "target", "client", "Which config to update: client or server")
	cmd.Flags().StringVar(&clientServerHost, "server-host", "", "Client mode: default server host")
	cmd.Flags().IntVar(&clientServerPort, "server-port", 0, "Client mode: default server control port")
	cmd.Flags().IntVar(&clientTimeoutMs, "ack-timeout-ms", 0, "Client mode: retransmission timeout in milliseconds")
	cmd.Flags().StringVar(&clientLogLevel, "log-level", "", "Log level for the selected config")
	cmd.Flags().IntVar(&serverPort, "port", 0, "Server mode: control port")
	cmd.Flags().StringVar(&serverOutputDir, "output-dir", "", "Server mode: directory for received files")

	return cmd
}

func updateClientConfig(cmd *cobra.Command, host string, port, timeoutMs int, logLevel string) error {
	cfg := getClientConfig(cmd)
	if cfg == nil {
		return fmt.Errorf("client config missing from command context")
	}

	changed := false
	if host != "" {
		cfg.ServerHost = host
		changed = true
	}
	if port != 0 {
		cfg.ServerPort = port
		changed = true
	}
	if timeoutMs != 0 {
		cfg.AckTimeoutMs = timeoutMs
		changed = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to update: pass at least one client flag")
	}

	path, err := cfg.Save(getClientConfigPath(cmd))
	if err != nil {
		return err
	}
	internal.Info("client config updated", internal.Fields{
		internal.ConfigPath: path,
	})
	return nil
}

func updateServerConfig(configPath string, flags *pflag.FlagSet, port int, outputDir, logLevel string) error {
	cfg, err := internal.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	changed := false
	if flags.Changed("port") {
		cfg.Port = port
		changed = true
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
		changed = true
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to update: pass at least one server flag")
	}

	path, err := cfg.Save(configPath)
	if err != nil {
		return err
	}
	internal.Info("server config updated", internal.Fields{
		internal.ConfigPath: path,
	})
	return nil
}
