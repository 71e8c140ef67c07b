package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JeremyKimotho/StopWait/cli/output"
	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/metrics"
	"github.com/JeremyKimotho/StopWait/pkg/sender"
)

func SendCommand() *cobra.Command {
	var serverHost string
	var serverPort int
	var timeoutMs int
	var showMetrics bool

	cmd := &cobra.Command{
		Use:          "send <file>",
		Short:        "Send a file to a stopwait server",
		Aliases:      []string{"put"},
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getClientConfig(cmd)
			if cfg == nil {
				return fmt.Errorf("client config missing from command context")
			}

			host := cfg.ServerHost
			if serverHost != "" {
				host = serverHost
			}
			port := cfg.ServerPort
			if serverPort != 0 {
				port = serverPort
			}
			timeout := cfg.AckTimeoutMs
			if timeoutMs != 0 {
				timeout = timeoutMs
			}

			internal.Info("starting transfer", internal.Fields{
				internal.FieldFile:    args[0],
				internal.FieldServer:  host,
				internal.FieldPort:    port,
				internal.FieldTimeout: timeout,
			})

			collector := metrics.NewTransferCollector("")
			snd := sender.New(sender.Options{
				Timeout:    time.Duration(timeout) * time.Millisecond,
				StartDelay: time.Duration(cfg.RetransmitStartDelayMs) * time.Millisecond,
			}, collector)

			if err := snd.Send(cmd.Context(), host, port, args[0]); err != nil {
				return err
			}

			printer := output.NewPrinter()
			printer.Success("transfer complete", nil)
			if showMetrics {
				output.PrintTransferSummary(printer, collector.Snapshot())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverHost, "server", "", "Server host name (overrides config)")
	cmd.Flags().IntVar(&serverPort, "port", 0, "Server control port (overrides config)")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "Retransmission timeout in milliseconds (overrides config)")
	cmd.Flags().BoolVar(&showMetrics, "metrics", true, "Print transfer statistics after completion")

	return cmd
}
