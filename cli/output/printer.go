package output

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/JeremyKimotho/StopWait/pkg/metrics"
)

// Printer renders structured CLI messages without relying on the logger.
type Printer struct {
	mu sync.Mutex
}

func NewPrinter() *Printer {
	return &Printer{}
}

func (p *Printer) Info(msg string, fields map[string]any) {
	p.printWith(pterm.Info, msg, fields)
}

func (p *Printer) Success(msg string, fields map[string]any) {
	p.printWith(pterm.Success, msg, fields)
}

func (p *Printer) Error(msg string, fields map[string]any) {
	p.printWith(pterm.Error, msg, fields)
}

func (p *Printer) Warn(msg string, fields map[string]any) {
	p.printWith(pterm.Warning, msg, fields)
}

func (p *Printer) printWith(logger pterm.PrefixPrinter, msg string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(fields) == 0 {
		logger.Println(msg)
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	logger.Println(msg)
	for _, k := range keys {
		pterm.Printf("  %s: %v\n", k, fields[k])
	}
}

// PrintTransferSummary renders the end-of-transfer statistics block.
func PrintTransferSummary(p *Printer, s metrics.TransferSnapshot) {
	p.Info("transfer statistics", map[string]any{
		"elapsed":         s.Elapsed.Round(time.Millisecond).String(),
		"bytes_sent":      s.BytesSent,
		"retransmissions": s.Retransmissions,
		"acks_received":   s.AcksReceived,
		"goodput_mbps":    fmt.Sprintf("%.2f", s.GoodputMbps),
		"throughput_mbps": fmt.Sprintf("%.2f", s.ThroughputMbps),
		"rtt_ms":          fmt.Sprintf("%.2f", s.RttMs),
	})
}
