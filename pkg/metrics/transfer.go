package metrics

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace  = "stopwait"
	subsystemTransfer = "transfer"
)

// TransferCollector tracks one transfer's send/ack activity and exposes it
// through Prometheus compatible collectors.
type TransferCollector struct {
	mu        sync.RWMutex
	namespace string
	registry  *prometheus.Registry

	startTime       time.Time
	bytesSent       uint64
	bytesRetransmit uint64
	diskReadBytes   uint64
	diskWriteBytes  uint64
	packetsSent     uint64
	acksReceived    uint64
	retransmissions uint64
	ackSamples      uint64
	lastAckMs       float64
	rttAvgMs        float64
	jitterMs        float64
}

// TransferSnapshot represents a point-in-time view of the collected metrics.
type TransferSnapshot struct {
	Elapsed         time.Duration
	BytesSent       uint64
	BytesRetransmit uint64
	DiskReadBytes   uint64
	DiskWriteBytes  uint64
	PacketsSent     uint64
	AcksReceived    uint64
	Retransmissions uint64
	ThroughputBps   float64
	GoodputBps      float64
	ThroughputMbps  float64
	GoodputMbps     float64
	RetransmitRate  float64
	RttMs           float64
	JitterMs        float64
}

// NewTransferCollector creates a collector and wires up prometheus collectors.
func NewTransferCollector(namespace string) *TransferCollector {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	tc := &TransferCollector{
		namespace: namespace,
		registry:  reg,
	}
	tc.registerMetrics()
	return tc
}

// Registry returns the prometheus registry managed by this collector.
func (c *TransferCollector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveSend records one segment transmission. When retransmit is true the
// bytes are accounted separately to derive goodput vs throughput.
func (c *TransferCollector) ObserveSend(bytes int, retransmit bool) {
	if bytes < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureStartTimeLocked()
	c.packetsSent++
	if retransmit {
		c.bytesRetransmit += uint64(bytes)
		c.retransmissions++
		return
	}
	c.bytesSent += uint64(bytes)
}

// ObserveAck records one acknowledgment datagram and its round-trip time,
// measured from the first transmission of the acked segment.
func (c *TransferCollector) ObserveAck(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureStartTimeLocked()
	c.acksReceived++
	if d <= 0 {
		return
	}
	sample := float64(d) / float64(time.Millisecond)
	if c.ackSamples == 0 {
		c.rttAvgMs = sample
		c.jitterMs = 0
	} else {
		diff := math.Abs(sample - c.lastAckMs)
		if c.jitterMs == 0 {
			c.jitterMs = diff
		} else {
			c.jitterMs = (c.jitterMs*0.7 + diff*0.3)
		}
		c.rttAvgMs = (c.rttAvgMs*float64(c.ackSamples) + sample) / float64(c.ackSamples+1)
	}
	c.lastAckMs = sample
	c.ackSamples++
}

// ObserveDiskRead records bytes sourced from the local file.
func (c *TransferCollector) ObserveDiskRead(bytes int) {
	if bytes <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureStartTimeLocked()
	c.diskReadBytes += uint64(bytes)
}

// ObserveDiskWrite records bytes written to the destination file.
func (c *TransferCollector) ObserveDiskWrite(bytes int) {
	if bytes <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureStartTimeLocked()
	c.diskWriteBytes += uint64(bytes)
}

// Snapshot creates a read-only view of the collected metrics.
func (c *TransferCollector) Snapshot() TransferSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildSnapshotLocked(time.Now())
}

func (c *TransferCollector) buildSnapshotLocked(now time.Time) TransferSnapshot {
	elapsed := time.Duration(0)
	if !c.startTime.IsZero() {
		elapsed = now.Sub(c.startTime)
	}

	throughput := rateFromBytes(c.bytesSent+c.bytesRetransmit, elapsed)
	goodput := rateFromBytes(c.bytesSent, elapsed)

	var retransRatio float64
	if c.bytesSent+c.bytesRetransmit > 0 {
		retransRatio = float64(c.bytesRetransmit) / float64(c.bytesSent+c.bytesRetransmit)
	}

	return TransferSnapshot{
		Elapsed:         elapsed,
		BytesSent:       c.bytesSent,
		BytesRetransmit: c.bytesRetransmit,
		DiskReadBytes:   c.diskReadBytes,
		DiskWriteBytes:  c.diskWriteBytes,
		PacketsSent:     c.packetsSent,
		AcksReceived:    c.acksReceived,
		Retransmissions: c.retransmissions,
		ThroughputBps:   throughput,
		GoodputBps:      goodput,
		ThroughputMbps:  throughput * 8 / 1e6,
		GoodputMbps:     goodput * 8 / 1e6,
		RetransmitRate:  retransRatio,
		RttMs:           c.rttAvgMs,
		JitterMs:        c.jitterMs,
	}
}

func (c *TransferCollector) registerMetrics() {
	makeGauge := func(name, help string, valueFn func(TransferSnapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: subsystemTransfer,
			Name:      name,
			Help:      help,
		}, func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return valueFn(c.buildSnapshotLocked(time.Now()))
		})
	}

	makeCounter := func(name, help string, valueFn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: subsystemTransfer,
			Name:      name,
			Help:      help,
		}, valueFn)
	}

	c.registry.MustRegister(makeGauge(
		"throughput_bytes_per_second",
		"Current transfer throughput including retransmissions.",
		func(s TransferSnapshot) float64 { return s.ThroughputBps },
	))
	c.registry.MustRegister(makeGauge(
		"goodput_bytes_per_second",
		"Effective data rate after excluding retransmissions.",
		func(s TransferSnapshot) float64 { return s.GoodputBps },
	))
	c.registry.MustRegister(makeGauge(
		"rtt_milliseconds",
		"Smoothed round-trip time derived from ACK samples.",
		func(s TransferSnapshot) float64 { return s.RttMs },
	))
	c.registry.MustRegister(makeGauge(
		"jitter_milliseconds",
		"Average jitter between ACK samples.",
		func(s TransferSnapshot) float64 { return s.JitterMs },
	))
	c.registry.MustRegister(makeGauge(
		"retransmission_ratio",
		"Ratio of retransmitted bytes to total transmitted bytes.",
		func(s TransferSnapshot) float64 { return s.RetransmitRate },
	))

	c.registry.MustRegister(makeCounter(
		"bytes_sent_total",
		"Total payload bytes sent on first transmission.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.bytesSent)
		},
	))
	c.registry.MustRegister(makeCounter(
		"bytes_retransmitted_total",
		"Bytes resent due to retransmissions.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.bytesRetransmit)
		},
	))
	c.registry.MustRegister(makeCounter(
		"disk_read_bytes_total",
		"Bytes read from the local file for this transfer.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.diskReadBytes)
		},
	))
	c.registry.MustRegister(makeCounter(
		"disk_write_bytes_total",
		"Bytes written to the destination file for this transfer.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.diskWriteBytes)
		},
	))
	c.registry.MustRegister(makeCounter(
		"packets_sent_total",
		"Total datagrams transmitted, retransmissions included.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.packetsSent)
		},
	))
	c.registry.MustRegister(makeCounter(
		"acks_received_total",
		"Total acknowledgment datagrams received.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.acksReceived)
		},
	))
	c.registry.MustRegister(makeCounter(
		"retransmissions_total",
		"Number of retransmission events.",
		func() float64 {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return float64(c.retransmissions)
		},
	))
}

func (c *TransferCollector) ensureStartTimeLocked() {
	if c.startTime.IsZero() {
		c.startTime = time.Now()
	}
}

func rateFromBytes(bytes uint64, elapsed time.Duration) float64 {
	if bytes == 0 || elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}
