package metrics

import (
	"testing"
	"time"
)

func TestObserveSendSeparatesRetransmissions(t *testing.T) {
	c := NewTransferCollector("")

	c.ObserveSend(1000, false)
	c.ObserveSend(1000, true)
	c.ObserveSend(500, false)

	s := c.Snapshot()
	if s.BytesSent != 1500 {
		t.Fatalf("bytes sent: got %d want 1500", s.BytesSent)
	}
	if s.BytesRetransmit != 1000 {
		t.Fatalf("bytes retransmitted: got %d want 1000", s.BytesRetransmit)
	}
	if s.PacketsSent != 3 {
		t.Fatalf("packets sent: got %d want 3", s.PacketsSent)
	}
	if s.Retransmissions != 1 {
		t.Fatalf("retransmissions: got %d want 1", s.Retransmissions)
	}
	if s.RetransmitRate != 0.4 {
		t.Fatalf("retransmit rate: got %v want 0.4", s.RetransmitRate)
	}
}

func TestObserveAckRtt(t *testing.T) {
	c := NewTransferCollector("")

	c.ObserveAck(10 * time.Millisecond)
	c.ObserveAck(20 * time.Millisecond)

	s := c.Snapshot()
	if s.AcksReceived != 2 {
		t.Fatalf("acks: got %d want 2", s.AcksReceived)
	}
	if s.RttMs != 15 {
		t.Fatalf("rtt avg: got %v want 15", s.RttMs)
	}
	if s.JitterMs != 10 {
		t.Fatalf("jitter: got %v want 10", s.JitterMs)
	}
}

func TestRegistryGathers(t *testing.T) {
	c := NewTransferCollector("test")
	c.ObserveSend(100, false)
	c.ObserveDiskRead(100)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_transfer_bytes_sent_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 100 {
				t.Fatalf("bytes_sent_total: got %v want 100", got)
			}
		}
	}
	if !found {
		t.Fatal("bytes_sent_total not registered")
	}
}

func TestSnapshotBeforeAnyActivity(t *testing.T) {
	c := NewTransferCollector("")
	s := c.Snapshot()
	if s.Elapsed != 0 || s.ThroughputBps != 0 {
		t.Fatalf("expected zero snapshot, got %+v", s)
	}
}
