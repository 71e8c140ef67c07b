package sender

import (
	"net"
	"sync"
	"time"

	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/metrics"
	"github.com/JeremyKimotho/StopWait/pkg/wire"
)

// retransmitter periodically resends one segment until stopped. Each chunk
// gets a fresh instance; nothing carries over between chunks. It shares only
// the socket's send side with the main loop: the segment snapshot it holds is
// immutable, and every fire re-marshals it with the same sequence number.
type retransmitter struct {
	conn      net.PacketConn
	peer      net.Addr
	seg       *wire.Segment
	collector *metrics.TransferCollector

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// startRetransmitter arms the timer for one outstanding segment: first fire
// after startDelay, then every interval until Stop.
func startRetransmitter(conn net.PacketConn, peer net.Addr, seg *wire.Segment, startDelay, interval time.Duration, collector *metrics.TransferCollector) *retransmitter {
	r := &retransmitter{
		conn:      conn,
		peer:      peer,
		seg:       seg,
		collector: collector,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go r.loop(startDelay, interval)
	return r
}

func (r *retransmitter) loop(startDelay, interval time.Duration) {
	defer close(r.done)

	delay := time.NewTimer(startDelay)
	defer delay.Stop()
	select {
	case <-r.stop:
		return
	case <-delay.C:
	}
	r.fire()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.fire()
		}
	}
}

func (r *retransmitter) fire() {
	datagram, err := r.seg.Marshal()
	if err != nil {
		internal.Error("retransmit encode failed", internal.Fields{
			internal.FieldSeq:   r.seg.Seq,
			internal.FieldError: err.Error(),
		})
		return
	}

	internal.Warn("ack timeout, retransmitting", internal.Fields{
		internal.FieldSeq: r.seg.Seq,
	})
	if _, err := r.conn.WriteTo(datagram, r.peer); err != nil {
		internal.Error("retransmit failed", internal.Fields{
			internal.FieldSeq:   r.seg.Seq,
			internal.FieldError: err.Error(),
		})
		return
	}
	if r.collector != nil {
		r.collector.ObserveSend(len(datagram), true)
	}
}

// Stop cancels future fires. A fire already dispatched may still send one
// duplicate after Stop returns; the receiver simply re-acks it.
func (r *retransmitter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Wait blocks until the timer goroutine has exited.
func (r *retransmitter) Wait() {
	<-r.done
}
