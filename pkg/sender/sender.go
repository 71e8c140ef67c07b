package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/fileio"
	"github.com/JeremyKimotho/StopWait/pkg/handshake"
	"github.com/JeremyKimotho/StopWait/pkg/metrics"
	"github.com/JeremyKimotho/StopWait/pkg/wire"
)

var (
	ErrUnresolvableHost = errors.New("cannot resolve server host")

	// ErrFileNotFound aliases the fileio sentinel so callers can match at
	// this package's boundary.
	ErrFileNotFound = fileio.ErrFileNotFound
)

// Options tune the retransmission timer. Timeout is the fixed interval
// between retransmissions of the outstanding segment; StartDelay is how long
// the timer waits before its first fire, so a slow first ack does not cost a
// full interval.
type Options struct {
	Timeout    time.Duration
	StartDelay time.Duration
}

const defaultStartDelay = 500 * time.Millisecond

// Sender uploads one file per Send call: a TCP handshake negotiates the
// session, then a stop-and-wait loop pushes the file over UDP one segment at
// a time.
type Sender struct {
	opts      Options
	collector *metrics.TransferCollector
}

func New(opts Options, collector *metrics.TransferCollector) *Sender {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.StartDelay <= 0 {
		opts.StartDelay = defaultStartDelay
	}
	if collector == nil {
		collector = metrics.NewTransferCollector("")
	}
	return &Sender{opts: opts, collector: collector}
}

// Session holds the parameters negotiated for one transfer. Read-only after
// the handshake.
type Session struct {
	TransferID uuid.UUID
	LocalPort  int
	RemoteAddr *net.UDPAddr
	FileName   string
	FileLength int64
	InitialSeq uint32
}

// Send transfers the file at path to serverHost:serverPort. Every failure is
// fatal for the whole session; there is no partial-session resume.
func (s *Sender) Send(ctx context.Context, serverHost string, serverPort int, path string) error {
	fi, err := fileio.Stat(path)
	if err != nil {
		return err
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, serverHost)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %s: %v", ErrUnresolvableHost, serverHost, err)
	}
	serverIP := net.ParseIP(addrs[0])

	// Bind the data socket first; its ephemeral port goes into the handshake.
	pc, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return fmt.Errorf("bind udp socket: %w", err)
	}
	defer pc.Close()
	localPort := pc.LocalAddr().(*net.UDPAddr).Port

	sess, err := s.negotiate(ctx, serverHost, serverPort, serverIP, localPort, fi)
	if err != nil {
		return err
	}

	internal.Info("session negotiated", internal.Fields{
		internal.FieldSession: sess.TransferID.String(),
		internal.FieldFile:    sess.FileName,
		internal.FieldBytes:   sess.FileLength,
		internal.FieldPort:    sess.RemoteAddr.Port,
		internal.FieldSeq:     sess.InitialSeq,
	})

	f, err := os.Open(fi.AbsPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", fi.AbsPath, err)
	}
	defer f.Close()

	eng := &engine{
		conn:       pc,
		peer:       sess.RemoteAddr,
		timeout:    s.opts.Timeout,
		startDelay: s.opts.StartDelay,
		seq:        sess.InitialSeq,
		collector:  s.collector,
	}
	if err := eng.run(fileio.NewChunkReader(f, fi.Size, wire.MaxPayloadSize)); err != nil {
		return fmt.Errorf("transfer %s: %w", sess.FileName, err)
	}

	internal.Info("transfer complete", internal.Fields{
		internal.FieldSession: sess.TransferID.String(),
		internal.FieldFile:    sess.FileName,
		internal.FieldBytes:   sess.FileLength,
	})
	return nil
}

// negotiate runs the one-shot TCP exchange and closes the control channel
// before the data phase begins.
func (s *Sender) negotiate(ctx context.Context, host string, port int, ip net.IP, localPort int, fi *fileio.FileInfo) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	rep, err := handshake.Exchange(conn, &handshake.Request{
		DataPort:   uint32(localPort),
		FileName:   fi.Name,
		FileLength: fi.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("handshake with %s:%d: %w", host, port, err)
	}

	return &Session{
		TransferID: uuid.New(),
		LocalPort:  localPort,
		RemoteAddr: &net.UDPAddr{IP: ip, Port: int(rep.DataPort)},
		FileName:   fi.Name,
		FileLength: fi.Size,
		InitialSeq: rep.InitialSeq,
	}, nil
}

// engine is the stop-and-wait state machine: send one segment, arm the
// retransmission timer, block for an ack, advance the cursor, repeat until the
// chunk stream is exhausted.
type engine struct {
	conn       net.PacketConn
	peer       net.Addr
	timeout    time.Duration
	startDelay time.Duration
	seq        uint32
	collector  *metrics.TransferCollector
}

func (e *engine) run(chunks *fileio.ChunkReader) error {
	recvBuf := make([]byte, wire.MaxSegmentLen)

	for {
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e.collector.ObserveDiskRead(len(chunk.Data))

		seg := &wire.Segment{Seq: e.seq, Payload: chunk.Data}
		datagram, err := seg.Marshal()
		if err != nil {
			return err
		}

		sentAt := time.Now()
		if _, err := e.conn.WriteTo(datagram, e.peer); err != nil {
			return fmt.Errorf("send segment %d: %w", e.seq, err)
		}
		e.collector.ObserveSend(len(datagram), false)
		internal.Info("segment sent", internal.Fields{
			internal.FieldSeq:   e.seq,
			internal.FieldBytes: len(chunk.Data),
		})

		rt := startRetransmitter(e.conn, e.peer, seg, e.startDelay, e.timeout, e.collector)

		// Sole blocking point. The retransmission timer bounds how long the
		// peer waits for a duplicate, not how long this read blocks.
		n, _, err := e.conn.ReadFrom(recvBuf)
		rt.Stop()
		if err != nil {
			return fmt.Errorf("wait for ack %d: %w", e.seq, err)
		}

		var ack wire.Segment
		if _, err := ack.Decode(recvBuf[:n]); err != nil {
			return fmt.Errorf("ack for segment %d: %w", e.seq, err)
		}
		// Any datagram acks the outstanding segment. The ack's sequence
		// number is logged but not matched against the cursor.
		e.collector.ObserveAck(time.Since(sentAt))
		internal.Debug("ack received", internal.Fields{
			internal.FieldSeq: ack.Seq,
		})

		e.seq++
	}
}
