package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/handshake"
	"github.com/JeremyKimotho/StopWait/pkg/metrics"
	"github.com/JeremyKimotho/StopWait/pkg/wire"
)

// Server is the receiving peer: it accepts one TCP control connection per
// transfer, answers the handshake with a fresh UDP port and an initial
// sequence number, then collects the file over that port, acking every
// datagram it sees.
type Server struct {
	cfg       *internal.ServerConfig
	collector *metrics.TransferCollector

	ln net.Listener
	wg sync.WaitGroup
}

func New(cfg *internal.ServerConfig, collector *metrics.TransferCollector) *Server {
	if collector == nil {
		collector = metrics.NewTransferCollector("")
	}
	return &Server{cfg: cfg, collector: collector}
}

// Listen binds the control socket. Port 0 picks an ephemeral port.
func (s *Server) Listen() error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", s.cfg.OutputDir, err)
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind control socket: %w", err)
	}
	s.ln = ln
	internal.Info("server listening", internal.Fields{
		internal.FieldPort:    s.Addr().Port,
		internal.FieldSession: s.cfg.ServerId,
	})
	return nil
}

func (s *Server) Addr() *net.TCPAddr {
	return s.ln.Addr().(*net.TCPAddr)
}

// Serve accepts control connections until ctx is cancelled, one goroutine per
// session.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ln.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(ctx, conn)
		}()
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) handleSession(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sessionID := uuid.New()

	req, err := handshake.ReadRequest(conn)
	if err != nil {
		internal.Error("handshake read failed", internal.Fields{
			internal.FieldSession: sessionID.String(),
			internal.FieldError:   err.Error(),
		})
		return
	}

	pc, dataPort, err := listenData(ctx, 0, s.cfg.UDPReadBufferSize)
	if err != nil {
		internal.Error("data socket bind failed", internal.Fields{
			internal.FieldSession: sessionID.String(),
			internal.FieldError:   err.Error(),
		})
		return
	}
	defer pc.Close()

	initialSeq := rand.Uint32() % 100000
	if err := handshake.WriteReply(conn, &handshake.Reply{
		DataPort:   uint32(dataPort),
		InitialSeq: initialSeq,
	}); err != nil {
		internal.Error("handshake reply failed", internal.Fields{
			internal.FieldSession: sessionID.String(),
			internal.FieldError:   err.Error(),
		})
		return
	}
	// Control channel is done; the rest of the session runs over UDP.
	_ = conn.Close()

	internal.Info("session accepted", internal.Fields{
		internal.FieldSession: sessionID.String(),
		internal.FieldFile:    req.FileName,
		internal.FieldBytes:   req.FileLength,
		internal.FieldPort:    dataPort,
		internal.FieldSeq:     initialSeq,
	})

	if err := s.receiveFile(ctx, pc, req, initialSeq, sessionID); err != nil {
		internal.Error("session failed", internal.Fields{
			internal.FieldSession: sessionID.String(),
			internal.FieldFile:    req.FileName,
			internal.FieldError:   err.Error(),
		})
		return
	}

	internal.Info("session complete", internal.Fields{
		internal.FieldSession: sessionID.String(),
		internal.FieldFile:    req.FileName,
		internal.FieldBytes:   req.FileLength,
	})
}

// receiveFile drains the data socket until the byte count announced in the
// handshake has been written. In-order segments are appended to the file;
// duplicates are re-acked without a second write.
func (s *Server) receiveFile(ctx context.Context, pc net.PacketConn, req *handshake.Request, initialSeq uint32, sessionID uuid.UUID) error {
	name := filepath.Base(req.FileName)
	path := filepath.Join(s.cfg.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if req.FileLength == 0 {
		return nil
	}

	stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
	defer stop()

	expected := initialSeq
	received := int64(0)
	buf := make([]byte, wire.MaxSegmentLen)

	for received < req.FileLength {
		n, src, err := pc.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("read data socket: %w", err)
		}

		var seg wire.Segment
		if _, err := seg.Decode(buf[:n]); err != nil {
			internal.Warn("malformed datagram dropped", internal.Fields{
				internal.FieldSession: sessionID.String(),
				internal.FieldBytes:   n,
			})
			continue
		}

		if seg.Seq == expected {
			if _, err := f.Write(seg.Payload); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			s.collector.ObserveDiskWrite(len(seg.Payload))
			received += int64(len(seg.Payload))
			expected++
		} else {
			internal.Debug("duplicate segment re-acked", internal.Fields{
				internal.FieldSession: sessionID.String(),
				internal.FieldSeq:     seg.Seq,
			})
		}

		ack := wire.Segment{Seq: seg.Seq}
		datagram, err := ack.Marshal()
		if err != nil {
			return err
		}
		if _, err := pc.WriteTo(datagram, src); err != nil {
			return fmt.Errorf("send ack %d: %w", seg.Seq, err)
		}
	}

	return nil
}
