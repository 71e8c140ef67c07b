package server

import (
	"bytes"
	"context"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JeremyKimotho/StopWait/internal"
	"github.com/JeremyKimotho/StopWait/pkg/handshake"
	"github.com/JeremyKimotho/StopWait/pkg/sender"
	"github.com/JeremyKimotho/StopWait/pkg/wire"
)

func TestMain(m *testing.M) {
	internal.SetLogLevel(internal.LevelError)
	os.Exit(m.Run())
}

func startTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &internal.ServerConfig{
		Port:              0,
		OutputDir:         t.TempDir(),
		UDPReadBufferSize: 64 * 1024,
		ServerId:          "test-server",
		LogLevel:          "error",
	}
	srv := New(cfg, nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("server listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func TestEndToEndTransfer(t *testing.T) {
	srv := startTestServer(t)

	payload := make([]byte, 3123)
	rand.New(rand.NewSource(1)).Read(payload)

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "payload.bin")
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	snd := sender.New(sender.Options{
		Timeout:    500 * time.Millisecond,
		StartDelay: 200 * time.Millisecond,
	}, nil)
	if err := snd.Send(context.Background(), "localhost", srv.Addr().Port, srcPath); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(srv.cfg.OutputDir, "payload.bin"))
	if err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("received file differs from source: %d vs %d bytes", len(got), len(payload))
	}
}

func TestEndToEndZeroLengthFile(t *testing.T) {
	srv := startTestServer(t)

	srcPath := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(srcPath, nil, 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	snd := sender.New(sender.Options{Timeout: 500 * time.Millisecond}, nil)
	if err := snd.Send(context.Background(), "localhost", srv.Addr().Port, srcPath); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// The server learns the length from the handshake and finishes without a
	// single datagram.
	deadline := time.Now().Add(2 * time.Second)
	outPath := filepath.Join(srv.cfg.OutputDir, "empty.bin")
	for {
		fi, err := os.Stat(outPath)
		if err == nil {
			if fi.Size() != 0 {
				t.Fatalf("expected empty file, got %d bytes", fi.Size())
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("received file never appeared: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReceiveFileDeduplicatesAndReAcks(t *testing.T) {
	cfg := &internal.ServerConfig{
		OutputDir:         t.TempDir(),
		UDPReadBufferSize: 64 * 1024,
	}
	srv := New(cfg, nil)

	ctx := context.Background()
	pc, port, err := listenData(ctx, 0, cfg.UDPReadBufferSize)
	if err != nil {
		t.Fatalf("listen data failed: %v", err)
	}
	defer pc.Close()

	req := &handshake.Request{DataPort: 0, FileName: "dedup.bin", FileLength: 4}
	done := make(chan error, 1)
	go func() {
		done <- srv.receiveFile(ctx, pc, req, 50, uuid.New())
	}()

	client, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial data socket: %v", err)
	}
	defer client.Close()

	sendSeg := func(seq uint32, payload []byte) {
		t.Helper()
		seg := wire.Segment{Seq: seq, Payload: payload}
		buf, err := seg.Marshal()
		if err != nil {
			t.Fatalf("marshal segment %d: %v", seq, err)
		}
		if _, err := client.Write(buf); err != nil {
			t.Fatalf("send segment %d: %v", seq, err)
		}
	}
	readAck := func(want uint32) {
		t.Helper()
		buf := make([]byte, wire.MaxSegmentLen)
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := client.Read(buf)
		if err != nil {
			t.Fatalf("read ack: %v", err)
		}
		var ack wire.Segment
		if _, err := ack.Decode(buf[:n]); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Seq != want {
			t.Fatalf("ack seq: got %d want %d", ack.Seq, want)
		}
	}

	sendSeg(50, []byte("ab"))
	readAck(50)
	// Duplicate of the first segment: re-acked, not re-written.
	sendSeg(50, []byte("ab"))
	readAck(50)
	sendSeg(51, []byte("cd"))
	readAck(51)

	if err := <-done; err != nil {
		t.Fatalf("receiveFile failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(cfg.OutputDir, "dedup.bin"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("output mismatch: got %q want %q", got, "abcd")
	}
}
