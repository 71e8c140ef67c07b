package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestSegmentEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xab}, MaxPayloadSize),
	}

	for _, payload := range payloads {
		original := Segment{Seq: 0xdeadbeef, Payload: payload}

		buf := make([]byte, MaxSegmentLen)
		n, err := original.Encode(buf)
		if err != nil {
			t.Fatalf("encode failed for %d byte payload: %v", len(payload), err)
		}
		if n != SeqNumLen+len(payload) {
			t.Fatalf("expected %d wire bytes, got %d", SeqNumLen+len(payload), n)
		}

		var decoded Segment
		read, err := decoded.Decode(buf[:n])
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if read != n {
			t.Fatalf("expected decode to consume %d bytes, got %d", n, read)
		}
		if decoded.Seq != original.Seq {
			t.Fatalf("seq mismatch: got %d want %d", decoded.Seq, original.Seq)
		}
		if !bytes.Equal(decoded.Payload, payload) {
			t.Fatalf("payload mismatch for %d byte payload", len(payload))
		}
	}
}

func TestSegmentEncodePayloadTooLarge(t *testing.T) {
	seg := Segment{Seq: 1, Payload: make([]byte, MaxPayloadSize+1)}
	buf := make([]byte, MaxSegmentLen+1)
	if _, err := seg.Encode(buf); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestSegmentEncodeBufferTooSmall(t *testing.T) {
	seg := Segment{Seq: 1, Payload: []byte("abc")}
	buf := make([]byte, SeqNumLen+1)
	if _, err := seg.Encode(buf); err == nil {
		t.Fatal("expected encode error for short buffer")
	}
}

func TestSegmentDecodeTooShort(t *testing.T) {
	var seg Segment
	if _, err := seg.Decode([]byte{0x00, 0x01, 0x02}); !errors.Is(err, ErrSegmentTooShort) {
		t.Fatalf("expected ErrSegmentTooShort, got %v", err)
	}
}

func TestSegmentDecodeHeaderOnly(t *testing.T) {
	seg := Segment{Seq: 42}
	buf, err := seg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(buf) != SeqNumLen {
		t.Fatalf("expected header-only datagram, got %d bytes", len(buf))
	}

	var decoded Segment
	if _, err := decoded.Decode(buf); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Seq != 42 {
		t.Fatalf("seq mismatch: got %d", decoded.Seq)
	}
	if len(decoded.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(decoded.Payload))
	}
}

func TestMarshalReDerivesWireBytes(t *testing.T) {
	seg := Segment{Seq: 7, Payload: []byte("retransmit me")}

	first, err := seg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := seg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if &first[0] == &second[0] {
		t.Fatal("expected independent buffers per marshal")
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected identical wire bytes per marshal")
	}
}
