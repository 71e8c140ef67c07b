package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SeqNumLen is the size of the sequence number field on the wire.
	SeqNumLen = 4

	// MaxPayloadSize is the protocol-wide ceiling on payload bytes per segment.
	// Both endpoints size their datagram buffers from it.
	MaxPayloadSize = 1000

	// MaxSegmentLen is the largest datagram either side will ever produce.
	MaxSegmentLen = SeqNumLen + MaxPayloadSize
)

var (
	ErrSegmentTooShort = errors.New("segment shorter than sequence number field")
	ErrPayloadTooLarge = errors.New("payload exceeds max segment payload size")
)

// Segment is the unit of transfer on the datagram channel: a 4-byte big-endian
// sequence number followed by the payload. There is no length field; the
// payload length is whatever the datagram carried beyond the header.
type Segment struct {
	Seq     uint32
	Payload []byte
}

// Encode writes the wire form of the segment into dst and returns the number
// of bytes written.
func (s *Segment) Encode(dst []byte) (int, error) {
	if len(s.Payload) > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(s.Payload))
	}
	need := SeqNumLen + len(s.Payload)
	if len(dst) < need {
		return 0, fmt.Errorf("buffer too small: need %d, got %d", need, len(dst))
	}
	binary.BigEndian.PutUint32(dst[0:SeqNumLen], s.Seq)
	copy(dst[SeqNumLen:need], s.Payload)
	return need, nil
}

// Decode parses a received datagram. The payload aliases src; callers that
// hold the segment beyond the next read must copy it.
func (s *Segment) Decode(src []byte) (int, error) {
	if len(src) < SeqNumLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrSegmentTooShort, len(src))
	}
	s.Seq = binary.BigEndian.Uint32(src[0:SeqNumLen])
	s.Payload = src[SeqNumLen:]
	return len(src), nil
}

// Marshal allocates and encodes the segment's exact wire form. Pure: no I/O,
// no shared state; retransmitters call it once per fire so every datagram is
// re-derived from the immutable segment snapshot.
func (s *Segment) Marshal() ([]byte, error) {
	buf := make([]byte, SeqNumLen+len(s.Payload))
	n, err := s.Encode(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
