package handshake

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The handshake runs once per session over the already-connected TCP channel.
// Request: uint32 client UDP port, uint16 length-prefixed UTF-8 file name,
// int64 file length. Reply: uint32 server UDP port, uint32 initial sequence
// number. All fields big-endian.

var ErrFileNameTooLong = errors.New("file name exceeds 16-bit length prefix")

type Request struct {
	DataPort   uint32
	FileName   string
	FileLength int64
}

type Reply struct {
	DataPort   uint32
	InitialSeq uint32
}

// WriteRequest writes the client side of the handshake and flushes before
// returning. Any failure is fatal for the session; the TCP channel already
// guarantees delivery or error, so there is no retry at this layer.
func WriteRequest(w io.Writer, req *Request) error {
	name := []byte(req.FileName)
	if len(name) > 0xffff {
		return fmt.Errorf("%w: %d bytes", ErrFileNameTooLong, len(name))
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, req.DataPort); err != nil {
		return fmt.Errorf("write data port: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint16(len(name))); err != nil {
		return fmt.Errorf("write file name length: %w", err)
	}
	if _, err := bw.Write(name); err != nil {
		return fmt.Errorf("write file name: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, req.FileLength); err != nil {
		return fmt.Errorf("write file length: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush handshake request: %w", err)
	}
	return nil
}

// ReadRequest is the server-side inverse of WriteRequest.
func ReadRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := binary.Read(r, binary.BigEndian, &req.DataPort); err != nil {
		return nil, fmt.Errorf("read data port: %w", err)
	}
	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("read file name length: %w", err)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("read file name: %w", err)
	}
	req.FileName = string(name)
	if err := binary.Read(r, binary.BigEndian, &req.FileLength); err != nil {
		return nil, fmt.Errorf("read file length: %w", err)
	}
	return &req, nil
}

func WriteReply(w io.Writer, rep *Reply) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, rep.DataPort); err != nil {
		return fmt.Errorf("write reply data port: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, rep.InitialSeq); err != nil {
		return fmt.Errorf("write initial sequence number: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush handshake reply: %w", err)
	}
	return nil
}

func ReadReply(r io.Reader) (*Reply, error) {
	var rep Reply
	if err := binary.Read(r, binary.BigEndian, &rep.DataPort); err != nil {
		return nil, fmt.Errorf("read reply data port: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &rep.InitialSeq); err != nil {
		return nil, fmt.Errorf("read initial sequence number: %w", err)
	}
	return &rep, nil
}

// Exchange runs the client's one-shot request/reply pair.
func Exchange(rw io.ReadWriter, req *Request) (*Reply, error) {
	if err := WriteRequest(rw, req); err != nil {
		return nil, err
	}
	return ReadReply(rw)
}
