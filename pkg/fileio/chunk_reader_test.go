package fileio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestChunkReaderExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 3000)
	cr := NewChunkReader(bytes.NewReader(data), int64(len(data)), 1000)

	var chunks []*Chunk
	for {
		c, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		chunks = append(chunks, c)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Data) != 1000 {
			t.Fatalf("chunk %d: expected 1000 bytes, got %d", i, len(c.Data))
		}
		if c.Offset != int64(i)*1000 {
			t.Fatalf("chunk %d: unexpected offset %d", i, c.Offset)
		}
	}
	if !chunks[2].Last {
		t.Fatal("final chunk not flagged last")
	}
	if chunks[0].Last || chunks[1].Last {
		t.Fatal("non-final chunk flagged last")
	}
}

func TestChunkReaderShortFinalChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x02}, 1500)
	cr := NewChunkReader(bytes.NewReader(data), int64(len(data)), 1000)

	first, err := cr.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(first.Data) != 1000 || first.Last {
		t.Fatalf("unexpected first chunk: %d bytes last=%v", len(first.Data), first.Last)
	}

	second, err := cr.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(second.Data) != 500 {
		t.Fatalf("expected 500 byte final chunk, got %d", len(second.Data))
	}
	if !second.Last {
		t.Fatal("final chunk not flagged last")
	}

	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after final chunk, got %v", err)
	}
}

func TestChunkReaderEmptyStream(t *testing.T) {
	cr := NewChunkReader(bytes.NewReader(nil), 0, 1000)
	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for empty stream, got %v", err)
	}
}

func TestChunkBuffersAreIndependent(t *testing.T) {
	data := bytes.Repeat([]byte{0x03}, 2000)
	cr := NewChunkReader(bytes.NewReader(data), int64(len(data)), 1000)

	first, err := cr.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	snapshot := append([]byte(nil), first.Data...)

	if _, err := cr.Next(); err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if !bytes.Equal(first.Data, snapshot) {
		t.Fatal("earlier chunk mutated by a later read")
	}
}

func TestStatMissingFile(t *testing.T) {
	if _, err := Stat(filepath.Join(t.TempDir(), "missing.bin")); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestStat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xaa}, 42), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	fi, err := Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if fi.Size != 42 {
		t.Fatalf("expected size 42, got %d", fi.Size)
	}
	if fi.Name != "payload.bin" {
		t.Fatalf("unexpected name %q", fi.Name)
	}
}
