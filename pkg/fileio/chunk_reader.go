package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrFileNotFound = errors.New("source file not found")

type FileInfo struct {
	Name    string
	AbsPath string
	Size    int64
}

// Stat resolves the transfer source before the handshake announces its length.
func Stat(path string) (*FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileInfo{Name: fi.Name(), AbsPath: path, Size: fi.Size()}, nil
}

// Chunk is one fixed-size slice of the source file. Data is a fresh buffer per
// chunk so a retransmitter can hold it while the reader moves on.
type Chunk struct {
	Offset int64
	Data   []byte
	Last   bool
}

// ChunkReader walks an io.Reader in chunkSize pieces. It is lazy and
// non-restartable, matching a sequential file stream. size is the total
// stream length, known up front from Stat; it drives the Last flag.
type ChunkReader struct {
	r         io.Reader
	chunkSize int
	size      int64
	offset    int64
	done      bool
}

func NewChunkReader(r io.Reader, size int64, chunkSize int) *ChunkReader {
	if chunkSize <= 0 {
		panic("chunkSize must be > 0")
	}
	return &ChunkReader{r: r, chunkSize: chunkSize, size: size}
}

// Next returns the next chunk, or io.EOF once the stream is exhausted. A
// zero-length stream yields io.EOF on the first call with no chunks. The final
// chunk carries exactly the bytes that remained, never padding.
func (cr *ChunkReader) Next() (*Chunk, error) {
	if cr.done {
		return nil, io.EOF
	}

	buf := make([]byte, cr.chunkSize)
	n, err := io.ReadFull(cr.r, buf)
	if n > 0 {
		chunk := &Chunk{Offset: cr.offset, Data: buf[:n]}
		cr.offset += int64(n)
		chunk.Last = cr.offset >= cr.size
		if chunk.Last {
			cr.done = true
		}
		return chunk, nil
	}

	cr.done = true
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("read chunk: %w", err)
}
