package transport

import (
	"bufio"
	"sync"
)

// DefaultBufferSize is the read and write buffer size of a BufferedStream.
const DefaultBufferSize = 4096

// BufferedStream decorates a Stream with buffered reads and writes. It owns
// the inner stream: closing the BufferedStream closes the inner one, once.
type BufferedStream struct {
	inner  Stream
	reader *bufio.Reader
	writer *bufio.Writer

	mu     sync.Mutex
	closed bool
}

// NewBufferedStream wraps inner.
func NewBufferedStream(inner Stream) *BufferedStream {
	return NewBufferedStreamSize(inner, DefaultBufferSize)
}

// NewBufferedStreamSize wraps inner using buffers of size bytes.
func NewBufferedStreamSize(inner Stream, size int) *BufferedStream {
	return &BufferedStream{
		inner:  inner,
		reader: bufio.NewReaderSize(inner, size),
		writer: bufio.NewWriterSize(inner, size),
	}
}

// Read reads buffered data from the inner stream.
func (b *BufferedStream) Read(p []byte) (int, error) {
	if b.isClosed() {
		return 0, ErrStreamClosed
	}
	return b.reader.Read(p)
}

// Write buffers p; data reaches the inner stream on Flush or when the buffer fills.
func (b *BufferedStream) Write(p []byte) (int, error) {
	if b.isClosed() {
		return 0, ErrStreamClosed
	}
	return b.writer.Write(p)
}

// Flush writes any buffered data to the inner stream.
func (b *BufferedStream) Flush() error {
	if b.isClosed() {
		return ErrStreamClosed
	}
	return b.writer.Flush()
}

// Reader exposes the read buffer so parsers can avoid double buffering.
func (b *BufferedStream) Reader() *bufio.Reader {
	return b.reader
}

// Close closes the inner stream. Unflushed writes are dropped. Closing an
// already closed stream is a no-op.
func (b *BufferedStream) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.inner.Close()
}

// Unwrap returns the inner stream.
func (b *BufferedStream) Unwrap() Stream {
	return b.inner
}

func (b *BufferedStream) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
