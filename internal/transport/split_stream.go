package transport

import (
	"io"
	"net"
	"sync"
)

// SplitStream hands out a read half and a write half of the same
// connection, each independently safe to drive from its own goroutine: the
// active-stage loop reads server PDUs on one, while an input-injection
// goroutine writes client PDUs on the other. Read and write sides of a TCP
// connection don't contend with each other at the kernel level, so the two
// halves need nothing more than to serialize concurrent callers against
// themselves.
//
// This replaces sharing one handle behind a single clonable wrapper: a
// reader and a writer racing on the same handle can interleave a partial
// write with a read, corrupting the frame either side observes.
type SplitStream struct {
	conn net.Conn

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// NewSplitStream wraps conn for independent read and write access.
func NewSplitStream(conn net.Conn) *SplitStream {
	return &SplitStream{conn: conn}
}

// Reader returns the read half of the stream.
func (s *SplitStream) Reader() *StreamReader {
	return &StreamReader{stream: s}
}

// Writer returns the write half of the stream.
func (s *SplitStream) Writer() *StreamWriter {
	return &StreamWriter{stream: s}
}

// Close closes the underlying connection. Safe to call concurrently with a
// pending Read or Write; both return an error once the connection is torn
// down.
func (s *SplitStream) Close() error {
	return s.conn.Close()
}

// StreamReader is the read-only half of a SplitStream.
type StreamReader struct {
	stream *SplitStream
}

// Read implements io.Reader, serializing against any other goroutine also
// holding this same StreamReader.
func (r *StreamReader) Read(p []byte) (int, error) {
	r.stream.readMu.Lock()
	defer r.stream.readMu.Unlock()
	return r.stream.conn.Read(p)
}

// StreamWriter is the write-only half of a SplitStream.
type StreamWriter struct {
	stream *SplitStream
}

// Write implements io.Writer, serializing against any other goroutine also
// holding this same StreamWriter.
func (w *StreamWriter) Write(p []byte) (int, error) {
	w.stream.writeMu.Lock()
	defer w.stream.writeMu.Unlock()
	return w.stream.conn.Write(p)
}

var (
	_ io.Reader = (*StreamReader)(nil)
	_ io.Writer = (*StreamWriter)(nil)
)
