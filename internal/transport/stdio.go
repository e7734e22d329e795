// Package transport provides a minimal length-prefixed Subscriber/Publisher
// pair over an io.Reader/io.Writer. The real recorder<->analyzer transport
// is a ZeroMQ-style pub/sub bus and is explicitly out of scope (§1); this
// package exists only so cmd/analyzerd and cmd/recorderd can be run
// end-to-end on a single host (recorderd's stdout piped to analyzerd's
// stdin) without the core importing a networking library.
package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize guards against a corrupt or hostile length prefix turning
// into an enormous allocation.
const maxMessageSize = 64 << 20

// StdioSubscriber reads 4-byte-length-prefixed messages from r.
type StdioSubscriber struct {
	r *bufio.Reader
}

// NewStdioSubscriber wraps r as a Subscriber.
func NewStdioSubscriber(r io.Reader) *StdioSubscriber {
	return &StdioSubscriber{r: bufio.NewReader(r)}
}

// Receive reads the next length-prefixed message, or returns ctx.Err() if
// ctx is already done. It does not itself support cancellation mid-read
// (the underlying reader has no deadline knob), matching the teacher's own
// preference for simple blocking I/O over cancellable reads.
func (s *StdioSubscriber) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageSize {
		return nil, fmt.Errorf("transport: message length %d exceeds %d byte limit", n, maxMessageSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// StdioPublisher writes 4-byte-length-prefixed messages to w.
type StdioPublisher struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdioPublisher wraps w as a Publisher.
func NewStdioPublisher(w io.Writer) *StdioPublisher {
	return &StdioPublisher{w: w}
}

// Send writes data as one length-prefixed message. The write is not itself
// cancellable; ctx is checked once up front for a fast exit during shutdown.
func (p *StdioPublisher) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := p.w.Write(data)
	return err
}
