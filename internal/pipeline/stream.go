package pipeline

import (
	"io"
	"strings"
	"sync"
)

// Stream is a single-consumption, finite sequence of text chunks produced
// by an adapter. Chunks are forwarded as they arrive; nothing is buffered
// beyond the channel capacity, preserving first-byte latency.
//
// The consumer must call Close when done (including after a partial read).
// Close stops further pulls from the producer and runs the registered
// release hook exactly once. A stream never truncates silently: it ends
// with io.EOF on success or a non-nil error otherwise.
type Stream struct {
	ch   chan chunk
	done chan struct{}

	closeOnce sync.Once
	hookOnce  sync.Once
	onClose   func()
}

type chunk struct {
	text string
	err  error
}

// Writer is the producer side of a Stream. Exactly one producer goroutine
// sends chunks and must call Close (or send a terminal error) when done.
type Writer struct {
	s *Stream
}

// NewStream creates a connected Stream/Writer pair with the given channel
// capacity (0 means unbuffered).
func NewStream(capacity int) (*Stream, *Writer) {
	s := &Stream{
		ch:   make(chan chunk, capacity),
		done: make(chan struct{}),
	}
	return s, &Writer{s: s}
}

// FromText returns an already-complete Stream carrying a single chunk.
// Useful in tests and for non-streaming adapters.
func FromText(text string) *Stream {
	s, w := NewStream(1)
	w.Send(text, nil)
	w.Close()
	return s
}

// OnClose registers a release hook invoked exactly once when the stream is
// closed by the consumer or fully drained. Adapters use it to release the
// underlying network resource.
func (s *Stream) OnClose(hook func()) {
	s.onClose = hook
}

// Recv returns the next chunk. It returns io.EOF after the producer closes
// the stream, or the producer's terminal error. Calling Recv after Close
// returns io.EOF.
func (s *Stream) Recv() (string, error) {
	select {
	case <-s.done:
		return "", io.EOF
	case c, ok := <-s.ch:
		if !ok {
			s.runHook()
			return "", io.EOF
		}
		if c.err != nil {
			s.runHook()
			return "", c.err
		}
		return c.text, nil
	}
}

// Close stops the stream from the consumer side. The producer observes the
// cancellation on its next Send and stops pulling from its upstream.
// Safe to call multiple times; the release hook runs once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.runHook()
}

// Concat drains the stream and returns the concatenated text. The stream
// is closed afterwards regardless of outcome.
func (s *Stream) Concat() (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		text, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
}

func (s *Stream) runHook() {
	s.hookOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Send delivers a chunk (or a terminal error) to the consumer. It reports
// closed=true when the consumer has closed the stream, in which case the
// producer must stop sending and release its resources. Sending a non-nil
// err terminates the stream; no further chunks may follow.
func (w *Writer) Send(text string, err error) (closed bool) {
	select {
	case <-w.s.done:
		return true
	case w.s.ch <- chunk{text: text, err: err}:
		return false
	}
}

// Close marks the end of the stream. The consumer's next Recv returns
// io.EOF. Must be called exactly once by the producer on success.
func (w *Writer) Close() {
	close(w.s.ch)
}
