// Package logwriter turns a raw byte stream into lines for a line-oriented logger.
package logwriter

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// ErrOutOfRange is returned by WriteRange when off and n don't describe a
// sub-range of the input.
var ErrOutOfRange = errors.New("offset/length out of range")

// LineFunc receives one line of output, without its terminator.
type LineFunc func(line string)

// Writer buffers bytes until a '\n' is seen and hands each completed line to a
// LineFunc. It is not safe for concurrent use; give every stream its own Writer.
type Writer struct {
	buf []byte
	fn  LineFunc
	dec *encoding.Decoder
}

// New returns a Writer delivering lines to fn. A nil enc means UTF-8.
func New(fn LineFunc, enc encoding.Encoding) *Writer {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Writer{fn: fn, dec: enc.NewDecoder()}
}

// Write never fails; it always consumes all of p.
func (w *Writer) Write(p []byte) (int, error) {
	begin := 0
	for i, c := range p {
		if c == '\n' {
			w.buf = append(w.buf, p[begin:i]...)
			w.Flush()
			begin = i + 1
		}
	}
	w.buf = append(w.buf, p[begin:]...)
	return len(p), nil
}

// WriteRange writes the n bytes of p starting at off.
func (w *Writer) WriteRange(p []byte, off, n int) (int, error) {
	if off < 0 || n < 0 || off > len(p) || n > len(p)-off {
		return 0, fmt.Errorf("write [%d:%d] of %d bytes: %w", off, off+n, len(p), ErrOutOfRange)
	}
	return w.Write(p[off : off+n])
}

func (w *Writer) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}

// Flush delivers the buffered bytes as a line, even when there are none.
func (w *Writer) Flush() {
	line := w.decode()
	w.buf = w.buf[:0]
	w.fn(line)
}

// Close flushes a trailing unterminated line. It delivers nothing when the
// buffer is empty, so closing twice is harmless.
func (w *Writer) Close() error {
	if len(w.buf) > 0 {
		w.Flush()
	}
	return nil
}

func (w *Writer) decode() string {
	if len(w.buf) == 0 {
		return ""
	}
	w.dec.Reset()
	b, err := w.dec.Bytes(w.buf)
	if err != nil {
		return string(w.buf)
	}
	return string(b)
}
