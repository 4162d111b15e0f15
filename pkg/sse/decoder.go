package sse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const readChunkSize = 4 * 1024

var (
	lf   = []byte("\n\n")
	crlf = []byte("\n\r\n")
)

// Decoder incrementally splits raw chunks into events.
//
// ┌──────────────┐   Write(chunk)   ┌──────────┐   OnEvent / OnTerminal   ┌─────────┐
// │  transport   │ ───────────────▶ │ Decoder  │ ───────────────────────▶ │ Handler │
// └──────────────┘                  └──────────┘                          └─────────┘
//
// A Decoder is not safe for concurrent use; a session is driven by a single
// reader.
type Decoder struct {
	handler Handler
	buf     []byte
	done    bool
}

// NewDecoder returns a Decoder delivering to h.
func NewDecoder(h Handler) *Decoder {
	return &Decoder{handler: h}
}

// Write appends a chunk and emits every block it completes. Bytes written
// after the Sentinel, or after Close, are discarded. Write never fails; it
// satisfies io.Writer so a Decoder can sit behind io.Copy or io.TeeReader.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.done {
		return len(p), nil
	}

	d.buf = append(d.buf, p...)

	for !d.done {
		end, width := nextDelimiter(d.buf)
		if end < 0 {
			break
		}

		block := string(d.buf[:end])
		d.buf = d.buf[end+width:]
		d.dispatch(block)
	}

	return len(p), nil
}

// Close marks the end of input. An unterminated trailing block is dropped and
// the terminal signal is emitted if the Sentinel was never seen. Close is
// idempotent.
func (d *Decoder) Close() error {
	d.finish()
	return nil
}

// Done reports whether the terminal signal has been emitted.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) finish() {
	if d.done {
		return
	}
	d.done = true
	d.buf = nil
	d.handler.OnTerminal()
}

// dispatch parses one block and routes it to the handler.
func (d *Decoder) dispatch(block string) {
	ev, ok := parseBlock(block)
	if !ok {
		return
	}

	if ev.Payload == Sentinel {
		d.finish()
		return
	}

	d.handler.OnEvent(ev)
}

// nextDelimiter finds the first blank line in buf. It returns the index where
// the block ends and the width of the delimiter, or -1 when no complete block
// is buffered. Both "\n\n" and "\r\n\r\n" terminate a block; in the CRLF case
// the block keeps its final "\r", which parseBlock strips per line.
func nextDelimiter(buf []byte) (int, int) {
	i := bytes.Index(buf, lf)
	j := bytes.Index(buf, crlf)

	switch {
	case i < 0 && j < 0:
		return -1, 0
	case j < 0 || (i >= 0 && i < j):
		return i, len(lf)
	default:
		return j, len(crlf)
	}
}

// parseBlock extracts the event name and data payload from a block. Blocks
// carrying neither field (keep-alives, comments) report ok=false.
func parseBlock(block string) (Event, bool) {
	var (
		ev      Event
		data    []string
		hasName bool
	)

	for line := range strings.SplitSeq(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(line[len("event:"):])
			hasName = true
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(line[len("data:"):]))
		default:
			// Comments (":"), "id:", "retry:" and unknown fields are ignored.
		}
	}

	if !hasName && data == nil {
		return Event{}, false
	}

	ev.Payload = strings.Join(data, "\n")
	return ev, true
}

// Decode pumps src into a new Decoder until the Sentinel, EOF, or an error.
// On a clean end of input the handler receives exactly one OnTerminal. Read
// errors and context cancellation are returned to the caller as-is without a
// terminal signal; there is no retry.
func Decode(ctx context.Context, src io.Reader, h Handler) error {
	d := NewDecoder(h)
	chunk := make([]byte, readChunkSize)

	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.Read(chunk)
		if n > 0 {
			_, _ = d.Write(chunk[:n])
		}

		if errors.Is(err, io.EOF) {
			return d.Close()
		}
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}
	}

	return nil
}
