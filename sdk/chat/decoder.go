package chat

import (
	"bytes"
	"strings"
)

// Decoder turns raw chunks of transport text into complete decoded events.
// Frames are newline-delimited JSON payloads; an SSE-style "data:" prefix is
// accepted and stripped so the decoder works against both plain
// newline-delimited streams and text/event-stream bodies. A partial trailing
// frame is buffered and carried over to the next Feed call.
//
// Decoding is a pure, synchronous transform: Feed never blocks and has no
// side effects beyond the internal carry buffer. Malformed frames are logged
// and skipped; they do not abort the stream.
type Decoder struct {
	buf    bytes.Buffer
	logger *Logger
}

// NewDecoder creates a decoder. A nil logger disables malformed-frame logging.
func NewDecoder(logger *Logger) *Decoder {
	if logger == nil {
		logger = GetLogger()
	}
	return &Decoder{logger: logger}
}

// Feed appends chunk to the carry buffer and returns every complete event it
// now holds, in arrival order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf.Write(chunk)

	var events []Event
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}

		line := string(raw[:idx])
		d.buf.Next(idx + 1)

		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush decodes whatever remains in the carry buffer as a final frame.
// Called when the transport reaches EOF; an unterminated trailing frame is
// still a frame.
func (d *Decoder) Flush() []Event {
	if d.buf.Len() == 0 {
		return nil
	}
	line := d.buf.String()
	d.buf.Reset()

	if ev, ok := d.decodeLine(line); ok {
		return []Event{ev}
	}
	return nil
}

// decodeLine normalizes and parses a single frame line. Returns false for
// blank lines, SSE comments, and malformed payloads.
func (d *Decoder) decodeLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return nil, false
	}

	// Tolerate both "data: {...}" and bare "{...}" frames.
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		line = strings.TrimSpace(rest)
		if line == "" {
			return nil, false
		}
	}

	ev, err := parseEvent([]byte(line))
	if err != nil {
		d.logger.Warn("skipping malformed frame", "error", err)
		return nil, false
	}
	return ev, true
}
