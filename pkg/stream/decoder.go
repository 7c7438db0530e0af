package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

const (
	dataPrefix    = "data: "
	readSize      = 32 * 1024
	maxFrameBytes = 1024 * 1024
)

var (
	lfDelimiter   = []byte("\n\n")
	crlfDelimiter = []byte("\r\n\r\n")
)

// Decoder reads frames separated by a blank line. Partial frames stay
// buffered until the delimiter (or EOF) arrives, so a JSON object split
// across network reads is parsed only once it is complete. A frame longer
// than maxFrameBytes is dropped up to its delimiter and decoding resumes
// with the next frame.
type Decoder struct {
	r          *bufio.Reader
	chunk      []byte
	buf        []byte
	discarding bool
	eof        bool
	err        error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     bufio.NewReaderSize(r, readSize),
		chunk: make([]byte, readSize),
	}
}

// Next returns the next well-formed event. Frames without a data line and
// frames whose JSON is invalid are skipped. Returns io.EOF when the body ends.
func (d *Decoder) Next() (Event, error) {
	for {
		frame, ok := d.nextFrame()
		if !ok {
			if d.err != nil {
				return Event{}, d.err
			}
			return Event{}, io.EOF
		}

		payload, ok := framePayload(frame)
		if !ok {
			continue
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		return event, nil
	}
}

func (d *Decoder) nextFrame() ([]byte, bool) {
	for {
		if i, width := frameEnd(d.buf); i >= 0 {
			frame := d.buf[:i]
			d.buf = d.buf[i+width:]
			if d.discarding {
				d.discarding = false
				continue
			}
			return frame, true
		}

		if len(d.buf) > maxFrameBytes {
			d.discarding = true
		}
		if d.discarding && len(d.buf) > len(crlfDelimiter) {
			// keep a tail long enough to hold the start of a split delimiter
			d.buf = append(d.buf[:0], d.buf[len(d.buf)-len(crlfDelimiter)+1:]...)
		}

		if d.err != nil {
			return nil, false
		}
		if d.eof {
			// Last frame may arrive without a trailing blank line.
			frame := d.buf
			d.buf = nil
			if d.discarding || len(frame) == 0 {
				return nil, false
			}
			return frame, true
		}

		n, err := d.r.Read(d.chunk)
		d.buf = append(d.buf, d.chunk[:n]...)
		switch {
		case err == io.EOF:
			d.eof = true
		case err != nil:
			d.err = err
		}
	}
}

func frameEnd(data []byte) (int, int) {
	lf := bytes.Index(data, lfDelimiter)
	crlf := bytes.Index(data, crlfDelimiter)
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, len(crlfDelimiter)
	case lf >= 0:
		return lf, len(lfDelimiter)
	}
	return -1, 0
}

// framePayload joins the frame's data lines with "\n".
func framePayload(frame []byte) ([]byte, bool) {
	var payload [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if bytes.HasPrefix(line, []byte(dataPrefix)) {
			payload = append(payload, line[len(dataPrefix):])
		}
	}
	if len(payload) == 0 {
		return nil, false
	}
	return bytes.Join(payload, []byte("\n")), true
}
