// Package wire implements the newline-delimited JSON framing used on a
// worker's stdin (commands) and stdout (responses and acks).
//
// Each frame is a single JSON object followed by '\n':
//
//	{"name":"JUMP","params":"5"}
//	{"kind":"callback","name":"on_jump","param":"5"}
//	{"kind":"error","message":"boom"}
//	{"kind":"ack"}
//
// A worker writes an ack once its entry point has taken the command it was
// last sent, or has discarded it as malformed. The owner keeps a command
// queued until that ack arrives and never has more than one command
// outstanding, so a worker that dies takes no queued work with it.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
)

// MaxFrameSize bounds a single frame, excluding the trailing newline.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is reported for frames longer than MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

const ackKind = "ack"

// Encoder writes frames to an underlying writer. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// WriteCommand writes one command frame.
func (e *Encoder) WriteCommand(cmd domain.Command) error {
	return e.write(cmd)
}

// WriteResponse writes one response frame.
func (e *Encoder) WriteResponse(resp domain.Response) error {
	return e.write(resp)
}

// WriteAck writes an ack frame.
func (e *Encoder) WriteAck() error {
	return e.write(kindProbe{Kind: ackKind})
}

func (e *Encoder) write(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// CheckCommand reports whether cmd fits in a single frame.
func CheckCommand(cmd domain.Command) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cmd); err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Name, err)
	}
	if n := buf.Len() - 1; n > MaxFrameSize {
		return fmt.Errorf("command %s is %d bytes, limit %d: %w", cmd.Name, n, MaxFrameSize, ErrFrameTooLarge)
	}
	return nil
}

// Frame is one message read from a worker: either an ack or a response.
type Frame struct {
	Ack      bool
	Response domain.Response
}

type kindProbe struct {
	Kind string `json:"kind"`
}

// Decoder reads frames line by line. Not safe for concurrent use.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// FrameError reports a line that could not be decoded. The stream itself is
// still usable: the next call moves on to the following line.
type FrameError struct {
	Line []byte
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bad frame %q: %v", e.Line, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// ReadCommand reads the next command frame.
// It returns io.EOF when the stream ends cleanly.
func (d *Decoder) ReadCommand() (domain.Command, error) {
	line, err := d.next()
	if err != nil {
		return domain.Command{}, err
	}
	var cmd domain.Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return domain.Command{}, &FrameError{Line: line, Err: err}
	}
	return cmd, nil
}

// ReadFrame reads the next ack or response frame.
// It returns io.EOF when the stream ends cleanly.
func (d *Decoder) ReadFrame() (Frame, error) {
	line, err := d.next()
	if err != nil {
		return Frame{}, err
	}
	var probe kindProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		return Frame{}, &FrameError{Line: line, Err: err}
	}
	if probe.Kind == ackKind {
		return Frame{Ack: true}, nil
	}
	var resp domain.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Frame{}, &FrameError{Line: line, Err: err}
	}
	return Frame{Response: resp}, nil
}

// ReadResponse reads the next response frame, skipping acks.
// It returns io.EOF when the stream ends cleanly.
func (d *Decoder) ReadResponse() (domain.Response, error) {
	for {
		frame, err := d.ReadFrame()
		if err != nil {
			return domain.Response{}, err
		}
		if !frame.Ack {
			return frame.Response, nil
		}
	}
}

// next returns the next non-empty line without its line ending. A line
// longer than MaxFrameSize is consumed and reported as a *FrameError.
func (d *Decoder) next() ([]byte, error) {
	for {
		line, tooLong, err := d.readLine()
		switch {
		case err != nil && !(errors.Is(err, io.EOF) && (len(line) > 0 || tooLong)):
			return nil, err
		case tooLong:
			return nil, &FrameError{Line: line, Err: ErrFrameTooLarge}
		case len(line) == 0:
			continue
		}
		return line, nil
	}
}

// readLine reads up to and excluding '\n'. When the line exceeds
// MaxFrameSize the rest of it is discarded and only a short prefix is kept.
func (d *Decoder) readLine() (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := d.r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(bytes.TrimRight(line, "\r\n")) > MaxFrameSize {
				tooLong = true
				line = append([]byte(nil), line[:32]...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		if !tooLong {
			line = bytes.TrimRight(line, "\r\n")
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, false, fmt.Errorf("read frame: %w", rerr)
		}
		return line, tooLong, rerr
	}
}
