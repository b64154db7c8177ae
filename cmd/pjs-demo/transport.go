package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pjsproto/pjs/frame"
)

// wireFrame is the on-the-wire shape for one frame: a closed `@type`
// discriminant plus the variant's own fields, matching frame.Encode's
// field ordering (§6.1). The demo transport re-decodes through
// frame.Decode rather than reimplementing the envelope here.
type wireFrame = json.RawMessage

// stdioTransport streams frame.Frame values across an io.ReadWriteCloser
// using one JSON value per frame, no length prefix — adapted from the
// teacher's StdioTransport (encoder/decoder pair over a pipe's stdin and
// stdout), generalized from JSON-RPC request/response envelopes to PJS
// frames and from a subprocess pipe to any ReadWriteCloser (here an
// io.Pipe, but the shape equally fits a real stdio subprocess or a TCP
// conn, as the teacher's transport.go also showed for MCP).
type stdioTransport struct {
	w io.WriteCloser
	r io.ReadCloser

	encMu   sync.Mutex
	encoder *json.Encoder
	decoder *json.Decoder
}

// newStdioTransport wraps a write side and a read side — for the demo,
// the two ends of an io.Pipe; for a real stdio subprocess, stdin and
// stdout, exactly as the teacher's NewStdioTransport paired them.
func newStdioTransport(w io.WriteCloser, r io.ReadCloser) *stdioTransport {
	return &stdioTransport{
		w:       w,
		r:       r,
		encoder: json.NewEncoder(w),
		decoder: json.NewDecoder(r),
	}
}

// Send encodes and writes one frame, re-marshaling through frame.Encode so
// the wire format always matches what a real PJS transport would emit.
func (t *stdioTransport) Send(f frame.Frame) error {
	raw, err := frame.Encode(f, 0)
	if err != nil {
		return fmt.Errorf("pjs-demo: encoding frame: %w", err)
	}
	t.encMu.Lock()
	defer t.encMu.Unlock()
	var buffered wireFrame = raw
	if err := t.encoder.Encode(buffered); err != nil {
		return fmt.Errorf("pjs-demo: writing frame: %w", err)
	}
	return nil
}

// Receive reads and decodes the next frame, returning its wire byte length
// alongside the decoded value so the caller can feed both to
// ConsumerSession.Ingest.
func (t *stdioTransport) Receive() (frame.Frame, int, error) {
	var raw wireFrame
	if err := t.decoder.Decode(&raw); err != nil {
		return nil, 0, err
	}
	f, err := frame.Decode(raw, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("pjs-demo: decoding frame: %w", err)
	}
	return f, len(raw), nil
}

func (t *stdioTransport) Close() error {
	werr := t.w.Close()
	rerr := t.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
