package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pjsproto/pjs/value"
)

// MaxFramePayload is the default encode/decode byte cap per frame
// (max_frame_payload, §6.5). Encode and Decode do not apply it themselves:
// they check only the maxPayload their caller passes, and 0 disables the
// check.
const MaxFramePayload = 1 << 20 // 1 MiB

// Malformed reports a decode failure (§7 FrameError::Malformed).
type Malformed struct{ Reason string }

func (e *Malformed) Error() string { return "frame: malformed: " + e.Reason }

// UnsupportedType reports an unknown `@type` discriminant.
type UnsupportedType struct{ Type string }

func (e *UnsupportedType) Error() string { return "frame: unsupported @type " + fmt.Sprintf("%q", e.Type) }

// UnsupportedOperation reports an operation outside the closed set (§6.3).
type UnsupportedOperation struct{ Op string }

func (e *UnsupportedOperation) Error() string {
	return "frame: unsupported operation " + fmt.Sprintf("%q", e.Op)
}

// PayloadTooLarge reports a frame whose encoded size exceeds the cap.
type PayloadTooLarge struct {
	Size, Limit int
}

func (e *PayloadTooLarge) Error() string {
	return fmt.Sprintf("frame: payload too large: %d bytes (limit %d)", e.Size, e.Limit)
}

// Encode serialises f to canonical JSON with field order
// `@type, @seq, @priority, @timestamp, variant-specific` (§4.5), rejecting
// frames whose encoded size would exceed maxPayload (0 disables the check).
func Encode(f Frame, maxPayload int) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeEnvelope(&buf, f); err != nil {
		return nil, err
	}
	if err := writeVariant(&buf, f); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	out := buf.Bytes()
	if maxPayload > 0 && len(out) > maxPayload {
		return nil, &PayloadTooLarge{Size: len(out), Limit: maxPayload}
	}
	return out, nil
}

func writeEnvelope(buf *bytes.Buffer, f Frame) error {
	env := f.Envelope()
	buf.WriteByte('{')
	writeField(buf, "@type", jstr(string(f.Type())), true)
	writeField(buf, "@seq", jnum(env.Seq), false)
	writeField(buf, "@priority", jnum(env.Priority), false)
	if env.Timestamp != nil {
		writeField(buf, "@timestamp", jnum(*env.Timestamp), false)
	}
	return nil
}

func writeField(buf *bytes.Buffer, key string, value []byte, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(value)
}

func jstr(s string) []byte { b, _ := json.Marshal(s); return b }
func jnum(n any) []byte    { b, _ := json.Marshal(n); return b }

func writeVariant(buf *bytes.Buffer, f Frame) error {
	switch v := f.(type) {
	case *SkeletonFrame:
		data, err := value.Marshal(v.Data)
		if err != nil {
			return err
		}
		schema := v.SchemaVersion
		if schema == "" {
			schema = SchemaVersion
		}
		buf.WriteByte(',')
		buf.Write(jstr("data"))
		buf.WriteByte(':')
		buf.Write(data)
		buf.WriteByte(',')
		buf.Write(jstr("@schema_version"))
		buf.WriteByte(':')
		buf.Write(jstr(schema))
		return nil
	case *PatchFrame:
		return writePatchVariant(buf, v)
	case *CompleteFrame:
		buf.WriteByte(',')
		buf.Write(jstr("@stats"))
		buf.WriteByte(':')
		statsJSON, _ := json.Marshal(map[string]any{
			"total_frames": v.Stats.TotalFrames,
			"total_bytes":  v.Stats.TotalBytes,
			"duration_ms":  v.Stats.DurationMS,
		})
		buf.Write(statsJSON)
		if v.Checksum != "" {
			buf.WriteByte(',')
			buf.Write(jstr("@checksum"))
			buf.WriteByte(':')
			buf.Write(jstr(v.Checksum))
		}
		return nil
	case *ErrorFrame:
		buf.WriteByte(',')
		buf.Write(jstr("@error"))
		buf.WriteByte(':')
		errJSON, _ := json.Marshal(map[string]any{
			"code":        v.Error.Code,
			"message":     v.Error.Message,
			"recoverable": v.Error.Recoverable,
		})
		buf.Write(errJSON)
		return nil
	case *HeartbeatFrame:
		return nil
	default:
		return fmt.Errorf("frame: cannot encode unknown frame type %T", f)
	}
}

func writePatchVariant(buf *bytes.Buffer, v *PatchFrame) error {
	buf.WriteByte(',')
	buf.Write(jstr("@patches"))
	buf.WriteByte(':')
	buf.WriteByte('[')
	for i, op := range v.Patches {
		if i > 0 {
			buf.WriteByte(',')
		}
		opJSON, err := marshalPatchOp(op)
		if err != nil {
			return err
		}
		buf.Write(opJSON)
	}
	buf.WriteByte(']')

	if len(v.BasePath) > 0 {
		buf.WriteByte(',')
		buf.Write(jstr("@base_path"))
		buf.WriteByte(':')
		buf.Write(jstr(v.BasePath.String()))
	}
	if v.ArrayMetadata != nil {
		buf.WriteByte(',')
		buf.Write(jstr("@array_metadata"))
		buf.WriteByte(':')
		meta, _ := json.Marshal(map[string]any{
			"path":        v.ArrayMetadata.Path.String(),
			"total_items": v.ArrayMetadata.TotalItems,
			"chunk_index": v.ArrayMetadata.ChunkIndex,
			"chunk_size":  v.ArrayMetadata.ChunkSize,
		})
		buf.Write(meta)
	}
	if v.Dictionary != nil {
		buf.WriteByte(',')
		buf.Write(jstr("@dictionary"))
		buf.WriteByte(':')
		dict, _ := json.Marshal(v.Dictionary)
		buf.Write(dict)
	}
	if v.Encoding != "" {
		buf.WriteByte(',')
		buf.Write(jstr("@encoding"))
		buf.WriteByte(':')
		buf.Write(jstr(string(v.Encoding)))
	}
	return nil
}

func marshalPatchOp(op PatchOp) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(jstr("op"))
	buf.WriteByte(':')
	buf.Write(jstr(string(op.Op)))
	buf.WriteByte(',')
	buf.Write(jstr("path"))
	buf.WriteByte(':')
	buf.Write(jstr(op.Path.String()))
	if op.Op != OpDelete {
		data, err := value.Marshal(op.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(jstr("value"))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// wireEnvelope is the permissive shape used to probe `@type`/`@seq`/
// `@priority` before dispatching to a concrete variant decoder. Unknown
// optional fields are ignored on purpose (§4.5 "forward-compatible").
type wireEnvelope struct {
	Type      *string         `json:"@type"`
	Seq       *uint64         `json:"@seq"`
	Priority  *int            `json:"@priority"`
	Timestamp *int64          `json:"@timestamp"`
	Data      json.RawMessage `json:"data"`
	Schema    string          `json:"@schema_version"`
	Patches   []wirePatchOp   `json:"@patches"`
	BasePath  string          `json:"@base_path"`
	ArrayMeta *wireArrayMeta  `json:"@array_metadata"`
	Dict      []string        `json:"@dictionary"`
	Encoding  string          `json:"@encoding"`
	Stats     *wireStats      `json:"@stats"`
	Checksum  string          `json:"@checksum"`
	ErrorInfo *wireErrorInfo  `json:"@error"`
}

type wirePatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type wireArrayMeta struct {
	Path       string `json:"path"`
	TotalItems int    `json:"total_items"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkSize  int    `json:"chunk_size"`
}

type wireStats struct {
	TotalFrames int   `json:"total_frames"`
	TotalBytes  int   `json:"total_bytes"`
	DurationMS  int64 `json:"duration_ms"`
}

type wireErrorInfo struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Decode parses one frame from data, validating presence and types of
// `@type`, `@seq`, `@priority` and rejecting unknown `@type` (§4.5).
func Decode(data []byte, maxPayload int) (Frame, error) {
	if maxPayload > 0 && len(data) > maxPayload {
		return nil, &PayloadTooLarge{Size: len(data), Limit: maxPayload}
	}
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &Malformed{Reason: err.Error()}
	}
	if w.Type == nil {
		return nil, &Malformed{Reason: "missing @type"}
	}
	if w.Seq == nil {
		return nil, &Malformed{Reason: "missing @seq"}
	}
	if w.Priority == nil {
		return nil, &Malformed{Reason: "missing @priority"}
	}
	env := Envelope{Seq: *w.Seq, Priority: *w.Priority, Timestamp: w.Timestamp}

	switch Type(*w.Type) {
	case TypeSkeleton:
		v, err := value.Unmarshal(w.Data)
		if err != nil {
			return nil, &Malformed{Reason: "invalid skeleton data: " + err.Error()}
		}
		schema := w.Schema
		if schema == "" {
			schema = SchemaVersion
		}
		return &SkeletonFrame{Env: env, Data: v, SchemaVersion: schema}, nil
	case TypePatch:
		return decodePatchFrame(env, w)
	case TypeComplete:
		stats := Stats{}
		if w.Stats != nil {
			stats = Stats{TotalFrames: w.Stats.TotalFrames, TotalBytes: w.Stats.TotalBytes, DurationMS: w.Stats.DurationMS}
		}
		return &CompleteFrame{Env: env, Stats: stats, Checksum: w.Checksum}, nil
	case TypeError:
		info := ErrorInfo{}
		if w.ErrorInfo != nil {
			info = ErrorInfo{Code: w.ErrorInfo.Code, Message: w.ErrorInfo.Message, Recoverable: w.ErrorInfo.Recoverable}
		}
		return &ErrorFrame{Env: env, Error: info}, nil
	case TypeHeartbeat:
		return &HeartbeatFrame{Env: env}, nil
	default:
		return nil, &UnsupportedType{Type: *w.Type}
	}
}

func decodePatchFrame(env Envelope, w wireEnvelope) (Frame, error) {
	ops := make([]PatchOp, len(w.Patches))
	for i, wop := range w.Patches {
		op := Op(wop.Op)
		switch op {
		case OpSet, OpAppend, OpMerge, OpDelete:
		default:
			return nil, &UnsupportedOperation{Op: wop.Op}
		}
		path, err := value.ParsePath(wop.Path)
		if err != nil {
			return nil, &Malformed{Reason: err.Error()}
		}
		var v value.Value
		if op != OpDelete {
			v, err = value.Unmarshal(wop.Value)
			if err != nil {
				return nil, &Malformed{Reason: "invalid patch value: " + err.Error()}
			}
		} else if len(wop.Value) > 0 {
			return nil, &Malformed{Reason: "delete operation must not carry a value"}
		}
		ops[i] = PatchOp{Op: op, Path: path, Value: v}
	}

	var basePath value.Path
	if w.BasePath != "" {
		p, err := value.ParsePath(w.BasePath)
		if err != nil {
			return nil, &Malformed{Reason: err.Error()}
		}
		basePath = p
	}

	var meta *ArrayMetadata
	if w.ArrayMeta != nil {
		p, err := value.ParsePath(w.ArrayMeta.Path)
		if err != nil {
			return nil, &Malformed{Reason: err.Error()}
		}
		meta = &ArrayMetadata{
			Path:       p,
			TotalItems: w.ArrayMeta.TotalItems,
			ChunkIndex: w.ArrayMeta.ChunkIndex,
			ChunkSize:  w.ArrayMeta.ChunkSize,
		}
	}

	return &PatchFrame{
		Env:           env,
		Patches:       ops,
		BasePath:      basePath,
		ArrayMetadata: meta,
		Dictionary:    w.Dict,
		Encoding:      Encoding(w.Encoding),
	}, nil
}

// Writer streams frames to w, newline-delimiting each JSON object so the
// sequence is self-delimited over a plain byte-stream transport (§4.5),
// the way the teacher's mcp.StdioTransport wraps stdin in a json.Encoder.
type Writer struct {
	w          io.Writer
	maxPayload int
}

// NewWriter creates a frame Writer bounded at maxPayload bytes per frame
// (0 disables the cap).
func NewWriter(w io.Writer, maxPayload int) *Writer {
	return &Writer{w: w, maxPayload: maxPayload}
}

// WriteFrame encodes and writes f followed by a newline delimiter.
func (fw *Writer) WriteFrame(f Frame) error {
	data, err := Encode(f, fw.maxPayload)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = fw.w.Write(data)
	return err
}

// Reader reads newline-delimited frames from an underlying stream.
type Reader struct {
	dec        *json.Decoder
	maxPayload int
}

// NewReader creates a frame Reader bounded at maxPayload bytes per frame.
func NewReader(r io.Reader, maxPayload int) *Reader {
	return &Reader{dec: json.NewDecoder(r), maxPayload: maxPayload}
}

// ReadFrame reads and decodes the next frame, or io.EOF when the stream is
// exhausted.
func (fr *Reader) ReadFrame() (Frame, error) {
	var raw json.RawMessage
	if err := fr.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return Decode(raw, fr.maxPayload)
}
