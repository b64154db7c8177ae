// Package frame implements the PJS wire format (C5): the frame envelope,
// the closed set of frame variants, and the JSON Pointer path dialect used
// to address patch operations (§4.5, §6.1, §6.2).
package frame

import (
	"github.com/pjsproto/pjs/value"
)

// Type is the closed `@type` discriminant (§6.1). Adding a variant is a
// wire-breaking change (§9).
type Type string

const (
	TypeSkeleton  Type = "skeleton"
	TypePatch     Type = "patch"
	TypeComplete  Type = "complete"
	TypeError     Type = "error"
	TypeHeartbeat Type = "heartbeat"
)

// Envelope carries the fields common to every frame variant (§3, §6.1).
type Envelope struct {
	Seq       uint64
	Priority  int
	Timestamp *int64 // milliseconds since epoch, optional
}

// Frame is the closed tagged union of wire frames.
type Frame interface {
	Type() Type
	Envelope() Envelope
}

// SchemaVersion is the skeleton payload's schema_version field (§6.1).
const SchemaVersion = "1.0"

// SkeletonFrame carries the initial value-empty shadow of the document.
type SkeletonFrame struct {
	Env           Envelope
	Data          value.Value
	SchemaVersion string
}

func (f *SkeletonFrame) Type() Type          { return TypeSkeleton }
func (f *SkeletonFrame) Envelope() Envelope  { return f.Env }

// ArrayMetadata restarts a chunked streamed-array patch (§4.4, §6.1).
type ArrayMetadata struct {
	Path       value.Path
	TotalItems int
	ChunkIndex int
	ChunkSize  int
}

// Encoding names a compression codec applied to a patch payload (§6.1).
type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingDict   Encoding = "dict"
	EncodingDelta  Encoding = "delta"
	EncodingRLE    Encoding = "rle"
)

// PatchFrame carries one or more path-targeted operations (§3, §6.1).
type PatchFrame struct {
	Env           Envelope
	Patches       []PatchOp
	BasePath      value.Path // optional; prepended to each operation's path
	ArrayMetadata *ArrayMetadata
	Dictionary    []string
	Encoding      Encoding
}

func (f *PatchFrame) Type() Type         { return TypePatch }
func (f *PatchFrame) Envelope() Envelope { return f.Env }

// Op is the closed operation set (§4, §6.3).
type Op string

const (
	OpSet    Op = "set"
	OpAppend Op = "append"
	OpMerge  Op = "merge"
	OpDelete Op = "delete"
)

// PatchOp is one `{op, path, value?}` entry of a Patch frame (§6.1).
// Value must be nil iff Op == OpDelete.
type PatchOp struct {
	Op    Op
	Path  value.Path
	Value value.Value
}

// Stats is the Complete frame's summary payload (§6.1).
type Stats struct {
	TotalFrames int
	TotalBytes  int
	DurationMS  int64
}

// CompleteFrame terminates a plan (§3, §6.1).
type CompleteFrame struct {
	Env      Envelope
	Stats    Stats
	Checksum string // "sha256:<hex>", optional
}

func (f *CompleteFrame) Type() Type         { return TypeComplete }
func (f *CompleteFrame) Envelope() Envelope { return f.Env }

// ErrorInfo is the Error frame's payload (§6.1, §7).
type ErrorInfo struct {
	Code        string
	Message     string
	Recoverable bool
}

// ErrorFrame reports a protocol or admission failure (§3, §6.1).
type ErrorFrame struct {
	Env   Envelope
	Error ErrorInfo
}

func (f *ErrorFrame) Type() Type         { return TypeError }
func (f *ErrorFrame) Envelope() Envelope { return f.Env }

// HeartbeatFrame carries no payload beyond the envelope (§3, §6.1).
type HeartbeatFrame struct {
	Env Envelope
}

func (f *HeartbeatFrame) Type() Type         { return TypeHeartbeat }
func (f *HeartbeatFrame) Envelope() Envelope { return f.Env }
