// Package plan implements the PJS patch planner (C4): it walks an analysed
// value in document order, buckets entries by priority, and emits a finite,
// totally ordered sequence of frames terminated by a Complete frame (§4.4).
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/compress"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/priority"
	"github.com/pjsproto/pjs/value"
)

// Config controls packing and array-streaming behaviour (§6.5).
type Config struct {
	// MaxFramePayload bounds each emitted frame's encoded size (0 disables
	// the check, not recommended outside tests).
	MaxFramePayload int
	// ArrayStreamThreshold (T_arr) must match the threshold used to build
	// the skeleton, or chunked-append ops will target an array the
	// consumer's skeleton never created as streamed.
	ArrayStreamThreshold int
	// Compression selects the codec applied to each streamed-array chunk and,
	// after packing, to each packed Patch frame's op values (§4.6, §6.5
	// `compression`). CodecAuto runs compress.Select per chunk or frame;
	// CodecNone/"off" disables compression entirely.
	Compression compress.Codec
}

// DefaultConfig mirrors admission's default max_frame_payload and the
// skeleton generator's default T_arr.
func DefaultConfig() Config {
	return Config{MaxFramePayload: 1 << 20, ArrayStreamThreshold: 100, Compression: compress.CodecAuto}
}

// FrameTooLarge reports a single indivisible leaf whose encoded op alone
// exceeds the payload cap (§4.4: "caller may reject or enable
// compression").
type FrameTooLarge struct {
	Path value.Path
	Size int
}

func (e *FrameTooLarge) Error() string {
	return fmt.Sprintf("plan: frame too large at %s: %d bytes", e.Path, e.Size)
}

// Plan is the finite, totally ordered sequence of frames a planner
// produces for one source value (§4.4, §3 "Plan").
type Plan struct {
	Frames []frame.Frame
}

type entryKind int

const (
	entryLeaf entryKind = iota
	entryStreamedArray
)

type entry struct {
	path     value.Path
	priority int
	kind     entryKind
	value    value.Value   // leaf scalar value
	items    []value.Value // streamed array's elements
}

// Build walks v in document order, buckets leaves by the priorities map,
// and emits Skeleton, Patch, and Complete frames per §4.4's algorithm. It
// enforces policy's MaxDepth/MaxArrayElements/MaxObjectKeys while walking
// (§4.9), alongside pjs.OpenProducer's upfront CheckValue.
func Build(v value.Value, skel value.Value, priorities *priority.Map, cfg Config, policy admission.Policy) (*Plan, error) {
	start := time.Now()

	var seq uint64
	var frames []frame.Frame

	frames = append(frames, &frame.SkeletonFrame{
		Env:           frame.Envelope{Seq: seq},
		Data:          skel,
		SchemaVersion: frame.SchemaVersion,
	})
	seq++

	var entries []entry
	if err := walk(v, value.Root(), priorities, cfg, policy, 0, &entries); err != nil {
		return nil, err
	}

	buckets := make(map[int][]entry)
	for _, e := range entries {
		buckets[e.priority] = append(buckets[e.priority], e)
	}
	var prios []int
	for p := range buckets {
		prios = append(prios, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(prios)))

	for _, p := range prios {
		bucket := collapse(v, buckets[p], cfg)
		sort.Slice(bucket, func(i, j int) bool {
			return value.Compare(bucket[i].path, bucket[j].path) < 0
		})

		var ops []frame.PatchOp
		var streamed []entry
		for _, e := range bucket {
			if e.kind == entryStreamedArray {
				streamed = append(streamed, e)
				continue
			}
			ops = append(ops, frame.PatchOp{Op: frame.OpSet, Path: e.path, Value: e.value})
		}

		packed, err := packOps(ops, p, cfg, &seq)
		if err != nil {
			return nil, err
		}
		frames = append(frames, packed...)

		for _, e := range streamed {
			chunked, err := emitStreamedArray(e, cfg, &seq)
			if err != nil {
				return nil, err
			}
			frames = append(frames, chunked...)
		}
	}

	compressPatchFrames(frames, cfg)

	sum, err := checksumOf(v)
	if err != nil {
		return nil, err
	}

	totalBytes := 0
	for _, f := range frames {
		b, err := frame.Encode(f, 0)
		if err != nil {
			return nil, err
		}
		totalBytes += len(b)
	}

	frames = append(frames, &frame.CompleteFrame{
		Env: frame.Envelope{Seq: seq},
		Stats: frame.Stats{
			TotalFrames: len(frames) + 1,
			TotalBytes:  totalBytes,
			DurationMS:  time.Since(start).Milliseconds(),
		},
		Checksum: sum,
	})

	return &Plan{Frames: frames}, nil
}

// walk records one entry per leaf and per streamed array, in document
// order (§4.4 step 1), enforcing policy's admission limits at every
// recursion point (§4.9).
func walk(v value.Value, path value.Path, priorities *priority.Map, cfg Config, policy admission.Policy, depth int, out *[]entry) error {
	if err := policy.CheckDepth(depth); err != nil {
		return err
	}
	switch node := v.(type) {
	case *value.Object:
		if err := policy.CheckObjectKeys(node.Len()); err != nil {
			return err
		}
		for _, k := range node.Keys() {
			child, _ := node.Get(k)
			if err := walk(child, path.Child(value.Key(k)), priorities, cfg, policy, depth+1, out); err != nil {
				return err
			}
		}
	case *value.Array:
		threshold := cfg.ArrayStreamThreshold
		if threshold <= 0 {
			threshold = 100
		}
		if len(node.Elems) > threshold {
			*out = append(*out, entry{
				path:     path,
				priority: priorities.Lookup(path),
				kind:     entryStreamedArray,
				items:    node.Elems,
			})
			return nil
		}
		if err := policy.CheckArrayElements(len(node.Elems)); err != nil {
			return err
		}
		for i, el := range node.Elems {
			if err := walk(el, path.Child(value.Idx(i)), priorities, cfg, policy, depth+1, out); err != nil {
				return err
			}
		}
	default:
		*out = append(*out, entry{path: path, priority: priorities.Lookup(path), kind: entryLeaf, value: v})
	}
	return nil
}

// collapse implements §4.4 step 3b: when every child of an object (or a
// small array) shares this bucket's priority, replace the individual leaf
// entries with a single `set` at the parent.
func collapse(root value.Value, bucket []entry, cfg Config) []entry {
	byParent := make(map[string][]int)
	for i, e := range bucket {
		if e.kind != entryLeaf || len(e.path) == 0 {
			continue
		}
		parentPath, _, _ := e.path.Parent()
		byParent[parentPath.String()] = append(byParent[parentPath.String()], i)
	}

	collapsedIdx := make(map[int]bool)
	var replacements []entry
	for _, idxs := range byParent {
		if len(idxs) < 2 {
			continue
		}
		parentPath, _, _ := bucket[idxs[0]].path.Parent()
		parentVal, ok := value.Get(root, parentPath)
		if !ok {
			continue
		}
		var childCount int
		switch pv := parentVal.(type) {
		case *value.Object:
			childCount = pv.Len()
		case *value.Array:
			threshold := cfg.ArrayStreamThreshold
			if threshold <= 0 {
				threshold = 100
			}
			if len(pv.Elems) > threshold {
				continue
			}
			childCount = len(pv.Elems)
		default:
			continue
		}
		if len(idxs) != childCount {
			continue
		}
		for _, i := range idxs {
			collapsedIdx[i] = true
		}
		replacements = append(replacements, entry{
			path:     parentPath,
			priority: bucket[idxs[0]].priority,
			kind:     entryLeaf,
			value:    parentVal,
		})
	}

	out := make([]entry, 0, len(bucket))
	for i, e := range bucket {
		if !collapsedIdx[i] {
			out = append(out, e)
		}
	}
	out = append(out, replacements...)
	return out
}

// packOps packs ops into Patch frames up to the payload cap, starting a
// new frame at the same priority when the cap is reached (§4.4 step 3a).
func packOps(ops []frame.PatchOp, priority int, cfg Config, seq *uint64) ([]frame.Frame, error) {
	var frames []frame.Frame
	var cur []frame.PatchOp

	flush := func() error {
		if len(cur) == 0 {
			return nil
		}
		f := &frame.PatchFrame{Env: frame.Envelope{Seq: *seq, Priority: priority}, Patches: cur}
		if _, err := frame.Encode(f, cfg.MaxFramePayload); err != nil {
			return err
		}
		frames = append(frames, f)
		*seq++
		cur = nil
		return nil
	}

	for _, op := range ops {
		single := &frame.PatchFrame{Env: frame.Envelope{Seq: *seq, Priority: priority}, Patches: []frame.PatchOp{op}}
		encoded, err := frame.Encode(single, 0)
		if err != nil {
			return nil, err
		}
		if cfg.MaxFramePayload > 0 && len(encoded) > cfg.MaxFramePayload {
			return nil, &FrameTooLarge{Path: op.Path, Size: len(encoded)}
		}

		trial := append(append([]frame.PatchOp{}, cur...), op)
		trialFrame := &frame.PatchFrame{Env: frame.Envelope{Seq: *seq, Priority: priority}, Patches: trial}
		trialBytes, err := frame.Encode(trialFrame, 0)
		if err != nil {
			return nil, err
		}
		if cfg.MaxFramePayload > 0 && len(trialBytes) > cfg.MaxFramePayload && len(cur) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		cur = append(cur, op)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return frames, nil
}

// emitStreamedArray chunks a large array's elements into Append patches
// carrying ArrayMetadata for restartability (§4.4 step 3c), compressing
// each chunk's elements per cfg.Compression (§4.6).
func emitStreamedArray(e entry, cfg Config, seq *uint64) ([]frame.Frame, error) {
	chunkSize := cfg.ArrayStreamThreshold
	if chunkSize <= 0 {
		chunkSize = 100
	}
	total := len(e.items)

	var frames []frame.Frame
	for start, idx := 0, 0; start < total; start, idx = start+chunkSize, idx+1 {
		end := start + chunkSize
		if end > total {
			end = total
		}
		chunk := append([]value.Value{}, e.items[start:end]...)
		chunkVal, encoding, dict := compressChunk(chunk, cfg)
		f := &frame.PatchFrame{
			Env:     frame.Envelope{Seq: *seq, Priority: e.priority},
			Patches: []frame.PatchOp{{Op: frame.OpAppend, Path: e.path, Value: chunkVal}},
			ArrayMetadata: &frame.ArrayMetadata{
				Path:       e.path,
				TotalItems: total,
				ChunkIndex: idx,
				ChunkSize:  end - start,
			},
			Encoding:   encoding,
			Dictionary: dict,
		}
		if _, err := frame.Encode(f, cfg.MaxFramePayload); err != nil {
			return nil, err
		}
		frames = append(frames, f)
		*seq++
	}
	return frames, nil
}

// compressChunk applies cfg.Compression to one streamed-array chunk's
// elements, returning the wire-encoded replacement value (runs/deltas/ids
// packed as a value.Array) plus the frame's @encoding and @dictionary
// fields. Falls back to the chunk unchanged with EncodingRaw whenever the
// chosen codec doesn't structurally fit the chunk's values.
func compressChunk(chunk []value.Value, cfg Config) (value.Value, frame.Encoding, []string) {
	raw := &value.Array{Elems: chunk}
	if cfg.Compression == compress.CodecNone || len(chunk) < 2 {
		return raw, frame.EncodingRaw, nil
	}
	codec := cfg.Compression
	if codec == compress.CodecAuto || codec == "" {
		codec = compress.Select(chunk)
	}
	switch codec {
	case compress.CodecDelta:
		ints := make([]int64, len(chunk))
		for i, v := range chunk {
			iv, ok := v.(value.Int)
			if !ok {
				return raw, frame.EncodingRaw, nil
			}
			ints[i] = int64(iv)
		}
		deltas, err := compress.EncodeDelta(ints)
		if err != nil {
			return raw, frame.EncodingRaw, nil
		}
		elems := make([]value.Value, len(deltas))
		for i, d := range deltas {
			elems[i] = value.Int(d)
		}
		return &value.Array{Elems: elems}, frame.EncodingDelta, nil
	case compress.CodecRLE:
		runs := compress.EncodeRLE(chunk)
		elems := make([]value.Value, len(runs))
		for i, r := range runs {
			elems[i] = &value.Array{Elems: []value.Value{r.Value, value.Int(r.Count)}}
		}
		return &value.Array{Elems: elems}, frame.EncodingRLE, nil
	case compress.CodecDictionary:
		strs := make([]string, len(chunk))
		for i, v := range chunk {
			sv, ok := v.(value.String)
			if !ok {
				return raw, frame.EncodingRaw, nil
			}
			strs[i] = string(sv)
		}
		enc, err := compress.EncodeDictionary(strs, 0)
		if err != nil {
			return raw, frame.EncodingRaw, nil
		}
		elems := make([]value.Value, len(enc.IDs))
		for i, id := range enc.IDs {
			elems[i] = value.Int(id)
		}
		return &value.Array{Elems: elems}, frame.EncodingDict, enc.Dictionary
	default:
		return raw, frame.EncodingRaw, nil
	}
}

// compressPatchFrames applies cfg.Compression to every non-streamed Patch
// frame's ops in place (§4.6, §6.5 `compression`), leaving ArrayMetadata
// frames to the chunk-level compression already applied in
// emitStreamedArray. Delta and Dictionary encode one value per op, keeping
// each op's path intact; RLE's run-collapsing doesn't fit the
// one-path-per-op wire shape here, so a bucket Select picks for RLE is left
// uncompressed (it still compresses naturally at the streamed-array layer).
func compressPatchFrames(frames []frame.Frame, cfg Config) {
	if cfg.Compression == compress.CodecNone {
		return
	}
	for _, f := range frames {
		pf, ok := f.(*frame.PatchFrame)
		if !ok || pf.ArrayMetadata != nil {
			continue
		}
		compressPatchOps(pf, cfg)
	}
}

func compressPatchOps(pf *frame.PatchFrame, cfg Config) {
	if len(pf.Patches) < 2 {
		return
	}
	values := make([]value.Value, len(pf.Patches))
	for i, op := range pf.Patches {
		if op.Op == frame.OpDelete {
			return
		}
		values[i] = op.Value
	}

	codec := cfg.Compression
	if codec == compress.CodecAuto || codec == "" {
		codec = compress.Select(values)
	}
	switch codec {
	case compress.CodecDelta:
		ints := make([]int64, len(values))
		for i, v := range values {
			iv, ok := v.(value.Int)
			if !ok {
				return
			}
			ints[i] = int64(iv)
		}
		deltas, err := compress.EncodeDelta(ints)
		if err != nil {
			return
		}
		for i := range pf.Patches {
			pf.Patches[i].Value = value.Int(deltas[i])
		}
		pf.Encoding = frame.EncodingDelta
	case compress.CodecDictionary:
		strs := make([]string, len(values))
		for i, v := range values {
			sv, ok := v.(value.String)
			if !ok {
				return
			}
			strs[i] = string(sv)
		}
		enc, err := compress.EncodeDictionary(strs, 0)
		if err != nil {
			return
		}
		for i := range pf.Patches {
			pf.Patches[i].Value = value.Int(enc.IDs[i])
		}
		pf.Dictionary = enc.Dictionary
		pf.Encoding = frame.EncodingDict
	}
}

// checksumOf computes the Complete frame's checksum law: H(reconstructed
// value) using sha256 over the value's canonical JSON encoding (§8
// property 5).
func checksumOf(v value.Value) (string, error) {
	b, err := value.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
