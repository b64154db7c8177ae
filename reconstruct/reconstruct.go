// Package reconstruct implements the PJS reconstructor (C7): it applies
// received frames to mutable reconstruction state and emits render events,
// enforcing protocol order and the priority-watermarked conflict rule.
package reconstruct

import (
	"fmt"
	"sync"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/compress"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/value"
)

// EventKind names the four render-event shapes.
type EventKind string

const (
	EventSet    EventKind = "set"
	EventAppend EventKind = "append"
	EventMerge  EventKind = "merge"
	EventDelete EventKind = "delete"
)

// RenderEvent reports one accepted mutation of the reconstruction state
// (§4.7: "Each applied operation emits one RenderEvent").
type RenderEvent struct {
	Path       value.Path
	Priority   int
	Kind       EventKind
	OutOfOrder bool
}

// ViolationKind enumerates the non-fatal conditions the reconstructor can
// raise alongside a render event, or in place of one.
type ViolationKind string

const (
	SequenceGap       ViolationKind = "sequence_gap"
	DuplicateSeq      ViolationKind = "duplicate_seq"
	PriorityDowngrade ViolationKind = "priority_downgrade"
	PathRejected      ViolationKind = "path_rejected"
)

// Violation is a non-fatal reconstructor event (§4.7, §6.6).
type Violation struct {
	Kind ViolationKind
	Path value.Path
	Seq  uint64
}

func (v *Violation) Error() string {
	return fmt.Sprintf("reconstruct: %s at %s (seq=%d)", v.Kind, v.Path, v.Seq)
}

// ProtocolViolation reports a frame that breaks protocol order (§4.7). It is
// not the only fatal error Apply returns: a Patch frame's compress decode
// errors (such as *compress.BombSuspected) and *admission.AdmissionError
// from an op value are returned as err too.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string { return "reconstruct: protocol violation: " + e.Reason }

type watermark struct {
	priority int
}

// State is the mutable reconstruction state (§3): a Value initialised from
// a Skeleton frame and mutated by Patch frames in arrival order, plus a
// last-applied-seq and per-path priority watermark. State is owned by
// exactly one session task and is never shared across a suspension point.
type State struct {
	mu sync.Mutex

	root         value.Value
	seenSkeleton bool
	completed    bool

	lastAppliedSeq uint64
	haveAppliedSeq bool
	seenSeqs       map[uint64]bool

	watermarks map[string]*watermark

	lastPriority int
	havePriority bool

	policy admission.Policy
}

// New returns an empty, unopened reconstruction state. policy's
// MaxDepth/MaxArrayElements/MaxObjectKeys are re-checked against every
// incoming op's value (§4.9), and each Patch frame's compressed payload, if
// any, is decoded against a fresh per-frame compress.Budget before policy
// ever sees it (§4.6, §8 property 8, seed scenario S5).
func New(policy admission.Policy) *State {
	return &State{
		seenSeqs:   make(map[uint64]bool),
		watermarks: make(map[string]*watermark),
		policy:     policy,
	}
}

// Value returns the current reconstructed value. The caller must not
// mutate the returned tree directly.
func (s *State) Value() value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Apply feeds one frame to the reconstructor, returning the render events
// it produced (empty for control frames such as Complete/Heartbeat) and
// any non-fatal violations observed while processing it. A fatal protocol
// violation is returned as err and the state is left unchanged.
func (s *State) Apply(f frame.Frame) ([]RenderEvent, []Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := f.Envelope().Seq

	if s.completed {
		return nil, nil, &ProtocolViolation{Reason: "frame received after Complete"}
	}

	switch v := f.(type) {
	case *frame.SkeletonFrame:
		if s.seenSkeleton {
			return nil, nil, &ProtocolViolation{Reason: "Skeleton received twice"}
		}
		s.seenSkeleton = true
		s.root = v.Data
		s.markSeq(seq)
		return nil, nil, nil

	case *frame.PatchFrame:
		if !s.seenSkeleton {
			return nil, nil, &ProtocolViolation{Reason: "Patch received before Skeleton"}
		}
		return s.applyPatch(v)

	case *frame.CompleteFrame:
		if !s.seenSkeleton {
			return nil, nil, &ProtocolViolation{Reason: "Complete received before Skeleton"}
		}
		s.completed = true
		s.markSeq(seq)
		return nil, nil, nil

	case *frame.ErrorFrame:
		s.markSeq(seq)
		return nil, nil, nil

	case *frame.HeartbeatFrame:
		s.markSeq(seq)
		return nil, nil, nil

	default:
		return nil, nil, &ProtocolViolation{Reason: "unknown frame type"}
	}
}

// markSeq records bookkeeping (duplicate/gap detection) for control frames
// that carry no patch ops of their own.
func (s *State) markSeq(seq uint64) {
	if s.seenSeqs[seq] {
		return
	}
	s.seenSeqs[seq] = true
	if !s.haveAppliedSeq || seq > s.lastAppliedSeq {
		s.lastAppliedSeq = seq
		s.haveAppliedSeq = true
	}
}

func (s *State) applyPatch(p *frame.PatchFrame) ([]RenderEvent, []Violation, error) {
	seq := p.Env.Seq

	if s.seenSeqs[seq] {
		return nil, []Violation{{Kind: DuplicateSeq, Seq: seq}}, nil
	}
	s.seenSeqs[seq] = true

	if err := compress.DecodePatchFrame(p, compress.NewBudget(0)); err != nil {
		return nil, nil, err
	}

	var violations []Violation
	if s.haveAppliedSeq && seq > s.lastAppliedSeq+1 {
		violations = append(violations, Violation{Kind: SequenceGap, Seq: seq})
	}

	outOfOrder := s.havePriority && p.Env.Priority > s.lastPriority
	s.havePriority = true
	s.lastPriority = p.Env.Priority
	if seq > s.lastAppliedSeq || !s.haveAppliedSeq {
		s.lastAppliedSeq = seq
		s.haveAppliedSeq = true
	}

	events := make([]RenderEvent, 0, len(p.Patches))
	for _, op := range p.Patches {
		op.Path = concatPath(p.BasePath, op.Path)
		ev, viol, err := s.applyOp(op, p.Env.Priority, outOfOrder)
		if err != nil {
			return events, violations, err
		}
		if viol != nil {
			violations = append(violations, *viol)
			continue
		}
		events = append(events, *ev)
	}
	return events, violations, nil
}

// concatPath prepends base to rel, as §6.1's optional BasePath field does
// for every operation in a Patch frame.
func concatPath(base, rel value.Path) value.Path {
	if len(base) == 0 {
		return rel
	}
	out := make(value.Path, 0, len(base)+len(rel))
	out = append(out, base...)
	out = append(out, rel...)
	return out
}

func (s *State) applyOp(op frame.PatchOp, priority int, outOfOrder bool) (*RenderEvent, *Violation, error) {
	key := op.Path.String()
	wm, ok := s.watermarks[key]
	if !ok {
		wm = &watermark{priority: priority}
		s.watermarks[key] = wm
	} else if priority < wm.priority {
		return nil, &Violation{Kind: PriorityDowngrade, Path: op.Path}, nil
	}
	if priority > wm.priority {
		wm.priority = priority
	}

	if op.Value != nil {
		if err := s.policy.CheckValue(op.Value); err != nil {
			return nil, nil, err
		}
	}

	var kind EventKind
	var err error
	switch op.Op {
	case frame.OpSet:
		kind = EventSet
		err = applySet(&s.root, op.Path, op.Value)
	case frame.OpAppend:
		kind = EventAppend
		err = applyAppend(&s.root, op.Path, op.Value)
	case frame.OpMerge:
		kind = EventMerge
		err = applyMerge(&s.root, op.Path, op.Value)
	case frame.OpDelete:
		kind = EventDelete
		err = value.Delete(s.root, op.Path)
	default:
		return nil, &Violation{Kind: PathRejected, Path: op.Path}, nil
	}
	if err != nil {
		return nil, &Violation{Kind: PathRejected, Path: op.Path}, nil
	}

	return &RenderEvent{
		Path:       op.Path,
		Priority:   priority,
		Kind:       kind,
		OutOfOrder: outOfOrder,
	}, nil, nil
}

// applySet implements §4.7's set semantics, including the path-creation
// special cases: a missing object key is created, and an array index equal
// to the current length appends.
func applySet(root *value.Value, p value.Path, v value.Value) error {
	if len(p) == 0 {
		return value.Set(root, p, v)
	}
	if err := value.Set(root, p, v); err == nil {
		return nil
	}
	parentPath, last, _ := p.Parent()
	parent, ok := value.Get(*root, parentPath)
	if !ok {
		return fmt.Errorf("reconstruct: parent %s does not exist", parentPath)
	}
	if last.IsIndex {
		arr, ok := parent.(*value.Array)
		if !ok {
			return fmt.Errorf("reconstruct: parent at %s is not an array", parentPath)
		}
		if last.Index == len(arr.Elems) {
			return value.Append(*root, parentPath, v)
		}
		return fmt.Errorf("reconstruct: index %d out of range at %s", last.Index, parentPath)
	}
	obj, ok := parent.(*value.Object)
	if !ok {
		return fmt.Errorf("reconstruct: parent at %s is not an object", parentPath)
	}
	obj.Set(last.Key, v)
	return nil
}

// applyAppend implements §4.7's append semantics: the target must be an
// array (or skeleton-creatable as an empty one); it accepts a single value
// or a batched array of values.
func applyAppend(root *value.Value, p value.Path, v value.Value) error {
	target, ok := value.Get(*root, p)
	if !ok {
		if err := value.Set(root, p, &value.Array{}); err != nil {
			return err
		}
	} else if _, isArr := target.(*value.Array); !isArr {
		return fmt.Errorf("reconstruct: append target at %s is not an array", p)
	}

	if batch, ok := v.(*value.Array); ok {
		for _, item := range batch.Elems {
			if err := value.Append(*root, p, item); err != nil {
				return err
			}
		}
		return nil
	}
	return value.Append(*root, p, v)
}

// applyMerge implements §4.7's merge semantics: both target and value must
// be objects; keys in value override, other target keys are preserved.
func applyMerge(root *value.Value, p value.Path, v value.Value) error {
	src, ok := v.(*value.Object)
	if !ok {
		return fmt.Errorf("reconstruct: merge value at %s is not an object", p)
	}
	return value.Merge(*root, p, src)
}
