package pjs

import (
	"go.uber.org/zap"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/reconstruct"
	"github.com/pjsproto/pjs/value"
)

// Progress summarizes a ConsumerSession's intake for monitoring (§6.4
// `pjs.progress`).
type Progress struct {
	Seq            uint64
	PrioritiesSeen []int
	BytesIn        int64
	IsComplete     bool
}

// ConsumerSession wraps a reconstruct.State with the session state machine,
// admission checks on incoming frame bytes, and progress bookkeeping
// (§4.7, §4.8, §4.9).
type ConsumerSession struct {
	*session

	recon *reconstruct.State

	bytesIn        int64
	prioritiesSeen map[int]bool
	lastSeq        uint64
	maxSeqSeen     uint64
	haveSeq        bool
	reorderWindow  uint64
}

// OpenConsumer returns a ConsumerSession ready to ingest frames (§6.4
// `pjs.open_consumer`).
func OpenConsumer(cfg Config, limiter *admission.Limiter) *ConsumerSession {
	window := cfg.ReorderWindow
	if window <= 0 {
		window = 32
	}
	cs := &ConsumerSession{
		session:        newSession(cfg, limiter),
		recon:          reconstruct.New(cfg.admissionPolicy()),
		prioritiesSeen: make(map[int]bool),
		reorderWindow:  uint64(window),
	}
	cs.resetIdleTimer()
	return cs
}

// Ingest admits and applies one wire frame, advancing the session state
// machine and returning the render events and non-fatal violations the
// reconstructor produced. raw is the frame's encoded byte length, checked
// against the per-frame payload cap before the frame is applied (§4.9).
func (cs *ConsumerSession) Ingest(f frame.Frame, raw int) ([]reconstruct.RenderEvent, []reconstruct.Violation, error) {
	cs.mu.Lock()
	if cs.state == StateClosed || cs.state == StateFailed {
		cs.mu.Unlock()
		return nil, nil, &InvalidTransition{From: cs.state, Event: "ingest"}
	}
	if err := cs.policy.CheckFramePayload(raw); err != nil {
		cs.mu.Unlock()
		cs.fail(ReasonBudgetExceeded)
		return nil, nil, err
	}
	if cs.limiter != nil {
		if err := cs.limiter.Allow(cs.id); err != nil {
			cs.mu.Unlock()
			return nil, nil, err
		}
	}
	seq := f.Envelope().Seq
	if cs.haveSeq && seq+cs.reorderWindow < cs.maxSeqSeen {
		cs.mu.Unlock()
		cs.fail(ReasonReorderWindowExceeded)
		return nil, nil, &SessionError{Reason: ReasonReorderWindowExceeded}
	}
	if !cs.haveSeq || seq > cs.maxSeqSeen {
		cs.maxSeqSeen = seq
		cs.haveSeq = true
	}
	cs.armIdleTimer()
	cs.mu.Unlock()

	events, violations, err := cs.recon.Apply(f)
	if err != nil {
		cs.fail(ReasonMalformed)
		return events, violations, err
	}

	cs.mu.Lock()
	cs.bytesIn += int64(raw)
	cs.lastSeq = f.Envelope().Seq
	cs.prioritiesSeen[f.Envelope().Priority] = true
	var didClose bool
	switch f.(type) {
	case *frame.SkeletonFrame:
		_ = cs.transition("skeleton", map[State]State{StateOpening: StateSkeletonSent})
	case *frame.CompleteFrame:
		_ = cs.transition("complete", map[State]State{
			StateSkeletonSent: StateDraining,
			StateStreaming:    StateDraining,
		})
		didClose = cs.closeLocked()
	default:
		_ = cs.transition("patch", map[State]State{
			StateSkeletonSent: StateStreaming,
			StateStreaming:    StateStreaming,
		})
	}
	cs.mu.Unlock()
	if didClose && cs.onClose != nil {
		cs.onClose()
	}

	for _, v := range violations {
		cs.log.Debug("reconstruction violation", zap.String("kind", string(v.Kind)), zap.String("path", v.Path.String()))
	}

	return events, violations, nil
}

// CurrentState returns the reconstructed value as of the last applied
// frame (§6.4 `pjs.current_state`).
func (cs *ConsumerSession) CurrentState() value.Value {
	return cs.recon.Value()
}

// Progress reports intake bookkeeping (§6.4 `pjs.progress`).
func (cs *ConsumerSession) Progress() Progress {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	priorities := make([]int, 0, len(cs.prioritiesSeen))
	for p := range cs.prioritiesSeen {
		priorities = append(priorities, p)
	}
	return Progress{
		Seq:            cs.lastSeq,
		PrioritiesSeen: priorities,
		BytesIn:        cs.bytesIn,
		IsComplete:     cs.state == StateClosed,
	}
}
