package pjs

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/plan"
	"github.com/pjsproto/pjs/priority"
	"github.com/pjsproto/pjs/skeleton"
	"github.com/pjsproto/pjs/value"
)

// BackpressureLevel names a paused priority ceiling (§4.8: "a consumer may
// signal backpressure, pausing bands from Low upward"). While a level is
// held, Patch frames at or below it are withheld; Skeleton, Complete,
// Error, and Heartbeat frames are never paused.
type BackpressureLevel int

const (
	BackpressureNone BackpressureLevel = iota
	BackpressureLow
	BackpressureMedium
	BackpressureHigh
	BackpressureCritical
)

func bandOf(p int) BackpressureLevel {
	switch priority.BandOf(p) {
	case priority.BandCritical:
		return BackpressureCritical
	case priority.BandHigh:
		return BackpressureHigh
	case priority.BandMedium:
		return BackpressureMedium
	case priority.BandLow:
		return BackpressureLow
	default:
		return BackpressureNone
	}
}

// ProducerSession holds a precomputed Plan and serves its frames one at a
// time, honoring backpressure and the per-session/global rate limiter
// (§4.4, §4.8, §4.9).
type ProducerSession struct {
	*session

	frames []frame.Frame
	cursor int

	paused BackpressureLevel
}

// OpenProducer analyses v, builds its skeleton, plans its frame sequence,
// and returns a ProducerSession ready to serve frames via NextFrame
// (§4.4's Analyse -> Generate -> Build pipeline, §6.4 `pjs.open_producer`).
func OpenProducer(v value.Value, cfg Config, limiter *admission.Limiter) (*ProducerSession, error) {
	policy := cfg.admissionPolicy()

	if err := policy.CheckValue(v); err != nil {
		return nil, fmt.Errorf("pjs: admitting value: %w", err)
	}

	priorities, err := priority.Analyse(v, cfg.priorityConfig(), policy)
	if err != nil {
		return nil, fmt.Errorf("pjs: analysing priorities: %w", err)
	}

	skel, err := skeleton.Generate(v, cfg.skeletonConfig(), policy)
	if err != nil {
		return nil, fmt.Errorf("pjs: generating skeleton: %w", err)
	}

	built, err := plan.Build(v, skel, priorities, cfg.planConfig(), policy)
	if err != nil {
		return nil, fmt.Errorf("pjs: building plan: %w", err)
	}
	if int64(len(built.Frames)) > policy.MaxPatchesPerStream {
		return nil, &admission.AdmissionError{
			Limit: admission.LimitMaxPatchesPerStream,
			Got:   int64(len(built.Frames)),
			Max:   policy.MaxPatchesPerStream,
		}
	}

	ps := &ProducerSession{
		session: newSession(cfg, limiter),
		frames:  built.Frames,
	}
	ps.resetIdleTimer()
	ps.log.Info("producer opened", zap.Int("frame_count", len(built.Frames)))
	return ps, nil
}

// SetBackpressure pauses emission of Patch frames at or below level
// (§4.8). Skeleton, Complete, Error, and Heartbeat frames are unaffected.
func (ps *ProducerSession) SetBackpressure(level BackpressureLevel) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.paused = level
	ps.log.Debug("backpressure set", zap.Int("level", int(level)))
}

// ReleaseBackpressure clears any paused ceiling, resuming emission of every
// band.
func (ps *ProducerSession) ReleaseBackpressure() {
	ps.SetBackpressure(BackpressureNone)
}

// NextFrame returns the next deliverable frame, or (nil, false) when either
// the plan is exhausted or the next frame's band is currently paused. The
// caller drives the pull loop (§6.4: "consumer-paced via a pull API").
func (ps *ProducerSession) NextFrame() (frame.Frame, bool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.state == StateClosed || ps.state == StateFailed {
		return nil, false, nil
	}
	if ps.cursor >= len(ps.frames) {
		if err := ps.transition("exhausted", map[State]State{
			StateStreaming:    StateDraining,
			StateSkeletonSent: StateDraining,
			StateDraining:     StateDraining,
		}); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	f := ps.frames[ps.cursor]
	if pf, ok := f.(*frame.PatchFrame); ok && ps.paused != BackpressureNone {
		if bandOf(pf.Env.Priority) <= ps.paused {
			return nil, false, nil
		}
	}

	if ps.limiter != nil {
		if err := ps.limiter.Allow(ps.id); err != nil {
			return nil, false, err
		}
	}

	ps.cursor++
	ps.armIdleTimer()

	switch f.(type) {
	case *frame.SkeletonFrame:
		_ = ps.transition("skeleton_sent", map[State]State{StateOpening: StateSkeletonSent, StateSkeletonSent: StateSkeletonSent})
	case *frame.CompleteFrame:
		if ps.closeLocked() && ps.onClose != nil {
			ps.onClose()
		}
	default:
		_ = ps.transition("streaming", map[State]State{StateSkeletonSent: StateStreaming, StateStreaming: StateStreaming})
	}

	return f, true, nil
}

// Done reports whether every frame of the plan has been served.
func (ps *ProducerSession) Done() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.cursor >= len(ps.frames)
}
