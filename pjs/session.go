// Package pjs is the top-level PJS orchestrator (C8): the session state
// machine, ProducerSession/ConsumerSession, and the Manager that bounds
// concurrent sessions and wires admission limits across them.
package pjs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pjsproto/pjs/admission"
)

// State names one node of the session state machine (§4.8).
type State string

const (
	StateOpening      State = "opening"
	StateSkeletonSent State = "skeleton_sent"
	StateStreaming    State = "streaming"
	StateDraining     State = "draining"
	StateClosed       State = "closed"
	StateFailed       State = "failed"
)

// FailureReason names why a session transitioned to Failed (§7
// `SessionError`).
type FailureReason string

const (
	ReasonCancelled           FailureReason = "cancelled"
	ReasonTimeout             FailureReason = "timeout"
	ReasonUnexpectedClose     FailureReason = "unexpected_close"
	ReasonReorderWindowExceeded FailureReason = "reorder_window_exceeded"
	ReasonMalformed           FailureReason = "malformed"
	ReasonBudgetExceeded      FailureReason = "budget_exceeded"
)

// SessionError reports a fatal session failure (§7 `SessionError`).
type SessionError struct {
	Reason FailureReason
}

func (e *SessionError) Error() string { return "pjs: session failed: " + string(e.Reason) }

// InvalidTransition reports an attempted state transition §4.8's table
// does not allow.
type InvalidTransition struct {
	From  State
	Event string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("pjs: invalid transition: %s from state %s", e.Event, e.From)
}

// session holds the fields common to producer and consumer sessions:
// identity, state, idle timer, and the policy/limiter pair enforcing C9.
type session struct {
	mu    sync.Mutex
	id    string
	state State
	log   *zap.Logger

	policy  admission.Policy
	limiter *admission.Limiter

	idleTimeout time.Duration
	idleTimer   *time.Timer
	onIdle      func()
	onClose     func()

	failureReason FailureReason
}

func newSession(cfg Config, limiter *admission.Limiter) *session {
	id := uuid.NewString()
	s := &session{
		id:          id,
		state:       StateOpening,
		log:         cfg.logger().With(zap.String("session_id", id)),
		policy:      cfg.admissionPolicy(),
		limiter:     limiter,
		idleTimeout: cfg.idleTimeout(),
	}
	return s
}

// ID returns the session's identity, assigned at Open (§6.4).
func (s *session) ID() string { return s.id }

// State returns the session's current state machine node.
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) armIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.onIdle == nil {
		return
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.onIdle)
}

func (s *session) resetIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armIdleTimer()
}

// transition validates and performs from -> to per §4.8's table. Callers
// hold s.mu.
func (s *session) transition(event string, allowed map[State]State) error {
	to, ok := allowed[s.state]
	if !ok {
		return &InvalidTransition{From: s.state, Event: event}
	}
	s.state = to
	s.log.Debug("state transition", zap.String("event", event), zap.String("to", string(to)))
	return nil
}

// fail moves the session to Failed from any state (§4.8 "any -> Failed").
func (s *session) fail(reason FailureReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateFailed {
		return
	}
	s.state = StateFailed
	s.failureReason = reason
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.limiter != nil {
		s.limiter.Forget(s.id)
	}
	s.log.Warn("session failed", zap.String("reason", string(reason)))
	if s.onClose != nil {
		s.onClose()
	}
}

// close moves the session to Closed, releasing its rate-limit bucket.
func (s *session) close() {
	s.mu.Lock()
	alreadyDone := s.state == StateClosed || s.state == StateFailed
	if !alreadyDone {
		s.state = StateClosed
		if s.idleTimer != nil {
			s.idleTimer.Stop()
		}
		if s.limiter != nil {
			s.limiter.Forget(s.id)
		}
		s.log.Debug("session closed")
	}
	s.mu.Unlock()
	if !alreadyDone && s.onClose != nil {
		s.onClose()
	}
}

// closeLocked performs close()'s bookkeeping for a caller that already
// holds s.mu; it returns true if it actually transitioned the session so
// the caller can invoke onClose after releasing the lock.
func (s *session) closeLocked() bool {
	if s.state == StateClosed || s.state == StateFailed {
		return false
	}
	s.state = StateClosed
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.limiter != nil {
		s.limiter.Forget(s.id)
	}
	s.log.Debug("session closed")
	return true
}

// Cancel transitions the session to Failed(Cancelled) (§6.4 `*.cancel(reason)`).
func (s *session) Cancel(reason string) {
	_ = reason
	s.fail(ReasonCancelled)
}

// FailureReason reports why a Failed session failed, or "" otherwise.
func (s *session) FailureReason() FailureReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureReason
}
