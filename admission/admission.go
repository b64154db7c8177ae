// Package admission implements PJS security/admission limits (C9): the
// per-session policy object, the depth/size/shape checks it enforces, and
// the token-bucket rate limiters guarding per-session and global throughput
// (§4.9).
package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Policy fixes the limits checked at session open and enforced throughout
// the session's lifetime (§4.9). All fields have the spec's defaults via
// DefaultPolicy.
type Policy struct {
	MaxDepth            int
	MaxValueBytes       int64
	MaxArrayElements    int
	MaxObjectKeys       int
	MaxFramePayload     int
	MaxPatchesPerStream int64
	RateLimit           RateLimit
}

// RateLimit names the two token-bucket rates a policy enforces (§4.9
// `rate_limit { per_session_tps, global_tps }`).
type RateLimit struct {
	PerSessionTPS float64
	GlobalTPS     float64
}

// DefaultPolicy returns the spec's default limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxDepth:            64,
		MaxValueBytes:       10 << 20,
		MaxArrayElements:    10_000,
		MaxObjectKeys:       10_000,
		MaxFramePayload:     1 << 20,
		MaxPatchesPerStream: 100_000,
		RateLimit:           RateLimit{PerSessionTPS: 1000, GlobalTPS: 50_000},
	}
}

// LimitName identifies which policy limit an AdmissionError names.
type LimitName string

const (
	LimitMaxDepth            LimitName = "max_depth"
	LimitMaxValueBytes       LimitName = "max_value_bytes"
	LimitMaxArrayElements    LimitName = "max_array_elements"
	LimitMaxObjectKeys       LimitName = "max_object_keys"
	LimitMaxFramePayload     LimitName = "max_frame_payload"
	LimitMaxPatchesPerStream LimitName = "max_patches_per_stream"
	LimitPerSessionRate      LimitName = "per_session_tps"
	LimitGlobalRate          LimitName = "global_tps"
)

// AdmissionError names the limit a request violated (§4.9: "Violations
// fail fast with an AdmissionError enum variant that names the limit").
type AdmissionError struct {
	Limit LimitName
	Got   int64
	Max   int64
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission: %s exceeded: got %d, max %d", e.Limit, e.Got, e.Max)
}

// CheckDepth enforces MaxDepth anywhere the analyser, skeleton generator,
// planner, or reconstructor recurse. MaxDepth <= 0 disables the check.
func (p Policy) CheckDepth(depth int) error {
	if p.MaxDepth > 0 && depth > p.MaxDepth {
		return &AdmissionError{Limit: LimitMaxDepth, Got: int64(depth), Max: int64(p.MaxDepth)}
	}
	return nil
}

// CheckValueBytes enforces MaxValueBytes against a cumulative byte count
// (typically an Arena's Used() or value.Sizeof's whole-tree estimate).
// MaxValueBytes <= 0 disables the check.
func (p Policy) CheckValueBytes(used int64) error {
	if p.MaxValueBytes > 0 && used > p.MaxValueBytes {
		return &AdmissionError{Limit: LimitMaxValueBytes, Got: used, Max: p.MaxValueBytes}
	}
	return nil
}

// CheckArrayElements enforces MaxArrayElements for one array node.
// MaxArrayElements <= 0 disables the check.
func (p Policy) CheckArrayElements(n int) error {
	if p.MaxArrayElements > 0 && n > p.MaxArrayElements {
		return &AdmissionError{Limit: LimitMaxArrayElements, Got: int64(n), Max: int64(p.MaxArrayElements)}
	}
	return nil
}

// CheckObjectKeys enforces MaxObjectKeys for one object node.
// MaxObjectKeys <= 0 disables the check.
func (p Policy) CheckObjectKeys(n int) error {
	if p.MaxObjectKeys > 0 && n > p.MaxObjectKeys {
		return &AdmissionError{Limit: LimitMaxObjectKeys, Got: int64(n), Max: int64(p.MaxObjectKeys)}
	}
	return nil
}

// CheckFramePayload enforces MaxFramePayload against an encoded frame's
// byte length.
func (p Policy) CheckFramePayload(n int) error {
	if n > p.MaxFramePayload {
		return &AdmissionError{Limit: LimitMaxFramePayload, Got: int64(n), Max: int64(p.MaxFramePayload)}
	}
	return nil
}

// CheckPatchCount enforces MaxPatchesPerStream against a session's
// cumulative emitted-patch counter.
func (p Policy) CheckPatchCount(n int64) error {
	if n > p.MaxPatchesPerStream {
		return &AdmissionError{Limit: LimitMaxPatchesPerStream, Got: n, Max: p.MaxPatchesPerStream}
	}
	return nil
}

// bucket is a simple token bucket: tokens accumulate at rate tps up to a
// one-second burst, consumed atomically per Allow call. Grounded on the
// atomic-counter-per-key style of a striped rate limiter store: each
// session or the global limiter holds one bucket, refilled lazily on
// access rather than by a background ticker.
type bucket struct {
	tps      float64
	mu       sync.Mutex
	tokens   float64
	lastFill int64 // UnixNano
}

func newBucket(tps float64) *bucket {
	return &bucket{tps: tps, tokens: tps, lastFill: time.Now().UnixNano()}
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().UnixNano()
	elapsed := float64(now-b.lastFill) / float64(time.Second)
	if elapsed > 0 {
		b.tokens += elapsed * b.tps
		if b.tokens > b.tps {
			b.tokens = b.tps
		}
		b.lastFill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter enforces per-session and global throughput caps for one policy.
// Per-session buckets are held in a concurrent map keyed by session id, so
// no lock is shared across sessions on the hot path (§5 "Shared resource
// policy").
type Limiter struct {
	policy   Policy
	global   *bucket
	sessions sync.Map // session id -> *bucket

	globalRejections atomic.Int64
}

// NewLimiter builds a Limiter for policy.
func NewLimiter(policy Policy) *Limiter {
	return &Limiter{policy: policy, global: newBucket(policy.RateLimit.GlobalTPS)}
}

// Allow admits one frame for sessionID against both the per-session and
// global token buckets, returning an AdmissionError naming whichever limit
// was hit first.
func (l *Limiter) Allow(sessionID string) error {
	if !l.global.allow() {
		l.globalRejections.Add(1)
		return &AdmissionError{Limit: LimitGlobalRate, Got: 1, Max: int64(l.policy.RateLimit.GlobalTPS)}
	}
	v, _ := l.sessions.LoadOrStore(sessionID, newBucket(l.policy.RateLimit.PerSessionTPS))
	b := v.(*bucket)
	if !b.allow() {
		return &AdmissionError{Limit: LimitPerSessionRate, Got: 1, Max: int64(l.policy.RateLimit.PerSessionTPS)}
	}
	return nil
}

// Forget releases a session's rate-limit bucket, e.g. on session close.
func (l *Limiter) Forget(sessionID string) {
	l.sessions.Delete(sessionID)
}
