// Package priority implements the PJS priority analyser (C2): it assigns a
// 0–255 importance score to every addressable path in a value, following
// the ordered rule set in §4.2.
package priority

import (
	"fmt"
	"strings"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/value"
)

// Band names the five reserved priority ranges (§3).
type Band int

const (
	BandBackground Band = iota
	BandLow
	BandMedium
	BandHigh
	BandCritical
)

// Priority bounds, inclusive, per §3.
const (
	Critical = 200
	High     = 150
	Medium   = 100
	Low      = 50
	Background = 0

	MaxPriority = 255
)

// BandOf classifies a raw 0–255 priority into its reserved band.
func BandOf(p int) Band {
	switch {
	case p >= Critical:
		return BandCritical
	case p >= High:
		return BandHigh
	case p >= Medium:
		return BandMedium
	case p >= Low:
		return BandLow
	default:
		return BandBackground
	}
}

// Override binds a path pattern to an explicit priority (§4.2 rule 1).
// Patterns use "*" for any single segment and "**" for any suffix.
type Override struct {
	Pattern  string `json:"pattern"`
	Priority int    `json:"priority"`
}

// Config parameters the analyser (§6.5 options that affect C2).
type Config struct {
	Overrides            []Override
	ArrayThreshold       int // T_arr, default 100
	StringThreshold      int // T_str, default 1000
	DepthPenaltyStep     int // δ
	DepthPenaltyWindow   int // shallow window before decay starts
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ArrayThreshold:     100,
		StringThreshold:    1000,
		DepthPenaltyStep:   0,
		DepthPenaltyWindow: 0,
	}
}

// Map is a sparse mapping from Path to effective priority. Absent paths
// inherit their parent's priority; consumers resolve effective priority by
// walking up the path until an entry is found (§4.2: "sized O(number of
// explicitly overridden subtrees)").
type Map struct {
	entries map[string]int
	// order preserves insertion for deterministic iteration in tests/debug.
	order []value.Path
}

func newMap() *Map {
	return &Map{entries: make(map[string]int)}
}

func (m *Map) set(p value.Path, priority int) {
	key := p.String()
	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, p)
	}
	m.entries[key] = priority
}

// Lookup resolves the effective priority at p by walking up toward the root
// until an explicit entry is found, defaulting to Medium (§4.2 rule 5).
func (m *Map) Lookup(p value.Path) int {
	for cur := p; ; {
		if v, ok := m.entries[cur.String()]; ok {
			return v
		}
		parent, _, hasParent := cur.Parent()
		if !hasParent {
			return Medium
		}
		cur = parent
	}
}

// Entries returns the explicit (path, priority) overrides in the order they
// were recorded.
func (m *Map) Entries() []struct {
	Path     value.Path
	Priority int
} {
	out := make([]struct {
		Path     value.Path
		Priority int
	}, len(m.order))
	for i, p := range m.order {
		out[i] = struct {
			Path     value.Path
			Priority int
		}{p, m.entries[p.String()]}
	}
	return out
}

// ResourceExhaustedError reports that the arena backing an analysis pass ran
// out of room (§4.2: "Failure is impossible unless arena exhausted").
type ResourceExhaustedError struct {
	Path value.Path
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("priority: arena exhausted while analysing %q", e.Path.String())
}

// Analyse assigns priorities to every explicitly-overridden subtree of v and
// returns the resulting Map (§4.2). It runs a single document-order pass,
// enforcing policy's MaxDepth/MaxArrayElements/MaxObjectKeys at every
// recursion point (§4.9) alongside pjs.OpenProducer's upfront CheckValue.
func Analyse(v value.Value, cfg Config, policy admission.Policy) (*Map, error) {
	m := newMap()
	if err := analyseNode(v, value.Root(), cfg, policy, 0, m, Medium); err != nil {
		return nil, err
	}
	return m, nil
}

// analyseNode visits one node, carrying anchor — the nearest explicit
// (override or classify) ancestor priority, Medium at the root — so that
// applyDepthPenalty always decays from an undecayed baseline instead of
// compounding against an already-decayed parent entry.
func analyseNode(v value.Value, path value.Path, cfg Config, policy admission.Policy, depth int, m *Map, anchor int) error {
	if err := policy.CheckDepth(depth); err != nil {
		return err
	}

	explicit := false
	if p, ok := matchOverride(path, cfg.Overrides); ok {
		m.set(path, p)
		anchor = p
		explicit = true
	} else if p, ok := classify(v, path, cfg); ok {
		m.set(path, p)
		anchor = p
		explicit = true
	}
	if !explicit {
		if decayed, ok := applyDepthPenalty(anchor, cfg, depth); ok {
			m.set(path, decayed)
		}
	}

	switch node := v.(type) {
	case *value.Array:
		if err := policy.CheckArrayElements(len(node.Elems)); err != nil {
			return err
		}
		for i, elem := range node.Elems {
			if err := analyseNode(elem, path.Child(value.Idx(i)), cfg, policy, depth+1, m, anchor); err != nil {
				return err
			}
		}
	case *value.Object:
		if err := policy.CheckObjectKeys(node.Len()); err != nil {
			return err
		}
		for _, k := range node.Keys() {
			child, _ := node.Get(k)
			if err := analyseNode(child, path.Child(value.Key(k)), cfg, policy, depth+1, m, anchor); err != nil {
				return err
			}
		}
	}
	return nil
}

// matchOverride implements §4.2 rule 1: explicit path-pattern overrides,
// first match wins, checked in config order.
func matchOverride(p value.Path, overrides []Override) (int, bool) {
	for _, o := range overrides {
		if patternMatches(o.Pattern, p) {
			return o.Priority, true
		}
	}
	return 0, false
}

func patternMatches(pattern string, p value.Path) bool {
	segPattern, err := value.ParsePath(pattern)
	if err != nil {
		return false
	}
	return matchSegments(segPattern, p)
}

func matchSegments(pattern, p value.Path) bool {
	for i := 0; i < len(pattern); i++ {
		seg := pattern[i]
		if !seg.IsIndex && seg.Key == "**" {
			return true // matches any suffix, including empty
		}
		if i >= len(p) {
			return false
		}
		if !seg.IsIndex && seg.Key == "*" {
			continue // matches any single segment
		}
		if seg.IsIndex != p[i].IsIndex {
			return false
		}
		if seg.IsIndex {
			if seg.Index != p[i].Index {
				return false
			}
		} else if seg.Key != p[i].Key {
			return false
		}
	}
	return len(pattern) == len(p)
}

// classify implements §4.2 rules 2–3: name heuristics and size/shape
// heuristics. Returns (priority, true) if a rule fired.
func classify(v value.Value, p value.Path, cfg Config) (int, bool) {
	if len(p) > 0 {
		last := p[len(p)-1]
		if !last.IsIndex {
			if pr, ok := classifyKeyName(last.Key); ok {
				return pr, true
			}
		}
	}
	switch node := v.(type) {
	case *value.Array:
		threshold := cfg.ArrayThreshold
		if threshold <= 0 {
			threshold = 100
		}
		if len(node.Elems) > threshold {
			return Background, true
		}
	case value.String:
		threshold := cfg.StringThreshold
		if threshold <= 0 {
			threshold = 1000
		}
		if len(node) > threshold {
			return Low, true
		}
	}
	return 0, false
}

var (
	criticalNames   = map[string]bool{"id": true, "uuid": true, "status": true, "error": true}
	highNames       = map[string]bool{"name": true, "title": true, "email": true}
	mediumNames     = map[string]bool{"description": true, "bio": true, "body": true}
	lowNames        = map[string]bool{"metadata": true, "tags": true, "created_at": true, "updated_at": true}
	backgroundParts = []string{"analytics", "trace", "debug", "stats"}
)

func classifyKeyName(key string) (int, bool) {
	lower := strings.ToLower(key)
	switch {
	case criticalNames[lower]:
		return Critical, true
	case highNames[lower]:
		return High, true
	case mediumNames[lower]:
		return Medium, true
	case lowNames[lower]:
		return Low, true
	}
	for _, part := range backgroundParts {
		if strings.Contains(lower, part) {
			return Background, true
		}
	}
	return 0, false
}

// applyDepthPenalty implements §4.2 rule 4: priority decays by δ per
// inherited level beyond the shallow window. The caller only invokes this
// for paths with no explicit override/classify entry of their own; anchor is
// the nearest explicit ancestor's undecayed priority (Medium if none), so
// decay is computed fresh at every level instead of compounding against an
// already-decayed ancestor.
func applyDepthPenalty(anchor int, cfg Config, depth int) (int, bool) {
	if cfg.DepthPenaltyStep <= 0 {
		return 0, false
	}
	if depth <= cfg.DepthPenaltyWindow {
		return 0, false
	}
	decaySteps := depth - cfg.DepthPenaltyWindow
	decayed := anchor - decaySteps*cfg.DepthPenaltyStep
	if decayed < Background {
		decayed = Background
	}
	if decayed > MaxPriority {
		decayed = MaxPriority
	}
	return decayed, true
}
