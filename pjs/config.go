package pjs

import (
	"os"
	"time"

	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/compress"
	"github.com/pjsproto/pjs/plan"
	"github.com/pjsproto/pjs/priority"
	"github.com/pjsproto/pjs/skeleton"
)

// Config enumerates every session option in §6.5. It is plain data —
// building the derived analyser/skeleton/planner/admission configs happens
// in the priorityConfig, skeletonConfig, planConfig and admissionPolicy
// methods.
type Config struct {
	MaxDepth                   int                 `json:"max_depth,omitempty"`
	MaxValueBytes              int64               `json:"max_value_bytes,omitempty"`
	MaxFramePayload            int                 `json:"max_frame_payload,omitempty"`
	MaxArrayElements           int                 `json:"max_array_elements,omitempty"`
	MaxObjectKeys              int                 `json:"max_object_keys,omitempty"`
	ArrayStreamThreshold       int                 `json:"array_stream_threshold,omitempty"`
	StringLowPriorityThreshold int                 `json:"string_low_priority_threshold,omitempty"`
	DepthPenaltyStep           int                 `json:"depth_penalty_step,omitempty"`
	DepthPenaltyWindow         int                 `json:"depth_penalty_window,omitempty"`
	PriorityOverrides          []priority.Override `json:"priority_overrides,omitempty"`
	IdleTimeoutMS              int64               `json:"idle_timeout_ms,omitempty"`
	MaxConcurrentStreams       int                 `json:"max_concurrent_streams,omitempty"`
	MaxPatchesPerStream        int64               `json:"max_patches_per_stream,omitempty"`
	RateLimitPerSessionTPS     float64             `json:"rate_limit_per_session_tps,omitempty"`
	RateLimitGlobalTPS         float64             `json:"rate_limit_global_tps,omitempty"`
	Compression                compress.Codec      `json:"compression,omitempty"`
	ReorderWindow              int                 `json:"reorder_window,omitempty"`

	// Logger receives session lifecycle and admission-rejection events,
	// never payload bytes (§7). Defaults to a no-op logger.
	Logger *zap.Logger `json:"-"`
}

// DefaultConfig returns the spec's documented defaults (§4.2, §4.6, §4.9).
func DefaultConfig() Config {
	return Config{
		MaxDepth:                   64,
		MaxValueBytes:              10 << 20,
		MaxFramePayload:            1 << 20,
		MaxArrayElements:           10_000,
		MaxObjectKeys:              10_000,
		ArrayStreamThreshold:       100,
		StringLowPriorityThreshold: 1000,
		DepthPenaltyStep:           5,
		DepthPenaltyWindow:         4,
		IdleTimeoutMS:              30_000,
		MaxConcurrentStreams:       64,
		MaxPatchesPerStream:        100_000,
		RateLimitPerSessionTPS:     1000,
		RateLimitGlobalTPS:         50_000,
		Compression:                compress.CodecAuto,
		ReorderWindow:              32,
		Logger:                     zap.NewNop(),
	}
}

// LoadConfig reads a YAML config file (§2.3) via sigs.k8s.io/yaml, the
// teacher's JSON-schema marshaling library, layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) idleTimeout() time.Duration {
	if c.IdleTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) priorityConfig() priority.Config {
	cfg := priority.DefaultConfig()
	cfg.Overrides = c.PriorityOverrides
	if c.ArrayStreamThreshold > 0 {
		cfg.ArrayThreshold = c.ArrayStreamThreshold
	}
	if c.StringLowPriorityThreshold > 0 {
		cfg.StringThreshold = c.StringLowPriorityThreshold
	}
	if c.DepthPenaltyStep > 0 {
		cfg.DepthPenaltyStep = c.DepthPenaltyStep
	}
	if c.DepthPenaltyWindow > 0 {
		cfg.DepthPenaltyWindow = c.DepthPenaltyWindow
	}
	return cfg
}

func (c Config) skeletonConfig() skeleton.Config {
	cfg := skeleton.DefaultConfig()
	if c.ArrayStreamThreshold > 0 {
		cfg.ArrayStreamThreshold = c.ArrayStreamThreshold
	}
	return cfg
}

func (c Config) planConfig() plan.Config {
	cfg := plan.DefaultConfig()
	if c.MaxFramePayload > 0 {
		cfg.MaxFramePayload = c.MaxFramePayload
	}
	if c.ArrayStreamThreshold > 0 {
		cfg.ArrayStreamThreshold = c.ArrayStreamThreshold
	}
	if c.Compression != "" {
		cfg.Compression = c.Compression
	}
	return cfg
}

func (c Config) admissionPolicy() admission.Policy {
	p := admission.DefaultPolicy()
	if c.MaxDepth > 0 {
		p.MaxDepth = c.MaxDepth
	}
	if c.MaxValueBytes > 0 {
		p.MaxValueBytes = c.MaxValueBytes
	}
	if c.MaxArrayElements > 0 {
		p.MaxArrayElements = c.MaxArrayElements
	}
	if c.MaxObjectKeys > 0 {
		p.MaxObjectKeys = c.MaxObjectKeys
	}
	if c.MaxFramePayload > 0 {
		p.MaxFramePayload = c.MaxFramePayload
	}
	if c.MaxPatchesPerStream > 0 {
		p.MaxPatchesPerStream = c.MaxPatchesPerStream
	}
	if c.RateLimitPerSessionTPS > 0 {
		p.RateLimit.PerSessionTPS = c.RateLimitPerSessionTPS
	}
	if c.RateLimitGlobalTPS > 0 {
		p.RateLimit.GlobalTPS = c.RateLimitGlobalTPS
	}
	return p
}
