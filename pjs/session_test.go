package pjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, int64(10<<20), cfg.MaxValueBytes)
	assert.Equal(t, 100, cfg.ArrayStreamThreshold)
	assert.Equal(t, int64(30_000), cfg.IdleTimeoutMS)
}

func TestNewSessionStartsOpening(t *testing.T) {
	s := newSession(DefaultConfig(), nil)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, StateOpening, s.State())
}

func TestCancelMovesToFailed(t *testing.T) {
	s := newSession(DefaultConfig(), nil)
	s.Cancel("operator requested")
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, ReasonCancelled, s.FailureReason())
}

func TestCloseIsIdempotentAfterFail(t *testing.T) {
	s := newSession(DefaultConfig(), nil)
	s.fail(ReasonTimeout)
	s.close()
	assert.Equal(t, StateFailed, s.State())
}
