package pjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/value"
)

func sampleDoc() *value.Object {
	root := &value.Object{}
	root.Set("id", value.Int(1))
	root.Set("name", value.String("Ada"))
	root.Set("bio", value.String("Text"))
	return root
}

func drainProducer(t *testing.T, p *ProducerSession) []frame.Frame {
	t.Helper()
	var out []frame.Frame
	for !p.Done() {
		f, ok, err := p.NextFrame()
		require.NoError(t, err)
		if !ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

func TestOpenProducerServesSkeletonFirstAndCompleteLast(t *testing.T) {
	p, err := OpenProducer(sampleDoc(), DefaultConfig(), nil)
	require.NoError(t, err)

	frames := drainProducer(t, p)
	require.NotEmpty(t, frames)
	assert.IsType(t, &frame.SkeletonFrame{}, frames[0])
	assert.IsType(t, &frame.CompleteFrame{}, frames[len(frames)-1])
	assert.Equal(t, StateClosed, p.State())
}

func TestBackpressureWithholdsLowerBands(t *testing.T) {
	p, err := OpenProducer(sampleDoc(), DefaultConfig(), nil)
	require.NoError(t, err)

	// Skeleton always passes.
	f, ok, err := p.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	require.IsType(t, &frame.SkeletonFrame{}, f)

	p.SetBackpressure(BackpressureCritical)
	_, ok, err = p.NextFrame()
	require.NoError(t, err)
	assert.False(t, ok, "every band is withheld while paused at Critical")

	p.ReleaseBackpressure()
	f, ok, err = p.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	pf := f.(*frame.PatchFrame)
	assert.Equal(t, "/id", pf.Patches[0].Path.String())
}

func TestOpenProducerRejectsPlanOverPatchBudget(t *testing.T) {
	items := &value.Array{}
	for i := 0; i < 50; i++ {
		items.Elems = append(items.Elems, value.Int(int64(i)))
	}
	root := &value.Object{}
	root.Set("items", items)

	cfg := DefaultConfig()
	cfg.ArrayStreamThreshold = 1 // forces many chunk frames
	cfg.MaxPatchesPerStream = 2

	_, err := OpenProducer(root, cfg, nil)
	require.Error(t, err)
	var admErr *admission.AdmissionError
	require.ErrorAs(t, err, &admErr)
	assert.Equal(t, admission.LimitMaxPatchesPerStream, admErr.Limit)
}
