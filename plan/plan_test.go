package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/priority"
	"github.com/pjsproto/pjs/skeleton"
	"github.com/pjsproto/pjs/value"
)

func build(t *testing.T, v value.Value, pcfg priority.Config, cfg Config) *Plan {
	t.Helper()
	priorities, err := priority.Analyse(v, pcfg, admission.Policy{})
	require.NoError(t, err)
	skel, err := skeleton.Generate(v, skeleton.Config{ArrayStreamThreshold: cfg.ArrayStreamThreshold}, admission.Policy{})
	require.NoError(t, err)
	p, err := Build(v, skel, priorities, cfg, admission.Policy{})
	require.NoError(t, err)
	return p
}

func patchFrames(p *Plan) []*frame.PatchFrame {
	var out []*frame.PatchFrame
	for _, f := range p.Frames {
		if pf, ok := f.(*frame.PatchFrame); ok {
			out = append(out, pf)
		}
	}
	return out
}

// TestTinyObjectPlan reproduces seed scenario S1: skeleton then one patch
// per field, highest priority first.
func TestTinyObjectPlan(t *testing.T) {
	root := &value.Object{}
	root.Set("id", value.Int(7))
	root.Set("name", value.String("Ada"))
	root.Set("bio", value.String("Text"))

	p := build(t, root, priority.DefaultConfig(), DefaultConfig())

	require.IsType(t, &frame.SkeletonFrame{}, p.Frames[0])
	require.IsType(t, &frame.CompleteFrame{}, p.Frames[len(p.Frames)-1])

	patches := patchFrames(p)
	require.Len(t, patches, 3)
	assert.Equal(t, priority.Critical, patches[0].Env.Priority)
	assert.Equal(t, frame.OpSet, patches[0].Patches[0].Op)
	assert.Equal(t, "/id", patches[0].Patches[0].Path.String())

	assert.Equal(t, priority.High, patches[1].Env.Priority)
	assert.Equal(t, "/name", patches[1].Patches[0].Path.String())

	assert.Equal(t, priority.Medium, patches[2].Env.Priority)
	assert.Equal(t, "/bio", patches[2].Patches[0].Path.String())
}

// TestLargeArrayStreamingPlan reproduces seed scenario S2: 500 items with
// T_arr=100 stream as five chunks of 100.
func TestLargeArrayStreamingPlan(t *testing.T) {
	items := &value.Array{}
	for i := 0; i < 500; i++ {
		items.Elems = append(items.Elems, value.Int(int64(i)))
	}
	root := &value.Object{}
	root.Set("items", items)

	cfg := DefaultConfig()
	cfg.ArrayStreamThreshold = 100
	p := build(t, root, priority.DefaultConfig(), cfg)

	patches := patchFrames(p)
	require.Len(t, patches, 5)
	for i, pf := range patches {
		require.NotNil(t, pf.ArrayMetadata)
		assert.Equal(t, 500, pf.ArrayMetadata.TotalItems)
		assert.Equal(t, i, pf.ArrayMetadata.ChunkIndex)
		assert.Equal(t, 100, pf.ArrayMetadata.ChunkSize)
		assert.Equal(t, frame.OpAppend, pf.Patches[0].Op)
	}
}

// TestPriorityOverridePlanOrder reproduces seed scenario S3: an override on
// /metadata/** sends that subtree to Background while /id and /name keep
// their name-heuristic priorities, and frames are emitted highest first.
func TestPriorityOverridePlanOrder(t *testing.T) {
	root := &value.Object{}
	root.Set("id", value.Int(1))
	meta := &value.Object{}
	meta.Set("x", value.String("y"))
	root.Set("metadata", meta)
	root.Set("name", value.String("n"))

	pcfg := priority.DefaultConfig()
	pcfg.Overrides = []priority.Override{{Pattern: "/metadata/**", Priority: priority.Background}}

	p := build(t, root, pcfg, DefaultConfig())
	patches := patchFrames(p)
	require.Len(t, patches, 3)

	assert.Equal(t, "/id", patches[0].Patches[0].Path.String())
	assert.Equal(t, priority.Critical, patches[0].Env.Priority)

	assert.Equal(t, "/name", patches[1].Patches[0].Path.String())
	assert.Equal(t, priority.High, patches[1].Env.Priority)

	assert.Equal(t, "/metadata/x", patches[2].Patches[0].Path.String())
	assert.Equal(t, priority.Background, patches[2].Env.Priority)
}

func TestCompleteFrameCarriesChecksumAndStats(t *testing.T) {
	root := &value.Object{}
	root.Set("a", value.Int(1))
	p := build(t, root, priority.DefaultConfig(), DefaultConfig())

	last := p.Frames[len(p.Frames)-1].(*frame.CompleteFrame)
	assert.NotEmpty(t, last.Checksum)
	assert.Equal(t, len(p.Frames), last.Stats.TotalFrames)
	assert.Greater(t, last.Stats.TotalBytes, 0)
}

func TestFrameTooLargeForIndivisibleLeaf(t *testing.T) {
	root := &value.Object{}
	root.Set("blob", value.String(string(make([]byte, 2048))))

	cfg := DefaultConfig()
	cfg.MaxFramePayload = 64
	_, err := func() (*Plan, error) {
		priorities, err := priority.Analyse(root, priority.DefaultConfig(), admission.Policy{})
		require.NoError(t, err)
		skel, err := skeleton.Generate(root, skeleton.Config{ArrayStreamThreshold: cfg.ArrayStreamThreshold}, admission.Policy{})
		require.NoError(t, err)
		return Build(root, skel, priorities, cfg, admission.Policy{})
	}()
	require.Error(t, err)
	var tooLarge *FrameTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

// TestAutoCompressionDeltaEncodesIntBucket exercises §4.6's wiring: a
// priority bucket of all-int leaves picks up delta encoding once packed.
func TestAutoCompressionDeltaEncodesIntBucket(t *testing.T) {
	root := &value.Object{}
	root.Set("metadata", func() value.Value {
		o := &value.Object{}
		o.Set("a", value.Int(10))
		o.Set("b", value.Int(11))
		o.Set("c", value.Int(12))
		o.Set("note", value.String("kept out of the Low bucket so collapse can't merge the three ints into one set"))
		return o
	}())

	pcfg := priority.DefaultConfig()
	pcfg.Overrides = []priority.Override{
		{Pattern: "/metadata/a", Priority: priority.Low},
		{Pattern: "/metadata/b", Priority: priority.Low},
		{Pattern: "/metadata/c", Priority: priority.Low},
		{Pattern: "/metadata/note", Priority: priority.Medium},
	}

	priorities, err := priority.Analyse(root, pcfg, admission.Policy{})
	require.NoError(t, err)
	skel, err := skeleton.Generate(root, skeleton.Config{}, admission.Policy{})
	require.NoError(t, err)
	p, err := Build(root, skel, priorities, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)

	patches := patchFrames(p)
	require.Len(t, patches, 2)
	lowFrame := patches[1]
	assert.Equal(t, priority.Low, lowFrame.Env.Priority)
	require.Len(t, lowFrame.Patches, 3)
	assert.Equal(t, frame.EncodingDelta, lowFrame.Encoding)
	assert.Equal(t, value.Int(10), lowFrame.Patches[0].Value)
}

// TestBuildRejectsValueBeyondMaxDepth closes §8 property 7/§4.9's gap at the
// planner's own recursion point.
func TestBuildRejectsValueBeyondMaxDepth(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"a":{"b":{"c":1}}}`))
	require.NoError(t, err)
	policy := admission.Policy{MaxDepth: 2}

	priorities, err := priority.Analyse(v, priority.DefaultConfig(), policy)
	require.Error(t, err)
	require.Nil(t, priorities)

	_, err = Build(v, v, &priority.Map{}, DefaultConfig(), policy)
	require.Error(t, err)
	var ae *admission.AdmissionError
	require.ErrorAs(t, err, &ae)
}

func TestCollapsesSiblingLeavesSharingParentPriority(t *testing.T) {
	inner := &value.Object{}
	inner.Set("x", value.Int(1))
	inner.Set("y", value.Int(2))
	root := &value.Object{}
	root.Set("metadata", inner)

	pcfg := priority.DefaultConfig()
	pcfg.Overrides = []priority.Override{{Pattern: "/metadata/**", Priority: priority.Low}}
	p := build(t, root, pcfg, DefaultConfig())

	patches := patchFrames(p)
	require.Len(t, patches, 1)
	assert.Equal(t, "/metadata", patches[0].Patches[0].Path.String())
}
