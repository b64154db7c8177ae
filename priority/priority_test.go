package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/value"
)

func mustPath(t *testing.T, p string) value.Path {
	t.Helper()
	path, err := value.ParsePath(p)
	require.NoError(t, err)
	return path
}

func TestAnalyseNameHeuristics(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"id":7,"name":"Ada","bio":"Text"}`))
	require.NoError(t, err)

	m, err := Analyse(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)

	assert.Equal(t, Critical, m.Lookup(mustPath(t, "/id")))
	assert.Equal(t, High, m.Lookup(mustPath(t, "/name")))
	assert.Equal(t, Medium, m.Lookup(mustPath(t, "/bio")))
}

// TestAnalysePriorityOverride reproduces seed scenario S3.
func TestAnalysePriorityOverride(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"id":1,"metadata":{"x":"y"},"name":"n"}`))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Overrides = []Override{{Pattern: "/metadata/**", Priority: Background}}

	m, err := Analyse(v, cfg, admission.Policy{})
	require.NoError(t, err)

	assert.Equal(t, Critical, m.Lookup(mustPath(t, "/id")))
	assert.Equal(t, High, m.Lookup(mustPath(t, "/name")))
	assert.Equal(t, Background, m.Lookup(mustPath(t, "/metadata/x")))
}

func TestAnalyseArrayThreshold(t *testing.T) {
	elems := make([]value.Value, 150)
	for i := range elems {
		elems[i] = value.Int(i)
	}
	v := value.NewObject()
	v.Set("items", &value.Array{Elems: elems})

	m, err := Analyse(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	assert.Equal(t, Background, m.Lookup(mustPath(t, "/items")))
}

func TestAnalyseStringThreshold(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	v := value.NewObject()
	v.Set("blob", value.String(long))

	m, err := Analyse(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	assert.Equal(t, Low, m.Lookup(mustPath(t, "/blob")))
}

func TestAnalyseDefaultIsMedium(t *testing.T) {
	v := value.NewObject()
	v.Set("whatever", value.Int(1))
	m, err := Analyse(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	assert.Equal(t, Medium, m.Lookup(mustPath(t, "/whatever")))
}

func TestAnalyseIsDeterministic(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"id":7,"name":"Ada","bio":"Text","metadata":{"a":1}}`))
	require.NoError(t, err)
	cfg := DefaultConfig()

	m1, err := Analyse(v, cfg, admission.Policy{})
	require.NoError(t, err)
	m2, err := Analyse(v, cfg, admission.Policy{})
	require.NoError(t, err)

	for _, e := range m1.Entries() {
		assert.Equal(t, e.Priority, m2.Lookup(e.Path))
	}
}

func TestDepthPenalty(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"a":{"b":{"c":{"whatever":1}}}}`))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.DepthPenaltyStep = 10
	cfg.DepthPenaltyWindow = 1

	m, err := Analyse(v, cfg, admission.Policy{})
	require.NoError(t, err)
	// /a/b/c/whatever is at depth 4; decays by (4-1)*10 = 30 below Medium's
	// inherited baseline: 100-30=70.
	got := m.Lookup(mustPath(t, "/a/b/c/whatever"))
	assert.Equal(t, 70, got)

	// Intermediate levels decay from the same undecayed Medium baseline, not
	// from each other, so they must not compound past their own level.
	assert.Equal(t, 90, m.Lookup(mustPath(t, "/a/b")))
	assert.Equal(t, 80, m.Lookup(mustPath(t, "/a/b/c")))
}

func TestAnalyseRejectsValueBeyondMaxDepth(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"a":{"b":{"c":1}}}`))
	require.NoError(t, err)

	_, err = Analyse(v, DefaultConfig(), admission.Policy{MaxDepth: 2})
	require.Error(t, err)
	var ae *admission.AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, admission.LimitMaxDepth, ae.Limit)
}

func TestAnalyseRejectsObjectBeyondMaxObjectKeys(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"a":1,"b":2,"c":3}`))
	require.NoError(t, err)

	_, err = Analyse(v, DefaultConfig(), admission.Policy{MaxObjectKeys: 2})
	require.Error(t, err)
	var ae *admission.AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, admission.LimitMaxObjectKeys, ae.Limit)
}

func TestBandOf(t *testing.T) {
	assert.Equal(t, BandCritical, BandOf(255))
	assert.Equal(t, BandCritical, BandOf(200))
	assert.Equal(t, BandHigh, BandOf(199))
	assert.Equal(t, BandMedium, BandOf(149))
	assert.Equal(t, BandLow, BandOf(99))
	assert.Equal(t, BandBackground, BandOf(49))
	assert.Equal(t, BandBackground, BandOf(0))
}
