package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsproto/pjs/value"
)

func deepObject(levels int) value.Value {
	var v value.Value = value.Int(1)
	for i := 0; i < levels; i++ {
		obj := value.NewObject()
		obj.Set("next", v)
		v = obj
	}
	return v
}

func TestCheckValueRejectsBeyondMaxDepth(t *testing.T) {
	p := Policy{MaxDepth: 3}
	require.NoError(t, p.CheckValue(deepObject(3)))
	err := p.CheckValue(deepObject(4))
	require.Error(t, err)
	var ae *AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, LimitMaxDepth, ae.Limit)
}

func TestCheckValueRejectsOversizedArray(t *testing.T) {
	p := Policy{MaxArrayElements: 3}
	small := &value.Array{Elems: []value.Value{value.Int(1), value.Int(2), value.Int(3)}}
	require.NoError(t, p.CheckValue(small))

	big := &value.Array{Elems: []value.Value{value.Int(1), value.Int(2), value.Int(3), value.Int(4)}}
	err := p.CheckValue(big)
	require.Error(t, err)
	var ae *AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, LimitMaxArrayElements, ae.Limit)
}

func TestCheckValueRejectsOversizedObject(t *testing.T) {
	p := Policy{MaxObjectKeys: 1}
	obj := value.NewObject()
	obj.Set("a", value.Int(1))
	obj.Set("b", value.Int(2))
	err := p.CheckValue(obj)
	require.Error(t, err)
	var ae *AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, LimitMaxObjectKeys, ae.Limit)
}

func TestCheckValueRejectsOverMaxValueBytes(t *testing.T) {
	p := Policy{MaxValueBytes: 10}
	err := p.CheckValue(value.String("this string alone is already too long"))
	require.Error(t, err)
	var ae *AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, LimitMaxValueBytes, ae.Limit)
}

func TestCheckValueAllowsWithinAllLimits(t *testing.T) {
	p := DefaultPolicy()
	obj := value.NewObject()
	obj.Set("id", value.Int(1))
	obj.Set("tags", &value.Array{Elems: []value.Value{value.String("a"), value.String("b")}})
	require.NoError(t, p.CheckValue(obj))
}
