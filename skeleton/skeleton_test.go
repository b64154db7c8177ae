package skeleton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/value"
)

func TestGenerateTinyObject(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"id":7,"name":"Ada","bio":"Text"}`))
	require.NoError(t, err)

	got, err := Generate(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	out, err := value.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `{"id":0,"name":"","bio":""}`, string(out))
}

func TestGeneratePreservesKeyOrderAndArrayLength(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"z":1,"a":[1,2,3],"m":{"x":true}}`))
	require.NoError(t, err)

	got, err := Generate(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	obj := got.(*value.Object)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	arr, _ := obj.Get("a")
	assert.Len(t, arr.(*value.Array).Elems, 3)

	inner, _ := obj.Get("m")
	innerObj := inner.(*value.Object)
	x, _ := innerObj.Get("x")
	assert.Equal(t, value.Bool(false), x)
}

func TestGenerateLargeArrayStreamsEmpty(t *testing.T) {
	elems := make([]value.Value, 500)
	for i := range elems {
		elems[i] = value.Int(i)
	}
	root := value.NewObject()
	root.Set("items", &value.Array{Elems: elems})

	got, err := Generate(root, Config{ArrayStreamThreshold: 100}, admission.Policy{})
	require.NoError(t, err)
	obj := got.(*value.Object)
	items, _ := obj.Get("items")
	assert.Empty(t, items.(*value.Array).Elems)
	assert.True(t, IsStreamed(root_items(root), Config{ArrayStreamThreshold: 100}))
}

func root_items(root value.Value) value.Value {
	v, _ := root.(*value.Object).Get("items")
	return v
}

func TestGenerateTypePreservingPlaceholders(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"n":null,"b":true,"i":42,"f":1.5,"s":"hi","a":[1],"o":{"k":1}}`))
	require.NoError(t, err)

	generated, err := Generate(v, DefaultConfig(), admission.Policy{})
	require.NoError(t, err)
	got := generated.(*value.Object)

	n, _ := got.Get("n")
	assert.Equal(t, value.Null{}, n)
	b, _ := got.Get("b")
	assert.Equal(t, value.Bool(false), b)
	i, _ := got.Get("i")
	assert.Equal(t, value.Int(0), i)
	f, _ := got.Get("f")
	assert.Equal(t, value.Float(0), f)
	s, _ := got.Get("s")
	assert.Equal(t, value.String(""), s)
}

func TestGenerateRejectsValueBeyondMaxDepth(t *testing.T) {
	v, err := value.Unmarshal([]byte(`{"a":{"b":{"c":1}}}`))
	require.NoError(t, err)

	_, err = Generate(v, DefaultConfig(), admission.Policy{MaxDepth: 2})
	require.Error(t, err)
	var ae *admission.AdmissionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, admission.LimitMaxDepth, ae.Limit)
}
