package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"tiny object", `{"id":7,"name":"Ada","bio":"Text"}`},
		{"nested", `{"a":{"b":[1,2,3]},"c":null,"d":true,"e":1.5}`},
		{"empty containers", `{"arr":[],"obj":{}}`},
		{"s1 seed scenario", `{"id":7,"name":"Ada","bio":"Text"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Unmarshal([]byte(tt.json))
			require.NoError(t, err)
			out, err := Marshal(v)
			require.NoError(t, err)
			v2, err := Unmarshal(out)
			require.NoError(t, err)
			assert.True(t, Equal(v, v2))
		})
	}
}

func TestObjectPreservesInsertionOrder(t *testing.T) {
	v, err := Unmarshal([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	obj := v.(*Object)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(out))
}

func TestObjectSetReplacePreservesPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Int(1))
	obj.Set("b", Int(2))
	obj.Set("a", Int(9))
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, _ := obj.Get("a")
	assert.Equal(t, Int(9), v)
}

func TestObjectDeletePreservesOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Int(1))
	obj.Set("b", Int(2))
	obj.Set("c", Int(3))
	require.True(t, obj.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, obj.Keys())
	_, ok := obj.Get("b")
	assert.False(t, ok)
}

func TestPathCompareLexicographic(t *testing.T) {
	a, _ := ParsePath("/a/0")
	b, _ := ParsePath("/a/1")
	c, _ := ParsePath("/b")
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, -1, Compare(b, c))
	assert.Equal(t, 0, Compare(a, a))
}

func TestParsePathEscapes(t *testing.T) {
	p, err := ParsePath("/a~1b/c~0d")
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, "a/b", p[0].Key)
	assert.Equal(t, "c~d", p[1].Key)
	assert.Equal(t, "/a~1b/c~0d", p.String())
}

func TestGetSetAppendDelete(t *testing.T) {
	var root Value
	root, err := Unmarshal([]byte(`{"a":{"b":[1,2]},"c":"x"}`))
	require.NoError(t, err)

	p, _ := ParsePath("/a/b/0")
	v, ok := Get(root, p)
	require.True(t, ok)
	assert.Equal(t, Int(1), v)

	require.NoError(t, Set(&root, p, Int(99)))
	v, _ = Get(root, p)
	assert.Equal(t, Int(99), v)

	arrPath, _ := ParsePath("/a/b")
	require.NoError(t, Append(root, arrPath, Int(3)))
	v, _ = Get(root, arrPath)
	assert.Equal(t, 3, len(v.(*Array).Elems))

	cPath, _ := ParsePath("/c")
	require.NoError(t, Delete(root, cPath))
	_, ok = Get(root, cPath)
	assert.False(t, ok)
}

func TestSetRootReplacesWholeValue(t *testing.T) {
	var root Value = Null{}
	require.NoError(t, Set(&root, Root(), String("hi")))
	assert.Equal(t, String("hi"), root)
}

func TestNewFloatRejectsNaN(t *testing.T) {
	_, err := NewFloat(notANumber())
	assert.Error(t, err)
}

func notANumber() float64 {
	var zero float64
	return zero / zero
}

func TestArenaReserveExhaustion(t *testing.T) {
	a := NewArena(10)
	require.NoError(t, a.Reserve(5))
	require.NoError(t, a.Reserve(5))
	assert.ErrorIs(t, a.Reserve(1), ErrArenaExhausted)
	a.Release(5)
	require.NoError(t, a.Reserve(1))
}

func TestPoolInterns(t *testing.T) {
	p := NewPool()
	a := p.Intern("id")
	b := p.Intern("id")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, p.Len())
}
