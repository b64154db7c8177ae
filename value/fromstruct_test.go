package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Tags     []string          `json:"tags,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	Internal string            `json:"-"`
	unexported int
}

func TestFromGoValueStruct(t *testing.T) {
	p := person{ID: 1, Name: "Ada", Tags: []string{"math"}, Internal: "secret"}
	v, err := FromGoValue(p)
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)

	id, ok := obj.Get("id")
	require.True(t, ok)
	assert.Equal(t, Int(1), id)

	_, hasInternal := obj.Get("Internal")
	assert.False(t, hasInternal)

	tags, ok := obj.Get("tags")
	require.True(t, ok)
	arr, ok := tags.(*Array)
	require.True(t, ok)
	assert.Equal(t, String("math"), arr.Elems[0])
}

func TestFromGoValueOmitsEmptyOmitemptyFields(t *testing.T) {
	p := person{ID: 2, Name: "Grace"}
	v, err := FromGoValue(p)
	require.NoError(t, err)
	obj := v.(*Object)

	_, hasTags := obj.Get("tags")
	assert.False(t, hasTags)
	_, hasMeta := obj.Get("meta")
	assert.False(t, hasMeta)
}

func TestFromGoValuePointerAndNil(t *testing.T) {
	var p *person
	v, err := FromGoValue(p)
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)
}

func TestFromGoValueSliceOfStructs(t *testing.T) {
	people := []person{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}
	v, err := FromGoValue(people)
	require.NoError(t, err)
	arr, ok := v.(*Array)
	require.True(t, ok)
	require.Len(t, arr.Elems, 2)
	first := arr.Elems[0].(*Object)
	name, _ := first.Get("name")
	assert.Equal(t, String("Ada"), name)
}
