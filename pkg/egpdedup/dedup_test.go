package egpdedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicatorBasic(t *testing.T) {
	d := New[string]("strings", 8)
	a, err := d.Get("hello")
	require.NoError(t, err)
	b, err := d.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	hits, misses := d.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestDeduplicatorIdempotent(t *testing.T) {
	d := New[int]("ints", 4)
	v1, err := d.Get(42)
	require.NoError(t, err)
	v2, err := d.Get(v1)
	require.NoError(t, err)
	v3, err := d.Get(v2)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, v2, v3)
}

func TestDeduplicatorPassThrough(t *testing.T) {
	d := New[int]("passthrough", 0)
	v, err := d.Get(7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 0, d.Len())
}

type frozenThing struct {
	val    int
	frozen bool
}

func (f frozenThing) Frozen() bool { return f.frozen }

func TestDeduplicatorRejectsUnfrozen(t *testing.T) {
	d := New[frozenThing]("frozen", 4)
	_, err := d.Get(frozenThing{val: 1, frozen: false})
	require.Error(t, err)

	v, err := d.Get(frozenThing{val: 1, frozen: true})
	require.NoError(t, err)
	assert.True(t, v.frozen)
}

func TestDeduplicatorInfo(t *testing.T) {
	d := New[int]("report", 4)
	_, _ = d.Get(1)
	_, _ = d.Get(1)
	info := d.Info()
	assert.Contains(t, info, "report")
	assert.Contains(t, info, "hits=1")
	assert.Contains(t, info, "misses=1")
}
