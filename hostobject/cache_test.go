package hostobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallableCache_GetOrCreate(t *testing.T) {
	var c callableCache[*int]
	created := 0
	create := func() *int {
		created++
		v := created
		return &v
	}

	first := c.getOrCreate("f", create)
	second := c.getOrCreate("f", create)
	other := c.getOrCreate("g", create)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, c.len())

	c.clear()
	assert.Zero(t, c.len())
	assert.NotSame(t, first, c.getOrCreate("f", create))
}

func TestTable_NilSafe(t *testing.T) {
	var tbl *Table[func()]

	_, ok := tbl.Lookup("x")
	assert.False(t, ok)
	assert.False(t, tbl.Has("x"))
	assert.Nil(t, tbl.Names())
	assert.Zero(t, tbl.Len())
}

func TestTableBuilder(t *testing.T) {
	b := newTableBuilder[int](KindGetter)
	assert.NoError(t, b.add("zebra", 1))
	assert.NoError(t, b.add("alpha", 2))
	assert.ErrorIs(t, b.add("alpha", 3), ErrDuplicateMember)
	assert.ErrorIs(t, b.add("", 4), ErrEmptyName)

	tbl := b.build(func(v int) int { return v * 10 })
	assert.Equal(t, []string{"alpha", "zebra"}, tbl.Names())

	v, ok := tbl.Lookup("alpha")
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestUnionNames(t *testing.T) {
	got := unionNames([]string{"b", "a"}, []string{"a", "c"}, nil, []string{"c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
