package mapping

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LinkAndGet(t *testing.T) {
	m := New(4, 3)

	m.Link(1, 2)
	assert.True(t, m.Has(1, 2))
	assert.True(t, m.IsSrc(1))
	assert.True(t, m.IsDst(2))
	assert.False(t, m.IsSrc(0))

	d, ok := m.GetDst(1)
	require.True(t, ok)
	assert.Equal(t, 2, d)
	s, ok := m.GetSrc(2)
	require.True(t, ok)
	assert.Equal(t, 1, s)

	_, ok = m.GetDst(3)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestStore_IndexZero(t *testing.T) {
	m := New(1, 1)
	m.Link(0, 0)
	assert.True(t, m.Has(0, 0))
	d, ok := m.GetDst(0)
	assert.True(t, ok)
	assert.Equal(t, 0, d)
}

func TestStore_LinkCutsPreviousLinks(t *testing.T) {
	m := New(3, 3)
	m.Link(0, 0)
	m.Link(1, 1)

	m.Link(0, 1)

	assert.True(t, m.Has(0, 1))
	assert.False(t, m.IsDst(0))
	assert.False(t, m.IsSrc(1))
	assert.Equal(t, 1, m.Len())
}

func TestStore_LinkIfBothUnmapped(t *testing.T) {
	m := New(3, 3)
	assert.True(t, m.LinkIfBothUnmapped(0, 0))
	assert.False(t, m.LinkIfBothUnmapped(0, 1))
	assert.False(t, m.LinkIfBothUnmapped(1, 0))
	assert.True(t, m.LinkIfBothUnmapped(1, 1))
	assert.Equal(t, "{0->0 1->1}", m.String())
}

func TestStore_Cut(t *testing.T) {
	m := New(2, 2)
	m.Link(0, 1)
	m.Cut(0, 1)
	assert.False(t, m.IsSrc(0))
	assert.False(t, m.IsDst(1))
	assert.Equal(t, 0, m.Len())

	assert.Panics(t, func() { m.Cut(0, 1) })
}

func TestStore_Clone(t *testing.T) {
	m := New(2, 2)
	m.Link(0, 0)
	c := m.Clone()
	c.Link(1, 1)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, c.Len())
}

func TestStore_StaysInjective(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	m := New(20, 20)
	for range 1000 {
		s, d := r.IntN(20), r.IntN(20)
		switch r.IntN(3) {
		case 0:
			m.Link(s, d)
		case 1:
			m.LinkIfBothUnmapped(s, d)
		default:
			if m.Has(s, d) {
				m.Cut(s, d)
			}
		}
	}

	seen := map[int]bool{}
	n := 0
	for s, d := range m.Pairs() {
		assert.False(t, seen[d], "dst %d mapped twice", d)
		seen[d] = true
		back, ok := m.GetSrc(d)
		assert.True(t, ok)
		assert.Equal(t, s, back)
		n++
	}
	assert.Equal(t, m.Len(), n)
}

func TestMultiStore(t *testing.T) {
	m := NewMulti()
	m.Link(0, 5)
	m.Link(0, 5)
	m.Link(1, 6)
	m.Link(2, 6)

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []int{5}, m.Dsts(0))
	assert.Equal(t, []int{1, 2}, m.Srcs(6))
	assert.True(t, m.IsSrcUnique(0))
	assert.False(t, m.IsSrcUnique(1))
	assert.Equal(t, []int{0, 1, 2}, m.AllSrcs())
}
