package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(l *List[int]) []int {
	var out []int
	l.Each(func(v int) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestEmptyList(t *testing.T) {
	l := New[int]()
	assert.True(t, l.IsEmpty())
	assert.False(t, l.Any())
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Pop())
	assert.Nil(t, l.Shift())
}

func TestPushOrdersTailToHead(t *testing.T) {
	l := New[int]()
	l.Push(NewNode(1))
	l.Push(NewNode(2))
	l.Push(NewNode(3))
	assert.Equal(t, []int{1, 2, 3}, collect(l))
	assert.Equal(t, 3, l.Len())
}

func TestUnshiftPrepends(t *testing.T) {
	l := New[int]()
	l.Push(NewNode(2))
	l.Unshift(NewNode(1))
	l.Push(NewNode(3))
	assert.Equal(t, []int{1, 2, 3}, collect(l))
}

func TestPopAndShift(t *testing.T) {
	l := New[int]()
	l.Push(NewNode(1))
	l.Push(NewNode(2))
	l.Push(NewNode(3))

	tail := l.Pop()
	require.NotNil(t, tail)
	assert.Equal(t, 3, tail.Value())

	head := l.Shift()
	require.NotNil(t, head)
	assert.Equal(t, 1, head.Value())

	assert.Equal(t, []int{2}, collect(l))
}

func TestRemoveIsIdempotent(t *testing.T) {
	l := New[int]()
	n1, n2, n3 := NewNode(1), NewNode(2), NewNode(3)
	l.Push(n1)
	l.Push(n2)
	l.Push(n3)

	l.Remove(n2)
	assert.Equal(t, []int{1, 3}, collect(l))
	assert.Equal(t, 2, l.Len())

	// Removing again, or removing a node that was never on the list, is a
	// silent no-op rather than corrupting the ring.
	assert.NotPanics(t, func() { l.Remove(n2) })
	assert.Equal(t, []int{1, 3}, collect(l))

	detached := NewNode(99)
	assert.NotPanics(t, func() { l.Remove(detached) })
}

func TestEachAllowsRemovingCurrentNode(t *testing.T) {
	l := New[int]()
	nodes := make([]*Node[int], 5)
	for i := range nodes {
		nodes[i] = NewNode(i)
		l.Push(nodes[i])
	}

	var seen []int
	l.Each(func(v int) bool {
		seen = append(seen, v)
		if v%2 == 0 {
			l.Remove(nodes[v])
		}
		return true
	})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, []int{1, 3}, collect(l))
}

func TestEachStopsEarly(t *testing.T) {
	l := New[int]()
	l.Push(NewNode(1))
	l.Push(NewNode(2))
	l.Push(NewNode(3))

	var seen []int
	l.Each(func(v int) bool {
		seen = append(seen, v)
		return v != 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestNewListFromZeroValue(t *testing.T) {
	var l List[string]
	l.Push(NewNode("a"))
	l.Push(NewNode("b"))
	assert.Equal(t, 2, l.Len())
}
