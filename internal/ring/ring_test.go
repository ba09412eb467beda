package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, New[int](0).Cap())
	assert.Equal(t, 8, New[int](5).Cap())
	assert.Equal(t, 16, New[int](16).Cap())
}

func TestQueueFIFOAcrossGrowth(t *testing.T) {
	q := New[int](2)
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	require.Equal(t, 100, q.Len())
	require.GreaterOrEqual(t, q.Cap(), 100)
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueGrowWhenWrapped(t *testing.T) {
	q := New[string](4)
	q.Push("a")
	q.Push("b")
	q.Push("c")
	v, _ := q.Pop()
	require.Equal(t, "a", v)
	// 写指针绕回后再扩容
	q.Push("d")
	q.Push("e")
	q.Push("f")
	require.Equal(t, 8, q.Cap())

	var got []string
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, got)
}

func TestPopEmptyAndFree(t *testing.T) {
	q := New[int](2)
	_, ok := q.Pop()
	require.False(t, ok)
	q.Push(7)
	assert.Equal(t, 1, q.Free())
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, q.Free())
}
